package logtree

import (
	"github.com/keytrace/keytrace-go/crypto"
)

// chainNode is one complete subtree on the fold frontier.
type chainNode struct {
	level uint64
	value []byte
}

// rootCalculator folds a left-to-right sequence of complete subtree
// hashes into a root, the way a binary counter carries: inserting a
// value at the level of the current tail merges the two into their
// parent, repeatedly. Root folds whatever remains right to left, which
// handles the incomplete right edge of the tree.
type rootCalculator struct {
	chain []chainNode
}

func (c *rootCalculator) Insert(level uint64, value []byte) {
	n := chainNode{level, value}
	for len(c.chain) > 0 && c.chain[len(c.chain)-1].level == n.level {
		last := c.chain[len(c.chain)-1]
		c.chain = c.chain[:len(c.chain)-1]
		n = chainNode{n.level + 1, crypto.HashLogPair(last.value, n.value)}
	}
	c.chain = append(c.chain, n)
}

func (c *rootCalculator) Root() []byte {
	if len(c.chain) == 0 {
		return nil
	}
	acc := c.chain[len(c.chain)-1].value
	for i := len(c.chain) - 2; i >= 0; i-- {
		acc = crypto.HashLogPair(c.chain[i].value, acc)
	}
	return acc
}
