package prefixtree

import (
	"bytes"

	"github.com/keytrace/keytrace-go/crypto"
	"github.com/keytrace/keytrace-go/utils"
)

// ProofLeaf is the terminal leaf of a lookup, in full: enough to
// recompute its hash. When its index differs from the looked-up one it
// witnesses that the looked-up index is absent from the snapshot.
type ProofLeaf struct {
	Index   []byte `json:"index"`
	Counter uint32 `json:"counter"`
}

// SearchResult proves the version count of one index in one snapshot.
type SearchResult struct {
	// Copath holds the sibling hashes of the path from the terminal
	// node to the root, ordered bottom-to-top.
	Copath [][]byte `json:"copath"`
	// Leaf is the terminal leaf, nil when the lookup ended at an
	// empty node.
	Leaf *ProofLeaf `json:"leaf,omitempty"`
}

// Counter returns the version count of index asserted by the result:
// the terminal leaf's counter when that leaf is for index, 0 otherwise.
func (r *SearchResult) Counter(index []byte) uint32 {
	if r.Leaf == nil || !bytes.Equal(r.Leaf.Index, index) {
		return 0
	}
	return r.Leaf.Counter
}

// RootValue recomputes the snapshot root hash the result commits to
// for the given looked-up index. The terminal node hashes up through
// the copath, and a terminal leaf for a different index must actually
// lie on index's lookup path.
func (r *SearchResult) RootValue(index []byte) ([]byte, error) {
	if len(index) != IndexSizeByte {
		return nil, ErrInvalidIndex
	}
	level := uint32(len(r.Copath))

	var hash []byte
	switch {
	case r.Leaf == nil:
		hash = crypto.HashPrefixEmpty(utils.BitPrefix(index, level), level)
	case bytes.Equal(r.Leaf.Index, index):
		hash = crypto.HashPrefixLeaf(index, level, r.Leaf.Counter)
	default:
		if len(r.Leaf.Index) != IndexSizeByte {
			return nil, ErrInvalidProof
		}
		// a foreign leaf shares the looked-up index's path exactly
		// down to the terminal level
		for i := uint32(0); i < level; i++ {
			if utils.GetNthBit(r.Leaf.Index, i) != utils.GetNthBit(index, i) {
				return nil, ErrInvalidProof
			}
		}
		hash = crypto.HashPrefixLeaf(r.Leaf.Index, level, r.Leaf.Counter)
	}

	for i, sibling := range r.Copath {
		if utils.GetNthBit(index, level-uint32(i)-1) {
			hash = crypto.HashPrefixParent(sibling, hash)
		} else {
			hash = crypto.HashPrefixParent(hash, sibling)
		}
	}
	return hash, nil
}

// Verify checks the result against a snapshot root hash.
func (r *SearchResult) Verify(index, root []byte) error {
	hash, err := r.RootValue(index)
	if err != nil {
		return err
	}
	if !bytes.Equal(hash, root) {
		return ErrInvalidProof
	}
	return nil
}
