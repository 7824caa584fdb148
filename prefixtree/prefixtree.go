// Package prefixtree implements the versioned binary trie that maps
// VRF-derived indices to version counters. The directory inserts one
// index per log entry; every insert produces a new immutable snapshot
// whose root hash is folded into that log entry's leaf.
//
// Nodes live in an append-only arena and are never mutated, so a new
// snapshot shares every node off the changed path with its predecessor
// and all historical snapshots stay readable at a fixed cost.
package prefixtree

import (
	"bytes"
	"errors"

	"github.com/keytrace/keytrace-go/crypto"
	"github.com/keytrace/keytrace-go/utils"
)

// IndexSizeByte is the size of a prefix tree index: the VRF output.
const IndexSizeByte = 32

var (
	// ErrInvalidIndex is returned for indices of the wrong size.
	ErrInvalidIndex = errors.New("[prefixtree] invalid index length")
	// ErrVersionRegression is returned when an insert does not strictly
	// increase the index's version counter.
	ErrVersionRegression = errors.New("[prefixtree] version counter regression")
	// ErrInvalidSnapshot is returned for lookups against a snapshot the
	// tree does not have.
	ErrInvalidSnapshot = errors.New("[prefixtree] unknown snapshot")
	// ErrInvalidProof is returned when a search result does not verify.
	ErrInvalidProof = errors.New("[prefixtree] proof does not verify")
)

type nodeKind uint8

const (
	emptyNode nodeKind = iota
	leafNode
	interiorNode
)

// node is one immutable trie node. Interior nodes reference their
// children by arena position; leaves carry the full index and its
// latest counter; empty nodes carry the bit prefix of their position.
type node struct {
	kind        nodeKind
	level       uint32
	hash        []byte
	left, right uint32
	index       []byte
	counter     uint32
}

// Tree is the versioned prefix tree. The zero value is an empty tree
// with no snapshots.
type Tree struct {
	nodes []node
	roots []uint32
}

// NewTree returns an empty prefix tree.
func NewTree() *Tree {
	return &Tree{}
}

// Size returns the number of snapshots, which equals the number of
// successful inserts.
func (t *Tree) Size() uint64 {
	return uint64(len(t.roots))
}

// Insert records counter as the new version count of index and builds
// the next snapshot. The counter must be strictly greater than the
// index's current one (0 when absent); otherwise ErrVersionRegression
// is returned and no state changes. The new snapshot's root hash is
// returned.
func (t *Tree) Insert(index []byte, counter uint32) ([]byte, error) {
	if len(index) != IndexSizeByte {
		return nil, ErrInvalidIndex
	}
	if counter <= t.latestCounter(index) {
		return nil, ErrVersionRegression
	}

	var root uint32
	if len(t.roots) == 0 {
		root = t.addLeaf(index, 0, counter)
	} else {
		root = t.insert(t.roots[len(t.roots)-1], 0, index, counter)
	}
	t.roots = append(t.roots, root)
	return t.nodes[root].hash, nil
}

// RootAt returns the root hash of the snapshot created by insert pos.
func (t *Tree) RootAt(pos uint64) ([]byte, error) {
	if pos >= uint64(len(t.roots)) {
		return nil, ErrInvalidSnapshot
	}
	return t.nodes[t.roots[pos]].hash, nil
}

// LookupAt proves the version count of index in snapshot pos: the
// result carries the copath to the terminal node and, unless the
// lookup ran into an empty node, the terminal leaf itself. A terminal
// leaf for a different index proves absence just as an empty node does.
func (t *Tree) LookupAt(pos uint64, index []byte) (*SearchResult, error) {
	if len(index) != IndexSizeByte {
		return nil, ErrInvalidIndex
	}
	if pos >= uint64(len(t.roots)) {
		return nil, ErrInvalidSnapshot
	}

	var copath [][]byte
	ref := t.roots[pos]
	level := uint32(0)
	for t.nodes[ref].kind == interiorNode {
		n := t.nodes[ref]
		if utils.GetNthBit(index, level) {
			copath = append(copath, t.nodes[n.left].hash)
			ref = n.right
		} else {
			copath = append(copath, t.nodes[n.right].hash)
			ref = n.left
		}
		level++
	}

	// reverse to the bottom-to-top order proofs are exchanged in
	for i, j := 0, len(copath)-1; i < j; i, j = i+1, j-1 {
		copath[i], copath[j] = copath[j], copath[i]
	}

	result := &SearchResult{Copath: copath}
	if terminal := t.nodes[ref]; terminal.kind == leafNode {
		result.Leaf = &ProofLeaf{Index: terminal.index, Counter: terminal.counter}
	}
	return result, nil
}

// latestCounter walks the newest snapshot for the current version
// count of index, 0 when absent.
func (t *Tree) latestCounter(index []byte) uint32 {
	if len(t.roots) == 0 {
		return 0
	}
	ref := t.roots[len(t.roots)-1]
	level := uint32(0)
	for {
		switch n := t.nodes[ref]; n.kind {
		case emptyNode:
			return 0
		case leafNode:
			if bytes.Equal(n.index, index) {
				return n.counter
			}
			return 0
		default:
			if utils.GetNthBit(index, level) {
				ref = n.right
			} else {
				ref = n.left
			}
			level++
		}
	}
}

// insert builds the changed path of the new snapshot below the node at
// ref and returns the replacement node. Untouched subtrees are shared
// by reference.
func (t *Tree) insert(ref uint32, level uint32, index []byte, counter uint32) uint32 {
	switch n := t.nodes[ref]; n.kind {
	case emptyNode:
		return t.addLeaf(index, level, counter)
	case leafNode:
		if bytes.Equal(n.index, index) {
			return t.addLeaf(index, level, counter)
		}
		return t.splitLeaf(n, level, index, counter)
	default:
		if utils.GetNthBit(index, level) {
			right := t.insert(n.right, level+1, index, counter)
			return t.addInterior(level, n.left, right)
		}
		left := t.insert(n.left, level+1, index, counter)
		return t.addInterior(level, left, n.right)
	}
}

// splitLeaf pushes an existing leaf down until its index and the new
// one part ways, materializing an empty sibling at every shared level.
func (t *Tree) splitLeaf(existing node, level uint32, index []byte, counter uint32) uint32 {
	newBit := utils.GetNthBit(index, level)
	if newBit == utils.GetNthBit(existing.index, level) {
		child := t.splitLeaf(existing, level+1, index, counter)
		prefix := utils.FlipNthBit(utils.BitPrefix(index, level+1), level)
		sibling := t.addEmpty(prefix, level+1)
		if newBit {
			return t.addInterior(level, sibling, child)
		}
		return t.addInterior(level, child, sibling)
	}

	pushed := t.addLeaf(existing.index, level+1, existing.counter)
	added := t.addLeaf(index, level+1, counter)
	if newBit {
		return t.addInterior(level, pushed, added)
	}
	return t.addInterior(level, added, pushed)
}

func (t *Tree) addLeaf(index []byte, level uint32, counter uint32) uint32 {
	t.nodes = append(t.nodes, node{
		kind:    leafNode,
		level:   level,
		hash:    crypto.HashPrefixLeaf(index, level, counter),
		index:   index,
		counter: counter,
	})
	return uint32(len(t.nodes) - 1)
}

func (t *Tree) addEmpty(prefix []byte, level uint32) uint32 {
	t.nodes = append(t.nodes, node{
		kind:  emptyNode,
		level: level,
		hash:  crypto.HashPrefixEmpty(prefix, level),
		index: prefix,
	})
	return uint32(len(t.nodes) - 1)
}

func (t *Tree) addInterior(level uint32, left, right uint32) uint32 {
	t.nodes = append(t.nodes, node{
		kind:  interiorNode,
		level: level,
		hash:  crypto.HashPrefixParent(t.nodes[left].hash, t.nodes[right].hash),
		left:  left,
		right: right,
	})
	return uint32(len(t.nodes) - 1)
}
