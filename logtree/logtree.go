// Package logtree implements the append-only Merkle tree over the
// directory's log entries. Leaves are added strictly left to right; the
// resulting hashes equal the RFC 6962 Merkle tree head recursion.
//
// The tree is stored as a flat arena of node hashes addressed by
// left-balanced node index (the leaf at position i lives at node 2*i,
// n leaves span 2*n-1 nodes). Only nodes rooting a complete subtree are
// materialized, and a materialized hash is never overwritten; the hash
// of an incomplete node is recomputed on demand from the complete
// subtrees below it. Every historical tree size therefore stays
// provable without retaining old versions of anything.
package logtree

import (
	"bytes"
	"errors"
	"math/bits"
	"sort"

	"github.com/keytrace/keytrace-go/crypto"
)

var (
	// ErrEmptyTree is returned when a root or proof is requested from
	// a tree without entries.
	ErrEmptyTree = errors.New("[logtree] tree has no entries")
	// ErrInvalidRange is returned for positions or sizes outside the
	// tree, unsorted batch positions, or m > n consistency requests.
	ErrInvalidRange = errors.New("[logtree] invalid position or size")
	// ErrInvalidProof is returned by the verifiers when a proof has the
	// wrong shape or does not reproduce the expected root.
	ErrInvalidProof = errors.New("[logtree] proof does not verify")
)

// Tree is the log tree. The zero value is an empty tree ready for use.
type Tree struct {
	nodes [][]byte
	size  uint64
}

// NewTree returns an empty log tree.
func NewTree() *Tree {
	return &Tree{}
}

// Size returns the number of leaves in the tree.
func (t *Tree) Size() uint64 {
	return t.size
}

// Append adds a leaf hash as the next entry and returns the new root.
func (t *Tree) Append(leaf []byte) []byte {
	pos := t.size
	if pos == 0 {
		t.nodes = append(t.nodes, leaf)
	} else {
		// slot for the interior node 2*pos-1 is materialized once the
		// subtree it roots completes
		t.nodes = append(t.nodes, nil, leaf)
	}
	t.size++

	// fill every interior node that just became complete
	for width := uint64(2); t.size%width == 0; width *= 2 {
		lo := t.size - width
		t.nodes[2*lo+width-1] = crypto.HashLogPair(
			t.hashRange(lo, lo+width/2),
			t.hashRange(lo+width/2, lo+width),
		)
	}
	return t.Root()
}

// Leaf returns the leaf hash stored at position pos.
func (t *Tree) Leaf(pos uint64) ([]byte, error) {
	if pos >= t.size {
		return nil, ErrInvalidRange
	}
	return t.nodes[2*pos], nil
}

// Root returns the root over all current entries, or nil for an empty
// tree.
func (t *Tree) Root() []byte {
	if t.size == 0 {
		return nil
	}
	return t.hashRange(0, t.size)
}

// RootAt returns the root the tree had when it held size entries.
func (t *Tree) RootAt(size uint64) ([]byte, error) {
	if size == 0 || size > t.size {
		return nil, ErrInvalidRange
	}
	return t.hashRange(0, size), nil
}

// hashRange computes the RFC 6962 hash of the subtree over leaf
// positions [lo, hi). Complete subtrees are read straight from the
// arena, incomplete ones recurse along their right edge.
func (t *Tree) hashRange(lo, hi uint64) []byte {
	width := hi - lo
	if width&(width-1) == 0 {
		// a complete, aligned subtree: its root sits at node index
		// 2*lo + width - 1
		return t.nodes[2*lo+width-1]
	}
	k := split(width)
	return crypto.HashLogPair(t.hashRange(lo, lo+k), t.hashRange(lo+k, hi))
}

// InclusionProof returns one batched proof that the (strictly
// ascending) entry positions are included in the root at the given
// tree size. The proof holds the hashes of the subtrees covering no
// requested position, left to right; shared copath nodes appear once.
func (t *Tree) InclusionProof(entries []uint64, size uint64) ([][]byte, error) {
	if size == 0 || size > t.size {
		return nil, ErrInvalidRange
	}
	if err := checkEntries(entries, size); err != nil {
		return nil, err
	}
	spans := copathSpans(entries, 0, size)
	proof := make([][]byte, len(spans))
	for i, s := range spans {
		proof[i] = t.hashRange(s.lo, s.hi)
	}
	return proof, nil
}

// ConsistencyProof proves that the root at size m is a prefix of the
// root at size n, following the RFC 6962 subproof recursion.
func (t *Tree) ConsistencyProof(m, n uint64) ([][]byte, error) {
	if m == 0 || m > n || n > t.size {
		return nil, ErrInvalidRange
	}
	if m == n {
		return nil, nil
	}
	return t.subProof(m, 0, n, true), nil
}

// subProof emits the consistency proof covering the m old leaves that
// fall inside [lo, hi). flag records whether the old root is still
// derivable from what the verifier already holds.
func (t *Tree) subProof(m, lo, hi uint64, flag bool) [][]byte {
	if m == hi-lo {
		if flag {
			return nil
		}
		return [][]byte{t.hashRange(lo, hi)}
	}
	k := split(hi - lo)
	if m <= k {
		proof := t.subProof(m, lo, lo+k, flag)
		return append(proof, t.hashRange(lo+k, hi))
	}
	proof := t.subProof(m-k, lo+k, hi, false)
	return append(proof, t.hashRange(lo, lo+k))
}

// span is a half-open range of leaf positions.
type span struct {
	lo, hi uint64
}

// level is the height of the subtree covering the span.
func (s span) level() uint64 {
	return uint64(bits.Len64(s.hi-s.lo) - 1)
}

// split returns the size of the left subtree of a node covering width
// leaves: the largest power of two strictly smaller than width.
func split(width uint64) uint64 {
	return 1 << (bits.Len64(width-1) - 1)
}

// copathSpans partitions [lo, hi) into the maximal subtrees containing
// none of the (sorted) entries, in left-to-right order. Both the prover
// and the verifier derive the same partition, so proofs carry hashes
// only, no positions.
func copathSpans(entries []uint64, lo, hi uint64) []span {
	if len(entries) == 0 {
		return []span{{lo, hi}}
	}
	if hi-lo == 1 {
		return nil
	}
	k := split(hi - lo)
	cut := sort.Search(len(entries), func(i int) bool {
		return entries[i] >= lo+k
	})
	spans := copathSpans(entries[:cut], lo, lo+k)
	return append(spans, copathSpans(entries[cut:], lo+k, hi)...)
}

func checkEntries(entries []uint64, size uint64) error {
	if len(entries) == 0 {
		return ErrInvalidRange
	}
	for i, pos := range entries {
		if pos >= size {
			return ErrInvalidRange
		}
		if i > 0 && entries[i-1] >= pos {
			return ErrInvalidRange
		}
	}
	return nil
}

// RootFromInclusion folds a batched inclusion proof back into the root
// it commits to: entries and their leaf hashes, merged with the
// proof's copath subtrees, reproduce the root at the given size. A
// verifier that derives the root this way and then checks a signature
// over it never needs the root on the wire.
func RootFromInclusion(size uint64, entries []uint64, leaves [][]byte, proof [][]byte) ([]byte, error) {
	if size == 0 {
		return nil, ErrInvalidRange
	}
	if err := checkEntries(entries, size); err != nil {
		return nil, err
	}
	if len(leaves) != len(entries) {
		return nil, ErrInvalidProof
	}
	spans := copathSpans(entries, 0, size)
	if len(proof) != len(spans) {
		return nil, ErrInvalidProof
	}

	var calc rootCalculator
	ei, si := 0, 0
	for ei < len(entries) || si < len(spans) {
		if si == len(spans) || (ei < len(entries) && entries[ei] < spans[si].lo) {
			calc.Insert(0, leaves[ei])
			ei++
		} else {
			calc.Insert(spans[si].level(), proof[si])
			si++
		}
	}
	return calc.Root(), nil
}

// VerifyInclusion checks a batched inclusion proof against a known
// root.
func VerifyInclusion(root []byte, size uint64, entries []uint64, leaves [][]byte, proof [][]byte) error {
	calc, err := RootFromInclusion(size, entries, leaves, proof)
	if err != nil {
		return err
	}
	if !bytes.Equal(calc, root) {
		return ErrInvalidProof
	}
	return nil
}

// VerifyConsistency checks that newRoot at size n extends oldRoot at
// size m with the given proof.
func VerifyConsistency(m, n uint64, oldRoot, newRoot []byte, proof [][]byte) error {
	if m == 0 || m > n {
		return ErrInvalidRange
	}
	if m == n {
		if len(proof) != 0 || !bytes.Equal(oldRoot, newRoot) {
			return ErrInvalidProof
		}
		return nil
	}

	node, lastNode := m-1, n-1
	for node%2 == 1 {
		node /= 2
		lastNode /= 2
	}

	var oldHash, newHash []byte
	pi := 0
	if node > 0 {
		// m is not a power of two, the walk seeds from the proof
		if len(proof) == 0 {
			return ErrInvalidProof
		}
		oldHash, newHash = proof[0], proof[0]
		pi = 1
	} else {
		oldHash, newHash = oldRoot, oldRoot
	}

	for node > 0 || lastNode > 0 {
		switch {
		case node%2 == 1:
			if pi >= len(proof) {
				return ErrInvalidProof
			}
			oldHash = crypto.HashLogPair(proof[pi], oldHash)
			newHash = crypto.HashLogPair(proof[pi], newHash)
			pi++
		case node < lastNode:
			if pi >= len(proof) {
				return ErrInvalidProof
			}
			newHash = crypto.HashLogPair(newHash, proof[pi])
			pi++
		}
		node /= 2
		lastNode /= 2
	}

	if pi != len(proof) ||
		!bytes.Equal(oldHash, oldRoot) ||
		!bytes.Equal(newHash, newRoot) {
		return ErrInvalidProof
	}
	return nil
}
