// Implements the deterministic position walks of the transparency log
// protocol: the binary search that point lookups follow, and the
// checkpoint and frontier walks that monitoring follows. Provers and
// verifiers run the same code so both sides derive identical position
// sequences.

package protocol

import (
	"math/bits"
	"sort"
)

// A Ladder tracks one binary search for the smallest log position
// whose prefix tree counter reached a target version. Next yields the
// position to probe and Advance consumes the probe's outcome, so a
// verifier replaying a prover's probes visits the same positions in
// the same order.
type Ladder struct {
	lo, hi uint64
}

// NewLadder starts a binary search over the positions [0, treeSize).
func NewLadder(treeSize uint64) *Ladder {
	return &Ladder{lo: 0, hi: treeSize}
}

// Next returns the position to probe next, false once the search has
// converged.
func (l *Ladder) Next() (uint64, bool) {
	if l.lo >= l.hi {
		return 0, false
	}
	return l.lo + (l.hi-l.lo)/2, true
}

// Advance consumes the probe at the position last returned by Next.
// reached tells whether the counter there had reached the target: the
// search then continues strictly left of the probe, otherwise
// strictly right of it.
func (l *Ladder) Advance(reached bool) {
	mid := l.lo + (l.hi-l.lo)/2
	if reached {
		l.hi = mid
	} else {
		l.lo = mid + 1
	}
}

// Pos returns the position the search converged on: the smallest
// probed position whose counter reached the target, or the tree size
// when no probe did. Only meaningful once Next has returned false.
func (l *Ladder) Pos() uint64 {
	return l.lo
}

// MonitorPath returns the checkpoint positions that carry a verified
// entry at position x forward to a log of size n. Each checkpoint's
// binary representation shares one more leading bit with the last
// position n-1 than its predecessor's, ending at n-1 itself; the path
// is empty when x already is the last position.
func MonitorPath(x, n uint64) []uint64 {
	t := n - 1
	var path []uint64
	for x < t {
		d := uint(bits.Len64(x^t)) - 1
		x = t >> d << d
		path = append(path, x)
	}
	return path
}

// Frontier returns the rightmost frontier of a log of size n: the
// positions whose binary representations are the successive leading
// prefixes of the last position n-1. Monitoring re-checks these
// regardless of the monitored entries, so the newest appends are
// always covered.
func Frontier(n uint64) []uint64 {
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []uint64{0}
	}
	return MonitorPath(0, n)
}

// SortedPositions returns the distinct values of positions in
// ascending order, which is how a batched inclusion proof wants its
// entries.
func SortedPositions(positions []uint64) []uint64 {
	if len(positions) == 0 {
		return nil
	}
	out := append([]uint64(nil), positions...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	j := 0
	for i := 1; i < len(out); i++ {
		if out[i] != out[j] {
			j++
			out[j] = out[i]
		}
	}
	return out[:j+1]
}
