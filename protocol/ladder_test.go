package protocol

import (
	"reflect"
	"testing"
)

// ladderSearch runs a complete binary search against a slice of
// per-position counters, returning the probe order and the converged
// position.
func ladderSearch(counters []uint32, target uint32) ([]uint64, uint64) {
	l := NewLadder(uint64(len(counters)))
	var probes []uint64
	for {
		mid, ok := l.Next()
		if !ok {
			break
		}
		probes = append(probes, mid)
		l.Advance(counters[mid] >= target)
	}
	return probes, l.Pos()
}

func TestLadderFindsFirstReach(t *testing.T) {
	counters := []uint32{1, 1, 2, 2, 2, 3}

	probes, pos := ladderSearch(counters, 2)
	if pos != 2 {
		t.Fatal("Wrong position for version 2:", pos)
	}
	if !reflect.DeepEqual(probes, []uint64{3, 1, 2}) {
		t.Error("Wrong probe order:", probes)
	}

	if _, pos := ladderSearch(counters, 1); pos != 0 {
		t.Error("Wrong position for version 1:", pos)
	}
	if _, pos := ladderSearch(counters, 3); pos != 5 {
		t.Error("Wrong position for version 3:", pos)
	}

	// a version nothing ever reached converges past the end
	probes, pos = ladderSearch(counters, 4)
	if pos != uint64(len(counters)) {
		t.Error("Expected convergence past the end, got", pos)
	}
	if !reflect.DeepEqual(probes, []uint64{3, 5}) {
		t.Error("Wrong probe order:", probes)
	}
}

func TestLadderProbesItsAnswer(t *testing.T) {
	// counters [1, 2, .., n]: version v lives exactly at position v-1
	for n := 1; n <= 24; n++ {
		counters := make([]uint32, n)
		for i := range counters {
			counters[i] = uint32(i + 1)
		}
		for v := uint32(1); v <= uint32(n); v++ {
			probes, pos := ladderSearch(counters, v)
			if pos != uint64(v-1) {
				t.Fatal("Wrong position:", pos, "for version", v, "size", n)
			}
			probed := false
			for _, p := range probes {
				if p == pos {
					probed = true
				}
			}
			if !probed {
				t.Fatal("Converged position", pos, "was never probed, size", n)
			}
		}
	}
}

func TestMonitorPath(t *testing.T) {
	for _, tc := range []struct {
		x, n uint64
		path []uint64
	}{
		{3, 10, []uint64{8, 9}},
		{0, 10, []uint64{8, 9}},
		{8, 10, []uint64{9}},
		{9, 10, nil},
		{3, 12, []uint64{8, 10, 11}},
		{2, 6, []uint64{4, 5}},
		{5, 6, nil},
		{0, 1, nil},
	} {
		if path := MonitorPath(tc.x, tc.n); !reflect.DeepEqual(path, tc.path) {
			t.Error("Wrong monitor path!",
				"entry", tc.x, "size", tc.n,
				"expected", tc.path,
				"get", path)
		}
	}
}

func TestMonitorPathOnFrontier(t *testing.T) {
	// every checkpoint is a frontier position, so batching the
	// checkpoints of many entries never grows past the frontier
	for n := uint64(1); n <= 64; n++ {
		frontier := map[uint64]bool{}
		for _, p := range Frontier(n) {
			frontier[p] = true
		}
		for x := uint64(0); x < n; x++ {
			for _, p := range MonitorPath(x, n) {
				if !frontier[p] {
					t.Fatal("Checkpoint", p, "for entry", x,
						"is off the frontier of size", n)
				}
			}
		}
	}
}

func TestFrontier(t *testing.T) {
	for _, tc := range []struct {
		n        uint64
		frontier []uint64
	}{
		{0, nil},
		{1, []uint64{0}},
		{2, []uint64{1}},
		{6, []uint64{4, 5}},
		{9, []uint64{8}},
		{10, []uint64{8, 9}},
		{12, []uint64{8, 10, 11}},
		{16, []uint64{8, 12, 14, 15}},
	} {
		if f := Frontier(tc.n); !reflect.DeepEqual(f, tc.frontier) {
			t.Error("Wrong frontier!",
				"size", tc.n,
				"expected", tc.frontier,
				"get", f)
		}
	}
}

func TestSortedPositions(t *testing.T) {
	got := SortedPositions([]uint64{5, 1, 3, 1, 5, 2})
	if !reflect.DeepEqual(got, []uint64{1, 2, 3, 5}) {
		t.Error("Wrong sorted positions:", got)
	}
	if SortedPositions(nil) != nil {
		t.Error("Expected nil for empty input")
	}
}
