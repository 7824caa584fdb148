package logtree

import (
	"bytes"
	"testing"

	"github.com/keytrace/keytrace-go/crypto"
)

func testLeaves(n int) [][]byte {
	leaves := make([][]byte, n)
	for i := range leaves {
		leaves[i] = crypto.Digest([]byte{byte(i)})
	}
	return leaves
}

// naiveRoot recomputes the RFC 6962 Merkle tree head directly from the
// recursion, as an independent reference.
func naiveRoot(leaves [][]byte) []byte {
	if len(leaves) == 1 {
		return leaves[0]
	}
	k := 1
	for k*2 < len(leaves) {
		k *= 2
	}
	return crypto.HashLogPair(naiveRoot(leaves[:k]), naiveRoot(leaves[k:]))
}

func TestAppendRoot(t *testing.T) {
	leaves := testLeaves(16)
	tree := NewTree()
	if tree.Root() != nil {
		t.Fatal("Empty tree should have no root")
	}
	for i, leaf := range leaves {
		root := tree.Append(leaf)
		expect := naiveRoot(leaves[:i+1])
		if !bytes.Equal(root, expect) {
			t.Fatal("Wrong root after append!", "size", i+1)
		}
		if tree.Size() != uint64(i+1) {
			t.Fatal("Wrong size after append")
		}
	}
}

func TestRootAt(t *testing.T) {
	leaves := testLeaves(20)
	tree := NewTree()
	var history [][]byte
	for _, leaf := range leaves {
		history = append(history, tree.Append(leaf))
	}
	for s := uint64(1); s <= 20; s++ {
		root, err := tree.RootAt(s)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(root, history[s-1]) {
			t.Error("Historical root changed!", "size", s)
		}
	}
	if _, err := tree.RootAt(0); err == nil {
		t.Error("Expect an error for size 0")
	}
	if _, err := tree.RootAt(21); err == nil {
		t.Error("Expect an error for a future size")
	}
}

func TestLeaf(t *testing.T) {
	leaves := testLeaves(5)
	tree := NewTree()
	for _, leaf := range leaves {
		tree.Append(leaf)
	}
	for i, leaf := range leaves {
		got, err := tree.Leaf(uint64(i))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, leaf) {
			t.Error("Wrong leaf hash", "pos", i)
		}
	}
	if _, err := tree.Leaf(5); err == nil {
		t.Error("Expect an error for an out-of-range position")
	}
}

func TestSingleInclusion(t *testing.T) {
	leaves := testLeaves(11)
	tree := NewTree()
	for _, leaf := range leaves {
		tree.Append(leaf)
	}
	root := tree.Root()
	for pos := uint64(0); pos < 11; pos++ {
		proof, err := tree.InclusionProof([]uint64{pos}, 11)
		if err != nil {
			t.Fatal(err)
		}
		err = VerifyInclusion(root, 11, []uint64{pos}, [][]byte{leaves[pos]}, proof)
		if err != nil {
			t.Error("Inclusion proof rejected", "pos", pos, "err", err)
		}
		// a proof must not verify for a different leaf
		err = VerifyInclusion(root, 11, []uint64{pos}, [][]byte{crypto.Digest([]byte("evil"))}, proof)
		if err == nil {
			t.Error("Inclusion proof accepted a substituted leaf", "pos", pos)
		}
	}
}

func TestHistoricalInclusion(t *testing.T) {
	leaves := testLeaves(9)
	tree := NewTree()
	var history [][]byte
	for _, leaf := range leaves {
		history = append(history, tree.Append(leaf))
	}
	// proofs against a past size must fold to the past root
	proof, err := tree.InclusionProof([]uint64{2, 3}, 6)
	if err != nil {
		t.Fatal(err)
	}
	err = VerifyInclusion(history[5], 6, []uint64{2, 3}, [][]byte{leaves[2], leaves[3]}, proof)
	if err != nil {
		t.Error("Historical inclusion proof rejected:", err)
	}
}

func TestBatchInclusion(t *testing.T) {
	leaves := testLeaves(10)
	tree := NewTree()
	for _, leaf := range leaves {
		tree.Append(leaf)
	}
	root := tree.Root()

	entries := []uint64{0, 3, 4, 9}
	batch := [][]byte{leaves[0], leaves[3], leaves[4], leaves[9]}
	proof, err := tree.InclusionProof(entries, 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyInclusion(root, 10, entries, batch, proof); err != nil {
		t.Fatal("Batched proof rejected:", err)
	}

	// the batch must be cheaper than four standalone proofs
	var standalone int
	for _, pos := range entries {
		p, err := tree.InclusionProof([]uint64{pos}, 10)
		if err != nil {
			t.Fatal(err)
		}
		standalone += len(p)
	}
	if len(proof) >= standalone {
		t.Error("Batched proof does not share copath nodes",
			"batched", len(proof), "standalone", standalone)
	}

	// tampering with any proof node must be detected
	for i := range proof {
		tampered := make([][]byte, len(proof))
		copy(tampered, proof)
		tampered[i] = crypto.Digest(proof[i])
		if err := VerifyInclusion(root, 10, entries, batch, tampered); err == nil {
			t.Error("Tampered proof accepted", "node", i)
		}
	}

	// and so must a truncated proof
	if err := VerifyInclusion(root, 10, entries, batch, proof[:len(proof)-1]); err == nil {
		t.Error("Truncated proof accepted")
	}
}

func TestInclusionInvalidEntries(t *testing.T) {
	tree := NewTree()
	for _, leaf := range testLeaves(4) {
		tree.Append(leaf)
	}
	if _, err := tree.InclusionProof(nil, 4); err == nil {
		t.Error("Expect an error for an empty batch")
	}
	if _, err := tree.InclusionProof([]uint64{4}, 4); err == nil {
		t.Error("Expect an error for an out-of-range position")
	}
	if _, err := tree.InclusionProof([]uint64{2, 1}, 4); err == nil {
		t.Error("Expect an error for unsorted positions")
	}
	if _, err := tree.InclusionProof([]uint64{1, 1}, 4); err == nil {
		t.Error("Expect an error for duplicated positions")
	}
	if _, err := tree.InclusionProof([]uint64{0}, 5); err == nil {
		t.Error("Expect an error for a future size")
	}
}

func TestConsistency(t *testing.T) {
	leaves := testLeaves(16)
	tree := NewTree()
	var history [][]byte
	for _, leaf := range leaves {
		history = append(history, tree.Append(leaf))
	}

	for m := uint64(1); m <= 16; m++ {
		for n := m; n <= 16; n++ {
			proof, err := tree.ConsistencyProof(m, n)
			if err != nil {
				t.Fatal(err)
			}
			err = VerifyConsistency(m, n, history[m-1], history[n-1], proof)
			if err != nil {
				t.Error("Consistency proof rejected", "m", m, "n", n, "err", err)
			}
		}
	}
}

func TestConsistencyTamper(t *testing.T) {
	tree := NewTree()
	var history [][]byte
	for _, leaf := range testLeaves(13) {
		history = append(history, tree.Append(leaf))
	}
	proof, err := tree.ConsistencyProof(5, 13)
	if err != nil {
		t.Fatal(err)
	}
	if len(proof) == 0 {
		t.Fatal("Expect a non-empty proof for 5 -> 13")
	}
	// a consistency proof must pin both roots
	evil := crypto.Digest([]byte("evil"))
	if VerifyConsistency(5, 13, evil, history[12], proof) == nil {
		t.Error("Proof accepted a substituted old root")
	}
	if VerifyConsistency(5, 13, history[4], evil, proof) == nil {
		t.Error("Proof accepted a substituted new root")
	}
	for i := range proof {
		tampered := make([][]byte, len(proof))
		copy(tampered, proof)
		tampered[i] = crypto.Digest(proof[i])
		if VerifyConsistency(5, 13, history[4], history[12], tampered) == nil {
			t.Error("Tampered consistency proof accepted", "node", i)
		}
	}
	if VerifyConsistency(5, 13, history[4], history[12], proof[:len(proof)-1]) == nil {
		t.Error("Truncated consistency proof accepted")
	}
}

func TestConsistencyInvalidRanges(t *testing.T) {
	tree := NewTree()
	for _, leaf := range testLeaves(4) {
		tree.Append(leaf)
	}
	if _, err := tree.ConsistencyProof(0, 4); err == nil {
		t.Error("Expect an error for m = 0")
	}
	if _, err := tree.ConsistencyProof(3, 2); err == nil {
		t.Error("Expect an error for m > n")
	}
	if _, err := tree.ConsistencyProof(2, 5); err == nil {
		t.Error("Expect an error for a future size")
	}
	proof, err := tree.ConsistencyProof(4, 4)
	if err != nil || len(proof) != 0 {
		t.Error("Expect an empty proof for m == n")
	}
}
