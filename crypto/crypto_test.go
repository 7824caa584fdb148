package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func TestDigest(t *testing.T) {
	msg := []byte("test message")
	d := Digest(msg)
	if len(d) != HashSizeByte {
		t.Fatal("Computation of Hash failed.")
	}
	if bytes.Equal(d, make([]byte, HashSizeByte)) {
		t.Fatal("Hash is all zeros.")
	}
	if !bytes.Equal(d, Digest(msg)) {
		t.Fatal("Hash is not deterministic.")
	}
}

type testErrorRandReader struct{}

func (er testErrorRandReader) Read([]byte) (int, error) {
	return 0, errors.New("not enough entropy")
}

func TestMakeRand(t *testing.T) {
	r, err := MakeRand()
	if err != nil {
		t.Fatal(err)
	}
	// check if hashed the random output:
	if len(r) != HashSizeByte {
		t.Fatal("Looks like Digest wasn't called correctly.")
	}
	orig := rand.Reader
	rand.Reader = testErrorRandReader{}
	_, err = MakeRand()
	if err == nil {
		t.Fatal("No error returned")
	}
	rand.Reader = orig
}

func TestCommit(t *testing.T) {
	value := []byte("key material")
	commit, err := NewCommit(42, value)
	if err != nil {
		t.Fatal(err)
	}
	if !commit.Verify(42, value) {
		t.Fatal("Commit doesn't verify!")
	}
	if commit.Verify(43, value) {
		t.Fatal("Commit verified against a wrong position")
	}
	if commit.Verify(42, []byte("other key material")) {
		t.Fatal("Commit verified against a wrong value")
	}
	forged := &Commit{Opening: Digest(commit.Opening), Value: commit.Value}
	if forged.Verify(42, value) {
		t.Fatal("Commit verified with a wrong opening")
	}
}

func TestCommitHiding(t *testing.T) {
	value := []byte("key material")
	c1, err := NewCommit(7, value)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := NewCommit(7, value)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(c1.Value, c2.Value) {
		t.Fatal("Commits to the same value should not be linkable")
	}
}

func TestNodeHashDomains(t *testing.T) {
	index := Digest([]byte("index"))
	// a prefix leaf and an empty node over the same bytes must differ
	if bytes.Equal(HashPrefixLeaf(index, 4, 1), HashPrefixEmpty(index, 4)) {
		t.Error("Leaf and empty hashes should be domain separated")
	}
	left, right := Digest([]byte("l")), Digest([]byte("r"))
	if bytes.Equal(HashPrefixParent(left, right), HashLogPair(left, right)) {
		t.Error("Prefix and log interior hashes should be domain separated")
	}
	if bytes.Equal(HashLogPair(left, right), HashLogPair(right, left)) {
		t.Error("Pair hash should depend on child order")
	}
}
