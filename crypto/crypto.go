package crypto

import (
	"bytes"
	"crypto/rand"

	"golang.org/x/crypto/sha3"

	"github.com/keytrace/keytrace-go/utils"
)

const (
	// HashSizeByte is the size of the hash output in bytes.
	HashSizeByte = 32
	// HashID identifies the used hash as a string.
	HashID = "SHAKE128"
)

// Identifiers domain-separate the hashed node types. Prefix tree
// leaves and empty nodes carry ASCII tags; log tree leaves and
// interior pairs follow RFC 6962.
const (
	leafIdentifier    = 'L'
	emptyIdentifier   = 'E'
	logLeafIdentifier = 0x00
	logPairIdentifier = 0x01
)

// Digest hashes all passed byte slices.
// The passed slices won't be mutated.
func Digest(ms ...[]byte) []byte {
	h := sha3.NewShake128()
	for _, m := range ms {
		h.Write(m)
	}
	ret := make([]byte, HashSizeByte)
	h.Read(ret)
	return ret
}

// MakeRand returns a random slice of bytes.
// It returns an error if there was a problem while generating
// the random slice.
// It is different from the 'standard' random byte generation as it
// hashes its output before returning it; by hashing the system's
// PRNG output before it is send over the wire, we aim to make the
// random output less predictable (even if the system's PRNG isn't
// as unpredictable as desired).
// See https://trac.torproject.org/projects/tor/ticket/17694
func MakeRand() ([]byte, error) {
	r := make([]byte, HashSizeByte)
	if _, err := rand.Read(r); err != nil {
		return nil, err
	}
	// Do not directly reveal bytes from rand.Read on the wire
	return Digest(r), nil
}

// HashPrefixLeaf computes the hash of a prefix tree leaf as:
// H(Identifier || index || level || counter)
func HashPrefixLeaf(index []byte, level uint32, counter uint32) []byte {
	return Digest(
		[]byte{leafIdentifier},
		index,
		utils.UInt32ToBytes(level),
		utils.UInt32ToBytes(counter),
	)
}

// HashPrefixEmpty computes the hash of an empty prefix tree node as:
// H(Identifier || prefix || level)
// where prefix holds the first level bits of the node's position.
func HashPrefixEmpty(prefix []byte, level uint32) []byte {
	return Digest(
		[]byte{emptyIdentifier},
		prefix,
		utils.UInt32ToBytes(level),
	)
}

// HashPrefixParent computes the hash of an interior prefix tree node
// as: H(left || right)
func HashPrefixParent(left, right []byte) []byte {
	return Digest(left, right)
}

// HashLogLeaf computes the hash of a log tree leaf as:
// H(0x00 || position || prefixRoot || commitment)
// binding the entry's position, the prefix tree root snapshot after
// applying the entry, and the commitment to the entry's value.
func HashLogLeaf(position uint64, prefixRoot, commitment []byte) []byte {
	return Digest(
		[]byte{logLeafIdentifier},
		utils.ULongToBytes(position),
		prefixRoot,
		commitment,
	)
}

// HashLogPair computes the hash of an interior log tree node as:
// H(0x01 || left || right)
func HashLogPair(left, right []byte) []byte {
	return Digest([]byte{logPairIdentifier}, left, right)
}

// Commit is a cryptographic commit to one log entry's value, bound
// to the entry's log position (use NewCommit for this purpose).
type Commit struct {
	// Opening is the random opening which is hashed with the value.
	Opening []byte
	// Value is the commitment itself.
	Value []byte
}

// NewCommit creates a commit to value for the log entry at position.
// It draws a fresh random opening, so commitments to equal values
// stay unlinkable.
func NewCommit(position uint64, value []byte) (*Commit, error) {
	opening, err := MakeRand()
	if err != nil {
		return nil, err
	}
	return &Commit{
		Opening: opening,
		Value:   CommitValue(position, opening, value),
	}, nil
}

// CommitValue recomputes the commitment for the given value, opening
// and log position: H(value || opening || position).
func CommitValue(position uint64, opening, value []byte) []byte {
	return Digest(value, opening, utils.ULongToBytes(position))
}

// Verify verifies that the underlying commit c was a commit to the
// passed value at the passed log position.
func (c *Commit) Verify(position uint64, value []byte) bool {
	return bytes.Equal(c.Value, CommitValue(position, c.Opening, value))
}
