// Package vrf implements the ECVRF-EDWARDS25519-SHA512-TAI verifiable
// random function from RFC 9381. The directory uses it to map search
// keys to private prefix tree indices: the keyholder of the VRF private
// key computes index = VRF(searchKey) together with a proof, and anyone
// holding the public key can check the mapping without being able to
// compute indices for other keys.
package vrf

import (
	"bytes"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"io"

	"filippo.io/edwards25519"
)

const (
	PublicKeySize  = 32
	PrivateKeySize = 64
	// Size is the size of the VRF output (the prefix tree index) in bytes.
	Size = 32
	// ProofSize is the size of an encoded proof: gamma || c || s.
	ProofSize = 32 + 16 + 32

	suite byte = 0x03
)

var (
	ErrGetPubKey = errors.New("[vrf] Couldn't get corresponding public-key from private-key")
	// ErrInvalidProof is returned when a proof fails to decode or verify.
	ErrInvalidProof = errors.New("[vrf] invalid VRF proof")
	// ErrInvalidKey is returned for malformed or small-subgroup public keys.
	ErrInvalidKey = errors.New("[vrf] invalid VRF public key")
)

// PrivateKey holds the 32-byte seed followed by the cached compressed
// public point.
type PrivateKey [PrivateKeySize]byte
type PublicKey [PublicKeySize]byte

// GenerateKey creates a public/private key pair using rnd for randomness.
// If rnd is nil, crypto/rand is used.
func GenerateKey(rnd io.Reader) (sk PrivateKey, err error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	if _, err = io.ReadFull(rnd, sk[:32]); err != nil {
		return
	}

	// cache the public-key:
	A := (&edwards25519.Point{}).ScalarBaseMult(sk.expand())
	copy(sk[32:], A.Bytes())

	return
}

// Public extracts the public VRF key from the underlying private-key.
func (sk PrivateKey) Public() (PublicKey, bool) {
	var pk PublicKey
	n := copy(pk[:], sk[32:])
	return pk, n == PublicKeySize
}

// expand derives the scalar from the seed half of the key, clamped the
// same way ed25519 clamps its secret scalars.
func (sk PrivateKey) expand() *edwards25519.Scalar {
	h := sha512.Sum512(sk[:32])
	x, err := (&edwards25519.Scalar{}).SetBytesWithClamping(h[:32])
	if err != nil {
		panic(err)
	}
	return x
}

// Compute returns the VRF output for m. The output is deterministic:
// the same key and message always map to the same index.
func (sk PrivateKey) Compute(m []byte) []byte {
	h := encodeToCurve(sk[32:], m)
	gamma := (&edwards25519.Point{}).ScalarMult(sk.expand(), h)
	return gammaToHash(gamma)
}

// Prove returns the VRF output for m together with a proof that it was
// computed under sk. The index equals Compute(m).
func (sk PrivateKey) Prove(m []byte) (index []byte, proof []byte) {
	x := sk.expand()
	h := encodeToCurve(sk[32:], m)
	hBytes := h.Bytes()

	// deterministic nonce over the secret seed and the hashed point
	nonce := sha512.New()
	nonce.Write(sk[:32])
	nonce.Write(hBytes)
	k, err := (&edwards25519.Scalar{}).SetUniformBytes(nonce.Sum(nil))
	if err != nil {
		panic(err)
	}

	gamma := (&edwards25519.Point{}).ScalarMult(x, h)
	c := challenge(sk[32:], hBytes,
		gamma,
		(&edwards25519.Point{}).ScalarBaseMult(k),
		(&edwards25519.Point{}).ScalarMult(k, h),
	)
	s := edwards25519.NewScalar().Add(k, edwards25519.NewScalar().Multiply(c, x))

	proof = make([]byte, 0, ProofSize)
	proof = append(proof, gamma.Bytes()...)
	proof = append(proof, c.Bytes()[:16]...)
	proof = append(proof, s.Bytes()...)
	return gammaToHash(gamma), proof
}

// ProofToHash verifies proof for m under pk and returns the VRF output
// it attests to. Any malformed key, malformed proof or failed equation
// yields an error and no output.
func (pk PublicKey) ProofToHash(m, proof []byte) ([]byte, error) {
	y, err := (&edwards25519.Point{}).SetBytes(pk[:])
	if err != nil {
		return nil, ErrInvalidKey
	}
	// reject keys in the small subgroup (ECVRF_validate_key)
	if (&edwards25519.Point{}).MultByCofactor(y).Equal(edwards25519.NewIdentityPoint()) == 1 {
		return nil, ErrInvalidKey
	}

	gamma, c, s, err := decodeProof(proof)
	if err != nil {
		return nil, err
	}
	h := encodeToCurve(pk[:], m)

	// U = s*B - c*Y
	u := (&edwards25519.Point{}).Subtract(
		(&edwards25519.Point{}).ScalarBaseMult(s),
		(&edwards25519.Point{}).ScalarMult(c, y),
	)
	// V = s*H - c*Gamma
	v := (&edwards25519.Point{}).Subtract(
		(&edwards25519.Point{}).ScalarMult(s, h),
		(&edwards25519.Point{}).ScalarMult(c, gamma),
	)

	if c.Equal(challenge(pk[:], h.Bytes(), gamma, u, v)) == 0 {
		return nil, ErrInvalidProof
	}
	return gammaToHash(gamma), nil
}

// Verify checks that proof attests that index is the VRF output for m
// under pk.
func (pk PublicKey) Verify(m, index, proof []byte) bool {
	h, err := pk.ProofToHash(m, proof)
	return err == nil && bytes.Equal(h, index)
}

func decodeProof(proof []byte) (gamma *edwards25519.Point, c, s *edwards25519.Scalar, err error) {
	if len(proof) != ProofSize {
		return nil, nil, nil, ErrInvalidProof
	}
	if gamma, err = (&edwards25519.Point{}).SetBytes(proof[:32]); err != nil {
		return nil, nil, nil, ErrInvalidProof
	}
	cBytes := make([]byte, 32)
	copy(cBytes, proof[32:48])
	if c, err = (&edwards25519.Scalar{}).SetCanonicalBytes(cBytes); err != nil {
		return nil, nil, nil, ErrInvalidProof
	}
	if s, err = (&edwards25519.Scalar{}).SetCanonicalBytes(proof[48:]); err != nil {
		return nil, nil, nil, ErrInvalidProof
	}
	return gamma, c, s, nil
}

// encodeToCurve implements ECVRF_encode_to_curve in its try-and-increment
// form: hash (suite || 0x01 || pk || m || ctr || 0x00) until the digest
// decompresses to a curve point outside the small subgroup.
func encodeToCurve(pk, m []byte) *edwards25519.Point {
	prefix := make([]byte, 0, 2+PublicKeySize+len(m))
	prefix = append(prefix, suite, 0x01)
	prefix = append(prefix, pk...)
	prefix = append(prefix, m...)

	point := &edwards25519.Point{}
	identity := edwards25519.NewIdentityPoint()
	for ctr := 0; ctr < 256; ctr++ {
		h := sha512.New()
		h.Write(prefix)
		h.Write([]byte{byte(ctr), 0x00})
		if _, err := point.SetBytes(h.Sum(nil)[:32]); err != nil {
			continue
		}
		cleared := (&edwards25519.Point{}).MultByCofactor(point)
		if cleared.Equal(identity) == 0 {
			return cleared
		}
	}
	// 256 misses have probability 2^-256
	panic("[vrf] unable to encode message onto the curve")
}

// gammaToHash implements ECVRF_proof_to_hash on the already-verified
// gamma point, truncated to the index size.
func gammaToHash(gamma *edwards25519.Point) []byte {
	h := sha512.New()
	h.Write([]byte{suite, 0x03})
	h.Write((&edwards25519.Point{}).MultByCofactor(gamma).Bytes())
	h.Write([]byte{0x00})
	return h.Sum(nil)[:Size]
}

// challenge implements ECVRF_challenge_generation over the fixed
// five-point transcript. The challenge is truncated to 16 bytes and
// lifted back into a scalar.
func challenge(pk, hBytes []byte, points ...*edwards25519.Point) *edwards25519.Scalar {
	h := sha512.New()
	h.Write([]byte{suite, 0x02})
	h.Write(pk)
	h.Write(hBytes)
	for _, p := range points {
		h.Write(p.Bytes())
	}
	h.Write([]byte{0x00})

	cBytes := h.Sum(nil)[:32]
	for i := 16; i < 32; i++ {
		cBytes[i] = 0
	}
	c, err := (&edwards25519.Scalar{}).SetCanonicalBytes(cBytes)
	if err != nil {
		panic(err)
	}
	return c
}
