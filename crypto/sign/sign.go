// Package sign wraps the ed25519 signature scheme used for signing
// tree heads.
package sign

import (
	"crypto/ed25519"
	"crypto/rand"
	"io"
)

const (
	PrivateKeySize = 64
	PublicKeySize  = 32
	SignatureSize  = 64
)

type PrivateKey ed25519.PrivateKey
type PublicKey ed25519.PublicKey

// GenerateKey generates a key pair using randomness from rnd,
// or crypto/rand if rnd is nil.
func GenerateKey(rnd io.Reader) (PrivateKey, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	_, sk, err := ed25519.GenerateKey(rnd)
	return PrivateKey(sk), err
}

func (key PrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(key), message)
}

func (key PrivateKey) Public() (PublicKey, bool) {
	pk, ok := ed25519.PrivateKey(key).Public().(ed25519.PublicKey)
	return PublicKey(pk), ok
}

func (pk PublicKey) Verify(message, sig []byte) bool {
	return len(pk) == PublicKeySize &&
		ed25519.Verify(ed25519.PublicKey(pk), message, sig)
}
