package server

import (
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
)

// Policies contains a server's keytrace policies configuration
// including paths to the VRF private key, the signing private
// key and the tree head refresh interval value in seconds.
type Policies struct {
	HeadRefreshInterval uint64 `toml:"head_refresh_interval"`
	VRFKeyPath          string `toml:"vrf_key_path"`
	SignKeyPath         string `toml:"sign_key_path"`
	// AuditorPubkeyPath points to the public key of the third-party
	// auditor whose observed heads this directory relays, and is
	// left empty when no auditor is configured.
	AuditorPubkeyPath string `toml:"auditor_pubkey_path,omitempty"`
	vrfKey            vrf.PrivateKey
	signKey           sign.PrivateKey
	auditorKey        sign.PublicKey
}

// NewPolicies initializes a new Policies struct.
func NewPolicies(headRefreshInterval uint64, vrfKeyPath, signKeyPath,
	auditorPubkeyPath string, vrfKey vrf.PrivateKey,
	signKey sign.PrivateKey, auditorKey sign.PublicKey) *Policies {
	return &Policies{
		HeadRefreshInterval: headRefreshInterval,
		VRFKeyPath:          vrfKeyPath,
		SignKeyPath:         signKeyPath,
		AuditorPubkeyPath:   auditorPubkeyPath,
		vrfKey:              vrfKey,
		signKey:             signKey,
		auditorKey:          auditorKey,
	}
}
