// Defines the canonical signing format for tree heads and the
// verification routines for directory-signed and auditor-signed
// heads.

package protocol

import (
	"time"

	"github.com/keytrace/keytrace-go/crypto"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/logtree"
	"github.com/keytrace/keytrace-go/utils"
)

// Tags separating the directory's own head signatures from the
// auditor's, so neither can be replayed as the other.
const (
	directoryHeadTag byte = 0x00
	auditorHeadTag   byte = 0x01
)

// Freshness bounds a client applies to the heads in a response,
// relative to its own clock.
const (
	// HeadMaxAge is how old a directory head may be.
	HeadMaxAge = 24 * time.Hour
	// HeadMaxSkew is how far in the future a head may be dated.
	HeadMaxSkew = 10 * time.Minute
	// AuditorHeadMaxAge is how old an auditor head may be; auditors
	// lag the directory, so the window is wider.
	AuditorHeadMaxAge = 7 * 24 * time.Hour
)

// ConfigID identifies one log deployment: the hash of its public key
// material. Heads signed for one configuration never verify under
// another.
func ConfigID(signKey sign.PublicKey, vrfKey vrf.PublicKey) []byte {
	return crypto.Digest(signKey, vrfKey[:])
}

// serializeHead produces the canonical signing input of a tree head:
// the role tag, the configuration identifier, and the head's size,
// issuance time, and root.
func serializeHead(tag byte, configID []byte, treeSize uint64,
	timestamp int64, root []byte) []byte {
	input := make([]byte, 0, 1+len(configID)+8+8+len(root))
	input = append(input, tag)
	input = append(input, configID...)
	input = append(input, utils.ULongToBytes(treeSize)...)
	input = append(input, utils.LongToBytes(timestamp)...)
	input = append(input, root...)
	return input
}

// SignTreeHead signs the directory's view of the log: the root at
// treeSize, observed at timestamp, under the directory's long-term
// signing key.
func SignTreeHead(signKey sign.PrivateKey, configID []byte,
	treeSize uint64, timestamp int64, root []byte) *TreeHead {
	return &TreeHead{
		TreeSize:  treeSize,
		Timestamp: timestamp,
		Signature: signKey.Sign(serializeHead(directoryHeadTag, configID, treeSize, timestamp, root)),
	}
}

// Verify checks the directory's signature on a tree head against the
// claimed root.
func (th *TreeHead) Verify(pk sign.PublicKey, configID, root []byte) bool {
	return pk.Verify(serializeHead(directoryHeadTag, configID, th.TreeSize, th.Timestamp, root),
		th.Signature)
}

// SignAuditorHead signs an auditor's view of the log under the
// auditor's own key.
func SignAuditorHead(signKey sign.PrivateKey, configID []byte,
	treeSize uint64, timestamp int64, root []byte) *TreeHead {
	return &TreeHead{
		TreeSize:  treeSize,
		Timestamp: timestamp,
		Signature: signKey.Sign(serializeHead(auditorHeadTag, configID, treeSize, timestamp, root)),
	}
}

// VerifyAuditor checks an auditor's signature on a tree head against
// the claimed root.
func (th *TreeHead) VerifyAuditor(pk sign.PublicKey, configID, root []byte) bool {
	return pk.Verify(serializeHead(auditorHeadTag, configID, th.TreeSize, th.Timestamp, root),
		th.Signature)
}

// Verify checks an auditor tree head as attached to a directory
// response against the directory's current size and root. The
// auditor's signature must cover the root at its observed size, that
// size may not exceed the current one, and when it is smaller the
// attached proof must show the auditor's root is a prefix of the
// current one. When the sizes match the bridging fields must be
// absent.
func (a *AuditorTreeHead) Verify(auditorKey sign.PublicKey, configID []byte,
	treeSize uint64, root []byte) error {
	if a.TreeHead == nil {
		return ErrMalformedDirectoryMessage
	}
	switch {
	case a.TreeHead.TreeSize > treeSize:
		return CheckBadAuditorHead
	case a.TreeHead.TreeSize == treeSize:
		if a.RootValue != nil || a.Consistency != nil {
			return ErrMalformedDirectoryMessage
		}
		if !a.TreeHead.VerifyAuditor(auditorKey, configID, root) {
			return CheckBadSignature
		}
	default:
		if !a.TreeHead.VerifyAuditor(auditorKey, configID, a.RootValue) {
			return CheckBadSignature
		}
		if err := logtree.VerifyConsistency(a.TreeHead.TreeSize, treeSize,
			a.RootValue, root, a.Consistency); err != nil {
			return CheckBadAuditorHead
		}
	}
	return nil
}
