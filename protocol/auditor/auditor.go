// This module implements the generic audit state, i.e. the
// functionality that clients and auditors need to verify a
// directory's signed tree heads against their own view of the log.

package auditor

import (
	"time"

	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/logtree"
	"github.com/keytrace/keytrace-go/protocol"
)

// A VerifiedState pins one fully verified view of the log: the signed
// head and the root it was checked against. The root never travels on
// the wire, so it is recomputed from proofs and stored here.
type VerifiedState struct {
	TreeHead *protocol.TreeHead `json:"tree_head"`
	Root     []byte             `json:"root"`
}

// AudState tracks the latest verified view of a specific directory.
// This includes the directory's public keys, the most recently
// verified tree head, and an optional older distinguished head kept
// as a long-lived anchor against forks.
//
// A client or auditor creates one AudState per directory on first
// contact, or restores it from persistent storage, and then runs all
// of that directory's responses through it.
type AudState struct {
	signKey    sign.PublicKey
	vrfKey     vrf.PublicKey
	auditorKey sign.PublicKey
	configID   []byte

	verified      *VerifiedState
	distinguished *VerifiedState
}

// New instantiates a new audit state for the directory identified by
// its signing and VRF public keys. auditorKey is the public key of
// the deployment's third-party auditor and may be nil; without it
// attached auditor heads are not checked. verified is the saved state
// read from persistent storage, nil on first contact.
func New(signKey sign.PublicKey, vrfKey vrf.PublicKey,
	auditorKey sign.PublicKey, verified *VerifiedState) *AudState {
	return &AudState{
		signKey:    signKey,
		vrfKey:     vrfKey,
		auditorKey: auditorKey,
		configID:   protocol.ConfigID(signKey, vrfKey),
		verified:   verified,
	}
}

// Verified returns the latest verified state, nil before first
// contact.
func (a *AudState) Verified() *VerifiedState {
	return a.verified
}

// Distinguished returns the pinned distinguished state, nil when none
// was pinned.
func (a *AudState) Distinguished() *VerifiedState {
	return a.distinguished
}

// ConfigID returns the digest identifying the directory's key
// configuration.
func (a *AudState) ConfigID() []byte {
	return a.configID
}

// VRFPublicKey returns the directory's public VRF key.
func (a *AudState) VRFPublicKey() vrf.PublicKey {
	return a.vrfKey
}

// SetDistinguished pins the current verified state as the
// distinguished anchor. When to promote is caller policy; a typical
// client does so on a slow clock so the anchor stays days old.
func (a *AudState) SetDistinguished() {
	a.distinguished = a.verified
}

// Update commits a verified head and the root it was checked against
// as the latest verified state.
func (a *AudState) Update(head *protocol.TreeHead, root []byte) {
	a.verified = &VerifiedState{TreeHead: head, Root: root}
}

// ConsistencyParameters returns the parameters to attach to the next
// request: the verified size and, when pinned, the distinguished
// size. It returns nil before first contact, asking the directory for
// no consistency proof.
func (a *AudState) ConsistencyParameters() *protocol.ConsistencyParameters {
	if a.verified == nil {
		return nil
	}
	last := a.verified.TreeHead.TreeSize
	params := &protocol.ConsistencyParameters{Last: &last}
	if a.distinguished != nil {
		dist := a.distinguished.TreeHead.TreeSize
		params.Distinguished = &dist
	}
	return params
}

// VerifyDirectoryHead checks the directory's signature on a tree head
// against a root derived from proof material, and the head's
// freshness.
func (a *AudState) VerifyDirectoryHead(head *protocol.TreeHead, root []byte) error {
	if !head.Verify(a.signKey, a.configID, root) {
		return protocol.CheckBadSignature
	}
	return checkTimestamp(head.Timestamp, protocol.HeadMaxAge)
}

// CheckFullTreeHead runs every head-level check on a response: the
// signature over the derived root, timestamp freshness, consistency
// with the verified and distinguished states the caller asked proofs
// for, and the attached auditor head. It does not update the verified
// state; callers commit with Update only once the response's proof
// material has also been checked.
func (a *AudState) CheckFullTreeHead(fth *protocol.FullTreeHead, root []byte) error {
	head := fth.TreeHead
	if err := a.VerifyDirectoryHead(head, root); err != nil {
		return err
	}
	if a.verified != nil {
		if err := a.checkLinked(a.verified, head, root, fth.Consistency); err != nil {
			return err
		}
	}
	if a.distinguished != nil {
		if err := a.checkLinked(a.distinguished, head, root, fth.Distinguished); err != nil {
			return err
		}
	}
	return a.checkAuditorHead(fth.AuditorTreeHead, head.TreeSize, root)
}

// checkLinked verifies that the new head extends a previously
// verified state through the attached consistency proof.
func (a *AudState) checkLinked(old *VerifiedState, head *protocol.TreeHead,
	root []byte, proof [][]byte) error {
	if head.TreeSize < old.TreeHead.TreeSize {
		return protocol.CheckBadTreeHead
	}
	if err := logtree.VerifyConsistency(old.TreeHead.TreeSize, head.TreeSize,
		old.Root, root, proof); err != nil {
		return protocol.CheckBadConsistency
	}
	return nil
}

// checkAuditorHead verifies an attached auditor head when the
// deployment pins an auditor key: the auditor's signature over its
// own view, the bridge from that view to the current root, and the
// head's age. Responses without an auditor head fail closed, and
// heads from deployments without a pinned key are ignored.
func (a *AudState) checkAuditorHead(ath *protocol.AuditorTreeHead,
	treeSize uint64, root []byte) error {
	if len(a.auditorKey) == 0 {
		return nil
	}
	if ath == nil {
		return protocol.CheckBadAuditorHead
	}
	if err := ath.Verify(a.auditorKey, a.configID, treeSize, root); err != nil {
		return err
	}
	return checkTimestamp(ath.TreeHead.Timestamp, protocol.AuditorHeadMaxAge)
}

// checkTimestamp bounds a head's issuance time: at most maxAge old
// and at most the shared clock skew into the future.
func checkTimestamp(timestamp int64, maxAge time.Duration) error {
	now := time.Now().UnixMilli()
	if timestamp > now+protocol.HeadMaxSkew.Milliseconds() {
		return protocol.CheckBadTimestamp
	}
	if now-timestamp > maxAge.Milliseconds() {
		return protocol.CheckBadTimestamp
	}
	return nil
}
