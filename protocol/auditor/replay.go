package auditor

import (
	"time"

	"github.com/keytrace/keytrace-go/crypto"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/logtree"
	"github.com/keytrace/keytrace-go/protocol"
)

// An Auditor replays a directory's raw log entries into its own copy
// of the log tree, verifies the directory's signed heads against the
// replayed roots, and signs its own view for the directory to
// distribute to clients.
type Auditor struct {
	*AudState
	headKey sign.PrivateKey
	log     *logtree.Tree
}

// NewAuditor constructs an auditor over an audit state. headKey is
// the auditor's own signing key, whose public half the directory and
// its clients pin.
func NewAuditor(state *AudState, headKey sign.PrivateKey) *Auditor {
	return &Auditor{
		AudState: state,
		headKey:  headKey,
		log:      logtree.NewTree(),
	}
}

// Size returns the number of replayed log entries.
func (a *Auditor) Size() uint64 {
	return a.log.Size()
}

// AuditRequest returns the request fetching the next run of log
// entries, continuing where the replay stopped.
func (a *Auditor) AuditRequest(limit uint64) *protocol.Request {
	return &protocol.Request{
		Type: protocol.AuditType,
		Request: &protocol.AuditRequest{
			Start: a.log.Size(),
			Limit: limit,
		},
	}
}

// ProcessEntries ingests one audit response: every entry must
// continue the replayed log exactly, and on the final page the
// directory's signed head must cover the replayed root. It returns
// true while more pages remain.
// ProcessEntries() is called on the response to an AuditRequest.
func (a *Auditor) ProcessEntries(msg *protocol.Response) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}
	df, ok := msg.DirectoryResponse.(*protocol.AuditResponse)
	if !ok || msg.Error != protocol.ReqSuccess {
		return false, protocol.ErrMalformedDirectoryMessage
	}

	for _, ent := range df.Entries {
		if ent.Position != a.log.Size() {
			return false, protocol.ErrMalformedDirectoryMessage
		}
		a.log.Append(crypto.HashLogLeaf(ent.Position, ent.PrefixRoot, ent.Commitment))
	}

	if df.More {
		if df.TreeHead.TreeSize < a.log.Size() {
			return false, protocol.CheckBadTreeHead
		}
		return true, nil
	}
	// the final page must land exactly on the signed size
	if df.TreeHead.TreeSize != a.log.Size() {
		return false, protocol.CheckBadTreeHead
	}
	root := a.log.Root()
	if err := a.VerifyDirectoryHead(df.TreeHead, root); err != nil {
		return false, err
	}
	a.Update(df.TreeHead, root)
	return false, nil
}

// SignedHead signs the auditor's latest verified view of the log and
// wraps it for pushing to the directory. The signature only ever
// covers state that passed a full audit round, never raw replayed
// entries; before the first verified round SignedHead returns nil.
func (a *Auditor) SignedHead() *protocol.Request {
	verified := a.Verified()
	if verified == nil {
		return nil
	}
	head := protocol.SignAuditorHead(a.headKey, a.ConfigID(),
		verified.TreeHead.TreeSize, time.Now().UnixMilli(), verified.Root)
	return &protocol.Request{
		Type:    protocol.AuditorHeadType,
		Request: &protocol.AuditorHeadRequest{TreeHead: head},
	}
}

// CheckObservedHead checks the directory's answer to a pushed head:
// the returned head must be signed over a root consistent with the
// auditor's replayed log.
// CheckObservedHead() is called on the response to an
// AuditorHeadRequest.
func (a *Auditor) CheckObservedHead(msg *protocol.Response) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	df, ok := msg.DirectoryResponse.(*protocol.ObservedHead)
	if !ok || msg.Error != protocol.ReqSuccess {
		return protocol.ErrMalformedDirectoryMessage
	}
	head := df.TreeHead
	switch {
	case head.TreeSize < a.log.Size():
		return protocol.CheckBadTreeHead
	case head.TreeSize == a.log.Size():
		return a.VerifyDirectoryHead(head, a.log.Root())
	default:
		// the directory is ahead; the next audit round verifies it
		return nil
	}
}
