package auditor

import (
	"bytes"
	"testing"
	"time"

	"github.com/keytrace/keytrace-go/crypto"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/logtree"
	"github.com/keytrace/keytrace-go/protocol"
	"github.com/keytrace/keytrace-go/protocol/directory"
)

func testVRFPublicKey(t *testing.T) vrf.PublicKey {
	pk, ok := crypto.NewStaticTestVRFKey().Public()
	if !ok {
		t.Fatal("Couldn't derive the public VRF key")
	}
	return pk
}

func newTestAuditor(t *testing.T) (*directory.Directory, *Auditor) {
	d, auditorKey, directoryPub := directory.NewTestAuditedDirectory(t)
	state := New(directoryPub, testVRFPublicKey(t), nil, nil)
	return d, NewAuditor(state, auditorKey)
}

func fillTestDirectory(t *testing.T, d *directory.Directory) {
	for _, upd := range []struct{ key, value string }{
		{"alice", "alice-key-1"},
		{"bob", "bob-key-1"},
		{"alice", "alice-key-2"},
		{"bob", "bob-key-2"},
		{"carol", "carol-key-1"},
		{"alice", "alice-key-3"},
	} {
		directory.MustAppend(t, d, upd.key, upd.value)
	}
}

func auditPage(t *testing.T, d *directory.Directory, a *Auditor,
	limit uint64) *protocol.Response {
	res, err := d.Audit(a.AuditRequest(limit).Request.(*protocol.AuditRequest))
	if err != protocol.ReqSuccess {
		t.Fatal("Expect error code", protocol.ReqSuccess, "got", err)
	}
	return res
}

func auditAll(t *testing.T, d *directory.Directory, a *Auditor) {
	for {
		more, err := a.ProcessEntries(auditPage(t, d, a, 1000))
		if err != nil {
			t.Fatal("Expect the audit round to succeed, got", err)
		}
		if !more {
			return
		}
	}
}

func TestAuditorReplay(t *testing.T) {
	d, aud := newTestAuditor(t)
	fillTestDirectory(t, d)

	pages := 0
	for {
		more, err := aud.ProcessEntries(auditPage(t, d, aud, 2))
		if err != nil {
			t.Fatal("Expect the audit round to succeed, got", err)
		}
		pages++
		if !more {
			break
		}
	}
	if pages != 3 {
		t.Fatal("Expect 3 pages of 2 entries, got", pages)
	}
	if aud.Size() != d.Size() {
		t.Fatal("Expect replayed size", d.Size(), "got", aud.Size())
	}
	verified := aud.Verified()
	if verified == nil || verified.TreeHead.TreeSize != d.Size() {
		t.Fatal("Expect the verified state to cover the whole log")
	}

	// the next round picks up only what was appended since
	directory.MustAppend(t, d, "dave", "dave-key-1")
	res := auditPage(t, d, aud, 1000)
	df := res.DirectoryResponse.(*protocol.AuditResponse)
	if len(df.Entries) != 1 || df.Entries[0].Position != 6 {
		t.Fatal("Expect a single new entry at position 6")
	}
	if _, err := aud.ProcessEntries(res); err != nil {
		t.Fatal("Expect the audit round to succeed, got", err)
	}
	if aud.Verified().TreeHead.TreeSize != 7 {
		t.Fatal("Expect the verified state to advance to 7, got",
			aud.Verified().TreeHead.TreeSize)
	}
}

func TestAuditorPushesHead(t *testing.T) {
	d, aud := newTestAuditor(t)

	if aud.SignedHead() != nil {
		t.Fatal("Expect no signed head before the first verified round")
	}

	fillTestDirectory(t, d)
	auditAll(t, d, aud)

	push := aud.SignedHead().Request.(*protocol.AuditorHeadRequest)
	res, err := d.SetAuditorHead(push)
	if err != protocol.ReqSuccess {
		t.Fatal("Expect error code", protocol.ReqSuccess, "got", err)
	}
	if err := aud.CheckObservedHead(res); err != nil {
		t.Fatal("Expect the observed head to check out, got", err)
	}

	// the directory has moved on since the last audit round: the
	// observed head runs ahead of the replayed log and is left to the
	// next round
	directory.MustAppend(t, d, "dave", "dave-key-1")
	res, err = d.SetAuditorHead(push)
	if err != protocol.ReqSuccess {
		t.Fatal("Expect error code", protocol.ReqSuccess, "got", err)
	}
	if err := aud.CheckObservedHead(res); err != nil {
		t.Fatal("Expect an observed head ahead of the replay to pass, got", err)
	}

	// an observed head shrinking below the replayed log is a fork
	forged := &protocol.Response{
		Error: protocol.ReqSuccess,
		DirectoryResponse: &protocol.ObservedHead{
			TreeHead: &protocol.TreeHead{TreeSize: 2, Signature: []byte("sig")},
		},
	}
	if err := aud.CheckObservedHead(forged); err != protocol.CheckBadTreeHead {
		t.Fatal("Expect error code", protocol.CheckBadTreeHead, "got", err)
	}
}

func TestAuditorRejectsGap(t *testing.T) {
	d, aud := newTestAuditor(t)
	fillTestDirectory(t, d)

	res := auditPage(t, d, aud, 1000)
	df := res.DirectoryResponse.(*protocol.AuditResponse)
	df.Entries = df.Entries[1:]
	if _, err := aud.ProcessEntries(res); err != protocol.ErrMalformedDirectoryMessage {
		t.Fatal("Expect error code", protocol.ErrMalformedDirectoryMessage, "got", err)
	}
	if aud.Size() != 0 {
		t.Fatal("Expect no entry of a gapped response to be replayed, got", aud.Size())
	}
}

func TestAuditorRejectsTamperedEntry(t *testing.T) {
	d, aud := newTestAuditor(t)
	fillTestDirectory(t, d)

	res := auditPage(t, d, aud, 1000)
	df := res.DirectoryResponse.(*protocol.AuditResponse)
	ent := *df.Entries[2]
	ent.Commitment = append([]byte{}, ent.Commitment...)
	ent.Commitment[0] ^= 1
	df.Entries[2] = &ent
	// the tampered leaf surfaces as a head signature over a different root
	if _, err := aud.ProcessEntries(res); err != protocol.CheckBadSignature {
		t.Fatal("Expect error code", protocol.CheckBadSignature, "got", err)
	}
}

func TestAuditorRejectsTruncatedLog(t *testing.T) {
	d, aud := newTestAuditor(t)
	fillTestDirectory(t, d)

	res := auditPage(t, d, aud, 1000)
	df := res.DirectoryResponse.(*protocol.AuditResponse)
	df.Entries = df.Entries[:4]
	if _, err := aud.ProcessEntries(res); err != protocol.CheckBadTreeHead {
		t.Fatal("Expect error code", protocol.CheckBadTreeHead, "got", err)
	}
}

func TestAuditorRejectsShrunkHead(t *testing.T) {
	d, aud := newTestAuditor(t)
	fillTestDirectory(t, d)

	res := auditPage(t, d, aud, 2)
	df := res.DirectoryResponse.(*protocol.AuditResponse)
	if !df.More {
		t.Fatal("Expect more entries past the first page")
	}
	shrunk := *df.TreeHead
	shrunk.TreeSize = 1
	df.TreeHead = &shrunk
	if _, err := aud.ProcessEntries(res); err != protocol.CheckBadTreeHead {
		t.Fatal("Expect error code", protocol.CheckBadTreeHead, "got", err)
	}
}

func TestAuditorRejectsStaleHead(t *testing.T) {
	d, aud := newTestAuditor(t)
	fillTestDirectory(t, d)

	// a replayed old response: correctly signed over the right root,
	// but two days old
	res := auditPage(t, d, aud, 1000)
	df := res.DirectoryResponse.(*protocol.AuditResponse)
	stale := time.Now().Add(-48 * time.Hour).UnixMilli()
	root := directory.ReplayRoot(t, d, d.Size())
	df.TreeHead = protocol.SignTreeHead(crypto.NewStaticTestSigningKey(),
		aud.ConfigID(), d.Size(), stale, root)
	if _, err := aud.ProcessEntries(res); err != protocol.CheckBadTimestamp {
		t.Fatal("Expect error code", protocol.CheckBadTimestamp, "got", err)
	}
}

func TestConsistencyParameters(t *testing.T) {
	_, aud := newTestAuditor(t)
	if params := aud.ConsistencyParameters(); params != nil {
		t.Fatal("Expect no parameters before first contact, got", params)
	}

	aud.Update(&protocol.TreeHead{TreeSize: 4}, []byte("root4"))
	params := aud.ConsistencyParameters()
	if params == nil || params.Last == nil || *params.Last != 4 {
		t.Fatal("Expect the verified size in the parameters")
	}
	if params.Distinguished != nil {
		t.Fatal("Expect no distinguished size before pinning")
	}

	aud.SetDistinguished()
	aud.Update(&protocol.TreeHead{TreeSize: 9}, []byte("root9"))
	params = aud.ConsistencyParameters()
	if params.Last == nil || *params.Last != 9 {
		t.Fatal("Expect the verified size to advance to 9")
	}
	if params.Distinguished == nil || *params.Distinguished != 4 {
		t.Fatal("Expect the distinguished size to stay pinned at 4")
	}
}

func TestCheckFullTreeHead(t *testing.T) {
	signKey := crypto.NewStaticTestSigningKey()
	directoryPub, ok := signKey.Public()
	if !ok {
		t.Fatal("Couldn't derive the public signing key")
	}
	state := New(directoryPub, testVRFPublicKey(t), nil, nil)

	log := logtree.NewTree()
	for i := 0; i < 8; i++ {
		log.Append(crypto.Digest([]byte{byte(i)}))
	}
	now := time.Now().UnixMilli()
	root5, err := log.RootAt(5)
	if err != nil {
		t.Fatal(err)
	}
	head5 := protocol.SignTreeHead(signKey, state.ConfigID(), 5, now, root5)

	// first contact is checked without any consistency proof
	if err := state.CheckFullTreeHead(&protocol.FullTreeHead{TreeHead: head5},
		root5); err != nil {
		t.Fatal("Expect the first head to check out, got", err)
	}
	state.Update(head5, root5)

	// revisiting the verified size needs no proof either
	if err := state.CheckFullTreeHead(&protocol.FullTreeHead{TreeHead: head5},
		root5); err != nil {
		t.Fatal("Expect the verified head to check out again, got", err)
	}

	root := log.Root()
	head := protocol.SignTreeHead(signKey, state.ConfigID(), 8, now, root)
	proof, err := log.ConsistencyProof(5, 8)
	if err != nil {
		t.Fatal(err)
	}
	fth := &protocol.FullTreeHead{TreeHead: head, Consistency: proof}
	if err := state.CheckFullTreeHead(fth, root); err != nil {
		t.Fatal("Expect the extended head to check out, got", err)
	}

	// a grown head without the requested consistency proof
	if err := state.CheckFullTreeHead(&protocol.FullTreeHead{TreeHead: head},
		root); err != protocol.CheckBadConsistency {
		t.Fatal("Expect error code", protocol.CheckBadConsistency, "got", err)
	}

	// a forged signature
	forged := *head
	forged.Signature = append([]byte{}, head.Signature...)
	forged.Signature[0] ^= 1
	if err := state.CheckFullTreeHead(&protocol.FullTreeHead{TreeHead: &forged,
		Consistency: proof}, root); err != protocol.CheckBadSignature {
		t.Fatal("Expect error code", protocol.CheckBadSignature, "got", err)
	}

	// once the verified state advanced, an older head is a regression
	state.Update(head, root)
	if err := state.CheckFullTreeHead(&protocol.FullTreeHead{TreeHead: head5},
		root5); err != protocol.CheckBadTreeHead {
		t.Fatal("Expect error code", protocol.CheckBadTreeHead, "got", err)
	}

	// the distinguished size keeps its own proof slot
	state = New(directoryPub, testVRFPublicKey(t), nil,
		&VerifiedState{TreeHead: head5, Root: root5})
	state.SetDistinguished()
	if err := state.CheckFullTreeHead(&protocol.FullTreeHead{TreeHead: head,
		Consistency: proof}, root); err != protocol.CheckBadConsistency {
		t.Fatal("Expect error code", protocol.CheckBadConsistency, "got", err)
	}
	fth = &protocol.FullTreeHead{TreeHead: head, Consistency: proof,
		Distinguished: proof}
	if err := state.CheckFullTreeHead(fth, root); err != nil {
		t.Fatal("Expect the distinguished proof to check out, got", err)
	}
}

func TestCheckAuditorHeadPolicy(t *testing.T) {
	signKey := crypto.NewStaticTestSigningKey()
	directoryPub, ok := signKey.Public()
	if !ok {
		t.Fatal("Couldn't derive the public signing key")
	}
	auditorKey, err := sign.GenerateKey(bytes.NewReader(
		[]byte("auditor tests also need 256 bits of deterministic entropy")))
	if err != nil {
		t.Fatal(err)
	}
	auditorPub, ok := auditorKey.Public()
	if !ok {
		t.Fatal("Couldn't derive the auditor public key")
	}

	log := logtree.NewTree()
	for i := 0; i < 8; i++ {
		log.Append(crypto.Digest([]byte{byte(i)}))
	}
	now := time.Now().UnixMilli()
	root := log.Root()

	pinned := New(directoryPub, testVRFPublicKey(t), auditorPub, nil)
	head := protocol.SignTreeHead(signKey, pinned.ConfigID(), 8, now, root)

	// a pinned auditor key fails closed on a missing auditor head
	if err := pinned.CheckFullTreeHead(&protocol.FullTreeHead{TreeHead: head},
		root); err != protocol.CheckBadAuditorHead {
		t.Fatal("Expect error code", protocol.CheckBadAuditorHead, "got", err)
	}

	caughtUp := &protocol.AuditorTreeHead{
		TreeHead: protocol.SignAuditorHead(auditorKey, pinned.ConfigID(), 8, now, root),
	}
	fth := &protocol.FullTreeHead{TreeHead: head, AuditorTreeHead: caughtUp}
	if err := pinned.CheckFullTreeHead(fth, root); err != nil {
		t.Fatal("Expect a caught-up auditor head to check out, got", err)
	}

	// an auditor lagging behind the directory bridges with an older
	// root and its consistency proof
	root5, err := log.RootAt(5)
	if err != nil {
		t.Fatal(err)
	}
	bridge, err := log.ConsistencyProof(5, 8)
	if err != nil {
		t.Fatal(err)
	}
	behind := &protocol.AuditorTreeHead{
		TreeHead:    protocol.SignAuditorHead(auditorKey, pinned.ConfigID(), 5, now, root5),
		RootValue:   root5,
		Consistency: bridge,
	}
	fth = &protocol.FullTreeHead{TreeHead: head, AuditorTreeHead: behind}
	if err := pinned.CheckFullTreeHead(fth, root); err != nil {
		t.Fatal("Expect a lagging auditor head to check out, got", err)
	}

	// auditors answer on their own cadence, but not a week late
	expired := &protocol.AuditorTreeHead{
		TreeHead: protocol.SignAuditorHead(auditorKey, pinned.ConfigID(), 8,
			time.Now().Add(-8*24*time.Hour).UnixMilli(), root),
	}
	fth = &protocol.FullTreeHead{TreeHead: head, AuditorTreeHead: expired}
	if err := pinned.CheckFullTreeHead(fth, root); err != protocol.CheckBadTimestamp {
		t.Fatal("Expect error code", protocol.CheckBadTimestamp, "got", err)
	}

	// without a pinned key the attached head is ignored entirely
	unpinned := New(directoryPub, testVRFPublicKey(t), nil, nil)
	head = protocol.SignTreeHead(signKey, unpinned.ConfigID(), 8, now, root)
	garbage := &protocol.AuditorTreeHead{
		TreeHead: &protocol.TreeHead{TreeSize: 3, Signature: []byte("junk")},
	}
	fth = &protocol.FullTreeHead{TreeHead: head, AuditorTreeHead: garbage}
	if err := unpinned.CheckFullTreeHead(fth, root); err != nil {
		t.Fatal("Expect an unpinned auditor head to be ignored, got", err)
	}
}
