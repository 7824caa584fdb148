package protocol

import (
	"bytes"
	"testing"

	"github.com/keytrace/keytrace-go/crypto"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/logtree"
	"github.com/keytrace/keytrace-go/utils"
)

var testTimestamp = int64(1700000000000)

func testConfig(t *testing.T) (sign.PrivateKey, sign.PublicKey, []byte) {
	signKey := crypto.NewStaticTestSigningKey()
	pk, ok := signKey.Public()
	if !ok {
		t.Fatal("Couldn't derive the public signing key")
	}
	vrfKey := crypto.NewStaticTestVRFKey()
	vrfPub, ok := vrfKey.Public()
	if !ok {
		t.Fatal("Couldn't derive the public VRF key")
	}
	return signKey, pk, ConfigID(pk, vrfPub)
}

func testAuditorKey(t *testing.T) (sign.PrivateKey, sign.PublicKey) {
	key, err := sign.GenerateKey(bytes.NewReader(
		[]byte("auditor tests also need 256 bits of deterministic entropy")))
	if err != nil {
		t.Fatal(err)
	}
	pk, ok := key.Public()
	if !ok {
		t.Fatal("Couldn't derive the auditor public key")
	}
	return key, pk
}

func testLog(t *testing.T, size uint64) *logtree.Tree {
	tree := logtree.NewTree()
	for i := uint64(0); i < size; i++ {
		tree.Append(crypto.Digest(utils.ULongToBytes(i)))
	}
	return tree
}

func TestTreeHeadSignVerify(t *testing.T) {
	signKey, pk, configID := testConfig(t)
	tree := testLog(t, 8)
	root := tree.Root()

	th := SignTreeHead(signKey, configID, tree.Size(), testTimestamp, root)
	if !th.Verify(pk, configID, root) {
		t.Fatal("Signed tree head doesn't verify")
	}

	if th.Verify(pk, configID, crypto.Digest([]byte("other root"))) {
		t.Error("Tree head verified against the wrong root")
	}
	if th.Verify(pk, crypto.Digest([]byte("other config")), root) {
		t.Error("Tree head verified against the wrong config")
	}

	tampered := *th
	tampered.TreeSize++
	if tampered.Verify(pk, configID, root) {
		t.Error("Tree head verified with a tampered size")
	}
	tampered = *th
	tampered.Timestamp++
	if tampered.Verify(pk, configID, root) {
		t.Error("Tree head verified with a tampered timestamp")
	}
	tampered = *th
	tampered.Signature = append([]byte(nil), th.Signature...)
	tampered.Signature[0] ^= 0xff
	if tampered.Verify(pk, configID, root) {
		t.Error("Tree head verified with a tampered signature")
	}
}

func TestHeadTagSeparation(t *testing.T) {
	signKey, pk, configID := testConfig(t)
	tree := testLog(t, 4)
	root := tree.Root()

	// the same key signing the same head in each role must not
	// produce signatures valid in the other role
	dir := SignTreeHead(signKey, configID, tree.Size(), testTimestamp, root)
	if dir.VerifyAuditor(pk, configID, root) {
		t.Error("Directory head verified as an auditor head")
	}
	aud := SignAuditorHead(signKey, configID, tree.Size(), testTimestamp, root)
	if aud.Verify(pk, configID, root) {
		t.Error("Auditor head verified as a directory head")
	}
	if !aud.VerifyAuditor(pk, configID, root) {
		t.Fatal("Signed auditor head doesn't verify")
	}
}

func TestAuditorHeadCurrent(t *testing.T) {
	_, _, configID := testConfig(t)
	auditorKey, auditorPub := testAuditorKey(t)
	tree := testLog(t, 8)
	root := tree.Root()

	ath := &AuditorTreeHead{
		TreeHead: SignAuditorHead(auditorKey, configID, 8, testTimestamp, root),
	}
	if err := ath.Verify(auditorPub, configID, 8, root); err != nil {
		t.Fatal("Fully caught-up auditor head doesn't verify:", err)
	}

	// bridging fields are only allowed on a head that is behind
	stray := &AuditorTreeHead{
		TreeHead:  ath.TreeHead,
		RootValue: root,
	}
	if err := stray.Verify(auditorPub, configID, 8, root); err != ErrMalformedDirectoryMessage {
		t.Error("Expect error code", ErrMalformedDirectoryMessage, "got", err)
	}
	stray = &AuditorTreeHead{
		TreeHead:    ath.TreeHead,
		Consistency: [][]byte{crypto.Digest([]byte("bogus"))},
	}
	if err := stray.Verify(auditorPub, configID, 8, root); err != ErrMalformedDirectoryMessage {
		t.Error("Expect error code", ErrMalformedDirectoryMessage, "got", err)
	}

	missing := &AuditorTreeHead{}
	if err := missing.Verify(auditorPub, configID, 8, root); err != ErrMalformedDirectoryMessage {
		t.Error("Expect error code", ErrMalformedDirectoryMessage, "got", err)
	}
}

func TestAuditorHeadBehind(t *testing.T) {
	signKey, _, configID := testConfig(t)
	auditorKey, auditorPub := testAuditorKey(t)
	tree := testLog(t, 8)
	root := tree.Root()

	oldRoot, err := tree.RootAt(5)
	if err != nil {
		t.Fatal(err)
	}
	proof, err := tree.ConsistencyProof(5, 8)
	if err != nil {
		t.Fatal(err)
	}
	ath := &AuditorTreeHead{
		TreeHead:    SignAuditorHead(auditorKey, configID, 5, testTimestamp, oldRoot),
		RootValue:   oldRoot,
		Consistency: proof,
	}
	if err := ath.Verify(auditorPub, configID, 8, root); err != nil {
		t.Fatal("Lagging auditor head doesn't verify:", err)
	}

	// the signature must cover the auditor's own root, not ours
	tampered := *ath
	tampered.RootValue = crypto.Digest([]byte("other root"))
	if err := tampered.Verify(auditorPub, configID, 8, root); err != CheckBadSignature {
		t.Error("Expect error code", CheckBadSignature, "got", err)
	}

	tampered = *ath
	tampered.Consistency = append([][]byte(nil), ath.Consistency...)
	tampered.Consistency[0] = crypto.Digest([]byte("bogus"))
	if err := tampered.Verify(auditorPub, configID, 8, root); err != CheckBadAuditorHead {
		t.Error("Expect error code", CheckBadAuditorHead, "got", err)
	}

	// a head signed by the directory key is not an auditor head
	forged := *ath
	forged.TreeHead = SignAuditorHead(signKey, configID, 5, testTimestamp, oldRoot)
	if err := forged.Verify(auditorPub, configID, 8, root); err != CheckBadSignature {
		t.Error("Expect error code", CheckBadSignature, "got", err)
	}
}

func TestAuditorHeadAhead(t *testing.T) {
	_, _, configID := testConfig(t)
	auditorKey, auditorPub := testAuditorKey(t)
	tree := testLog(t, 8)

	ath := &AuditorTreeHead{
		TreeHead: SignAuditorHead(auditorKey, configID, 9, testTimestamp,
			crypto.Digest([]byte("imaginary root"))),
	}
	if err := ath.Verify(auditorPub, configID, 8, tree.Root()); err != CheckBadAuditorHead {
		t.Error("Expect error code", CheckBadAuditorHead, "got", err)
	}
}
