package directory

import (
	"bytes"
	"testing"

	"github.com/keytrace/keytrace-go/crypto"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/logtree"
	"github.com/keytrace/keytrace-go/protocol"
)

var staticSigningKey = crypto.NewStaticTestSigningKey()
var staticVRFKey = crypto.NewStaticTestVRFKey()

// NewTestDirectory creates a Directory used for testing server-side
// operations, without a configured auditor.
func NewTestDirectory(t *testing.T) (*Directory, sign.PublicKey) {
	pk, ok := staticSigningKey.Public()
	if !ok {
		t.Fatal("Couldn't derive the public signing key")
	}
	return New(staticVRFKey, staticSigningKey, nil), pk
}

// NewTestAuditedDirectory creates a Directory with a deterministic
// auditor key pair wired in, and returns the auditor's keys alongside.
func NewTestAuditedDirectory(t *testing.T) (*Directory, sign.PrivateKey, sign.PublicKey) {
	auditorKey, err := sign.GenerateKey(bytes.NewReader(
		[]byte("auditor tests also need 256 bits of deterministic entropy")))
	if err != nil {
		t.Fatal(err)
	}
	auditorPub, ok := auditorKey.Public()
	if !ok {
		t.Fatal("Couldn't derive the auditor public key")
	}
	return New(staticVRFKey, staticSigningKey, auditorPub), auditorKey, auditorPub
}

// MustAppend appends one key version and fails the test on any error.
func MustAppend(t *testing.T, d *Directory, key, value string) *protocol.AppendResponse {
	res, err := d.Append(&protocol.AppendRequest{
		SearchKey: []byte(key),
		Value:     []byte(value),
	})
	if err != protocol.ReqSuccess {
		t.Fatal("Expect error code", protocol.ReqSuccess, "got", err)
	}
	return res.DirectoryResponse.(*protocol.AppendResponse)
}

// ReplayRoot rebuilds the directory's log from its audit interface and
// returns the root at the given size, letting tests check signed heads
// without reaching into directory internals.
func ReplayRoot(t *testing.T, d *Directory, size uint64) []byte {
	tree := logtree.NewTree()
	for tree.Size() < size {
		res, err := d.Audit(&protocol.AuditRequest{Start: tree.Size(), Limit: size - tree.Size()})
		if err != protocol.ReqSuccess {
			t.Fatal("Expect error code", protocol.ReqSuccess, "got", err)
		}
		for _, ent := range res.DirectoryResponse.(*protocol.AuditResponse).Entries {
			tree.Append(crypto.HashLogLeaf(ent.Position, ent.PrefixRoot, ent.Commitment))
		}
	}
	root, err := tree.RootAt(size)
	if err != nil {
		t.Fatal(err)
	}
	return root
}
