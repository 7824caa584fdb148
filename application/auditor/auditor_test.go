package auditor

import (
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/keytrace/keytrace-go/application"
	"github.com/keytrace/keytrace-go/application/server"
	"github.com/keytrace/keytrace-go/application/testutil"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/protocol"
)

// auditAddress keeps these tests off the socket the server package
// tests bind.
const auditAddress = "unix:///tmp/keytrace-audit-test.sock"

func startAuditedServer(t *testing.T, dir string,
	auditorPub sign.PublicKey) (func(), sign.PublicKey, vrf.PublicKey) {
	signKey, err := sign.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	signPub, ok := signKey.Public()
	if !ok {
		t.Fatal("Couldn't derive the directory signing key")
	}
	vrfKey, err := vrf.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	vrfPub, ok := vrfKey.Public()
	if !ok {
		t.Fatal("Couldn't derive the directory VRF key")
	}

	addrs := []*server.Address{
		{
			ServerAddress: &application.ServerAddress{
				Address: auditAddress,
			},
			AllowAppend: true,
		},
	}
	conf := server.NewConfig("", "toml", addrs,
		&application.LoggerConfig{
			Environment: "development",
			Path:        path.Join(dir, "ktserver.log"),
		},
		path.Join(dir, "db"),
		server.NewPolicies(60, "", "", "", vrfKey, signKey, auditorPub))

	srv, err := server.NewServer(conf)
	if err != nil {
		t.Fatal(err)
	}
	srv.Run(conf.Addresses)
	return func() {
		if err := srv.Shutdown(); err != nil {
			t.Error(err)
		}
	}, signPub, vrfPub
}

func mustAppend(t *testing.T, key, value string) {
	req := &protocol.Request{
		Type: protocol.AppendType,
		Request: &protocol.AppendRequest{
			SearchKey: []byte(key),
			Value:     []byte(value),
		},
	}
	msg, err := application.MarshalRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	rev, err := testutil.NewUnixClient(msg, auditAddress)
	if err != nil {
		t.Fatal(err)
	}
	res := application.UnmarshalResponse(protocol.AppendType, rev)
	if res.Error != protocol.ReqSuccess {
		t.Fatal("Expect error code", protocol.ReqSuccess, "got", res.Error)
	}
}

func TestAuditDaemonRounds(t *testing.T) {
	dir, err := os.MkdirTemp("", "ktauditorTest")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	auditorKey, err := sign.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	auditorPub, ok := auditorKey.Public()
	if !ok {
		t.Fatal("Couldn't derive the auditor public key")
	}

	teardown, signPub, vrfPub := startAuditedServer(t, dir, auditorPub)
	defer teardown()

	for i := 0; i < 3; i++ {
		mustAppend(t, fmt.Sprintf("user%d", i), fmt.Sprintf("key%d", i))
	}

	conf := NewConfig("", "toml", "", "", "", auditAddress, 1, 2)
	conf.Logger = &application.LoggerConfig{Environment: "development"}
	conf.SigningPubKey = signPub
	conf.VRFPubKey = vrfPub
	conf.signKey = auditorKey
	ad := NewAuditDaemon(conf)

	// page size 2 forces the first round to fetch two pages
	if err := ad.auditRound(); err != nil {
		t.Fatal(err)
	}
	if ad.auditor.Size() != 3 {
		t.Fatal("Expect 3 replayed entries", "got", ad.auditor.Size())
	}
	if ad.auditor.Verified() == nil {
		t.Fatal("Expect a verified state after a full round")
	}

	// entries appended since the last round are replayed incrementally
	mustAppend(t, "user3", "key3")
	if err := ad.auditRound(); err != nil {
		t.Fatal(err)
	}
	if ad.auditor.Size() != 4 {
		t.Fatal("Expect 4 replayed entries", "got", ad.auditor.Size())
	}

	// a round against a caught-up directory re-pushes the head
	if err := ad.auditRound(); err != nil {
		t.Fatal(err)
	}

	// the directory attaches the pushed head to its proofs
	req := &protocol.Request{
		Type: protocol.SearchType,
		Request: &protocol.SearchRequest{
			SearchKey: []byte("user0"),
		},
	}
	msg, err := application.MarshalRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	rev, err := testutil.NewUnixClient(msg, auditAddress)
	if err != nil {
		t.Fatal(err)
	}
	res := application.UnmarshalResponse(protocol.SearchType, rev)
	if res.Error != protocol.ReqSuccess {
		t.Fatal("Expect error code", protocol.ReqSuccess, "got", res.Error)
	}
	df := res.DirectoryResponse.(*protocol.SearchResponse)
	ath := df.FullTreeHead.AuditorTreeHead
	if ath == nil {
		t.Fatal("Expect the auditor head attached to the search proof")
	}
	if !ath.TreeHead.VerifyAuditor(auditorPub,
		protocol.ConfigID(signPub, vrfPub), ad.auditor.Verified().Root) {
		t.Fatal("Expect a verifiable attached auditor head")
	}
}
