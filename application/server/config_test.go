package server

import (
	"bytes"
	"os"
	"path"
	"testing"

	"github.com/keytrace/keytrace-go/application"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/utils"
)

func TestConfigLoadRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "ktserverTest")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	file := path.Join(dir, "config.toml")

	signKey, err := sign.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	vrfKey, err := vrf.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := utils.WriteFile(path.Join(dir, "sign.priv"), signKey, 0600); err != nil {
		t.Fatal(err)
	}
	if err := utils.WriteFile(path.Join(dir, "vrf.priv"), vrfKey[:], 0600); err != nil {
		t.Fatal(err)
	}

	addrs := []*Address{
		{
			ServerAddress: &application.ServerAddress{
				Address:     "tcp://0.0.0.0:3000",
				TLSCertPath: "server.pem",
				TLSKeyPath:  "server.key",
			},
		},
		{
			ServerAddress: &application.ServerAddress{
				Address: "unix:///tmp/keytrace.sock",
			},
			AllowAppend: true,
		},
	}
	conf := NewConfig(file, "toml", addrs, nil, "ktserver.db",
		NewPolicies(60, "vrf.priv", "sign.priv", "", vrf.PrivateKey{}, nil, nil))
	if err := conf.Save(); err != nil {
		t.Fatal(err)
	}

	var loaded Config
	if err := loaded.Load(file, "toml"); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(loaded.Policies.signKey, signKey) {
		t.Fatal("Expect the parsed signing key to round-trip")
	}
	if loaded.Policies.vrfKey != vrfKey {
		t.Fatal("Expect the parsed VRF key to round-trip")
	}
	if loaded.Policies.HeadRefreshInterval != 60 {
		t.Fatal("Expect head refresh interval", 60, "got",
			loaded.Policies.HeadRefreshInterval)
	}
	if loaded.DBPath != path.Join(dir, "ktserver.db") {
		t.Fatal("Expect a resolved DB path got", loaded.DBPath)
	}
	if len(loaded.Addresses) != 2 {
		t.Fatal("Expect", 2, "addresses got", len(loaded.Addresses))
	}
	if loaded.Addresses[0].TLSCertPath != path.Join(dir, "server.pem") {
		t.Fatal("Expect a resolved TLS cert path got",
			loaded.Addresses[0].TLSCertPath)
	}
	if loaded.Addresses[0].AllowAppend || !loaded.Addresses[1].AllowAppend {
		t.Fatal("Expect append permissions to round-trip")
	}
}
