package client

import (
	"bytes"
	"os"
	"path"
	"testing"

	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/utils"
)

func TestConfigLoadRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "ktclientTest")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	file := path.Join(dir, "config.toml")

	signKey, err := sign.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	signPub, _ := signKey.Public()
	vrfKey, err := vrf.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	vrfPub, _ := vrfKey.Public()
	if err := utils.WriteFile(path.Join(dir, "sign.pub"), signPub, 0600); err != nil {
		t.Fatal(err)
	}
	if err := utils.WriteFile(path.Join(dir, "vrf.pub"), vrfPub[:], 0600); err != nil {
		t.Fatal(err)
	}

	conf := NewConfig(file, "toml", "sign.pub", "vrf.pub", "",
		"state.json", "", "tcp://127.0.0.1:3000")
	if err := conf.Save(); err != nil {
		t.Fatal(err)
	}

	var loaded Config
	if err := loaded.Load(file, "toml"); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(loaded.SigningPubKey, signPub) {
		t.Fatal("Expect the parsed signing public key to round-trip")
	}
	if loaded.VRFPubKey != vrfPub {
		t.Fatal("Expect the parsed VRF public key to round-trip")
	}
	if len(loaded.AuditorPubKey) != 0 {
		t.Fatal("Expect no auditor key without a configured path")
	}
	if loaded.StatePath != path.Join(dir, "state.json") {
		t.Fatal("Expect a resolved state path got", loaded.StatePath)
	}
	if loaded.Address != "tcp://127.0.0.1:3000" {
		t.Fatal("Expect the server address to round-trip got", loaded.Address)
	}
}
