package directorykv

import (
	"testing"

	"github.com/keytrace/keytrace-go/protocol"
	"github.com/keytrace/keytrace-go/protocol/directory"
	"github.com/keytrace/keytrace-go/storage/kv"
	"github.com/keytrace/keytrace-go/utils"
)

func TestAuditorHeadStoreLoad(t *testing.T) {
	utils.WithDB(func(db kv.DB) {
		d, auditorKey, auditorPub := directory.NewTestAuditedDirectory(t)
		directory.MustAppend(t, d, "alice", "alice-key-1")
		directory.MustAppend(t, d, "bob", "bob-key-1")

		if _, err := LoadAuditorHead(db); err != db.ErrNotFound() {
			t.Fatal("Expect", db.ErrNotFound(), "got", err)
		}

		head := protocol.SignAuditorHead(auditorKey, d.ConfigID(), 1,
			1700000000000, directory.ReplayRoot(t, d, 1))
		if err := StoreAuditorHead(db, head); err != nil {
			t.Fatal(err)
		}
		newer := protocol.SignAuditorHead(auditorKey, d.ConfigID(), 2,
			1700000005000, directory.ReplayRoot(t, d, 2))
		if err := StoreAuditorHead(db, newer); err != nil {
			t.Fatal(err)
		}

		got, err := LoadAuditorHead(db)
		if err != nil {
			t.Fatal(err)
		}
		if got.TreeSize != 2 {
			t.Fatal("Wrong auditor head size:", got.TreeSize)
		}
		if !got.VerifyAuditor(auditorPub, d.ConfigID(), directory.ReplayRoot(t, d, 2)) {
			t.Error("Loaded auditor head doesn't verify")
		}
	})
}
