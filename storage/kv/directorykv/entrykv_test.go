package directorykv

import (
	"bytes"
	"testing"

	"github.com/keytrace/keytrace-go/protocol/directory"
	"github.com/keytrace/keytrace-go/storage/kv"
	"github.com/keytrace/keytrace-go/utils"
)

func TestEntryStoreLoad(t *testing.T) {
	utils.WithDB(func(db kv.DB) {
		d, _ := directory.NewTestDirectory(t)
		for pos, update := range []struct{ key, value string }{
			{"alice", "alice-key-1"},
			{"bob", "bob-key-1"},
			{"alice", "alice-key-2"},
		} {
			df := directory.MustAppend(t, d, update.key, update.value)
			ent := &directory.StoredEntry{
				SearchKey: []byte(update.key),
				Value:     []byte(update.value),
				Opening:   df.Opening,
			}
			if err := StoreEntry(db, uint64(pos), ent); err != nil {
				t.Fatal(err)
			}
		}

		ent, err := LoadEntry(db, 2)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(ent.SearchKey, []byte("alice")) ||
			!bytes.Equal(ent.Value, []byte("alice-key-2")) {
			t.Fatal("Wrong entry at position 2")
		}
		if _, err := LoadEntry(db, 9); err != db.ErrNotFound() {
			t.Fatal("Expect", db.ErrNotFound(), "got", err)
		}

		entries, err := LoadEntries(db)
		if err != nil {
			t.Fatal(err)
		}
		restored, _ := directory.NewTestDirectory(t)
		if err := restored.Restore(entries); err != nil {
			t.Fatal(err)
		}
		if restored.Size() != d.Size() {
			t.Fatal("Wrong restored size:", restored.Size())
		}
		if !bytes.Equal(directory.ReplayRoot(t, restored, 3), directory.ReplayRoot(t, d, 3)) {
			t.Error("Restored log root differs")
		}
	})
}

func TestLoadEntriesMissingPosition(t *testing.T) {
	utils.WithDB(func(db kv.DB) {
		ent := &directory.StoredEntry{
			SearchKey: []byte("alice"),
			Value:     []byte("alice-key-1"),
			Opening:   []byte("opening"),
		}
		if err := StoreEntry(db, 0, ent); err != nil {
			t.Fatal(err)
		}
		if err := StoreEntry(db, 2, ent); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadEntries(db); err == nil {
			t.Fatal("Expect an error for the missing position")
		}
	})
}
