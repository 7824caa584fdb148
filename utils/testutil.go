package utils

import (
	"os"

	"github.com/keytrace/keytrace-go/storage/kv"
	"github.com/keytrace/keytrace-go/storage/kv/leveldbkv"
	"github.com/syndtr/goleveldb/leveldb"
)

// WithDB runs f against a fresh leveldb-backed kv.DB rooted in a
// temporary directory, and removes the directory afterwards.
func WithDB(f func(kv.DB)) {
	dir, err := os.MkdirTemp("", "db")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		panic(err)
	}
	defer db.Close()
	f(leveldbkv.Wrap(db))
}
