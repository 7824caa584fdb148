package directorykv

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/keytrace/keytrace-go/protocol/directory"
	"github.com/keytrace/keytrace-go/storage/kv"
	"github.com/keytrace/keytrace-go/utils"
)

// StoreEntry stores ent into the db under the key
// which is the combination of the EntryIdentifier
// and the entry's log position.
func StoreEntry(db kv.DB, pos uint64, ent *directory.StoredEntry) error {
	wb := db.NewBatch()
	buf, err := json.Marshal(ent)
	if err != nil {
		return err
	}

	wb.Put(entryKey(pos), buf)
	return db.Write(wb)
}

// LoadEntry loads the entry appended at the specified log position.
func LoadEntry(db kv.DB, pos uint64) (*directory.StoredEntry, error) {
	buf, err := db.Get(entryKey(pos))
	if err != nil {
		return nil, err
	}
	ent := new(directory.StoredEntry)
	if err := json.Unmarshal(buf, ent); err != nil {
		return nil, err
	}
	return ent, nil
}

// LoadEntries loads every entry stored in the db, in log order, ready
// to be replayed through directory.Restore. A position missing from
// the db means it was damaged and is reported as an error.
func LoadEntries(db kv.DB) ([]*directory.StoredEntry, error) {
	var entries []*directory.StoredEntry
	iter := db.NewIterator(kv.BytesPrefix([]byte{EntryIdentifier}))
	defer iter.Release()
	for ok := iter.First(); ok; ok = iter.Next() {
		if len(iter.Key()) != 1+8 {
			return nil, kv.ErrorBadBufferLength
		}
		pos := binary.LittleEndian.Uint64(iter.Key()[1:])
		ent := new(directory.StoredEntry)
		if err := json.Unmarshal(iter.Value(), ent); err != nil {
			return nil, err
		}
		for uint64(len(entries)) <= pos {
			entries = append(entries, nil)
		}
		entries[pos] = ent
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	for pos, ent := range entries {
		if ent == nil {
			return nil, fmt.Errorf("directorykv: missing entry at position %d", pos)
		}
	}
	return entries, nil
}

func entryKey(pos uint64) []byte {
	key := make([]byte, 0, 1+8)
	key = append(key, EntryIdentifier)
	key = append(key, utils.ULongToBytes(pos)...)
	return key
}
