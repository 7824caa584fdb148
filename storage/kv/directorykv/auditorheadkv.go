package directorykv

import (
	"encoding/json"

	"github.com/keytrace/keytrace-go/protocol"
	"github.com/keytrace/keytrace-go/storage/kv"
)

// StoreAuditorHead stores head into the db.
// StoreAuditorHead uses the same key for every head, so the previously
// observed head is replaced by the newly stored one.
func StoreAuditorHead(db kv.DB, head *protocol.TreeHead) error {
	wb := db.NewBatch()
	buf, err := json.Marshal(head)
	if err != nil {
		return err
	}

	wb.Put([]byte{AuditorHeadIdentifier}, buf)
	return db.Write(wb)
}

// LoadAuditorHead loads the auditor head last stored into the db.
func LoadAuditorHead(db kv.DB) (*protocol.TreeHead, error) {
	buf, err := db.Get([]byte{AuditorHeadIdentifier})
	if err != nil {
		return nil, err
	}
	head := new(protocol.TreeHead)
	if err := json.Unmarshal(buf, head); err != nil {
		return nil, err
	}
	return head, nil
}
