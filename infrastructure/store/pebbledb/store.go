// Package pebbledb keeps per-address sync bookkeeping: the terminal
// status and counts of the last finished session per address. This is
// operational metadata, separate from the transaction table.
package pebbledb

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

const syncRecordKeyPrefix = 0x00

type Store struct {
	db *pebble.DB
}

func NewSyncStatusStore(storeDir string) (*Store, error) {
	db, err := pebble.Open(filepath.Join(storeDir, "tx-sync-status-store"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %v", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) SetSyncRecord(address string, record entities.SyncRecord) error {
	buffer := new(bytes.Buffer)
	if err := gob.NewEncoder(buffer).Encode(record); err != nil {
		return errors.Wrap(err, "encoding sync record")
	}

	// sync to prevent data loss. performance not important.
	err := s.db.Set(syncRecordKey(address), buffer.Bytes(), pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "setting sync record for [%s]", address)
	}

	return nil
}

func (s *Store) GetSyncRecord(address string) (entities.SyncRecord, error) {
	value, closer, err := s.db.Get(syncRecordKey(address))
	if errors.Is(err, pebble.ErrNotFound) {
		return entities.SyncRecord{}, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return entities.SyncRecord{}, errors.Wrapf(err, "getting sync record for [%s]", address)
	}
	defer closer.Close()

	var record entities.SyncRecord
	if err := gob.NewDecoder(bytes.NewBuffer(value)).Decode(&record); err != nil {
		return entities.SyncRecord{}, errors.Wrap(err, "decoding sync record")
	}

	return record, nil
}

// AllSyncRecords returns the bookkeeping entries for every address that
// has finished at least one session, keyed by address.
func (s *Store) AllSyncRecords() (map[string]entities.SyncRecord, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{syncRecordKeyPrefix},
		UpperBound: []byte{syncRecordKeyPrefix + 1},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating iterator")
	}
	defer iter.Close()

	records := make(map[string]entities.SyncRecord)
	for iter.First(); iter.Valid(); iter.Next() {
		address := string(iter.Key()[1:])

		var record entities.SyncRecord
		if err := gob.NewDecoder(bytes.NewBuffer(iter.Value())).Decode(&record); err != nil {
			return nil, errors.Wrapf(err, "decoding sync record for [%s]", address)
		}
		records[address] = record
	}

	return records, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func syncRecordKey(address string) []byte {
	key := []byte{syncRecordKeyPrefix}
	return append(key, []byte(address)...)
}
