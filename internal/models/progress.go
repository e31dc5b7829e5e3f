package models

import (
	"fmt"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ProgressStore maps a media id to its playback progress
type ProgressStore struct {
	store *bolthold.Store
}

// Set overwrites the record for rec.MediaID
func (s *ProgressStore) Set(rec *ProgressRecord) error {
	if err := s.store.Upsert(rec.MediaID, rec); err != nil {
		return fmt.Errorf("failed to save progress %s: %w", rec.MediaID, err)
	}
	return nil
}

// Get returns the record for mediaID, or nil when there is none
func (s *ProgressStore) Get(mediaID string) (*ProgressRecord, error) {
	var rec ProgressRecord
	if err := s.store.Get(mediaID, &rec); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get progress %s: %w", mediaID, err)
	}
	return &rec, nil
}

// Delete removes the record for mediaID; a missing record is not an error
func (s *ProgressStore) Delete(mediaID string) error {
	if _, err := txDelete(s.store, mediaID, &ProgressRecord{}); err != nil {
		return fmt.Errorf("failed to delete progress %s: %w", mediaID, err)
	}
	return nil
}

// List returns every progress record
func (s *ProgressStore) List() ([]*ProgressRecord, error) {
	var records []*ProgressRecord
	if err := s.store.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	return records, nil
}

// ListUnsynced returns the records not yet marked synced
func (s *ProgressStore) ListUnsynced() ([]*ProgressRecord, error) {
	var records []*ProgressRecord
	if err := s.store.Find(&records, bolthold.Where("Synced").Eq(false)); err != nil {
		return nil, fmt.Errorf("failed to list unsynced progress: %w", err)
	}
	return records, nil
}

// MarkSynced flips Synced on the record for mediaID, but only while its
// LastUpdated still equals seen. A newer write wins and stays unsynced.
// Reports whether the record was marked.
func (s *ProgressStore) MarkSynced(mediaID string, seen time.Time) (bool, error) {
	marked := false
	err := s.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var rec ProgressRecord
		if err := s.store.TxGet(tx, mediaID, &rec); err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if !rec.LastUpdated.Equal(seen) {
			return nil
		}
		rec.Synced = true
		marked = true
		return s.store.TxUpsert(tx, mediaID, &rec)
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark progress %s synced: %w", mediaID, err)
	}
	return marked, nil
}
