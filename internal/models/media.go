package models

import (
	"fmt"

	"github.com/timshannon/bolthold"
)

// MediaStore maps a media id to its local download metadata
type MediaStore struct {
	store *bolthold.Store
}

// Put creates or overwrites the record for rec.ID
func (s *MediaStore) Put(rec *MediaRecord) error {
	if err := s.store.Upsert(rec.ID, rec); err != nil {
		return fmt.Errorf("failed to save media record %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record for id, or nil when there is none
func (s *MediaStore) Get(id string) (*MediaRecord, error) {
	var rec MediaRecord
	if err := s.store.Get(id, &rec); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get media record %s: %w", id, err)
	}
	return &rec, nil
}

// List returns every media record
func (s *MediaStore) List() ([]*MediaRecord, error) {
	var records []*MediaRecord
	if err := s.store.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list media records: %w", err)
	}
	return records, nil
}

// Delete removes the record for id. Reports whether a record existed.
func (s *MediaStore) Delete(id string) (bool, error) {
	deleted, err := txDelete(s.store, id, &MediaRecord{})
	if err != nil {
		return false, fmt.Errorf("failed to delete media record %s: %w", id, err)
	}
	return deleted, nil
}

// Clear removes every media record
func (s *MediaStore) Clear() error {
	if err := s.store.DeleteMatching(&MediaRecord{}, nil); err != nil {
		return fmt.Errorf("failed to clear media records: %w", err)
	}
	return nil
}
