package models

import (
	"fmt"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

const settingsKey = "settings"

// SettingsStore holds the single settings record
type SettingsStore struct {
	store *bolthold.Store
}

// Get returns the settings, or zero-valued settings before the first write
func (s *SettingsStore) Get() (*Settings, error) {
	var settings Settings
	if err := s.store.Get(settingsKey, &settings); err != nil {
		if isNotFound(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

// Update applies fn to the current settings and writes the result back in
// one transaction
func (s *SettingsStore) Update(fn func(*Settings)) (*Settings, error) {
	var settings Settings
	err := s.store.Bolt().Update(func(tx *bbolt.Tx) error {
		if err := s.store.TxGet(tx, settingsKey, &settings); err != nil && !isNotFound(err) {
			return err
		}
		fn(&settings)
		return s.store.TxUpsert(tx, settingsKey, &settings)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return &settings, nil
}
