package models

import (
	"fmt"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// CatalogStore caches remote catalog items for offline browsing
type CatalogStore struct {
	store *bolthold.Store
}

// Merge stores the items whose ids are not cached yet and returns how many
// were added. Cached items are left untouched.
func (s *CatalogStore) Merge(items []CatalogItem) (int, error) {
	added := 0
	err := s.store.Bolt().Update(func(tx *bbolt.Tx) error {
		for i := range items {
			item := items[i]
			if item.ID == "" {
				continue
			}
			var existing CatalogItem
			err := s.store.TxGet(tx, item.ID, &existing)
			if err == nil {
				continue
			}
			if !isNotFound(err) {
				return err
			}
			if err := s.store.TxInsert(tx, item.ID, &item); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to merge catalog items: %w", err)
	}
	return added, nil
}

// Get returns the cached item for id, or nil
func (s *CatalogStore) Get(id string) (*CatalogItem, error) {
	var item CatalogItem
	if err := s.store.Get(id, &item); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get catalog item %s: %w", id, err)
	}
	return &item, nil
}

// All returns every cached item
func (s *CatalogStore) All() ([]*CatalogItem, error) {
	var items []*CatalogItem
	if err := s.store.Find(&items, nil); err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	return items, nil
}
