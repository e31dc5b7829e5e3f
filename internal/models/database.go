package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrStoreLocked is returned when another process holds a store open
var ErrStoreLocked = errors.New("store is locked by another jellyoff process (stop `jellyoff serve` first)")

// Store file names inside the data directory. Each is an independent
// key-value namespace; nothing is transactional across them.
const (
	MediaStoreFile    = "downloaded-media.db"
	ProgressStoreFile = "progress.db"
	SettingsStoreFile = "settings.db"
	CatalogStoreFile  = "catalog.db"
)

// Database groups the local stores
type Database struct {
	Media    *MediaStore
	Progress *ProgressStore
	Settings *SettingsStore
	Catalog  *CatalogStore

	stores []*bolthold.Store
}

// NewDatabase opens (or creates) every store under dir
func NewDatabase(dir string) (*Database, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db := &Database{}
	open := func(name string) (*bolthold.Store, error) {
		store, err := openStore(filepath.Join(dir, name))
		if err != nil {
			db.Close()
			return nil, err
		}
		db.stores = append(db.stores, store)
		return store, nil
	}

	media, err := open(MediaStoreFile)
	if err != nil {
		return nil, err
	}
	progress, err := open(ProgressStoreFile)
	if err != nil {
		return nil, err
	}
	settings, err := open(SettingsStoreFile)
	if err != nil {
		return nil, err
	}
	catalog, err := open(CatalogStoreFile)
	if err != nil {
		return nil, err
	}

	db.Media = &MediaStore{store: media}
	db.Progress = &ProgressStore{store: progress}
	db.Settings = &SettingsStore{store: settings}
	db.Catalog = &CatalogStore{store: catalog}
	return db, nil
}

// openStore opens a bolthold store whose records are JSON encoded
func openStore(path string) (*bolthold.Store, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Encoder: json.Marshal,
		Decoder: json.Unmarshal,
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, fmt.Errorf("failed to open store %s: %w", filepath.Base(path), ErrStoreLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", filepath.Base(path), err)
	}
	return store, nil
}

// Close closes every store
func (db *Database) Close() error {
	var errs []error
	for _, store := range db.stores {
		if err := store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	db.stores = nil
	return errors.Join(errs...)
}

func isNotFound(err error) bool {
	return errors.Is(err, bolthold.ErrNotFound)
}

// txDelete removes key from the bucket of dataType, reporting whether it
// was present
func txDelete(store *bolthold.Store, key string, dataType interface{}) (bool, error) {
	deleted := false
	err := store.Bolt().Update(func(tx *bbolt.Tx) error {
		if err := store.TxGet(tx, key, dataType); err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		deleted = true
		return store.TxDelete(tx, key, dataType)
	})
	return deleted, err
}
