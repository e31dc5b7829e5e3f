package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabaseCreatesStoreFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	db, err := NewDatabase(dir)
	require.NoError(t, err)
	defer db.Close()

	for _, name := range []string{MediaStoreFile, ProgressStoreFile, SettingsStoreFile, CatalogStoreFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestNewDatabaseReportsLockedStore(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDatabase(dir)
	require.NoError(t, err)
	defer db.Close()

	_, err = NewDatabase(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreLocked)
	assert.Contains(t, err.Error(), "jellyoff serve")
}

func TestMediaStore(t *testing.T) {
	db := newTestDatabase(t)

	rec, err := db.Media.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, rec)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.Media.Put(&MediaRecord{ID: "abc123", Title: "Movie.mp4", Path: "/tmp/Movie.mp4", DownloadedAt: now, Size: 1000}))
	require.NoError(t, db.Media.Put(&MediaRecord{ID: "def456", Title: "Other.mkv", Path: "/tmp/Other.mkv", DownloadedAt: now, Size: 5}))

	rec, err = db.Media.Get("abc123")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "abc123", rec.ID)
	assert.Equal(t, "/tmp/Movie.mp4", rec.Path)
	assert.Equal(t, int64(1000), rec.Size)
	assert.True(t, rec.DownloadedAt.Equal(now))

	// Overwrite keeps one record per id
	require.NoError(t, db.Media.Put(&MediaRecord{ID: "abc123", Title: "Movie.mp4", Path: "/tmp/Movie.mp4", DownloadedAt: now, Size: 2000}))
	all, err := db.Media.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	deleted, err := db.Media.Delete("abc123")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = db.Media.Delete("abc123")
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, db.Media.Clear())
	all, err = db.Media.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestProgressStoreLastWriteWins(t *testing.T) {
	db := newTestDatabase(t)

	first := time.Now().UTC()
	require.NoError(t, db.Progress.Set(&ProgressRecord{MediaID: "abc", Position: 30, Duration: 120, LastUpdated: first}))
	require.NoError(t, db.Progress.Set(&ProgressRecord{MediaID: "abc", Position: 45, Duration: 120, LastUpdated: first.Add(time.Second)}))

	rec, err := db.Progress.Get("abc")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 45.0, rec.Position)
	assert.False(t, rec.Synced)

	missing, err := db.Progress.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProgressStoreMarkSynced(t *testing.T) {
	db := newTestDatabase(t)

	stamp := time.Now().UTC()
	require.NoError(t, db.Progress.Set(&ProgressRecord{MediaID: "a", Position: 1, Duration: 10, LastUpdated: stamp}))
	require.NoError(t, db.Progress.Set(&ProgressRecord{MediaID: "b", Position: 2, Duration: 10, LastUpdated: stamp}))

	unsynced, err := db.Progress.ListUnsynced()
	require.NoError(t, err)
	assert.Len(t, unsynced, 2)

	marked, err := db.Progress.MarkSynced("a", unsynced[0].LastUpdated)
	require.NoError(t, err)
	assert.True(t, marked)

	// A stale timestamp does not mark the record
	marked, err = db.Progress.MarkSynced("b", stamp.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, marked)

	unsynced, err = db.Progress.ListUnsynced()
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "b", unsynced[0].MediaID)

	require.NoError(t, db.Progress.Delete("a"))
	require.NoError(t, db.Progress.Delete("a"))
	rec, err := db.Progress.Get("a")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSettingsStore(t *testing.T) {
	db := newTestDatabase(t)

	settings, err := db.Settings.Get()
	require.NoError(t, err)
	assert.Equal(t, "", settings.DownloadPath)

	_, err = db.Settings.Update(func(s *Settings) { s.DownloadPath = "/media/downloads" })
	require.NoError(t, err)
	updated, err := db.Settings.Update(func(s *Settings) { s.ServerURL = "http://jellyfin:8096" })
	require.NoError(t, err)
	assert.Equal(t, "/media/downloads", updated.DownloadPath)

	settings, err = db.Settings.Get()
	require.NoError(t, err)
	assert.Equal(t, "/media/downloads", settings.DownloadPath)
	assert.Equal(t, "http://jellyfin:8096", settings.ServerURL)
}

func TestCatalogStoreMerge(t *testing.T) {
	db := newTestDatabase(t)

	added, err := db.Catalog.Merge([]CatalogItem{{ID: "1", Name: "Alien"}, {ID: "2", Name: "Heat"}})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = db.Catalog.Merge([]CatalogItem{{ID: "2", Name: "Heat (renamed)"}, {ID: "3", Name: "Ran"}, {Name: "no id"}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	item, err := db.Catalog.Get("2")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Heat", item.Name)

	all, err := db.Catalog.All()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
