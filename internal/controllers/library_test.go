package controllers

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amaumene/jellyoff/internal/config"
	"github.com/amaumene/jellyoff/internal/models"
	"github.com/amaumene/jellyoff/internal/services/jellyfin"
	"github.com/amaumene/jellyoff/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, serverURL string) *jellyfin.Client {
	t.Helper()
	client, err := jellyfin.NewClient(&config.Config{ClientName: "test", DeviceName: "test", AppVersion: "0"}, "device", utils.NewDiscardLogger())
	require.NoError(t, err)
	_, err = client.SetServerURL(serverURL)
	require.NoError(t, err)
	client.SetSession("tok", "user")
	return client
}

func TestMatchesSearch(t *testing.T) {
	assert.True(t, matchesSearch("The Matrix", "matrix"))
	assert.True(t, matchesSearch("The Matrix", "MATRIX"))
	assert.True(t, matchesSearch("The Matrix", "matrx"))
	assert.True(t, matchesSearch("Anything", ""))
	assert.False(t, matchesSearch("The Matrix", "heat"))
	assert.False(t, matchesSearch("Up", "ux"))
}

func TestLibraryOnlineCachesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Items":[{"Id":"1","Name":"Alien","MediaSources":[{"Id":"src1"}]},{"Id":"2","Name":"Heat"}],"TotalRecordCount":2}`))
	}))
	defer srv.Close()

	db := newTestDatabase(t)
	state, err := NewConnectivityState(db)
	require.NoError(t, err)
	assert.Equal(t, Online, state.Connectivity())

	library := NewLibraryController(db, newTestClient(t, srv.URL), state, utils.NewDiscardLogger())

	result, err := library.GetItems(context.Background(), jellyfin.ItemsQuery{})
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)

	cached, err := db.Catalog.All()
	require.NoError(t, err)
	assert.Len(t, cached, 2)

	item, err := db.Catalog.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "src1", item.MediaSourceID)
}

func TestLibraryOfflineServesCache(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.Catalog.Merge([]models.CatalogItem{
		{ID: "1", Name: "Alien", ProductionYear: 1979, DateCreated: time.Unix(100, 0)},
		{ID: "2", Name: "Aliens", ProductionYear: 1986, DateCreated: time.Unix(200, 0)},
		{ID: "3", Name: "Heat", SortName: "Heat", ProductionYear: 1995, DateCreated: time.Unix(300, 0)},
		{ID: "4", Name: "The Thing", SortName: "Thing", ProductionYear: 1982, DateCreated: time.Unix(400, 0)},
	})
	require.NoError(t, err)

	state, err := NewConnectivityState(db)
	require.NoError(t, err)

	// the client points nowhere: offline browsing must not touch it
	library := NewLibraryController(db, newTestClient(t, "http://127.0.0.1:1"), state, utils.NewDiscardLogger())
	require.NoError(t, library.SetOfflineMode(true))

	result, err := library.GetItems(context.Background(), jellyfin.ItemsQuery{})
	require.NoError(t, err)
	require.Len(t, result.Items, 4)
	assert.Equal(t, []string{"Alien", "Aliens", "Heat", "The Thing"}, names(result.Items))

	result, err = library.GetItems(context.Background(), jellyfin.ItemsQuery{SearchTerm: "alien"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alien", "Aliens"}, names(result.Items))
	assert.Equal(t, 2, result.TotalRecordCount)

	result, err = library.GetItems(context.Background(), jellyfin.ItemsQuery{SortBy: "ProductionYear", SortOrder: "Descending", StartIndex: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Aliens", "The Thing"}, names(result.Items))
	assert.Equal(t, 4, result.TotalRecordCount)

	result, err = library.GetItems(context.Background(), jellyfin.ItemsQuery{StartIndex: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Items)

	// a huge limit must not overflow the page bounds
	result, err = library.GetItems(context.Background(), jellyfin.ItemsQuery{StartIndex: 1, Limit: math.MaxInt})
	require.NoError(t, err)
	assert.Equal(t, []string{"Aliens", "Heat", "The Thing"}, names(result.Items))
	assert.Equal(t, 4, result.TotalRecordCount)

	// persisted across restarts
	reloaded, err := NewConnectivityState(db)
	require.NoError(t, err)
	assert.Equal(t, Offline, reloaded.Connectivity())
}

func TestGetItemDetailsOnline(t *testing.T) {
	var favorites []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Items/42":
			w.Write([]byte(`{"Id":"42","Name":"Heat","MediaSources":[{"Id":"src","MediaStreams":[
				{"Type":"Video","Width":3840,"VideoRangeType":"HDR10"},
				{"Type":"Audio","Codec":"ac3","Channels":6,"Language":"eng"},
				{"Type":"Subtitle","Codec":"srt","Language":"eng"}]}]}`))
		case "/Users/user/FavoriteItems/42":
			favorites = append(favorites, r.Method)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	db := newTestDatabase(t)
	state, err := NewConnectivityState(db)
	require.NoError(t, err)
	library := NewLibraryController(db, newTestClient(t, srv.URL), state, utils.NewDiscardLogger())

	details, err := library.GetItemDetails(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Heat", details.Item.Name)
	assert.Equal(t, []string{"4K", "HDR10"}, details.Stream.Badges)
	assert.Equal(t, []string{"eng AC3 5.1"}, details.Audio)
	assert.Equal(t, []string{"eng (SRT)"}, details.Subtitles)
	assert.Equal(t, srv.URL+"/Videos/42/stream.mp4?mediaSourceId=src&static=true", details.StreamURL)

	require.NoError(t, library.SetFavorite(context.Background(), "42", true))
	require.NoError(t, library.SetFavorite(context.Background(), "42", false))
	assert.Equal(t, []string{http.MethodPost, http.MethodDelete}, favorites)

	require.NoError(t, library.SetOfflineMode(true))
	assert.ErrorIs(t, library.SetWatched(context.Background(), "42", true), ErrOffline)
}

func names(items []jellyfin.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

func TestSessionRestoreAndLogout(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.Settings.Update(func(s *models.Settings) {
		s.ServerURL = "http://jellyfin:8096"
		s.AccessToken = "stored"
		s.UserID = "u1"
	})
	require.NoError(t, err)

	client, err := jellyfin.NewClient(&config.Config{}, "device", utils.NewDiscardLogger())
	require.NoError(t, err)
	session := NewSessionController(db, client, utils.NewDiscardLogger())

	require.NoError(t, session.Restore("http://ignored"))
	assert.Equal(t, "http://jellyfin:8096", client.ServerURL())
	assert.Equal(t, "stored", client.AccessToken())

	require.NoError(t, session.Logout())
	assert.False(t, client.IsAuthenticated())
	settings, err := db.Settings.Get()
	require.NoError(t, err)
	assert.Empty(t, settings.AccessToken)
	assert.Equal(t, "http://jellyfin:8096", settings.ServerURL)
}

func TestSessionLoginPersists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"AccessToken":"fresh","User":{"Id":"u2","Name":"bob"}}`))
	}))
	defer srv.Close()

	db := newTestDatabase(t)
	client, err := jellyfin.NewClient(&config.Config{}, "device", utils.NewDiscardLogger())
	require.NoError(t, err)
	session := NewSessionController(db, client, utils.NewDiscardLogger())
	require.NoError(t, session.Restore(srv.URL))

	user, err := session.Login(context.Background(), "bob", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Name)

	settings, err := db.Settings.Get()
	require.NoError(t, err)
	assert.Equal(t, "fresh", settings.AccessToken)
	assert.Equal(t, "u2", settings.UserID)
	assert.Equal(t, srv.URL, settings.ServerURL)
}

func TestEnsureDeviceIDIsStable(t *testing.T) {
	db := newTestDatabase(t)

	first, err := EnsureDeviceID(db)
	require.NoError(t, err)
	assert.Len(t, first, 36)

	second, err := EnsureDeviceID(db)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
