package jellyfin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/amaumene/jellyoff/internal/config"
	"github.com/amaumene/jellyoff/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	cfg := &config.Config{ClientName: "Jellyfin Offline", DeviceName: "Desktop", AppVersion: "1.0.0"}
	client, err := NewClient(cfg, "device-1", utils.NewDiscardLogger())
	require.NoError(t, err)
	if serverURL != "" {
		_, err := client.SetServerURL(serverURL)
		require.NoError(t, err)
	}
	return client
}

func TestNewClientRequiresDeviceID(t *testing.T) {
	_, err := NewClient(&config.Config{}, "", utils.NewDiscardLogger())
	assert.Error(t, err)
}

func TestNormalizeServerURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  jellyfin.local:8096/ ", "http://jellyfin.local:8096"},
		{"https://media.example.com///", "https://media.example.com"},
		{"HTTP://box:8096", "HTTP://box:8096"},
	}
	for _, tt := range tests {
		got, err := NormalizeServerURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := NormalizeServerURL("   ")
	assert.ErrorIs(t, err, ErrNoServer)
}

func TestAuthHeader(t *testing.T) {
	client := newTestClient(t, "")

	assert.Equal(t,
		`MediaBrowser Client="Jellyfin Offline", Device="Desktop", DeviceId="device-1", Version="1.0.0"`,
		client.AuthHeader(""))
	assert.Equal(t,
		`MediaBrowser Client="Jellyfin Offline", Device="Desktop", DeviceId="device-1", Version="1.0.0", Token="tok"`,
		client.AuthHeader("tok"))

	client.SetSession("tok", "user-1")
	assert.Contains(t, client.AuthHeaders()[AuthHeaderName], `Token="tok"`)
}

func TestAuthenticateByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Users/AuthenticateByName", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NotContains(t, r.Header.Get(AuthHeaderName), "Token=")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["Pw"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"AccessToken": "token-123",
			"User":        map[string]string{"Id": "user-1", "Name": body["Username"]},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.AuthenticateByName(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, client.IsAuthenticated())

	result, err := client.AuthenticateByName(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "token-123", result.AccessToken)
	assert.Equal(t, "alice", result.User.Name)
	assert.Equal(t, "token-123", client.AccessToken())
	assert.Equal(t, "user-1", client.UserID())

	client.Logout()
	assert.False(t, client.IsAuthenticated())
}

func TestGetItemsRequiresSession(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")
	_, err := client.GetItems(context.Background(), ItemsQuery{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestGetItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Items", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "SortName", q.Get("SortBy"))
		assert.Equal(t, "Movie", q.Get("IncludeItemTypes"))
		assert.Equal(t, "50", q.Get("Limit"))
		assert.Equal(t, "alien", q.Get("SearchTerm"))
		assert.Contains(t, r.Header.Get(AuthHeaderName), `Token="tok"`)

		w.Write([]byte(`{"Items":[{"Id":"1","Name":"Alien","ProductionYear":1979,"DateCreated":"2024-01-01T12:00:00.0000000Z"}],"TotalRecordCount":1}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.SetSession("tok", "user-1")

	result, err := client.GetItems(context.Background(), ItemsQuery{SearchTerm: "alien"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Alien", result.Items[0].Name)
	assert.Equal(t, 1979, result.Items[0].ProductionYear)
	assert.Equal(t, 1, result.TotalRecordCount)
}

func TestGetItemInfoIsCached(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"Id":"42","Name":"Heat"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.SetSession("tok", "user-1")

	for i := 0; i < 3; i++ {
		item, err := client.GetItemInfo(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, "Heat", item.Name)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestReportProgress(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Sessions/Playing/Progress", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.SetSession("tok", "user-1")

	require.NoError(t, client.ReportProgress(context.Background(), "abc", 12.5))
	assert.Equal(t, "abc", got["ItemId"])
	assert.Equal(t, float64(125000000), got["PositionTicks"])
}

func TestStatusErrorSurfacesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetPublicUsers(context.Background())
	require.Error(t, err)
	assert.True(t, isStatus(err, http.StatusInternalServerError))
	assert.True(t, strings.Contains(err.Error(), "500"))
}

func TestURLs(t *testing.T) {
	client := newTestClient(t, "http://box:8096/")

	assert.Equal(t, "http://box:8096/Items/abc/Images/Primary?maxHeight=300&quality=90", client.ImageURL("abc", "", 0))
	assert.Equal(t, "http://box:8096/Videos/abc/stream.mp4?mediaSourceId=src&static=true", client.StreamURL("abc", "src"))
	assert.Equal(t, "http://box:8096/Items/abc/Download", client.DownloadURL("abc"))
}

func TestTestConnectionLeavesServerUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/System/Info/Public", r.URL.Path)
		w.Write([]byte(`{"Id":"srv","ServerName":"Den","Version":"10.9.0"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, "")
	info, err := client.TestConnection(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "Den", info.ServerName)
	assert.Empty(t, client.ServerURL())

	_, err = client.TestConnection(context.Background(), "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestAuthenticateByQuickConnect(t *testing.T) {
	var approved atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/QuickConnect/Connect":
			json.NewEncoder(w).Encode(map[string]bool{"Authenticated": approved.Load()})
		case "/QuickConnect/Token":
			assert.Equal(t, "s3cret", r.URL.Query().Get("Secret"))
			w.Write([]byte(`{"AccessToken":"qc-token","User":{"Id":"user-2","Name":"bob"}}`))
		case "/Users/Me":
			w.Write([]byte(`{"Id":"user-2","Name":"bob"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.GetCurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = client.AuthenticateByQuickConnect(context.Background(), "s3cret")
	assert.Error(t, err)
	assert.False(t, client.IsAuthenticated())

	approved.Store(true)
	result, err := client.AuthenticateByQuickConnect(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "qc-token", result.AccessToken)
	assert.Equal(t, "user-2", client.UserID())

	user, err := client.GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Name)
}

func TestMarkWatched(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	assert.ErrorIs(t, client.MarkWatched(context.Background(), "abc", true), ErrNotAuthenticated)

	client.SetSession("tok", "user-1")
	require.NoError(t, client.MarkWatched(context.Background(), "abc", true))
	require.NoError(t, client.MarkWatched(context.Background(), "abc", false))
	assert.Equal(t, []string{"POST /Users/user-1/PlayedItems/abc", "DELETE /Users/user-1/PlayedItems/abc"}, got)
}
