package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/amaumene/jellyoff/internal/config"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// AuthHeaderName is the header carrying the MediaBrowser attribute list
const AuthHeaderName = "X-Emby-Authorization"

var (
	// ErrNoServer is returned when no server URL has been configured
	ErrNoServer = errors.New("no server configured")
	// ErrNotAuthenticated is returned by calls that need a session token
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidCredentials is returned when the server rejects a login
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// StatusError is a non-2xx answer from the server
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Identity describes this client to the server
type Identity struct {
	ClientName string
	DeviceName string
	DeviceID   string
	Version    string
}

// Client talks to one media server. It is constructed explicitly and
// passed to whatever needs it; session state lives on the value.
type Client struct {
	identity   Identity
	httpClient *http.Client
	itemCache  *cache.Cache
	logger     *logrus.Logger

	mu        sync.RWMutex
	serverURL string
	token     string
	userID    string
}

// NewClient creates a new media server client
func NewClient(cfg *config.Config, deviceID string, logger *logrus.Logger) (*Client, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device ID is required")
	}

	return &Client{
		identity: Identity{
			ClientName: cfg.ClientName,
			DeviceName: cfg.DeviceName,
			DeviceID:   deviceID,
			Version:    cfg.AppVersion,
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		itemCache:  cache.New(10*time.Minute, 20*time.Minute),
		logger:     logger,
	}, nil
}

var schemeRegex = regexp.MustCompile(`(?i)^https?://`)

// NormalizeServerURL trims whitespace and trailing slashes and defaults the
// scheme to http
func NormalizeServerURL(raw string) (string, error) {
	normalized := strings.TrimRight(strings.TrimSpace(raw), "/")
	if normalized == "" {
		return "", ErrNoServer
	}
	if !schemeRegex.MatchString(normalized) {
		normalized = "http://" + normalized
	}
	if _, err := url.Parse(normalized); err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	return normalized, nil
}

// SetServerURL normalizes and stores the server URL. Cached items belong to
// the previous server and are dropped.
func (c *Client) SetServerURL(raw string) (string, error) {
	normalized, err := NormalizeServerURL(raw)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.serverURL = normalized
	c.mu.Unlock()
	c.itemCache.Flush()

	return normalized, nil
}

// ServerURL returns the configured server URL
func (c *Client) ServerURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverURL
}

// SetSession stores the session token and user id. Empty values clear them.
func (c *Client) SetSession(token, userID string) {
	c.mu.Lock()
	c.token = token
	c.userID = userID
	c.mu.Unlock()
}

// AccessToken returns the session token, if any
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// UserID returns the authenticated user's id, if any
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// IsAuthenticated reports whether a session token is set
func (c *Client) IsAuthenticated() bool {
	return c.AccessToken() != ""
}

// AuthHeader builds the MediaBrowser authorization value, with the token
// appended when one is given
func (c *Client) AuthHeader(token string) string {
	auth := []string{
		fmt.Sprintf(`MediaBrowser Client="%s"`, c.identity.ClientName),
		fmt.Sprintf(`Device="%s"`, c.identity.DeviceName),
		fmt.Sprintf(`DeviceId="%s"`, c.identity.DeviceID),
		fmt.Sprintf(`Version="%s"`, c.identity.Version),
	}
	if token != "" {
		auth = append(auth, fmt.Sprintf(`Token="%s"`, token))
	}
	return strings.Join(auth, ", ")
}

// AuthHeaders returns the headers to attach to direct media requests
func (c *Client) AuthHeaders() map[string]string {
	return map[string]string{AuthHeaderName: c.AuthHeader(c.AccessToken())}
}

// doRequest performs a request against the configured server
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, result interface{}) error {
	serverURL := c.ServerURL()
	if serverURL == "" {
		return ErrNoServer
	}
	return c.doRequestTo(ctx, serverURL, method, path, query, body, result)
}

// doRequestTo performs a request against an explicit base URL
func (c *Client) doRequestTo(ctx context.Context, baseURL, method, path string, query url.Values, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	fullURL := baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    fullURL,
	}).Debug("Making media server request")

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(AuthHeaderName, c.AuthHeader(c.AccessToken()))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// isStatus reports whether err is a StatusError with the given code
func isStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
