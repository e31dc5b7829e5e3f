package jellyfin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PublicSystemInfo is the unauthenticated server description
type PublicSystemInfo struct {
	ID           string `json:"Id"`
	ServerName   string `json:"ServerName"`
	Version      string `json:"Version"`
	LocalAddress string `json:"LocalAddress"`
}

// User is a server account
type User struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	ServerID    string `json:"ServerId"`
	HasPassword bool   `json:"HasPassword"`
}

// AuthResult is the outcome of a successful login
type AuthResult struct {
	User        User   `json:"User"`
	AccessToken string `json:"AccessToken"`
}

// TestConnection checks that rawURL answers like a media server. It does not
// change the configured server.
func (c *Client) TestConnection(ctx context.Context, rawURL string) (*PublicSystemInfo, error) {
	baseURL, err := NormalizeServerURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var info PublicSystemInfo
	if err := c.doRequestTo(ctx, baseURL, http.MethodGet, "/System/Info/Public", nil, nil, &info); err != nil {
		return nil, fmt.Errorf("unable to connect to server: %w", err)
	}
	return &info, nil
}

// GetPublicSystemInfo describes the configured server
func (c *Client) GetPublicSystemInfo(ctx context.Context) (*PublicSystemInfo, error) {
	var info PublicSystemInfo
	if err := c.doRequest(ctx, http.MethodGet, "/System/Info/Public", nil, nil, &info); err != nil {
		return nil, fmt.Errorf("failed to get server info: %w", err)
	}
	return &info, nil
}

// GetPublicUsers lists the users shown on the login screen
func (c *Client) GetPublicUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.doRequest(ctx, http.MethodGet, "/Users/Public", nil, nil, &users); err != nil {
		return nil, fmt.Errorf("unable to retrieve users: %w", err)
	}
	return users, nil
}

// AuthenticateByName logs in with a username and password and keeps the
// resulting session on the client
func (c *Client) AuthenticateByName(ctx context.Context, username, password string) (*AuthResult, error) {
	body := map[string]string{
		"Username": username,
		"Pw":       password,
	}

	var result AuthResult
	if err := c.doRequest(ctx, http.MethodPost, "/Users/AuthenticateByName", nil, body, &result); err != nil {
		if isStatus(err, http.StatusUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	c.SetSession(result.AccessToken, result.User.ID)
	c.logger.WithField("user", result.User.Name).Info("Authenticated with media server")
	return &result, nil
}

// AuthenticateByQuickConnect completes a Quick Connect login for secret
func (c *Client) AuthenticateByQuickConnect(ctx context.Context, secret string) (*AuthResult, error) {
	var state struct {
		Authenticated bool `json:"Authenticated"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/QuickConnect/Connect", nil, map[string]string{"Secret": secret}, &state); err != nil {
		return nil, fmt.Errorf("quick connect failed: %w", err)
	}
	if !state.Authenticated {
		return nil, fmt.Errorf("quick connect failed: request not authorized yet")
	}

	var result AuthResult
	query := url.Values{"Secret": {secret}}
	if err := c.doRequest(ctx, http.MethodGet, "/QuickConnect/Token", query, nil, &result); err != nil {
		return nil, fmt.Errorf("quick connect failed: %w", err)
	}

	c.SetSession(result.AccessToken, result.User.ID)
	c.logger.WithField("user", result.User.Name).Info("Authenticated with media server via Quick Connect")
	return &result, nil
}

// GetCurrentUser returns the user owning the session
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	var user User
	if err := c.doRequest(ctx, http.MethodGet, "/Users/Me", nil, nil, &user); err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}

	c.mu.Lock()
	c.userID = user.ID
	c.mu.Unlock()
	return &user, nil
}

// Logout drops the session held by the client
func (c *Client) Logout() {
	c.SetSession("", "")
	c.itemCache.Flush()
}
