package controllers

import (
	"context"
	"fmt"

	"github.com/amaumene/jellyoff/internal/models"
	"github.com/amaumene/jellyoff/internal/services/jellyfin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EnsureDeviceID returns the persisted device id, generating one on first use
func EnsureDeviceID(db *models.Database) (string, error) {
	settings, err := db.Settings.Update(func(s *models.Settings) {
		if s.DeviceID == "" {
			s.DeviceID = uuid.NewString()
		}
	})
	if err != nil {
		return "", fmt.Errorf("failed to ensure device id: %w", err)
	}
	return settings.DeviceID, nil
}

// SessionController keeps the client's server and login in step with the
// settings store
type SessionController struct {
	db     *models.Database
	client *jellyfin.Client
	logger *logrus.Logger
}

// NewSessionController creates a new session controller
func NewSessionController(db *models.Database, client *jellyfin.Client, logger *logrus.Logger) *SessionController {
	return &SessionController{
		db:     db,
		client: client,
		logger: logger,
	}
}

// Restore loads the stored server and session into the client. fallbackURL
// seeds the server when the settings have none.
func (c *SessionController) Restore(fallbackURL string) error {
	settings, err := c.db.Settings.Get()
	if err != nil {
		return err
	}

	serverURL := settings.ServerURL
	if serverURL == "" {
		serverURL = fallbackURL
	}
	if serverURL == "" {
		c.logger.Info("No media server configured yet")
		return nil
	}

	if _, err := c.client.SetServerURL(serverURL); err != nil {
		return fmt.Errorf("stored server URL is invalid: %w", err)
	}
	c.client.SetSession(settings.AccessToken, settings.UserID)

	c.logger.WithFields(logrus.Fields{
		"server":        c.client.ServerURL(),
		"authenticated": c.client.IsAuthenticated(),
	}).Info("Session restored")
	return nil
}

// SetServer checks that rawURL is reachable, then stores it and drops the
// session, which belonged to the previous server
func (c *SessionController) SetServer(ctx context.Context, rawURL string) (*jellyfin.PublicSystemInfo, error) {
	info, err := c.client.TestConnection(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	normalized, err := c.client.SetServerURL(rawURL)
	if err != nil {
		return nil, err
	}
	c.client.Logout()

	if _, err := c.db.Settings.Update(func(s *models.Settings) {
		s.ServerURL = normalized
		s.AccessToken = ""
		s.UserID = ""
	}); err != nil {
		return nil, err
	}
	return info, nil
}

// Login authenticates with a username and password and persists the session
func (c *SessionController) Login(ctx context.Context, username, password string) (*jellyfin.User, error) {
	result, err := c.client.AuthenticateByName(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := c.persist(result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

// LoginQuickConnect completes a Quick Connect login and persists the session
func (c *SessionController) LoginQuickConnect(ctx context.Context, secret string) (*jellyfin.User, error) {
	result, err := c.client.AuthenticateByQuickConnect(ctx, secret)
	if err != nil {
		return nil, err
	}
	if err := c.persist(result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

// Logout forgets the session on the client and in the settings
func (c *SessionController) Logout() error {
	c.client.Logout()
	_, err := c.db.Settings.Update(func(s *models.Settings) {
		s.AccessToken = ""
		s.UserID = ""
	})
	return err
}

func (c *SessionController) persist(result *jellyfin.AuthResult) error {
	_, err := c.db.Settings.Update(func(s *models.Settings) {
		s.ServerURL = c.client.ServerURL()
		s.AccessToken = result.AccessToken
		s.UserID = result.User.ID
	})
	return err
}
