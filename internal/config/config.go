package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Media server
	ServerURL string // Seeds the settings store when it has no server yet

	// Client identity sent in the authorization header
	ClientName string
	DeviceName string
	AppVersion string

	// Bridge
	BridgeAddr string

	// Schedules (cron expressions)
	SyncSchedule   string // Progress sync pass
	VerifySchedule string // Stale download record sweep

	// Paths
	DataDir     string // $CONFIG_DIR
	DownloadDir string // Fallback download directory when settings have none

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	v.SetDefault("BRIDGE_ADDR", "127.0.0.1:8097")
	v.SetDefault("CLIENT_NAME", "Jellyfin Offline")
	v.SetDefault("DEVICE_NAME", "Desktop")
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("SYNC_SCHEDULE", "*/15 * * * *")
	v.SetDefault("VERIFY_SCHEDULE", "0 * * * *")
	v.SetDefault("LOG_LEVEL", "info")

	configDir, err := resolveDir(v.GetString("CONFIG_DIR"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve CONFIG_DIR: %w", err)
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	downloadDir := filepath.Join(configDir, "media")
	if raw := v.GetString("DOWNLOAD_DIR"); raw != "" {
		downloadDir, err = filepath.Abs(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for DOWNLOAD_DIR: %w", err)
		}
	}

	config := &Config{
		ServerURL: v.GetString("SERVER_URL"),

		ClientName: v.GetString("CLIENT_NAME"),
		DeviceName: v.GetString("DEVICE_NAME"),
		AppVersion: v.GetString("APP_VERSION"),

		BridgeAddr: v.GetString("BRIDGE_ADDR"),

		SyncSchedule:   v.GetString("SYNC_SCHEDULE"),
		VerifySchedule: v.GetString("VERIFY_SCHEDULE"),

		DataDir:     configDir,
		DownloadDir: downloadDir,

		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if config.BridgeAddr == "" {
		return nil, fmt.Errorf("BRIDGE_ADDR must not be empty")
	}

	return config, nil
}

// resolveDir returns the absolute config directory, defaulting to
// ~/.config/jellyoff.
func resolveDir(raw string) (string, error) {
	if raw == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", "jellyoff"), nil
	}
	return filepath.Abs(raw)
}
