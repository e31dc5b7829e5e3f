package main

import (
	"fmt"
	"os"

	"github.com/amaumene/jellyoff/internal/config"
	"github.com/amaumene/jellyoff/internal/controllers"
	"github.com/amaumene/jellyoff/internal/models"
	"github.com/amaumene/jellyoff/internal/services/jellyfin"
	"github.com/amaumene/jellyoff/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "jellyoff",
		Short:         "Offline companion for a Jellyfin media library",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(),
		newLoginCommand(),
		newSyncCommand(),
		newUsageCommand(),
		newVerifyCommand(),
	)
	return root
}

// app is everything a command needs, wired from the configuration
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *models.Database
	client *jellyfin.Client

	connectivity *controllers.ConnectivityState
	session      *controllers.SessionController
	downloads    *controllers.DownloadController
	progress     *controllers.ProgressController
	sync         *controllers.SyncController
	cleanup      *controllers.CleanupController
	library      *controllers.LibraryController
}

func newApp() (*app, error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.WithField("config_dir", cfg.DataDir).Debug("Configuration loaded")

	// 3. Open the stores
	db, err := models.NewDatabase(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a, err := build(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, db *models.Database, logger *logrus.Logger) (*app, error) {
	// 4. Media server client
	deviceID, err := controllers.EnsureDeviceID(db)
	if err != nil {
		return nil, err
	}
	client, err := jellyfin.NewClient(cfg, deviceID, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media server client: %w", err)
	}

	session := controllers.NewSessionController(db, client, logger)
	if err := session.Restore(cfg.ServerURL); err != nil {
		return nil, err
	}

	connectivity, err := controllers.NewConnectivityState(db)
	if err != nil {
		return nil, fmt.Errorf("failed to load connectivity: %w", err)
	}

	// 5. Controllers
	downloads := controllers.NewDownloadController(db, cfg.DownloadDir, logger)
	return &app{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		client:       client,
		connectivity: connectivity,
		session:      session,
		downloads:    downloads,
		progress:     controllers.NewProgressController(db, logger),
		sync:         controllers.NewSyncController(db, controllers.NewServerReconciler(client), connectivity, logger),
		cleanup:      controllers.NewCleanupController(db, downloads, logger),
		library:      controllers.NewLibraryController(db, client, connectivity, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close database")
	}
}
