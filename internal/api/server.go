package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/amaumene/jellyoff/internal/api/handlers"
	"github.com/amaumene/jellyoff/internal/api/middleware"
	"github.com/amaumene/jellyoff/internal/config"
	"github.com/amaumene/jellyoff/internal/controllers"
	"github.com/amaumene/jellyoff/internal/models"
	"github.com/amaumene/jellyoff/internal/services/jellyfin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Controllers groups what the bridge routes drive
type Controllers struct {
	Downloads    *controllers.DownloadController
	Progress     *controllers.ProgressController
	Sync         *controllers.SyncController
	Library      *controllers.LibraryController
	Connectivity controllers.ConnectivitySource
}

// Server is the loopback bridge the desktop shell talks to
type Server struct {
	server *http.Server
	db     *models.Database
	client *jellyfin.Client
	ctrls  Controllers
	logger *logrus.Logger

	// ctx outlives single requests; downloads run under it
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new bridge server
func NewServer(cfg *config.Config, db *models.Database, client *jellyfin.Client, ctrls Controllers, logger *logrus.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		db:     db,
		client: client,
		ctrls:  ctrls,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	// No WriteTimeout: download event streams last as long as the transfer
	s.server = &http.Server{
		Addr:        cfg.BridgeAddr,
		Handler:     middleware.Logging(s.Handler(), logger),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the routed bridge without the access log
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return mux
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.Handle("/health", handlers.NewHealthHandler(s.logger))
	mux.Handle("/status", handlers.NewStatusHandler(s.db, s.client, s.ctrls.Connectivity, s.logger))
	mux.Handle("/metrics", promhttp.Handler())

	downloads := handlers.NewDownloadHandler(s.ctx, s.ctrls.Downloads, s.client, s.logger)
	mux.HandleFunc("/ipc/download-media", downloads.DownloadMedia)
	mux.HandleFunc("/ipc/get-downloaded-media", downloads.List)
	mux.HandleFunc("/ipc/check-if-downloaded", downloads.Check)
	mux.HandleFunc("/ipc/delete-download", downloads.Delete)
	mux.HandleFunc("/ipc/get-downloads-size", downloads.Size)
	mux.HandleFunc("/ipc/clear-downloads", downloads.Clear)
	mux.HandleFunc("/ipc/set-download-path", downloads.SetPath)
	mux.HandleFunc("/ipc/get-download-path", downloads.GetPath)

	progress := handlers.NewProgressHandler(s.ctrls.Progress, s.ctrls.Sync, s.logger)
	mux.HandleFunc("/ipc/get-progress", progress.Get)
	mux.HandleFunc("/ipc/update-progress", progress.Update)
	mux.HandleFunc("/ipc/sync-progress", progress.Sync)

	library := handlers.NewLibraryHandler(s.ctrls.Library, s.logger)
	mux.HandleFunc("/ipc/get-items", library.Items)
	mux.HandleFunc("/ipc/set-offline-mode", library.SetOfflineMode)
	mux.HandleFunc("/ipc/get-item-details", library.ItemDetails)
	mux.HandleFunc("/ipc/mark-favorite", library.MarkFavorite)
	mux.HandleFunc("/ipc/mark-watched", library.MarkWatched)
}

// Start serves until ctx is cancelled, then shuts down
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.logger.WithField("addr", listener.Addr().String()).Info("Starting bridge server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		s.cancel()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown aborts running transfers, then waits for open requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down bridge server")
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
