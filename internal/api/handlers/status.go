package handlers

import (
	"net/http"
	"time"

	"github.com/amaumene/jellyoff/internal/controllers"
	"github.com/amaumene/jellyoff/internal/models"
	"github.com/amaumene/jellyoff/internal/services/jellyfin"
	"github.com/sirupsen/logrus"
)

// StatusHandler handles status requests
type StatusHandler struct {
	db           *models.Database
	client       *jellyfin.Client
	connectivity controllers.ConnectivitySource
	logger       *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, client *jellyfin.Client, connectivity controllers.ConnectivitySource, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:           db,
		client:       client,
		connectivity: connectivity,
		logger:       logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	ServerURL        string     `json:"server_url"`
	Authenticated    bool       `json:"authenticated"`
	Connectivity     string     `json:"connectivity"`
	Downloads        int        `json:"downloads"`
	ProgressRecords  int        `json:"progress_records"`
	UnsyncedProgress int        `json:"unsynced_progress"`
	CachedItems      int        `json:"cached_items"`
	LastSyncTime     *time.Time `json:"last_sync_time,omitempty"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	media, err := h.db.Media.List()
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to list media records")
		return
	}
	progress, err := h.db.Progress.List()
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to list progress records")
		return
	}
	unsynced, err := h.db.Progress.ListUnsynced()
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to list unsynced progress")
		return
	}
	cached, err := h.db.Catalog.All()
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to list cached items")
		return
	}
	settings, err := h.db.Settings.Get()
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to read settings")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		ServerURL:        h.client.ServerURL(),
		Authenticated:    h.client.IsAuthenticated(),
		Connectivity:     h.connectivity.Connectivity().String(),
		Downloads:        len(media),
		ProgressRecords:  len(progress),
		UnsyncedProgress: len(unsynced),
		CachedItems:      len(cached),
		LastSyncTime:     settings.LastSyncTime,
	})
}
