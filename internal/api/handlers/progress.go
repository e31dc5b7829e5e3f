package handlers

import (
	"net/http"

	"github.com/amaumene/jellyoff/internal/controllers"
	"github.com/sirupsen/logrus"
)

// ProgressHandler exposes playback progress over the bridge
type ProgressHandler struct {
	progress *controllers.ProgressController
	sync     *controllers.SyncController
	logger   *logrus.Logger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(progress *controllers.ProgressController, sync *controllers.SyncController, logger *logrus.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress: progress,
		sync:     sync,
		logger:   logger,
	}
}

type updateProgressRequest struct {
	MediaID  string  `json:"mediaId"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
}

// Get returns the progress for ?mediaId, or null
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	mediaID := r.URL.Query().Get("mediaId")
	if mediaID == "" {
		writeError(w, http.StatusBadRequest, "mediaId is required")
		return
	}

	record, err := h.progress.GetProgress(mediaID)
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to read progress")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Update records a new playback position
func (h *ProgressHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var body updateProgressRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.MediaID == "" {
		writeError(w, http.StatusBadRequest, "mediaId is required")
		return
	}

	if _, err := h.progress.UpdateProgress(body.MediaID, body.Position, body.Duration); err != nil {
		writeFailure(w, h.logger, err, "Failed to update progress")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Sync runs a sync pass now
func (h *ProgressHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	result, err := h.sync.SyncUnsynced(r.Context())
	if err != nil {
		writeFailure(w, h.logger, err, "Progress sync failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
