package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/amaumene/jellyoff/internal/controllers"
	"github.com/amaumene/jellyoff/internal/models"
	"github.com/amaumene/jellyoff/internal/services/jellyfin"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// DownloadHandler exposes the download manager over the bridge
type DownloadHandler struct {
	ctx       context.Context
	downloads *controllers.DownloadController
	client    *jellyfin.Client
	logger    *logrus.Logger
}

// NewDownloadHandler creates a new download handler. Transfers run under
// ctx rather than the request context, so a listener that goes away does
// not abort them.
func NewDownloadHandler(ctx context.Context, downloads *controllers.DownloadController, client *jellyfin.Client, logger *logrus.Logger) *DownloadHandler {
	return &DownloadHandler{
		ctx:       ctx,
		downloads: downloads,
		client:    client,
		logger:    logger,
	}
}

// UsageResponse is the download directory footprint
type UsageResponse struct {
	Size      int64  `json:"size"`
	Count     int    `json:"count"`
	Formatted string `json:"formatted"`
}

type mediaIDRequest struct {
	MediaID string `json:"mediaId"`
}

type downloadPathRequest struct {
	Path string `json:"path"`
}

// DownloadMedia starts a transfer and streams its events as server-sent
// events named after the event type
func (h *DownloadHandler) DownloadMedia(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var req controllers.DownloadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.AuthHeaders) == 0 && h.client.IsAuthenticated() {
		req.AuthHeaders = h.client.AuthHeaders()
	}

	events, err := h.downloads.StartDownload(h.ctx, req)
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to start download")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.logger.WithField("media_id", req.MediaID).Debug("Download listener went away")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// List returns every media record
func (h *DownloadHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	records, err := h.downloads.ListDownloads()
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to list downloads")
		return
	}
	if records == nil {
		records = []*models.MediaRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Check reports whether ?mediaId is downloaded and still on disk
func (h *DownloadHandler) Check(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	mediaID := r.URL.Query().Get("mediaId")
	if mediaID == "" {
		writeError(w, http.StatusBadRequest, "mediaId is required")
		return
	}

	present, err := h.downloads.CheckDownloaded(mediaID)
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to check download")
		return
	}
	writeJSON(w, http.StatusOK, present)
}

// Delete removes one download and its record
func (h *DownloadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var body mediaIDRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.MediaID == "" {
		writeError(w, http.StatusBadRequest, "mediaId is required")
		return
	}

	deleted, err := h.downloads.DeleteDownload(body.MediaID)
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to delete download")
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

// Size returns the download directory footprint
func (h *DownloadHandler) Size(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	usage, err := h.downloads.GetDownloadsUsage()
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to compute download usage")
		return
	}
	writeJSON(w, http.StatusOK, UsageResponse{
		Size:      usage.Size,
		Count:     usage.Count,
		Formatted: humanize.Bytes(uint64(usage.Size)),
	})
}

// Clear deletes every download
func (h *DownloadHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.downloads.ClearAllDownloads(); err != nil {
		writeFailure(w, h.logger, err, "Failed to clear downloads")
		return
	}
	writeJSON(w, http.StatusOK, true)
}

// SetPath changes the download directory
func (h *DownloadHandler) SetPath(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var body downloadPathRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.downloads.SetDownloadPath(body.Path); err != nil {
		writeFailure(w, h.logger, err, "Failed to set download path")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// GetPath returns the effective download directory
func (h *DownloadHandler) GetPath(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	dir, err := h.downloads.DownloadDir()
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to read download path")
		return
	}
	writeJSON(w, http.StatusOK, dir)
}
