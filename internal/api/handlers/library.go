package handlers

import (
	"net/http"
	"strconv"

	"github.com/amaumene/jellyoff/internal/controllers"
	"github.com/amaumene/jellyoff/internal/services/jellyfin"
	"github.com/sirupsen/logrus"
)

// LibraryHandler exposes catalog browsing over the bridge
type LibraryHandler struct {
	library *controllers.LibraryController
	logger  *logrus.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(library *controllers.LibraryController, logger *logrus.Logger) *LibraryHandler {
	return &LibraryHandler{
		library: library,
		logger:  logger,
	}
}

type offlineModeRequest struct {
	Enabled bool `json:"enabled"`
}

type favoriteRequest struct {
	ItemID   string `json:"itemId"`
	Favorite bool   `json:"favorite"`
}

type watchedRequest struct {
	ItemID  string `json:"itemId"`
	Watched bool   `json:"watched"`
}

// Items lists the catalog from the server or, offline, from the cache
func (h *LibraryHandler) Items(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	params := r.URL.Query()
	q := jellyfin.ItemsQuery{
		SearchTerm: params.Get("searchTerm"),
		SortBy:     params.Get("sortBy"),
		SortOrder:  params.Get("sortOrder"),
	}

	var err error
	if q.StartIndex, err = intParam(params.Get("startIndex")); err != nil {
		writeError(w, http.StatusBadRequest, "startIndex must be an integer")
		return
	}
	if q.Limit, err = intParam(params.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}

	result, err := h.library.GetItems(r.Context(), q)
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SetOfflineMode switches between the server and the local cache
func (h *LibraryHandler) SetOfflineMode(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var body offlineModeRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.library.SetOfflineMode(body.Enabled); err != nil {
		writeFailure(w, h.logger, err, "Failed to change connectivity")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ItemDetails describes ?itemId, or answers null when it is unknown offline
func (h *LibraryHandler) ItemDetails(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	itemID := r.URL.Query().Get("itemId")
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "itemId is required")
		return
	}

	details, err := h.library.GetItemDetails(r.Context(), itemID)
	if err != nil {
		writeFailure(w, h.logger, err, "Failed to load item details")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// MarkFavorite toggles the favorite flag of an item
func (h *LibraryHandler) MarkFavorite(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var body favoriteRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ItemID == "" {
		writeError(w, http.StatusBadRequest, "itemId is required")
		return
	}

	if err := h.library.SetFavorite(r.Context(), body.ItemID, body.Favorite); err != nil {
		writeFailure(w, h.logger, err, "Failed to update favorite")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// MarkWatched toggles the played flag of an item
func (h *LibraryHandler) MarkWatched(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var body watchedRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ItemID == "" {
		writeError(w, http.StatusBadRequest, "itemId is required")
		return
	}

	if err := h.library.SetWatched(r.Context(), body.ItemID, body.Watched); err != nil {
		writeFailure(w, h.logger, err, "Failed to update watched state")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
