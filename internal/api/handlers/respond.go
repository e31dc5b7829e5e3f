package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amaumene/jellyoff/internal/controllers"
	"github.com/amaumene/jellyoff/internal/services/jellyfin"
	"github.com/sirupsen/logrus"
)

// SuccessResponse acknowledges a command that returns nothing else
type SuccessResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeFailure maps err to a status code and logs server-side failures
func writeFailure(w http.ResponseWriter, logger *logrus.Logger, err error, action string) {
	switch {
	case errors.Is(err, controllers.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jellyfin.ErrNotAuthenticated), errors.Is(err, jellyfin.ErrNoServer):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, controllers.ErrOffline):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.WithError(err).Error(action)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
