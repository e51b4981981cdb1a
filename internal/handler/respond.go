// internal/handler/respond.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Errorw("response encode failed", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Management endpoints
// surface precise 4xx reasons; everything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case apperrors.IsBadRequest(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConcurrentTransition):
		// Another actor won the race; benign.
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		logger.L().Errorw("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
