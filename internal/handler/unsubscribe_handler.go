// internal/handler/unsubscribe_handler.go
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leadgrid/leadgrid-backend/internal/service"
)

type UnsubscribeHandler struct {
	Unsubscribes *service.UnsubscribeService
}

// Show handles GET /unsubscribe/{token}: verifies the token and shows what
// confirming would do, without recording anything.
func (h *UnsubscribeHandler) Show(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	email, confirmed, err := h.Unsubscribes.Lookup(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid or expired link"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email":     email,
		"confirmed": confirmed,
	})
}

// Confirm handles POST /unsubscribe/{token}: records the suppression entry.
func (h *UnsubscribeHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.Unsubscribes.Confirm(r.Context(), token); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid or expired link"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"confirmed": true})
}
