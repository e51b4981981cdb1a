// internal/handler/webhook_handler.go
package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/service"
	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

// WebhookHandler receives provider callbacks. Both endpoints always answer
// 200 for operational conditions: a non-200 only invites the provider's
// retry/backoff system to amplify load without benefit.
type WebhookHandler struct {
	Ingestor      *service.Ingestor
	ReplyIngestor *service.ReplyIngestor
	InboundSecret string
}

// Provider handles POST /webhooks/provider: an array of delivery/engagement
// events.
func (h *WebhookHandler) Provider(w http.ResponseWriter, r *http.Request) {
	var events []model.ProviderEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		// Malformed payloads are logged and acknowledged.
		logger.L().Warnw("malformed provider webhook payload", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	h.Ingestor.HandleBatch(r.Context(), events)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Inbound handles POST /webhooks/inbound/{secret}: multipart form posts from
// the inbound-parse service.
func (h *WebhookHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.InboundSecret)) != 1 {
		// The one non-operational failure: an unknown caller.
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		logger.L().Warnw("malformed inbound webhook payload", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	reply := &service.InboundReply{
		From:    r.FormValue("from"),
		To:      r.FormValue("to"),
		Subject: r.FormValue("subject"),
		Text:    r.FormValue("text"),
		Headers: r.FormValue("headers"),
	}
	outcome := h.ReplyIngestor.Ingest(r.Context(), reply)
	logger.L().Infow("inbound reply ingested",
		"to", reply.To,
		"dropped", outcome.Dropped,
		"drop_reason", outcome.DropReason,
		"recipient_id", outcome.RecipientID,
		"event_recorded", outcome.EventRecorded,
		"intent_recorded", outcome.IntentRecorded,
		"forwarded", outcome.Forwarded,
		"errors", len(outcome.Errors))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
