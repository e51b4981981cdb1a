// internal/handler/intent_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/leadgrid/leadgrid-backend/internal/middleware"
	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
)

// IntentHandler records manual engagement signals (e.g. a human qualifying a
// prospect after a call).
type IntentHandler struct {
	Intents repository.IntentRepositoryInterface
}

func (h *IntentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProspectID int64  `json:"prospect_id"`
		CampaignID *int64 `json:"campaign_id"`
		IntentType string `json:"intent_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProspectID <= 0 || body.IntentType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prospect_id and intent_type are required"})
		return
	}

	intent := &model.ProspectIntent{
		OrganizerID: middleware.OrganizerID(r.Context()),
		ProspectID:  body.ProspectID,
		CampaignID:  body.CampaignID,
		IntentType:  body.IntentType,
	}
	created, err := h.Intents.Record(r.Context(), intent)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if !created {
		// Duplicate signal; idempotent.
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"intent": intent, "created": created})
}
