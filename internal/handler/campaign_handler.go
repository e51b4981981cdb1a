// internal/handler/campaign_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leadgrid/leadgrid-backend/internal/middleware"
	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
	"github.com/leadgrid/leadgrid-backend/internal/service"
)

// CampaignHandler exposes campaign CRUD plus the send-pipeline actions.
type CampaignHandler struct {
	Campaigns  *service.CampaignService
	Resolver   *service.Resolver
	Lifecycle  *service.Lifecycle
	Dispatcher *service.Dispatcher
	Events     repository.EventRepositoryInterface
}

func campaignID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string  `json:"name"`
		TemplateID   *int64  `json:"template_id"`
		ListID       *int64  `json:"list_id"`
		SenderID     *int64  `json:"sender_id"`
		IncludeRisky bool    `json:"include_risky"`
		ScheduledAt  *string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	campaign, err := h.Campaigns.Create(r.Context(), middleware.OrganizerID(r.Context()),
		body.Name, body.TemplateID, body.ListID, body.SenderID, body.IncludeRisky, body.ScheduledAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := h.Campaigns.List(r.Context(), middleware.OrganizerID(r.Context()), page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}
	details, err := h.Campaigns.GetWithStats(r.Context(), id, middleware.OrganizerID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// Resolve materializes the recipient set and returns the exclusion stats
// alongside the campaign. The stats are the operator's only visibility into
// why counts don't match.
func (h *CampaignHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}
	campaign, stats, err := h.Resolver.Resolve(r.Context(), id, middleware.OrganizerID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"campaign": campaign,
		"stats":    stats,
	})
}

func (h *CampaignHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}
	var body struct {
		ScheduledAt string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	at, err := time.Parse(time.RFC3339, body.ScheduledAt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scheduled_at must be RFC3339"})
		return
	}
	campaign, err := h.Lifecycle.Schedule(r.Context(), id, middleware.OrganizerID(r.Context()), at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (h *CampaignHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.Lifecycle.Pause)
}

func (h *CampaignHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.Lifecycle.Resume)
}

func (h *CampaignHandler) SendNow(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.Lifecycle.SendNow)
}

func (h *CampaignHandler) lifecycleAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, campaignID, organizerID int64) (*model.Campaign, error)) {
	id, ok := campaignID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}
	campaign, err := action(r.Context(), id, middleware.OrganizerID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (h *CampaignHandler) SendBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}
	var body struct {
		SenderIdentityID int64 `json:"sender_identity_id"`
		BatchSize        int   `json:"batch_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SenderIdentityID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sender_identity_id is required"})
		return
	}
	result, err := h.Dispatcher.SendBatch(r.Context(), id, middleware.OrganizerID(r.Context()), body.SenderIdentityID, body.BatchSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListEvents returns the most recent webhook-observed events for a campaign.
func (h *CampaignHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 100
	}
	events, err := h.Events.ListByCampaign(r.Context(), id, middleware.OrganizerID(r.Context()), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": events})
}

func (h *CampaignHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}
	var body struct {
		ProspectID *int64 `json:"prospect_id"`
	}
	// Empty body means sample data.
	_ = json.NewDecoder(r.Body).Decode(&body)

	preview, err := h.Campaigns.Preview(r.Context(), id, middleware.OrganizerID(r.Context()), body.ProspectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}
