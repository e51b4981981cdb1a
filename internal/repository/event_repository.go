// internal/repository/event_repository.go
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/internal/model"
)

type EventRepositoryInterface interface {
	// Insert appends one event. A collision with the idempotency key
	// (campaign, type, lower(email), provider event id) returns
	// apperrors.ErrDuplicateEvent; callers treat that as success.
	Insert(ctx context.Context, ev *model.CampaignEvent) error
	ListByCampaign(ctx context.Context, campaignID, organizerID int64, limit int) ([]model.CampaignEvent, error)
}

type EventRepository struct {
	DB *sql.DB
}

func (r *EventRepository) Insert(ctx context.Context, ev *model.CampaignEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	var raw any
	if len(ev.RawPayload) > 0 {
		raw = ev.RawPayload
	}
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO campaign_events
			(organizer_id, campaign_id, recipient_id, prospect_id, event_type, email,
			 url, user_agent, ip, reason, provider_event_id, raw_payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`, ev.OrganizerID, ev.CampaignID, ev.RecipientID, ev.ProspectID, ev.EventType, ev.Email,
		ev.URL, ev.UserAgent, ev.IP, ev.Reason, ev.ProviderEventID, raw, ev.OccurredAt,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (r *EventRepository) ListByCampaign(ctx context.Context, campaignID, organizerID int64, limit int) ([]model.CampaignEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, organizer_id, campaign_id, recipient_id, prospect_id, event_type, email,
		       url, user_agent, ip, reason, provider_event_id, occurred_at, created_at
		FROM campaign_events
		WHERE campaign_id=$1 AND organizer_id=$2
		ORDER BY occurred_at DESC, id DESC
		LIMIT $3
	`, campaignID, organizerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.CampaignEvent{}
	for rows.Next() {
		var ev model.CampaignEvent
		if err := rows.Scan(&ev.ID, &ev.OrganizerID, &ev.CampaignID, &ev.RecipientID, &ev.ProspectID,
			&ev.EventType, &ev.Email, &ev.URL, &ev.UserAgent, &ev.IP, &ev.Reason,
			&ev.ProviderEventID, &ev.OccurredAt, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

var _ EventRepositoryInterface = (*EventRepository)(nil)
