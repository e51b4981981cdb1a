// internal/repository/intent_repository.go
package repository

import (
	"context"
	"database/sql"

	"github.com/leadgrid/leadgrid-backend/internal/model"
)

type IntentRepositoryInterface interface {
	// Record inserts one intent signal. Returns false when an identical
	// signal already exists for the (organizer, prospect, campaign, type).
	Record(ctx context.Context, intent *model.ProspectIntent) (bool, error)
}

type IntentRepository struct {
	DB *sql.DB
}

func (r *IntentRepository) Record(ctx context.Context, intent *model.ProspectIntent) (bool, error) {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO prospect_intents (organizer_id, prospect_id, campaign_id, intent_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organizer_id, prospect_id, campaign_id, intent_type) DO NOTHING
		RETURNING id, created_at
	`, intent.OrganizerID, intent.ProspectID, intent.CampaignID, intent.IntentType,
	).Scan(&intent.ID, &intent.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var _ IntentRepositoryInterface = (*IntentRepository)(nil)
