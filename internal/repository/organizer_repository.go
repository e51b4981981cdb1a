// internal/repository/organizer_repository.go
package repository

import (
	"context"
	"database/sql"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/internal/model"
)

type OrganizerRepositoryInterface interface {
	GetSettings(ctx context.Context, organizerID int64) (*model.OrganizerSettings, error)
}

type OrganizerRepository struct {
	DB *sql.DB
}

func (r *OrganizerRepository) GetSettings(ctx context.Context, organizerID int64) (*model.OrganizerSettings, error) {
	var s model.OrganizerSettings
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, email, mailing_address, provider_api_key FROM organizers WHERE id=$1
	`, organizerID).Scan(&s.OrganizerID, &s.Email, &s.MailingAddress, &s.ProviderAPIKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewReferenceNotFound("organizer", organizerID)
		}
		return nil, err
	}
	return &s, nil
}

var _ OrganizerRepositoryInterface = (*OrganizerRepository)(nil)
