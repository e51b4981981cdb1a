// internal/repository/sender_repository.go
package repository

import (
	"context"
	"database/sql"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/internal/model"
)

type SenderRepositoryInterface interface {
	GetByID(ctx context.Context, id, organizerID int64) (*model.Sender, error)
}

type SenderRepository struct {
	DB *sql.DB
}

func (r *SenderRepository) GetByID(ctx context.Context, id, organizerID int64) (*model.Sender, error) {
	var s model.Sender
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, organizer_id, from_email, from_name, reply_to, active, created_at
		FROM senders WHERE id=$1 AND organizer_id=$2
	`, id, organizerID).Scan(&s.ID, &s.OrganizerID, &s.FromEmail, &s.FromName, &s.ReplyTo, &s.Active, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewReferenceNotFound("sender", id)
		}
		return nil, err
	}
	return &s, nil
}

var _ SenderRepositoryInterface = (*SenderRepository)(nil)
