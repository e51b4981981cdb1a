// internal/repository/prospect_repository.go
package repository

import (
	"context"
	"database/sql"

	"github.com/leadgrid/leadgrid-backend/internal/model"
)

type ProspectRepositoryInterface interface {
	GetByID(ctx context.Context, id, organizerID int64) (*model.Prospect, error)
	// FindByEmail returns (nil, nil) when no prospect matches.
	FindByEmail(ctx context.Context, organizerID int64, email string) (*model.Prospect, error)
}

type ProspectRepository struct {
	DB *sql.DB
}

const prospectColumns = `id, organizer_id, email, name, first_name, last_name, company,
	country, position, website, tag, verification_status, created_at`

func scanProspect(row interface{ Scan(...any) error }) (*model.Prospect, error) {
	var p model.Prospect
	err := row.Scan(&p.ID, &p.OrganizerID, &p.Email, &p.Name, &p.FirstName, &p.LastName,
		&p.Company, &p.Country, &p.Position, &p.Website, &p.Tag, &p.VerificationStatus, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProspectRepository) GetByID(ctx context.Context, id, organizerID int64) (*model.Prospect, error) {
	p, err := scanProspect(r.DB.QueryRowContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE id=$1 AND organizer_id=$2`, id, organizerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *ProspectRepository) FindByEmail(ctx context.Context, organizerID int64, email string) (*model.Prospect, error) {
	p, err := scanProspect(r.DB.QueryRowContext(ctx, `
		SELECT `+prospectColumns+` FROM prospects
		WHERE organizer_id=$1 AND LOWER(email)=LOWER($2)
		ORDER BY created_at LIMIT 1
	`, organizerID, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

var _ ProspectRepositoryInterface = (*ProspectRepository)(nil)
