// internal/repository/suppression_repository.go
package repository

import (
	"context"
	"database/sql"
	"strings"
)

type SuppressionRepositoryInterface interface {
	// Suppress records an (organizer, email) pair; re-suppressing is a no-op.
	Suppress(ctx context.Context, organizerID int64, email, source string) error
	IsSuppressed(ctx context.Context, organizerID int64, email string) (bool, error)
}

type SuppressionRepository struct {
	DB *sql.DB
}

func (r *SuppressionRepository) Suppress(ctx context.Context, organizerID int64, email, source string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO unsubscribes (organizer_id, email, source)
		VALUES ($1, LOWER($2), $3)
		ON CONFLICT (organizer_id, email) DO NOTHING
	`, organizerID, strings.TrimSpace(email), source)
	return err
}

func (r *SuppressionRepository) IsSuppressed(ctx context.Context, organizerID int64, email string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM unsubscribes WHERE organizer_id=$1 AND email=LOWER($2)
		)
	`, organizerID, strings.TrimSpace(email)).Scan(&exists)
	return exists, err
}

var _ SuppressionRepositoryInterface = (*SuppressionRepository)(nil)
