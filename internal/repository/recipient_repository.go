// internal/repository/recipient_repository.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/leadgrid/leadgrid-backend/internal/model"
)

type RecipientRepositoryInterface interface {
	ClaimPending(ctx context.Context, campaignID int64, limit int) (RecipientBatch, error)
	CountPending(ctx context.Context, campaignID int64) (int, error)

	// FindByEmail resolves the most recent recipient row for an email. With
	// activeOnly it only considers rows whose message was dispatched and has
	// not hard-failed. Returns (nil, nil) when nothing matches.
	FindByEmail(ctx context.Context, email string, activeOnly bool) (*model.Recipient, error)

	// FindByPublicPrefix matches recipients by truncated campaign/recipient
	// public id prefixes recovered from an encoded reply address.
	FindByPublicPrefix(ctx context.Context, campaignPrefix, recipientPrefix string) ([]model.Recipient, error)

	MarkDelivered(ctx context.Context, recipientID int64, at time.Time) error
	RecordOpen(ctx context.Context, recipientID int64, at time.Time) error
	RecordClick(ctx context.Context, recipientID int64, at time.Time) error
	MarkBounced(ctx context.Context, recipientID int64, at time.Time, reason string) error
	MarkDropped(ctx context.Context, recipientID int64, reason string) error
}

// RecipientBatch is a claimed set of pending recipients. The claim holds row
// locks until Close, so a concurrent claimer skips these rows entirely; this
// is what makes the claim at-most-once.
type RecipientBatch interface {
	Recipients() []model.Recipient
	MarkSent(ctx context.Context, recipientID int64) error
	MarkFailed(ctx context.Context, recipientID int64, reason string) error
	Close(ctx context.Context) error
}

type RecipientRepository struct {
	DB *sql.DB
}

const recipientColumns = `id, public_id, campaign_id, organizer_id, prospect_id, email, name,
	payload, status, open_count, click_count, sent_at, delivered_at, opened_at, clicked_at,
	bounced_at, last_error, created_at, updated_at`

func scanRecipient(row interface{ Scan(...any) error }) (*model.Recipient, error) {
	var rec model.Recipient
	var payload []byte
	err := row.Scan(&rec.ID, &rec.PublicID, &rec.CampaignID, &rec.OrganizerID, &rec.ProspectID,
		&rec.Email, &rec.Name, &payload, &rec.Status, &rec.OpenCount, &rec.ClickCount,
		&rec.SentAt, &rec.DeliveredAt, &rec.OpenedAt, &rec.ClickedAt, &rec.BouncedAt,
		&rec.LastError, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

// sqlRecipientBatch keeps the claiming transaction open so the FOR UPDATE
// locks persist across the sends.
type sqlRecipientBatch struct {
	tx         *sql.Tx
	recipients []model.Recipient
}

func (b *sqlRecipientBatch) Recipients() []model.Recipient { return b.recipients }

func (b *sqlRecipientBatch) MarkSent(ctx context.Context, recipientID int64) error {
	_, err := b.tx.ExecContext(ctx,
		`UPDATE recipients SET status=$1, sent_at=NOW(), last_error='', updated_at=NOW() WHERE id=$2`,
		model.RecipientSent, recipientID)
	return err
}

func (b *sqlRecipientBatch) MarkFailed(ctx context.Context, recipientID int64, reason string) error {
	_, err := b.tx.ExecContext(ctx,
		`UPDATE recipients SET status=$1, last_error=$2, updated_at=NOW() WHERE id=$3`,
		model.RecipientFailed, reason, recipientID)
	return err
}

func (b *sqlRecipientBatch) Close(ctx context.Context) error {
	return b.tx.Commit()
}

func (r *RecipientRepository) ClaimPending(ctx context.Context, campaignID int64, limit int) (RecipientBatch, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+recipientColumns+`
		FROM recipients
		WHERE campaign_id=$1 AND status=$2
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $3
	`, campaignID, model.RecipientPending, limit)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	defer rows.Close()

	batch := &sqlRecipientBatch{tx: tx}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		batch.recipients = append(batch.recipients, *rec)
	}
	if err := rows.Err(); err != nil {
		tx.Rollback()
		return nil, err
	}
	return batch, nil
}

func (r *RecipientRepository) CountPending(ctx context.Context, campaignID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipients WHERE campaign_id=$1 AND status=$2`,
		campaignID, model.RecipientPending).Scan(&n)
	return n, err
}

func (r *RecipientRepository) FindByEmail(ctx context.Context, email string, activeOnly bool) (*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE LOWER(email)=LOWER($1)`
	if activeOnly {
		query += ` AND status = ANY($2)`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 1`

	var row *sql.Row
	if activeOnly {
		row = r.DB.QueryRowContext(ctx, query, email, pqStringArray(model.ActiveRecipientStatuses))
	} else {
		row = r.DB.QueryRowContext(ctx, query, email)
	}
	rec, err := scanRecipient(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecipientRepository) FindByPublicPrefix(ctx context.Context, campaignPrefix, recipientPrefix string) ([]model.Recipient, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+prefixedRecipientColumns("r")+`
		FROM recipients r
		JOIN campaigns c ON c.id = r.campaign_id
		WHERE r.public_id::text LIKE $1 AND c.public_id::text LIKE $2
	`, recipientPrefix+"%", campaignPrefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []model.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, *rec)
	}
	return recipients, rows.Err()
}

func (r *RecipientRepository) MarkDelivered(ctx context.Context, recipientID int64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE recipients
		SET status=$1, delivered_at=COALESCE(delivered_at, $2), updated_at=NOW()
		WHERE id=$3
	`, model.RecipientDelivered, at, recipientID)
	return err
}

// RecordOpen bumps the open counter; the first-open time is never overwritten
// by later opens.
func (r *RecipientRepository) RecordOpen(ctx context.Context, recipientID int64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE recipients
		SET status=$1, open_count=open_count+1, opened_at=COALESCE(opened_at, $2), updated_at=NOW()
		WHERE id=$3
	`, model.RecipientOpened, at, recipientID)
	return err
}

func (r *RecipientRepository) RecordClick(ctx context.Context, recipientID int64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE recipients
		SET status=$1, click_count=click_count+1, clicked_at=COALESCE(clicked_at, $2), updated_at=NOW()
		WHERE id=$3
	`, model.RecipientClicked, at, recipientID)
	return err
}

func (r *RecipientRepository) MarkBounced(ctx context.Context, recipientID int64, at time.Time, reason string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE recipients
		SET status=$1, bounced_at=COALESCE(bounced_at, $2), last_error=$3, updated_at=NOW()
		WHERE id=$4
	`, model.RecipientBounced, at, reason, recipientID)
	return err
}

func (r *RecipientRepository) MarkDropped(ctx context.Context, recipientID int64, reason string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE recipients SET status=$1, last_error=$2, updated_at=NOW() WHERE id=$3`,
		model.RecipientFailed, reason, recipientID)
	return err
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
