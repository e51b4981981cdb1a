// internal/repository/campaign_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id, organizerID int64) (*model.Campaign, error)
	List(ctx context.Context, organizerID int64, offset, limit int, status string) ([]*model.Campaign, int, error)
	StatusCounts(ctx context.Context, campaignID int64) (map[string]int, error)

	// TransitionStatus is a conditional write: zero rows affected means another
	// actor already moved the campaign and ErrConcurrentTransition is returned.
	TransitionStatus(ctx context.Context, campaignID int64, from, to, lastError string) error
	SetSchedule(ctx context.Context, campaignID int64, at time.Time) error

	// SendingCampaigns returns up to limit campaigns in sending status joined
	// with their template content.
	SendingCampaigns(ctx context.Context, limit int) ([]model.CampaignJob, error)
	GetCampaignJob(ctx context.Context, campaignID, organizerID int64) (*model.CampaignJob, error)

	// ClaimDueScheduled flips due scheduled campaigns to sending under a
	// skip-locked read so concurrent scheduler instances partition the work.
	ClaimDueScheduled(ctx context.Context, limit int) ([]int64, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, public_id, organizer_id, name, template_id, list_id, sender_id,
	status, include_risky, scheduled_at, recipient_count, last_error, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(&c.ID, &c.PublicID, &c.OrganizerID, &c.Name, &c.TemplateID, &c.ListID,
		&c.SenderID, &c.Status, &c.IncludeRisky, &c.ScheduledAt, &c.RecipientCount,
		&c.LastError, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.PublicID = uuid.NewString()
	c.CreatedAt = time.Now()
	query := `
        INSERT INTO campaigns (public_id, organizer_id, name, template_id, list_id, sender_id,
                               status, include_risky, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query,
		c.PublicID, c.OrganizerID, c.Name, c.TemplateID, c.ListID, c.SenderID,
		c.Status, c.IncludeRisky, c.ScheduledAt, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id, organizerID int64) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1 AND organizer_id=$2`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id, organizerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFound("campaign", id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) List(ctx context.Context, organizerID int64, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE organizer_id=$1`
	args := []any{organizerID}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE organizer_id=$1`
	countArgs := []any{organizerID}
	if status != "" {
		countQuery += " AND status=$2"
		countArgs = append(countArgs, status)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

func (r *CampaignRepository) StatusCounts(ctx context.Context, campaignID int64) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM recipients WHERE campaign_id=$1 GROUP BY status`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"total": 0, model.RecipientPending: 0, model.RecipientSent: 0,
		model.RecipientDelivered: 0, model.RecipientOpened: 0, model.RecipientClicked: 0,
		model.RecipientBounced: 0, model.RecipientFailed: 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, rows.Err()
}

func (r *CampaignRepository) TransitionStatus(ctx context.Context, campaignID int64, from, to, lastError string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status=$1, last_error=$2, updated_at=NOW() WHERE id=$3 AND status=$4`,
		to, lastError, campaignID, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrConcurrentTransition
	}
	return nil
}

func (r *CampaignRepository) SetSchedule(ctx context.Context, campaignID int64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status=$1, scheduled_at=$2, updated_at=NOW() WHERE id=$3 AND status=$4`,
		model.CampaignScheduled, at, campaignID, model.CampaignReady)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrConcurrentTransition
	}
	return nil
}

const campaignJobQuery = `
	SELECT c.id, c.public_id, c.organizer_id, c.name, c.template_id, c.list_id, c.sender_id,
	       c.status, c.include_risky, c.scheduled_at, c.recipient_count, c.last_error,
	       c.created_at, c.updated_at,
	       COALESCE(t.subject, ''), COALESCE(t.body_html, ''), COALESCE(t.body_text, '')
	FROM campaigns c
	LEFT JOIN templates t ON t.id = c.template_id
`

func scanCampaignJob(row interface{ Scan(...any) error }) (*model.CampaignJob, error) {
	var j model.CampaignJob
	err := row.Scan(&j.ID, &j.PublicID, &j.OrganizerID, &j.Name, &j.TemplateID, &j.ListID,
		&j.SenderID, &j.Status, &j.IncludeRisky, &j.ScheduledAt, &j.RecipientCount,
		&j.LastError, &j.CreatedAt, &j.UpdatedAt, &j.Subject, &j.BodyHTML, &j.BodyText)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *CampaignRepository) SendingCampaigns(ctx context.Context, limit int) ([]model.CampaignJob, error) {
	rows, err := r.DB.QueryContext(ctx,
		campaignJobQuery+` WHERE c.status=$1 ORDER BY c.id LIMIT $2`, model.CampaignSending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []model.CampaignJob{}
	for rows.Next() {
		j, err := scanCampaignJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *CampaignRepository) GetCampaignJob(ctx context.Context, campaignID, organizerID int64) (*model.CampaignJob, error) {
	j, err := scanCampaignJob(r.DB.QueryRowContext(ctx,
		campaignJobQuery+` WHERE c.id=$1 AND c.organizer_id=$2`, campaignID, organizerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFound("campaign", campaignID)
		}
		return nil, err
	}
	return j, nil
}

func (r *CampaignRepository) ClaimDueScheduled(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `
		UPDATE campaigns SET status=$1, updated_at=NOW()
		WHERE id IN (
			SELECT id FROM campaigns
			WHERE status=$2 AND scheduled_at <= NOW()
			ORDER BY scheduled_at
			FOR UPDATE SKIP LOCKED
			LIMIT $3
		)
		RETURNING id
	`, model.CampaignSending, model.CampaignScheduled, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
