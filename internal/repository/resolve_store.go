// internal/repository/resolve_store.go
package repository

import (
	"context"
	"database/sql"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/internal/model"
)

// ResolveStoreInterface opens the single transaction recipient resolution
// runs under.
type ResolveStoreInterface interface {
	Begin(ctx context.Context) (ResolveTxInterface, error)
}

type ResolveTxInterface interface {
	LockCampaign(ctx context.Context, campaignID, organizerID int64) (*model.Campaign, error)
	GetList(ctx context.Context, listID, organizerID int64) (*model.List, error)
	GetSender(ctx context.Context, senderID, organizerID int64) (*model.Sender, error)
	CountListBreakdown(ctx context.Context, listID, organizerID int64, includeRisky bool) (*ListBreakdown, error)
	InsertEligible(ctx context.Context, campaignID, listID, organizerID int64, includeRisky bool) (int, error)
	MarkResolved(ctx context.Context, campaignID int64, inserted int) error
	Commit() error
	Rollback() error
}

type ResolveStore struct {
	DB *sql.DB
}

// ResolveTx spans one resolution attempt. The campaign row lock taken by
// LockCampaign is held until Commit/Rollback, so two concurrent resolve calls
// for the same campaign serialize and the loser sees the non-draft status.
type ResolveTx struct {
	tx *sql.Tx
}

func (s *ResolveStore) Begin(ctx context.Context) (ResolveTxInterface, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &ResolveTx{tx: tx}, nil
}

var _ ResolveStoreInterface = (*ResolveStore)(nil)

func (t *ResolveTx) Commit() error   { return t.tx.Commit() }
func (t *ResolveTx) Rollback() error { return t.tx.Rollback() }

func (t *ResolveTx) LockCampaign(ctx context.Context, campaignID, organizerID int64) (*model.Campaign, error) {
	c, err := scanCampaign(t.tx.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id=$1 AND organizer_id=$2 FOR UPDATE`,
		campaignID, organizerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFound("campaign", campaignID)
		}
		return nil, err
	}
	return c, nil
}

func (t *ResolveTx) GetList(ctx context.Context, listID, organizerID int64) (*model.List, error) {
	var l model.List
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, organizer_id, name, created_at FROM lists WHERE id=$1 AND organizer_id=$2`,
		listID, organizerID).Scan(&l.ID, &l.OrganizerID, &l.Name, &l.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewReferenceNotFound("list", listID)
		}
		return nil, err
	}
	return &l, nil
}

func (t *ResolveTx) GetSender(ctx context.Context, senderID, organizerID int64) (*model.Sender, error) {
	var s model.Sender
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, organizer_id, from_email, from_name, reply_to, active, created_at
		 FROM senders WHERE id=$1 AND organizer_id=$2`,
		senderID, organizerID).Scan(&s.ID, &s.OrganizerID, &s.FromEmail, &s.FromName, &s.ReplyTo, &s.Active, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewReferenceNotFound("sender", senderID)
		}
		return nil, err
	}
	return &s, nil
}

// ListBreakdown categorizes list members by why they would be excluded from a
// recipient set. Categories are disjoint: invalid wins over risky, which wins
// over unsubscribed.
type ListBreakdown struct {
	Total        int
	Invalid      int
	Risky        int
	Unsubscribed int
}

func (b ListBreakdown) Eligible() int {
	return b.Total - b.Invalid - b.Risky - b.Unsubscribed
}

func (t *ResolveTx) CountListBreakdown(ctx context.Context, listID, organizerID int64, includeRisky bool) (*ListBreakdown, error) {
	var b ListBreakdown
	// Empty addresses are unmailable; they count as invalid for the stats.
	err := t.tx.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE p.email = '' OR p.verification_status = $3),
			COUNT(*) FILTER (WHERE p.email <> '' AND p.verification_status = $4 AND NOT $5),
			COUNT(*) FILTER (WHERE p.email <> '' AND p.verification_status <> $3
				AND NOT (p.verification_status = $4 AND NOT $5)
				AND u.id IS NOT NULL)
		FROM list_members lm
		JOIN prospects p ON p.id = lm.prospect_id AND p.organizer_id = $2
		LEFT JOIN unsubscribes u ON u.organizer_id = $2 AND LOWER(u.email) = LOWER(p.email)
		WHERE lm.list_id = $1
	`, listID, organizerID,
		model.VerificationInvalid, model.VerificationRisky, includeRisky,
	).Scan(&b.Total, &b.Invalid, &b.Risky, &b.Unsubscribed)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// InsertEligible materializes the eligible set as pending recipient rows. The
// NOT EXISTS guard against existing recipient rows is what keeps (campaign,
// prospect) unique across repeated resolution.
func (t *ResolveTx) InsertEligible(ctx context.Context, campaignID, listID, organizerID int64, includeRisky bool) (int, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO recipients (public_id, campaign_id, organizer_id, prospect_id, email, name, payload, status, created_at, updated_at)
		SELECT gen_random_uuid(), $1, $2, p.id, p.email, p.name,
			jsonb_strip_nulls(jsonb_build_object(
				'email', p.email, 'name', p.name,
				'first_name', p.first_name, 'last_name', p.last_name,
				'company', p.company, 'country', p.country,
				'position', p.position, 'website', p.website, 'tag', p.tag)),
			$6, NOW(), NOW()
		FROM (
			SELECT DISTINCT ON (p.id) p.id, p.email, p.name, p.first_name, p.last_name,
				p.company, p.country, p.position, p.website, p.tag,
				p.verification_status, p.created_at
			FROM list_members lm
			JOIN prospects p ON p.id = lm.prospect_id AND p.organizer_id = $2
			WHERE lm.list_id = $3
			ORDER BY p.id, p.created_at
		) p
		WHERE p.email <> ''
		  AND p.verification_status <> $4
		  AND ($7 OR p.verification_status <> $5)
		  AND NOT EXISTS (
			SELECT 1 FROM unsubscribes u
			WHERE u.organizer_id = $2 AND LOWER(u.email) = LOWER(p.email))
		  AND NOT EXISTS (
			SELECT 1 FROM recipients r
			WHERE r.campaign_id = $1 AND r.prospect_id = p.id)
	`, campaignID, organizerID, listID,
		model.VerificationInvalid, model.VerificationRisky,
		model.RecipientPending, includeRisky)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (t *ResolveTx) MarkResolved(ctx context.Context, campaignID int64, inserted int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE campaigns SET status=$1, recipient_count=$2, last_error='', updated_at=NOW()
		WHERE id=$3 AND status=$4
	`, model.CampaignReady, inserted, campaignID, model.CampaignDraft)
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
