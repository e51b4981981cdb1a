// internal/service/resolver.go
package service

import (
	"context"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

// Resolver materializes a draft campaign's eligible recipient set. Everything
// runs under one transaction with the campaign row locked, so a concurrent
// resolve of the same campaign serializes behind the lock and then fails the
// draft-status precondition. Any failure rolls back completely.
type Resolver struct {
	Store repository.ResolveStoreInterface
}

func (s *Resolver) Resolve(ctx context.Context, campaignID, organizerID int64) (*model.Campaign, *model.ResolveStats, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.L().Warnw("resolve rollback failed", "campaign_id", campaignID, "error", rbErr)
			}
		}
	}()

	campaign, err := tx.LockCampaign(ctx, campaignID, organizerID)
	if err != nil {
		return nil, nil, err
	}
	if campaign.Status != model.CampaignDraft {
		return nil, nil, apperrors.NewInvalidState(campaignID, campaign.Status, model.CampaignDraft)
	}
	if campaign.ListID == nil {
		return nil, nil, apperrors.NewMissingConfiguration("campaign has no list bound")
	}
	if campaign.SenderID == nil {
		return nil, nil, apperrors.NewMissingConfiguration("campaign has no sender bound")
	}

	if _, err := tx.GetList(ctx, *campaign.ListID, organizerID); err != nil {
		return nil, nil, err
	}
	sender, err := tx.GetSender(ctx, *campaign.SenderID, organizerID)
	if err != nil {
		return nil, nil, err
	}
	if !sender.Active {
		return nil, nil, apperrors.NewReferenceNotFound("active sender", sender.ID)
	}

	breakdown, err := tx.CountListBreakdown(ctx, *campaign.ListID, organizerID, campaign.IncludeRisky)
	if err != nil {
		return nil, nil, err
	}

	inserted, err := tx.InsertEligible(ctx, campaignID, *campaign.ListID, organizerID, campaign.IncludeRisky)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.MarkResolved(ctx, campaignID, inserted); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	committed = true

	campaign.Status = model.CampaignReady
	campaign.RecipientCount = inserted

	stats := &model.ResolveStats{
		TotalInList:          breakdown.Total,
		ExcludedInvalid:      breakdown.Invalid,
		ExcludedRisky:        breakdown.Risky,
		ExcludedUnsubscribed: breakdown.Unsubscribed,
		Eligible:             breakdown.Eligible(),
		Inserted:             inserted,
	}
	logger.L().Infow("campaign resolved",
		"campaign_id", campaignID,
		"total_in_list", stats.TotalInList,
		"eligible", stats.Eligible,
		"inserted", stats.Inserted)
	return campaign, stats, nil
}
