// internal/service/scheduler.go
package service

import (
	"context"

	"github.com/leadgrid/leadgrid-backend/internal/repository"
	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

// Scheduler flips due scheduled campaigns into sending. Claiming is
// skip-locked, so multiple scheduler instances never double-claim a campaign.
type Scheduler struct {
	Campaigns repository.CampaignRepositoryInterface
	BatchSize int
}

func (s *Scheduler) Cycle(ctx context.Context) error {
	ids, err := s.Campaigns.ClaimDueScheduled(ctx, s.BatchSize)
	if err != nil {
		return err
	}
	for _, id := range ids {
		logger.L().Infow("scheduled campaign started", "campaign_id", id)
	}
	return nil
}
