// internal/service/lifecycle.go
package service

import (
	"context"
	"time"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
)

// Lifecycle owns explicit campaign status transitions. Every write is
// conditional on the expected prior status; when the conditional matches zero
// rows another actor already moved the campaign and the caller gets
// ErrConcurrentTransition, which is benign.
type Lifecycle struct {
	Campaigns repository.CampaignRepositoryInterface
}

func (s *Lifecycle) Pause(ctx context.Context, campaignID, organizerID int64) (*model.Campaign, error) {
	return s.transition(ctx, campaignID, organizerID, model.CampaignSending, model.CampaignPaused)
}

func (s *Lifecycle) Resume(ctx context.Context, campaignID, organizerID int64) (*model.Campaign, error) {
	return s.transition(ctx, campaignID, organizerID, model.CampaignPaused, model.CampaignSending)
}

// Schedule moves a ready campaign to scheduled at the given time.
func (s *Lifecycle) Schedule(ctx context.Context, campaignID, organizerID int64, at time.Time) (*model.Campaign, error) {
	c, err := s.Campaigns.GetByID(ctx, campaignID, organizerID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignReady {
		return nil, apperrors.NewInvalidState(campaignID, c.Status, model.CampaignReady)
	}
	if err := s.Campaigns.SetSchedule(ctx, campaignID, at); err != nil {
		return nil, err
	}
	c.Status = model.CampaignScheduled
	c.ScheduledAt = &at
	return c, nil
}

// SendNow moves a ready or scheduled campaign straight into sending.
func (s *Lifecycle) SendNow(ctx context.Context, campaignID, organizerID int64) (*model.Campaign, error) {
	c, err := s.Campaigns.GetByID(ctx, campaignID, organizerID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignReady && c.Status != model.CampaignScheduled {
		return nil, apperrors.NewInvalidState(campaignID, c.Status, model.CampaignReady)
	}
	if err := s.Campaigns.TransitionStatus(ctx, campaignID, c.Status, model.CampaignSending, ""); err != nil {
		return nil, err
	}
	c.Status = model.CampaignSending
	return c, nil
}

func (s *Lifecycle) transition(ctx context.Context, campaignID, organizerID int64, from, to string) (*model.Campaign, error) {
	c, err := s.Campaigns.GetByID(ctx, campaignID, organizerID)
	if err != nil {
		return nil, err
	}
	if c.Status != from {
		return nil, apperrors.NewInvalidState(campaignID, c.Status, from)
	}
	if err := s.Campaigns.TransitionStatus(ctx, campaignID, from, to, ""); err != nil {
		return nil, err
	}
	c.Status = to
	return c, nil
}
