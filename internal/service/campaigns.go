// internal/service/campaigns.go
package service

import (
	"context"
	"time"

	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
)

// CampaignService covers the thin campaign CRUD surface around the core
// pipeline.
type CampaignService struct {
	Campaigns repository.CampaignRepositoryInterface
	Prospects repository.ProspectRepositoryInterface
}

type CampaignDetails struct {
	model.Campaign
	Stats map[string]int `json:"stats"`
}

func (s *CampaignService) Create(ctx context.Context, organizerID int64, name string, templateID, listID, senderID *int64, includeRisky bool, scheduledAt *string) (*model.Campaign, error) {
	c := &model.Campaign{
		OrganizerID:  organizerID,
		Name:         name,
		TemplateID:   templateID,
		ListID:       listID,
		SenderID:     senderID,
		IncludeRisky: includeRisky,
		Status:       model.CampaignDraft,
	}
	if scheduledAt != nil && *scheduledAt != "" {
		t, err := time.Parse(time.RFC3339, *scheduledAt)
		if err != nil {
			return nil, err
		}
		c.ScheduledAt = &t
	}
	if err := s.Campaigns.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, organizerID int64, page, pageSize int, status string) ([]*model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	campaigns, total, err := s.Campaigns.List(ctx, organizerID, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

func (s *CampaignService) GetWithStats(ctx context.Context, campaignID, organizerID int64) (*CampaignDetails, error) {
	c, err := s.Campaigns.GetByID(ctx, campaignID, organizerID)
	if err != nil {
		return nil, err
	}
	stats, err := s.Campaigns.StatusCounts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: *c, Stats: stats}, nil
}

// samplePayload backs previews when no prospect is named.
var samplePayload = model.Payload{
	model.FieldFirstName: "Alice",
	model.FieldLastName:  "Smith",
	model.FieldName:      "Alice Smith",
	model.FieldCompany:   "Acme Inc",
	model.FieldEmail:     "alice@example.com",
	model.FieldCountry:   "Kenya",
	model.FieldPosition:  "Head of Growth",
	model.FieldWebsite:   "https://acme.example",
	model.FieldTag:       "demo",
}

type PreviewResult struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Preview renders the campaign's template against a named prospect, or
// against synthetic sample data when prospectID is nil.
func (s *CampaignService) Preview(ctx context.Context, campaignID, organizerID int64, prospectID *int64) (*PreviewResult, error) {
	job, err := s.Campaigns.GetCampaignJob(ctx, campaignID, organizerID)
	if err != nil {
		return nil, err
	}

	payload := samplePayload
	if prospectID != nil {
		p, err := s.Prospects.GetByID(ctx, *prospectID, organizerID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			payload = model.Payload{
				model.FieldFirstName: p.FirstName,
				model.FieldLastName:  p.LastName,
				model.FieldName:      p.Name,
				model.FieldCompany:   p.Company,
				model.FieldEmail:     p.Email,
				model.FieldCountry:   p.Country,
				model.FieldPosition:  p.Position,
				model.FieldWebsite:   p.Website,
				model.FieldTag:       p.Tag,
			}
		}
	}

	return &PreviewResult{
		Subject: RenderTemplate(job.Subject, payload),
		HTML:    RenderTemplate(job.BodyHTML, payload),
		Text:    RenderTemplate(job.BodyText, payload),
	}, nil
}
