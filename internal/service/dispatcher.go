// internal/service/dispatcher.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/internal/mail"
	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

// Dispatcher drives outbound sending. Each cycle claims a bounded batch of
// pending recipients per sending campaign under a skip-locked read, so
// concurrent dispatcher instances partition the work and never double-send a
// recipient. A recipient's send failure is terminal for that recipient and
// never aborts the batch.
type Dispatcher struct {
	Campaigns  repository.CampaignRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Senders    repository.SenderRepositoryInterface
	Organizers repository.OrganizerRepositoryInterface
	Transport  mail.Transport
	Unsub      *UnsubscribeTokens

	BaseURL       string
	ReplyDomain   string
	CampaignBatch int
	BatchSize     int
	SendDelay     time.Duration
}

// BatchResult summarizes one dispatch pass over a campaign.
type BatchResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Cycle processes up to CampaignBatch sending campaigns. Per-campaign errors
// are contained; the cycle itself only fails on listing.
func (d *Dispatcher) Cycle(ctx context.Context) error {
	jobs, err := d.Campaigns.SendingCampaigns(ctx, d.CampaignBatch)
	if err != nil {
		return err
	}
	for i := range jobs {
		job := &jobs[i]
		if _, err := d.processCampaign(ctx, job); err != nil {
			logger.L().Errorw("campaign dispatch failed", "campaign_id", job.ID, "error", err)
		}
	}
	return nil
}

// SendBatch is the manual trigger variant: one synchronous dispatch pass for
// one campaign with an explicitly chosen sender identity.
func (d *Dispatcher) SendBatch(ctx context.Context, campaignID, organizerID, senderID int64, batchSize int) (*BatchResult, error) {
	job, err := d.Campaigns.GetCampaignJob(ctx, campaignID, organizerID)
	if err != nil {
		return nil, err
	}
	sender, err := d.Senders.GetByID(ctx, senderID, organizerID)
	if err != nil {
		return nil, err
	}
	if !sender.Active {
		return nil, apperrors.NewReferenceNotFound("active sender", senderID)
	}
	settings, err := d.Organizers.GetSettings(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	if err := checkCompliance(settings); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = d.BatchSize
	}
	result, err := d.sendClaimed(ctx, job, sender, settings, batchSize)
	if err != nil {
		return nil, err
	}
	if err := d.maybeComplete(ctx, job.ID); err != nil {
		return result, err
	}
	return result, nil
}

func (d *Dispatcher) processCampaign(ctx context.Context, job *model.CampaignJob) (*BatchResult, error) {
	settings, err := d.Organizers.GetSettings(ctx, job.OrganizerID)
	if err != nil {
		return nil, err
	}
	if err := checkCompliance(settings); err != nil {
		// Hard blocker, not retryable: fail the campaign and move on.
		d.flag(ctx, job.ID, model.CampaignFailed, err.Error())
		return nil, err
	}

	if job.SenderID == nil {
		d.flag(ctx, job.ID, model.CampaignPaused, "no sender identity bound")
		return nil, apperrors.NewMissingConfiguration("no sender identity bound")
	}
	sender, err := d.Senders.GetByID(ctx, *job.SenderID, job.OrganizerID)
	if err != nil {
		var ref *apperrors.ReferenceNotFoundError
		if errors.As(err, &ref) {
			d.flag(ctx, job.ID, model.CampaignPaused, err.Error())
		}
		return nil, err
	}
	if !sender.Active {
		msg := fmt.Sprintf("sender %d is inactive", sender.ID)
		d.flag(ctx, job.ID, model.CampaignPaused, msg)
		return nil, apperrors.NewMissingConfiguration(msg)
	}

	result, err := d.sendClaimed(ctx, job, sender, settings, d.BatchSize)
	if err != nil {
		return nil, err
	}
	if err := d.maybeComplete(ctx, job.ID); err != nil {
		return result, err
	}
	return result, nil
}

// maybeComplete flips a drained campaign to completed. The transition is
// conditional on the sending status, so campaigns in any other state (and
// races lost to another actor) fall through silently.
func (d *Dispatcher) maybeComplete(ctx context.Context, campaignID int64) error {
	pending, err := d.Recipients.CountPending(ctx, campaignID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}
	err = d.Campaigns.TransitionStatus(ctx, campaignID, model.CampaignSending, model.CampaignCompleted, "")
	switch {
	case err == nil:
		logger.L().Infow("campaign completed", "campaign_id", campaignID)
	case errors.Is(err, apperrors.ErrConcurrentTransition):
	default:
		return err
	}
	return nil
}

func (d *Dispatcher) sendClaimed(ctx context.Context, job *model.CampaignJob, sender *model.Sender, settings *model.OrganizerSettings, batchSize int) (*BatchResult, error) {
	batch, err := d.Recipients.ClaimPending(ctx, job.ID, batchSize)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Total: len(batch.Recipients())}
	for i, rec := range batch.Recipients() {
		if i > 0 && d.SendDelay > 0 {
			// Naive pacing against the provider's rate limits. Batches are
			// small, so this is sufficient.
			select {
			case <-time.After(d.SendDelay):
			case <-ctx.Done():
				_ = batch.Close(ctx)
				return result, ctx.Err()
			}
		}
		if err := d.sendOne(ctx, batch, job, &rec, sender, settings); err != nil {
			result.Failed++
		} else {
			result.Sent++
		}
	}

	if err := batch.Close(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// sendOne personalizes and sends to a single claimed recipient. Every failure
// path converts to a failed-status update; nothing propagates out of the batch.
func (d *Dispatcher) sendOne(ctx context.Context, batch repository.RecipientBatch, job *model.CampaignJob, rec *model.Recipient, sender *model.Sender, settings *model.OrganizerSettings) error {
	payload := rec.Payload.Clone()
	payload[model.FieldEmail] = rec.Email
	if payload.Get(model.FieldName) == "" {
		payload[model.FieldName] = rec.Name
	}
	if d.Unsub != nil {
		if unsubURL, err := d.Unsub.URL(d.BaseURL, rec.Email, rec.OrganizerID); err == nil {
			payload[model.FieldUnsubscribeURL] = unsubURL
		} else {
			logger.L().Warnw("unsubscribe token generation failed", "recipient_id", rec.ID, "error", err)
		}
	}

	msg := &mail.Message{
		To:        rec.Email,
		ToName:    rec.Name,
		Subject:   RenderTemplate(job.Subject, payload),
		HTML:      appendFooterHTML(RenderTemplate(job.BodyHTML, payload), settings.MailingAddress, payload.Get(model.FieldUnsubscribeURL)),
		Text:      appendFooterText(RenderTemplate(job.BodyText, payload), settings.MailingAddress, payload.Get(model.FieldUnsubscribeURL)),
		FromEmail: sender.FromEmail,
		FromName:  sender.FromName,
		ReplyTo:   sender.ReplyTo,
	}
	if d.ReplyDomain != "" {
		// Encoded reply-to lets the inbound webhook match replies back to
		// this exact send.
		msg.ReplyTo = EncodeReplyAddress(job.PublicID, rec.PublicID, d.ReplyDomain)
	}

	if _, err := d.Transport.Send(ctx, settings.ProviderAPIKey, msg); err != nil {
		if markErr := batch.MarkFailed(ctx, rec.ID, err.Error()); markErr != nil {
			logger.L().Errorw("failed to record send failure", "recipient_id", rec.ID, "error", markErr)
		}
		logger.L().Warnw("send failed", "recipient_id", rec.ID, "email", rec.Email, "error", err)
		return err
	}
	if err := batch.MarkSent(ctx, rec.ID); err != nil {
		logger.L().Errorw("failed to record sent status", "recipient_id", rec.ID, "error", err)
		return err
	}
	return nil
}

// flag transitions a sending campaign with an explanatory error; losing the
// race to another actor is fine.
func (d *Dispatcher) flag(ctx context.Context, campaignID int64, to, reason string) {
	err := d.Campaigns.TransitionStatus(ctx, campaignID, model.CampaignSending, to, reason)
	if err != nil && !errors.Is(err, apperrors.ErrConcurrentTransition) {
		logger.L().Errorw("campaign flag failed", "campaign_id", campaignID, "to", to, "error", err)
	}
}

func checkCompliance(settings *model.OrganizerSettings) error {
	if settings.MailingAddress == "" {
		return apperrors.NewMissingConfiguration("organizer mailing address is required before sending")
	}
	if settings.ProviderAPIKey == "" {
		return apperrors.NewMissingConfiguration("delivery provider credential is missing")
	}
	return nil
}

func appendFooterHTML(body, mailingAddress, unsubURL string) string {
	if body == "" {
		return body
	}
	footer := "<br><br><p style=\"font-size:12px;color:#888\">" + mailingAddress
	if unsubURL != "" {
		footer += " &middot; <a href=\"" + unsubURL + "\">Unsubscribe</a>"
	}
	footer += "</p>"
	return body + footer
}

func appendFooterText(body, mailingAddress, unsubURL string) string {
	if body == "" {
		return body
	}
	footer := "\n\n--\n" + mailingAddress
	if unsubURL != "" {
		footer += "\nUnsubscribe: " + unsubURL
	}
	return body + footer
}
