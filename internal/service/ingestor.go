// internal/service/ingestor.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/queue"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

// canonicalEventTypes maps provider event names onto our vocabulary.
// Providers add event types over time; anything absent here is dropped, not
// an error.
var canonicalEventTypes = map[string]string{
	"delivered":         model.EventDelivered,
	"open":              model.EventOpen,
	"opened":            model.EventOpen,
	"click":             model.EventClick,
	"clicked":           model.EventClick,
	"bounce":            model.EventBounce,
	"bounced":           model.EventBounce,
	"dropped":           model.EventDropped,
	"deferred":          model.EventDeferred,
	"spamreport":        model.EventSpamReport,
	"spam_report":       model.EventSpamReport,
	"spam":              model.EventSpamReport,
	"unsubscribe":       model.EventUnsubscribe,
	"group_unsubscribe": model.EventUnsubscribe,
	"reply":             model.EventReply,
}

// Ingestor applies provider webhook events. The provider delivers
// at-least-once, so ingestion is idempotent: the event log's unique key
// detects redeliveries up front and a duplicate skips the counter,
// suppression, and intent writes entirely; timestamp writes tolerate
// replayed ordering on their own.
type Ingestor struct {
	Recipients  repository.RecipientRepositoryInterface
	Events      repository.EventRepositoryInterface
	Suppression repository.SuppressionRepositoryInterface
	Intents     repository.IntentRepositoryInterface
	Prospects   repository.ProspectRepositoryInterface
	Publisher   queue.EventPublisher
}

// IngestOutcome reports which sub-steps ran for one event, so callers (and
// tests) see exactly what happened without parsing log text.
type IngestOutcome struct {
	CanonicalType  string
	Dropped        bool
	DropReason     string
	RecipientID    int64
	StatusUpdated  bool
	Suppressed     bool
	EventRecorded  bool
	DuplicateEvent bool
	IntentRecorded bool
	Errors         []error
}

// HandleBatch ingests a provider webhook batch. It never returns an error:
// the webhook endpoint must acknowledge regardless of internal outcome.
func (s *Ingestor) HandleBatch(ctx context.Context, events []model.ProviderEvent) {
	for i := range events {
		outcome := s.Ingest(ctx, &events[i])
		logger.L().Infow("webhook event ingested",
			"event", events[i].Event,
			"canonical", outcome.CanonicalType,
			"email", events[i].Email,
			"recipient_id", outcome.RecipientID,
			"dropped", outcome.Dropped,
			"drop_reason", outcome.DropReason,
			"status_updated", outcome.StatusUpdated,
			"suppressed", outcome.Suppressed,
			"event_recorded", outcome.EventRecorded,
			"duplicate", outcome.DuplicateEvent,
			"intent_recorded", outcome.IntentRecorded,
			"errors", len(outcome.Errors))
	}
}

func (s *Ingestor) Ingest(ctx context.Context, raw *model.ProviderEvent) *IngestOutcome {
	out := &IngestOutcome{}

	email := strings.TrimSpace(raw.Email)
	if email == "" {
		out.Dropped = true
		out.DropReason = "missing email"
		return out
	}
	canonical, ok := canonicalEventTypes[strings.ToLower(strings.TrimSpace(raw.Event))]
	if !ok {
		out.Dropped = true
		out.DropReason = "unrecognized event type"
		return out
	}
	out.CanonicalType = canonical

	rec, err := s.resolveRecipient(ctx, email)
	if err != nil {
		out.Dropped = true
		out.DropReason = "recipient lookup failed"
		out.Errors = append(out.Errors, err)
		return out
	}
	if rec == nil {
		// Events for addresses we never mailed (provider test pings) are
		// expected; drop without error.
		out.Dropped = true
		out.DropReason = "no recipient for email"
		return out
	}
	out.RecipientID = rec.ID

	occurredAt := time.Now()
	if raw.Timestamp > 0 {
		occurredAt = time.Unix(raw.Timestamp, 0)
	}

	// When the provider stamps an event id, the event log's unique key is
	// the dedup authority: insert first, and treat a collision as a full
	// redelivery. The original delivery already drove the counter,
	// suppression, and intent writes below.
	if raw.ProviderEventID != "" {
		s.recordEvent(ctx, out, raw, rec, canonical, occurredAt)
		if out.DuplicateEvent {
			return out
		}
	}

	// Primary status update. Isolated: a failure here never prevents event
	// logging, and vice versa.
	if err := s.applyStatus(ctx, canonical, rec, occurredAt, raw.Reason); err != nil {
		out.Errors = append(out.Errors, err)
	} else {
		out.StatusUpdated = statusBearing(canonical)
	}

	// Bounces and spam reports teach the suppression list.
	if canonical == model.EventBounce || canonical == model.EventSpamReport || canonical == model.EventUnsubscribe {
		source := model.SuppressionSourceBounce
		switch canonical {
		case model.EventSpamReport:
			source = model.SuppressionSourceSpamReport
		case model.EventUnsubscribe:
			source = model.SuppressionSourceUnsubscribe
		}
		if err := s.Suppression.Suppress(ctx, rec.OrganizerID, email, source); err != nil {
			out.Errors = append(out.Errors, err)
		} else {
			out.Suppressed = true
		}
	}

	// Id-less events have no dedup key; log them after the status write, as
	// a best effort.
	if raw.ProviderEventID == "" {
		s.recordEvent(ctx, out, raw, rec, canonical, occurredAt)
	}

	if canonical == model.EventReply || canonical == model.EventClick {
		s.recordIntent(ctx, out, rec, canonical)
	}
	return out
}

func (s *Ingestor) resolveRecipient(ctx context.Context, email string) (*model.Recipient, error) {
	rec, err := s.Recipients.FindByEmail(ctx, email, true)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}
	// Known approximation: falling back to the most recent row regardless of
	// status can attribute an event to the wrong send when the same address
	// received multiple campaigns.
	return s.Recipients.FindByEmail(ctx, email, false)
}

func (s *Ingestor) applyStatus(ctx context.Context, canonical string, rec *model.Recipient, at time.Time, reason string) error {
	switch canonical {
	case model.EventDelivered:
		return s.Recipients.MarkDelivered(ctx, rec.ID, at)
	case model.EventOpen:
		return s.Recipients.RecordOpen(ctx, rec.ID, at)
	case model.EventClick:
		return s.Recipients.RecordClick(ctx, rec.ID, at)
	case model.EventBounce:
		return s.Recipients.MarkBounced(ctx, rec.ID, at, reason)
	case model.EventDropped:
		return s.Recipients.MarkDropped(ctx, rec.ID, reason)
	default:
		// deferred, spam_report, unsubscribe, reply carry no recipient status
		// change of their own.
		return nil
	}
}

func statusBearing(canonical string) bool {
	switch canonical {
	case model.EventDelivered, model.EventOpen, model.EventClick, model.EventBounce, model.EventDropped:
		return true
	}
	return false
}

func (s *Ingestor) recordEvent(ctx context.Context, out *IngestOutcome, raw *model.ProviderEvent, rec *model.Recipient, canonical string, occurredAt time.Time) {
	var providerEventID *string
	if raw.ProviderEventID != "" {
		id := raw.ProviderEventID
		providerEventID = &id
	}
	rawPayload, _ := json.Marshal(raw)

	ev := &model.CampaignEvent{
		OrganizerID:     rec.OrganizerID,
		CampaignID:      rec.CampaignID,
		RecipientID:     &rec.ID,
		ProspectID:      rec.ProspectID,
		EventType:       canonical,
		Email:           strings.ToLower(raw.Email),
		URL:             raw.URL,
		UserAgent:       raw.UserAgent,
		IP:              raw.IP,
		Reason:          raw.Reason,
		ProviderEventID: providerEventID,
		RawPayload:      rawPayload,
		OccurredAt:      occurredAt,
	}
	err := s.Events.Insert(ctx, ev)
	switch {
	case err == nil:
		out.EventRecorded = true
		if s.Publisher != nil {
			if pubErr := s.Publisher.PublishEvent(ctx, ev); pubErr != nil {
				logger.L().Warnw("event publish failed", "event_type", canonical, "error", pubErr)
			}
		}
	case errors.Is(err, apperrors.ErrDuplicateEvent):
		// Redelivery; already recorded.
		out.DuplicateEvent = true
	default:
		out.Errors = append(out.Errors, err)
	}
}

func (s *Ingestor) recordIntent(ctx context.Context, out *IngestOutcome, rec *model.Recipient, canonical string) {
	prospectID := rec.ProspectID
	if prospectID == nil {
		p, err := s.Prospects.FindByEmail(ctx, rec.OrganizerID, rec.Email)
		if err != nil {
			out.Errors = append(out.Errors, err)
			return
		}
		if p == nil {
			// No resolvable person identity; skipped silently.
			return
		}
		prospectID = &p.ID
	}

	intentType := model.IntentClick
	if canonical == model.EventReply {
		intentType = model.IntentReply
	}
	created, err := s.Intents.Record(ctx, &model.ProspectIntent{
		OrganizerID: rec.OrganizerID,
		ProspectID:  *prospectID,
		CampaignID:  &rec.CampaignID,
		IntentType:  intentType,
	})
	if err != nil {
		out.Errors = append(out.Errors, err)
		return
	}
	out.IntentRecorded = created
}
