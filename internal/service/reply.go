// internal/service/reply.go
package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/leadgrid/leadgrid-backend/internal/mail"
	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/queue"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

// InboundReply is one parsed inbound-mail webhook post.
type InboundReply struct {
	From    string
	To      string
	Subject string
	Text    string
	Headers string
}

// ReplyOutcome reports what the reply ingestion did.
type ReplyOutcome struct {
	Dropped        bool
	DropReason     string
	RecipientID    int64
	EventRecorded  bool
	IntentRecorded bool
	Forwarded      bool
	Errors         []error
}

// replyAddressPattern matches the encoded reply-to addresses we stamp on
// outbound mail: c-{shortCampaignId}-r-{shortRecipientId}@reply.<domain>.
// The short ids are truncated public-id prefixes.
var replyAddressPattern = regexp.MustCompile(`(?i)c-([0-9a-f]{8})-r-([0-9a-f]{8})@`)

// EncodeReplyAddress builds the reply-to address for one send. Ids are
// truncated to the first 8 hex characters of the public uuids, which keeps
// the local part transport-safe at the cost of possible collisions on decode.
func EncodeReplyAddress(campaignPublicID, recipientPublicID, domain string) string {
	return "c-" + shortID(campaignPublicID) + "-r-" + shortID(recipientPublicID) + "@" + domain
}

func shortID(publicID string) string {
	hex := strings.ReplaceAll(strings.ToLower(publicID), "-", "")
	if len(hex) > 8 {
		hex = hex[:8]
	}
	return hex
}

var autoReplyFromPatterns = []string{
	"mailer-daemon", "postmaster", "no-reply", "noreply", "donotreply",
}

var autoReplySubjectPatterns = []string{
	"out of office", "automatic reply", "auto-reply", "auto reply", "auto:",
	"delivery status notification", "undeliverable",
}

var autoReplyHeaderPatterns = []string{
	"auto-submitted: auto", "precedence: bulk", "precedence: junk",
	"precedence: list", "x-autoreply", "x-autorespond",
}

// ReplyIngestor recovers a campaign/recipient pair from an encoded reply
// address, records the reply as an event and an intent, and forwards a
// sanitized copy to the organizer's real inbox.
type ReplyIngestor struct {
	Recipients  repository.RecipientRepositoryInterface
	Organizers  repository.OrganizerRepositoryInterface
	Events      repository.EventRepositoryInterface
	Intents     repository.IntentRepositoryInterface
	Prospects   repository.ProspectRepositoryInterface
	Transport   mail.Transport
	Publisher   queue.EventPublisher
	ReplyDomain string
}

func (s *ReplyIngestor) Ingest(ctx context.Context, reply *InboundReply) *ReplyOutcome {
	out := &ReplyOutcome{}

	campaignPrefix, recipientPrefix, ok := s.decodeReplyAddress(reply.To)
	if !ok {
		out.Dropped = true
		out.DropReason = "no encoded reply address"
		return out
	}
	if isAutoReply(reply) {
		out.Dropped = true
		out.DropReason = "auto-generated reply"
		return out
	}

	matches, err := s.Recipients.FindByPublicPrefix(ctx, campaignPrefix, recipientPrefix)
	if err != nil {
		out.Dropped = true
		out.DropReason = "recipient lookup failed"
		out.Errors = append(out.Errors, err)
		return out
	}
	if len(matches) == 0 {
		out.Dropped = true
		out.DropReason = "no recipient matches encoded address"
		return out
	}
	if len(matches) > 1 {
		// The ids are truncated; more than one candidate is a collision and
		// the event is discarded rather than guessed at.
		out.Dropped = true
		out.DropReason = "truncated id collision"
		return out
	}
	rec := matches[0]
	out.RecipientID = rec.ID

	ev := &model.CampaignEvent{
		OrganizerID: rec.OrganizerID,
		CampaignID:  rec.CampaignID,
		RecipientID: &rec.ID,
		ProspectID:  rec.ProspectID,
		EventType:   model.EventReply,
		Email:       strings.ToLower(rec.Email),
		Reason:      sanitizeSubject(reply.Subject),
		OccurredAt:  time.Now(),
	}
	if err := s.Events.Insert(ctx, ev); err != nil {
		out.Errors = append(out.Errors, err)
	} else {
		out.EventRecorded = true
		if s.Publisher != nil {
			if pubErr := s.Publisher.PublishEvent(ctx, ev); pubErr != nil {
				logger.L().Warnw("reply event publish failed", "recipient_id", rec.ID, "error", pubErr)
			}
		}
	}

	s.recordReplyIntent(ctx, out, &rec)
	s.forward(ctx, out, &rec, reply)
	return out
}

func (s *ReplyIngestor) decodeReplyAddress(to string) (campaignPrefix, recipientPrefix string, ok bool) {
	if !strings.Contains(strings.ToLower(to), "@"+strings.ToLower(s.ReplyDomain)) {
		return "", "", false
	}
	m := replyAddressPattern.FindStringSubmatch(to)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), strings.ToLower(m[2]), true
}

func isAutoReply(reply *InboundReply) bool {
	from := strings.ToLower(reply.From)
	for _, p := range autoReplyFromPatterns {
		if strings.Contains(from, p) {
			return true
		}
	}
	subject := strings.ToLower(reply.Subject)
	for _, p := range autoReplySubjectPatterns {
		if strings.Contains(subject, p) {
			return true
		}
	}
	headers := strings.ToLower(reply.Headers)
	for _, p := range autoReplyHeaderPatterns {
		if strings.Contains(headers, p) {
			return true
		}
	}
	return false
}

func (s *ReplyIngestor) recordReplyIntent(ctx context.Context, out *ReplyOutcome, rec *model.Recipient) {
	prospectID := rec.ProspectID
	if prospectID == nil {
		p, err := s.Prospects.FindByEmail(ctx, rec.OrganizerID, rec.Email)
		if err != nil {
			out.Errors = append(out.Errors, err)
			return
		}
		if p == nil {
			return
		}
		prospectID = &p.ID
	}
	created, err := s.Intents.Record(ctx, &model.ProspectIntent{
		OrganizerID: rec.OrganizerID,
		ProspectID:  *prospectID,
		CampaignID:  &rec.CampaignID,
		IntentType:  model.IntentReply,
	})
	if err != nil {
		out.Errors = append(out.Errors, err)
		return
	}
	out.IntentRecorded = created
}

// forward delivers a sanitized copy of the reply to the organizer's own
// inbox. Failure is logged, never fatal to ingestion.
func (s *ReplyIngestor) forward(ctx context.Context, out *ReplyOutcome, rec *model.Recipient, reply *InboundReply) {
	settings, err := s.Organizers.GetSettings(ctx, rec.OrganizerID)
	if err != nil {
		out.Errors = append(out.Errors, err)
		return
	}
	if settings.Email == "" || settings.ProviderAPIKey == "" {
		return
	}

	subject := sanitizeSubject(reply.Subject)
	if subject == "" {
		subject = "New reply from " + rec.Email
	}
	msg := &mail.Message{
		To:        settings.Email,
		Subject:   subject,
		Text:      "Reply from " + rec.Email + ":\n\n" + reply.Text,
		FromEmail: "replies@" + s.ReplyDomain,
		FromName:  "Reply Forwarder",
		ReplyTo:   rec.Email,
	}
	if _, err := s.Transport.Send(ctx, settings.ProviderAPIKey, msg); err != nil {
		out.Errors = append(out.Errors, err)
		return
	}
	out.Forwarded = true
}

func sanitizeSubject(subject string) string {
	subject = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, subject)
	subject = strings.TrimSpace(subject)
	if len(subject) > 200 {
		subject = subject[:200]
	}
	return subject
}
