// internal/model/event.go
package model

import "time"

// Canonical event types. Provider-specific names are mapped onto these by the
// webhook ingestor; anything outside this vocabulary is dropped.
const (
	EventDelivered   = "delivered"
	EventOpen        = "open"
	EventClick       = "click"
	EventBounce      = "bounce"
	EventDropped     = "dropped"
	EventDeferred    = "deferred"
	EventSpamReport  = "spam_report"
	EventUnsubscribe = "unsubscribe"
	EventReply       = "reply"
)

// CampaignEvent is one immutable log entry for a webhook-observed occurrence.
// Rows are only ever inserted; the unique key on
// (campaign_id, event_type, lower(email), provider_event_id) makes redelivery
// a no-op.
type CampaignEvent struct {
	ID              int64     `db:"id" json:"id"`
	OrganizerID     int64     `db:"organizer_id" json:"organizer_id"`
	CampaignID      int64     `db:"campaign_id" json:"campaign_id"`
	RecipientID     *int64    `db:"recipient_id" json:"recipient_id,omitempty"`
	ProspectID      *int64    `db:"prospect_id" json:"prospect_id,omitempty"`
	EventType       string    `db:"event_type" json:"event_type"`
	Email           string    `db:"email" json:"email"`
	URL             string    `db:"url" json:"url,omitempty"`
	UserAgent       string    `db:"user_agent" json:"user_agent,omitempty"`
	IP              string    `db:"ip" json:"ip,omitempty"`
	Reason          string    `db:"reason" json:"reason,omitempty"`
	ProviderEventID *string   `db:"provider_event_id" json:"provider_event_id,omitempty"`
	RawPayload      []byte    `db:"raw_payload" json:"-"`
	OccurredAt      time.Time `db:"occurred_at" json:"occurred_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ProviderEvent is the wire shape of one entry in the delivery provider's
// webhook batch.
type ProviderEvent struct {
	Email           string `json:"email"`
	Event           string `json:"event"`
	Timestamp       int64  `json:"timestamp"`
	Reason          string `json:"reason,omitempty"`
	ProviderEventID string `json:"provider_event_id,omitempty"`
	URL             string `json:"url,omitempty"`
	UserAgent       string `json:"user_agent,omitempty"`
	IP              string `json:"ip,omitempty"`
}
