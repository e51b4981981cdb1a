// internal/model/campaign.go
package model

import "time"

// Campaign statuses.
const (
	CampaignDraft     = "draft"
	CampaignReady     = "ready"
	CampaignScheduled = "scheduled"
	CampaignSending   = "sending"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
	CampaignFailed    = "failed"
)

type Campaign struct {
	ID             int64      `db:"id" json:"id"`
	PublicID       string     `db:"public_id" json:"public_id"`
	OrganizerID    int64      `db:"organizer_id" json:"organizer_id"`
	Name           string     `db:"name" json:"name"`
	TemplateID     *int64     `db:"template_id" json:"template_id,omitempty"`
	ListID         *int64     `db:"list_id" json:"list_id,omitempty"`
	SenderID       *int64     `db:"sender_id" json:"sender_id,omitempty"`
	Status         string     `db:"status" json:"status"`
	IncludeRisky   bool       `db:"include_risky" json:"include_risky"`
	ScheduledAt    *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	RecipientCount int        `db:"recipient_count" json:"recipient_count"`
	LastError      string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignJob is a sending campaign joined with its template content,
// as claimed by the dispatcher.
type CampaignJob struct {
	Campaign
	Subject  string `db:"subject" json:"subject"`
	BodyHTML string `db:"body_html" json:"body_html"`
	BodyText string `db:"body_text" json:"body_text"`
}

// Template is the email content bound to a campaign.
type Template struct {
	ID          int64     `db:"id" json:"id"`
	OrganizerID int64     `db:"organizer_id" json:"organizer_id"`
	Name        string    `db:"name" json:"name"`
	Subject     string    `db:"subject" json:"subject"`
	BodyHTML    string    `db:"body_html" json:"body_html"`
	BodyText    string    `db:"body_text" json:"body_text"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ResolveStats is the exclusion breakdown returned by recipient resolution.
type ResolveStats struct {
	TotalInList          int `json:"total_in_list"`
	ExcludedInvalid      int `json:"excluded_invalid"`
	ExcludedRisky        int `json:"excluded_risky"`
	ExcludedUnsubscribed int `json:"excluded_unsubscribed"`
	Eligible             int `json:"eligible"`
	Inserted             int `json:"inserted"`
}
