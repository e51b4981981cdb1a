// internal/model/prospect.go
package model

import "time"

// Verification statuses assigned by the email-verification provider.
const (
	VerificationValid   = "valid"
	VerificationInvalid = "invalid"
	VerificationRisky   = "risky"
	VerificationUnknown = "unknown"
)

type Prospect struct {
	ID                 int64     `db:"id" json:"id"`
	OrganizerID        int64     `db:"organizer_id" json:"organizer_id"`
	Email              string    `db:"email" json:"email"`
	Name               string    `db:"name" json:"name"`
	FirstName          string    `db:"first_name" json:"first_name"`
	LastName           string    `db:"last_name" json:"last_name"`
	Company            string    `db:"company" json:"company"`
	Country            string    `db:"country" json:"country"`
	Position           string    `db:"position" json:"position"`
	Website            string    `db:"website" json:"website"`
	Tag                string    `db:"tag" json:"tag"`
	VerificationStatus string    `db:"verification_status" json:"verification_status"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// List is a named set of prospects owned by an organizer.
type List struct {
	ID          int64     `db:"id" json:"id"`
	OrganizerID int64     `db:"organizer_id" json:"organizer_id"`
	Name        string    `db:"name" json:"name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Intent types: engagement signals beyond passive delivery.
const (
	IntentReply     = "reply"
	IntentClick     = "click"
	IntentQualified = "qualified"
)

// ProspectIntent records one engagement signal, unique per
// (organizer, prospect, campaign, intent_type).
type ProspectIntent struct {
	ID          int64     `db:"id" json:"id"`
	OrganizerID int64     `db:"organizer_id" json:"organizer_id"`
	ProspectID  int64     `db:"prospect_id" json:"prospect_id"`
	CampaignID  *int64    `db:"campaign_id" json:"campaign_id,omitempty"`
	IntentType  string    `db:"intent_type" json:"intent_type"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
