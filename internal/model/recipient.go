// internal/model/recipient.go
package model

import "time"

// Recipient statuses.
const (
	RecipientPending   = "pending"
	RecipientSent      = "sent"
	RecipientDelivered = "delivered"
	RecipientOpened    = "opened"
	RecipientClicked   = "clicked"
	RecipientBounced   = "bounced"
	RecipientFailed    = "failed"
)

// ActiveRecipientStatuses are the statuses a webhook event is preferentially
// matched against: the message was dispatched and has not hard-failed.
var ActiveRecipientStatuses = []string{
	RecipientSent, RecipientDelivered, RecipientOpened, RecipientClicked,
}

// Recipient is one campaign-scoped send: a row per (campaign, prospect).
type Recipient struct {
	ID          int64      `db:"id" json:"id"`
	PublicID    string     `db:"public_id" json:"public_id"`
	CampaignID  int64      `db:"campaign_id" json:"campaign_id"`
	OrganizerID int64      `db:"organizer_id" json:"organizer_id"`
	ProspectID  *int64     `db:"prospect_id" json:"prospect_id,omitempty"`
	Email       string     `db:"email" json:"email"`
	Name        string     `db:"name" json:"name"`
	Payload     Payload    `db:"payload" json:"payload"`
	Status      string     `db:"status" json:"status"`
	OpenCount   int        `db:"open_count" json:"open_count"`
	ClickCount  int        `db:"click_count" json:"click_count"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	OpenedAt    *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt   *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`
	BouncedAt   *time.Time `db:"bounced_at" json:"bounced_at,omitempty"`
	LastError   string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Payload is the per-recipient personalization data consumed by the template
// renderer. Known fields are plain keys; anything else rides along untouched.
type Payload map[string]string

// Known payload keys.
const (
	FieldFirstName      = "first_name"
	FieldLastName       = "last_name"
	FieldName           = "name"
	FieldCompany        = "company"
	FieldEmail          = "email"
	FieldCountry        = "country"
	FieldPosition       = "position"
	FieldWebsite        = "website"
	FieldTag            = "tag"
	FieldUnsubscribeURL = "unsubscribe_url"
)

func (p Payload) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Clone returns a shallow copy so callers can add derived fields (names split
// from a full name, unsubscribe URL) without mutating the stored payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p)+2)
	for k, v := range p {
		out[k] = v
	}
	return out
}
