// internal/model/sender.go
package model

import "time"

// Sender is a verified from-identity owned by an organizer.
type Sender struct {
	ID          int64     `db:"id" json:"id"`
	OrganizerID int64     `db:"organizer_id" json:"organizer_id"`
	FromEmail   string    `db:"from_email" json:"from_email"`
	FromName    string    `db:"from_name" json:"from_name"`
	ReplyTo     string    `db:"reply_to" json:"reply_to,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// OrganizerSettings carries the organizer-level data the dispatcher needs
// before it may send: the compliance mailing address and the delivery
// provider credential.
type OrganizerSettings struct {
	OrganizerID    int64  `db:"organizer_id" json:"organizer_id"`
	Email          string `db:"email" json:"email"`
	MailingAddress string `db:"mailing_address" json:"mailing_address"`
	ProviderAPIKey string `db:"provider_api_key" json:"-"`
}
