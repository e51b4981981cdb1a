// internal/model/suppression.go
package model

import "time"

// Suppression sources: where the do-not-mail signal came from.
const (
	SuppressionSourceBounce      = "bounce"
	SuppressionSourceSpamReport  = "spam_report"
	SuppressionSourceUnsubscribe = "unsubscribe"
	SuppressionSourceManual      = "manual"
)

// Suppression is an (organizer, email) pair the organizer must never mail
// again. Insertion is idempotent; the resolver consults it at resolve time.
type Suppression struct {
	ID          int64     `db:"id" json:"id"`
	OrganizerID int64     `db:"organizer_id" json:"organizer_id"`
	Email       string    `db:"email" json:"email"`
	Source      string    `db:"source" json:"source"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
