// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that need no per-instance detail.
var (
	// ErrConcurrentTransition: a conditional status update matched zero rows
	// because another actor already moved the campaign. Benign.
	ErrConcurrentTransition = errors.New("concurrent transition: campaign already moved by another actor")

	// ErrDuplicateEvent: an event insert collided with the idempotency key.
	// Treated as success by callers.
	ErrDuplicateEvent = errors.New("duplicate event")
)

// InvalidStateError: an action was attempted against a campaign whose current
// status does not satisfy the precondition.
type InvalidStateError struct {
	CampaignID int64
	Current    string
	Expected   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("campaign %d status is %q, expected %q", e.CampaignID, e.Current, e.Expected)
}

func NewInvalidState(campaignID int64, current, expected string) error {
	return &InvalidStateError{CampaignID: campaignID, Current: current, Expected: expected}
}

// MissingConfigurationError: a required binding or setting is absent.
type MissingConfigurationError struct {
	What string
}

func (e *MissingConfigurationError) Error() string {
	return "missing configuration: " + e.What
}

func NewMissingConfiguration(what string) error {
	return &MissingConfigurationError{What: what}
}

// ReferenceNotFoundError: a bound entity no longer exists or is not owned by
// the organizer.
type ReferenceNotFoundError struct {
	Kind string
	ID   int64
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func NewReferenceNotFound(kind string, id int64) error {
	return &ReferenceNotFoundError{Kind: kind, ID: id}
}

// NotFoundError: the primary entity of a request does not exist or is not
// owned by the caller. Maps to 404.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func NewNotFound(kind string, id int64) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// TransportFailureError: an outbound send failed. Recorded per recipient,
// never aborts a batch.
type TransportFailureError struct {
	Reason string
}

func (e *TransportFailureError) Error() string {
	return "transport failure: " + e.Reason
}

func NewTransportFailure(reason string) error {
	return &TransportFailureError{Reason: reason}
}

// IsBadRequest reports whether err should surface to an authenticated caller
// as a 400 rather than a 500.
func IsBadRequest(err error) bool {
	var invalid *InvalidStateError
	var missing *MissingConfigurationError
	var ref *ReferenceNotFoundError
	return errors.As(err, &invalid) || errors.As(err, &missing) || errors.As(err, &ref)
}

// IsNotFound reports whether err should surface as a 404.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
