// internal/mail/transport.go
package mail

import "context"

// Message is one outbound email handed to the delivery provider.
type Message struct {
	To        string
	ToName    string
	Subject   string
	HTML      string
	Text      string
	FromEmail string
	FromName  string
	ReplyTo   string
	// MessageID is our identifier for the send; the provider echoes it back
	// in webhook events when it supports custom args.
	MessageID string
}

// Result is the provider's acceptance of a message. Acceptance is not
// delivery; delivery is confirmed asynchronously by webhook.
type Result struct {
	MessageID  string
	StatusCode int
}

// Transport is the outbound delivery contract. Any provider implementing it
// is acceptable; the dispatcher only consumes its failure modes.
type Transport interface {
	Send(ctx context.Context, apiKey string, msg *Message) (*Result, error)
}
