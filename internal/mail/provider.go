// internal/mail/provider.go
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
)

// HTTPTransport sends through the delivery provider's JSON API using the
// organizer's own API key per request.
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type providerAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type providerContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type providerSendRequest struct {
	Personalizations []struct {
		To []providerAddress `json:"to"`
	} `json:"personalizations"`
	From       providerAddress   `json:"from"`
	ReplyTo    *providerAddress  `json:"reply_to,omitempty"`
	Subject    string            `json:"subject"`
	Content    []providerContent `json:"content"`
	CustomArgs map[string]string `json:"custom_args,omitempty"`
}

func (t *HTTPTransport) Send(ctx context.Context, apiKey string, msg *Message) (*Result, error) {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}

	req := providerSendRequest{
		From:       providerAddress{Email: msg.FromEmail, Name: msg.FromName},
		Subject:    msg.Subject,
		CustomArgs: map[string]string{"message_id": msg.MessageID},
	}
	req.Personalizations = make([]struct {
		To []providerAddress `json:"to"`
	}, 1)
	req.Personalizations[0].To = []providerAddress{{Email: msg.To, Name: msg.ToName}}
	if msg.ReplyTo != "" {
		req.ReplyTo = &providerAddress{Email: msg.ReplyTo}
	}
	// Provider requires text/plain before text/html.
	if msg.Text != "" {
		req.Content = append(req.Content, providerContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		req.Content = append(req.Content, providerContent{Type: "text/html", Value: msg.HTML})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewTransportFailure(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.NewTransportFailure(
			fmt.Sprintf("provider returned %d: %s", resp.StatusCode, detail))
	}

	return &Result{MessageID: msg.MessageID, StatusCode: resp.StatusCode}, nil
}

var _ Transport = (*HTTPTransport)(nil)
