// internal/mail/mock.go
package mail

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockTransport records messages instead of sending them. Used by tests and
// the development environment when no provider credential is configured.
type MockTransport struct {
	mu   sync.Mutex
	Sent []Message

	// SendFunc, when set, decides the outcome per message.
	SendFunc func(msg *Message) error
}

func (m *MockTransport) Send(ctx context.Context, apiKey string, msg *Message) (*Result, error) {
	if m.SendFunc != nil {
		if err := m.SendFunc(msg); err != nil {
			return nil, err
		}
	}
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, *msg)
	m.mu.Unlock()
	return &Result{MessageID: msg.MessageID, StatusCode: 202}, nil
}

func (m *MockTransport) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

var _ Transport = (*MockTransport)(nil)
