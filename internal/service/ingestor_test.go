package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
)

// memEventRepo enforces the same idempotency key the SQL unique index does.
type memEventRepo struct {
	mu     sync.Mutex
	events []model.CampaignEvent
}

func (m *memEventRepo) Insert(_ context.Context, ev *model.CampaignEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ProviderEventID != nil {
		for _, existing := range m.events {
			if existing.ProviderEventID == nil {
				continue
			}
			if existing.CampaignID == ev.CampaignID &&
				existing.EventType == ev.EventType &&
				strings.EqualFold(existing.Email, ev.Email) &&
				*existing.ProviderEventID == *ev.ProviderEventID {
				return apperrors.ErrDuplicateEvent
			}
		}
	}
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, *ev)
	return nil
}

func (m *memEventRepo) ListByCampaign(_ context.Context, campaignID, _ int64, _ int) ([]model.CampaignEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CampaignEvent
	for _, ev := range m.events {
		if ev.CampaignID == campaignID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memEventRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

var _ repository.EventRepositoryInterface = (*memEventRepo)(nil)

type memIntentRepo struct {
	mu      sync.Mutex
	intents map[string]bool
}

func newMemIntentRepo() *memIntentRepo {
	return &memIntentRepo{intents: map[string]bool{}}
}

func (m *memIntentRepo) Record(_ context.Context, intent *model.ProspectIntent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	campaignID := int64(0)
	if intent.CampaignID != nil {
		campaignID = *intent.CampaignID
	}
	key := fmt.Sprintf("%d/%d/%d/%s", intent.OrganizerID, intent.ProspectID, campaignID, intent.IntentType)
	if m.intents[key] {
		return false, nil
	}
	m.intents[key] = true
	return true, nil
}

func (m *memIntentRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.intents)
}

type fakeProspectRepo struct {
	byEmail map[string]*model.Prospect
}

func (f *fakeProspectRepo) GetByID(_ context.Context, id, _ int64) (*model.Prospect, error) {
	for _, p := range f.byEmail {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperrors.NewNotFound("prospect", id)
}

func (f *fakeProspectRepo) FindByEmail(_ context.Context, _ int64, email string) (*model.Prospect, error) {
	return f.byEmail[strings.ToLower(email)], nil
}

type capturePublisher struct {
	mu        sync.Mutex
	published []model.CampaignEvent
}

func (p *capturePublisher) PublishEvent(_ context.Context, ev *model.CampaignEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, *ev)
	return nil
}

func sentRecipient(id int64, email string) *model.Recipient {
	return &model.Recipient{
		ID:          id,
		PublicID:    fmt.Sprintf("%08x-0000-0000-0000-000000000000", id),
		CampaignID:  1,
		OrganizerID: 10,
		ProspectID:  int64Ptr(50),
		Email:       email,
		Status:      model.RecipientSent,
		CreatedAt:   time.Now(),
	}
}

func testIngestor(recipients *memRecipientRepo, events *memEventRepo, suppression *mockSuppressionRepo, intents *memIntentRepo) *Ingestor {
	return &Ingestor{
		Recipients:  recipients,
		Events:      events,
		Suppression: suppression,
		Intents:     intents,
		Prospects:   &fakeProspectRepo{byEmail: map[string]*model.Prospect{}},
		Publisher:   &capturePublisher{},
	}
}

func TestIngestDeliveredUpdatesStatus(t *testing.T) {
	recipients := newMemRecipientRepo()
	recipients.add(sentRecipient(1, "pat@example.com"))
	events := &memEventRepo{}
	ing := testIngestor(recipients, events, newMockSuppressionRepo(), newMemIntentRepo())

	out := ing.Ingest(context.Background(), &model.ProviderEvent{
		Email: "pat@example.com", Event: "delivered", Timestamp: time.Now().Unix(),
	})

	assert.False(t, out.Dropped)
	assert.True(t, out.StatusUpdated)
	assert.True(t, out.EventRecorded)
	assert.Equal(t, model.RecipientDelivered, recipients.get(1).Status)
	assert.NotNil(t, recipients.get(1).DeliveredAt)
	assert.Equal(t, 1, events.count())
}

func TestIngestDuplicateEventIsIdempotent(t *testing.T) {
	recipients := newMemRecipientRepo()
	recipients.add(sentRecipient(1, "pat@example.com"))
	events := &memEventRepo{}
	ing := testIngestor(recipients, events, newMockSuppressionRepo(), newMemIntentRepo())

	ev := &model.ProviderEvent{
		Email: "pat@example.com", Event: "open",
		Timestamp: time.Now().Unix(), ProviderEventID: "sg-123",
	}

	first := ing.Ingest(context.Background(), ev)
	require.True(t, first.EventRecorded)
	assert.Equal(t, 1, recipients.get(1).OpenCount)
	openedAt := recipients.get(1).OpenedAt
	require.NotNil(t, openedAt)

	second := ing.Ingest(context.Background(), ev)
	assert.True(t, second.DuplicateEvent)
	assert.False(t, second.EventRecorded)
	assert.False(t, second.StatusUpdated)
	assert.Empty(t, second.Errors)

	// One log row, one counted open; the first-open timestamp survives the
	// replay.
	assert.Equal(t, 1, events.count())
	assert.Equal(t, 1, recipients.get(1).OpenCount)
	assert.Equal(t, openedAt.Unix(), recipients.get(1).OpenedAt.Unix())
}

func TestIngestFirstOpenTimestampPreserved(t *testing.T) {
	recipients := newMemRecipientRepo()
	recipients.add(sentRecipient(1, "pat@example.com"))
	events := &memEventRepo{}
	ing := testIngestor(recipients, events, newMockSuppressionRepo(), newMemIntentRepo())

	early := time.Now().Add(-time.Hour).Unix()
	late := time.Now().Unix()

	ing.Ingest(context.Background(), &model.ProviderEvent{
		Email: "pat@example.com", Event: "open", Timestamp: early, ProviderEventID: "e1",
	})
	ing.Ingest(context.Background(), &model.ProviderEvent{
		Email: "pat@example.com", Event: "open", Timestamp: late, ProviderEventID: "e2",
	})

	rec := recipients.get(1)
	assert.Equal(t, 2, rec.OpenCount)
	assert.Equal(t, early, rec.OpenedAt.Unix())
}

func TestIngestBounceSuppressesAndFlags(t *testing.T) {
	recipients := newMemRecipientRepo()
	recipients.add(sentRecipient(1, "pat@example.com"))
	events := &memEventRepo{}
	suppression := newMockSuppressionRepo()
	ing := testIngestor(recipients, events, suppression, newMemIntentRepo())

	out := ing.Ingest(context.Background(), &model.ProviderEvent{
		Email: "pat@example.com", Event: "bounce", Reason: "550 user unknown",
	})

	assert.True(t, out.StatusUpdated)
	assert.True(t, out.Suppressed)
	rec := recipients.get(1)
	assert.Equal(t, model.RecipientBounced, rec.Status)
	assert.Equal(t, "550 user unknown", rec.LastError)
	assert.Equal(t, "bounce", suppression.entries["pat@example.com"])
}

func TestIngestSpamReportSuppressesWithoutStatusChange(t *testing.T) {
	recipients := newMemRecipientRepo()
	recipients.add(sentRecipient(1, "pat@example.com"))
	suppression := newMockSuppressionRepo()
	ing := testIngestor(recipients, &memEventRepo{}, suppression, newMemIntentRepo())

	out := ing.Ingest(context.Background(), &model.ProviderEvent{
		Email: "pat@example.com", Event: "spamreport",
	})

	assert.False(t, out.StatusUpdated)
	assert.True(t, out.Suppressed)
	assert.Equal(t, model.RecipientSent, recipients.get(1).Status)
	assert.Equal(t, "spam_report", suppression.entries["pat@example.com"])
}

func TestIngestUnknownEventTypeDropped(t *testing.T) {
	ing := testIngestor(newMemRecipientRepo(), &memEventRepo{}, newMockSuppressionRepo(), newMemIntentRepo())

	out := ing.Ingest(context.Background(), &model.ProviderEvent{
		Email: "pat@example.com", Event: "processed",
	})

	assert.True(t, out.Dropped)
	assert.Equal(t, "unrecognized event type", out.DropReason)
	assert.Empty(t, out.Errors)
}

func TestIngestUnmatchedEmailDropped(t *testing.T) {
	events := &memEventRepo{}
	ing := testIngestor(newMemRecipientRepo(), events, newMockSuppressionRepo(), newMemIntentRepo())

	out := ing.Ingest(context.Background(), &model.ProviderEvent{
		Email: "stranger@example.com", Event: "open",
	})

	assert.True(t, out.Dropped)
	assert.Equal(t, "no recipient for email", out.DropReason)
	assert.Zero(t, events.count())
}

func TestIngestMissingEmailDropped(t *testing.T) {
	ing := testIngestor(newMemRecipientRepo(), &memEventRepo{}, newMockSuppressionRepo(), newMemIntentRepo())

	out := ing.Ingest(context.Background(), &model.ProviderEvent{Event: "open"})
	assert.True(t, out.Dropped)
	assert.Equal(t, "missing email", out.DropReason)
}

func TestIngestPrefersActiveRecipient(t *testing.T) {
	recipients := newMemRecipientRepo()
	failed := sentRecipient(1, "pat@example.com")
	failed.Status = model.RecipientFailed
	failed.CreatedAt = time.Now() // newer, but not active
	recipients.add(failed)

	active := sentRecipient(2, "pat@example.com")
	active.CreatedAt = time.Now().Add(-time.Hour)
	recipients.add(active)

	ing := testIngestor(recipients, &memEventRepo{}, newMockSuppressionRepo(), newMemIntentRepo())
	out := ing.Ingest(context.Background(), &model.ProviderEvent{
		Email: "pat@example.com", Event: "delivered",
	})

	assert.Equal(t, int64(2), out.RecipientID)
}

func TestIngestClickRecordsIntent(t *testing.T) {
	recipients := newMemRecipientRepo()
	recipients.add(sentRecipient(1, "pat@example.com"))
	intents := newMemIntentRepo()
	ing := testIngestor(recipients, &memEventRepo{}, newMockSuppressionRepo(), intents)

	out := ing.Ingest(context.Background(), &model.ProviderEvent{
		Email: "pat@example.com", Event: "click", URL: "https://acme.io/pricing",
	})

	assert.True(t, out.IntentRecorded)
	assert.Equal(t, 1, intents.count())
	assert.Equal(t, 1, recipients.get(1).ClickCount)

	// Same click intent again is deduplicated.
	out = ing.Ingest(context.Background(), &model.ProviderEvent{
		Email: "pat@example.com", Event: "click", URL: "https://acme.io/docs",
	})
	assert.False(t, out.IntentRecorded)
	assert.Equal(t, 1, intents.count())
	assert.Equal(t, 2, recipients.get(1).ClickCount)
}

func TestIngestDeferredIsRecordedWithoutStatusChange(t *testing.T) {
	recipients := newMemRecipientRepo()
	recipients.add(sentRecipient(1, "pat@example.com"))
	events := &memEventRepo{}
	ing := testIngestor(recipients, events, newMockSuppressionRepo(), newMemIntentRepo())

	out := ing.Ingest(context.Background(), &model.ProviderEvent{
		Email: "pat@example.com", Event: "deferred", Reason: "mailbox busy",
	})

	assert.False(t, out.StatusUpdated)
	assert.True(t, out.EventRecorded)
	assert.Equal(t, model.RecipientSent, recipients.get(1).Status)
}

func TestIngestPublishesRecordedEvents(t *testing.T) {
	recipients := newMemRecipientRepo()
	recipients.add(sentRecipient(1, "pat@example.com"))
	pub := &capturePublisher{}
	ing := testIngestor(recipients, &memEventRepo{}, newMockSuppressionRepo(), newMemIntentRepo())
	ing.Publisher = pub

	ev := &model.ProviderEvent{Email: "pat@example.com", Event: "open", ProviderEventID: "e1"}
	ing.Ingest(context.Background(), ev)
	ing.Ingest(context.Background(), ev)

	// Only the first (recorded) ingest reaches the queue.
	assert.Len(t, pub.published, 1)
	assert.Equal(t, model.EventOpen, pub.published[0].EventType)
}

func TestHandleBatchNeverPanicsOnMixedInput(t *testing.T) {
	recipients := newMemRecipientRepo()
	recipients.add(sentRecipient(1, "pat@example.com"))
	ing := testIngestor(recipients, &memEventRepo{}, newMockSuppressionRepo(), newMemIntentRepo())

	ing.HandleBatch(context.Background(), []model.ProviderEvent{
		{Email: "pat@example.com", Event: "delivered"},
		{Email: "", Event: "open"},
		{Email: "pat@example.com", Event: "totally-new-event"},
	})

	assert.Equal(t, model.RecipientDelivered, recipients.get(1).Status)
}
