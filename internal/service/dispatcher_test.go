package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgrid/leadgrid-backend/internal/apperrors"
	"github.com/leadgrid/leadgrid-backend/internal/mail"
	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
)

// memCampaignRepo keeps campaigns in memory with conditional transitions, the
// same zero-rows contract the SQL repository has.
type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int64]*model.Campaign
	jobs      map[int64]*model.CampaignJob
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{
		campaigns: map[int64]*model.Campaign{},
		jobs:      map[int64]*model.CampaignJob{},
	}
}

func (m *memCampaignRepo) addJob(job *model.CampaignJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := job.Campaign
	m.campaigns[c.ID] = &c
	m.jobs[c.ID] = job
}

func (m *memCampaignRepo) status(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id].Status
}

func (m *memCampaignRepo) lastError(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id].LastError
}

func (m *memCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
	return nil
}

func (m *memCampaignRepo) GetByID(_ context.Context, id, organizerID int64) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OrganizerID != organizerID {
		return nil, apperrors.NewNotFound("campaign", id)
	}
	copied := *c
	return &copied, nil
}

func (m *memCampaignRepo) List(_ context.Context, _ int64, _, _ int, _ string) ([]*model.Campaign, int, error) {
	return nil, 0, nil
}

func (m *memCampaignRepo) StatusCounts(_ context.Context, _ int64) (map[string]int, error) {
	return map[string]int{}, nil
}

func (m *memCampaignRepo) TransitionStatus(_ context.Context, campaignID int64, from, to, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok || c.Status != from {
		return apperrors.ErrConcurrentTransition
	}
	c.Status = to
	c.LastError = lastError
	return nil
}

func (m *memCampaignRepo) SetSchedule(_ context.Context, campaignID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok || c.Status != model.CampaignReady {
		return apperrors.ErrConcurrentTransition
	}
	c.Status = model.CampaignScheduled
	c.ScheduledAt = &at
	return nil
}

func (m *memCampaignRepo) SendingCampaigns(_ context.Context, limit int) ([]model.CampaignJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []model.CampaignJob
	for id, c := range m.campaigns {
		if c.Status != model.CampaignSending {
			continue
		}
		if job, ok := m.jobs[id]; ok {
			j := *job
			j.Campaign = *c
			jobs = append(jobs, j)
		}
		if len(jobs) >= limit {
			break
		}
	}
	return jobs, nil
}

func (m *memCampaignRepo) GetCampaignJob(_ context.Context, campaignID, organizerID int64) (*model.CampaignJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[campaignID]
	if !ok || job.OrganizerID != organizerID {
		return nil, apperrors.NewNotFound("campaign", campaignID)
	}
	j := *job
	j.Campaign = *m.campaigns[campaignID]
	return &j, nil
}

func (m *memCampaignRepo) ClaimDueScheduled(_ context.Context, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var ids []int64
	for id, c := range m.campaigns {
		if len(ids) >= limit {
			break
		}
		if c.Status == model.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			c.Status = model.CampaignSending
			ids = append(ids, id)
		}
	}
	return ids, nil
}

var _ repository.CampaignRepositoryInterface = (*memCampaignRepo)(nil)

// memRecipientRepo emulates skip-locked claiming: rows held by an open batch
// are invisible to other claimers until the batch closes.
type memRecipientRepo struct {
	mu                sync.Mutex
	recipients        map[int64]*model.Recipient
	claimed           map[int64]bool
	campaignPublicIDs map[int64]string // campaign id -> public id, for prefix matching
}

func newMemRecipientRepo() *memRecipientRepo {
	return &memRecipientRepo{
		recipients:        map[int64]*model.Recipient{},
		claimed:           map[int64]bool{},
		campaignPublicIDs: map[int64]string{},
	}
}

func (m *memRecipientRepo) add(rec *model.Recipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipients[rec.ID] = rec
}

func (m *memRecipientRepo) get(id int64) model.Recipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.recipients[id]
}

func (m *memRecipientRepo) ClaimPending(_ context.Context, campaignID int64, limit int) (repository.RecipientBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := &memBatch{repo: m}
	for id, rec := range m.recipients {
		if len(batch.recs) >= limit {
			break
		}
		if rec.CampaignID == campaignID && rec.Status == model.RecipientPending && !m.claimed[id] {
			m.claimed[id] = true
			batch.recs = append(batch.recs, *rec)
		}
	}
	return batch, nil
}

func (m *memRecipientRepo) CountPending(_ context.Context, campaignID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.recipients {
		if rec.CampaignID == campaignID && rec.Status == model.RecipientPending {
			n++
		}
	}
	return n, nil
}

func (m *memRecipientRepo) FindByEmail(_ context.Context, email string, activeOnly bool) (*model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Recipient
	for _, rec := range m.recipients {
		if !strings.EqualFold(rec.Email, email) {
			continue
		}
		if activeOnly && !isActiveStatus(rec.Status) {
			continue
		}
		if best == nil || rec.CreatedAt.After(best.CreatedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func isActiveStatus(status string) bool {
	for _, s := range model.ActiveRecipientStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (m *memRecipientRepo) FindByPublicPrefix(_ context.Context, campaignPrefix, recipientPrefix string) ([]model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Recipient
	for _, rec := range m.recipients {
		campaignPublicID := m.campaignPublicIDs[rec.CampaignID]
		if !strings.HasPrefix(shortID(campaignPublicID), campaignPrefix) {
			continue
		}
		if !strings.HasPrefix(shortID(rec.PublicID), recipientPrefix) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (m *memRecipientRepo) MarkDelivered(_ context.Context, recipientID int64, at time.Time) error {
	return m.update(recipientID, func(rec *model.Recipient) {
		rec.Status = model.RecipientDelivered
		if rec.DeliveredAt == nil {
			rec.DeliveredAt = &at
		}
	})
}

func (m *memRecipientRepo) RecordOpen(_ context.Context, recipientID int64, at time.Time) error {
	return m.update(recipientID, func(rec *model.Recipient) {
		rec.Status = model.RecipientOpened
		rec.OpenCount++
		if rec.OpenedAt == nil {
			rec.OpenedAt = &at
		}
	})
}

func (m *memRecipientRepo) RecordClick(_ context.Context, recipientID int64, at time.Time) error {
	return m.update(recipientID, func(rec *model.Recipient) {
		rec.Status = model.RecipientClicked
		rec.ClickCount++
		if rec.ClickedAt == nil {
			rec.ClickedAt = &at
		}
	})
}

func (m *memRecipientRepo) MarkBounced(_ context.Context, recipientID int64, at time.Time, reason string) error {
	return m.update(recipientID, func(rec *model.Recipient) {
		rec.Status = model.RecipientBounced
		rec.LastError = reason
		if rec.BouncedAt == nil {
			rec.BouncedAt = &at
		}
	})
}

func (m *memRecipientRepo) MarkDropped(_ context.Context, recipientID int64, reason string) error {
	return m.update(recipientID, func(rec *model.Recipient) {
		rec.Status = model.RecipientFailed
		rec.LastError = reason
	})
}

func (m *memRecipientRepo) update(recipientID int64, f func(*model.Recipient)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recipients[recipientID]
	if !ok {
		return fmt.Errorf("recipient %d not found", recipientID)
	}
	f(rec)
	return nil
}

var _ repository.RecipientRepositoryInterface = (*memRecipientRepo)(nil)

type memBatch struct {
	repo *memRecipientRepo
	recs []model.Recipient
}

func (b *memBatch) Recipients() []model.Recipient { return b.recs }

func (b *memBatch) MarkSent(_ context.Context, recipientID int64) error {
	now := time.Now()
	return b.repo.update(recipientID, func(rec *model.Recipient) {
		rec.Status = model.RecipientSent
		rec.SentAt = &now
	})
}

func (b *memBatch) MarkFailed(_ context.Context, recipientID int64, reason string) error {
	return b.repo.update(recipientID, func(rec *model.Recipient) {
		rec.Status = model.RecipientFailed
		rec.LastError = reason
	})
}

func (b *memBatch) Close(_ context.Context) error {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	for _, rec := range b.recs {
		delete(b.repo.claimed, rec.ID)
	}
	return nil
}

type fakeSenderRepo struct {
	senders map[int64]*model.Sender
}

func (f *fakeSenderRepo) GetByID(_ context.Context, id, _ int64) (*model.Sender, error) {
	s, ok := f.senders[id]
	if !ok {
		return nil, apperrors.NewReferenceNotFound("sender", id)
	}
	return s, nil
}

type fakeOrganizerRepo struct {
	settings map[int64]*model.OrganizerSettings
}

func (f *fakeOrganizerRepo) GetSettings(_ context.Context, organizerID int64) (*model.OrganizerSettings, error) {
	s, ok := f.settings[organizerID]
	if !ok {
		return nil, apperrors.NewNotFound("organizer", organizerID)
	}
	return s, nil
}

func testDispatcher(campaigns *memCampaignRepo, recipients *memRecipientRepo, transport mail.Transport) *Dispatcher {
	return &Dispatcher{
		Campaigns:  campaigns,
		Recipients: recipients,
		Senders: &fakeSenderRepo{senders: map[int64]*model.Sender{
			4: {ID: 4, OrganizerID: 10, FromEmail: "sales@acme.io", FromName: "Acme Sales", Active: true},
		}},
		Organizers: &fakeOrganizerRepo{settings: map[int64]*model.OrganizerSettings{
			10: {OrganizerID: 10, Email: "owner@acme.io", MailingAddress: "1 Main St, Springfield", ProviderAPIKey: "key"},
		}},
		Transport: transport,
		Unsub: &UnsubscribeTokens{
			Secret: []byte("test-secret"),
			TTL:    time.Hour,
		},
		BaseURL:       "https://app.example.com",
		ReplyDomain:   "reply.example.com",
		CampaignBatch: 5,
		BatchSize:     100,
	}
}

func sendingJob(campaignID int64, subject string) *model.CampaignJob {
	return &model.CampaignJob{
		Campaign: model.Campaign{
			ID:          campaignID,
			PublicID:    "aaaabbbb-0000-0000-0000-000000000000",
			OrganizerID: 10,
			Name:        "Launch",
			SenderID:    int64Ptr(4),
			Status:      model.CampaignSending,
		},
		Subject:  subject,
		BodyHTML: "<p>Hello {{first_name}}</p>",
		BodyText: "Hello {{first_name}}",
	}
}

func pendingRecipient(id, campaignID int64, email string) *model.Recipient {
	return &model.Recipient{
		ID:          id,
		PublicID:    fmt.Sprintf("%08x-0000-0000-0000-000000000000", id),
		CampaignID:  campaignID,
		OrganizerID: 10,
		Email:       email,
		Name:        "Pat Doe",
		Payload:     model.Payload{"first_name": "Pat"},
		Status:      model.RecipientPending,
		CreatedAt:   time.Now(),
	}
}

func TestDispatcherSendsPendingAndCompletes(t *testing.T) {
	campaigns := newMemCampaignRepo()
	campaigns.addJob(sendingJob(1, "Hi {{first_name}}"))
	recipients := newMemRecipientRepo()
	recipients.add(pendingRecipient(1, 1, "a@example.com"))
	recipients.add(pendingRecipient(2, 1, "b@example.com"))
	transport := &mail.MockTransport{}

	d := testDispatcher(campaigns, recipients, transport)
	require.NoError(t, d.Cycle(context.Background()))

	assert.Equal(t, 2, transport.SentCount())
	assert.Equal(t, model.RecipientSent, recipients.get(1).Status)
	assert.Equal(t, model.RecipientSent, recipients.get(2).Status)
	assert.Equal(t, model.CampaignCompleted, campaigns.status(1))

	msg := transport.Sent[0]
	assert.Equal(t, "Hi Pat", msg.Subject)
	assert.Contains(t, msg.HTML, "1 Main St, Springfield")
	assert.Contains(t, msg.HTML, "/unsubscribe/")
	assert.Contains(t, msg.Text, "Unsubscribe: ")
	assert.True(t, strings.HasPrefix(msg.ReplyTo, "c-aaaabbbb-r-"), "reply-to %q should carry encoded ids", msg.ReplyTo)
	assert.True(t, strings.HasSuffix(msg.ReplyTo, "@reply.example.com"))
}

func TestDispatcherFailureIsContained(t *testing.T) {
	campaigns := newMemCampaignRepo()
	campaigns.addJob(sendingJob(1, "Subject"))
	recipients := newMemRecipientRepo()
	recipients.add(pendingRecipient(1, 1, "ok@example.com"))
	recipients.add(pendingRecipient(2, 1, "broken@example.com"))
	recipients.add(pendingRecipient(3, 1, "fine@example.com"))
	transport := &mail.MockTransport{SendFunc: func(msg *mail.Message) error {
		if msg.To == "broken@example.com" {
			return errors.New("provider rejected the message")
		}
		return nil
	}}

	d := testDispatcher(campaigns, recipients, transport)
	require.NoError(t, d.Cycle(context.Background()))

	assert.Equal(t, 2, transport.SentCount())
	failed := recipients.get(2)
	assert.Equal(t, model.RecipientFailed, failed.Status)
	assert.Contains(t, failed.LastError, "provider rejected")
	assert.Equal(t, model.RecipientSent, recipients.get(1).Status)
	assert.Equal(t, model.RecipientSent, recipients.get(3).Status)

	// Failed recipients are terminal, so the campaign still completes.
	assert.Equal(t, model.CampaignCompleted, campaigns.status(1))
}

func TestDispatcherClaimsAreExclusive(t *testing.T) {
	campaigns := newMemCampaignRepo()
	campaigns.addJob(sendingJob(1, "Subject"))
	recipients := newMemRecipientRepo()
	for i := int64(1); i <= 40; i++ {
		recipients.add(pendingRecipient(i, 1, fmt.Sprintf("r%d@example.com", i)))
	}
	transport := &mail.MockTransport{}

	d1 := testDispatcher(campaigns, recipients, transport)
	d2 := testDispatcher(campaigns, recipients, transport)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = d1.Cycle(context.Background())
	}()
	go func() {
		defer wg.Done()
		_ = d2.Cycle(context.Background())
	}()
	wg.Wait()

	// Concurrent claimers partition the pending set: every recipient is sent
	// exactly once no matter how the two cycles interleave.
	assert.Equal(t, 40, transport.SentCount())
	seen := map[string]int{}
	for _, msg := range transport.Sent {
		seen[msg.To]++
	}
	for to, n := range seen {
		assert.Equalf(t, 1, n, "recipient %s sent %d times", to, n)
	}
}

func TestDispatcherMissingComplianceFailsCampaign(t *testing.T) {
	campaigns := newMemCampaignRepo()
	campaigns.addJob(sendingJob(1, "Subject"))
	recipients := newMemRecipientRepo()
	recipients.add(pendingRecipient(1, 1, "a@example.com"))
	transport := &mail.MockTransport{}

	d := testDispatcher(campaigns, recipients, transport)
	d.Organizers = &fakeOrganizerRepo{settings: map[int64]*model.OrganizerSettings{
		10: {OrganizerID: 10, Email: "owner@acme.io", ProviderAPIKey: "key"}, // no mailing address
	}}

	require.NoError(t, d.Cycle(context.Background()))

	assert.Zero(t, transport.SentCount())
	assert.Equal(t, model.CampaignFailed, campaigns.status(1))
	assert.Contains(t, campaigns.lastError(1), "mailing address")
	assert.Equal(t, model.RecipientPending, recipients.get(1).Status)
}

func TestDispatcherInactiveSenderPausesCampaign(t *testing.T) {
	campaigns := newMemCampaignRepo()
	campaigns.addJob(sendingJob(1, "Subject"))
	recipients := newMemRecipientRepo()
	recipients.add(pendingRecipient(1, 1, "a@example.com"))
	transport := &mail.MockTransport{}

	d := testDispatcher(campaigns, recipients, transport)
	d.Senders = &fakeSenderRepo{senders: map[int64]*model.Sender{
		4: {ID: 4, OrganizerID: 10, FromEmail: "sales@acme.io", Active: false},
	}}

	require.NoError(t, d.Cycle(context.Background()))

	assert.Zero(t, transport.SentCount())
	assert.Equal(t, model.CampaignPaused, campaigns.status(1))
	assert.Equal(t, model.RecipientPending, recipients.get(1).Status)
}

func TestDispatcherUnboundSenderPausesCampaign(t *testing.T) {
	job := sendingJob(1, "Subject")
	job.SenderID = nil
	campaigns := newMemCampaignRepo()
	campaigns.addJob(job)
	recipients := newMemRecipientRepo()
	transport := &mail.MockTransport{}

	d := testDispatcher(campaigns, recipients, transport)
	require.NoError(t, d.Cycle(context.Background()))

	assert.Equal(t, model.CampaignPaused, campaigns.status(1))
}

func TestDispatcherEmptyBatchLeavesSendingUntilDrained(t *testing.T) {
	campaigns := newMemCampaignRepo()
	campaigns.addJob(sendingJob(1, "Subject"))
	recipients := newMemRecipientRepo()
	transport := &mail.MockTransport{}

	// No pending recipients at all: the campaign converges to completed on
	// the first cycle.
	d := testDispatcher(campaigns, recipients, transport)
	require.NoError(t, d.Cycle(context.Background()))
	assert.Equal(t, model.CampaignCompleted, campaigns.status(1))
}

func TestSendBatchManualTrigger(t *testing.T) {
	campaigns := newMemCampaignRepo()
	campaigns.addJob(sendingJob(1, "Subject"))
	recipients := newMemRecipientRepo()
	recipients.add(pendingRecipient(1, 1, "a@example.com"))
	recipients.add(pendingRecipient(2, 1, "b@example.com"))
	recipients.add(pendingRecipient(3, 1, "c@example.com"))
	transport := &mail.MockTransport{}

	d := testDispatcher(campaigns, recipients, transport)
	result, err := d.SendBatch(context.Background(), 1, 10, 4, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Sent)
	assert.Zero(t, result.Failed)
	pending, _ := recipients.CountPending(context.Background(), 1)
	assert.Equal(t, 1, pending)
	// Work remains, so the manual pass leaves the campaign sending.
	assert.Equal(t, model.CampaignSending, campaigns.status(1))
}

func TestSendBatchCompletesDrainedCampaign(t *testing.T) {
	campaigns := newMemCampaignRepo()
	campaigns.addJob(sendingJob(1, "Subject"))
	recipients := newMemRecipientRepo()
	recipients.add(pendingRecipient(1, 1, "a@example.com"))
	recipients.add(pendingRecipient(2, 1, "b@example.com"))

	d := testDispatcher(campaigns, recipients, &mail.MockTransport{})
	result, err := d.SendBatch(context.Background(), 1, 10, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)

	// The manual trigger drained the last pending recipients; the campaign
	// converges without waiting for a background cycle.
	assert.Equal(t, model.CampaignCompleted, campaigns.status(1))
}

func TestSendBatchRejectsInactiveSender(t *testing.T) {
	campaigns := newMemCampaignRepo()
	campaigns.addJob(sendingJob(1, "Subject"))
	d := testDispatcher(campaigns, newMemRecipientRepo(), &mail.MockTransport{})
	d.Senders = &fakeSenderRepo{senders: map[int64]*model.Sender{
		4: {ID: 4, Active: false},
	}}

	_, err := d.SendBatch(context.Background(), 1, 10, 4, 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsBadRequest(err))
}
