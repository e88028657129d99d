package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodlink/internal/attendance"
	"foodlink/internal/attendance/store"
	"foodlink/internal/notification"
	"foodlink/internal/registry"
	registrystore "foodlink/internal/registry/store"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
)

type sentMessage struct {
	accountID id.AccountID
	message   string
	severity  notification.Severity
	toAdmins  bool
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recordingNotifier) Notify(ctx context.Context, accountID id.AccountID, message string, severity notification.Severity) (*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{accountID: accountID, message: message, severity: severity})
	return &notification.Notification{AccountID: accountID, Message: message, Severity: severity}, nil
}

func (r *recordingNotifier) NotifyAdmins(ctx context.Context, message string, severity notification.Severity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{message: message, severity: severity, toAdmins: true})
	return nil
}

func (r *recordingNotifier) all() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentMessage, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

type fixture struct {
	svc          *Service
	events       *store.Memory
	participants *registrystore.Memory
	notifier     *recordingNotifier
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		events:       store.NewMemory(),
		participants: registrystore.NewMemory(),
		notifier:     &recordingNotifier{},
	}
	f.svc = New(f.events, f.participants, f.notifier, opts...)
	return f
}

func (f *fixture) addParticipant(t *testing.T) *registry.Participant {
	t.Helper()
	p := &registry.Participant{
		ID:        id.NewParticipantID(),
		AccountID: id.NewAccountID(),
		Status:    registry.StatusVerified,
		Number:    "CL0001",
	}
	require.NoError(t, f.participants.Create(context.Background(), p))
	return p
}

func TestLogNoShow_UnknownParticipant(t *testing.T) {
	f := newFixture()
	_, err := f.svc.LogNoShow(context.Background(), id.NewParticipantID(), "", id.NewAccountID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestLogNoShow_EscalatesAtThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(WithThreshold(3))
	p := f.addParticipant(t)
	staff := id.NewAccountID()

	// First two misses warn but do not escalate.
	for i := 1; i <= 2; i++ {
		f.notifier.reset()
		e, err := f.svc.LogNoShow(ctx, p.ID, "missed tuesday pickup", staff)
		require.NoError(t, err)
		assert.Equal(t, i, e.Count)
		assert.False(t, e.ThresholdReached)
		assert.Empty(t, e.ActionTaken)

		sent := f.notifier.all()
		require.Len(t, sent, 3)
		assert.Equal(t, p.AccountID, sent[0].accountID)
		assert.Equal(t, notification.SeverityWarning, sent[0].severity)
		assert.True(t, sent[1].toAdmins)
		assert.Equal(t, notification.SeverityWarning, sent[1].severity)
		assert.Equal(t, staff, sent[2].accountID, "the logging actor gets a confirmation")
		assert.Equal(t, notification.SeverityInfo, sent[2].severity)
	}

	// The third miss crosses the threshold.
	f.notifier.reset()
	e, err := f.svc.LogNoShow(ctx, p.ID, "missed again", staff)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Count)
	assert.True(t, e.ThresholdReached)
	assert.Equal(t, "flagged for outreach", e.ActionTaken)

	sent := f.notifier.all()
	require.Len(t, sent, 4)
	assert.Equal(t, notification.SeverityDanger, sent[1].severity, "participant gets the escalation notice")
	assert.True(t, sent[2].toAdmins)
	assert.Equal(t, notification.SeverityDanger, sent[2].severity)
	assert.Equal(t, staff, sent[3].accountID)
	assert.Equal(t, notification.SeverityInfo, sent[3].severity)

	// Every miss past the threshold keeps escalating.
	e, err = f.svc.LogNoShow(ctx, p.ID, "", staff)
	require.NoError(t, err)
	assert.Equal(t, 4, e.Count)
	assert.True(t, e.ThresholdReached)

	got, err := f.participants.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.NoShowCount)
}

func TestLogNoShow_EventCarriesItsCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.addParticipant(t)
	staff := id.NewAccountID()

	for i := 0; i < 3; i++ {
		_, err := f.svc.LogNoShow(ctx, p.ID, "", staff)
		require.NoError(t, err)
	}

	events, err := f.svc.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	counts := make(map[int]bool)
	for _, e := range events {
		counts[e.Count] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, counts)
}

func TestLogNoShow_ConcurrentIncrementsLoseNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.addParticipant(t)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.LogNoShow(ctx, p.ID, "", id.NewAccountID())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.participants.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.NoShowCount)

	events, err := f.svc.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, n)
	seen := make(map[int]bool)
	for _, e := range events {
		assert.False(t, seen[e.Count], "count %d recorded twice", e.Count)
		seen[e.Count] = true
	}
}

type failingEvents struct {
	*store.Memory
}

func (f *failingEvents) CreateEvent(ctx context.Context, e *attendance.NoShowEvent) error {
	return errors.New("disk full")
}

func TestLogNoShow_NoNotificationWhenUnitFails(t *testing.T) {
	ctx := context.Background()
	participants := registrystore.NewMemory()
	notifier := &recordingNotifier{}
	svc := New(&failingEvents{Memory: store.NewMemory()}, participants, notifier)

	p := &registry.Participant{ID: id.NewParticipantID(), AccountID: id.NewAccountID(), Status: registry.StatusVerified}
	require.NoError(t, participants.Create(ctx, p))

	_, err := svc.LogNoShow(ctx, p.ID, "", id.NewAccountID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Empty(t, notifier.all(), "nothing durable, nothing announced")

	events, err := svc.History(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, events, "the failed unit leaves no event behind")
}
