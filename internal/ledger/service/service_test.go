package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodlink/internal/ledger"
	"foodlink/internal/ledger/store"
	"foodlink/internal/notification"
	"foodlink/internal/registry"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/platform/sentinel"
)

type fakeParticipants struct {
	byID map[id.ParticipantID]*registry.Participant
}

func (f *fakeParticipants) FindByID(ctx context.Context, participantID id.ParticipantID) (*registry.Participant, error) {
	p, ok := f.byID[participantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	direct   []*notification.Notification
	toAdmins []string
}

func (r *recordingNotifier) Notify(ctx context.Context, accountID id.AccountID, message string, severity notification.Severity) (*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := &notification.Notification{AccountID: accountID, Message: message, Severity: severity}
	r.direct = append(r.direct, n)
	return n, nil
}

func (r *recordingNotifier) NotifyAdmins(ctx context.Context, message string, severity notification.Severity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toAdmins = append(r.toAdmins, message)
	return nil
}

type fixture struct {
	svc          *Service
	store        *store.Memory
	participants *fakeParticipants
	notifier     *recordingNotifier
}

func newFixture() *fixture {
	f := &fixture{
		store:        store.NewMemory(),
		participants: &fakeParticipants{byID: make(map[id.ParticipantID]*registry.Participant)},
		notifier:     &recordingNotifier{},
	}
	f.svc = New(f.store, f.participants, f.notifier)
	return f
}

func (f *fixture) addParticipant(status registry.VerificationStatus) *registry.Participant {
	p := &registry.Participant{
		ID:        id.NewParticipantID(),
		AccountID: id.NewAccountID(),
		Status:    status,
		Number:    "CL0007",
	}
	f.participants.byID[p.ID] = p
	return p
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	volunteer := id.NewAccountID()

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		f := newFixture()
		p := f.addParticipant(registry.StatusVerified)
		for _, q := range []float64{0, -2.5} {
			_, err := f.svc.Record(ctx, p.ID, volunteer, q, "canned goods", true, "")
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		}
	})

	t.Run("unknown participant", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Record(ctx, id.NewParticipantID(), volunteer, 5, "", true, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("unverified participant", func(t *testing.T) {
		f := newFixture()
		p := f.addParticipant(registry.StatusPending)
		_, err := f.svc.Record(ctx, p.ID, volunteer, 5, "", true, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("appends and fans out", func(t *testing.T) {
		f := newFixture()
		p := f.addParticipant(registry.StatusVerified)

		r, err := f.svc.Record(ctx, p.ID, volunteer, 12.5, "produce, bread", true, "extra bread this week")
		require.NoError(t, err)
		assert.Equal(t, 12.5, r.Quantity)
		assert.True(t, r.Signed)

		records, err := f.svc.History(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, r.ID, records[0].ID)

		require.Len(t, f.notifier.direct, 2)
		assert.Equal(t, p.AccountID, f.notifier.direct[0].AccountID)
		assert.Equal(t, notification.SeveritySuccess, f.notifier.direct[0].Severity)
		assert.Equal(t, volunteer, f.notifier.direct[1].AccountID)
		require.Len(t, f.notifier.toAdmins, 1)
		assert.Contains(t, f.notifier.toAdmins[0], "CL0007")
	})
}

type failingStore struct {
	*store.Memory
}

func (f *failingStore) Append(ctx context.Context, r *ledger.DistributionRecord) error {
	return errors.New("disk full")
}

func TestRecord_NoNotificationWhenAppendFails(t *testing.T) {
	ctx := context.Background()
	participants := &fakeParticipants{byID: make(map[id.ParticipantID]*registry.Participant)}
	notifier := &recordingNotifier{}
	svc := New(&failingStore{Memory: store.NewMemory()}, participants, notifier)

	p := &registry.Participant{ID: id.NewParticipantID(), AccountID: id.NewAccountID(), Status: registry.StatusVerified}
	participants.byID[p.ID] = p

	_, err := svc.Record(ctx, p.ID, id.NewAccountID(), 3, "", false, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Empty(t, notifier.direct)
	assert.Empty(t, notifier.toAdmins)
}

func TestHistory_EmptyForUnknownParticipant(t *testing.T) {
	f := newFixture()
	records, err := f.svc.History(context.Background(), id.NewParticipantID())
	require.NoError(t, err)
	assert.Empty(t, records)
}
