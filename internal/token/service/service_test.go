package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodlink/internal/proxy"
	"foodlink/internal/registry"
	"foodlink/internal/token"
	"foodlink/internal/token/store"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/requestcontext"
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

type fakeDelegates struct {
	byID map[id.DelegateID]*proxy.Delegate
}

func (f *fakeDelegates) FindByID(ctx context.Context, delegateID id.DelegateID) (*proxy.Delegate, error) {
	d, ok := f.byID[delegateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return d, nil
}

type fixture struct {
	svc          *Service
	store        *store.Memory
	participants *fakeParticipants
	delegates    *fakeDelegates
	signer       *token.Signer
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		store:        store.NewMemory(),
		participants: &fakeParticipants{byID: make(map[id.ParticipantID]*registry.Participant)},
		delegates:    &fakeDelegates{byID: make(map[id.DelegateID]*proxy.Delegate)},
		signer:       token.NewSigner([]byte("test-signing-key")),
	}
	f.svc = New(f.store, f.participants, f.delegates, f.signer, opts...)
	return f
}

func (f *fixture) addParticipant(status registry.VerificationStatus) *registry.Participant {
	p := &registry.Participant{
		ID:        id.NewParticipantID(),
		AccountID: id.NewAccountID(),
		Status:    status,
		Number:    "CL0001",
	}
	f.participants.byID[p.ID] = p
	return p
}

func (f *fixture) addDelegate(participantID id.ParticipantID, status proxy.Status) *proxy.Delegate {
	d := &proxy.Delegate{
		ID:            id.NewDelegateID(),
		ParticipantID: participantID,
		Name:          "Alex Doe",
		Status:        status,
	}
	f.delegates.byID[d.ID] = d
	return d
}

func TestIssue(t *testing.T) {
	ctx := context.Background()
	actor := id.NewAccountID()

	t.Run("unknown participant", func(t *testing.T) {
		f := newFixture()
		_, _, err := f.svc.Issue(ctx, id.NewParticipantID(), nil, actor)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("unverified participant", func(t *testing.T) {
		f := newFixture()
		p := f.addParticipant(registry.StatusPending)
		_, _, err := f.svc.Issue(ctx, p.ID, nil, actor)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("happy path produces a parseable signed payload", func(t *testing.T) {
		f := newFixture(WithTTL(10 * time.Minute))
		p := f.addParticipant(registry.StatusVerified)

		issued := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
		tok, signed, err := f.svc.Issue(requestcontext.WithTime(ctx, issued), p.ID, nil, actor)
		require.NoError(t, err)
		assert.Equal(t, token.StatusPending, tok.Status)
		assert.Equal(t, issued.Add(10*time.Minute), tok.ExpiresAt)

		sessionID, err := f.signer.Parse(signed)
		require.NoError(t, err)
		assert.Equal(t, tok.SessionID, sessionID)
	})

	t.Run("delegate must be approved and owned", func(t *testing.T) {
		f := newFixture()
		p := f.addParticipant(registry.StatusVerified)

		pending := f.addDelegate(p.ID, proxy.StatusPending)
		_, _, err := f.svc.Issue(ctx, p.ID, &pending.ID, actor)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		other := f.addDelegate(id.NewParticipantID(), proxy.StatusApproved)
		_, _, err = f.svc.Issue(ctx, p.ID, &other.ID, actor)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		approved := f.addDelegate(p.ID, proxy.StatusApproved)
		tok, _, err := f.svc.Issue(ctx, p.ID, &approved.ID, actor)
		require.NoError(t, err)
		require.NotNil(t, tok.ProxyID)
		assert.Equal(t, approved.ID, *tok.ProxyID)
	})
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	actor := id.NewAccountID()

	t.Run("first validation wins, second reports already used", func(t *testing.T) {
		f := newFixture()
		p := f.addParticipant(registry.StatusVerified)
		tok, _, err := f.svc.Issue(ctx, p.ID, nil, actor)
		require.NoError(t, err)

		res, err := f.svc.Validate(ctx, tok.SessionID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, res.Participant.ID)
		assert.Equal(t, token.StatusCompleted, res.Token.Status)

		_, err = f.svc.Validate(ctx, tok.SessionID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyConsumed))
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Validate(ctx, id.NewSessionID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("expired token reports expiry on every attempt", func(t *testing.T) {
		f := newFixture(WithTTL(5 * time.Minute))
		p := f.addParticipant(registry.StatusVerified)

		issued := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
		tok, _, err := f.svc.Issue(requestcontext.WithTime(ctx, issued), p.ID, nil, actor)
		require.NoError(t, err)

		late := requestcontext.WithTime(ctx, issued.Add(6*time.Minute))
		_, err = f.svc.Validate(late, tok.SessionID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExpiredToken))

		// The lazy transition already happened; the answer stays stable.
		_, err = f.svc.Validate(late, tok.SessionID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExpiredToken))

		stored, err := f.store.FindBySession(ctx, tok.SessionID)
		require.NoError(t, err)
		assert.Equal(t, token.StatusExpired, stored.Status)
	})

	t.Run("cancelled token", func(t *testing.T) {
		f := newFixture()
		p := f.addParticipant(registry.StatusVerified)
		tok, _, err := f.svc.Issue(ctx, p.ID, nil, actor)
		require.NoError(t, err)
		require.NoError(t, f.svc.Cancel(ctx, tok.SessionID, actor))

		_, err = f.svc.Validate(ctx, tok.SessionID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestValidate_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.addParticipant(registry.StatusVerified)
	tok, _, err := f.svc.Issue(ctx, p.ID, nil, id.NewAccountID())
	require.NoError(t, err)

	const n = 16
	var wins, losses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Validate(ctx, tok.SessionID)
			if err == nil {
				wins.Add(1)
				return
			}
			if dErrors.HasCode(err, dErrors.CodeAlreadyConsumed) {
				losses.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one validation must succeed")
	assert.Equal(t, int32(n-1), losses.Load())
}

func TestValidateSigned(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p := f.addParticipant(registry.StatusVerified)
	tok, signed, err := f.svc.Issue(ctx, p.ID, nil, id.NewAccountID())
	require.NoError(t, err)

	res, err := f.svc.ValidateSigned(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, tok.SessionID, res.Token.SessionID)

	t.Run("garbage payload", func(t *testing.T) {
		_, err := f.svc.ValidateSigned(ctx, "not-a-token")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("wrong key", func(t *testing.T) {
		forged, err := token.NewSigner([]byte("other-key")).Sign(tok.SessionID, tok.IssuedAt, tok.ExpiresAt)
		require.NoError(t, err)
		_, err = f.svc.ValidateSigned(ctx, forged)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	actor := id.NewAccountID()

	t.Run("unknown session", func(t *testing.T) {
		err := f.svc.Cancel(ctx, id.NewSessionID(), actor)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("only pending tokens cancel", func(t *testing.T) {
		p := f.addParticipant(registry.StatusVerified)
		tok, _, err := f.svc.Issue(ctx, p.ID, nil, actor)
		require.NoError(t, err)
		_, err = f.svc.Validate(ctx, tok.SessionID)
		require.NoError(t, err)

		err = f.svc.Cancel(ctx, tok.SessionID, actor)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
