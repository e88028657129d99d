//go:build integration

package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodlink/internal/platform/config"
	platformredis "foodlink/internal/platform/redis"
	"foodlink/internal/token"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/testutil/containers"
)

func newRedisStore(t *testing.T) *Redis {
	t.Helper()
	rc := containers.NewRedisContainer(t)
	client, err := platformredis.New(config.RedisConfig{
		URL:          rc.Addr,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client)
}

func newPendingToken(ttl time.Duration) *token.IdentityToken {
	now := time.Now().UTC()
	return &token.IdentityToken{
		SessionID:     id.NewSessionID(),
		ParticipantID: id.NewParticipantID(),
		Status:        token.StatusPending,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
}

func TestRedisConsume_SingleWinner(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)
	tok := newPendingToken(time.Minute)
	require.NoError(t, store.Create(ctx, tok))

	const n = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, tok.SessionID, time.Now()); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	got, err := store.FindBySession(ctx, tok.SessionID)
	require.NoError(t, err)
	assert.Equal(t, token.StatusCompleted, got.Status)
}

func TestRedisConsume_Expiry(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)
	tok := newPendingToken(time.Minute)
	require.NoError(t, store.Create(ctx, tok))

	late := tok.ExpiresAt.Add(time.Second)
	_, err := store.Consume(ctx, tok.SessionID, late)
	require.ErrorIs(t, err, sentinel.ErrExpired)

	got, err := store.FindBySession(ctx, tok.SessionID)
	require.NoError(t, err)
	assert.Equal(t, token.StatusExpired, got.Status)
}

func TestRedisCreate_DuplicateSession(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)
	tok := newPendingToken(time.Minute)
	require.NoError(t, store.Create(ctx, tok))
	require.ErrorIs(t, store.Create(ctx, tok), sentinel.ErrConflict)
}

func TestRedisCancel(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)
	tok := newPendingToken(time.Minute)
	require.NoError(t, store.Create(ctx, tok))

	require.NoError(t, store.Cancel(ctx, tok.SessionID))
	require.ErrorIs(t, store.Cancel(ctx, tok.SessionID), sentinel.ErrInvalidState)

	_, err := store.Consume(ctx, tok.SessionID, time.Now())
	require.ErrorIs(t, err, sentinel.ErrInvalidState)
}
