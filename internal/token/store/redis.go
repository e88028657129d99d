package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "foodlink/internal/platform/redis"
	"foodlink/internal/token"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
)

// retention keeps terminal tokens around after their window so repeat scans
// can still be classified as already-used or expired instead of not-found.
const retention = 24 * time.Hour

// Redis keeps identity tokens as JSON values. Single consumption is enforced
// with a SET NX claim key: the first validator to plant the claim wins, every
// later one sees it and reports the token as used.
type Redis struct {
	client *platformredis.Client
}

func NewRedis(client *platformredis.Client) *Redis {
	return &Redis{client: client}
}

func tokenKey(sessionID id.SessionID) string {
	return "token:" + sessionID.String()
}

func claimKey(sessionID id.SessionID) string {
	return "token:" + sessionID.String() + ":claim"
}

func (r *Redis) Create(ctx context.Context, t *token.IdentityToken) error {
	payload, err := json.Marshal(redisToken{
		SessionID:     t.SessionID.String(),
		ParticipantID: t.ParticipantID.String(),
		ProxyID:       proxyString(t.ProxyID),
		Status:        string(t.Status),
		IssuedAt:      t.IssuedAt,
		ExpiresAt:     t.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal identity token: %w", err)
	}

	ttl := time.Until(t.ExpiresAt) + retention
	ok, err := r.client.SetNX(ctx, tokenKey(t.SessionID), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store identity token: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

func (r *Redis) FindBySession(ctx context.Context, sessionID id.SessionID) (*token.IdentityToken, error) {
	return r.load(ctx, sessionID)
}

func (r *Redis) Consume(ctx context.Context, sessionID id.SessionID, now time.Time) (*token.IdentityToken, error) {
	t, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch t.Status {
	case token.StatusCompleted:
		return nil, sentinel.ErrAlreadyUsed
	case token.StatusExpired:
		return nil, sentinel.ErrExpired
	case token.StatusCancelled:
		return nil, sentinel.ErrInvalidState
	}
	if t.Expired(now) {
		t.Status = token.StatusExpired
		if err := r.save(ctx, t); err != nil {
			return nil, err
		}
		return nil, sentinel.ErrExpired
	}

	// The claim key is the linearization point: SET NX admits exactly one
	// validator even when several read the token as pending.
	won, err := r.client.SetNX(ctx, claimKey(sessionID), now.UnixNano(), retention).Result()
	if err != nil {
		return nil, fmt.Errorf("claim identity token: %w", err)
	}
	if !won {
		return nil, sentinel.ErrAlreadyUsed
	}

	t.Status = token.StatusCompleted
	if err := r.save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Redis) Cancel(ctx context.Context, sessionID id.SessionID) error {
	t, err := r.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if t.Status != token.StatusPending {
		return sentinel.ErrInvalidState
	}
	exists, err := r.client.Exists(ctx, claimKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("cancel identity token: %w", err)
	}
	if exists > 0 {
		return sentinel.ErrInvalidState
	}
	t.Status = token.StatusCancelled
	return r.save(ctx, t)
}

func (r *Redis) load(ctx context.Context, sessionID id.SessionID) (*token.IdentityToken, error) {
	raw, err := r.client.Get(ctx, tokenKey(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load identity token: %w", err)
	}

	var rt redisToken
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, fmt.Errorf("decode identity token: %w", err)
	}
	return rt.toDomain()
}

func (r *Redis) save(ctx context.Context, t *token.IdentityToken) error {
	payload, err := json.Marshal(redisToken{
		SessionID:     t.SessionID.String(),
		ParticipantID: t.ParticipantID.String(),
		ProxyID:       proxyString(t.ProxyID),
		Status:        string(t.Status),
		IssuedAt:      t.IssuedAt,
		ExpiresAt:     t.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal identity token: %w", err)
	}
	ttl := time.Until(t.ExpiresAt) + retention
	if err := r.client.Set(ctx, tokenKey(t.SessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store identity token: %w", err)
	}
	return nil
}

type redisToken struct {
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"participant_id"`
	ProxyID       string    `json:"proxy_id,omitempty"`
	Status        string    `json:"status"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (rt redisToken) toDomain() (*token.IdentityToken, error) {
	t := &token.IdentityToken{
		Status:    token.Status(rt.Status),
		IssuedAt:  rt.IssuedAt,
		ExpiresAt: rt.ExpiresAt,
	}
	var err error
	if t.SessionID, err = id.ParseSessionID(rt.SessionID); err != nil {
		return nil, fmt.Errorf("decode identity token: %w", err)
	}
	if t.ParticipantID, err = id.ParseParticipantID(rt.ParticipantID); err != nil {
		return nil, fmt.Errorf("decode identity token: %w", err)
	}
	if rt.ProxyID != "" {
		pid, err := id.ParseDelegateID(rt.ProxyID)
		if err != nil {
			return nil, fmt.Errorf("decode identity token: %w", err)
		}
		t.ProxyID = &pid
	}
	return t, nil
}

func proxyString(pid *id.DelegateID) string {
	if pid == nil {
		return ""
	}
	return pid.String()
}
