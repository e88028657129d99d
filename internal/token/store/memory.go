package store

import (
	"context"
	"sync"
	"time"

	"foodlink/internal/token"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
)

// Memory is an in-memory token store for tests and local runs.
type Memory struct {
	mu     sync.Mutex
	tokens map[id.SessionID]*token.IdentityToken
}

func NewMemory() *Memory {
	return &Memory{tokens: make(map[id.SessionID]*token.IdentityToken)}
}

func (m *Memory) Create(ctx context.Context, t *token.IdentityToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[t.SessionID]; ok {
		return sentinel.ErrConflict
	}
	cp := *t
	m.tokens[t.SessionID] = &cp
	return nil
}

func (m *Memory) FindBySession(ctx context.Context, sessionID id.SessionID) (*token.IdentityToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// Consume atomically moves a pending token to completed. A pending token past
// its window is marked expired on first touch, so exactly one caller observes
// the pending-to-expired transition.
func (m *Memory) Consume(ctx context.Context, sessionID id.SessionID, now time.Time) (*token.IdentityToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
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
		return nil, sentinel.ErrExpired
	}

	t.Status = token.StatusCompleted
	cp := *t
	return &cp, nil
}

// Cancel moves a pending token to cancelled. Terminal tokens are left alone.
func (m *Memory) Cancel(ctx context.Context, sessionID id.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if t.Status != token.StatusPending {
		return sentinel.ErrInvalidState
	}
	t.Status = token.StatusCancelled
	return nil
}
