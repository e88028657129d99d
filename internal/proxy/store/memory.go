package store

import (
	"context"
	"sort"
	"sync"

	"foodlink/internal/proxy"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
)

// Memory is an in-memory delegate store for tests and local runs.
type Memory struct {
	mu        sync.Mutex
	delegates map[id.DelegateID]*proxy.Delegate
}

func NewMemory() *Memory {
	return &Memory{delegates: make(map[id.DelegateID]*proxy.Delegate)}
}

func (m *Memory) Create(ctx context.Context, d *proxy.Delegate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.delegates[d.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *d
	m.delegates[d.ID] = &cp
	return nil
}

func (m *Memory) FindByID(ctx context.Context, delegateID id.DelegateID) (*proxy.Delegate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.delegates[delegateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *Memory) ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*proxy.Delegate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*proxy.Delegate
	for _, d := range m.delegates {
		if d.ParticipantID == participantID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Decide moves a pending request to its terminal state. Requests already
// decided report ErrInvalidState.
func (m *Memory) Decide(ctx context.Context, delegateID id.DelegateID, status proxy.Status, decidedBy id.AccountID) (*proxy.Delegate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.delegates[delegateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if d.Status != proxy.StatusPending {
		return nil, sentinel.ErrInvalidState
	}
	d.Status = status
	d.ApprovedBy = decidedBy
	cp := *d
	return &cp, nil
}

// Delete removes a delegate owned by the participant. Approved delegates are
// protected; staff must revoke approval through a decision first.
func (m *Memory) Delete(ctx context.Context, delegateID id.DelegateID, participantID id.ParticipantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.delegates[delegateID]
	if !ok || d.ParticipantID != participantID {
		return sentinel.ErrNotFound
	}
	if d.Status == proxy.StatusApproved {
		return sentinel.ErrInvalidState
	}
	delete(m.delegates, delegateID)
	return nil
}
