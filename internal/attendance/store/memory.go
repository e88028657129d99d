package store

import (
	"context"
	"sync"

	"foodlink/internal/attendance"
	id "foodlink/pkg/domain"
)

// Memory is an in-memory no-show event store for tests and local runs.
// RunInTx is a passthrough: each increment is atomic under the registry
// memory store's lock, but a unit that fails after the increment does not
// roll the counter back the way the SQL transaction does.
type Memory struct {
	mu     sync.Mutex
	events []*attendance.NoShowEvent
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) CreateEvent(ctx context.Context, e *attendance.NoShowEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *Memory) ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*attendance.NoShowEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*attendance.NoShowEvent
	for _, e := range m.events {
		if e.ParticipantID == participantID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
