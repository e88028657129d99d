package store

import (
	"context"
	"sync"

	"foodlink/internal/ledger"
	id "foodlink/pkg/domain"
)

// Memory is an in-memory distribution ledger for tests and local runs.
type Memory struct {
	mu      sync.Mutex
	records []*ledger.DistributionRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(ctx context.Context, r *ledger.DistributionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records = append(m.records, &cp)
	return nil
}

func (m *Memory) ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*ledger.DistributionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ledger.DistributionRecord
	for _, r := range m.records {
		if r.ParticipantID == participantID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}
