package store

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"foodlink/internal/registry"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
)

// Memory is an in-memory participant store for tests and local runs. Number
// uniqueness is enforced under one lock, standing in for the database's
// unique index.
type Memory struct {
	mu           sync.Mutex
	participants map[id.ParticipantID]*registry.Participant
	numbers      map[string]id.ParticipantID
	decisions    []*registry.VerificationDecision
}

// NewMemory creates an empty in-memory participant store.
func NewMemory() *Memory {
	return &Memory{
		participants: make(map[id.ParticipantID]*registry.Participant),
		numbers:      make(map[string]id.ParticipantID),
	}
}

// Create registers a participant in pending status.
func (m *Memory) Create(ctx context.Context, p *registry.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.participants[p.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *p
	m.participants[p.ID] = &cp
	return nil
}

func (m *Memory) FindByID(ctx context.Context, participantID id.ParticipantID) (*registry.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[participantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// HighestSequence returns the largest numeric suffix among assigned numbers
// sharing the prefix, or zero when none exist.
func (m *Memory) HighestSequence(ctx context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	highest := 0
	for number := range m.numbers {
		if !strings.HasPrefix(number, prefix) {
			continue
		}
		seq, err := strconv.Atoi(number[len(prefix):])
		if err != nil {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return highest, nil
}

// Approve atomically sets the participant verified with the decision's
// number and appends the decision. Returns sentinel.ErrConflict when the
// number is already held by another participant, sentinel.ErrInvalidState
// when this participant already holds a different number.
func (m *Memory) Approve(ctx context.Context, decision *registry.VerificationDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[decision.ParticipantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.Number != "" && p.Number != decision.Number {
		return sentinel.ErrInvalidState
	}
	if holder, taken := m.numbers[decision.Number]; taken && holder != decision.ParticipantID {
		return sentinel.ErrConflict
	}

	p.Status = registry.StatusVerified
	p.Number = decision.Number
	m.numbers[decision.Number] = decision.ParticipantID
	cp := *decision
	m.decisions = append(m.decisions, &cp)
	return nil
}

// Reject sets the participant rejected and appends the decision. An existing
// number is left untouched.
func (m *Memory) Reject(ctx context.Context, decision *registry.VerificationDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[decision.ParticipantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.Status = registry.StatusRejected
	if decision.Reason != "" {
		p.Notes = appendNote(p.Notes, "rejected: "+decision.Reason)
	}
	cp := *decision
	m.decisions = append(m.decisions, &cp)
	return nil
}

func (m *Memory) AppendNote(ctx context.Context, participantID id.ParticipantID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[participantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.Notes = appendNote(p.Notes, note)
	return nil
}

// IncrementNoShow bumps the participant's no-show counter and returns the
// post-increment value.
func (m *Memory) IncrementNoShow(ctx context.Context, participantID id.ParticipantID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[participantID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	p.NoShowCount++
	return p.NoShowCount, nil
}

func (m *Memory) ListPending(ctx context.Context) ([]*registry.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*registry.Participant
	for _, p := range m.participants {
		if p.Status == registry.StatusPending {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Decisions returns the decision log; test helper.
func (m *Memory) Decisions() []*registry.VerificationDecision {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*registry.VerificationDecision, len(m.decisions))
	copy(out, m.decisions)
	return out
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}
