package store

import (
	"context"
	"sort"
	"sync"

	"foodlink/internal/notification"
	id "foodlink/pkg/domain"
)

// Memory is an in-memory notification store for tests and local runs.
type Memory struct {
	mu   sync.RWMutex
	rows map[id.NotificationID]*notification.Notification
}

// NewMemory creates an empty in-memory notification store.
func NewMemory() *Memory {
	return &Memory{rows: make(map[id.NotificationID]*notification.Notification)}
}

func (m *Memory) Append(ctx context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.rows[n.ID] = &cp
	return nil
}

// MarkRead flips the read flag scoped to the owning account. Not matching
// anything is a no-op, not an error.
func (m *Memory) MarkRead(ctx context.Context, notificationID id.NotificationID, accountID id.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.rows[notificationID]; ok && n.AccountID == accountID {
		n.IsRead = true
	}
	return nil
}

func (m *Memory) MarkAllRead(ctx context.Context, accountID id.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.AccountID == accountID {
			n.IsRead = true
		}
	}
	return nil
}

func (m *Memory) ListByAccount(ctx context.Context, accountID id.AccountID, unreadOnly bool) ([]*notification.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*notification.Notification
	for _, n := range m.rows {
		if n.AccountID != accountID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CountUnread(ctx context.Context, accountID id.AccountID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, n := range m.rows {
		if n.AccountID == accountID && !n.IsRead {
			count++
		}
	}
	return count, nil
}
