package store

import (
	"context"
	"sync"

	"foodlink/internal/account"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
)

// Memory is an in-memory account directory for tests and local runs.
type Memory struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*account.Account
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[id.AccountID]*account.Account)}
}

// Seed adds an account, replacing any existing entry with the same id.
func (m *Memory) Seed(a *account.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.accounts[a.ID] = &cp
}

func (m *Memory) FindByID(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) AdminIDs(ctx context.Context) ([]id.AccountID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var admins []id.AccountID
	for _, a := range m.accounts {
		if a.Role == account.RoleAdmin && a.Active {
			admins = append(admins, a.ID)
		}
	}
	return admins, nil
}
