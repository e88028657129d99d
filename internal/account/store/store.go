package store

import (
	"context"

	"foodlink/internal/account"
	id "foodlink/pkg/domain"
)

// Directory is the read surface other services need from accounts.
type Directory interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*account.Account, error)
	AdminIDs(ctx context.Context) ([]id.AccountID, error)
}
