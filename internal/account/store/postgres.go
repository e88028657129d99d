package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"foodlink/internal/account"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// Postgres reads the accounts table maintained by the registration layer.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed account directory.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) FindByID(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	query := `
		SELECT id, email, full_name, role, active
		FROM accounts
		WHERE id = $1
	`
	var (
		a   account.Account
		uid uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(accountID)).
		Scan(&uid, &a.Email, &a.FullName, &a.Role, &a.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	a.ID = id.AccountID(uid)
	return &a, nil
}

func (s *Postgres) AdminIDs(ctx context.Context) ([]id.AccountID, error) {
	query := `
		SELECT id
		FROM accounts
		WHERE role = 'admin' AND active
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []id.AccountID
	for rows.Next() {
		var uid uuid.UUID
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan admin id: %w", err)
		}
		admins = append(admins, id.AccountID(uid))
	}
	return admins, rows.Err()
}
