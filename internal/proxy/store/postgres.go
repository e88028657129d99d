package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"foodlink/internal/proxy"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/platform/tx"
)

// Postgres persists delegates in the proxy_delegates table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Create(ctx context.Context, d *proxy.Delegate) error {
	query := `
		INSERT INTO proxy_delegates (id, participant_id, name, phone, email, status, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
	`
	_, err := tx.Resolve(ctx, p.db).ExecContext(ctx, query,
		d.ID.String(), d.ParticipantID.String(), d.Name, d.Phone, d.Email,
		string(d.Status), d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create delegate: %w", err)
	}
	return nil
}

func (p *Postgres) FindByID(ctx context.Context, delegateID id.DelegateID) (*proxy.Delegate, error) {
	row := tx.Resolve(ctx, p.db).QueryRowContext(ctx, selectDelegate+` WHERE id = $1`, delegateID.String())
	return scanDelegate(row.Scan)
}

func (p *Postgres) ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*proxy.Delegate, error) {
	rows, err := tx.Resolve(ctx, p.db).QueryContext(ctx,
		selectDelegate+` WHERE participant_id = $1 ORDER BY created_at`, participantID.String())
	if err != nil {
		return nil, fmt.Errorf("list delegates: %w", err)
	}
	defer rows.Close()

	var out []*proxy.Delegate
	for rows.Next() {
		d, err := scanDelegate(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list delegates: %w", err)
	}
	return out, nil
}

// Decide flips a pending request with a conditional update; a zero-row
// result is classified against the current row state.
func (p *Postgres) Decide(ctx context.Context, delegateID id.DelegateID, status proxy.Status, decidedBy id.AccountID) (*proxy.Delegate, error) {
	query := `
		UPDATE proxy_delegates
		SET status = $2, approved_by = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING id, participant_id, name, COALESCE(phone, ''), COALESCE(email, ''), status, COALESCE(approved_by::text, ''), created_at
	`
	q := tx.Resolve(ctx, p.db)
	d, err := scanDelegate(q.QueryRowContext(ctx, query, delegateID.String(), string(status), decidedBy.String()).Scan)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM proxy_delegates WHERE id = $1)`,
		delegateID.String()).Scan(&exists); err != nil {
		return nil, fmt.Errorf("classify delegate decision: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrInvalidState
}

func (p *Postgres) Delete(ctx context.Context, delegateID id.DelegateID, participantID id.ParticipantID) error {
	query := `
		DELETE FROM proxy_delegates
		WHERE id = $1 AND participant_id = $2 AND status <> 'approved'
	`
	q := tx.Resolve(ctx, p.db)
	res, err := q.ExecContext(ctx, query, delegateID.String(), participantID.String())
	if err != nil {
		return fmt.Errorf("delete delegate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete delegate: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM proxy_delegates WHERE id = $1 AND participant_id = $2)`,
		delegateID.String(), participantID.String()).Scan(&exists); err != nil {
		return fmt.Errorf("classify delegate delete: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

const selectDelegate = `
	SELECT id, participant_id, name, COALESCE(phone, ''), COALESCE(email, ''), status, COALESCE(approved_by::text, ''), created_at
	FROM proxy_delegates
`

func scanDelegate(scan func(dest ...any) error) (*proxy.Delegate, error) {
	var (
		d          proxy.Delegate
		delegateID string
		partID     string
		status     string
		approvedBy string
	)
	err := scan(&delegateID, &partID, &d.Name, &d.Phone, &d.Email, &status, &approvedBy, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan delegate: %w", err)
	}
	if d.ID, err = id.ParseDelegateID(delegateID); err != nil {
		return nil, fmt.Errorf("scan delegate: %w", err)
	}
	if d.ParticipantID, err = id.ParseParticipantID(partID); err != nil {
		return nil, fmt.Errorf("scan delegate: %w", err)
	}
	if approvedBy != "" {
		if d.ApprovedBy, err = id.ParseAccountID(approvedBy); err != nil {
			return nil, fmt.Errorf("scan delegate: %w", err)
		}
	}
	d.Status = proxy.Status(status)
	return &d, nil
}
