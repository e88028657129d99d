package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"foodlink/internal/token"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/platform/tx"
)

// Postgres persists identity tokens in the identity_tokens table. Consume
// relies on conditional updates so concurrent validations race inside the
// database, not in application code.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Create(ctx context.Context, t *token.IdentityToken) error {
	query := `
		INSERT INTO identity_tokens (session_id, participant_id, proxy_id, status, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var proxyID any
	if t.ProxyID != nil {
		proxyID = t.ProxyID.String()
	}
	_, err := tx.Resolve(ctx, p.db).ExecContext(ctx, query,
		t.SessionID.String(), t.ParticipantID.String(), proxyID,
		string(t.Status), t.IssuedAt, t.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create identity token: %w", err)
	}
	return nil
}

func (p *Postgres) FindBySession(ctx context.Context, sessionID id.SessionID) (*token.IdentityToken, error) {
	query := `
		SELECT session_id, participant_id, proxy_id, status, issued_at, expires_at
		FROM identity_tokens
		WHERE session_id = $1
	`
	row := tx.Resolve(ctx, p.db).QueryRowContext(ctx, query, sessionID.String())
	return scanToken(row)
}

// Consume claims a pending, unexpired token with a single conditional update.
// When the update claims nothing the token is lazily expired if its window
// has passed, then its terminal state is read back and classified.
func (p *Postgres) Consume(ctx context.Context, sessionID id.SessionID, now time.Time) (*token.IdentityToken, error) {
	claim := `
		UPDATE identity_tokens
		SET status = 'completed'
		WHERE session_id = $1 AND status = 'pending' AND expires_at > $2
		RETURNING session_id, participant_id, proxy_id, status, issued_at, expires_at
	`
	q := tx.Resolve(ctx, p.db)
	t, err := scanToken(q.QueryRowContext(ctx, claim, sessionID.String(), now))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	expire := `
		UPDATE identity_tokens
		SET status = 'expired'
		WHERE session_id = $1 AND status = 'pending' AND expires_at <= $2
	`
	if _, err := q.ExecContext(ctx, expire, sessionID.String(), now); err != nil {
		return nil, fmt.Errorf("expire identity token: %w", err)
	}

	var status string
	err = q.QueryRowContext(ctx,
		`SELECT status FROM identity_tokens WHERE session_id = $1`,
		sessionID.String()).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("classify identity token: %w", err)
	}

	switch token.Status(status) {
	case token.StatusCompleted:
		return nil, sentinel.ErrAlreadyUsed
	case token.StatusExpired:
		return nil, sentinel.ErrExpired
	default:
		return nil, sentinel.ErrInvalidState
	}
}

func (p *Postgres) Cancel(ctx context.Context, sessionID id.SessionID) error {
	query := `
		UPDATE identity_tokens
		SET status = 'cancelled'
		WHERE session_id = $1 AND status = 'pending'
	`
	res, err := tx.Resolve(ctx, p.db).ExecContext(ctx, query, sessionID.String())
	if err != nil {
		return fmt.Errorf("cancel identity token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel identity token: %w", err)
	}
	if affected == 0 {
		var status string
		err := tx.Resolve(ctx, p.db).QueryRowContext(ctx,
			`SELECT status FROM identity_tokens WHERE session_id = $1`,
			sessionID.String()).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("cancel identity token: %w", err)
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func scanToken(row *sql.Row) (*token.IdentityToken, error) {
	var (
		t         token.IdentityToken
		sessionID string
		partID    string
		proxyID   sql.NullString
		status    string
	)
	err := row.Scan(&sessionID, &partID, &proxyID, &status, &t.IssuedAt, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity token: %w", err)
	}
	if t.SessionID, err = id.ParseSessionID(sessionID); err != nil {
		return nil, fmt.Errorf("scan identity token: %w", err)
	}
	if t.ParticipantID, err = id.ParseParticipantID(partID); err != nil {
		return nil, fmt.Errorf("scan identity token: %w", err)
	}
	if proxyID.Valid {
		pid, err := id.ParseDelegateID(proxyID.String)
		if err != nil {
			return nil, fmt.Errorf("scan identity token: %w", err)
		}
		t.ProxyID = &pid
	}
	t.Status = token.Status(status)
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
