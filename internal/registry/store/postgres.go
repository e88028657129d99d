package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"foodlink/internal/registry"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL error code raised by the unique index on
// participants.number; the service retries allocation on it.
const uniqueViolation = "23505"

// Postgres persists participants and verification decisions. The unique
// index on number is the authority for number uniqueness under concurrent
// approvals.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed participant store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, p *registry.Participant) error {
	query := `
		INSERT INTO participants (id, account_id, verification_status, number, no_show_count, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID), uuid.UUID(p.AccountID), string(p.Status), p.Number, p.NoShowCount, p.Notes)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, participantID id.ParticipantID) (*registry.Participant, error) {
	query := `
		SELECT id, account_id, verification_status, COALESCE(number, ''), no_show_count, COALESCE(notes, '')
		FROM participants
		WHERE id = $1
	`
	return scanParticipant(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(participantID)))
}

// HighestSequence scans assigned numbers for the prefix and returns the
// largest numeric suffix, zero when none exist.
func (s *Postgres) HighestSequence(ctx context.Context, prefix string) (int, error) {
	query := `
		SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM $2) AS INTEGER)), 0)
		FROM participants
		WHERE number LIKE $1 AND SUBSTRING(number FROM $2) ~ '^[0-9]+$'
	`
	var highest int
	err := tx.Resolve(ctx, s.db).
		QueryRowContext(ctx, query, prefix+"%", len(prefix)+1).
		Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("highest sequence for %q: %w", prefix, err)
	}
	return highest, nil
}

// Approve sets the participant verified with the decision's number and
// records the decision in one transaction. A duplicate number surfaces as
// sentinel.ErrConflict for the service's allocation retry. The update is
// conditional on the number column: a participant that already holds a
// different number is never overwritten, so two racing approvals cannot
// both mint one.
func (s *Postgres) Approve(ctx context.Context, decision *registry.VerificationDecision) error {
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		q := tx.Resolve(ctx, s.db)

		res, err := q.ExecContext(ctx, `
			UPDATE participants
			SET verification_status = 'verified', number = $2
			WHERE id = $1 AND (number IS NULL OR number = $2)
		`, uuid.UUID(decision.ParticipantID), decision.Number)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			var exists bool
			if err := q.QueryRowContext(ctx, `
				SELECT EXISTS (SELECT 1 FROM participants WHERE id = $1)
			`, uuid.UUID(decision.ParticipantID)).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return sentinel.ErrNotFound
			}
			return sentinel.ErrInvalidState
		}

		return insertDecision(ctx, q, decision)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidState) {
			return err
		}
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("approve participant: %w", err)
	}
	return nil
}

// Reject sets the participant rejected and records the decision. The number
// column is left untouched, and a rejection without a reason leaves the
// notes alone.
func (s *Postgres) Reject(ctx context.Context, decision *registry.VerificationDecision) error {
	note := ""
	if decision.Reason != "" {
		note = "rejected: " + decision.Reason
	}
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		q := tx.Resolve(ctx, s.db)

		res, err := q.ExecContext(ctx, `
			UPDATE participants
			SET verification_status = 'rejected',
			    notes = TRIM(BOTH E'\n' FROM COALESCE(notes, '') || COALESCE(E'\n' || NULLIF($2, ''), ''))
			WHERE id = $1
		`, uuid.UUID(decision.ParticipantID), note)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return sentinel.ErrNotFound
		}

		return insertDecision(ctx, q, decision)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("reject participant: %w", err)
	}
	return nil
}

func (s *Postgres) AppendNote(ctx context.Context, participantID id.ParticipantID, note string) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, `
		UPDATE participants
		SET notes = TRIM(BOTH E'\n' FROM COALESCE(notes, '') || E'\n' || $2)
		WHERE id = $1
	`, uuid.UUID(participantID), note)
	if err != nil {
		return fmt.Errorf("append note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// IncrementNoShow bumps the no-show counter in place and returns the
// post-increment value. The single UPDATE makes concurrent increments
// serialize in the database, so no count is lost.
func (s *Postgres) IncrementNoShow(ctx context.Context, participantID id.ParticipantID) (int, error) {
	var count int
	err := tx.Resolve(ctx, s.db).QueryRowContext(ctx, `
		UPDATE participants
		SET no_show_count = no_show_count + 1
		WHERE id = $1
		RETURNING no_show_count
	`, uuid.UUID(participantID)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment no-show count: %w", err)
	}
	return count, nil
}

func (s *Postgres) ListPending(ctx context.Context) ([]*registry.Participant, error) {
	query := `
		SELECT id, account_id, verification_status, COALESCE(number, ''), no_show_count, COALESCE(notes, '')
		FROM participants
		WHERE verification_status = 'pending'
	`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending participants: %w", err)
	}
	defer rows.Close()

	var out []*registry.Participant
	for rows.Next() {
		p, err := scanParticipantRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func insertDecision(ctx context.Context, q tx.Querier, d *registry.VerificationDecision) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO verification_decisions (id, participant_id, decided_by, approved, number, reason, decided_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)
	`, d.ID, uuid.UUID(d.ParticipantID), uuid.UUID(d.DecidedBy), d.Approved, d.Number, d.Reason, d.DecidedAt)
	return err
}

func scanParticipant(row *sql.Row) (*registry.Participant, error) {
	var (
		p        registry.Participant
		pid, aid uuid.UUID
		status   string
	)
	err := row.Scan(&pid, &aid, &status, &p.Number, &p.NoShowCount, &p.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	p.ID = id.ParticipantID(pid)
	p.AccountID = id.AccountID(aid)
	p.Status = registry.VerificationStatus(status)
	return &p, nil
}

func scanParticipantRows(rows *sql.Rows) (*registry.Participant, error) {
	var (
		p        registry.Participant
		pid, aid uuid.UUID
		status   string
	)
	if err := rows.Scan(&pid, &aid, &status, &p.Number, &p.NoShowCount, &p.Notes); err != nil {
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	p.ID = id.ParticipantID(pid)
	p.AccountID = id.AccountID(aid)
	p.Status = registry.VerificationStatus(status)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
