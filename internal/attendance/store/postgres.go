package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"foodlink/internal/attendance"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/platform/tx"
)

// Postgres persists no-show events in the no_show_events table. RunInTx
// opens a database transaction; the registry store's IncrementNoShow joins
// it through the context, so counter and event commit or roll back together.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) CreateEvent(ctx context.Context, e *attendance.NoShowEvent) error {
	query := `
		INSERT INTO no_show_events (id, participant_id, logged_by, reason, count, threshold_reached, action_taken, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8)
	`
	_, err := tx.Resolve(ctx, p.db).ExecContext(ctx, query,
		e.ID, e.ParticipantID.String(), e.LoggedBy.String(), e.Reason,
		e.Count, e.ThresholdReached, e.ActionTaken, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create no-show event: %w", err)
	}
	return nil
}

func (p *Postgres) ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*attendance.NoShowEvent, error) {
	query := `
		SELECT id, participant_id, logged_by, COALESCE(reason, ''), count, threshold_reached, COALESCE(action_taken, ''), created_at
		FROM no_show_events
		WHERE participant_id = $1
		ORDER BY created_at
	`
	rows, err := tx.Resolve(ctx, p.db).QueryContext(ctx, query, participantID.String())
	if err != nil {
		return nil, fmt.Errorf("list no-show events: %w", err)
	}
	defer rows.Close()

	var out []*attendance.NoShowEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, p.db, fn)
}

func scanEvent(rows *sql.Rows) (*attendance.NoShowEvent, error) {
	var (
		e        attendance.NoShowEvent
		partID   string
		loggedBy string
	)
	err := rows.Scan(&e.ID, &partID, &loggedBy, &e.Reason, &e.Count, &e.ThresholdReached, &e.ActionTaken, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan no-show event: %w", err)
	}
	if e.ParticipantID, err = id.ParseParticipantID(partID); err != nil {
		return nil, fmt.Errorf("scan no-show event: %w", err)
	}
	if e.LoggedBy, err = id.ParseAccountID(loggedBy); err != nil {
		return nil, fmt.Errorf("scan no-show event: %w", err)
	}
	return &e, nil
}
