package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore appends activity events to the activity_events table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed event store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO activity_events (actor_id, action, entity, entity_id, detail, created_at)
		VALUES (NULLIF($1, ''), $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ActorID, string(event.Action), event.Entity, event.EntityID, event.Detail, event.Timestamp)
	if err != nil {
		return fmt.Errorf("append activity event: %w", err)
	}
	return nil
}
