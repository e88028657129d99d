package store

import (
	"context"
	"database/sql"
	"fmt"

	"foodlink/internal/ledger"
	id "foodlink/pkg/domain"
	"foodlink/pkg/platform/tx"
)

// Postgres persists distribution records in the distribution_records table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Append(ctx context.Context, r *ledger.DistributionRecord) error {
	query := `
		INSERT INTO distribution_records (id, participant_id, volunteer_id, recorded_at, quantity, item_description, signed, notes)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''))
	`
	_, err := tx.Resolve(ctx, p.db).ExecContext(ctx, query,
		r.ID, r.ParticipantID.String(), r.VolunteerID.String(), r.Timestamp,
		r.Quantity, r.ItemDescription, r.Signed, r.Notes)
	if err != nil {
		return fmt.Errorf("append distribution record: %w", err)
	}
	return nil
}

func (p *Postgres) ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*ledger.DistributionRecord, error) {
	query := `
		SELECT id, participant_id, volunteer_id, recorded_at, quantity, COALESCE(item_description, ''), signed, COALESCE(notes, '')
		FROM distribution_records
		WHERE participant_id = $1
		ORDER BY recorded_at
	`
	rows, err := tx.Resolve(ctx, p.db).QueryContext(ctx, query, participantID.String())
	if err != nil {
		return nil, fmt.Errorf("list distribution records: %w", err)
	}
	defer rows.Close()

	var out []*ledger.DistributionRecord
	for rows.Next() {
		var (
			r           ledger.DistributionRecord
			partID      string
			volunteerID string
		)
		if err := rows.Scan(&r.ID, &partID, &volunteerID, &r.Timestamp, &r.Quantity, &r.ItemDescription, &r.Signed, &r.Notes); err != nil {
			return nil, fmt.Errorf("scan distribution record: %w", err)
		}
		if r.ParticipantID, err = id.ParseParticipantID(partID); err != nil {
			return nil, fmt.Errorf("scan distribution record: %w", err)
		}
		if r.VolunteerID, err = id.ParseAccountID(volunteerID); err != nil {
			return nil, fmt.Errorf("scan distribution record: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
