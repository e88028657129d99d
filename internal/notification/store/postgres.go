package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"foodlink/internal/notification"
	id "foodlink/pkg/domain"
)

// Postgres persists notifications in PostgreSQL. Pure I/O; fan-out policy
// lives in the service.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed notification store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (id, account_id, message, severity, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(n.ID),
		uuid.UUID(n.AccountID),
		n.Message,
		string(n.Severity),
		n.IsRead,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

func (s *Postgres) MarkRead(ctx context.Context, notificationID id.NotificationID, accountID id.AccountID) error {
	query := `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND account_id = $2
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(notificationID), uuid.UUID(accountID)); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *Postgres) MarkAllRead(ctx context.Context, accountID id.AccountID) error {
	query := `
		UPDATE notifications SET is_read = TRUE
		WHERE account_id = $1 AND NOT is_read
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(accountID)); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (s *Postgres) ListByAccount(ctx context.Context, accountID id.AccountID, unreadOnly bool) ([]*notification.Notification, error) {
	query := `
		SELECT id, account_id, message, severity, is_read, created_at
		FROM notifications
		WHERE account_id = $1 AND ($2 = FALSE OR NOT is_read)
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(accountID), unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Postgres) CountUnread(ctx context.Context, accountID id.AccountID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE account_id = $1 AND NOT is_read`,
		uuid.UUID(accountID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func scanNotification(rows *sql.Rows) (*notification.Notification, error) {
	var (
		n        notification.Notification
		nid, aid uuid.UUID
		severity string
	)
	if err := rows.Scan(&nid, &aid, &n.Message, &severity, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.ID = id.NotificationID(nid)
	n.AccountID = id.AccountID(aid)
	n.Severity = notification.Severity(severity)
	return &n, nil
}
