package service

import (
	"context"
	"log/slog"

	"foodlink/internal/notification"
	"foodlink/internal/platform/metrics"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// Store persists notifications. Read scoping (account ownership) is enforced
// here by passing the owner into every mutation.
type Store interface {
	Append(ctx context.Context, n *notification.Notification) error
	MarkRead(ctx context.Context, notificationID id.NotificationID, accountID id.AccountID) error
	MarkAllRead(ctx context.Context, accountID id.AccountID) error
	ListByAccount(ctx context.Context, accountID id.AccountID, unreadOnly bool) ([]*notification.Notification, error)
	CountUnread(ctx context.Context, accountID id.AccountID) (int, error)
}

// Directory resolves the current administrator set for fan-out.
type Directory interface {
	AdminIDs(ctx context.Context) ([]id.AccountID, error)
}

// Dispatcher fans out state-change messages. State transitions treat it as
// best-effort: a failed delivery is logged, never rolled back into the
// transition that triggered it.
type Dispatcher struct {
	store     Store
	directory Directory
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New constructs a Dispatcher.
func New(store Store, directory Directory, opts ...Option) *Dispatcher {
	d := &Dispatcher{store: store, directory: directory, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify appends one notification for one account. Storage failure is fatal
// and propagates; there is no business-level failure mode here.
func (d *Dispatcher) Notify(ctx context.Context, accountID id.AccountID, message string, severity notification.Severity) (*notification.Notification, error) {
	if message == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "message cannot be empty")
	}
	if !severity.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown severity %q", severity)
	}

	n := &notification.Notification{
		ID:        id.NewNotificationID(),
		AccountID: accountID,
		Message:   message,
		Severity:  severity,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := d.store.Append(ctx, n); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "notification store unavailable")
	}
	if d.metrics != nil {
		d.metrics.NotificationsSent.WithLabelValues(string(severity)).Inc()
	}
	return n, nil
}

// NotifyAdmins resolves the administrator set and notifies each one
// independently. One failed delivery does not roll back or abort the rest.
func (d *Dispatcher) NotifyAdmins(ctx context.Context, message string, severity notification.Severity) error {
	admins, err := d.directory.AdminIDs(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to resolve admin accounts")
	}

	for _, adminID := range admins {
		if _, err := d.Notify(ctx, adminID, message, severity); err != nil {
			if d.metrics != nil {
				d.metrics.NotificationsFailed.Inc()
			}
			d.logger.WarnContext(ctx, "admin notification failed",
				"account_id", adminID.String(),
				"error", err,
			)
		}
	}
	return nil
}

// MarkRead flips one notification to read, scoped to the owning account.
// Nothing matching is a no-op.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID id.NotificationID, accountID id.AccountID) error {
	if err := d.store.MarkRead(ctx, notificationID, accountID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead marks every notification of the account as read.
func (d *Dispatcher) MarkAllRead(ctx context.Context, accountID id.AccountID) error {
	if err := d.store.MarkAllRead(ctx, accountID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notifications read")
	}
	return nil
}

// List returns the account's notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, accountID id.AccountID, unreadOnly bool) ([]*notification.Notification, error) {
	out, err := d.store.ListByAccount(ctx, accountID, unreadOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return out, nil
}

// UnreadCount returns how many unread notifications the account has.
func (d *Dispatcher) UnreadCount(ctx context.Context, accountID id.AccountID) (int, error) {
	count, err := d.store.CountUnread(ctx, accountID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count notifications")
	}
	return count, nil
}
