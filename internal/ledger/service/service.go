package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"foodlink/internal/audit"
	"foodlink/internal/ledger"
	"foodlink/internal/notification"
	"foodlink/internal/platform/metrics"
	"foodlink/internal/registry"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/requestcontext"
)

// Store persists distribution records.
type Store interface {
	Append(ctx context.Context, r *ledger.DistributionRecord) error
	ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*ledger.DistributionRecord, error)
}

// ParticipantDirectory resolves recipients.
type ParticipantDirectory interface {
	FindByID(ctx context.Context, participantID id.ParticipantID) (*registry.Participant, error)
}

// Notifier fans out to participants and the administrator set.
type Notifier interface {
	Notify(ctx context.Context, accountID id.AccountID, message string, severity notification.Severity) (*notification.Notification, error)
	NotifyAdmins(ctx context.Context, message string, severity notification.Severity) error
}

// AuditPublisher records activity events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the append-only distribution ledger.
type Service struct {
	store        Store
	participants ParticipantDirectory
	notifier     Notifier
	logger       *slog.Logger
	metrics      *metrics.Metrics
	auditor      AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

// New constructs the distribution ledger service.
func New(store Store, participants ParticipantDirectory, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:        store,
		participants: participants,
		notifier:     notifier,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends one distribution. Notifications go out only after the
// record is durable.
func (s *Service) Record(ctx context.Context, participantID id.ParticipantID, volunteerID id.AccountID, quantity float64, itemDescription string, signed bool, notes string) (*ledger.DistributionRecord, error) {
	if quantity <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "quantity must be positive")
	}

	p, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}
	if p.Status != registry.StatusVerified {
		return nil, dErrors.New(dErrors.CodeValidation, "participant is not verified")
	}

	r := &ledger.DistributionRecord{
		ID:              uuid.New(),
		ParticipantID:   participantID,
		VolunteerID:     volunteerID,
		Timestamp:       requestcontext.Now(ctx),
		Quantity:        quantity,
		ItemDescription: itemDescription,
		Signed:          signed,
		Notes:           notes,
	}
	if err := s.store.Append(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append distribution record")
	}

	if s.metrics != nil {
		s.metrics.DistributionsTotal.Inc()
	}
	s.emit(ctx, audit.Event{
		ActorID:  volunteerID.String(),
		Action:   audit.ActionDistributionRecorded,
		Entity:   "participant",
		EntityID: participantID.String(),
		Detail:   fmt.Sprintf("%.1fkg", quantity),
	})

	s.notify(ctx, p.AccountID,
		fmt.Sprintf("Your pickup of %.1f kg has been recorded. Thank you.", quantity),
		notification.SeveritySuccess)
	s.notify(ctx, volunteerID,
		fmt.Sprintf("Distribution of %.1f kg to participant %s recorded.", quantity, p.Number),
		notification.SeverityInfo)
	if err := s.notifier.NotifyAdmins(ctx,
		fmt.Sprintf("Distribution recorded: %.1f kg to participant %s.", quantity, p.Number),
		notification.SeverityInfo); err != nil {
		s.logger.WarnContext(ctx, "admin distribution notification failed", "error", err)
	}

	return r, nil
}

// History returns the participant's distribution records, oldest first.
func (s *Service) History(ctx context.Context, participantID id.ParticipantID) ([]*ledger.DistributionRecord, error) {
	out, err := s.store.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list distribution records")
	}
	return out, nil
}

func (s *Service) notify(ctx context.Context, accountID id.AccountID, message string, severity notification.Severity) {
	if _, err := s.notifier.Notify(ctx, accountID, message, severity); err != nil {
		s.logger.WarnContext(ctx, "distribution notification failed",
			"account_id", accountID.String(),
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
