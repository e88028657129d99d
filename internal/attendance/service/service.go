package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"foodlink/internal/attendance"
	"foodlink/internal/audit"
	"foodlink/internal/notification"
	"foodlink/internal/platform/metrics"
	"foodlink/internal/registry"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/requestcontext"
)

const defaultThreshold = 3

// escalationAction is recorded on events at or past the threshold.
const escalationAction = "flagged for outreach"

// EventStore persists no-show events. RunInTx runs the increment and the
// event insert as one unit: the SQL implementation makes the pair atomic,
// the in-memory one runs fn directly and a failed unit can leave the
// counter advanced with no matching event.
type EventStore interface {
	CreateEvent(ctx context.Context, e *attendance.NoShowEvent) error
	ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*attendance.NoShowEvent, error)
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Participants is the slice of the registry this service needs. The
// increment serializes in the store, so concurrent logs never lose a count.
type Participants interface {
	FindByID(ctx context.Context, participantID id.ParticipantID) (*registry.Participant, error)
	IncrementNoShow(ctx context.Context, participantID id.ParticipantID) (int, error)
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

// Service tracks missed pickups and escalates repeat offenders.
type Service struct {
	events       EventStore
	participants Participants
	notifier     Notifier
	logger       *slog.Logger
	metrics      *metrics.Metrics
	auditor      AuditPublisher
	threshold    int
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

// WithThreshold overrides the escalation threshold.
func WithThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.threshold = n
		}
	}
}

// New constructs the attendance service.
func New(events EventStore, participants Participants, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		events:       events,
		participants: participants,
		notifier:     notifier,
		logger:       slog.Default(),
		threshold:    defaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogNoShow increments the participant's counter and records the event in one
// transaction. Every event at or past the threshold escalates; a participant
// who keeps missing keeps getting flagged, not just the one that crossed.
// Notifications go out only after the unit commits.
func (s *Service) LogNoShow(ctx context.Context, participantID id.ParticipantID, reason string, actorID id.AccountID) (*attendance.NoShowEvent, error) {
	p, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}

	event := &attendance.NoShowEvent{
		ID:            uuid.New(),
		ParticipantID: participantID,
		LoggedBy:      actorID,
		Reason:        reason,
		CreatedAt:     requestcontext.Now(ctx),
	}
	err = s.events.RunInTx(ctx, func(ctx context.Context) error {
		count, err := s.participants.IncrementNoShow(ctx, participantID)
		if err != nil {
			return err
		}
		event.Count = count
		if count >= s.threshold {
			event.ThresholdReached = true
			event.ActionTaken = escalationAction
		}
		return s.events.CreateEvent(ctx, event)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record no-show")
	}

	if s.metrics != nil {
		s.metrics.NoShowsLogged.Inc()
		if event.ThresholdReached {
			s.metrics.NoShowEscalations.Inc()
		}
	}
	s.emit(ctx, audit.Event{
		ActorID:  actorID.String(),
		Action:   audit.ActionNoShowLogged,
		Entity:   "participant",
		EntityID: participantID.String(),
		Detail:   fmt.Sprintf("count=%d", event.Count),
	})
	s.fanOut(ctx, p, event)
	return event, nil
}

// History returns the participant's no-show events, oldest first.
func (s *Service) History(ctx context.Context, participantID id.ParticipantID) ([]*attendance.NoShowEvent, error) {
	out, err := s.events.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list no-show events")
	}
	return out, nil
}

func (s *Service) fanOut(ctx context.Context, p *registry.Participant, event *attendance.NoShowEvent) {
	s.notify(ctx, p.AccountID,
		"A missed pickup was recorded on your account. Please contact us if this is a mistake.",
		notification.SeverityWarning)

	adminSeverity := notification.SeverityWarning
	if event.ThresholdReached {
		adminSeverity = notification.SeverityDanger
		s.notify(ctx, p.AccountID,
			fmt.Sprintf("You have missed %d pickups. Your household has been flagged for outreach.", event.Count),
			notification.SeverityDanger)
	}
	msg := fmt.Sprintf("Participant %s has %d recorded no-shows.", p.Number, event.Count)
	if p.Number == "" {
		msg = fmt.Sprintf("A participant has %d recorded no-shows.", event.Count)
	}
	if err := s.notifier.NotifyAdmins(ctx, msg, adminSeverity); err != nil {
		s.logger.WarnContext(ctx, "admin no-show notification failed", "error", err)
	}

	confirm := fmt.Sprintf("No-show recorded for participant %s (no-show #%d).", p.Number, event.Count)
	if p.Number == "" {
		confirm = fmt.Sprintf("No-show recorded (no-show #%d).", event.Count)
	}
	s.notify(ctx, event.LoggedBy, confirm, notification.SeverityInfo)

	s.logger.InfoContext(ctx, "no-show recorded",
		"participant_id", p.ID.String(),
		"count", event.Count,
		"threshold_reached", event.ThresholdReached,
	)
}

func (s *Service) notify(ctx context.Context, accountID id.AccountID, message string, severity notification.Severity) {
	if _, err := s.notifier.Notify(ctx, accountID, message, severity); err != nil {
		s.logger.WarnContext(ctx, "no-show notification failed",
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
