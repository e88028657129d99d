package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"foodlink/internal/audit"
	"foodlink/internal/notification"
	"foodlink/internal/platform/metrics"
	"foodlink/internal/registry"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/requestcontext"
)

// numberWidth fixes the zero-padded sequence width of participant numbers,
// e.g. CL0001.
const numberWidth = 4

// defaultMaxAllocationAttempts bounds collision retries before approval
// reports allocation exhaustion.
const defaultMaxAllocationAttempts = 10

// Store persists participants and decisions. Approve must enforce number
// uniqueness atomically and surface collisions as sentinel.ErrConflict.
type Store interface {
	FindByID(ctx context.Context, participantID id.ParticipantID) (*registry.Participant, error)
	HighestSequence(ctx context.Context, prefix string) (int, error)
	Approve(ctx context.Context, decision *registry.VerificationDecision) error
	Reject(ctx context.Context, decision *registry.VerificationDecision) error
	AppendNote(ctx context.Context, participantID id.ParticipantID, note string) error
	ListPending(ctx context.Context) ([]*registry.Participant, error)
}

// Notifier is the slice of the dispatcher this service needs.
type Notifier interface {
	Notify(ctx context.Context, accountID id.AccountID, message string, severity notification.Severity) (*notification.Notification, error)
}

// AuditPublisher records activity events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns participant verification status and number allocation.
type Service struct {
	store       Store
	notifier    Notifier
	logger      *slog.Logger
	metrics     *metrics.Metrics
	auditor     AuditPublisher
	maxAttempts int
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

// WithMaxAllocationAttempts overrides the collision retry ceiling.
func WithMaxAllocationAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// New constructs the verification registry service.
func New(store Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:       store,
		notifier:    notifier,
		logger:      slog.Default(),
		maxAttempts: defaultMaxAllocationAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Approve verifies a participant and allocates a number formatted as
// {prefix}{sequence}. A participant re-approved after rejection keeps the
// number minted by the first approval. Collisions under concurrent approval
// are retried with the next sequence up to the configured ceiling.
func (s *Service) Approve(ctx context.Context, participantID id.ParticipantID, locationPrefix string, actorID id.AccountID) (*registry.VerificationDecision, error) {
	if locationPrefix == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "location prefix cannot be empty")
	}

	p, err := s.store.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}
	if p.Status == registry.StatusVerified {
		return nil, dErrors.New(dErrors.CodeAlreadyVerified, "participant is already verified")
	}

	decision := &registry.VerificationDecision{
		ID:            uuid.New(),
		ParticipantID: participantID,
		DecidedBy:     actorID,
		Approved:      true,
		DecidedAt:     requestcontext.Now(ctx),
	}

	if p.Number != "" {
		// Number already minted by an earlier approval; only the status moves.
		decision.Number = p.Number
		if err := s.store.Approve(ctx, decision); err != nil {
			return nil, s.translateApprove(err)
		}
	} else {
		if err := s.allocate(ctx, decision, locationPrefix); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.ParticipantsVerified.Inc()
	}
	s.emit(ctx, audit.Event{
		ActorID:  actorID.String(),
		Action:   audit.ActionParticipantVerified,
		Entity:   "participant",
		EntityID: participantID.String(),
		Detail:   decision.Number,
	})
	s.notify(ctx, p.AccountID,
		fmt.Sprintf("Your registration has been approved. Your participant number is %s.", decision.Number),
		notification.SeveritySuccess)

	return decision, nil
}

// allocate scans for the highest assigned sequence under the prefix and
// claims the next one, retrying on uniqueness conflicts caused by concurrent
// approvals.
func (s *Service) allocate(ctx context.Context, decision *registry.VerificationDecision, prefix string) error {
	seq, err := s.store.HighestSequence(ctx, prefix)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan assigned numbers")
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		seq++
		decision.Number = fmt.Sprintf("%s%0*d", prefix, numberWidth, seq)

		err := s.store.Approve(ctx, decision)
		if err == nil {
			return nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.AllocationRetries.Inc()
			}
			continue
		}
		return s.translateApprove(err)
	}

	s.logger.ErrorContext(ctx, "participant number space exhausted",
		"prefix", prefix,
		"attempts", s.maxAttempts,
	)
	return dErrors.Newf(dErrors.CodeAllocationExhausted,
		"could not allocate a number under prefix %q after %d attempts", prefix, s.maxAttempts)
}

// Reject records a rejection. A previously assigned number is never erased.
func (s *Service) Reject(ctx context.Context, participantID id.ParticipantID, reason string, actorID id.AccountID) (*registry.VerificationDecision, error) {
	p, err := s.store.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}

	decision := &registry.VerificationDecision{
		ID:            uuid.New(),
		ParticipantID: participantID,
		DecidedBy:     actorID,
		Approved:      false,
		Reason:        reason,
		DecidedAt:     requestcontext.Now(ctx),
	}
	if err := s.store.Reject(ctx, decision); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reject participant")
	}

	if s.metrics != nil {
		s.metrics.ParticipantsRejected.Inc()
	}
	s.emit(ctx, audit.Event{
		ActorID:  actorID.String(),
		Action:   audit.ActionParticipantRejected,
		Entity:   "participant",
		EntityID: participantID.String(),
		Detail:   reason,
	})
	message := "Your registration could not be approved."
	if reason != "" {
		message += " Reason: " + reason
	}
	s.notify(ctx, p.AccountID, message, notification.SeverityWarning)

	return decision, nil
}

// FlagForReview appends a review marker to case notes without touching
// status. Used by registration-time fraud heuristics.
func (s *Service) FlagForReview(ctx context.Context, participantID id.ParticipantID, reason string) error {
	if err := s.store.AppendNote(ctx, participantID, "review: "+reason); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to flag participant")
	}
	s.emit(ctx, audit.Event{
		Action:   audit.ActionParticipantFlagged,
		Entity:   "participant",
		EntityID: participantID.String(),
		Detail:   reason,
	})
	return nil
}

// ListPending returns participants awaiting review.
func (s *Service) ListPending(ctx context.Context) ([]*registry.Participant, error) {
	out, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending participants")
	}
	return out, nil
}

func (s *Service) translateApprove(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "participant not found")
	}
	if errors.Is(err, sentinel.ErrInvalidState) {
		// A concurrent approval won and minted the number first.
		return dErrors.New(dErrors.CodeAlreadyVerified, "participant is already verified")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to approve participant")
}

// notify is best-effort: a delivery failure is logged, never unwound into
// the committed transition.
func (s *Service) notify(ctx context.Context, accountID id.AccountID, message string, severity notification.Severity) {
	if _, err := s.notifier.Notify(ctx, accountID, message, severity); err != nil {
		s.logger.WarnContext(ctx, "participant notification failed",
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
