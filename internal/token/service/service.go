package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"foodlink/internal/audit"
	"foodlink/internal/platform/metrics"
	"foodlink/internal/proxy"
	"foodlink/internal/registry"
	"foodlink/internal/token"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/requestcontext"
)

const defaultTTL = 5 * time.Minute

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// Store persists identity tokens. Consume must be atomic: under concurrent
// validation exactly one caller receives the token.
type Store interface {
	Create(ctx context.Context, t *token.IdentityToken) error
	FindBySession(ctx context.Context, sessionID id.SessionID) (*token.IdentityToken, error)
	Consume(ctx context.Context, sessionID id.SessionID, now time.Time) (*token.IdentityToken, error)
	Cancel(ctx context.Context, sessionID id.SessionID) error
}

// ParticipantDirectory is the slice of the registry this service needs.
type ParticipantDirectory interface {
	FindByID(ctx context.Context, participantID id.ParticipantID) (*registry.Participant, error)
}

// DelegateDirectory resolves proxy delegates when tokens are issued for them.
type DelegateDirectory interface {
	FindByID(ctx context.Context, delegateID id.DelegateID) (*proxy.Delegate, error)
}

// AuditPublisher records activity events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ValidationResult is what a successful check-in scan resolves to.
type ValidationResult struct {
	Token       *token.IdentityToken
	Participant *registry.Participant
}

// Service issues and validates single-use check-in tokens.
type Service struct {
	store        Store
	participants ParticipantDirectory
	delegates    DelegateDirectory
	signer       *token.Signer
	logger       *slog.Logger
	metrics      *metrics.Metrics
	auditor      AuditPublisher
	ttl          time.Duration
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

// WithTTL overrides the token validity window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// New constructs the token service.
func New(store Store, participants ParticipantDirectory, delegates DelegateDirectory, signer *token.Signer, opts ...Option) *Service {
	s := &Service{
		store:        store,
		participants: participants,
		delegates:    delegates,
		signer:       signer,
		logger:       slog.Default(),
		ttl:          defaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints a pending token for a verified participant. When proxyID is
// set the delegate must be approved and belong to that participant. The
// returned string is the signed scan payload.
func (s *Service) Issue(ctx context.Context, participantID id.ParticipantID, proxyID *id.DelegateID, actorID id.AccountID) (*token.IdentityToken, string, error) {
	p, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}
	if p.Status != registry.StatusVerified {
		return nil, "", dErrors.New(dErrors.CodeValidation, "participant is not verified")
	}

	if proxyID != nil {
		d, err := s.delegates.FindByID(ctx, *proxyID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, "", dErrors.New(dErrors.CodeNotFound, "delegate not found")
			}
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load delegate")
		}
		if d.ParticipantID != participantID || !d.Active() {
			return nil, "", dErrors.New(dErrors.CodeValidation, "delegate is not approved for this participant")
		}
	}

	now := requestcontext.Now(ctx)
	t := &token.IdentityToken{
		SessionID:     id.NewSessionID(),
		ParticipantID: participantID,
		ProxyID:       proxyID,
		Status:        token.StatusPending,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store identity token")
	}

	signed, err := s.signer.Sign(t.SessionID, t.IssuedAt, t.ExpiresAt)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign identity token")
	}

	if s.metrics != nil {
		s.metrics.TokensIssued.Inc()
	}
	s.emit(ctx, audit.Event{
		ActorID:  actorID.String(),
		Action:   audit.ActionTokenIssued,
		Entity:   "identity_token",
		EntityID: t.SessionID.String(),
	})
	return t, signed, nil
}

// Validate consumes a pending token by session id. The first validation wins;
// anything after that reports how the token already ended.
func (s *Service) Validate(ctx context.Context, sessionID id.SessionID) (*ValidationResult, error) {
	now := requestcontext.Now(ctx)
	t, err := s.store.Consume(ctx, sessionID, now)
	if err != nil {
		return nil, s.validationFailure(ctx, sessionID, err)
	}

	p, err := s.participants.FindByID(ctx, t.ParticipantID)
	if err != nil {
		// The token was consumed; a missing participant record here is a
		// data integrity problem, not a scan problem.
		s.observeValidation("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant for consumed token")
	}

	s.observeValidation("success")
	s.emit(ctx, audit.Event{
		Action:   audit.ActionTokenValidated,
		Entity:   "identity_token",
		EntityID: sessionID.String(),
		Detail:   p.Number,
	})
	return &ValidationResult{Token: t, Participant: p}, nil
}

// ValidateSigned verifies a signed scan payload and validates the session it
// names. A bad signature never reaches the store.
func (s *Service) ValidateSigned(ctx context.Context, signed string) (*ValidationResult, error) {
	sessionID, err := s.signer.Parse(signed)
	if err != nil {
		s.observeValidation("invalid_signature")
		return nil, dErrors.New(dErrors.CodeValidation, "scan payload is not a valid signed token")
	}
	return s.Validate(ctx, sessionID)
}

// Cancel voids a pending token, e.g. when a participant abandons check-in.
func (s *Service) Cancel(ctx context.Context, sessionID id.SessionID, actorID id.AccountID) error {
	if err := s.store.Cancel(ctx, sessionID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "token not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeConflict, "token is no longer pending")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel token")
		}
	}
	s.emit(ctx, audit.Event{
		ActorID:  actorID.String(),
		Action:   audit.ActionTokenCancelled,
		Entity:   "identity_token",
		EntityID: sessionID.String(),
	})
	return nil
}

func (s *Service) validationFailure(ctx context.Context, sessionID id.SessionID, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		s.observeValidation("not_found")
		return dErrors.New(dErrors.CodeNotFound, "token not found")
	case errors.Is(err, sentinel.ErrExpired):
		s.observeValidation("expired")
		return dErrors.New(dErrors.CodeExpiredToken, "token has expired")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		s.observeValidation("already_used")
		return dErrors.New(dErrors.CodeAlreadyConsumed, "token has already been used")
	case errors.Is(err, sentinel.ErrInvalidState):
		s.observeValidation("cancelled")
		return dErrors.New(dErrors.CodeConflict, "token was cancelled")
	default:
		s.observeValidation("error")
		s.logger.ErrorContext(ctx, "token validation failed",
			"session_id", sessionID.String(),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate token")
	}
}

func (s *Service) observeValidation(outcome string) {
	if s.metrics != nil {
		s.metrics.TokensValidated.WithLabelValues(outcome).Inc()
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
