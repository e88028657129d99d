package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"foodlink/internal/audit"
	"foodlink/internal/notification"
	"foodlink/internal/proxy"
	"foodlink/internal/registry"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/platform/sentinel"
	"foodlink/pkg/requestcontext"
)

// Store persists proxy delegates. Decide and Delete enforce state rules
// atomically so concurrent staff decisions cannot double-apply.
type Store interface {
	Create(ctx context.Context, d *proxy.Delegate) error
	FindByID(ctx context.Context, delegateID id.DelegateID) (*proxy.Delegate, error)
	ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*proxy.Delegate, error)
	Decide(ctx context.Context, delegateID id.DelegateID, status proxy.Status, decidedBy id.AccountID) (*proxy.Delegate, error)
	Delete(ctx context.Context, delegateID id.DelegateID, participantID id.ParticipantID) error
}

// ParticipantDirectory resolves delegate owners for scoping and notification.
type ParticipantDirectory interface {
	FindByID(ctx context.Context, participantID id.ParticipantID) (*registry.Participant, error)
}

// Notifier is the slice of the dispatcher this service needs.
type Notifier interface {
	Notify(ctx context.Context, accountID id.AccountID, message string, severity notification.Severity) (*notification.Notification, error)
}

// AuditPublisher records activity events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages proxy delegate requests and decisions.
type Service struct {
	store        Store
	participants ParticipantDirectory
	notifier     Notifier
	logger       *slog.Logger
	auditor      AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

// New constructs the proxy delegate service.
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

// Request files a pending delegate request for a participant. The delegate
// cannot act until staff approve it.
func (s *Service) Request(ctx context.Context, participantID id.ParticipantID, name, phone, email string) (*proxy.Delegate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "delegate name cannot be empty")
	}

	p, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}

	d := &proxy.Delegate{
		ID:            id.NewDelegateID(),
		ParticipantID: participantID,
		Name:          name,
		Phone:         strings.TrimSpace(phone),
		Email:         strings.TrimSpace(email),
		Status:        proxy.StatusPending,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store delegate request")
	}

	s.emit(ctx, audit.Event{
		ActorID:  p.AccountID.String(),
		Action:   audit.ActionProxyRequested,
		Entity:   "proxy_delegate",
		EntityID: d.ID.String(),
		Detail:   name,
	})
	s.notify(ctx, p.AccountID,
		fmt.Sprintf("Your request to authorize %s is awaiting review.", name),
		notification.SeverityInfo)
	return d, nil
}

// Decide approves or rejects a pending request. A request already decided
// reports a conflict so two staff members cannot both claim the decision.
func (s *Service) Decide(ctx context.Context, delegateID id.DelegateID, approve bool, actorID id.AccountID) (*proxy.Delegate, error) {
	status := proxy.StatusRejected
	if approve {
		status = proxy.StatusApproved
	}

	d, err := s.store.Decide(ctx, delegateID, status, actorID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "delegate request not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeConflict, "delegate request is already decided")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decide delegate request")
		}
	}

	s.emit(ctx, audit.Event{
		ActorID:  actorID.String(),
		Action:   audit.ActionProxyDecided,
		Entity:   "proxy_delegate",
		EntityID: delegateID.String(),
		Detail:   string(status),
	})

	if p, err := s.participants.FindByID(ctx, d.ParticipantID); err == nil {
		if approve {
			s.notify(ctx, p.AccountID,
				fmt.Sprintf("%s has been approved to pick up on your behalf.", d.Name),
				notification.SeveritySuccess)
		} else {
			s.notify(ctx, p.AccountID,
				fmt.Sprintf("Your request to authorize %s was not approved.", d.Name),
				notification.SeverityWarning)
		}
	} else {
		s.logger.WarnContext(ctx, "delegate owner lookup failed",
			"delegate_id", delegateID.String(),
			"error", err,
		)
	}
	return d, nil
}

// Delete removes a delegate the participant owns. Approved delegates cannot
// be removed by the participant; staff must revoke the approval first.
func (s *Service) Delete(ctx context.Context, delegateID id.DelegateID, participantID id.ParticipantID) error {
	if err := s.store.Delete(ctx, delegateID, participantID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "delegate not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeConflict, "cannot remove an approved delegate")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete delegate")
		}
	}
	s.emit(ctx, audit.Event{
		Action:   audit.ActionProxyDeleted,
		Entity:   "proxy_delegate",
		EntityID: delegateID.String(),
	})
	return nil
}

// List returns a participant's delegates, oldest first.
func (s *Service) List(ctx context.Context, participantID id.ParticipantID) ([]*proxy.Delegate, error) {
	out, err := s.store.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list delegates")
	}
	return out, nil
}

func (s *Service) notify(ctx context.Context, accountID id.AccountID, message string, severity notification.Severity) {
	if _, err := s.notifier.Notify(ctx, accountID, message, severity); err != nil {
		s.logger.WarnContext(ctx, "delegate notification failed",
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
