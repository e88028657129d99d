// Package domain defines typed identifiers used across the core.
//
// IDs are UUIDs wrapped in distinct types so a participant id can never be
// passed where an account id is expected. Construct them via the Parse
// functions at trust boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "foodlink/pkg/domain-errors"
)

type (
	// AccountID identifies a login account (admin, volunteer, or participant).
	AccountID uuid.UUID
	// ParticipantID identifies a registered household.
	ParticipantID uuid.UUID
	// DelegateID identifies a proxy delegate.
	DelegateID uuid.UUID
	// SessionID identifies one identity-token session.
	SessionID uuid.UUID
	// NotificationID identifies a notification row.
	NotificationID uuid.UUID
)

func (id AccountID) String() string      { return uuid.UUID(id).String() }
func (id ParticipantID) String() string  { return uuid.UUID(id).String() }
func (id DelegateID) String() string     { return uuid.UUID(id).String() }
func (id SessionID) String() string      { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }

func (id AccountID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ParticipantID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id DelegateID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewAccountID returns a fresh random account id.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewParticipantID returns a fresh random participant id.
func NewParticipantID() ParticipantID { return ParticipantID(uuid.New()) }

// NewDelegateID returns a fresh random delegate id.
func NewDelegateID() DelegateID { return DelegateID(uuid.New()) }

// NewSessionID returns a fresh random session id.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewNotificationID returns a fresh random notification id.
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be nil")
	}
	return u, nil
}

// ParseAccountID validates and returns an AccountID.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account")
	return AccountID(u), err
}

// ParseParticipantID validates and returns a ParticipantID.
func ParseParticipantID(s string) (ParticipantID, error) {
	u, err := parseUUID(s, "participant")
	return ParticipantID(u), err
}

// ParseDelegateID validates and returns a DelegateID.
func ParseDelegateID(s string) (DelegateID, error) {
	u, err := parseUUID(s, "delegate")
	return DelegateID(u), err
}

// ParseSessionID validates and returns a SessionID.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session")
	return SessionID(u), err
}

// ParseNotificationID validates and returns a NotificationID.
func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification")
	return NotificationID(u), err
}
