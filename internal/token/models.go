package token

import (
	"time"

	id "foodlink/pkg/domain"
)

// Status is the lifecycle state of an identity token.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// IdentityToken is a short-lived, single-use check-in credential. A token is
// consumed at most once: the first successful validation moves it from
// pending to completed and every later attempt fails.
type IdentityToken struct {
	SessionID     id.SessionID
	ParticipantID id.ParticipantID
	// ProxyID is set when the token was issued for an approved delegate
	// picking up on the participant's behalf.
	ProxyID   *id.DelegateID
	Status    Status
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token's window has passed at the given instant.
func (t *IdentityToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
