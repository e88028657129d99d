// Package registry owns participant verification state and the allocation of
// participant numbers. No other component mutates a participant's status or
// number.
package registry

import (
	"time"

	"github.com/google/uuid"

	id "foodlink/pkg/domain"
)

// VerificationStatus is the participant's review state.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusRejected VerificationStatus = "rejected"
)

// Participant is one registered household.
//
// Invariant: Number is non-empty if and only if the status has ever been
// verified; once assigned it is never reassigned or reused.
type Participant struct {
	ID          id.ParticipantID
	AccountID   id.AccountID
	Status      VerificationStatus
	Number      string
	NoShowCount int
	Notes       string
}

// VerificationDecision is the immutable record of one approve or reject
// action. A participant rejected and later re-approved gains a new decision
// but keeps the number minted by the first approval.
type VerificationDecision struct {
	ID            uuid.UUID
	ParticipantID id.ParticipantID
	DecidedBy     id.AccountID
	Approved      bool
	Number        string
	Reason        string
	DecidedAt     time.Time
}
