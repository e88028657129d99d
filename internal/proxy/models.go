package proxy

import (
	"time"

	id "foodlink/pkg/domain"
)

// Status is the approval state of a delegate request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Delegate is a person authorized to pick up on a participant's behalf.
// Authorization is not self-service: a delegate acts only once staff approve
// the request.
type Delegate struct {
	ID            id.DelegateID
	ParticipantID id.ParticipantID
	Name          string
	Phone         string
	Email         string
	Status        Status
	// ApprovedBy records the staff account that decided the request.
	ApprovedBy id.AccountID
	CreatedAt  time.Time
}

// Active reports whether the delegate may currently act for the participant.
func (d *Delegate) Active() bool {
	return d.Status == StatusApproved
}
