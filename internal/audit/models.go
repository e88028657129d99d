// Package audit captures the activity trail: one event per successful core
// transition. Events are best-effort and never block or roll back the
// transition that produced them.
package audit

import (
	"time"
)

// Action names a core transition.
type Action string

const (
	ActionParticipantVerified  Action = "participant_verified"
	ActionParticipantRejected  Action = "participant_rejected"
	ActionParticipantFlagged   Action = "participant_flagged"
	ActionTokenIssued          Action = "token_issued"
	ActionTokenValidated       Action = "token_validated"
	ActionTokenCancelled       Action = "token_cancelled"
	ActionProxyRequested       Action = "proxy_requested"
	ActionProxyDecided         Action = "proxy_decided"
	ActionProxyDeleted         Action = "proxy_deleted"
	ActionNoShowLogged         Action = "no_show_logged"
	ActionDistributionRecorded Action = "distribution_recorded"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
	Action    Action    `json:"action"`
	Entity    string    `json:"entity,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
