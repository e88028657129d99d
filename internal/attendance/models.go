package attendance

import (
	"time"

	"github.com/google/uuid"

	id "foodlink/pkg/domain"
)

// NoShowEvent records one missed pickup. The event and the participant's
// counter increment commit together; an event always reflects the count it
// produced.
type NoShowEvent struct {
	ID            uuid.UUID
	ParticipantID id.ParticipantID
	LoggedBy      id.AccountID
	Reason        string
	// Count is the participant's no-show total after this event.
	Count int
	// ThresholdReached marks events at or past the escalation threshold.
	ThresholdReached bool
	ActionTaken      string
	CreatedAt        time.Time
}
