package ledger

import (
	"time"

	"github.com/google/uuid"

	id "foodlink/pkg/domain"
)

// DistributionRecord is one completed pickup. The ledger is append-only;
// corrections are new records with explanatory notes, never edits.
type DistributionRecord struct {
	ID            uuid.UUID
	ParticipantID id.ParticipantID
	// VolunteerID is the staff account that handed out the goods.
	VolunteerID id.AccountID
	Timestamp   time.Time
	// Quantity is the weight handed out, in kilograms.
	Quantity        float64
	ItemDescription string
	// Signed records whether the recipient signed for the pickup.
	Signed bool
	Notes  string
}
