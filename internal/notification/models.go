// Package notification delivers state-change messages to accounts. Every
// other component fans out through the dispatcher here; delivery is
// best-effort relative to the state change that triggered it.
package notification

import (
	"time"

	id "foodlink/pkg/domain"
)

// Severity tags a notification for presentation and triage.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityDanger:
		return true
	}
	return false
}

// Notification is one message addressed to one account. Only the recipient
// mutates it, and only by marking it read.
type Notification struct {
	ID        id.NotificationID
	AccountID id.AccountID
	Message   string
	Severity  Severity
	IsRead    bool
	CreatedAt time.Time
}
