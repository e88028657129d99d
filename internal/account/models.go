// Package account exposes the account directory the core consumes: role
// lookups and admin enumeration. Registration and authentication live in a
// separate front-end service; this package only reads what it persists.
package account

import (
	id "foodlink/pkg/domain"
)

// Role classifies an account.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleVolunteer   Role = "volunteer"
	RoleParticipant Role = "participant"
)

// Account is one login identity.
type Account struct {
	ID       id.AccountID
	Email    string
	FullName string
	Role     Role
	Active   bool
}
