package identity

import (
	"strings"
	"time"
)

// Status represents a user account's lifecycle state
type Status string

const (
	// StatusPending is a user created through an invite or org setup who has
	// not completed activation yet.
	StatusPending Status = "PENDING"
	// StatusActive is a user allowed to log in.
	StatusActive Status = "ACTIVE"
	// StatusDisabled is a soft-deleted user.
	StatusDisabled Status = "DISABLED"
)

// Valid reports whether s is a recognized user status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusDisabled:
		return true
	}
	return false
}

// User represents a human account
type User struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	EmailVerified bool      `json:"email_verified"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FullName returns the user's display name
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// IsActive reports whether the user may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// NormalizeEmail lowercases and trims an email address for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UpdateUserRequest holds optional profile updates; nil fields are unchanged
type UpdateUserRequest struct {
	FirstName     *string `json:"first_name,omitempty"`
	LastName      *string `json:"last_name,omitempty"`
	EmailVerified *bool   `json:"email_verified,omitempty"`
}
