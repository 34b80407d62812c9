package auth

import (
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/sessions"
)

// LoginRequest identifies the account and optionally carries a password.
// At least one of UserID or Email is required; the email flow also requires
// a password.
type LoginRequest struct {
	UserID   int64  `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// Principal is the authenticated identity attached to a request
type Principal struct {
	User    *identity.User         `json:"user"`
	Session *sessions.LoginSession `json:"session"`
}
