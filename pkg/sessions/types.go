package sessions

import "time"

// DefaultSessionTTL is the fixed lifetime of a login session.
const DefaultSessionTTL = 7 * 24 * time.Hour

// LoginSession is an active authenticated session
type LoginSession struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	SessionToken string    `json:"session_token"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its validity window.
func (s *LoginSession) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// CreateSessionRequest holds session creation parameters; zero-valued token
// and expiry fields are filled with fresh random tokens and the default TTL
type CreateSessionRequest struct {
	UserID       int64
	SessionToken string
	RefreshToken string
	ExpiresAt    time.Time
}

// RotatePayload overrides rotation defaults; zero-valued fields fall back to
// fresh random tokens and the session's existing expiry
type RotatePayload struct {
	SessionToken string
	RefreshToken string
	ExpiresAt    time.Time
}
