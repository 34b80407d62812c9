package credentials

import (
	"database/sql"
	"time"
)

// ProviderLocal is the provider name for password credentials.
const ProviderLocal = "local"

// Credential is one auth provider's secret material for a user
type Credential struct {
	ID           int64
	UserID       int64
	Provider     string
	PasswordHash sql.NullString
	TempToken    sql.NullString
	TokenExpiry  sql.NullTime
	UpdatedAt    time.Time
}

// ResetToken is an issued one-time password reset token
type ResetToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
