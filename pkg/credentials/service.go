package credentials

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// DefaultResetTokenTTL is how long an issued reset token stays valid.
const DefaultResetTokenTTL = 7 * 24 * time.Hour

// InviteTokenResolver resolves an invite token to the invited email. Reset
// tokens are looked up against credential temp tokens first and invite tokens
// second; the two tables share no uniqueness constraint, so the credential
// match deliberately wins.
type InviteTokenResolver interface {
	ResolveInviteEmail(ctx context.Context, token string) (email string, expiresAt time.Time, err error)
}

// Service implements local password authentication
type Service struct {
	store    *Store
	users    *identity.Store
	invites  InviteTokenResolver
	resetTTL time.Duration
	hashCost int
}

// NewService creates a local auth service. invites may be nil when invite
// flows are not wired (reset tokens then only resolve against credentials).
func NewService(store *Store, users *identity.Store, invites InviteTokenResolver, resetTTL time.Duration) *Service {
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}
	return &Service{
		store:    store,
		users:    users,
		invites:  invites,
		resetTTL: resetTTL,
		hashCost: bcrypt.DefaultCost,
	}
}

// WithTx returns a service whose stores are bound to the given transaction
func (s *Service) WithTx(tx postgres.DBTX) *Service {
	return &Service{
		store:    s.store.WithTx(tx),
		users:    s.users.WithTx(tx),
		invites:  s.invites,
		resetTTL: s.resetTTL,
		hashCost: s.hashCost,
	}
}

// SetPassword hashes and stores a password for the user, clearing any
// outstanding temp token. Re-setting overwrites.
func (s *Service) SetPassword(ctx context.Context, userID int64, password string) error {
	if userID == 0 {
		return errs.NewValidation("user_id", "is required")
	}
	if password == "" {
		return errs.NewValidation("password", "is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.store.UpsertPassword(ctx, userID, string(hash))
}

// VerifyPassword checks a password against the stored hash. A missing
// credential row, missing hash, or mismatch all return false without error.
func (s *Service) VerifyPassword(ctx context.Context, userID int64, password string) (bool, error) {
	cred, err := s.store.GetByUserID(ctx, userID)
	if errs.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !cred.PasswordHash.Valid || cred.PasswordHash.String == "" {
		return false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash.String), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

// ChangePassword verifies the current password and sets the new one
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, newPassword string) error {
	ok, err := s.VerifyPassword(ctx, userID, current)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NewAuthentication("current password is incorrect")
	}
	return s.SetPassword(ctx, userID, newPassword)
}

// CreateResetToken issues a fresh reset token with a fixed-duration expiry
// and stores it on the user's local credential row.
func (s *Service) CreateResetToken(ctx context.Context, userID int64) (*ResetToken, error) {
	if userID == 0 {
		return nil, errs.NewValidation("user_id", "is required")
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate reset token: %w", err)
	}
	expiresAt := time.Now().Add(s.resetTTL)

	if err := s.store.UpsertTempToken(ctx, userID, token, expiresAt); err != nil {
		return nil, err
	}

	return &ResetToken{Token: token, ExpiresAt: expiresAt}, nil
}

// ResetPassword resolves a token against credential temp tokens first, then
// unaccepted invite tokens, and sets the new password for the resolved user.
// An expired token fails without mutating the password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return errs.NewValidation("token", "is required")
	}
	if newPassword == "" {
		return errs.NewValidation("password", "is required")
	}

	cred, err := s.store.GetByTempToken(ctx, token)
	if err == nil {
		if !cred.TokenExpiry.Valid || time.Now().After(cred.TokenExpiry.Time) {
			return errs.NewExpired("reset token")
		}
		return s.SetPassword(ctx, cred.UserID, newPassword)
	}
	if !errs.IsNotFound(err) {
		return err
	}

	if s.invites == nil {
		return errs.NewNotFound("reset token")
	}

	email, expiresAt, err := s.invites.ResolveInviteEmail(ctx, token)
	if errs.IsNotFound(err) {
		return errs.NewNotFound("reset token")
	}
	if err != nil {
		return err
	}
	if time.Now().After(expiresAt) {
		return errs.NewExpired("invite")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.SetPassword(ctx, user.ID, newPassword)
}

// generateToken generates a random token
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
