package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// Store persists credential rows
type Store struct {
	db postgres.DBTX
}

// NewStore creates a credential store
func NewStore(db postgres.DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *Store) WithTx(tx postgres.DBTX) *Store {
	return &Store{db: tx}
}

// UpsertPassword writes a password hash for the user's local credential,
// clearing any outstanding temp token in the same statement.
func (s *Store) UpsertPassword(ctx context.Context, userID int64, passwordHash string) error {
	query := `
		INSERT INTO user_credentials (user_id, provider, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, provider)
		DO UPDATE SET password_hash = $3, temp_token = NULL, token_expiry = NULL, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, userID, ProviderLocal, passwordHash); err != nil {
		return fmt.Errorf("failed to upsert password: %w", err)
	}
	return nil
}

// UpsertTempToken writes a temp token and expiry for the user's local credential
func (s *Store) UpsertTempToken(ctx context.Context, userID int64, token string, expiry time.Time) error {
	query := `
		INSERT INTO user_credentials (user_id, provider, temp_token, token_expiry)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, provider)
		DO UPDATE SET temp_token = $3, token_expiry = $4, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, userID, ProviderLocal, token, expiry); err != nil {
		return fmt.Errorf("failed to upsert temp token: %w", err)
	}
	return nil
}

// GetByUserID retrieves the local credential row for a user
func (s *Store) GetByUserID(ctx context.Context, userID int64) (*Credential, error) {
	return s.getCredential(ctx, "user_id = $1 AND provider = $2", userID, ProviderLocal)
}

// GetByTempToken retrieves the credential row holding the given temp token
func (s *Store) GetByTempToken(ctx context.Context, token string) (*Credential, error) {
	if token == "" {
		return nil, errs.NewValidation("token", "is required")
	}
	return s.getCredential(ctx, "temp_token = $1 AND provider = $2", token, ProviderLocal)
}

func (s *Store) getCredential(ctx context.Context, where string, args ...interface{}) (*Credential, error) {
	query := `
		SELECT id, user_id, provider, password_hash, temp_token, token_expiry, updated_at
		FROM user_credentials
		WHERE ` + where
	cred := &Credential{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&cred.ID, &cred.UserID, &cred.Provider,
		&cred.PasswordHash, &cred.TempToken, &cred.TokenExpiry, &cred.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("credential")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return cred, nil
}
