package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// Store persists login sessions
type Store struct {
	db postgres.DBTX
}

// NewStore creates a session store
func NewStore(db postgres.DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *Store) WithTx(tx postgres.DBTX) *Store {
	return &Store{db: tx}
}

// CreateSession persists a new session, generating tokens and the default
// expiry for any zero-valued request fields.
func (s *Store) CreateSession(ctx context.Context, req CreateSessionRequest) (*LoginSession, error) {
	if req.UserID == 0 {
		return nil, errs.NewValidation("user_id", "is required")
	}

	var err error
	if req.SessionToken == "" {
		if req.SessionToken, err = GenerateSessionToken(); err != nil {
			return nil, err
		}
	}
	if req.RefreshToken == "" {
		if req.RefreshToken, err = GenerateRefreshToken(); err != nil {
			return nil, err
		}
	}
	if req.ExpiresAt.IsZero() {
		req.ExpiresAt = time.Now().Add(DefaultSessionTTL)
	}

	session := &LoginSession{
		UserID:       req.UserID,
		SessionToken: req.SessionToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    req.ExpiresAt,
	}

	query := `
		INSERT INTO login_sessions (user_id, session_token, refresh_token, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		session.UserID, session.SessionToken, session.RefreshToken, session.ExpiresAt).
		Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// GetSessionByID retrieves a session by ID, returning nil when absent
func (s *Store) GetSessionByID(ctx context.Context, id int64) (*LoginSession, error) {
	if id == 0 {
		return nil, errs.NewValidation("id", "is required")
	}
	return s.getSession(ctx, "id = $1", id)
}

// GetSessionByToken retrieves a session by its session token, returning nil
// when absent
func (s *Store) GetSessionByToken(ctx context.Context, token string) (*LoginSession, error) {
	if token == "" {
		return nil, errs.NewValidation("session_token", "is required")
	}
	return s.getSession(ctx, "session_token = $1", token)
}

// GetSessionByRefreshToken retrieves a session by its refresh token,
// returning nil when absent
func (s *Store) GetSessionByRefreshToken(ctx context.Context, token string) (*LoginSession, error) {
	if token == "" {
		return nil, errs.NewValidation("refresh_token", "is required")
	}
	return s.getSession(ctx, "refresh_token = $1", token)
}

func (s *Store) getSession(ctx context.Context, where string, arg interface{}) (*LoginSession, error) {
	query := `
		SELECT id, user_id, session_token, refresh_token, created_at, updated_at, expires_at
		FROM login_sessions
		WHERE ` + where
	session := &LoginSession{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&session.ID, &session.UserID, &session.SessionToken, &session.RefreshToken,
		&session.CreatedAt, &session.UpdatedAt, &session.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// RotateTokens atomically replaces a session's tokens and expiry. Zero-valued
// payload fields default to fresh random tokens and the existing expiry.
//
// The update is guarded on the session's current refresh token: if another
// rotation committed first, zero rows match and the caller gets a
// ConflictError instead of a second valid token pair.
func (s *Store) RotateTokens(ctx context.Context, session *LoginSession, payload RotatePayload) error {
	if session == nil || session.ID == 0 {
		return errs.NewValidation("session", "is required")
	}

	var err error
	if payload.SessionToken == "" {
		if payload.SessionToken, err = GenerateSessionToken(); err != nil {
			return err
		}
	}
	if payload.RefreshToken == "" {
		if payload.RefreshToken, err = GenerateRefreshToken(); err != nil {
			return err
		}
	}
	if payload.ExpiresAt.IsZero() {
		payload.ExpiresAt = session.ExpiresAt
	}

	query := `
		UPDATE login_sessions
		SET session_token = $1, refresh_token = $2, expires_at = $3, updated_at = NOW()
		WHERE id = $4 AND refresh_token = $5
	`
	result, err := s.db.ExecContext(ctx, query,
		payload.SessionToken, payload.RefreshToken, payload.ExpiresAt,
		session.ID, session.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to rotate session tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errs.NewConflict("session tokens were rotated concurrently")
	}

	session.SessionToken = payload.SessionToken
	session.RefreshToken = payload.RefreshToken
	session.ExpiresAt = payload.ExpiresAt
	return nil
}

// RevokeSession deletes a session by ID; deleting zero rows is not an error
func (s *Store) RevokeSession(ctx context.Context, id int64) error {
	if id == 0 {
		return errs.NewValidation("id", "is required")
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM login_sessions WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeSessionByToken deletes a session by its session token
func (s *Store) RevokeSessionByToken(ctx context.Context, token string) error {
	if token == "" {
		return errs.NewValidation("session_token", "is required")
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM login_sessions WHERE session_token = $1", token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeSessionsByUserID deletes all of a user's sessions
func (s *Store) RevokeSessionsByUserID(ctx context.Context, userID int64) error {
	if userID == 0 {
		return errs.NewValidation("user_id", "is required")
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM login_sessions WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry. Expiry is otherwise only
// evaluated lazily on refresh, so this keeps abandoned sessions from
// accumulating.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM login_sessions WHERE expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
