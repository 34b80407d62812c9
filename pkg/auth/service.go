package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/gatehouse-io/gatehouse/pkg/credentials"
	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/sessions"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// Service orchestrates authentication flows
type Service struct {
	db         *sql.DB
	users      *identity.Store
	creds      *credentials.Service
	sessions   *sessions.Store
	audit      *AuditRecorder
	logger     *observability.Logger
	metrics    *observability.Metrics
	sessionTTL time.Duration
}

// NewService creates an auth service. metrics may be nil in tests.
func NewService(
	db *sql.DB,
	users *identity.Store,
	creds *credentials.Service,
	sessionStore *sessions.Store,
	audit *AuditRecorder,
	logger *observability.Logger,
	metrics *observability.Metrics,
	sessionTTL time.Duration,
) *Service {
	if sessionTTL <= 0 {
		sessionTTL = sessions.DefaultSessionTTL
	}
	return &Service{
		db:         db,
		users:      users,
		creds:      creds,
		sessions:   sessionStore,
		audit:      audit,
		logger:     logger,
		metrics:    metrics,
		sessionTTL: sessionTTL,
	}
}

// Login verifies the account and creates a session with the fixed session
// TTL. The credential check and session creation run in one transaction so a
// concurrent status or password change serializes against this attempt.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*sessions.LoginSession, error) {
	if req.UserID == 0 && req.Email == "" {
		return nil, errs.NewValidation("identifier", "user_id or email is required")
	}
	if req.Email != "" && req.UserID == 0 && req.Password == "" {
		return nil, errs.NewValidation("password", "is required")
	}

	var session *sessions.LoginSession
	err := postgres.Transact(ctx, s.db, func(tx *sql.Tx) error {
		users := s.users.WithTx(tx)

		var user *identity.User
		var err error
		if req.UserID != 0 {
			user, err = users.GetUser(ctx, req.UserID)
		} else {
			user, err = users.GetUserByEmail(ctx, req.Email)
		}
		if err != nil {
			return err
		}

		if !user.IsActive() {
			return errs.NewForbidden("user is not active")
		}

		if req.Password != "" {
			ok, err := s.creds.WithTx(tx).VerifyPassword(ctx, user.ID, req.Password)
			if err != nil {
				return err
			}
			if !ok {
				return errs.NewAuthentication("invalid credentials")
			}
		}

		session, err = s.sessions.WithTx(tx).CreateSession(ctx, sessions.CreateSessionRequest{
			UserID:    user.ID,
			ExpiresAt: time.Now().Add(s.sessionTTL),
		})
		return err
	})
	if err != nil {
		s.recordLoginFailure(ctx, req, err)
		return nil, err
	}

	s.record(ctx, &session.UserID, EventLoginSuccess, map[string]interface{}{"session_id": session.ID})
	if s.metrics != nil {
		s.metrics.RecordLogin("success")
	}
	return session, nil
}

// Logout revokes the session identified by its session token. A missing
// session is not an error: the caller is already logged out.
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return errs.NewValidation("session_token", "is required")
	}

	session, err := s.sessions.GetSessionByToken(ctx, sessionToken)
	if err != nil {
		return err
	}
	if err := s.sessions.RevokeSessionByToken(ctx, sessionToken); err != nil {
		return err
	}

	if session != nil {
		s.record(ctx, &session.UserID, EventLogout, map[string]interface{}{"session_id": session.ID})
		if s.metrics != nil {
			s.metrics.RecordSessionRevoked("logout")
		}
	}
	return nil
}

// Refresh rotates the session identified by its refresh token, issuing a new
// token pair and a fresh TTL.
//
// An expired session is deleted and the refresh fails: refreshing an expired
// session is terminal, not renewable. The session is likewise revoked when
// its user no longer exists or is no longer active. The rotation itself is
// guarded against concurrent refreshes of the same session; the loser gets a
// conflict.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*sessions.LoginSession, error) {
	if refreshToken == "" {
		return nil, errs.NewValidation("refresh_token", "is required")
	}

	session, err := s.sessions.GetSessionByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		s.refreshOutcome("not_found")
		return nil, errs.NewNotFound("session")
	}

	if session.Expired() {
		if err := s.sessions.RevokeSession(ctx, session.ID); err != nil {
			return nil, err
		}
		s.record(ctx, &session.UserID, EventSessionRevoked, map[string]interface{}{
			"session_id": session.ID,
			"reason":     "expired",
		})
		if s.metrics != nil {
			s.metrics.RecordSessionRevoked("expired")
		}
		s.refreshOutcome("expired")
		return nil, errs.NewAuthentication("session has expired")
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil || !user.IsActive() {
		if revokeErr := s.sessions.RevokeSession(ctx, session.ID); revokeErr != nil {
			return nil, revokeErr
		}
		s.record(ctx, &session.UserID, EventSessionRevoked, map[string]interface{}{
			"session_id": session.ID,
			"reason":     "user_inactive",
		})
		if s.metrics != nil {
			s.metrics.RecordSessionRevoked("user_inactive")
		}
		s.refreshOutcome("user_inactive")
		if err != nil && !errs.IsNotFound(err) {
			return nil, err
		}
		return nil, errs.NewForbidden("user is not active")
	}

	err = s.sessions.RotateTokens(ctx, session, sessions.RotatePayload{
		ExpiresAt: time.Now().Add(s.sessionTTL),
	})
	if err != nil {
		if errs.IsConflict(err) {
			s.refreshOutcome("conflict")
		} else {
			s.refreshOutcome("error")
		}
		return nil, err
	}

	s.record(ctx, &session.UserID, EventTokenRefresh, map[string]interface{}{"session_id": session.ID})
	s.refreshOutcome("success")
	return session, nil
}

// Authenticate resolves a session token to its principal, for use by request
// middleware. Expired sessions fail authentication; expiry cleanup is left to
// the refresh path and the background sweeper.
func (s *Service) Authenticate(ctx context.Context, sessionToken string) (*Principal, error) {
	if sessionToken == "" {
		return nil, errs.NewValidation("session_token", "is required")
	}

	session, err := s.sessions.GetSessionByToken(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Expired() {
		return nil, errs.NewAuthentication("invalid or expired session")
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.NewAuthentication("invalid or expired session")
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, errs.NewForbidden("user is not active")
	}

	return &Principal{User: user, Session: session}, nil
}

// CreateSessionForUser creates a session for an identity already asserted by
// an external provider (SSO callback). The user must still be active.
func (s *Service) CreateSessionForUser(ctx context.Context, userID int64) (*sessions.LoginSession, error) {
	return s.Login(ctx, LoginRequest{UserID: userID})
}

// RevokeAllSessions deletes every session belonging to a user, for use on
// deactivation or forced logout.
func (s *Service) RevokeAllSessions(ctx context.Context, userID int64) error {
	if err := s.sessions.RevokeSessionsByUserID(ctx, userID); err != nil {
		return err
	}
	s.record(ctx, &userID, EventSessionRevoked, map[string]interface{}{"reason": "revoke_all"})
	if s.metrics != nil {
		s.metrics.RecordSessionRevoked("revoke_all")
	}
	return nil
}

func (s *Service) recordLoginFailure(ctx context.Context, req LoginRequest, cause error) {
	metadata := map[string]interface{}{"reason": cause.Error()}
	var userID *int64
	if req.UserID != 0 {
		userID = &req.UserID
	}
	s.record(ctx, userID, EventLoginFailure, metadata)
	if s.metrics != nil {
		s.metrics.RecordLogin("failure")
	}
}

// record writes an audit event, logging instead of failing on error.
func (s *Service) record(ctx context.Context, userID *int64, event string, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, userID, event, metadata); err != nil {
		s.logger.WithError(err).WithField("event", event).Warn("failed to record auth event")
	}
}

func (s *Service) refreshOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordTokenRefresh(outcome)
	}
}
