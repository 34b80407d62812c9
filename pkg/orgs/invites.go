package orgs

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// DefaultInviteTTL is how long an invite stays acceptable.
const DefaultInviteTTL = 7 * 24 * time.Hour

// InviteStore persists invites
type InviteStore struct {
	db postgres.DBTX
}

// NewInviteStore creates an invite store
func NewInviteStore(db postgres.DBTX) *InviteStore {
	return &InviteStore{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *InviteStore) WithTx(tx postgres.DBTX) *InviteStore {
	return &InviteStore{db: tx}
}

// CreateInvite inserts a new invite, generating a token and default expiry
// when absent
func (s *InviteStore) CreateInvite(ctx context.Context, invite *Invite) error {
	invite.Email = identity.NormalizeEmail(invite.Email)
	if invite.Email == "" {
		return errs.NewValidation("email", "is required")
	}
	if invite.Token == "" {
		token, err := generateInviteToken()
		if err != nil {
			return fmt.Errorf("failed to generate invite token: %w", err)
		}
		invite.Token = token
	}
	if invite.ExpiresAt.IsZero() {
		invite.ExpiresAt = time.Now().Add(DefaultInviteTTL)
	}

	query := `
		INSERT INTO invites (email, organization_id, workspace_id, role_id, token, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		invite.Email, invite.OrganizationID, invite.WorkspaceID, invite.RoleID,
		invite.Token, invite.InvitedBy, invite.ExpiresAt).
		Scan(&invite.ID, &invite.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

// GetInviteByToken retrieves an invite by its token
func (s *InviteStore) GetInviteByToken(ctx context.Context, token string) (*Invite, error) {
	if token == "" {
		return nil, errs.NewValidation("token", "is required")
	}
	return s.getInvite(ctx, inviteSelect+" WHERE token = $1", token)
}

// GetInviteByTokenForUpdate retrieves an invite by token with a row lock, so
// two concurrent acceptances of the same invite serialize. Must run inside a
// transaction.
func (s *InviteStore) GetInviteByTokenForUpdate(ctx context.Context, token string) (*Invite, error) {
	if token == "" {
		return nil, errs.NewValidation("token", "is required")
	}
	return s.getInvite(ctx, inviteSelect+" WHERE token = $1 FOR UPDATE", token)
}

const inviteSelect = `
	SELECT id, email, organization_id, workspace_id, role_id, token, invited_by,
	       expires_at, accepted_at, created_at
	FROM invites`

func (s *InviteStore) getInvite(ctx context.Context, query string, args ...interface{}) (*Invite, error) {
	invite := &Invite{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&invite.ID, &invite.Email, &invite.OrganizationID, &invite.WorkspaceID,
		&invite.RoleID, &invite.Token, &invite.InvitedBy,
		&invite.ExpiresAt, &invite.AcceptedAt, &invite.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("invite")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return invite, nil
}

// MarkAccepted stamps accepted_at once; a second acceptance is a conflict
func (s *InviteStore) MarkAccepted(ctx context.Context, inviteID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE invites SET accepted_at = NOW()
		WHERE id = $1 AND accepted_at IS NULL
	`, inviteID)
	if err != nil {
		return fmt.Errorf("failed to mark invite accepted: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errs.NewConflict("invite has already been accepted")
	}
	return nil
}

// DeleteExpired removes unaccepted invites past their expiry
func (s *InviteStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM invites WHERE accepted_at IS NULL AND expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invites: %w", err)
	}
	return result.RowsAffected()
}

// ResolveInviteEmail resolves an unaccepted invite token to the invited
// email and expiry. Satisfies the credential service's reset-token fallback.
func (s *InviteStore) ResolveInviteEmail(ctx context.Context, token string) (string, time.Time, error) {
	invite, err := s.GetInviteByToken(ctx, token)
	if err != nil {
		return "", time.Time{}, err
	}
	if invite.Accepted() {
		return "", time.Time{}, errs.NewConflict("invite has already been accepted")
	}
	return invite.Email, invite.ExpiresAt, nil
}

func generateInviteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
