package orgs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// MemberStore persists organization and workspace memberships
type MemberStore struct {
	db postgres.DBTX
}

// NewMemberStore creates a membership store
func NewMemberStore(db postgres.DBTX) *MemberStore {
	return &MemberStore{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *MemberStore) WithTx(tx postgres.DBTX) *MemberStore {
	return &MemberStore{db: tx}
}

// AddOrganizationUser inserts a membership row. A duplicate membership for
// the same organization and user is a conflict.
func (s *MemberStore) AddOrganizationUser(ctx context.Context, m *OrganizationUser) error {
	if m.OrganizationID == 0 {
		return errs.NewValidation("organization_id", "is required")
	}
	if m.UserID == 0 {
		return errs.NewValidation("user_id", "is required")
	}
	if m.Status == "" {
		m.Status = MembershipPending
	}
	if !m.Status.Valid() {
		return errs.NewValidation("status", fmt.Sprintf("unknown status %q", m.Status))
	}

	query := `
		INSERT INTO organization_users (organization_id, user_id, role_id, is_owner, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id, user_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		m.OrganizationID, m.UserID, m.RoleID, m.IsOwner, m.Status).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return errs.NewConflict("user is already a member of this organization")
	}
	if err != nil {
		return fmt.Errorf("failed to add organization member: %w", err)
	}
	return nil
}

// GetOrganizationUser retrieves a membership by organization and user
func (s *MemberStore) GetOrganizationUser(ctx context.Context, orgID, userID int64) (*OrganizationUser, error) {
	query := `
		SELECT id, organization_id, user_id, role_id, is_owner, status, created_at, updated_at
		FROM organization_users
		WHERE organization_id = $1 AND user_id = $2
	`
	m := &OrganizationUser{}
	err := s.db.QueryRowContext(ctx, query, orgID, userID).Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.RoleID, &m.IsOwner,
		&m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("membership")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization member: %w", err)
	}
	return m, nil
}

// ListOrganizationUsers lists an organization's memberships, optionally
// filtered by status
func (s *MemberStore) ListOrganizationUsers(ctx context.Context, orgID int64, status MembershipStatus) ([]*OrganizationUser, error) {
	query := `
		SELECT id, organization_id, user_id, role_id, is_owner, status, created_at, updated_at
		FROM organization_users
		WHERE organization_id = $1
	`
	args := []interface{}{orgID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization members: %w", err)
	}
	defer rows.Close()

	var members []*OrganizationUser
	for rows.Next() {
		m := &OrganizationUser{}
		if err := rows.Scan(
			&m.ID, &m.OrganizationID, &m.UserID, &m.RoleID, &m.IsOwner,
			&m.Status, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organization member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// SetOrganizationUserStatus transitions a membership's status
func (s *MemberStore) SetOrganizationUserStatus(ctx context.Context, orgID, userID int64, status MembershipStatus) error {
	if !status.Valid() {
		return errs.NewValidation("status", fmt.Sprintf("unknown status %q", status))
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE organization_users SET status = $1, updated_at = NOW()
		WHERE organization_id = $2 AND user_id = $3
	`, status, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to set membership status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errs.NewNotFound("membership")
	}
	return nil
}

// AddWorkspaceUser inserts a workspace membership row
func (s *MemberStore) AddWorkspaceUser(ctx context.Context, m *WorkspaceUser) error {
	if m.WorkspaceID == 0 {
		return errs.NewValidation("workspace_id", "is required")
	}
	if m.UserID == 0 {
		return errs.NewValidation("user_id", "is required")
	}
	if m.Status == "" {
		m.Status = MembershipActive
	}
	if !m.Status.Valid() {
		return errs.NewValidation("status", fmt.Sprintf("unknown status %q", m.Status))
	}

	query := `
		INSERT INTO workspace_users (workspace_id, user_id, role_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id, user_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, m.WorkspaceID, m.UserID, m.RoleID, m.Status).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return errs.NewConflict("user is already a member of this workspace")
	}
	if err != nil {
		return fmt.Errorf("failed to add workspace member: %w", err)
	}
	return nil
}

// GetWorkspaceUser retrieves a workspace membership
func (s *MemberStore) GetWorkspaceUser(ctx context.Context, workspaceID, userID int64) (*WorkspaceUser, error) {
	query := `
		SELECT id, workspace_id, user_id, role_id, status, created_at, updated_at
		FROM workspace_users
		WHERE workspace_id = $1 AND user_id = $2
	`
	m := &WorkspaceUser{}
	err := s.db.QueryRowContext(ctx, query, workspaceID, userID).Scan(
		&m.ID, &m.WorkspaceID, &m.UserID, &m.RoleID, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("membership")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace member: %w", err)
	}
	return m, nil
}

// SetWorkspaceUserStatus transitions a workspace membership's status
func (s *MemberStore) SetWorkspaceUserStatus(ctx context.Context, workspaceID, userID int64, status MembershipStatus) error {
	if !status.Valid() {
		return errs.NewValidation("status", fmt.Sprintf("unknown status %q", status))
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE workspace_users SET status = $1, updated_at = NOW()
		WHERE workspace_id = $2 AND user_id = $3
	`, status, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to set membership status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errs.NewNotFound("membership")
	}
	return nil
}
