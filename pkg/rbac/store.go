package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// Store persists roles
type Store struct {
	db postgres.DBTX
}

// NewStore creates a role store
func NewStore(db postgres.DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *Store) WithTx(tx postgres.DBTX) *Store {
	return &Store{db: tx}
}

// CreateRole inserts a role. A duplicate name within a scope conflicts.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	if role.Name == "" {
		return errs.NewValidation("name", "is required")
	}
	if !role.Scope.Valid() {
		return errs.NewValidation("scope", fmt.Sprintf("unknown scope %q", role.Scope))
	}

	permissions, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO roles (name, scope, permissions, is_built_in)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, scope) DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query, role.Name, role.Scope, permissions, role.IsBuiltIn).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		return errs.NewConflict("a role with this name already exists in this scope")
	}
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

const roleSelect = `
	SELECT id, name, scope, permissions, is_built_in, created_at, updated_at
	FROM roles`

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, id int64) (*Role, error) {
	return s.getRole(ctx, roleSelect+" WHERE id = $1", id)
}

// GetRoleByName retrieves a role by name within a scope
func (s *Store) GetRoleByName(ctx context.Context, name string, scope Scope) (*Role, error) {
	if name == "" {
		return nil, errs.NewValidation("name", "is required")
	}
	return s.getRole(ctx, roleSelect+" WHERE name = $1 AND scope = $2", name, scope)
}

func (s *Store) getRole(ctx context.Context, query string, args ...interface{}) (*Role, error) {
	role := &Role{}
	var permissions []byte
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&role.ID, &role.Name, &role.Scope, &permissions,
		&role.IsBuiltIn, &role.CreatedAt, &role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("role")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if err := json.Unmarshal(permissions, &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role permissions: %w", err)
	}
	return role, nil
}

// ListRoles lists roles, optionally filtered by scope
func (s *Store) ListRoles(ctx context.Context, scope Scope) ([]*Role, error) {
	query := roleSelect
	args := []interface{}{}
	if scope != "" {
		query += " WHERE scope = $1"
		args = append(args, scope)
	}
	query += " ORDER BY scope, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role := &Role{}
		var permissions []byte
		if err := rows.Scan(
			&role.ID, &role.Name, &role.Scope, &permissions,
			&role.IsBuiltIn, &role.CreatedAt, &role.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if err := json.Unmarshal(permissions, &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal role permissions: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// SeedBuiltInRoles upserts the built-in catalog. Permissions of existing
// built-ins are refreshed so catalog changes roll out on deploy.
func (s *Store) SeedBuiltInRoles(ctx context.Context) error {
	for _, role := range BuiltInRoles() {
		permissions, err := json.Marshal(role.Permissions)
		if err != nil {
			return fmt.Errorf("failed to marshal permissions for %s: %w", role.Name, err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO roles (name, scope, permissions, is_built_in)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (name, scope)
			DO UPDATE SET permissions = EXCLUDED.permissions, updated_at = NOW()
		`, role.Name, role.Scope, permissions)
		if err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
	}
	return nil
}
