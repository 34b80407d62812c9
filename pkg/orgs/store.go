package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// Store persists organizations and workspaces
type Store struct {
	db postgres.DBTX
}

// NewStore creates an organization store
func NewStore(db postgres.DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *Store) WithTx(tx postgres.DBTX) *Store {
	return &Store{db: tx}
}

// CreateOrganization inserts a new organization
func (s *Store) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.Name == "" {
		return errs.NewValidation("name", "is required")
	}
	if org.Slug == "" {
		org.Slug = generateSlug(org.Name)
	}
	if org.Plan == "" {
		org.Plan = "free"
	}

	query := `
		INSERT INTO organizations (name, slug, plan, customer_id, subscription_id, product_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		org.Name, org.Slug, org.Plan, org.CustomerID, org.SubscriptionID, org.ProductID).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetOrganization retrieves an organization by ID
func (s *Store) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	return s.getOrganization(ctx, "id = $1", id)
}

// GetOrganizationBySubscriptionID retrieves the organization holding the
// given billing subscription
func (s *Store) GetOrganizationBySubscriptionID(ctx context.Context, subscriptionID string) (*Organization, error) {
	if subscriptionID == "" {
		return nil, errs.NewValidation("subscription_id", "is required")
	}
	return s.getOrganization(ctx, "subscription_id = $1", subscriptionID)
}

func (s *Store) getOrganization(ctx context.Context, where string, arg interface{}) (*Organization, error) {
	query := `
		SELECT id, name, COALESCE(slug, ''), plan,
		       COALESCE(customer_id, ''), COALESCE(subscription_id, ''), COALESCE(product_id, ''),
		       created_at, updated_at
		FROM organizations
		WHERE ` + where
	org := &Organization{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&org.ID, &org.Name, &org.Slug, &org.Plan,
		&org.CustomerID, &org.SubscriptionID, &org.ProductID,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("organization")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// ListOrganizationsForUser lists organizations where the user has an active
// membership
func (s *Store) ListOrganizationsForUser(ctx context.Context, userID int64) ([]*Organization, error) {
	query := `
		SELECT o.id, o.name, COALESCE(o.slug, ''), o.plan,
		       COALESCE(o.customer_id, ''), COALESCE(o.subscription_id, ''), COALESCE(o.product_id, ''),
		       o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_users ou ON o.id = ou.organization_id
		WHERE ou.user_id = $1 AND ou.status = $2
		ORDER BY o.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, MembershipActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org := &Organization{}
		if err := rows.Scan(
			&org.ID, &org.Name, &org.Slug, &org.Plan,
			&org.CustomerID, &org.SubscriptionID, &org.ProductID,
			&org.CreatedAt, &org.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// UpdateBilling writes the billing identifiers set by subscription operations
func (s *Store) UpdateBilling(ctx context.Context, orgID int64, customerID, subscriptionID, productID, plan string) error {
	query := `
		UPDATE organizations
		SET customer_id = NULLIF($1, ''), subscription_id = NULLIF($2, ''),
		    product_id = NULLIF($3, ''), plan = COALESCE(NULLIF($4, ''), plan),
		    updated_at = NOW()
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query, customerID, subscriptionID, productID, plan, orgID)
	if err != nil {
		return fmt.Errorf("failed to update organization billing: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errs.NewNotFound("organization")
	}
	return nil
}

// CreateWorkspace inserts a new workspace
func (s *Store) CreateWorkspace(ctx context.Context, ws *Workspace) error {
	if ws.Name == "" {
		return errs.NewValidation("name", "is required")
	}
	if ws.OrganizationID == 0 {
		return errs.NewValidation("organization_id", "is required")
	}

	query := `
		INSERT INTO workspaces (organization_id, name, is_personal)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, ws.OrganizationID, ws.Name, ws.IsPersonal).
		Scan(&ws.ID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

// GetWorkspace retrieves a workspace by ID
func (s *Store) GetWorkspace(ctx context.Context, id int64) (*Workspace, error) {
	query := `
		SELECT id, organization_id, name, is_personal, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`
	ws := &Workspace{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&ws.ID, &ws.OrganizationID, &ws.Name, &ws.IsPersonal, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("workspace")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

// ListWorkspaces lists an organization's workspaces
func (s *Store) ListWorkspaces(ctx context.Context, orgID int64) ([]*Workspace, error) {
	query := `
		SELECT id, organization_id, name, is_personal, created_at, updated_at
		FROM workspaces
		WHERE organization_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []*Workspace
	for rows.Next() {
		ws := &Workspace{}
		if err := rows.Scan(
			&ws.ID, &ws.OrganizationID, &ws.Name, &ws.IsPersonal, &ws.CreatedAt, &ws.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, rows.Err()
}

// generateSlug derives a URL-safe slug from a name
func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	return slug
}
