package rbac

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/orgs"
)

const defaultRoleCacheSize = 256

// Checker answers permission questions for a user inside an organization or
// workspace. Roles change rarely, so resolved roles sit in a small LRU that
// is invalidated on role administration.
type Checker struct {
	roles   *Store
	members *orgs.MemberStore
	cache   *lru.Cache[int64, *Role]
}

// NewChecker creates a permission checker
func NewChecker(roles *Store, members *orgs.MemberStore) (*Checker, error) {
	cache, err := lru.New[int64, *Role](defaultRoleCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create role cache: %w", err)
	}
	return &Checker{roles: roles, members: members, cache: cache}, nil
}

// CheckOrganization reports whether the user may perform the permission in
// the organization. Owners always may; non-active memberships never may.
func (c *Checker) CheckOrganization(ctx context.Context, userID, orgID int64, p Permission) (bool, error) {
	membership, err := c.members.GetOrganizationUser(ctx, orgID, userID)
	if errs.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if membership.Status != orgs.MembershipActive {
		return false, nil
	}
	if membership.IsOwner {
		return true, nil
	}
	return c.roleAllows(ctx, membership.RoleID, p)
}

// CheckWorkspace reports whether the user may perform the permission in the
// workspace
func (c *Checker) CheckWorkspace(ctx context.Context, userID, workspaceID int64, p Permission) (bool, error) {
	membership, err := c.members.GetWorkspaceUser(ctx, workspaceID, userID)
	if errs.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if membership.Status != orgs.MembershipActive {
		return false, nil
	}
	return c.roleAllows(ctx, membership.RoleID, p)
}

// RequireOrganization is CheckOrganization with denial as a ForbiddenError
func (c *Checker) RequireOrganization(ctx context.Context, userID, orgID int64, p Permission) error {
	allowed, err := c.CheckOrganization(ctx, userID, orgID, p)
	if err != nil {
		return err
	}
	if !allowed {
		return errs.NewForbidden(fmt.Sprintf("missing permission %s", p))
	}
	return nil
}

// InvalidateRole drops a role from the cache after administration
func (c *Checker) InvalidateRole(roleID int64) {
	c.cache.Remove(roleID)
}

func (c *Checker) roleAllows(ctx context.Context, roleID *int64, p Permission) (bool, error) {
	if roleID == nil {
		return false, nil
	}
	role, err := c.resolveRole(ctx, *roleID)
	if err != nil {
		return false, err
	}
	return role.HasPermission(p), nil
}

func (c *Checker) resolveRole(ctx context.Context, roleID int64) (*Role, error) {
	if role, ok := c.cache.Get(roleID); ok {
		return role, nil
	}
	role, err := c.roles.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(roleID, role)
	return role, nil
}
