package rbac

import "time"

// Resource is a protected resource type
type Resource string

const (
	ResourceOrganization Resource = "organization"
	ResourceWorkspace    Resource = "workspace"
	ResourceMember       Resource = "member"
	ResourceInvite       Resource = "invite"
	ResourceRole         Resource = "role"
	ResourceBilling      Resource = "billing"
	ResourceSSO          Resource = "sso"
)

// Action is something done to a resource
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionInvite Action = "invite"
	ActionRemove Action = "remove"
)

// Permission pairs a resource with an action
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns the canonical "resource:action" form
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Scope is the level a role applies at
type Scope string

const (
	ScopeOrganization Scope = "organization"
	ScopeWorkspace    Scope = "workspace"
)

// Valid reports whether the scope is known
func (s Scope) Valid() bool {
	return s == ScopeOrganization || s == ScopeWorkspace
}

// Role is a named permission bundle. Built-in roles are seeded at startup;
// administered roles are created alongside them and referenced by
// memberships, never mutated by the core flows.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Scope       Scope        `json:"scope"`
	Permissions []Permission `json:"permissions"`
	IsBuiltIn   bool         `json:"is_built_in"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasPermission reports whether the role grants the permission
func (r *Role) HasPermission(p Permission) bool {
	for _, granted := range r.Permissions {
		if granted.Resource == p.Resource && granted.Action == p.Action {
			return true
		}
	}
	return false
}

// Built-in role names
const (
	RoleOrgAdmin        = "org:admin"
	RoleOrgMember       = "org:member"
	RoleOrgViewer       = "org:viewer"
	RoleWorkspaceAdmin  = "workspace:admin"
	RoleWorkspaceEditor = "workspace:editor"
	RoleWorkspaceViewer = "workspace:viewer"
)

// BuiltInRoles returns the seeded role catalog
func BuiltInRoles() []Role {
	return []Role{
		{
			Name:      RoleOrgAdmin,
			Scope:     ScopeOrganization,
			IsBuiltIn: true,
			Permissions: []Permission{
				{ResourceOrganization, ActionRead},
				{ResourceOrganization, ActionUpdate},
				{ResourceOrganization, ActionDelete},
				{ResourceWorkspace, ActionCreate},
				{ResourceWorkspace, ActionRead},
				{ResourceWorkspace, ActionUpdate},
				{ResourceWorkspace, ActionDelete},
				{ResourceMember, ActionRead},
				{ResourceMember, ActionInvite},
				{ResourceMember, ActionRemove},
				{ResourceMember, ActionUpdate},
				{ResourceInvite, ActionCreate},
				{ResourceInvite, ActionRead},
				{ResourceInvite, ActionDelete},
				{ResourceRole, ActionRead},
				{ResourceBilling, ActionRead},
				{ResourceBilling, ActionUpdate},
				{ResourceSSO, ActionRead},
				{ResourceSSO, ActionUpdate},
			},
		},
		{
			Name:      RoleOrgMember,
			Scope:     ScopeOrganization,
			IsBuiltIn: true,
			Permissions: []Permission{
				{ResourceOrganization, ActionRead},
				{ResourceWorkspace, ActionRead},
				{ResourceMember, ActionRead},
				{ResourceInvite, ActionCreate},
				{ResourceInvite, ActionRead},
				{ResourceRole, ActionRead},
			},
		},
		{
			Name:      RoleOrgViewer,
			Scope:     ScopeOrganization,
			IsBuiltIn: true,
			Permissions: []Permission{
				{ResourceOrganization, ActionRead},
				{ResourceWorkspace, ActionRead},
				{ResourceMember, ActionRead},
			},
		},
		{
			Name:      RoleWorkspaceAdmin,
			Scope:     ScopeWorkspace,
			IsBuiltIn: true,
			Permissions: []Permission{
				{ResourceWorkspace, ActionRead},
				{ResourceWorkspace, ActionUpdate},
				{ResourceWorkspace, ActionDelete},
				{ResourceMember, ActionRead},
				{ResourceMember, ActionInvite},
				{ResourceMember, ActionRemove},
			},
		},
		{
			Name:      RoleWorkspaceEditor,
			Scope:     ScopeWorkspace,
			IsBuiltIn: true,
			Permissions: []Permission{
				{ResourceWorkspace, ActionRead},
				{ResourceWorkspace, ActionUpdate},
				{ResourceMember, ActionRead},
			},
		},
		{
			Name:      RoleWorkspaceViewer,
			Scope:     ScopeWorkspace,
			IsBuiltIn: true,
			Permissions: []Permission{
				{ResourceWorkspace, ActionRead},
				{ResourceMember, ActionRead},
			},
		},
	}
}
