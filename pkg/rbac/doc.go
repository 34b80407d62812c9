// Package rbac holds the role catalog and the permission checker. Roles are
// named permission bundles scoped to organizations or workspaces; memberships
// reference a role, and the checker resolves membership plus role into an
// allow/deny answer. Ownership is a membership flag, not a role, and always
// allows.
package rbac
