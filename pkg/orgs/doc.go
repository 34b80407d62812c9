// Package orgs manages tenants: organizations, their workspaces, user
// memberships, and invites.
//
// Memberships are soft-deleted through status transitions
// (PENDING -> ACTIVE -> DISABLED); a PENDING membership always has an
// unexpired invite behind it, and accepting the invite consumes it by
// stamping accepted_at.
package orgs
