// Package identity manages user accounts.
//
// Users are never hard-deleted; removal is a status transition to DISABLED.
// Email uniqueness is enforced by the store.
package identity
