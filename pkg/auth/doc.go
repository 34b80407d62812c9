// Package auth orchestrates login, logout, and token refresh.
//
// It composes the identity store, local credential service, and session
// store: login verifies credentials and creates a session inside one
// transaction; refresh rotates the session's token pair; logout revokes the
// session. External identity providers (SSO) reuse CreateSessionForUser once
// the provider has asserted the identity.
package auth
