// Package sessions persists login sessions: (sessionToken, refreshToken,
// expiresAt) triples identifying one authenticated login.
//
// Session and refresh tokens are unique across all sessions at any instant.
// Rotation replaces both tokens and the expiry in a single guarded update;
// a rotation racing another rotation of the same session loses with a
// conflict instead of issuing a second valid token pair.
package sessions
