// Package middleware holds the HTTP middleware chain: request IDs, session
// authentication, subscription feature gating, and a Redis-backed rate
// limiter for the credential endpoints. Middlewares communicate with
// handlers exclusively through pkg/contextkeys.
package middleware
