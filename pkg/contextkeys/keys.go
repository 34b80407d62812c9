// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/gatehouse-io/gatehouse/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.SessionKey, principal)
//   principal := ctx.Value(contextkeys.SessionKey).(*auth.Principal)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// SessionKey contains *auth.Principal
	// Set by: middleware.SessionMiddleware (pkg/middleware/auth.go)
	// Required by: All protected API endpoints, feature-gate middleware
	// Type: *auth.Principal
	SessionKey Key = "session_principal"

	// OrgKey contains *orgs.Organization
	// Set by: middleware.OrgContextMiddleware
	// Required by: Org-scoped endpoints, feature-gate middleware
	// Type: *orgs.Organization
	OrgKey Key = "organization"

	// FeaturesKey contains the per-request feature map resolved for the
	// active subscription
	// Set by: middleware.FeatureGate
	// Type: map[string]interface{}
	FeaturesKey Key = "features"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware, observability layer
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: Session middleware after authentication
	// Used by: Logger, audit trail, user-scoped operations
	// Type: string
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: Observability middleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// Helper functions for type-safe context operations

// WithSession adds the authenticated principal to the context
func WithSession(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, SessionKey, principal)
}

// WithOrg adds organization to the context
func WithOrg(ctx context.Context, org interface{}) context.Context {
	return context.WithValue(ctx, OrgKey, org)
}

// WithFeatures adds the resolved feature map to the context
func WithFeatures(ctx context.Context, features map[string]interface{}) context.Context {
	return context.WithValue(ctx, FeaturesKey, features)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetFeatures retrieves the resolved feature map from context
func GetFeatures(ctx context.Context) map[string]interface{} {
	if features, ok := ctx.Value(FeaturesKey).(map[string]interface{}); ok {
		return features
	}
	return nil
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
