package api

import (
	"github.com/gorilla/mux"

	"github.com/gatehouse-io/gatehouse/pkg/middleware"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/swagger"
)

// RouterConfig carries the handler groups and cross-cutting middleware for
// the HTTP surface. SSO, Billing, and Health are optional; nil groups simply
// register no routes.
type RouterConfig struct {
	Auth    *AuthHandlers
	Orgs    *OrgHandlers
	SSO     *SSOHandlers
	Billing *BillingHandlers
	Health  *observability.HealthChecker
	Docs    *swagger.Handlers

	Authenticator middleware.Authenticator
	Features      middleware.FeatureResolver
	LoginLimiter  *middleware.RateLimiter
	Logger        *observability.Logger
}

// NewRouter assembles the full route tree:
//
//	/healthz, /readyz            probes, unauthenticated
//	/webhooks/stripe             signature-verified, unauthenticated
//	/auth/sso/...                browser login flow, unauthenticated
//	/api/v1/auth/login ...       credential endpoints, rate limited
//	/api/v1/...                  everything else behind session auth
func NewRouter(cfg RouterConfig) *mux.Router {
	root := mux.NewRouter()
	root.Use(middleware.RequestID)

	if cfg.Health != nil {
		root.HandleFunc("/healthz", cfg.Health.Liveness).Methods("GET")
		root.HandleFunc("/readyz", cfg.Health.Readiness).Methods("GET")
	}
	if cfg.Docs != nil {
		cfg.Docs.RegisterRoutes(root)
	}
	if cfg.Billing != nil {
		cfg.Billing.RegisterPublicRoutes(root)
	}
	if cfg.SSO != nil {
		cfg.SSO.RegisterPublicRoutes(root)
	}

	// Credential endpoints take the brunt of password spraying; they get
	// the limiter when one is configured.
	public := root.PathPrefix("/api/v1").Subrouter()
	if cfg.LoginLimiter != nil {
		public.Use(cfg.LoginLimiter.Limit)
	}
	cfg.Auth.RegisterPublicRoutes(public)
	cfg.Orgs.RegisterPublicRoutes(public)

	if cfg.Features != nil {
		cfg.Orgs.inviteGate = middleware.FeatureGate(cfg.Features, cfg.Logger, "invites")
	}

	protected := root.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.SessionAuth(cfg.Authenticator))
	cfg.Auth.RegisterProtectedRoutes(protected)
	cfg.Orgs.RegisterProtectedRoutes(protected)
	if cfg.SSO != nil {
		cfg.SSO.RegisterProtectedRoutes(protected)
	}
	if cfg.Billing != nil {
		cfg.Billing.RegisterProtectedRoutes(protected)
	}

	return root
}
