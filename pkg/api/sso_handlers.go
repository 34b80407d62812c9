package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/httputil"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/sessions"
	"github.com/gatehouse-io/gatehouse/pkg/sso"
)

// ProviderRegistry is the slice of the SSO registry the handlers use
type ProviderRegistry interface {
	Adapter(name string) (*sso.Adapter, error)
	Initialize(ctx context.Context) error
	Names() []string
}

// ProviderStore persists SSO provider configurations
type ProviderStore interface {
	UpsertProvider(ctx context.Context, provider *sso.Provider) error
	DeleteProvider(ctx context.Context, name string) error
}

// SSOLogin completes a provider identity into a local session
type SSOLogin interface {
	Login(ctx context.Context, ident *sso.Identity, autoProvision bool) (*sessions.LoginSession, error)
}

// SSOHandlers serves the SSO login flow and provider administration
type SSOHandlers struct {
	registry    ProviderRegistry
	store       ProviderStore
	signer      *sso.StateSigner
	provisioner SSOLogin
	logger      *observability.Logger
}

// NewSSOHandlers creates the SSO handler group
func NewSSOHandlers(registry ProviderRegistry, store ProviderStore, signer *sso.StateSigner, provisioner SSOLogin, logger *observability.Logger) *SSOHandlers {
	return &SSOHandlers{
		registry:    registry,
		store:       store,
		signer:      signer,
		provisioner: provisioner,
		logger:      logger,
	}
}

// RegisterPublicRoutes registers the login flow. Every provider name gets
// routes regardless of configuration; unconfigured providers answer 404.
func (h *SSOHandlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/auth/sso/providers", h.listProviders).Methods("GET")
	router.HandleFunc("/auth/sso/{provider}/login", h.initiateLogin).Methods("GET")
	router.HandleFunc("/auth/sso/{provider}/callback", h.handleCallback).Methods("GET", "POST")
}

// RegisterProtectedRoutes registers provider administration
func (h *SSOHandlers) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/sso/providers/{provider}", h.upsertProvider).Methods("PUT")
	router.HandleFunc("/sso/providers/{provider}", h.deleteProvider).Methods("DELETE")
}

type providerSummary struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Label      string `json:"label"`
	Configured bool   `json:"configured"`
}

// listProviders handles GET /auth/sso/providers. Secrets and endpoint
// details never appear here; the listing only says what a login page needs.
func (h *SSOHandlers) listProviders(w http.ResponseWriter, r *http.Request) {
	summaries := make([]providerSummary, 0, len(h.registry.Names()))
	for _, name := range h.registry.Names() {
		adapter, err := h.registry.Adapter(name)
		if err != nil {
			continue
		}
		summaries = append(summaries, providerSummary{
			Name:       adapter.Name(),
			Kind:       string(adapter.Kind()),
			Label:      adapter.Label(),
			Configured: adapter.Configured(),
		})
	}
	httputil.WriteSuccess(w, summaries)
}

// initiateLogin handles GET /auth/sso/{provider}/login
func (h *SSOHandlers) initiateLogin(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "provider")
	if !ok {
		return
	}
	adapter, err := h.registry.Adapter(name)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	state, err := h.signer.Issue(name, httputil.ParseQueryString(r, "redirect", ""))
	if err != nil {
		h.logger.WithError(err).Error("failed to issue sso state")
		httputil.WriteInternalError(w)
		return
	}

	loginURL, err := adapter.LoginURL(state)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	http.Redirect(w, r, loginURL, http.StatusFound)
}

// handleCallback handles GET and POST /auth/sso/{provider}/callback. OIDC
// providers return by query string, SAML by form post; the signed state
// rides in "state" or "RelayState" respectively.
func (h *SSOHandlers) handleCallback(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "provider")
	if !ok {
		return
	}
	adapter, err := h.registry.Adapter(name)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		httputil.WriteBadRequest(w, "malformed callback")
		return
	}

	state := r.Form.Get("state")
	if state == "" {
		state = r.Form.Get("RelayState")
	}
	claims, err := h.signer.Verify(state, name)
	if err != nil {
		httputil.WriteUnauthorized(w, "invalid login state")
		return
	}

	ident, err := adapter.Complete(r.Context(), sso.Callback{
		Code:         r.Form.Get("code"),
		SAMLResponse: r.PostForm.Get("SAMLResponse"),
	})
	if err != nil {
		if errs.IsValidation(err) || errs.IsNotFound(err) {
			httputil.WriteDomainError(w, err)
			return
		}
		h.logger.WithError(err).WithField("provider", name).Warn("sso callback failed")
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	session, err := h.provisioner.Login(r.Context(), ident, adapter.AutoProvision())
	if err != nil {
		if errs.IsAuthentication(err) || errs.IsForbidden(err) || errs.IsNotFound(err) {
			httputil.WriteUnauthorized(w, "invalid credentials")
			return
		}
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"session":  session,
		"redirect": claims.Redirect,
	})
}

// upsertProvider handles PUT /sso/providers/{provider}: store the config,
// then re-initialize the registry so the change takes effect immediately
func (h *SSOHandlers) upsertProvider(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "provider")
	if !ok {
		return
	}

	var req struct {
		Kind           sso.Kind   `json:"kind"`
		OrganizationID *int64     `json:"organization_id,omitempty"`
		Enabled        bool       `json:"enabled"`
		Config         sso.Config `json:"config"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	provider := &sso.Provider{
		Name:           name,
		Kind:           req.Kind,
		OrganizationID: req.OrganizationID,
		Enabled:        req.Enabled,
		Config:         req.Config,
	}
	if err := h.store.UpsertProvider(r.Context(), provider); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := h.registry.Initialize(r.Context()); err != nil {
		h.logger.WithError(err).Warn("failed to re-initialize sso registry after update")
	}

	httputil.WriteSuccess(w, providerResponse(provider))
}

// deleteProvider handles DELETE /sso/providers/{provider}
func (h *SSOHandlers) deleteProvider(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "provider")
	if !ok {
		return
	}
	if err := h.store.DeleteProvider(r.Context(), name); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.registry.Initialize(r.Context()); err != nil {
		h.logger.WithError(err).Warn("failed to re-initialize sso registry after delete")
	}
	httputil.WriteNoContent(w)
}

// providerResponse strips secret material from a stored provider before it
// goes back to the client
func providerResponse(provider *sso.Provider) *sso.Provider {
	out := *provider
	out.Config.ClientSecret = ""
	out.Config.PrivateKey = ""
	return &out
}
