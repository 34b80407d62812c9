package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gatehouse-io/gatehouse/pkg/contextkeys"
	"github.com/gatehouse-io/gatehouse/pkg/httputil"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/middleware"
	"github.com/gatehouse-io/gatehouse/pkg/orgs"
	"github.com/gatehouse-io/gatehouse/pkg/rbac"
)

// OrgService is the slice of the organization service the handlers use
type OrgService interface {
	SetupOrganization(ctx context.Context, req orgs.SetupOrganizationRequest) (*orgs.SetupOrganizationResult, error)
	InviteUser(ctx context.Context, req orgs.InviteRequest) (*orgs.Invite, error)
	AcceptInvite(ctx context.Context, token string) (*identity.User, error)
	RemoveMember(ctx context.Context, orgID, userID int64) error
}

// OrgDirectory reads organizations for responses and context loading
type OrgDirectory interface {
	GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error)
	ListOrganizationsForUser(ctx context.Context, userID int64) ([]*orgs.Organization, error)
	ListWorkspaces(ctx context.Context, orgID int64) ([]*orgs.Workspace, error)
}

// PermissionChecker authorizes membership-scoped operations
type PermissionChecker interface {
	RequireOrganization(ctx context.Context, userID, orgID int64, p rbac.Permission) error
}

// OrgHandlers serves organization, workspace, and invite endpoints
type OrgHandlers struct {
	service   OrgService
	directory OrgDirectory
	checker   PermissionChecker

	// inviteGate, when set, wraps the invite endpoint in a subscription
	// feature check. The router wires it from the feature resolver.
	inviteGate func(http.Handler) http.Handler
}

// NewOrgHandlers creates the organization handler group
func NewOrgHandlers(service OrgService, directory OrgDirectory, checker PermissionChecker) *OrgHandlers {
	return &OrgHandlers{service: service, directory: directory, checker: checker}
}

// RegisterPublicRoutes registers the endpoints reachable without a session
func (h *OrgHandlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/invites/accept", h.acceptInvite).Methods("POST")
}

// RegisterProtectedRoutes registers the endpoints behind session auth
func (h *OrgHandlers) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/orgs", h.setupOrganization).Methods("POST")
	router.HandleFunc("/orgs", h.listOrganizations).Methods("GET")

	scoped := router.PathPrefix("/orgs/{id}").Subrouter()
	scoped.Use(h.OrgContext)
	scoped.HandleFunc("", h.getOrganization).Methods("GET")
	scoped.HandleFunc("/workspaces", h.listWorkspaces).Methods("GET")
	invite := http.Handler(http.HandlerFunc(h.inviteUser))
	if h.inviteGate != nil {
		invite = h.inviteGate(invite)
	}
	scoped.Handle("/invites", invite).Methods("POST")
	scoped.HandleFunc("/members/{user_id}", h.removeMember).Methods("DELETE")
}

// OrgContext loads the {id} organization into the request context so
// downstream handlers and feature gates see the tenant
func (h *OrgHandlers) OrgContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
		if !ok {
			return
		}
		org, err := h.directory.GetOrganization(r.Context(), orgID)
		if err != nil {
			httputil.WriteDomainError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextkeys.WithOrg(r.Context(), org)))
	})
}

// setupOrganization handles POST /orgs
func (h *OrgHandlers) setupOrganization(w http.ResponseWriter, r *http.Request) {
	var req orgs.SetupOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.SetupOrganization(r.Context(), req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, result)
}

// listOrganizations handles GET /orgs for the authenticated user
func (h *OrgHandlers) listOrganizations(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	organizations, err := h.directory.ListOrganizationsForUser(r.Context(), principal.User.ID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, organizations)
}

// getOrganization handles GET /orgs/{id}
func (h *OrgHandlers) getOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w)
		return
	}
	if !h.require(w, r, org.ID, rbac.Permission{Resource: rbac.ResourceOrganization, Action: rbac.ActionRead}) {
		return
	}
	httputil.WriteSuccess(w, org)
}

// listWorkspaces handles GET /orgs/{id}/workspaces
func (h *OrgHandlers) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w)
		return
	}
	if !h.require(w, r, org.ID, rbac.Permission{Resource: rbac.ResourceWorkspace, Action: rbac.ActionRead}) {
		return
	}

	workspaces, err := h.directory.ListWorkspaces(r.Context(), org.ID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, workspaces)
}

// inviteUser handles POST /orgs/{id}/invites
func (h *OrgHandlers) inviteUser(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w)
		return
	}
	if !h.require(w, r, org.ID, rbac.Permission{Resource: rbac.ResourceMember, Action: rbac.ActionInvite}) {
		return
	}

	var req orgs.InviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.OrganizationID = &org.ID
	if principal := middleware.PrincipalFromContext(r.Context()); principal != nil {
		req.InvitedBy = &principal.User.ID
	}

	invite, err := h.service.InviteUser(r.Context(), req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, invite)
}

// acceptInvite handles POST /invites/accept
func (h *OrgHandlers) acceptInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Token, "token") {
		return
	}

	user, err := h.service.AcceptInvite(r.Context(), req.Token)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// removeMember handles DELETE /orgs/{id}/members/{user_id}
func (h *OrgHandlers) removeMember(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w)
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}
	if !h.require(w, r, org.ID, rbac.Permission{Resource: rbac.ResourceMember, Action: rbac.ActionRemove}) {
		return
	}

	if err := h.service.RemoveMember(r.Context(), org.ID, userID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *OrgHandlers) require(w http.ResponseWriter, r *http.Request, orgID int64, p rbac.Permission) bool {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return false
	}
	if err := h.checker.RequireOrganization(r.Context(), principal.User.ID, orgID, p); err != nil {
		httputil.WriteDomainError(w, err)
		return false
	}
	return true
}

func orgFromContext(ctx context.Context) (*orgs.Organization, bool) {
	org, ok := ctx.Value(contextkeys.OrgKey).(*orgs.Organization)
	return org, ok
}
