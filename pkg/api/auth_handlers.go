package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/gatehouse-io/gatehouse/pkg/auth"
	"github.com/gatehouse-io/gatehouse/pkg/credentials"
	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/httputil"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/middleware"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/sessions"
)

// AuthService is the slice of the auth service the handlers use
type AuthService interface {
	Login(ctx context.Context, req auth.LoginRequest) (*sessions.LoginSession, error)
	Logout(ctx context.Context, sessionToken string) error
	Refresh(ctx context.Context, refreshToken string) (*sessions.LoginSession, error)
}

// CredentialService is the slice of the credentials service the handlers use
type CredentialService interface {
	ChangePassword(ctx context.Context, userID int64, current, newPassword string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	CreateResetToken(ctx context.Context, userID int64) (*credentials.ResetToken, error)
}

// UserDirectory resolves accounts by email for the reset flow
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*identity.User, error)
}

// AuthHandlers serves the credential and session endpoints
type AuthHandlers struct {
	auth   AuthService
	creds  CredentialService
	users  UserDirectory
	logger *observability.Logger
}

// NewAuthHandlers creates the auth handler group
func NewAuthHandlers(authService AuthService, creds CredentialService, users UserDirectory, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{auth: authService, creds: creds, users: users, logger: logger}
}

// RegisterPublicRoutes registers the endpoints reachable without a session
func (h *AuthHandlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.login).Methods("POST")
	router.HandleFunc("/auth/refresh", h.refresh).Methods("POST")
	router.HandleFunc("/auth/password/reset/request", h.requestPasswordReset).Methods("POST")
	router.HandleFunc("/auth/password/reset", h.resetPassword).Methods("POST")
}

// RegisterProtectedRoutes registers the endpoints behind session auth
func (h *AuthHandlers) RegisterProtectedRoutes(router *mux.Router) {
	router.HandleFunc("/auth/logout", h.logout).Methods("POST")
	router.HandleFunc("/auth/password", h.changePassword).Methods("POST")
	router.HandleFunc("/auth/me", h.me).Methods("GET")
}

// login handles POST /auth/login. Unknown account, wrong password, and
// inactive account all produce the same 401: the response must not reveal
// which identifiers exist.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	session, err := h.auth.Login(r.Context(), auth.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		if errs.IsValidation(err) {
			httputil.WriteDomainError(w, err)
			return
		}
		if errs.IsNotFound(err) || errs.IsAuthentication(err) || errs.IsForbidden(err) {
			httputil.WriteUnauthorized(w, "invalid credentials")
			return
		}
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, session)
}

// logout handles POST /auth/logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := h.auth.Logout(r.Context(), token); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// refresh handles POST /auth/refresh
func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.RefreshToken, "refresh_token") {
		return
	}

	session, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errs.IsValidation(err) {
			httputil.WriteDomainError(w, err)
			return
		}
		if errs.IsNotFound(err) || errs.IsAuthentication(err) || errs.IsForbidden(err) || errs.IsConflict(err) {
			httputil.WriteUnauthorized(w, "invalid or expired session")
			return
		}
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, session)
}

// changePassword handles POST /auth/password for the authenticated user
func (h *AuthHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.NewPassword, "new_password") {
		return
	}

	err := h.creds.ChangePassword(r.Context(), principal.User.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// requestPasswordReset handles POST /auth/password/reset/request. The
// response is identical whether or not the address has an account.
func (h *AuthHandlers) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err == nil {
		if _, err := h.creds.CreateResetToken(r.Context(), user.ID); err != nil {
			h.logger.WithError(err).WithField("user_id", user.ID).
				Warn("failed to create password reset token")
		}
	} else if !errs.IsNotFound(err) {
		h.logger.WithError(err).Warn("password reset lookup failed")
	}

	w.WriteHeader(http.StatusAccepted)
}

// resetPassword handles POST /auth/password/reset
func (h *AuthHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Token, "token") ||
		!httputil.RequireNonEmpty(w, req.NewPassword, "new_password") {
		return
	}

	if err := h.creds.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		if errs.IsValidation(err) {
			httputil.WriteDomainError(w, err)
			return
		}
		if errs.IsNotFound(err) || errs.IsExpired(err) || errs.IsAuthentication(err) {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}

// me handles GET /auth/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, principal.User)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
