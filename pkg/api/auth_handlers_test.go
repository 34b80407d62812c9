package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/pkg/auth"
	"github.com/gatehouse-io/gatehouse/pkg/credentials"
	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/sessions"
)

type fakeAuthService struct {
	session    *sessions.LoginSession
	loginErr   error
	refreshErr error
	logoutErr  error

	sawLogin   auth.LoginRequest
	sawRefresh string
	sawLogout  string
}

func (f *fakeAuthService) Login(ctx context.Context, req auth.LoginRequest) (*sessions.LoginSession, error) {
	f.sawLogin = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.session, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, sessionToken string) error {
	f.sawLogout = sessionToken
	return f.logoutErr
}

func (f *fakeAuthService) Refresh(ctx context.Context, refreshToken string) (*sessions.LoginSession, error) {
	f.sawRefresh = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.session, nil
}

type fakeCredService struct {
	changeErr error
	resetErr  error
	tokenErr  error

	resetTokensFor []int64
	sawChange      struct {
		userID           int64
		current, updated string
	}
}

func (f *fakeCredService) ChangePassword(ctx context.Context, userID int64, current, newPassword string) error {
	f.sawChange.userID = userID
	f.sawChange.current = current
	f.sawChange.updated = newPassword
	return f.changeErr
}

func (f *fakeCredService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return f.resetErr
}

func (f *fakeCredService) CreateResetToken(ctx context.Context, userID int64) (*credentials.ResetToken, error) {
	f.resetTokensFor = append(f.resetTokensFor, userID)
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return &credentials.ResetToken{Token: "gh_reset_abc"}, nil
}

type fakeUserDirectory struct {
	user *identity.User
	err  error
}

func (f *fakeUserDirectory) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func newAuthRouter(authSvc *fakeAuthService, creds *fakeCredService, users *fakeUserDirectory) *mux.Router {
	handlers := NewAuthHandlers(authSvc, creds, users, testLogger())
	router := mux.NewRouter()
	handlers.RegisterPublicRoutes(router)
	handlers.RegisterProtectedRoutes(router)
	return router
}

func postJSON(router *mux.Router, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	session := &sessions.LoginSession{
		ID:           7,
		UserID:       42,
		SessionToken: "gh_sess_abc",
		RefreshToken: "gh_refresh_abc",
		ExpiresAt:    time.Now().Add(time.Hour),
	}

	t.Run("valid credentials return the session", func(t *testing.T) {
		authSvc := &fakeAuthService{session: session}
		router := newAuthRouter(authSvc, &fakeCredService{}, &fakeUserDirectory{})

		rec := postJSON(router, "/auth/login", `{"email":"member@example.com","password":"hunter22"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, "gh_sess_abc", body["session_token"])
		assert.Equal(t, "member@example.com", authSvc.sawLogin.Email)
		assert.Equal(t, "hunter22", authSvc.sawLogin.Password)
	})

	t.Run("failures read identically", func(t *testing.T) {
		// Unknown account, wrong password, and disabled account must be
		// indistinguishable to the caller.
		for name, loginErr := range map[string]error{
			"unknown account":  errs.NewNotFound("user"),
			"wrong password":   errs.NewAuthentication("invalid credentials"),
			"disabled account": errs.NewForbidden("account is disabled"),
		} {
			t.Run(name, func(t *testing.T) {
				router := newAuthRouter(&fakeAuthService{loginErr: loginErr}, &fakeCredService{}, &fakeUserDirectory{})

				rec := postJSON(router, "/auth/login", `{"email":"member@example.com","password":"nope"}`)

				assert.Equal(t, http.StatusUnauthorized, rec.Code)
				assert.Equal(t, "invalid credentials", decodeJSON(t, rec)["error"])
			})
		}
	})

	t.Run("missing fields rejected before the service", func(t *testing.T) {
		authSvc := &fakeAuthService{session: session}
		router := newAuthRouter(authSvc, &fakeCredService{}, &fakeUserDirectory{})

		rec := postJSON(router, "/auth/login", `{"email":"member@example.com"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, authSvc.sawLogin.Email)
	})

	t.Run("storage failure is masked", func(t *testing.T) {
		router := newAuthRouter(&fakeAuthService{loginErr: assert.AnError}, &fakeCredService{}, &fakeUserDirectory{})

		rec := postJSON(router, "/auth/login", `{"email":"member@example.com","password":"hunter22"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decodeJSON(t, rec)["error"])
	})
}

func TestRefresh(t *testing.T) {
	t.Run("rotates into a new session", func(t *testing.T) {
		authSvc := &fakeAuthService{session: &sessions.LoginSession{SessionToken: "gh_sess_new"}}
		router := newAuthRouter(authSvc, &fakeCredService{}, &fakeUserDirectory{})

		rec := postJSON(router, "/auth/refresh", `{"refresh_token":"gh_refresh_old"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "gh_sess_new", decodeJSON(t, rec)["session_token"])
		assert.Equal(t, "gh_refresh_old", authSvc.sawRefresh)
	})

	t.Run("reuse and expiry read identically", func(t *testing.T) {
		for name, refreshErr := range map[string]error{
			"unknown token": errs.NewNotFound("login session"),
			"expired":       errs.NewAuthentication("session expired"),
			"token reuse":   errs.NewConflict("refresh token already used"),
		} {
			t.Run(name, func(t *testing.T) {
				router := newAuthRouter(&fakeAuthService{refreshErr: refreshErr}, &fakeCredService{}, &fakeUserDirectory{})

				rec := postJSON(router, "/auth/refresh", `{"refresh_token":"gh_refresh_old"}`)

				assert.Equal(t, http.StatusUnauthorized, rec.Code)
				assert.Equal(t, "invalid or expired session", decodeJSON(t, rec)["error"])
			})
		}
	})
}

func TestLogout(t *testing.T) {
	authSvc := &fakeAuthService{}
	router := newAuthRouter(authSvc, &fakeCredService{}, &fakeUserDirectory{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer gh_sess_abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "gh_sess_abc", authSvc.sawLogout)
}

func TestRequestPasswordReset(t *testing.T) {
	t.Run("known address gets a token", func(t *testing.T) {
		creds := &fakeCredService{}
		users := &fakeUserDirectory{user: &identity.User{ID: 42}}
		router := newAuthRouter(&fakeAuthService{}, creds, users)

		rec := postJSON(router, "/auth/password/reset/request", `{"email":"member@example.com"}`)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, []int64{42}, creds.resetTokensFor)
	})

	t.Run("unknown address answers the same", func(t *testing.T) {
		creds := &fakeCredService{}
		users := &fakeUserDirectory{err: errs.NewNotFound("user")}
		router := newAuthRouter(&fakeAuthService{}, creds, users)

		rec := postJSON(router, "/auth/password/reset/request", `{"email":"nobody@example.com"}`)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Empty(t, creds.resetTokensFor)
	})

	t.Run("token creation failure stays internal", func(t *testing.T) {
		creds := &fakeCredService{tokenErr: assert.AnError}
		users := &fakeUserDirectory{user: &identity.User{ID: 42}}
		router := newAuthRouter(&fakeAuthService{}, creds, users)

		rec := postJSON(router, "/auth/password/reset/request", `{"email":"member@example.com"}`)

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}

func TestResetPassword(t *testing.T) {
	t.Run("valid token sets the password", func(t *testing.T) {
		router := newAuthRouter(&fakeAuthService{}, &fakeCredService{}, &fakeUserDirectory{})

		rec := postJSON(router, "/auth/password/reset", `{"token":"gh_reset_abc","new_password":"correct-horse"}`)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("expired and unknown tokens read identically", func(t *testing.T) {
		for name, resetErr := range map[string]error{
			"expired": errs.NewExpired("reset token"),
			"unknown": errs.NewNotFound("reset token"),
		} {
			t.Run(name, func(t *testing.T) {
				router := newAuthRouter(&fakeAuthService{}, &fakeCredService{resetErr: resetErr}, &fakeUserDirectory{})

				rec := postJSON(router, "/auth/password/reset", `{"token":"gh_reset_abc","new_password":"correct-horse"}`)

				assert.Equal(t, http.StatusUnauthorized, rec.Code)
				assert.Equal(t, "invalid or expired token", decodeJSON(t, rec)["error"])
			})
		}
	})

	t.Run("weak password surfaces as validation", func(t *testing.T) {
		resetErr := errs.NewValidation("new_password", "must be at least 8 characters")
		router := newAuthRouter(&fakeAuthService{}, &fakeCredService{resetErr: resetErr}, &fakeUserDirectory{})

		rec := postJSON(router, "/auth/password/reset", `{"token":"gh_reset_abc","new_password":"short"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("authenticated user changes their password", func(t *testing.T) {
		creds := &fakeCredService{}
		handlers := NewAuthHandlers(&fakeAuthService{}, creds, &fakeUserDirectory{}, testLogger())
		router := mux.NewRouter()
		handlers.RegisterProtectedRoutes(router)

		req := httptest.NewRequest(http.MethodPost, "/auth/password",
			strings.NewReader(`{"current_password":"old","new_password":"correct-horse"}`))
		req = withPrincipal(req, 42)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, int64(42), creds.sawChange.userID)
		assert.Equal(t, "old", creds.sawChange.current)
		assert.Equal(t, "correct-horse", creds.sawChange.updated)
	})

	t.Run("no principal means unauthorized", func(t *testing.T) {
		router := newAuthRouter(&fakeAuthService{}, &fakeCredService{}, &fakeUserDirectory{})

		rec := postJSON(router, "/auth/password", `{"current_password":"old","new_password":"correct-horse"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMe(t *testing.T) {
	router := newAuthRouter(&fakeAuthService{}, &fakeCredService{}, &fakeUserDirectory{})

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/auth/me", nil), 42)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, float64(42), body["id"])
}
