package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/pkg/auth"
	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/sessions"
)

type routerAuthenticator struct {
	principal *auth.Principal
	err       error
}

func (f *routerAuthenticator) Authenticate(ctx context.Context, sessionToken string) (*auth.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.principal, nil
}

func newTestRouter(authenticator *routerAuthenticator) http.Handler {
	authHandlers := NewAuthHandlers(
		&fakeAuthService{session: &sessions.LoginSession{SessionToken: "ghs_YWJjZGVm"}},
		&fakeCredService{}, &fakeUserDirectory{}, testLogger())
	orgHandlers := NewOrgHandlers(&fakeOrgService{}, &fakeOrgDirectory{}, &fakeChecker{})
	billingHandlers := NewBillingHandlers(&fakeBillingManager{}, &fakeDecoder{}, orgHandlers, &fakeChecker{}, testLogger())

	return NewRouter(RouterConfig{
		Auth:          authHandlers,
		Orgs:          orgHandlers,
		Billing:       billingHandlers,
		Authenticator: authenticator,
		Logger:        testLogger(),
	})
}

func TestRouter(t *testing.T) {
	authenticator := &routerAuthenticator{principal: &auth.Principal{User: &identity.User{ID: 42}}}
	router := newTestRouter(authenticator)

	t.Run("login is reachable without a session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"member@example.com","password":"hunter22"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invite acceptance is reachable without a session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/invites/accept",
			strings.NewReader(`{"token":"gh_invite_abc"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		// 500 would mean the route was swallowed by the auth middleware;
		// the fake returns a nil user, so any 2xx/4xx means it got through
		assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("webhook is outside the versioned tree", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		// no signature: rejected by the webhook handler, not by auth
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("protected routes demand a session", func(t *testing.T) {
		for _, target := range []string{"/api/v1/auth/me", "/api/v1/orgs"} {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
			assert.Equal(t, "authentication required", decodeJSON(t, rec)["error"], target)
		}
	})

	t.Run("a valid bearer token passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer ghs_YWJjZGVm")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(42), decodeJSON(t, rec)["id"])
	})

	t.Run("rejected tokens read the same as missing ones", func(t *testing.T) {
		rejecting := newTestRouter(&routerAuthenticator{err: errs.NewAuthentication("session expired")})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer ghs_YWJjZGVm")
		rec := httptest.NewRecorder()
		rejecting.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "authentication required", decodeJSON(t, rec)["error"])
	})

	t.Run("responses carry a request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"member@example.com","password":"hunter22"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestHealthEndpoints(t *testing.T) {
	newHealthRouter := func(t *testing.T, withRedis bool, redisAddr string) (http.Handler, sqlmock.Sqlmock) {
		t.Helper()
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		var redisClient *redis.Client
		if withRedis {
			redisClient = redis.NewClient(&redis.Options{Addr: redisAddr})
		}
		router := NewRouter(RouterConfig{
			Auth:          NewAuthHandlers(&fakeAuthService{}, &fakeCredService{}, &fakeUserDirectory{}, testLogger()),
			Orgs:          NewOrgHandlers(&fakeOrgService{}, &fakeOrgDirectory{}, &fakeChecker{}),
			Health:        observability.NewHealthChecker(db, redisClient),
			Authenticator: &routerAuthenticator{},
			Logger:        testLogger(),
		})
		return router, mock
	}

	t.Run("liveness always succeeds", func(t *testing.T) {
		router, _ := newHealthRouter(t, false, "")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, observability.StatusHealthy, decodeJSON(t, rec)["status"])
	})

	t.Run("readiness checks the database", func(t *testing.T) {
		router, mock := newHealthRouter(t, false, "")
		mock.ExpectPing()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, observability.StatusHealthy, decodeJSON(t, rec)["status"])
	})

	t.Run("database failure flips readiness", func(t *testing.T) {
		router, mock := newHealthRouter(t, false, "")
		mock.ExpectPing().WillReturnError(assert.AnError)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("redis outage only degrades readiness", func(t *testing.T) {
		srv := miniredis.RunT(t)
		router, mock := newHealthRouter(t, true, srv.Addr())
		srv.Close()
		mock.ExpectPing()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, observability.StatusDegraded, decodeJSON(t, rec)["status"])
	})
}
