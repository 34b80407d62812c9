package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/pkg/billing"
	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/orgs"
	"github.com/gatehouse-io/gatehouse/pkg/rbac"
)

type fakeBillingManager struct {
	mu sync.Mutex

	features     map[string]interface{}
	quotas       map[string]int64
	subscription *billing.Subscription
	err          error

	handledEvents []*billing.WebhookEvent
	sawPlan       string
	sawOrgID      int64
}

func (f *fakeBillingManager) GetFeaturesByPlan(ctx context.Context, subscriptionID string) (map[string]interface{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.features, nil
}

func (f *fakeBillingManager) GetQuotas(ctx context.Context, subscriptionID string) (map[string]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quotas, nil
}

func (f *fakeBillingManager) HandleWebhookEvent(ctx context.Context, event *billing.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handledEvents = append(f.handledEvents, event)
	return f.err
}

func (f *fakeBillingManager) handled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handledEvents)
}

func (f *fakeBillingManager) CreateSubscription(ctx context.Context, orgID int64, plan string) (*billing.Subscription, error) {
	f.sawOrgID = orgID
	f.sawPlan = plan
	if f.err != nil {
		return nil, f.err
	}
	return f.subscription, nil
}

func (f *fakeBillingManager) ChangePlan(ctx context.Context, orgID int64, plan string) (*billing.Subscription, error) {
	f.sawOrgID = orgID
	f.sawPlan = plan
	if f.err != nil {
		return nil, f.err
	}
	return f.subscription, nil
}

func (f *fakeBillingManager) CancelSubscription(ctx context.Context, orgID int64) error {
	f.sawOrgID = orgID
	return f.err
}

type fakeDecoder struct {
	event *billing.WebhookEvent
	err   error

	sawPayload   []byte
	sawSignature string
}

func (f *fakeDecoder) DecodeWebhook(payload []byte, signature string) (*billing.WebhookEvent, error) {
	f.sawPayload = payload
	f.sawSignature = signature
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

func newWebhookRouter(manager *fakeBillingManager, decoder WebhookDecoder) *mux.Router {
	orgHandlers := NewOrgHandlers(&fakeOrgService{}, &fakeOrgDirectory{}, &fakeChecker{})
	handlers := NewBillingHandlers(manager, decoder, orgHandlers, &fakeChecker{}, testLogger())
	router := mux.NewRouter()
	handlers.RegisterPublicRoutes(router)
	return router
}

func postWebhook(router *mux.Router, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhook(t *testing.T) {
	event := &billing.WebhookEvent{
		ID:             "evt_123",
		Type:           billing.EventSubscriptionUpdated,
		SubscriptionID: "sub_42",
	}

	t.Run("verified event is accepted and processed", func(t *testing.T) {
		manager := &fakeBillingManager{}
		decoder := &fakeDecoder{event: event}
		router := newWebhookRouter(manager, decoder)

		rec := postWebhook(router, `{"id":"evt_123"}`, "t=1,v1=sig")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeJSON(t, rec)["received"])
		assert.Equal(t, "t=1,v1=sig", decoder.sawSignature)

		// processing is decoupled from the response
		assert.Eventually(t, func() bool { return manager.handled() == 1 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("missing signature", func(t *testing.T) {
		manager := &fakeBillingManager{}
		router := newWebhookRouter(manager, &fakeDecoder{event: event})

		rec := postWebhook(router, `{"id":"evt_123"}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing signature", decodeJSON(t, rec)["error"])
		assert.Zero(t, manager.handled())
	})

	t.Run("no webhook secret configured", func(t *testing.T) {
		manager := &fakeBillingManager{}
		router := newWebhookRouter(manager, nil)

		rec := postWebhook(router, `{"id":"evt_123"}`, "t=1,v1=sig")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, manager.handled())
	})

	t.Run("empty body", func(t *testing.T) {
		manager := &fakeBillingManager{}
		router := newWebhookRouter(manager, &fakeDecoder{event: event})

		rec := postWebhook(router, "", "t=1,v1=sig")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing body", decodeJSON(t, rec)["error"])
		assert.Zero(t, manager.handled())
	})

	t.Run("bad signature", func(t *testing.T) {
		manager := &fakeBillingManager{}
		decoder := &fakeDecoder{err: errs.NewAuthentication("signature verification failed")}
		router := newWebhookRouter(manager, decoder)

		rec := postWebhook(router, `{"id":"evt_123"}`, "t=1,v1=bad")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid signature", decodeJSON(t, rec)["error"])
		assert.Zero(t, manager.handled())
	})

	t.Run("processing failure does not change the response", func(t *testing.T) {
		manager := &fakeBillingManager{err: assert.AnError}
		router := newWebhookRouter(manager, &fakeDecoder{event: event})

		rec := postWebhook(router, `{"id":"evt_123"}`, "t=1,v1=sig")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Eventually(t, func() bool { return manager.handled() == 1 }, 2*time.Second, 10*time.Millisecond)
	})
}

func newSubscriptionRouter(manager *fakeBillingManager, checker *fakeChecker, org *orgs.Organization) http.Handler {
	orgHandlers := NewOrgHandlers(&fakeOrgService{}, &fakeOrgDirectory{org: org}, checker)
	handlers := NewBillingHandlers(manager, &fakeDecoder{}, orgHandlers, checker, testLogger())
	router := mux.NewRouter()
	handlers.RegisterProtectedRoutes(router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, withPrincipal(r, 42))
	})
}

func TestSubscriptionEndpoints(t *testing.T) {
	org := &orgs.Organization{ID: 1, Name: "Acme", Plan: "free", SubscriptionID: "sub_42"}

	t.Run("create", func(t *testing.T) {
		manager := &fakeBillingManager{subscription: &billing.Subscription{ID: "sub_43", Plan: "pro", Status: "active"}}
		checker := &fakeChecker{}
		handler := newSubscriptionRouter(manager, checker, org)

		req := httptest.NewRequest(http.MethodPost, "/orgs/1/subscription", strings.NewReader(`{"plan":"pro"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(1), manager.sawOrgID)
		assert.Equal(t, "pro", manager.sawPlan)
		assert.Equal(t, rbac.Permission{Resource: rbac.ResourceBilling, Action: rbac.ActionUpdate}, checker.sawPerm)
	})

	t.Run("create requires a plan", func(t *testing.T) {
		manager := &fakeBillingManager{}
		handler := newSubscriptionRouter(manager, &fakeChecker{}, org)

		req := httptest.NewRequest(http.MethodPost, "/orgs/1/subscription", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, manager.sawPlan)
	})

	t.Run("change plan", func(t *testing.T) {
		manager := &fakeBillingManager{subscription: &billing.Subscription{ID: "sub_42", Plan: "enterprise", Status: "active"}}
		handler := newSubscriptionRouter(manager, &fakeChecker{}, org)

		req := httptest.NewRequest(http.MethodPut, "/orgs/1/subscription", strings.NewReader(`{"plan":"enterprise"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "enterprise", decodeJSON(t, rec)["plan"])
	})

	t.Run("cancel", func(t *testing.T) {
		manager := &fakeBillingManager{}
		handler := newSubscriptionRouter(manager, &fakeChecker{}, org)

		req := httptest.NewRequest(http.MethodDelete, "/orgs/1/subscription", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, int64(1), manager.sawOrgID)
	})

	t.Run("billing permission required", func(t *testing.T) {
		manager := &fakeBillingManager{}
		checker := &fakeChecker{err: errs.NewForbidden("permission denied")}
		handler := newSubscriptionRouter(manager, checker, org)

		req := httptest.NewRequest(http.MethodPost, "/orgs/1/subscription", strings.NewReader(`{"plan":"pro"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, manager.sawPlan)
	})
}

func TestGetFeatures(t *testing.T) {
	org := &orgs.Organization{ID: 1, Name: "Acme", Plan: "pro", SubscriptionID: "sub_42"}
	manager := &fakeBillingManager{
		features: map[string]interface{}{"sso": "true", "invites": "true"},
		quotas:   map[string]int64{"seats": 25},
	}
	checker := &fakeChecker{}
	handler := newSubscriptionRouter(manager, checker, org)

	req := httptest.NewRequest(http.MethodGet, "/orgs/1/features", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	features, ok := body["features"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "true", features["sso"])
	quotas, ok := body["quotas"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(25), quotas["seats"])
	assert.Equal(t, rbac.Permission{Resource: rbac.ResourceBilling, Action: rbac.ActionRead}, checker.sawPerm)
}
