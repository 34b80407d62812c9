package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gatehouse-io/gatehouse/pkg/async"
	"github.com/gatehouse-io/gatehouse/pkg/billing"
	"github.com/gatehouse-io/gatehouse/pkg/httputil"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/rbac"
)

// webhookRefreshTimeout bounds the background cache refresh an accepted
// webhook event may take.
const webhookRefreshTimeout = 30 * time.Second

// BillingManager is the slice of the platform manager the handlers use
type BillingManager interface {
	GetFeaturesByPlan(ctx context.Context, subscriptionID string) (map[string]interface{}, error)
	GetQuotas(ctx context.Context, subscriptionID string) (map[string]int64, error)
	HandleWebhookEvent(ctx context.Context, event *billing.WebhookEvent) error
	CreateSubscription(ctx context.Context, orgID int64, plan string) (*billing.Subscription, error)
	ChangePlan(ctx context.Context, orgID int64, plan string) (*billing.Subscription, error)
	CancelSubscription(ctx context.Context, orgID int64) error
}

// WebhookDecoder verifies and decodes a signed provider webhook payload
type WebhookDecoder interface {
	DecodeWebhook(payload []byte, signature string) (*billing.WebhookEvent, error)
}

// BillingHandlers serves subscription management and the billing webhook
type BillingHandlers struct {
	manager BillingManager
	decoder WebhookDecoder
	orgs    *OrgHandlers
	checker PermissionChecker
	logger  *observability.Logger
}

// NewBillingHandlers creates the billing handler group. decoder may be nil
// when no webhook secret is configured; the webhook endpoint then rejects
// everything.
func NewBillingHandlers(manager BillingManager, decoder WebhookDecoder, orgHandlers *OrgHandlers, checker PermissionChecker, logger *observability.Logger) *BillingHandlers {
	return &BillingHandlers{
		manager: manager,
		decoder: decoder,
		orgs:    orgHandlers,
		checker: checker,
		logger:  logger,
	}
}

// RegisterPublicRoutes registers the webhook endpoint
func (h *BillingHandlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/stripe", h.stripeWebhook).Methods("POST")
}

// RegisterProtectedRoutes registers subscription management under the
// org-scoped tree
func (h *BillingHandlers) RegisterProtectedRoutes(router *mux.Router) {
	scoped := router.PathPrefix("/orgs/{id}").Subrouter()
	scoped.Use(h.orgs.OrgContext)
	scoped.HandleFunc("/subscription", h.createSubscription).Methods("POST")
	scoped.HandleFunc("/subscription", h.changePlan).Methods("PUT")
	scoped.HandleFunc("/subscription", h.cancelSubscription).Methods("DELETE")
	scoped.HandleFunc("/features", h.getFeatures).Methods("GET")
}

// stripeWebhook handles POST /webhooks/stripe. The contract is
// accept-then-process: 400 only when the request cannot be attributed to the
// provider (missing signature, missing secret, empty body, bad signature);
// once the event verifies, the response is 200 no matter how the downstream
// refresh goes.
func (h *BillingHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		httputil.WriteBadRequest(w, "missing signature")
		return
	}
	if h.decoder == nil {
		httputil.WriteBadRequest(w, "webhook secret is not configured")
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil || len(payload) == 0 {
		httputil.WriteBadRequest(w, "missing body")
		return
	}

	event, err := h.decoder.DecodeWebhook(payload, signature)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid signature")
		return
	}

	async.Detached(h.logger, webhookRefreshTimeout, "billing-webhook-event", func(ctx context.Context) error {
		return h.manager.HandleWebhookEvent(ctx, event)
	})

	httputil.WriteSuccess(w, map[string]bool{"received": true})
}

// createSubscription handles POST /orgs/{id}/subscription
func (h *BillingHandlers) createSubscription(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w)
		return
	}
	if !h.orgs.require(w, r, org.ID, rbac.Permission{Resource: rbac.ResourceBilling, Action: rbac.ActionUpdate}) {
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Plan, "plan") {
		return
	}

	subscription, err := h.manager.CreateSubscription(r.Context(), org.ID, req.Plan)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, subscription)
}

// changePlan handles PUT /orgs/{id}/subscription
func (h *BillingHandlers) changePlan(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w)
		return
	}
	if !h.orgs.require(w, r, org.ID, rbac.Permission{Resource: rbac.ResourceBilling, Action: rbac.ActionUpdate}) {
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Plan, "plan") {
		return
	}

	subscription, err := h.manager.ChangePlan(r.Context(), org.ID, req.Plan)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, subscription)
}

// cancelSubscription handles DELETE /orgs/{id}/subscription
func (h *BillingHandlers) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w)
		return
	}
	if !h.orgs.require(w, r, org.ID, rbac.Permission{Resource: rbac.ResourceBilling, Action: rbac.ActionUpdate}) {
		return
	}

	if err := h.manager.CancelSubscription(r.Context(), org.ID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// getFeatures handles GET /orgs/{id}/features
func (h *BillingHandlers) getFeatures(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromContext(r.Context())
	if !ok {
		httputil.WriteInternalError(w)
		return
	}
	if !h.orgs.require(w, r, org.ID, rbac.Permission{Resource: rbac.ResourceBilling, Action: rbac.ActionRead}) {
		return
	}

	features, err := h.manager.GetFeaturesByPlan(r.Context(), org.SubscriptionID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	quotas, err := h.manager.GetQuotas(r.Context(), org.SubscriptionID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"features": features,
		"quotas":   quotas,
	})
}
