package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/gatehouse-io/gatehouse/pkg/billing"
	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/orgs"
)

// Refresh triggers, recorded with the cache refresh metric
const (
	RefreshTriggerWebhook  = "webhook"
	RefreshTriggerMutation = "mutation"
	RefreshTriggerRead     = "read_through"
)

// Manager is the platform-mode facade in front of billing. It is the single
// answer to "which mode is this instance running in" and gates every
// billing-derived query behind that mode. Self-hosted instances never touch
// the provider; managed instances expose no billing features; cloud
// instances resolve features through the subscription cache.
type Manager struct {
	mode     Mode
	provider billing.Provider
	cache    *billing.FeatureCache
	orgStore *orgs.Store
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewManager creates a platform manager. Provider and cache may be nil
// outside cloud mode.
func NewManager(mode Mode, provider billing.Provider, cache *billing.FeatureCache, orgStore *orgs.Store, logger *observability.Logger, metrics *observability.Metrics) (*Manager, error) {
	if !mode.Valid() {
		return nil, errs.NewValidation("mode", fmt.Sprintf("unknown platform mode %q", mode))
	}
	if mode.BillingBacked() && (provider == nil || cache == nil) {
		return nil, errs.NewValidation("mode", "cloud mode requires a billing provider and feature cache")
	}
	return &Manager{
		mode:     mode,
		provider: provider,
		cache:    cache,
		orgStore: orgStore,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Mode returns the running platform mode
func (m *Manager) Mode() Mode {
	return m.mode
}

// GetFeaturesByPlan resolves the feature map for a subscription. Self-hosted
// returns the full static catalog enabled; managed returns an empty map;
// cloud reads through the cache, refreshing from the provider on a miss.
func (m *Manager) GetFeaturesByPlan(ctx context.Context, subscriptionID string) (map[string]interface{}, error) {
	switch {
	case m.mode == ModeSelfHosted:
		return billing.AllFeaturesEnabled(), nil
	case !m.mode.BillingBacked():
		return map[string]interface{}{}, nil
	}

	if subscriptionID == "" {
		return map[string]interface{}{}, nil
	}

	entry, err := m.cache.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry, err = m.refresh(ctx, subscriptionID, RefreshTriggerRead)
		if err != nil {
			return nil, err
		}
	}
	return entry.Features, nil
}

// GetQuotas resolves usage quotas for a subscription; empty outside cloud
// mode
func (m *Manager) GetQuotas(ctx context.Context, subscriptionID string) (map[string]int64, error) {
	if !m.mode.BillingBacked() || subscriptionID == "" {
		return map[string]int64{}, nil
	}
	entry, err := m.cache.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry, err = m.refresh(ctx, subscriptionID, RefreshTriggerRead)
		if err != nil {
			return nil, err
		}
	}
	return entry.Quotas, nil
}

// RefreshSubscriptionCache re-derives a subscription's cache entry from the
// provider. A no-op outside cloud mode, without a provider, or for an empty
// subscription id. This is the sole invalidation trigger: there is no TTL.
func (m *Manager) RefreshSubscriptionCache(ctx context.Context, subscriptionID, trigger string) error {
	if !m.mode.BillingBacked() || m.provider == nil || subscriptionID == "" {
		return nil
	}
	_, err := m.refresh(ctx, subscriptionID, trigger)
	return err
}

// HandleWebhookEvent reacts to a decoded provider event. Only subscription
// update/delete refresh the cache; everything else is ignored.
func (m *Manager) HandleWebhookEvent(ctx context.Context, event *billing.WebhookEvent) error {
	switch event.Type {
	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		return m.RefreshSubscriptionCache(ctx, event.SubscriptionID, RefreshTriggerWebhook)
	default:
		return nil
	}
}

// CreateSubscription provisions a provider subscription for an organization
// and stores the billing identifiers on the organization. Cloud mode only.
func (m *Manager) CreateSubscription(ctx context.Context, orgID int64, plan string) (*billing.Subscription, error) {
	if !m.mode.BillingBacked() {
		return nil, errs.NewForbidden("billing is not enabled in this platform mode")
	}
	if plan == "" {
		return nil, errs.NewValidation("plan", "is required")
	}

	org, err := m.orgStore.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	customerID := org.CustomerID
	if customerID == "" {
		customer, err := m.provider.CreateCustomer(ctx, org.Name, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create billing customer: %w", err)
		}
		customerID = customer.ID
	}

	price, err := m.priceForPlan(ctx, plan)
	if err != nil {
		return nil, err
	}

	sub, err := m.provider.CreateSubscription(ctx, customerID, price.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	if err := m.orgStore.UpdateBilling(ctx, orgID, customerID, sub.ID, sub.ProductID, plan); err != nil {
		return nil, err
	}
	if err := m.RefreshSubscriptionCache(ctx, sub.ID, RefreshTriggerMutation); err != nil {
		m.logger.WithError(err).WithField("subscription_id", sub.ID).
			Warn("feature cache refresh after subscription create failed")
	}
	return sub, nil
}

// ChangePlan moves an organization's subscription to a different plan
func (m *Manager) ChangePlan(ctx context.Context, orgID int64, plan string) (*billing.Subscription, error) {
	if !m.mode.BillingBacked() {
		return nil, errs.NewForbidden("billing is not enabled in this platform mode")
	}
	if plan == "" {
		return nil, errs.NewValidation("plan", "is required")
	}

	org, err := m.orgStore.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.SubscriptionID == "" {
		return nil, errs.NewNotFound("subscription")
	}

	price, err := m.priceForPlan(ctx, plan)
	if err != nil {
		return nil, err
	}

	sub, err := m.provider.UpdateSubscription(ctx, org.SubscriptionID, price.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	if err := m.orgStore.UpdateBilling(ctx, orgID, org.CustomerID, sub.ID, sub.ProductID, plan); err != nil {
		return nil, err
	}
	if err := m.RefreshSubscriptionCache(ctx, sub.ID, RefreshTriggerMutation); err != nil {
		m.logger.WithError(err).WithField("subscription_id", sub.ID).
			Warn("feature cache refresh after plan change failed")
	}
	return sub, nil
}

// CancelSubscription cancels an organization's subscription and refreshes
// the cache so feature gates see the cancellation
func (m *Manager) CancelSubscription(ctx context.Context, orgID int64) error {
	if !m.mode.BillingBacked() {
		return errs.NewForbidden("billing is not enabled in this platform mode")
	}

	org, err := m.orgStore.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.SubscriptionID == "" {
		return errs.NewNotFound("subscription")
	}

	if err := m.provider.CancelSubscription(ctx, org.SubscriptionID); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	if err := m.RefreshSubscriptionCache(ctx, org.SubscriptionID, RefreshTriggerMutation); err != nil {
		m.logger.WithError(err).WithField("subscription_id", org.SubscriptionID).
			Warn("feature cache refresh after cancellation failed")
	}
	return nil
}

func (m *Manager) refresh(ctx context.Context, subscriptionID, trigger string) (*billing.Entry, error) {
	sub, err := m.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		m.recordRefresh(trigger, "error")
		return nil, fmt.Errorf("failed to fetch subscription %s: %w", subscriptionID, err)
	}

	entry := &billing.Entry{
		SubscriptionID: sub.ID,
		ProductID:      sub.ProductID,
		Snapshot:       sub,
		UpdatedAt:      time.Now(),
	}
	if sub.Active() {
		entry.Features = billing.FeaturesForPlan(sub.Plan)
		entry.Quotas = billing.QuotasForPlan(sub.Plan)
	} else {
		// canceled or delinquent subscriptions keep no features
		entry.Features = map[string]interface{}{}
		entry.Quotas = billing.QuotasForPlan("free")
	}

	if err := m.cache.Put(ctx, entry); err != nil {
		m.recordRefresh(trigger, "error")
		return nil, err
	}
	m.recordRefresh(trigger, "success")
	return entry, nil
}

func (m *Manager) priceForPlan(ctx context.Context, plan string) (*billing.Price, error) {
	prices, err := m.provider.ListPrices(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	if len(prices) == 0 {
		return nil, errs.NewNotFound("price for plan " + plan)
	}
	return prices[0], nil
}

func (m *Manager) recordRefresh(trigger, outcome string) {
	if m.metrics != nil {
		m.metrics.RecordFeatureCacheRefresh(trigger, outcome)
	}
}
