package billing

import (
	"context"
	"time"
)

// Customer is a billing-provider customer record
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Price is one purchasable price belonging to a product
type Price struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Nickname   string `json:"nickname,omitempty"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Interval   string `json:"interval,omitempty"`
}

// Subscription is the provider-side subscription snapshot the cache derives
// features from
type Subscription struct {
	ID                string            `json:"id"`
	CustomerID        string            `json:"customer_id"`
	ProductID         string            `json:"product_id"`
	PriceID           string            `json:"price_id"`
	Plan              string            `json:"plan"`
	Status            string            `json:"status"`
	CurrentPeriodEnd  time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Active reports whether the subscription grants features
func (s *Subscription) Active() bool {
	return s.Status == "active" || s.Status == "trialing"
}

// WebhookEvent is a decoded, signature-verified provider event
type WebhookEvent struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Created        int64  `json:"created"`
}

// Webhook event types the core reacts to
const (
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Entry is a cached feature/quota derivation for one subscription
type Entry struct {
	SubscriptionID string                 `json:"subscription_id"`
	ProductID      string                 `json:"product_id"`
	Features       map[string]interface{} `json:"features"`
	Quotas         map[string]int64       `json:"quotas"`
	Snapshot       *Subscription          `json:"snapshot,omitempty"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// Provider is the billing backend consumed by the core. Implementations must
// be safe for concurrent use.
type Provider interface {
	CreateCustomer(ctx context.Context, name, email string) (*Customer, error)
	ListPrices(ctx context.Context, plan string) ([]*Price, error)
	CreateSubscription(ctx context.Context, customerID, priceID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID, priceID string) (*Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	DecodeWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
