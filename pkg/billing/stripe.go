package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
)

const (
	defaultStripeBaseURL = "https://api.stripe.com/v1"

	// Maximum accepted age of a signed webhook timestamp.
	webhookTolerance = 5 * time.Minute
)

// StripeClient implements Provider against the Stripe REST API
type StripeClient struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client

	// test hook
	now func() time.Time
}

// NewStripeClient creates a Stripe-backed billing provider
func NewStripeClient(apiKey, webhookSecret string) *StripeClient {
	return &StripeClient{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		baseURL:       defaultStripeBaseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		now:           time.Now,
	}
}

// stripeSubscription mirrors the fields of Stripe's subscription object the
// core consumes
type stripeSubscription struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	Items             struct {
		Data []struct {
			Price stripePrice `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

type stripePrice struct {
	ID         string            `json:"id"`
	Product    string            `json:"product"`
	Nickname   string            `json:"nickname"`
	UnitAmount int64             `json:"unit_amount"`
	Currency   string            `json:"currency"`
	Recurring  struct {
		Interval string `json:"interval"`
	} `json:"recurring"`
	Metadata map[string]string `json:"metadata"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCustomer creates a Stripe customer
func (c *StripeClient) CreateCustomer(ctx context.Context, name, email string) (*Customer, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("email", email)

	var resp struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodPost, "/customers", form, &resp); err != nil {
		return nil, err
	}
	return &Customer{ID: resp.ID, Name: resp.Name, Email: resp.Email}, nil
}

// ListPrices lists active prices for a plan. Stripe holds the plan name in
// price metadata or the nickname.
func (c *StripeClient) ListPrices(ctx context.Context, plan string) ([]*Price, error) {
	var resp struct {
		Data []stripePrice `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/prices?active=true&limit=100&expand[]=data.product", nil, &resp); err != nil {
		return nil, err
	}

	var prices []*Price
	for _, p := range resp.Data {
		if plan != "" && p.Nickname != plan && p.Metadata["plan"] != plan {
			continue
		}
		prices = append(prices, &Price{
			ID:         p.ID,
			ProductID:  p.Product,
			Nickname:   p.Nickname,
			UnitAmount: p.UnitAmount,
			Currency:   p.Currency,
			Interval:   p.Recurring.Interval,
		})
	}
	return prices, nil
}

// CreateSubscription subscribes a customer to a price
func (c *StripeClient) CreateSubscription(ctx context.Context, customerID, priceID string) (*Subscription, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("items[0][price]", priceID)

	var resp stripeSubscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", form, &resp); err != nil {
		return nil, err
	}
	return fromStripeSubscription(&resp), nil
}

// UpdateSubscription moves a subscription to a different price
func (c *StripeClient) UpdateSubscription(ctx context.Context, subscriptionID, priceID string) (*Subscription, error) {
	current, err := c.getStripeSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if len(current.Items.Data) == 0 {
		return nil, fmt.Errorf("subscription %s has no items", subscriptionID)
	}

	form := url.Values{}
	form.Set("items[0][id]", current.Items.Data[0].Price.ID)
	form.Set("items[0][price]", priceID)
	form.Set("proration_behavior", "create_prorations")

	var resp stripeSubscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions/"+subscriptionID, form, &resp); err != nil {
		return nil, err
	}
	return fromStripeSubscription(&resp), nil
}

// GetSubscription retrieves a subscription
func (c *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	resp, err := c.getStripeSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return fromStripeSubscription(resp), nil
}

// CancelSubscription cancels a subscription immediately
func (c *StripeClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return c.do(ctx, http.MethodDelete, "/subscriptions/"+subscriptionID, nil, nil)
}

// DecodeWebhook verifies the Stripe-Signature header and decodes the event.
// Signature failures surface as AuthenticationError so the boundary can map
// them without inspecting provider internals.
func (c *StripeClient) DecodeWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if err := c.verifySignature(payload, signature); err != nil {
		return nil, err
	}

	var raw struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Created int64  `json:"created"`
		Data    struct {
			Object struct {
				ID     string `json:"id"`
				Object string `json:"object"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}

	event := &WebhookEvent{ID: raw.ID, Type: raw.Type, Created: raw.Created}
	if raw.Data.Object.Object == "subscription" {
		event.SubscriptionID = raw.Data.Object.ID
	}
	return event, nil
}

// verifySignature checks the "t=...,v1=..." scheme: HMAC-SHA256 of
// "<t>.<payload>" keyed by the endpoint secret, with a bounded timestamp age.
func (c *StripeClient) verifySignature(payload []byte, signature string) error {
	if c.webhookSecret == "" {
		return errs.NewAuthentication("webhook secret is not configured")
	}
	if signature == "" {
		return errs.NewAuthentication("missing webhook signature")
	}

	var timestamp int64
	var candidates []string
	for _, part := range strings.Split(signature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return errs.NewAuthentication("malformed webhook signature timestamp")
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return errs.NewAuthentication("malformed webhook signature")
	}

	age := c.now().Sub(time.Unix(timestamp, 0))
	if age > webhookTolerance || age < -webhookTolerance {
		return errs.NewAuthentication("webhook signature timestamp out of tolerance")
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return errs.NewAuthentication("webhook signature mismatch")
}

// SignPayload produces a valid Stripe-Signature header value for a payload.
// Exported for tests and local webhook replay tooling.
func SignPayload(secret string, timestamp time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", timestamp.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func (c *StripeClient) getStripeSubscription(ctx context.Context, subscriptionID string) (*stripeSubscription, error) {
	if subscriptionID == "" {
		return nil, errs.NewValidation("subscription_id", "is required")
	}
	resp := &stripeSubscription{}
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+subscriptionID, nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr stripeError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			if resp.StatusCode == http.StatusNotFound {
				return errs.NewNotFound("subscription")
			}
			return fmt.Errorf("stripe error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
		}
		return fmt.Errorf("stripe returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode stripe response: %w", err)
	}
	return nil
}

func fromStripeSubscription(raw *stripeSubscription) *Subscription {
	sub := &Subscription{
		ID:                raw.ID,
		CustomerID:        raw.Customer,
		Status:            raw.Status,
		CurrentPeriodEnd:  time.Unix(raw.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd: raw.CancelAtPeriodEnd,
		Metadata:          raw.Metadata,
		Plan:              raw.Metadata["plan"],
	}
	if len(raw.Items.Data) > 0 {
		price := raw.Items.Data[0].Price
		sub.PriceID = price.ID
		sub.ProductID = price.Product
		if sub.Plan == "" {
			sub.Plan = price.Nickname
		}
		if sub.Plan == "" {
			sub.Plan = price.Metadata["plan"]
		}
	}
	return sub
}
