package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// CacheStore persists subscription feature entries. The table backs the
// volatile cache layers so a restart does not force a provider round-trip
// for every subscription.
type CacheStore struct {
	db postgres.DBTX
}

// NewCacheStore creates a cache store
func NewCacheStore(db postgres.DBTX) *CacheStore {
	return &CacheStore{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *CacheStore) WithTx(tx postgres.DBTX) *CacheStore {
	return &CacheStore{db: tx}
}

// Upsert overwrites the entry for a subscription. Last writer wins.
func (s *CacheStore) Upsert(ctx context.Context, entry *Entry) error {
	if entry.SubscriptionID == "" {
		return errs.NewValidation("subscription_id", "is required")
	}

	features, err := json.Marshal(entry.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}
	quotas, err := json.Marshal(entry.Quotas)
	if err != nil {
		return fmt.Errorf("failed to marshal quotas: %w", err)
	}
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO subscription_cache (subscription_id, product_id, features, quotas, snapshot, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (subscription_id)
		DO UPDATE SET product_id = EXCLUDED.product_id, features = EXCLUDED.features,
		              quotas = EXCLUDED.quotas, snapshot = EXCLUDED.snapshot, updated_at = NOW()
		RETURNING updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		entry.SubscriptionID, entry.ProductID, features, quotas, snapshot).
		Scan(&entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription cache entry: %w", err)
	}
	return nil
}

// Get retrieves the entry for a subscription; nil when absent
func (s *CacheStore) Get(ctx context.Context, subscriptionID string) (*Entry, error) {
	if subscriptionID == "" {
		return nil, errs.NewValidation("subscription_id", "is required")
	}

	query := `
		SELECT subscription_id, product_id, features, quotas, snapshot, updated_at
		FROM subscription_cache
		WHERE subscription_id = $1
	`
	entry := &Entry{}
	var features, quotas, snapshot []byte
	err := s.db.QueryRowContext(ctx, query, subscriptionID).Scan(
		&entry.SubscriptionID, &entry.ProductID, &features, &quotas, &snapshot, &entry.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription cache entry: %w", err)
	}

	if err := json.Unmarshal(features, &entry.Features); err != nil {
		return nil, fmt.Errorf("failed to unmarshal features: %w", err)
	}
	if err := json.Unmarshal(quotas, &entry.Quotas); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quotas: %w", err)
	}
	if len(snapshot) > 0 && string(snapshot) != "null" {
		if err := json.Unmarshal(snapshot, &entry.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
	}
	return entry, nil
}

// Delete removes the entry for a subscription; removing nothing is fine
func (s *CacheStore) Delete(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return errs.NewValidation("subscription_id", "is required")
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM subscription_cache WHERE subscription_id = $1", subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription cache entry: %w", err)
	}
	return nil
}
