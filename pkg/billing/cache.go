package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
)

const (
	defaultLocalCacheSize = 1024
	redisKeyPrefix        = "gatehouse:features:"
)

// FeatureCache layers an in-process LRU over Redis over the
// subscription_cache table. Reads walk the layers down and backfill on the
// way up; writes go through all layers, last writer wins. There is no TTL:
// the platform manager's refresh is the sole invalidation path.
type FeatureCache struct {
	local   *lru.Cache[string, *Entry]
	redis   *redis.Client
	store   *CacheStore
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewFeatureCache creates the layered cache. The Redis client may be nil in
// deployments without a Redis tier; the local LRU and the table still apply.
func NewFeatureCache(redisClient *redis.Client, store *CacheStore, logger *observability.Logger, metrics *observability.Metrics) (*FeatureCache, error) {
	local, err := lru.New[string, *Entry](defaultLocalCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create local feature cache: %w", err)
	}
	return &FeatureCache{
		local:   local,
		redis:   redisClient,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Get resolves the cached entry for a subscription; nil when no layer holds
// one
func (c *FeatureCache) Get(ctx context.Context, subscriptionID string) (*Entry, error) {
	if subscriptionID == "" {
		return nil, errs.NewValidation("subscription_id", "is required")
	}

	if entry, ok := c.local.Get(subscriptionID); ok {
		c.recordHit("l1")
		return entry, nil
	}
	c.recordMiss("l1")

	if c.redis != nil {
		data, err := c.redis.Get(ctx, redisKeyPrefix+subscriptionID).Bytes()
		switch {
		case err == nil:
			entry := &Entry{}
			if err := json.Unmarshal(data, entry); err == nil {
				c.recordHit("l2")
				c.local.Add(subscriptionID, entry)
				return entry, nil
			}
			c.logger.WithField("subscription_id", subscriptionID).
				Warn("dropping undecodable redis feature entry")
			_ = c.redis.Del(ctx, redisKeyPrefix+subscriptionID).Err()
		case err == redis.Nil:
			// fall through to the table
		default:
			c.logger.WithError(err).Warn("redis feature cache read failed")
		}
		c.recordMiss("l2")
	}

	entry, err := c.store.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	c.backfill(ctx, entry)
	return entry, nil
}

// Put overwrites the entry in every layer
func (c *FeatureCache) Put(ctx context.Context, entry *Entry) error {
	if err := c.store.Upsert(ctx, entry); err != nil {
		return err
	}
	c.backfill(ctx, entry)
	return nil
}

// Invalidate drops the entry from every layer
func (c *FeatureCache) Invalidate(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return errs.NewValidation("subscription_id", "is required")
	}
	c.local.Remove(subscriptionID)
	if c.redis != nil {
		if err := c.redis.Del(ctx, redisKeyPrefix+subscriptionID).Err(); err != nil {
			c.logger.WithError(err).Warn("redis feature cache invalidation failed")
		}
	}
	return c.store.Delete(ctx, subscriptionID)
}

func (c *FeatureCache) backfill(ctx context.Context, entry *Entry) {
	c.local.Add(entry.SubscriptionID, entry)
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.WithError(err).Warn("failed to marshal feature entry for redis")
		return
	}
	// No expiry: refreshed on subscription events only.
	if err := c.redis.Set(ctx, redisKeyPrefix+entry.SubscriptionID, data, 0).Err(); err != nil {
		c.logger.WithError(err).Warn("redis feature cache write failed")
	}
}

func (c *FeatureCache) recordHit(tier string) {
	if c.metrics != nil {
		c.metrics.RecordFeatureCacheHit(tier)
	}
}

func (c *FeatureCache) recordMiss(tier string) {
	if c.metrics != nil {
		c.metrics.RecordFeatureCacheMiss(tier)
	}
}
