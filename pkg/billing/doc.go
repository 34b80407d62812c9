// Package billing holds the billing provider abstraction and the
// subscription feature cache. The Provider interface covers the handful of
// operations the core consumes (customer creation, price lookup,
// subscription CRUD, signed webhook decoding); StripeClient implements it
// against the Stripe REST API. FeatureCache maps a subscription id to its
// derived feature/quota entry through a small in-process LRU, Redis, and the
// subscription_cache table. Entries carry no TTL: a refresh after a
// subscription mutation or webhook event is the only invalidation trigger.
package billing
