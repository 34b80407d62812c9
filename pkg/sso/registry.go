package sso

import (
	"context"
	"fmt"
	"sync"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
)

// Registry owns one adapter per provider name. Adapters are created once and
// reconfigured in place; the registry never grows or shrinks after
// InitializeEmpty.
type Registry struct {
	store   *Store
	baseURL string
	logger  *observability.Logger

	mu       sync.RWMutex
	adapters map[string]*Adapter
}

// NewRegistry creates an empty registry
func NewRegistry(store *Store, baseURL string, logger *observability.Logger) *Registry {
	return &Registry{
		store:    store,
		baseURL:  baseURL,
		logger:   logger,
		adapters: make(map[string]*Adapter),
	}
}

// InitializeEmpty ensures every provider name in the fixed set has an
// adapter, configured or not. Idempotent; existing adapters are untouched.
func (r *Registry) InitializeEmpty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range providerNames {
		if _, ok := r.adapters[name]; !ok {
			r.adapters[name] = newAdapter(descriptors[name], r.baseURL)
		}
	}
}

// InitializeProvider configures the named adapter in place, creating it
// first if the registry has not seen the name yet
func (r *Registry) InitializeProvider(ctx context.Context, name string, cfg *Config) error {
	descriptor, ok := LookupDescriptor(name)
	if !ok {
		return errs.NewValidation("name", fmt.Sprintf("unknown provider %q", name))
	}

	r.mu.Lock()
	adapter, exists := r.adapters[name]
	if !exists {
		adapter = newAdapter(descriptor, r.baseURL)
		r.adapters[name] = adapter
	}
	r.mu.Unlock()

	return adapter.Configure(ctx, cfg)
}

// Initialize registers the full adapter set and applies every enabled stored
// configuration. A provider whose stored config fails to apply keeps its
// empty adapter and the rest proceed; adapters with no remaining stored
// config are returned to their empty state.
func (r *Registry) Initialize(ctx context.Context) error {
	r.InitializeEmpty()

	providers, err := r.store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sso providers: %w", err)
	}

	configured := make(map[string]bool, len(providers))
	for _, provider := range providers {
		cfg := provider.Config
		if err := r.InitializeProvider(ctx, provider.Name, &cfg); err != nil {
			r.logger.WithError(err).WithField("provider", provider.Name).
				Warn("failed to configure sso provider, leaving it unconfigured")
			continue
		}
		configured[provider.Name] = true
		r.logger.WithField("provider", provider.Name).Info("configured sso provider")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, adapter := range r.adapters {
		if !configured[name] && adapter.Configured() {
			adapter.Deconfigure()
		}
	}
	return nil
}

// Adapter returns the adapter registered under a provider name
func (r *Registry) Adapter(name string) (*Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, errs.NewNotFound("sso provider")
	}
	return adapter, nil
}

// Names returns the registered provider names in stable order
func (r *Registry) Names() []string {
	return ProviderNames()
}
