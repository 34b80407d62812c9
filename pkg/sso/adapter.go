package sso

import (
	"context"
	"fmt"
	"sync"

	saml2 "github.com/russellhaering/gosaml2"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
)

// Adapter is the single provider implementation, parameterized by its
// descriptor. Adapters live as long as the registry: reconfiguration swaps
// the protocol state under the lock rather than replacing the adapter, so
// references handed out at route-registration time stay valid.
type Adapter struct {
	descriptor Descriptor
	baseURL    string

	mu     sync.RWMutex
	config *Config
	oidc   *oidcConn
	saml   *saml2.SAMLServiceProvider
}

func newAdapter(descriptor Descriptor, baseURL string) *Adapter {
	return &Adapter{descriptor: descriptor, baseURL: baseURL}
}

// Name returns the fixed provider name
func (a *Adapter) Name() string { return a.descriptor.Name }

// Kind returns the protocol the adapter speaks
func (a *Adapter) Kind() Kind { return a.descriptor.Kind }

// Label returns the human-readable provider label
func (a *Adapter) Label() string { return a.descriptor.Label }

// Configured reports whether the adapter has a working configuration.
// Unconfigured adapters still serve routes; their operations fail with a
// NotFoundError.
func (a *Adapter) Configured() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config != nil
}

// Configure validates cfg, builds fresh protocol state, and swaps it in.
// On failure the previous configuration keeps serving.
func (a *Adapter) Configure(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return errs.NewValidation("config", "is required")
	}
	applied := a.applyDefaults(*cfg)
	if err := a.validate(&applied); err != nil {
		return err
	}

	var (
		oidcState *oidcConn
		samlState *saml2.SAMLServiceProvider
		err       error
	)
	switch a.descriptor.Kind {
	case KindOIDC:
		oidcState, err = newOIDCConn(ctx, &applied)
	case KindSAML:
		samlState, err = newSAMLConn(&applied, a.baseURL, a.descriptor.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to configure provider %s: %w", a.descriptor.Name, err)
	}

	a.mu.Lock()
	a.config = &applied
	a.oidc = oidcState
	a.saml = samlState
	a.mu.Unlock()
	return nil
}

// Deconfigure returns the adapter to its empty state
func (a *Adapter) Deconfigure() {
	a.mu.Lock()
	a.config = nil
	a.oidc = nil
	a.saml = nil
	a.mu.Unlock()
}

// AutoProvision reports whether logins through this adapter may create users
func (a *Adapter) AutoProvision() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config != nil && a.config.AutoProvision
}

// LoginURL builds the redirect that starts a login, carrying the signed
// state token through the provider
func (a *Adapter) LoginURL(state string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.config == nil {
		return "", a.notConfigured()
	}

	switch a.descriptor.Kind {
	case KindOIDC:
		return a.oidc.loginURL(state), nil
	case KindSAML:
		url, err := a.saml.BuildAuthURL(state)
		if err != nil {
			return "", fmt.Errorf("failed to build auth url: %w", err)
		}
		return url, nil
	}
	return "", a.notConfigured()
}

// Complete validates the provider callback and returns the asserted identity
func (a *Adapter) Complete(ctx context.Context, cb Callback) (*Identity, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.config == nil {
		return nil, a.notConfigured()
	}

	var (
		ident *Identity
		err   error
	)
	switch a.descriptor.Kind {
	case KindOIDC:
		if cb.Code == "" {
			return nil, errs.NewValidation("code", "is required")
		}
		ident, err = a.oidc.complete(ctx, cb.Code, *a.config.Attributes)
	case KindSAML:
		if cb.SAMLResponse == "" {
			return nil, errs.NewValidation("SAMLResponse", "is required")
		}
		ident, err = completeSAML(a.saml, cb.SAMLResponse, *a.config.Attributes)
	default:
		return nil, a.notConfigured()
	}
	if err != nil {
		return nil, err
	}
	ident.Provider = a.descriptor.Name
	return ident, nil
}

func (a *Adapter) applyDefaults(cfg Config) Config {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = a.descriptor.DefaultScopes
	}
	if cfg.Attributes == nil {
		defaults := a.descriptor.DefaultAttributes
		cfg.Attributes = &defaults
	}
	return cfg
}

func (a *Adapter) validate(cfg *Config) error {
	switch a.descriptor.Kind {
	case KindOIDC:
		if cfg.ClientID == "" {
			return errs.NewValidation("client_id", "is required")
		}
		if cfg.ClientSecret == "" {
			return errs.NewValidation("client_secret", "is required")
		}
		if cfg.IssuerURL == "" {
			return errs.NewValidation("issuer_url", "is required")
		}
		if cfg.RedirectURL == "" {
			return errs.NewValidation("redirect_url", "is required")
		}
		hasOpenID := false
		for _, scope := range cfg.Scopes {
			if scope == "openid" {
				hasOpenID = true
				break
			}
		}
		if !hasOpenID {
			return errs.NewValidation("scopes", "must include openid")
		}
	case KindSAML:
		if cfg.EntityID == "" {
			return errs.NewValidation("entity_id", "is required")
		}
		if cfg.SSOURL == "" {
			return errs.NewValidation("sso_url", "is required")
		}
		if cfg.Certificate == "" {
			return errs.NewValidation("certificate", "is required")
		}
	default:
		return errs.NewValidation("kind", fmt.Sprintf("unknown kind %q", a.descriptor.Kind))
	}
	return nil
}

func (a *Adapter) notConfigured() error {
	return errs.NewNotFound(fmt.Sprintf("sso provider %s configuration", a.descriptor.Name))
}
