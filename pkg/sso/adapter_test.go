package sso

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
)

// newIssuer serves a minimal OIDC discovery document so adapters can
// configure without a live identity provider.
func newIssuer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/keys",
		})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func oktaConfig(issuerURL string) *Config {
	return &Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		IssuerURL:    issuerURL,
		RedirectURL:  "https://app.example.com/auth/sso/okta/callback",
	}
}

func TestAdapterConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("oidc adapter configures against discovery", func(t *testing.T) {
		issuer := newIssuer(t)
		descriptor, _ := LookupDescriptor(ProviderOkta)
		adapter := newAdapter(descriptor, "https://app.example.com")

		require.False(t, adapter.Configured())
		require.NoError(t, adapter.Configure(ctx, oktaConfig(issuer.URL)))
		assert.True(t, adapter.Configured())

		url, err := adapter.LoginURL("signed-state")
		require.NoError(t, err)
		assert.Contains(t, url, issuer.URL+"/authorize")
		assert.Contains(t, url, "state=signed-state")
		assert.Contains(t, url, "client_id=client-id")
		assert.Contains(t, url, "scope=openid")
	})

	t.Run("descriptor defaults fill scopes and attributes", func(t *testing.T) {
		issuer := newIssuer(t)
		descriptor, _ := LookupDescriptor(ProviderGoogle)
		adapter := newAdapter(descriptor, "https://app.example.com")

		require.NoError(t, adapter.Configure(ctx, oktaConfig(issuer.URL)))

		adapter.mu.RLock()
		defer adapter.mu.RUnlock()
		assert.Equal(t, descriptor.DefaultScopes, adapter.config.Scopes)
		assert.Equal(t, "sub", adapter.config.Attributes.UserID)
	})

	t.Run("configure failure keeps the previous configuration", func(t *testing.T) {
		issuer := newIssuer(t)
		descriptor, _ := LookupDescriptor(ProviderOkta)
		adapter := newAdapter(descriptor, "https://app.example.com")
		require.NoError(t, adapter.Configure(ctx, oktaConfig(issuer.URL)))

		bad := oktaConfig("http://127.0.0.1:1/nowhere")
		assert.Error(t, adapter.Configure(ctx, bad))
		assert.True(t, adapter.Configured())

		url, err := adapter.LoginURL("s")
		require.NoError(t, err)
		assert.Contains(t, url, issuer.URL)
	})

	t.Run("oidc validation", func(t *testing.T) {
		issuer := newIssuer(t)
		descriptor, _ := LookupDescriptor(ProviderOkta)
		adapter := newAdapter(descriptor, "https://app.example.com")

		tests := []struct {
			name   string
			mutate func(*Config)
		}{
			{"missing client id", func(c *Config) { c.ClientID = "" }},
			{"missing client secret", func(c *Config) { c.ClientSecret = "" }},
			{"missing issuer", func(c *Config) { c.IssuerURL = "" }},
			{"missing redirect", func(c *Config) { c.RedirectURL = "" }},
			{"scopes without openid", func(c *Config) { c.Scopes = []string{"profile", "email"} }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := oktaConfig(issuer.URL)
				tt.mutate(cfg)
				assert.True(t, errs.IsValidation(adapter.Configure(ctx, cfg)))
			})
		}
	})

	t.Run("saml adapter builds a redirect with relay state", func(t *testing.T) {
		descriptor, _ := LookupDescriptor(ProviderSAML)
		adapter := newAdapter(descriptor, "https://app.example.com")

		cfg := &Config{
			EntityID:    "https://idp.example.com",
			SSOURL:      "https://idp.example.com/sso/saml",
			Certificate: testCertificate,
		}
		require.NoError(t, adapter.Configure(ctx, cfg))

		url, err := adapter.LoginURL("signed-state")
		require.NoError(t, err)
		assert.Contains(t, url, "https://idp.example.com/sso/saml")
		assert.Contains(t, url, "SAMLRequest=")
		assert.Contains(t, url, "RelayState=signed-state")
	})

	t.Run("saml validation", func(t *testing.T) {
		descriptor, _ := LookupDescriptor(ProviderSAML)
		adapter := newAdapter(descriptor, "https://app.example.com")

		err := adapter.Configure(ctx, &Config{SSOURL: "https://idp.example.com/sso"})
		assert.True(t, errs.IsValidation(err))

		err = adapter.Configure(ctx, &Config{
			EntityID:    "https://idp.example.com",
			SSOURL:      "https://idp.example.com/sso",
			Certificate: "not a certificate",
		})
		assert.Error(t, err)
	})

	t.Run("unconfigured adapter refuses operations", func(t *testing.T) {
		descriptor, _ := LookupDescriptor(ProviderAzureAD)
		adapter := newAdapter(descriptor, "https://app.example.com")

		_, err := adapter.LoginURL("s")
		assert.True(t, errs.IsNotFound(err))

		_, err = adapter.Complete(ctx, Callback{Code: "abc"})
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("deconfigure returns the adapter to empty", func(t *testing.T) {
		issuer := newIssuer(t)
		descriptor, _ := LookupDescriptor(ProviderOkta)
		adapter := newAdapter(descriptor, "https://app.example.com")
		require.NoError(t, adapter.Configure(ctx, oktaConfig(issuer.URL)))

		adapter.Deconfigure()
		assert.False(t, adapter.Configured())
		_, err := adapter.LoginURL("s")
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("callback payload is required", func(t *testing.T) {
		issuer := newIssuer(t)
		descriptor, _ := LookupDescriptor(ProviderOkta)
		adapter := newAdapter(descriptor, "https://app.example.com")
		require.NoError(t, adapter.Configure(ctx, oktaConfig(issuer.URL)))

		_, err := adapter.Complete(ctx, Callback{})
		assert.True(t, errs.IsValidation(err))
	})
}
