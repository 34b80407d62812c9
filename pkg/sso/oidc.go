package sso

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// oidcConn is the protocol state behind an OIDC adapter: discovered
// endpoints, token verifier, and the oauth2 exchange config. Rebuilt as a
// unit on every reconfiguration.
type oidcConn struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	exchange *oauth2.Config
}

func newOIDCConn(ctx context.Context, cfg *Config) (*oidcConn, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover issuer %s: %w", cfg.IssuerURL, err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	exchange := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
	}

	return &oidcConn{provider: provider, verifier: verifier, exchange: exchange}, nil
}

// loginURL builds the authorization redirect for a signed state token
func (c *oidcConn) loginURL(state string) string {
	return c.exchange.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// complete exchanges the authorization code, verifies the ID token, and maps
// its claims onto an Identity
func (c *oidcConn) complete(ctx context.Context, code string, mapping AttributeMap) (*Identity, error) {
	token, err := c.exchange.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("token response is missing id_token")
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token claims: %w", err)
	}

	ident := &Identity{Attributes: make(map[string]string)}
	for k, v := range claims {
		if s, ok := v.(string); ok {
			ident.Attributes[k] = s
		}
	}

	ident.ExternalID = claimString(claims, mapping.UserID)
	ident.Email = claimString(claims, mapping.Email)
	ident.FirstName = claimString(claims, mapping.FirstName)
	ident.LastName = claimString(claims, mapping.LastName)
	if mapping.Groups != "" {
		ident.Groups = claimStrings(claims, mapping.Groups)
	}

	if ident.ExternalID == "" {
		ident.ExternalID = idToken.Subject
	}
	if ident.ExternalID == "" {
		return nil, fmt.Errorf("id token carries no subject")
	}
	if ident.Email == "" {
		return nil, fmt.Errorf("id token carries no email")
	}

	return ident, nil
}

func claimString(claims map[string]interface{}, name string) string {
	if name == "" {
		return ""
	}
	if s, ok := claims[name].(string); ok {
		return s
	}
	return ""
}

func claimStrings(claims map[string]interface{}, name string) []string {
	switch v := claims[name].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
