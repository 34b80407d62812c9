// Package sso maintains the registry of external identity providers and the
// login flows against them.
//
// The registry holds exactly one long-lived adapter per provider name out of
// a fixed set (okta, azuread, google, saml). Adapters are parameterized by a
// descriptor rather than subclassed per vendor: the descriptor carries the
// protocol kind, default scopes, and default attribute mappings, and a stored
// configuration fills in the tenant-specific values. Reconfiguration happens
// in place so routes registered against an adapter stay valid across
// re-initialization.
//
// Provider secrets are encrypted at rest with AES-GCM; the login state
// round-tripped through the identity provider is a short-lived signed JWT.
package sso
