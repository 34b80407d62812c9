package sso

import "time"

// Kind is the protocol an adapter speaks
type Kind string

const (
	KindOIDC Kind = "oidc"
	KindSAML Kind = "saml"
)

// Valid reports whether the kind is one we know how to build
func (k Kind) Valid() bool {
	return k == KindOIDC || k == KindSAML
}

// AttributeMap names the provider attributes (OIDC claims or SAML assertion
// attributes) that map onto user fields
type AttributeMap struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Groups    string `json:"groups,omitempty"`
}

// Config is the tenant-supplied half of an adapter: the descriptor decides
// the protocol and defaults, the config carries credentials and endpoints.
type Config struct {
	// OIDC
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	IssuerURL    string   `json:"issuer_url,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`

	// SAML
	EntityID     string `json:"entity_id,omitempty"`
	SSOURL       string `json:"sso_url,omitempty"`
	Certificate  string `json:"certificate,omitempty"`
	PrivateKey   string `json:"private_key,omitempty"`
	NameIDFormat string `json:"name_id_format,omitempty"`
	SignRequests bool   `json:"sign_requests,omitempty"`

	RedirectURL   string        `json:"redirect_url,omitempty"`
	AutoProvision bool          `json:"auto_provision"`
	Attributes    *AttributeMap `json:"attributes,omitempty"`
}

// Provider is a stored provider configuration row
type Provider struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Kind           Kind      `json:"kind"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	Enabled        bool      `json:"enabled"`
	Config         Config    `json:"config"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Identity is the subject asserted by an identity provider after a
// successful callback
type Identity struct {
	Provider   string            `json:"provider"`
	ExternalID string            `json:"external_id"`
	Email      string            `json:"email"`
	FirstName  string            `json:"first_name,omitempty"`
	LastName   string            `json:"last_name,omitempty"`
	Groups     []string          `json:"groups,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Callback carries the provider response delivered to our callback route.
// Exactly one of Code (OIDC) or SAMLResponse is set.
type Callback struct {
	Code         string
	SAMLResponse string
}
