package sso

// Provider names form a fixed set: every deployment registers an adapter for
// each of them, configured or not, so route registration never depends on
// tenant configuration.
const (
	ProviderOkta    = "okta"
	ProviderAzureAD = "azuread"
	ProviderGoogle  = "google"
	ProviderSAML    = "saml"
)

// Descriptor is the static half of an adapter: which protocol it speaks and
// the vendor defaults a stored config may leave blank.
type Descriptor struct {
	Name              string
	Kind              Kind
	Label             string
	DefaultScopes     []string
	DefaultAttributes AttributeMap
}

var oidcAttributeDefaults = AttributeMap{
	UserID:    "sub",
	Email:     "email",
	FirstName: "given_name",
	LastName:  "family_name",
	Groups:    "groups",
}

var descriptors = map[string]Descriptor{
	ProviderOkta: {
		Name:              ProviderOkta,
		Kind:              KindOIDC,
		Label:             "Okta",
		DefaultScopes:     []string{"openid", "profile", "email", "groups"},
		DefaultAttributes: oidcAttributeDefaults,
	},
	ProviderAzureAD: {
		Name:              ProviderAzureAD,
		Kind:              KindOIDC,
		Label:             "Microsoft Entra ID",
		DefaultScopes:     []string{"openid", "profile", "email"},
		DefaultAttributes: oidcAttributeDefaults,
	},
	ProviderGoogle: {
		Name:              ProviderGoogle,
		Kind:              KindOIDC,
		Label:             "Google Workspace",
		DefaultScopes:     []string{"openid", "profile", "email"},
		DefaultAttributes: oidcAttributeDefaults,
	},
	ProviderSAML: {
		Name:  ProviderSAML,
		Kind:  KindSAML,
		Label: "SAML 2.0",
		DefaultAttributes: AttributeMap{
			Email:     "email",
			FirstName: "firstName",
			LastName:  "lastName",
			Groups:    "groups",
		},
	},
}

// providerNames is the registration order; tests and route wiring rely on it
// being stable.
var providerNames = []string{ProviderOkta, ProviderAzureAD, ProviderGoogle, ProviderSAML}

// ProviderNames returns the fixed provider name set in stable order
func ProviderNames() []string {
	names := make([]string, len(providerNames))
	copy(names, providerNames)
	return names
}

// LookupDescriptor returns the descriptor for a provider name
func LookupDescriptor(name string) (Descriptor, bool) {
	d, ok := descriptors[name]
	return d, ok
}
