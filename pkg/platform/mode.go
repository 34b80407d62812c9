package platform

// Mode identifies how a gatehouse deployment is operated. The mode decides
// which feature source is authoritative: self-hosted installs get a static
// all-features grant, managed installs read operator-provisioned plans, and
// cloud installs follow live billing subscriptions.
type Mode string

const (
	// ModeSelfHosted is a single-tenant install run by the customer. All
	// features are enabled and billing is not consulted.
	ModeSelfHosted Mode = "self_hosted"

	// ModeManaged is operated by us for a single customer. Features come
	// from the plan the operator assigned, without a live billing provider.
	ModeManaged Mode = "managed"

	// ModeCloud is the multi-tenant SaaS. Features come from each
	// organization's billing subscription and react to webhook events.
	ModeCloud Mode = "cloud"
)

// Valid reports whether m is a recognized deployment mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeSelfHosted, ModeManaged, ModeCloud:
		return true
	}
	return false
}

// BillingBacked reports whether feature resolution consults the billing
// provider in this mode.
func (m Mode) BillingBacked() bool {
	return m == ModeCloud
}

func (m Mode) String() string {
	return string(m)
}
