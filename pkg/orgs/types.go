package orgs

import "time"

// MembershipStatus is the lifecycle state of a user's relation to an
// organization or workspace
type MembershipStatus string

const (
	// MembershipPending awaits invite acceptance.
	MembershipPending MembershipStatus = "PENDING"
	// MembershipActive is a live membership.
	MembershipActive MembershipStatus = "ACTIVE"
	// MembershipDisabled is a soft-deleted membership.
	MembershipDisabled MembershipStatus = "DISABLED"
)

// Valid reports whether s is a recognized membership status.
func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipPending, MembershipActive, MembershipDisabled:
		return true
	}
	return false
}

// Organization is a tenant root
type Organization struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug,omitempty"`
	Plan           string    `json:"plan"`
	CustomerID     string    `json:"customer_id,omitempty"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	ProductID      string    `json:"product_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Workspace is a sub-tenant unit inside an organization
type Workspace struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	IsPersonal     bool      `json:"is_personal"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OrganizationUser binds a user to an organization with a role. IsOwner is a
// flag, not a role; ownership does not imply any specific role.
type OrganizationUser struct {
	ID             int64            `json:"id"`
	OrganizationID int64            `json:"organization_id"`
	UserID         int64            `json:"user_id"`
	RoleID         *int64           `json:"role_id,omitempty"`
	IsOwner        bool             `json:"is_owner"`
	Status         MembershipStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// WorkspaceUser binds a user to a workspace with a role
type WorkspaceUser struct {
	ID          int64            `json:"id"`
	WorkspaceID int64            `json:"workspace_id"`
	UserID      int64            `json:"user_id"`
	RoleID      *int64           `json:"role_id,omitempty"`
	Status      MembershipStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Invite is a time-boxed, single-use token granting a named email the right
// to join an organization or workspace with a given role
type Invite struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	OrganizationID *int64     `json:"organization_id,omitempty"`
	WorkspaceID    *int64     `json:"workspace_id,omitempty"`
	RoleID         *int64     `json:"role_id,omitempty"`
	Token          string     `json:"token"`
	InvitedBy      *int64     `json:"invited_by,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Accepted reports whether the invite has been consumed.
func (i *Invite) Accepted() bool {
	return i.AcceptedAt != nil
}

// Expired reports whether the invite is past its validity window.
func (i *Invite) Expired() bool {
	return time.Now().After(i.ExpiresAt)
}
