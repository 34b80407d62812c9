package sso

import (
	"context"

	"github.com/gatehouse-io/gatehouse/pkg/auth"
	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/sessions"
)

// Provisioner turns a validated provider identity into a local login
// session, creating or activating the user when the adapter allows it.
type Provisioner struct {
	users  *identity.Store
	auth   *auth.Service
	logger *observability.Logger
}

// NewProvisioner creates a provisioner
func NewProvisioner(users *identity.Store, authService *auth.Service, logger *observability.Logger) *Provisioner {
	return &Provisioner{users: users, auth: authService, logger: logger}
}

// Login resolves the asserted identity to a local user and opens a session.
// Unknown users are rejected unless the provider allows just-in-time
// provisioning; rejections read the same as any other failed login.
func (p *Provisioner) Login(ctx context.Context, ident *Identity, autoProvision bool) (*sessions.LoginSession, error) {
	if ident == nil || ident.Email == "" {
		return nil, errs.NewValidation("email", "is required")
	}

	user, err := p.users.GetUserByEmail(ctx, ident.Email)
	switch {
	case errs.IsNotFound(err):
		if !autoProvision {
			return nil, errs.NewAuthentication("invalid credentials")
		}
		user = &identity.User{
			Email:         ident.Email,
			FirstName:     ident.FirstName,
			LastName:      ident.LastName,
			EmailVerified: true,
			Status:        identity.StatusActive,
		}
		if err := p.users.CreateUser(ctx, user); err != nil {
			return nil, err
		}
		p.logger.WithField("provider", ident.Provider).WithField("user_id", user.ID).
			Info("provisioned user from sso login")

	case err != nil:
		return nil, err

	default:
		switch user.Status {
		case identity.StatusDisabled:
			return nil, errs.NewAuthentication("invalid credentials")
		case identity.StatusPending:
			// The IdP asserted ownership of the address; that satisfies
			// the same check an invite acceptance would.
			if err := p.users.SetStatus(ctx, user.ID, identity.StatusActive); err != nil {
				return nil, err
			}
			user.Status = identity.StatusActive
		}
	}

	return p.auth.CreateSessionForUser(ctx, user.ID)
}
