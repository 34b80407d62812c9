package orgs

import (
	"context"
	"database/sql"
	"time"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// Service orchestrates tenant setup, invite, and membership flows
type Service struct {
	db       *sql.DB
	store    *Store
	members  *MemberStore
	invites  *InviteStore
	users    *identity.Store
	delivery InviteDelivery
	logger   *observability.Logger

	inviteTTL     time.Duration
	inviteBaseURL string
}

// NewService creates an organization service
func NewService(
	db *sql.DB,
	store *Store,
	members *MemberStore,
	invites *InviteStore,
	users *identity.Store,
	delivery InviteDelivery,
	logger *observability.Logger,
	inviteTTL time.Duration,
	inviteBaseURL string,
) *Service {
	if inviteTTL <= 0 {
		inviteTTL = DefaultInviteTTL
	}
	return &Service{
		db:            db,
		store:         store,
		members:       members,
		invites:       invites,
		users:         users,
		delivery:      delivery,
		logger:        logger,
		inviteTTL:     inviteTTL,
		inviteBaseURL: inviteBaseURL,
	}
}

// SetupOrganizationRequest creates a tenant with its first owner
type SetupOrganizationRequest struct {
	Name       string `json:"name"`
	OwnerEmail string `json:"owner_email"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

// SetupOrganizationResult is the outcome of a tenant setup
type SetupOrganizationResult struct {
	Organization *Organization  `json:"organization"`
	Workspace    *Workspace     `json:"workspace"`
	Owner        *identity.User `json:"owner"`
	Invite       *Invite        `json:"invite,omitempty"`
}

// SetupOrganization creates an organization, its default workspace, and the
// owner membership in one transaction. A brand-new owner account is created
// PENDING with an invite; an existing active user becomes owner directly.
func (s *Service) SetupOrganization(ctx context.Context, req SetupOrganizationRequest) (*SetupOrganizationResult, error) {
	if req.Name == "" {
		return nil, errs.NewValidation("name", "is required")
	}
	if req.OwnerEmail == "" {
		return nil, errs.NewValidation("owner_email", "is required")
	}

	result := &SetupOrganizationResult{}
	err := postgres.Transact(ctx, s.db, func(tx *sql.Tx) error {
		store := s.store.WithTx(tx)
		members := s.members.WithTx(tx)
		invites := s.invites.WithTx(tx)
		users := s.users.WithTx(tx)

		org := &Organization{Name: req.Name}
		if err := store.CreateOrganization(ctx, org); err != nil {
			return err
		}
		result.Organization = org

		ws := &Workspace{OrganizationID: org.ID, Name: "Default", IsPersonal: false}
		if err := store.CreateWorkspace(ctx, ws); err != nil {
			return err
		}
		result.Workspace = ws

		owner, err := users.GetUserByEmail(ctx, req.OwnerEmail)
		if errs.IsNotFound(err) {
			owner = &identity.User{
				Email:     req.OwnerEmail,
				FirstName: req.FirstName,
				LastName:  req.LastName,
				Status:    identity.StatusPending,
			}
			if err := users.CreateUser(ctx, owner); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		result.Owner = owner

		memberStatus := MembershipActive
		if owner.Status == identity.StatusPending {
			memberStatus = MembershipPending

			invite := &Invite{
				Email:          owner.Email,
				OrganizationID: &org.ID,
				ExpiresAt:      time.Now().Add(s.inviteTTL),
			}
			if err := invites.CreateInvite(ctx, invite); err != nil {
				return err
			}
			result.Invite = invite
		}

		membership := &OrganizationUser{
			OrganizationID: org.ID,
			UserID:         owner.ID,
			IsOwner:        true,
			Status:         memberStatus,
		}
		return members.AddOrganizationUser(ctx, membership)
	})
	if err != nil {
		return nil, err
	}

	if result.Invite != nil {
		s.deliver(ctx, result.Invite)
	}
	return result, nil
}

// InviteRequest asks to invite an email into an organization or workspace
type InviteRequest struct {
	Email          string `json:"email"`
	OrganizationID *int64 `json:"organization_id,omitempty"`
	WorkspaceID    *int64 `json:"workspace_id,omitempty"`
	RoleID         *int64 `json:"role_id,omitempty"`
	InvitedBy      *int64 `json:"invited_by,omitempty"`
}

// InviteUser creates an invite and, when the email already belongs to a
// user, a PENDING membership alongside it.
func (s *Service) InviteUser(ctx context.Context, req InviteRequest) (*Invite, error) {
	if req.Email == "" {
		return nil, errs.NewValidation("email", "is required")
	}
	if req.OrganizationID == nil && req.WorkspaceID == nil {
		return nil, errs.NewValidation("target", "organization_id or workspace_id is required")
	}

	invite := &Invite{
		Email:          req.Email,
		OrganizationID: req.OrganizationID,
		WorkspaceID:    req.WorkspaceID,
		RoleID:         req.RoleID,
		InvitedBy:      req.InvitedBy,
		ExpiresAt:      time.Now().Add(s.inviteTTL),
	}

	err := postgres.Transact(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.invites.WithTx(tx).CreateInvite(ctx, invite); err != nil {
			return err
		}

		user, err := s.users.WithTx(tx).GetUserByEmail(ctx, invite.Email)
		if errs.IsNotFound(err) {
			return nil // membership is created on acceptance
		}
		if err != nil {
			return err
		}

		members := s.members.WithTx(tx)
		if req.OrganizationID != nil {
			err := members.AddOrganizationUser(ctx, &OrganizationUser{
				OrganizationID: *req.OrganizationID,
				UserID:         user.ID,
				RoleID:         req.RoleID,
				Status:         MembershipPending,
			})
			if err != nil && !errs.IsConflict(err) {
				return err
			}
		}
		if req.WorkspaceID != nil {
			err := members.AddWorkspaceUser(ctx, &WorkspaceUser{
				WorkspaceID: *req.WorkspaceID,
				UserID:      user.ID,
				RoleID:      req.RoleID,
				Status:      MembershipPending,
			})
			if err != nil && !errs.IsConflict(err) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, invite)
	return invite, nil
}

// AcceptInvite consumes an invite: the row is locked, accepted_at is stamped
// once, the invited user is created or activated, and the pending membership
// flips to ACTIVE. A second acceptance of the same invite conflicts; an
// expired invite is gone.
func (s *Service) AcceptInvite(ctx context.Context, token string) (*identity.User, error) {
	if token == "" {
		return nil, errs.NewValidation("token", "is required")
	}

	var user *identity.User
	err := postgres.Transact(ctx, s.db, func(tx *sql.Tx) error {
		invites := s.invites.WithTx(tx)
		members := s.members.WithTx(tx)
		users := s.users.WithTx(tx)

		invite, err := invites.GetInviteByTokenForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if invite.Accepted() {
			return errs.NewConflict("invite has already been accepted")
		}
		if invite.Expired() {
			return errs.NewExpired("invite")
		}

		user, err = users.GetUserByEmail(ctx, invite.Email)
		if errs.IsNotFound(err) {
			user = &identity.User{Email: invite.Email, Status: identity.StatusActive}
			if err := users.CreateUser(ctx, user); err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else if user.Status == identity.StatusPending {
			if err := users.SetStatus(ctx, user.ID, identity.StatusActive); err != nil {
				return err
			}
			user.Status = identity.StatusActive
		}

		if err := invites.MarkAccepted(ctx, invite.ID); err != nil {
			return err
		}

		if invite.OrganizationID != nil {
			if err := s.activateOrgMembership(ctx, members, *invite.OrganizationID, user.ID, invite.RoleID); err != nil {
				return err
			}
		}
		if invite.WorkspaceID != nil {
			if err := s.activateWorkspaceMembership(ctx, members, *invite.WorkspaceID, user.ID, invite.RoleID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) activateOrgMembership(ctx context.Context, members *MemberStore, orgID, userID int64, roleID *int64) error {
	err := members.SetOrganizationUserStatus(ctx, orgID, userID, MembershipActive)
	if errs.IsNotFound(err) {
		return members.AddOrganizationUser(ctx, &OrganizationUser{
			OrganizationID: orgID,
			UserID:         userID,
			RoleID:         roleID,
			Status:         MembershipActive,
		})
	}
	return err
}

func (s *Service) activateWorkspaceMembership(ctx context.Context, members *MemberStore, workspaceID, userID int64, roleID *int64) error {
	err := members.SetWorkspaceUserStatus(ctx, workspaceID, userID, MembershipActive)
	if errs.IsNotFound(err) {
		return members.AddWorkspaceUser(ctx, &WorkspaceUser{
			WorkspaceID: workspaceID,
			UserID:      userID,
			RoleID:      roleID,
			Status:      MembershipActive,
		})
	}
	return err
}

// RemoveMember soft-deletes an organization membership
func (s *Service) RemoveMember(ctx context.Context, orgID, userID int64) error {
	return s.members.SetOrganizationUserStatus(ctx, orgID, userID, MembershipDisabled)
}

func (s *Service) deliver(ctx context.Context, invite *Invite) {
	if s.delivery == nil {
		return
	}
	acceptURL := BuildAcceptURL(s.inviteBaseURL, invite.Token)
	if err := s.delivery.Deliver(ctx, invite, acceptURL); err != nil {
		s.logger.WithError(err).WithField("invite_id", invite.ID).Warn("invite delivery failed")
	}
}
