package auth

import (
	"context"
	"errors"

	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"
)

// Access is everything known about an authenticated caller.
type Access struct {
	User *models.User
	Role models.Role
	// Member is nil when the caller has no membership.
	Member *models.Member
	// membershipResolved distinguishes "no membership" from "not looked up yet".
	membershipResolved bool
}

// Email returns the caller's normalized email.
func (a *Access) Email() string {
	if a == nil || a.User == nil {
		return ""
	}
	return models.NormalizeEmail(a.User.Email)
}

// IsAdmin reports whether the caller is admin or super_admin.
func (a *Access) IsAdmin() bool {
	return a != nil && a.Role.IsAdmin()
}

// HasMembership reports whether a usable member record was found.
func (a *Access) HasMembership() bool {
	return a != nil && a.Member != nil && a.Member.Usable()
}

// Authorizer combines the role and membership resolvers into one policy entry point.
type Authorizer struct {
	Roles      *RoleResolver
	Membership *MembershipResolver
}

func NewAuthorizer(roles *RoleResolver, membership *MembershipResolver) *Authorizer {
	return &Authorizer{Roles: roles, Membership: membership}
}

// Access resolves the caller's role. Membership is looked up on demand.
func (z *Authorizer) Access(ctx context.Context, user *models.User) (*Access, error) {
	if user == nil {
		return nil, utils.WrapError(utils.KindUnauthenticated, ErrNotAuthenticated, "Authentication required")
	}
	role, err := z.Roles.Resolve(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	return &Access{User: user, Role: role}, nil
}

// ResolveMembership fills access.Member. A missing membership is not an error.
func (z *Authorizer) ResolveMembership(ctx context.Context, access *Access) error {
	if access.membershipResolved {
		return nil
	}
	member, err := z.Membership.Resolve(ctx, access.Email(), access.Role)
	switch {
	case errors.Is(err, ErrNoMembership):
		access.Member = nil
	case err != nil:
		return err
	default:
		access.Member = member
	}
	access.membershipResolved = true
	return nil
}

// RequireMembership resolves membership and fails with 403 when there is none.
func (z *Authorizer) RequireMembership(ctx context.Context, access *Access) (*models.Member, error) {
	if err := z.ResolveMembership(ctx, access); err != nil {
		return nil, err
	}
	if access.Member == nil {
		return nil, utils.Forbidden("An active club membership is required")
	}
	if !access.Member.Usable() {
		return nil, utils.Forbidden("Your membership is " + string(access.Member.MembershipStatus))
	}
	return access.Member, nil
}
