package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"runclub-backend/pkg/database"
	"runclub-backend/pkg/metrics"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// RosterStore is the slice of the store the role resolver needs.
type RosterStore interface {
	GetAdminByEmail(ctx context.Context, email string) (*models.AdminRosterEntry, error)
}

// RoleResolver 通过管理员名册确定调用者角色
type RoleResolver struct {
	roster     RosterStore
	breakGlass string
	log        logrus.FieldLogger
}

func NewRoleResolver(roster RosterStore, breakGlassEmail string, log logrus.FieldLogger) *RoleResolver {
	return &RoleResolver{
		roster:     roster,
		breakGlass: models.NormalizeEmail(breakGlassEmail),
		log:        log,
	}
}

// IsBreakGlass reports whether email is the configured break-glass account.
func (r *RoleResolver) IsBreakGlass(email string) bool {
	return r.breakGlass != "" && models.NormalizeEmail(email) == r.breakGlass
}

// Resolve returns the caller's role. Callers missing from the roster get RoleNone.
// The break-glass account is super_admin whatever the roster says, even when the
// roster cannot be read. For everyone else a roster failure is returned as an error.
func (r *RoleResolver) Resolve(ctx context.Context, email string) (models.Role, error) {
	if r.IsBreakGlass(email) {
		return models.RoleSuperAdmin, nil
	}

	start := time.Now()
	entry, err := r.roster.GetAdminByEmail(ctx, email)
	metrics.ObserveStore("roster_lookup", start)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.RoleNone, nil
		}
		return models.RoleNone, fmt.Errorf("roster lookup failed: %w", err)
	}

	role := models.ParseRole(string(entry.Role))
	if role == models.RoleNone && entry.Role != "" {
		r.log.WithField("email", entry.Email).WithField("role", entry.Role).Warn("Unknown roster role, treating as none")
	}
	return role, nil
}

// Decision is the outcome of a role requirement check.
type Decision struct {
	Allowed  bool
	Role     models.Role
	Required models.Role
}

// Err converts a denied decision into a 403.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return utils.Forbidden(fmt.Sprintf("This action requires the %s role", d.Required))
}

// RequireRole checks access against a minimum role.
// Rank: none < member < editor < admin < super_admin.
func RequireRole(access *Access, min models.Role) Decision {
	role := models.RoleNone
	if access != nil {
		role = access.Role
	}
	return Decision{Allowed: role.AtLeast(min), Role: role, Required: min}
}
