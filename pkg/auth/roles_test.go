package auth

import (
	"context"
	"errors"
	"testing"

	"runclub-backend/pkg/database"
	"runclub-backend/pkg/logger"
	"runclub-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRoster returns canned roster answers.
type stubRoster struct {
	entry *models.AdminRosterEntry
	err   error
	calls int
}

func (s *stubRoster) GetAdminByEmail(ctx context.Context, email string) (*models.AdminRosterEntry, error) {
	s.calls++
	return s.entry, s.err
}

const breakGlass = "owner@club.example"

func TestRoleResolver_BreakGlassAlwaysSuperAdmin(t *testing.T) {
	rosters := map[string]*stubRoster{
		"roster error":  {err: errors.New("connection refused")},
		"setup missing": {err: database.ErrSetupRequired},
		"not listed":    {err: database.ErrNotFound},
		"listed lower":  {entry: &models.AdminRosterEntry{Email: breakGlass, Role: models.RoleEditor}},
		"garbage role":  {entry: &models.AdminRosterEntry{Email: breakGlass, Role: "superuser"}},
	}
	for name, roster := range rosters {
		t.Run(name, func(t *testing.T) {
			r := NewRoleResolver(roster, breakGlass, logger.Discard())
			for _, email := range []string{breakGlass, "OWNER@Club.Example", "  owner@club.example "} {
				role, err := r.Resolve(context.Background(), email)
				require.NoError(t, err)
				assert.Equal(t, models.RoleSuperAdmin, role)
			}
		})
	}
}

func TestRoleResolver_ExactRoleMatch(t *testing.T) {
	cases := map[models.Role]models.Role{
		"super_admin":     models.RoleSuperAdmin,
		"admin":           models.RoleAdmin,
		"Editor":          models.RoleEditor,
		"member":          models.RoleMember,
		"superintendent":  models.RoleNone,
		"administrator":   models.RoleNone,
		"not_super_admin": models.RoleNone,
	}
	for stored, want := range cases {
		roster := &stubRoster{entry: &models.AdminRosterEntry{Email: "x@club.example", Role: stored}}
		role, err := NewRoleResolver(roster, breakGlass, logger.Discard()).Resolve(context.Background(), "x@club.example")
		require.NoError(t, err)
		assert.Equal(t, want, role, "stored role %q", stored)
	}
}

func TestRoleResolver_RosterErrorDenies(t *testing.T) {
	roster := &stubRoster{err: errors.New("timeout")}
	role, err := NewRoleResolver(roster, breakGlass, logger.Discard()).Resolve(context.Background(), "someone@club.example")
	assert.Error(t, err)
	assert.Equal(t, models.RoleNone, role)
}

func TestRoleResolver_NotListed(t *testing.T) {
	roster := &stubRoster{err: database.ErrNotFound}
	role, err := NewRoleResolver(roster, "", logger.Discard()).Resolve(context.Background(), "runner@club.example")
	require.NoError(t, err)
	assert.Equal(t, models.RoleNone, role)
}

func TestRequireRole(t *testing.T) {
	editor := &Access{Role: models.RoleEditor}

	d := RequireRole(editor, models.RoleEditor)
	assert.True(t, d.Allowed)
	assert.NoError(t, d.Err())

	d = RequireRole(editor, models.RoleAdmin)
	assert.False(t, d.Allowed)
	assert.Equal(t, models.RoleAdmin, d.Required)
	assert.ErrorContains(t, d.Err(), "admin")

	assert.False(t, RequireRole(nil, models.RoleMember).Allowed)
	assert.True(t, RequireRole(&Access{Role: models.RoleSuperAdmin}, models.RoleAdmin).Allowed)
}
