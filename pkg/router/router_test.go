package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/logger"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jwtSecret  = "router-test-secret"
	cronSecret = "cron-secret"
	owner      = "owner@club.example"
	adminEmail = "admin@club.example"
	runner     = "runner@club.example"
	newcomer   = "newcomer@club.example"
)

type testServer struct {
	t       *testing.T
	db      *database.MemoryDatabase
	handler http.Handler
	tokens  *utils.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		Environment:         "test",
		Port:                "3000",
		UseMemoryDB:         true,
		SupabaseJWTSecret:   jwtSecret,
		SessionCookieNames:  []string{"sb-access-token"},
		BreakGlassEmail:     owner,
		CronSecret:          cronSecret,
		MembershipMatchMode: config.MatchExact,
		RequestTimeout:      5 * time.Second,
		UpstreamTimeout:     time.Second,
		AllowedOrigins:      []string{"*"},
		MetricsEnabled:      true,
	}
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	db := database.NewMemoryDatabase()
	require.NoError(t, db.SaveAwardSettings(ctx, &models.AwardSettings{CurrentPhase: models.PhaseNomination, ActiveYear: 2025}))
	require.NoError(t, db.CreateAdmin(ctx, &models.AdminRosterEntry{Email: adminEmail, Role: models.RoleAdmin}))
	require.NoError(t, db.CreateMember(ctx, &models.Member{
		Email:            runner,
		FirstName:        "Robin",
		Surname:          "Runner",
		MembershipStatus: models.MembershipActive,
		Status:           models.ApplicationApproved,
	}))

	return &testServer{
		t:       t,
		db:      db,
		handler: New(cfg, db, logger.Discard()),
		tokens:  utils.NewJWTService(jwtSecret),
	}
}

// do sends a JSON request as email; an empty email sends no credentials.
func (s *testServer) do(method, path, email string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if email != "" {
		token, err := s.tokens.GenerateAccessToken("uid-"+email, email, time.Hour)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) utils.ErrorBody {
	t.Helper()
	var body utils.ErrorBody
	decode(t, rec, &body)
	return body
}

func TestHealthAndFallbacks(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	decode(t, rec, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "memory", health["database"])

	rec = s.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorOf(t, rec).Code)

	rec = s.do(http.MethodDelete, "/api/me", runner, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", errorOf(t, rec).Code)

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionRoutesRequireAuthentication(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/me", "/api/profile", "/api/members", "/api/awards/my-nominations", "/api/admin/manage-admins"} {
		rec := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "UNAUTHORIZED", errorOf(t, rec).Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionFromCookie(t *testing.T) {
	s := newTestServer(t)
	token, err := s.tokens.GenerateAccessToken("uid-runner", runner, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: token})
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMe_ReportsRoleMembershipAndCapabilities(t *testing.T) {
	s := newTestServer(t)

	var me struct {
		Role          models.Role `json:"role"`
		IsAdmin       bool        `json:"is_admin"`
		IsSuperAdmin  bool        `json:"is_super_admin"`
		HasMembership bool        `json:"has_membership"`
		Awards        struct {
			Phase       models.Phase `json:"current_phase"`
			CanNominate bool         `json:"can_nominate"`
			CanVote     bool         `json:"can_vote"`
		} `json:"awards"`
	}

	rec := s.do(http.MethodGet, "/api/me", runner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &me)
	assert.Equal(t, models.RoleNone, me.Role)
	assert.True(t, me.HasMembership)
	assert.Equal(t, models.PhaseNomination, me.Awards.Phase)
	assert.True(t, me.Awards.CanNominate)
	assert.False(t, me.Awards.CanVote)

	rec = s.do(http.MethodGet, "/api/me", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &me)
	assert.Equal(t, models.RoleSuperAdmin, me.Role)
	assert.True(t, me.IsSuperAdmin)
	assert.True(t, me.HasMembership, "break-glass gets a synthetic membership")

	rec = s.do(http.MethodGet, "/api/me", newcomer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &me)
	assert.False(t, me.HasMembership)
	assert.False(t, me.Awards.CanNominate)
}

func TestApplyThenReadProfile(t *testing.T) {
	s := newTestServer(t)
	application := map[string]interface{}{
		"first_name":              "Nia",
		"surname":                 "Newcomer",
		"phone":                   "07700 900123",
		"date_of_birth":           "1990-04-01",
		"address":                 "1 High Street",
		"postcode":                "AB1 2CD",
		"emergency_contact_name":  "Sam",
		"emergency_contact_phone": "07700 900456",
	}

	rec := s.do(http.MethodGet, "/api/profile", newcomer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/applications", newcomer, application)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/profile", newcomer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile models.Member
	decode(t, rec, &profile)
	assert.Equal(t, newcomer, profile.Email)
	assert.Equal(t, "Nia", profile.FirstName)
	assert.Equal(t, models.ApplicationPending, profile.Status)
	assert.Equal(t, models.MembershipPending, profile.MembershipStatus)
	assert.Equal(t, models.MembershipClub, profile.MembershipType)

	rec = s.do(http.MethodPost, "/api/applications", newcomer, application)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CONFLICT", errorOf(t, rec).Code)

	delete(application, "postcode")
	rec = s.do(http.MethodPost, "/api/applications", "another@club.example", application)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec).Error, "postcode is required")
}

func TestApplicationReviewActivatesMembership(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	pending := &models.Member{Email: newcomer, MembershipStatus: models.MembershipPending, Status: models.ApplicationPending}
	require.NoError(t, s.db.CreateMember(ctx, pending))

	rec := s.do(http.MethodGet, "/api/admin/applications", runner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/applications", adminEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var queue []models.Member
	decode(t, rec, &queue)
	require.Len(t, queue, 1)
	assert.Equal(t, newcomer, queue[0].Email)

	rec = s.do(http.MethodPost, "/api/admin/applications/"+pending.ID+"/review", adminEmail, map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved models.Member
	decode(t, rec, &approved)
	assert.Equal(t, models.ApplicationApproved, approved.Status)
	assert.Equal(t, models.MembershipActive, approved.MembershipStatus)
	assert.NotNil(t, approved.MembershipExpiry)

	rec = s.do(http.MethodPost, "/api/admin/applications/missing/review", adminEmail, map[string]string{"action": "approve"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfile_OtherMembersAreAdminOnly(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/profile?email="+runner, newcomer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/profile?email="+runner, adminEmail, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfileUpdate_FlagsPendingReview(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPatch, "/api/profile", runner, map[string]interface{}{"phone": "01234 567890", "email": "ignored@x.example"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var m models.Member
	decode(t, rec, &m)
	assert.Equal(t, "01234 567890", m.Phone)
	assert.Equal(t, runner, m.Email)
	assert.True(t, m.PendingUpdate)

	rec = s.do(http.MethodPatch, "/api/profile", runner, map[string]interface{}{"membership_status": "active"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMembersDirectoryIsAdminOnly(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/members", runner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorOf(t, rec).Code)

	rec = s.do(http.MethodGet, "/api/members", adminEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.MemberDirectoryEntry
	decode(t, rec, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "Robin", entries[0].FirstName)
}

func TestMembershipCheck(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	lapsed := models.NewDate(time.Now().AddDate(0, 0, -3))
	require.NoError(t, s.db.CreateMember(ctx, &models.Member{
		Email:            "lapsed@club.example",
		MembershipStatus: models.MembershipActive,
		MembershipExpiry: &lapsed,
	}))

	rec := s.do(http.MethodGet, "/api/membership-check", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/membership-check?secret=wrong", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/membership-check?secret="+cronSecret, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result struct {
		Expired int      `json:"expired"`
		IDs     []string `json:"ids"`
	}
	decode(t, rec, &result)
	assert.Equal(t, 1, result.Expired)

	m, err := s.db.GetMemberByEmail(ctx, "lapsed@club.example")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipExpired, m.MembershipStatus)

	rec = s.do(http.MethodGet, "/api/membership-check?secret="+cronSecret, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &result)
	assert.Equal(t, 0, result.Expired)
}

func TestManageAdmins(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/admin/manage-admins", adminEmail, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/manage-admins", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var roster []struct {
		Email      string      `json:"email"`
		Role       models.Role `json:"role"`
		BreakGlass bool        `json:"break_glass"`
	}
	decode(t, rec, &roster)
	require.Len(t, roster, 2)
	var sawBreakGlass bool
	for _, e := range roster {
		if e.Email == owner {
			sawBreakGlass = e.BreakGlass && e.Role == models.RoleSuperAdmin
		}
	}
	assert.True(t, sawBreakGlass)

	rec = s.do(http.MethodPost, "/api/admin/manage-admins", owner, map[string]string{"email": "Ed@Club.Example", "role": "editor"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/admin/manage-admins", owner, map[string]string{"email": "ed@club.example", "role": "editor"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/admin/manage-admins", owner, map[string]string{"email": "x@club.example", "role": "overlord"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/api/admin/manage-admins", owner, map[string]string{"email": "ed@club.example", "role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	entry, err := s.db.GetAdminByEmail(context.Background(), "ed@club.example")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, entry.Role)

	rec = s.do(http.MethodDelete, "/api/admin/manage-admins?email="+owner, owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec).Error, "cannot be removed")

	rec = s.do(http.MethodPut, "/api/admin/manage-admins", owner, map[string]string{"email": owner, "role": "member"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/api/admin/manage-admins?email=ed@club.example", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = s.db.GetAdminByEmail(context.Background(), "ed@club.example")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAwardsSettings(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/awards/public-settings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var public models.PublicAwardSettings
	decode(t, rec, &public)
	assert.Equal(t, models.PhaseNomination, public.CurrentPhase)
	assert.Equal(t, 2025, public.ActiveYear)

	rec = s.do(http.MethodGet, "/api/awards/settings", runner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/awards/settings", adminEmail, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPut, "/api/awards/settings", adminEmail, map[string]string{"current_phase": "voting"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPut, "/api/awards/settings", owner, map[string]string{"nomination_end_date": "2025-13-45"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorOf(t, rec).Code)

	stored, err := s.db.GetAwardSettings(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored.NominationEndDate)
	assert.Equal(t, models.PhaseNomination, stored.CurrentPhase)

	rec = s.do(http.MethodPatch, "/api/awards/settings", owner, map[string]string{"current_phase": "voting", "voting_start_date": "2025-10-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.AwardSettings
	decode(t, rec, &updated)
	assert.Equal(t, models.PhaseVoting, updated.CurrentPhase)
	require.NotNil(t, updated.VotingStartDate)
	assert.Equal(t, "2025-10-01", updated.VotingStartDate.String())
}

func TestPublicSettingsDefaultsWhenUnconfigured(t *testing.T) {
	s := newTestServer(t)

	fresh := database.NewMemoryDatabase()
	s.handler = New(&config.Config{
		Environment:         "test",
		SupabaseJWTSecret:   jwtSecret,
		MembershipMatchMode: config.MatchExact,
		RequestTimeout:      5 * time.Second,
		AllowedOrigins:      []string{"*"},
	}, fresh, logger.Discard())

	rec := s.do(http.MethodGet, "/api/awards/public-settings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var public models.PublicAwardSettings
	decode(t, rec, &public)
	assert.Equal(t, models.PhaseSetup, public.CurrentPhase)

	rec = s.do(http.MethodGet, "/api/awards/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAwardsFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/awards/categories/manage", adminEmail, map[string]string{"name": "Clubman"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/awards/categories/manage", owner, map[string]string{"name": "Most Improved", "description": "Biggest step forward"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var category models.AwardCategory
	decode(t, rec, &category)
	require.NotEmpty(t, category.ID)

	rec = s.do(http.MethodGet, "/api/awards/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var categories []models.AwardCategory
	decode(t, rec, &categories)
	assert.Len(t, categories, 1)

	nomination := map[string]string{
		"category_id":   category.ID,
		"nominee_email": "sam@club.example",
		"nominee_name":  "Sam",
		"reason":        "Turned up to every parkrun this year",
	}

	rec = s.do(http.MethodPost, "/api/awards/nominations", newcomer, nomination)
	assert.Equal(t, http.StatusForbidden, rec.Code, "no membership")

	rec = s.do(http.MethodPost, "/api/awards/nominations", runner, nomination)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.AwardNomination
	decode(t, rec, &created)
	assert.Equal(t, models.NominationPending, created.Status)

	rec = s.do(http.MethodPost, "/api/awards/nominations", runner, nomination)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CONFLICT", errorOf(t, rec).Code)

	rec = s.do(http.MethodGet, "/api/awards/my-nominations", runner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []models.AwardNomination
	decode(t, rec, &mine)
	assert.Len(t, mine, 1)

	// categories with nominations cannot be removed
	rec = s.do(http.MethodDelete, "/api/awards/categories/manage?id="+category.ID, owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CONFLICT", errorOf(t, rec).Code)

	rec = s.do(http.MethodGet, "/api/awards/nominations-review", runner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/awards/nominations-review", adminEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var queue []models.AwardNomination
	decode(t, rec, &queue)
	require.Len(t, queue, 1)

	rec = s.do(http.MethodPost, "/api/awards/nominations-review", adminEmail, map[string]string{"nomination_id": created.ID, "action": "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/awards/nominations", runner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ballot []models.AwardNomination
	decode(t, rec, &ballot)
	require.Len(t, ballot, 1)
	assert.Equal(t, models.NominationApproved, ballot[0].Status)

	// voting only opens with the phase
	rec = s.do(http.MethodPost, "/api/awards/votes", runner, map[string]string{"nomination_id": created.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/api/awards/settings", owner, map[string]string{"current_phase": "voting"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/awards/votes", runner, map[string]string{"nomination_id": created.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/awards/votes", runner, map[string]string{"nomination_id": created.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec).Error, "already voted")

	rec = s.do(http.MethodGet, "/api/awards/votes/my-votes", runner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var votes []models.AwardVote
	decode(t, rec, &votes)
	assert.Len(t, votes, 1)

	rec = s.do(http.MethodGet, "/api/awards/votes", runner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "results are hidden until completed")

	rec = s.do(http.MethodGet, "/api/awards/votes", adminEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tallies []models.VoteTally
	decode(t, rec, &tallies)
	require.Len(t, tallies, 1)
	assert.Equal(t, 1, tallies[0].Votes)

	rec = s.do(http.MethodGet, "/api/awards/votes?year=twenty", adminEmail, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUnusedCategory(t *testing.T) {
	s := newTestServer(t)
	c := &models.AwardCategory{Name: "Unused"}
	require.NoError(t, s.db.CreateCategory(context.Background(), c))

	rec := s.do(http.MethodDelete, "/api/awards/categories/manage", owner, map[string]string{"id": c.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodDelete, "/api/awards/categories/manage?id="+c.ID, owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestsWithBodiesMustBeJSON(t *testing.T) {
	s := newTestServer(t)
	token, err := s.tokens.GenerateAccessToken("uid", runner, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/applications", bytes.NewBufferString("first_name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
