package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"runclub-backend/pkg/logger"
	"runclub-backend/pkg/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPostgresMock(t *testing.T) (*PostgresDatabase, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	cleanup := func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
	return NewPostgresDatabaseFromDB(db, logger.Discard()), mock, cleanup
}

var memberRowColumns = []string{
	"id", "email", "first_name", "surname", "phone", "date_of_birth", "address", "postcode",
	"emergency_contact_name", "emergency_contact_phone", "membership_type", "membership_status",
	"membership_expiry", "payment_status", "signature_url", "photo_consent", "newsletter_opt_in",
	"directory_opt_out", "pending_update", "status", "created_at", "updated_at",
}

func memberRow(rows *sqlmock.Rows, id, email string, expiry interface{}) *sqlmock.Rows {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return rows.AddRow(id, email, "Ann", "Lee", "", "", "", "", "", "",
		"club", "active", expiry, "paid", "", true, false, false, false, "approved", now, now)
}

func TestPostgres_GetMemberByEmail(t *testing.T) {
	db, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	expiry := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM members WHERE lower\(email\) = \$1`).
		WithArgs("ann@club.example").
		WillReturnRows(memberRow(sqlmock.NewRows(memberRowColumns), "m1", "Ann@Club.Example", expiry))

	m, err := db.GetMemberByEmail(context.Background(), " ANN@club.example ")
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, models.MembershipActive, m.MembershipStatus)
	require.NotNil(t, m.MembershipExpiry)
	assert.Equal(t, "2026-03-31", m.MembershipExpiry.String())
}

func TestPostgres_GetMemberByEmail_NotFound(t *testing.T) {
	db, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(`FROM members WHERE lower\(email\)`).
		WithArgs("nobody@club.example").
		WillReturnRows(sqlmock.NewRows(memberRowColumns))

	_, err := db.GetMemberByEmail(context.Background(), "nobody@club.example")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_UpdateMemberBuildsSortedSet(t *testing.T) {
	db, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE members SET first_name=$1, surname=$2, updated_at=NOW() WHERE id=$3 RETURNING`)).
		WithArgs("Jo", "Bloggs", "m1").
		WillReturnRows(memberRow(sqlmock.NewRows(memberRowColumns), "m1", "jo@club.example", nil))

	m, err := db.UpdateMember(context.Background(), "m1", map[string]interface{}{
		"surname":    "Bloggs",
		"first_name": "Jo",
	})
	require.NoError(t, err)
	assert.Nil(t, m.MembershipExpiry)
}

func TestPostgres_UpdateMemberRejectsUnknownColumn(t *testing.T) {
	db, _, cleanup := setupPostgresMock(t)
	defer cleanup()

	_, err := db.UpdateMember(context.Background(), "m1", map[string]interface{}{"email": "x@y.z"})
	assert.ErrorContains(t, err, "cannot be updated")
}

func TestPostgres_CreateVoteDuplicate(t *testing.T) {
	db, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(`INSERT INTO award_votes`).
		WithArgs("nom-1", "cat-1", "voter@club.example", 2025).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := db.CreateVote(context.Background(), &models.AwardVote{
		NominationID: "nom-1", CategoryID: "cat-1", VoterEmail: "Voter@Club.Example", AwardYear: 2025,
	})
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestPostgres_CreateVote(t *testing.T) {
	db, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO award_votes`).
		WithArgs("nom-1", "cat-1", "voter@club.example", 2025).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("v1", created))

	v := &models.AwardVote{NominationID: "nom-1", CategoryID: "cat-1", VoterEmail: "voter@club.example", AwardYear: 2025}
	require.NoError(t, db.CreateVote(context.Background(), v))
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, created, v.CreatedAt)
}

func TestPostgres_DeleteCategory(t *testing.T) {
	t.Run("referenced", func(t *testing.T) {
		db, mock, cleanup := setupPostgresMock(t)
		defer cleanup()
		mock.ExpectExec(`DELETE FROM award_categories`).
			WithArgs("cat-1").
			WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})
		assert.ErrorIs(t, db.DeleteCategory(context.Background(), "cat-1"), ErrReferenced)
	})

	t.Run("missing", func(t *testing.T) {
		db, mock, cleanup := setupPostgresMock(t)
		defer cleanup()
		mock.ExpectExec(`DELETE FROM award_categories`).
			WithArgs("cat-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, db.DeleteCategory(context.Background(), "cat-1"), ErrNotFound)
	})

	t.Run("deleted", func(t *testing.T) {
		db, mock, cleanup := setupPostgresMock(t)
		defer cleanup()
		mock.ExpectExec(`DELETE FROM award_categories`).
			WithArgs("cat-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, db.DeleteCategory(context.Background(), "cat-1"))
	})
}

func TestPostgres_GetAwardSettingsSetupRequired(t *testing.T) {
	db, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(`FROM award_settings`).
		WillReturnError(&pq.Error{Code: "42P01", Message: `relation "award_settings" does not exist`})

	_, err := db.GetAwardSettings(context.Background())
	assert.True(t, IsSetupRequired(err))
}

func TestPostgres_ListNominationsFilters(t *testing.T) {
	db, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	cols := []string{"id", "category_id", "nominee_email", "nominee_name", "nominator_email", "reason",
		"status", "award_year", "admin_note", "created_at", "updated_at"}
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE status = $1 AND award_year = $2 ORDER BY created_at`)).
		WithArgs(models.NominationApproved, 2025).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("n1", "cat-1", "b@club.example", "Bea", "a@club.example", "great pacer", "approved", 2025, "", now, now))

	list, err := db.ListNominations(context.Background(), models.NominationFilter{
		Status: models.NominationApproved, AwardYear: 2025,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Bea", list[0].NomineeName)
}

func TestPostgres_ExpireMemberships(t *testing.T) {
	db, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	asOf := models.NewDate(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	mock.ExpectQuery(`UPDATE members SET membership_status = 'expired'`).
		WithArgs(asOf).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m2").AddRow("m1"))

	ids, err := db.ExpireMemberships(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)
}

func TestPostgres_TunePool(t *testing.T) {
	db, _, cleanup := setupPostgresMock(t)
	defer cleanup()

	db.TunePool()
	assert.Equal(t, 20, db.DB().Stats().MaxOpenConnections)
}
