package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"runclub-backend/pkg/models"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string, log logrus.FieldLogger) (*PostgresDatabase, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	// 尝试多种连接策略（无服务器环境下直连偶尔失败）
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&connect_timeout=10"),
		dsn, // 最后尝试原始DSN
	}

	var lastErr error
	for i, strategy := range strategies {
		entry := log.WithField("strategy", i+1)

		db, err := sql.Open("postgres", strategy)
		if err != nil {
			entry.WithError(err).Warn("PostgreSQL open failed")
			lastErr = err
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err != nil {
			entry.WithError(err).Warn("PostgreSQL ping failed")
			db.Close()
			lastErr = err
			continue
		}

		entry.Info("PostgreSQL connection established")
		return &PostgresDatabase{db: db, log: log}, nil
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL with all strategies: %w", lastErr)
}

// NewPostgresDatabaseFromDB wraps an existing handle.
func NewPostgresDatabaseFromDB(db *sql.DB, log logrus.FieldLogger) *PostgresDatabase {
	return &PostgresDatabase{db: db, log: log}
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}

	return dsn + separator + params
}

// TunePool 调整应用侧连接池参数（长驻进程使用）
func (db *PostgresDatabase) TunePool() {
	db.db.SetMaxOpenConns(20)
	db.db.SetMaxIdleConns(10)
	db.db.SetConnMaxLifetime(5 * time.Minute)
	db.db.SetConnMaxIdleTime(2 * time.Minute)
}

// DB exposes the underlying handle, e.g. for migrations.
func (db *PostgresDatabase) DB() *sql.DB {
	return db.db
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// buildUpdate builds "col=$1, col=$2, updated_at=NOW()" from a whitelisted patch.
// Keys are sorted so the statement text is stable.
func buildUpdate(patch map[string]interface{}, allowed map[string]bool) (string, []interface{}, error) {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		if !allowed[k] {
			return "", nil, fmt.Errorf("column %q cannot be updated", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	setClauses := make([]string, 0, len(keys)+1)
	args := make([]interface{}, 0, len(keys)+1)
	for i, k := range keys {
		setClauses = append(setClauses, fmt.Sprintf("%s=$%d", k, i+1))
		args = append(args, patch[k])
	}
	// Always bump updated_at
	setClauses = append(setClauses, "updated_at=NOW()")
	return strings.Join(setClauses, ", "), args, nil
}

func toSet(cols []string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

func dateOrNil(t sql.NullTime) *models.Date {
	if !t.Valid {
		return nil
	}
	d := models.NewDate(t.Time)
	return &d
}

// ================= Members =================

const memberColumns = `id, email, first_name, surname, COALESCE(phone,''), COALESCE(date_of_birth,''),
	COALESCE(address,''), COALESCE(postcode,''), COALESCE(emergency_contact_name,''), COALESCE(emergency_contact_phone,''),
	membership_type, membership_status, membership_expiry, COALESCE(payment_status,''), COALESCE(signature_url,''),
	photo_consent, newsletter_opt_in, directory_opt_out, pending_update, status, created_at, updated_at`

var memberUpdatable = toSet(models.AdminEditableFields)

func scanMember(s rowScanner) (*models.Member, error) {
	var m models.Member
	var expiry sql.NullTime
	err := s.Scan(
		&m.ID, &m.Email, &m.FirstName, &m.Surname, &m.Phone, &m.DateOfBirth,
		&m.Address, &m.Postcode, &m.EmergencyContactName, &m.EmergencyContactPhone,
		&m.MembershipType, &m.MembershipStatus, &expiry, &m.PaymentStatus, &m.SignatureURL,
		&m.PhotoConsent, &m.NewsletterOptIn, &m.DirectoryOptOut, &m.PendingUpdate, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classifyPQ(err)
	}
	m.MembershipExpiry = dateOrNil(expiry)
	return &m, nil
}

func (db *PostgresDatabase) queryMembers(ctx context.Context, query string, args ...interface{}) ([]models.Member, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyPQ(err)
	}
	defer rows.Close()

	var list []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, classifyPQ(rows.Err())
}

func (db *PostgresDatabase) CreateMember(ctx context.Context, m *models.Member) error {
	query := `
		INSERT INTO members (email, first_name, surname, phone, date_of_birth, address, postcode,
			emergency_contact_name, emergency_contact_phone, membership_type, membership_status, membership_expiry,
			payment_status, signature_url, photo_consent, newsletter_opt_in, directory_opt_out, pending_update, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRowContext(ctx, query,
		strings.TrimSpace(m.Email), m.FirstName, m.Surname, m.Phone, m.DateOfBirth, m.Address, m.Postcode,
		m.EmergencyContactName, m.EmergencyContactPhone, m.MembershipType, m.MembershipStatus, m.MembershipExpiry,
		m.PaymentStatus, m.SignatureURL, m.PhotoConsent, m.NewsletterOptIn, m.DirectoryOptOut, m.PendingUpdate, m.Status,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", classifyPQ(err))
	}
	return nil
}

func (db *PostgresDatabase) GetMemberByID(ctx context.Context, id string) (*models.Member, error) {
	return scanMember(db.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
}

func (db *PostgresDatabase) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	return scanMember(db.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE lower(email) = $1 LIMIT 1`, models.NormalizeEmail(email)))
}

func (db *PostgresDatabase) SearchMembersByEmail(ctx context.Context, fragment string) ([]models.Member, error) {
	frag := strings.ToLower(strings.TrimSpace(fragment))
	if frag == "" {
		return nil, nil
	}
	return db.queryMembers(ctx,
		`SELECT `+memberColumns+` FROM members WHERE email ILIKE $1 ORDER BY created_at`, "%"+escapeLike(frag)+"%")
}

func (db *PostgresDatabase) ListMembers(ctx context.Context, status models.ApplicationStatus) ([]models.Member, error) {
	if status == "" {
		return db.queryMembers(ctx, `SELECT `+memberColumns+` FROM members ORDER BY created_at`)
	}
	return db.queryMembers(ctx, `SELECT `+memberColumns+` FROM members WHERE status = $1 ORDER BY created_at`, status)
}

func (db *PostgresDatabase) UpdateMember(ctx context.Context, id string, patch map[string]interface{}) (*models.Member, error) {
	set, args, err := buildUpdate(patch, memberUpdatable)
	if err != nil {
		return nil, err
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE members SET %s WHERE id=$%d RETURNING `+memberColumns, set, len(args))
	return scanMember(db.db.QueryRowContext(ctx, query, args...))
}

func (db *PostgresDatabase) DeleteMember(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	return affectedOrNotFound(res, err)
}

func (db *PostgresDatabase) ExpireMemberships(ctx context.Context, asOf models.Date) ([]string, error) {
	rows, err := db.db.QueryContext(ctx, `
		UPDATE members SET membership_status = 'expired', updated_at = NOW()
		WHERE membership_status = 'active' AND membership_expiry < $1
		RETURNING id`, asOf)
	if err != nil {
		return nil, classifyPQ(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, classifyPQ(rows.Err())
}

func affectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return classifyPQ(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= Admin roster =================

const adminColumns = `id, email, role, COALESCE(name,''), created_at, updated_at`

func scanAdmin(s rowScanner) (*models.AdminRosterEntry, error) {
	var e models.AdminRosterEntry
	if err := s.Scan(&e.ID, &e.Email, &e.Role, &e.Name, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classifyPQ(err)
	}
	return &e, nil
}

func (db *PostgresDatabase) GetAdminByEmail(ctx context.Context, email string) (*models.AdminRosterEntry, error) {
	return scanAdmin(db.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admin_roster WHERE email = $1`, models.NormalizeEmail(email)))
}

func (db *PostgresDatabase) ListAdmins(ctx context.Context) ([]models.AdminRosterEntry, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT `+adminColumns+` FROM admin_roster ORDER BY email`)
	if err != nil {
		return nil, classifyPQ(err)
	}
	defer rows.Close()

	var list []models.AdminRosterEntry
	for rows.Next() {
		e, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, classifyPQ(rows.Err())
}

func (db *PostgresDatabase) CreateAdmin(ctx context.Context, entry *models.AdminRosterEntry) error {
	entry.Email = models.NormalizeEmail(entry.Email)
	err := db.db.QueryRowContext(ctx, `
		INSERT INTO admin_roster (email, role, name) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`, entry.Email, entry.Role, entry.Name,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	return classifyPQ(err)
}

func (db *PostgresDatabase) UpdateAdmin(ctx context.Context, entry *models.AdminRosterEntry) error {
	updated, err := scanAdmin(db.db.QueryRowContext(ctx, `
		UPDATE admin_roster SET role = $1, name = $2, updated_at = NOW() WHERE email = $3
		RETURNING `+adminColumns, entry.Role, entry.Name, models.NormalizeEmail(entry.Email)))
	if err != nil {
		return err
	}
	*entry = *updated
	return nil
}

func (db *PostgresDatabase) DeleteAdmin(ctx context.Context, email string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM admin_roster WHERE email = $1`, models.NormalizeEmail(email))
	return affectedOrNotFound(res, err)
}

// ================= Award settings =================

const settingsColumns = `id, current_phase, active_year, nomination_start_date, nomination_end_date,
	voting_start_date, voting_end_date, updated_at`

func scanSettings(s rowScanner) (*models.AwardSettings, error) {
	var out models.AwardSettings
	var ns, ne, vs, ve sql.NullTime
	if err := s.Scan(&out.ID, &out.CurrentPhase, &out.ActiveYear, &ns, &ne, &vs, &ve, &out.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classifyPQ(err)
	}
	out.NominationStartDate = dateOrNil(ns)
	out.NominationEndDate = dateOrNil(ne)
	out.VotingStartDate = dateOrNil(vs)
	out.VotingEndDate = dateOrNil(ve)
	return &out, nil
}

func (db *PostgresDatabase) GetAwardSettings(ctx context.Context) (*models.AwardSettings, error) {
	return scanSettings(db.db.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM award_settings ORDER BY updated_at DESC LIMIT 1`))
}

func (db *PostgresDatabase) SaveAwardSettings(ctx context.Context, s *models.AwardSettings) error {
	var row *sql.Row
	if s.ID == "" {
		row = db.db.QueryRowContext(ctx, `
			INSERT INTO award_settings (current_phase, active_year, nomination_start_date, nomination_end_date,
				voting_start_date, voting_end_date, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			RETURNING `+settingsColumns,
			s.CurrentPhase, s.ActiveYear, s.NominationStartDate, s.NominationEndDate, s.VotingStartDate, s.VotingEndDate)
	} else {
		row = db.db.QueryRowContext(ctx, `
			UPDATE award_settings SET current_phase = $1, active_year = $2, nomination_start_date = $3,
				nomination_end_date = $4, voting_start_date = $5, voting_end_date = $6, updated_at = NOW()
			WHERE id = $7
			RETURNING `+settingsColumns,
			s.CurrentPhase, s.ActiveYear, s.NominationStartDate, s.NominationEndDate, s.VotingStartDate, s.VotingEndDate, s.ID)
	}
	saved, err := scanSettings(row)
	if err != nil {
		return err
	}
	*s = *saved
	return nil
}

// ================= Categories =================

const categoryColumns = `id, name, COALESCE(description,''), created_at`

func scanCategory(s rowScanner) (*models.AwardCategory, error) {
	var c models.AwardCategory
	if err := s.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classifyPQ(err)
	}
	return &c, nil
}

func (db *PostgresDatabase) ListCategories(ctx context.Context) ([]models.AwardCategory, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM award_categories ORDER BY name`)
	if err != nil {
		return nil, classifyPQ(err)
	}
	defer rows.Close()

	var list []models.AwardCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, classifyPQ(rows.Err())
}

func (db *PostgresDatabase) GetCategory(ctx context.Context, id string) (*models.AwardCategory, error) {
	return scanCategory(db.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM award_categories WHERE id = $1`, id))
}

func (db *PostgresDatabase) CreateCategory(ctx context.Context, c *models.AwardCategory) error {
	err := db.db.QueryRowContext(ctx,
		`INSERT INTO award_categories (name, description) VALUES ($1, $2) RETURNING id, created_at`,
		c.Name, c.Description,
	).Scan(&c.ID, &c.CreatedAt)
	return classifyPQ(err)
}

func (db *PostgresDatabase) UpdateCategory(ctx context.Context, c *models.AwardCategory) error {
	updated, err := scanCategory(db.db.QueryRowContext(ctx,
		`UPDATE award_categories SET name = $1, description = $2 WHERE id = $3 RETURNING `+categoryColumns,
		c.Name, c.Description, c.ID))
	if err != nil {
		return err
	}
	*c = *updated
	return nil
}

func (db *PostgresDatabase) DeleteCategory(ctx context.Context, id string) error {
	// FK ON DELETE RESTRICT turns a referenced delete into 23503
	res, err := db.db.ExecContext(ctx, `DELETE FROM award_categories WHERE id = $1`, id)
	return affectedOrNotFound(res, err)
}

// ================= Nominations =================

const nominationColumns = `id, category_id, nominee_email, COALESCE(nominee_name,''), nominator_email, reason,
	status, award_year, COALESCE(admin_note,''), created_at, updated_at`

var nominationUpdatable = toSet([]string{"status", "admin_note", "nominee_name", "reason"})

func scanNomination(s rowScanner) (*models.AwardNomination, error) {
	var n models.AwardNomination
	err := s.Scan(&n.ID, &n.CategoryID, &n.NomineeEmail, &n.NomineeName, &n.NominatorEmail, &n.Reason,
		&n.Status, &n.AwardYear, &n.AdminNote, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classifyPQ(err)
	}
	return &n, nil
}

func (db *PostgresDatabase) CreateNomination(ctx context.Context, n *models.AwardNomination) error {
	err := db.db.QueryRowContext(ctx, `
		INSERT INTO award_nominations (category_id, nominee_email, nominee_name, nominator_email, reason, status, award_year)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		n.CategoryID, n.NomineeEmail, n.NomineeName, models.NormalizeEmail(n.NominatorEmail), n.Reason, n.Status, n.AwardYear,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	return classifyPQ(err)
}

func (db *PostgresDatabase) GetNomination(ctx context.Context, id string) (*models.AwardNomination, error) {
	return scanNomination(db.db.QueryRowContext(ctx, `SELECT `+nominationColumns+` FROM award_nominations WHERE id = $1`, id))
}

func (db *PostgresDatabase) ListNominations(ctx context.Context, filter models.NominationFilter) ([]models.AwardNomination, error) {
	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	add := func(cond string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.AwardYear != 0 {
		add("award_year = $%d", filter.AwardYear)
	}
	if filter.CategoryID != "" {
		add("category_id = $%d", filter.CategoryID)
	}
	if filter.NominatorEmail != "" {
		add("nominator_email = $%d", models.NormalizeEmail(filter.NominatorEmail))
	}

	query := `SELECT ` + nominationColumns + ` FROM award_nominations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyPQ(err)
	}
	defer rows.Close()

	var list []models.AwardNomination
	for rows.Next() {
		n, err := scanNomination(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *n)
	}
	return list, classifyPQ(rows.Err())
}

func (db *PostgresDatabase) UpdateNomination(ctx context.Context, id string, patch map[string]interface{}) (*models.AwardNomination, error) {
	set, args, err := buildUpdate(patch, nominationUpdatable)
	if err != nil {
		return nil, err
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE award_nominations SET %s WHERE id=$%d RETURNING `+nominationColumns, set, len(args))
	return scanNomination(db.db.QueryRowContext(ctx, query, args...))
}

// ================= Votes =================

const voteColumns = `id, nomination_id, category_id, voter_email, award_year, created_at`

func (db *PostgresDatabase) CreateVote(ctx context.Context, v *models.AwardVote) error {
	v.VoterEmail = models.NormalizeEmail(v.VoterEmail)
	err := db.db.QueryRowContext(ctx, `
		INSERT INTO award_votes (nomination_id, category_id, voter_email, award_year)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		v.NominationID, v.CategoryID, v.VoterEmail, v.AwardYear,
	).Scan(&v.ID, &v.CreatedAt)
	return classifyPQ(err)
}

func (db *PostgresDatabase) queryVotes(ctx context.Context, query string, args ...interface{}) ([]models.AwardVote, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyPQ(err)
	}
	defer rows.Close()

	var list []models.AwardVote
	for rows.Next() {
		var v models.AwardVote
		if err := rows.Scan(&v.ID, &v.NominationID, &v.CategoryID, &v.VoterEmail, &v.AwardYear, &v.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, classifyPQ(rows.Err())
}

func (db *PostgresDatabase) ListVotesByVoter(ctx context.Context, voterEmail string, year int) ([]models.AwardVote, error) {
	voter := models.NormalizeEmail(voterEmail)
	if year == 0 {
		return db.queryVotes(ctx, `SELECT `+voteColumns+` FROM award_votes WHERE voter_email = $1 ORDER BY created_at`, voter)
	}
	return db.queryVotes(ctx,
		`SELECT `+voteColumns+` FROM award_votes WHERE voter_email = $1 AND award_year = $2 ORDER BY created_at`, voter, year)
}

func (db *PostgresDatabase) ListVotes(ctx context.Context, year int) ([]models.AwardVote, error) {
	if year == 0 {
		return db.queryVotes(ctx, `SELECT `+voteColumns+` FROM award_votes ORDER BY created_at`)
	}
	return db.queryVotes(ctx, `SELECT `+voteColumns+` FROM award_votes WHERE award_year = $1 ORDER BY created_at`, year)
}

// HealthCheck 健康检查
func (db *PostgresDatabase) HealthCheck(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// Close 关闭连接
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
