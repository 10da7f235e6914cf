package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"runclub-backend/pkg/models"

	"github.com/sirupsen/logrus"
)

// SupabaseDatabase Supabase数据库实现 (PostgREST over HTTPS)
type SupabaseDatabase struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewSupabaseDatabase 创建Supabase数据库实例
func NewSupabaseDatabase(baseURL, key string, log logrus.FieldLogger) *SupabaseDatabase {
	// 确保URL格式正确
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "https://" + baseURL
	}

	return &SupabaseDatabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// makeRequest 发送HTTP请求到Supabase
func (db *SupabaseDatabase) makeRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	return db.makeRequestWithHeaders(ctx, method, endpoint, body, nil)
}

// makeRequestWithHeaders 发送HTTP请求到Supabase（支持自定义头）
func (db *SupabaseDatabase) makeRequestWithHeaders(ctx context.Context, method, endpoint string, body interface{}, customHeaders map[string]string) ([]byte, error) {
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, db.baseURL+"/rest/v1"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// 设置默认请求头
	req.Header.Set("apikey", db.apiKey)
	req.Header.Set("Authorization", "Bearer "+db.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	// 设置自定义请求头
	for key, value := range customHeaders {
		req.Header.Set(key, value)
	}

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		db.log.WithFields(logrus.Fields{
			"method": method,
			"status": resp.StatusCode,
		}).Debug("PostgREST request failed")
		return nil, classifyPostgREST(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// fetchRows decodes a PostgREST array response into out.
func (db *SupabaseDatabase) fetchRows(ctx context.Context, method, endpoint string, body, out interface{}) error {
	data, err := db.makeRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		data = []byte("[]")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// eq builds a PostgREST equality filter value.
func eq(v string) string {
	return "eq." + url.QueryEscape(v)
}

// escapeLike escapes the LIKE metacharacters so v matches literally.
func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(v)
}

// toRow turns a record into an insert payload, dropping server-managed columns.
func toRow(v interface{}, omit ...string) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	row := map[string]interface{}{}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	for _, k := range omit {
		delete(row, k)
	}
	if id, ok := row["id"].(string); ok && id == "" {
		delete(row, "id")
	}
	return row, nil
}

// ================= Members =================

func (db *SupabaseDatabase) CreateMember(ctx context.Context, m *models.Member) error {
	m.Email = strings.TrimSpace(m.Email)
	row, err := toRow(m, "created_at", "updated_at", "synthetic")
	if err != nil {
		return err
	}

	var rows []models.Member
	if err := db.fetchRows(ctx, http.MethodPost, "/members", row, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		*m = rows[0]
	}
	db.log.WithField("member_id", m.ID).Debug("Created member via Supabase REST")
	return nil
}

func (db *SupabaseDatabase) GetMemberByID(ctx context.Context, id string) (*models.Member, error) {
	var rows []models.Member
	if err := db.fetchRows(ctx, http.MethodGet, "/members?select=*&id="+eq(id), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (db *SupabaseDatabase) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	// ilike without wildcards is a case-insensitive equality
	endpoint := "/members?select=*&limit=1&email=ilike." + url.QueryEscape(escapeLike(models.NormalizeEmail(email)))
	var rows []models.Member
	if err := db.fetchRows(ctx, http.MethodGet, endpoint, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (db *SupabaseDatabase) SearchMembersByEmail(ctx context.Context, fragment string) ([]models.Member, error) {
	frag := strings.ToLower(strings.TrimSpace(fragment))
	if frag == "" {
		return nil, nil
	}
	endpoint := "/members?select=*&order=created_at.asc&email=ilike." + url.QueryEscape("%"+escapeLike(frag)+"%")
	var rows []models.Member
	if err := db.fetchRows(ctx, http.MethodGet, endpoint, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *SupabaseDatabase) ListMembers(ctx context.Context, status models.ApplicationStatus) ([]models.Member, error) {
	endpoint := "/members?select=*&order=created_at.asc"
	if status != "" {
		endpoint += "&status=" + eq(string(status))
	}
	var rows []models.Member
	if err := db.fetchRows(ctx, http.MethodGet, endpoint, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *SupabaseDatabase) UpdateMember(ctx context.Context, id string, patch map[string]interface{}) (*models.Member, error) {
	body := make(map[string]interface{}, len(patch)+1)
	for k, v := range patch {
		body[k] = v
	}
	body["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	var rows []models.Member
	if err := db.fetchRows(ctx, http.MethodPatch, "/members?id="+eq(id), body, &rows); err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (db *SupabaseDatabase) DeleteMember(ctx context.Context, id string) error {
	var rows []models.Member
	if err := db.fetchRows(ctx, http.MethodDelete, "/members?id="+eq(id), nil, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *SupabaseDatabase) ExpireMemberships(ctx context.Context, asOf models.Date) ([]string, error) {
	endpoint := "/members?select=id&membership_status=eq.active&membership_expiry=lt." + asOf.String()
	body := map[string]interface{}{
		"membership_status": models.MembershipExpired,
		"updated_at":        time.Now().UTC().Format(time.RFC3339),
	}
	var rows []struct {
		ID string `json:"id"`
	}
	if err := db.fetchRows(ctx, http.MethodPatch, endpoint, body, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// ================= Admin roster =================

func (db *SupabaseDatabase) GetAdminByEmail(ctx context.Context, email string) (*models.AdminRosterEntry, error) {
	var rows []models.AdminRosterEntry
	if err := db.fetchRows(ctx, http.MethodGet, "/admin_roster?select=*&email="+eq(models.NormalizeEmail(email)), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (db *SupabaseDatabase) ListAdmins(ctx context.Context) ([]models.AdminRosterEntry, error) {
	var rows []models.AdminRosterEntry
	if err := db.fetchRows(ctx, http.MethodGet, "/admin_roster?select=*&order=email.asc", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *SupabaseDatabase) CreateAdmin(ctx context.Context, entry *models.AdminRosterEntry) error {
	entry.Email = models.NormalizeEmail(entry.Email)
	payload := map[string]interface{}{
		"email": entry.Email,
		"role":  entry.Role,
		"name":  entry.Name,
	}
	var rows []models.AdminRosterEntry
	if err := db.fetchRows(ctx, http.MethodPost, "/admin_roster", payload, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		*entry = rows[0]
	}
	return nil
}

func (db *SupabaseDatabase) UpdateAdmin(ctx context.Context, entry *models.AdminRosterEntry) error {
	payload := map[string]interface{}{
		"role":       entry.Role,
		"name":       entry.Name,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	var rows []models.AdminRosterEntry
	if err := db.fetchRows(ctx, http.MethodPatch, "/admin_roster?email="+eq(models.NormalizeEmail(entry.Email)), payload, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	*entry = rows[0]
	return nil
}

func (db *SupabaseDatabase) DeleteAdmin(ctx context.Context, email string) error {
	var rows []models.AdminRosterEntry
	if err := db.fetchRows(ctx, http.MethodDelete, "/admin_roster?email="+eq(models.NormalizeEmail(email)), nil, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= Award settings =================

func (db *SupabaseDatabase) GetAwardSettings(ctx context.Context) (*models.AwardSettings, error) {
	var rows []models.AwardSettings
	if err := db.fetchRows(ctx, http.MethodGet, "/award_settings?select=*&order=updated_at.desc&limit=1", nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (db *SupabaseDatabase) SaveAwardSettings(ctx context.Context, s *models.AwardSettings) error {
	row, err := toRow(s)
	if err != nil {
		return err
	}
	row["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	// Cleared windows must be written as NULL
	for _, k := range []string{"nomination_start_date", "nomination_end_date", "voting_start_date", "voting_end_date"} {
		if _, ok := row[k]; !ok {
			row[k] = nil
		}
	}

	var rows []models.AwardSettings
	if s.ID == "" {
		err = db.fetchRows(ctx, http.MethodPost, "/award_settings", row, &rows)
	} else {
		delete(row, "id")
		err = db.fetchRows(ctx, http.MethodPatch, "/award_settings?id="+eq(s.ID), row, &rows)
	}
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	*s = rows[0]
	return nil
}

// ================= Categories =================

func (db *SupabaseDatabase) ListCategories(ctx context.Context) ([]models.AwardCategory, error) {
	var rows []models.AwardCategory
	if err := db.fetchRows(ctx, http.MethodGet, "/award_categories?select=*&order=name.asc", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *SupabaseDatabase) GetCategory(ctx context.Context, id string) (*models.AwardCategory, error) {
	var rows []models.AwardCategory
	if err := db.fetchRows(ctx, http.MethodGet, "/award_categories?select=*&id="+eq(id), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (db *SupabaseDatabase) CreateCategory(ctx context.Context, c *models.AwardCategory) error {
	payload := map[string]interface{}{"name": c.Name, "description": c.Description}
	var rows []models.AwardCategory
	if err := db.fetchRows(ctx, http.MethodPost, "/award_categories", payload, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		*c = rows[0]
	}
	return nil
}

func (db *SupabaseDatabase) UpdateCategory(ctx context.Context, c *models.AwardCategory) error {
	payload := map[string]interface{}{"name": c.Name, "description": c.Description}
	var rows []models.AwardCategory
	if err := db.fetchRows(ctx, http.MethodPatch, "/award_categories?id="+eq(c.ID), payload, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	*c = rows[0]
	return nil
}

func (db *SupabaseDatabase) DeleteCategory(ctx context.Context, id string) error {
	var rows []models.AwardCategory
	if err := db.fetchRows(ctx, http.MethodDelete, "/award_categories?id="+eq(id), nil, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= Nominations =================

func (db *SupabaseDatabase) CreateNomination(ctx context.Context, n *models.AwardNomination) error {
	row, err := toRow(n, "created_at", "updated_at")
	if err != nil {
		return err
	}
	var rows []models.AwardNomination
	if err := db.fetchRows(ctx, http.MethodPost, "/award_nominations", row, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		*n = rows[0]
	}
	return nil
}

func (db *SupabaseDatabase) GetNomination(ctx context.Context, id string) (*models.AwardNomination, error) {
	var rows []models.AwardNomination
	if err := db.fetchRows(ctx, http.MethodGet, "/award_nominations?select=*&id="+eq(id), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (db *SupabaseDatabase) ListNominations(ctx context.Context, filter models.NominationFilter) ([]models.AwardNomination, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.asc")
	if filter.Status != "" {
		q.Set("status", "eq."+string(filter.Status))
	}
	if filter.AwardYear != 0 {
		q.Set("award_year", fmt.Sprintf("eq.%d", filter.AwardYear))
	}
	if filter.CategoryID != "" {
		q.Set("category_id", "eq."+filter.CategoryID)
	}
	if filter.NominatorEmail != "" {
		q.Set("nominator_email", "eq."+models.NormalizeEmail(filter.NominatorEmail))
	}

	var rows []models.AwardNomination
	if err := db.fetchRows(ctx, http.MethodGet, "/award_nominations?"+q.Encode(), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *SupabaseDatabase) UpdateNomination(ctx context.Context, id string, patch map[string]interface{}) (*models.AwardNomination, error) {
	body := make(map[string]interface{}, len(patch)+1)
	for k, v := range patch {
		body[k] = v
	}
	body["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	var rows []models.AwardNomination
	if err := db.fetchRows(ctx, http.MethodPatch, "/award_nominations?id="+eq(id), body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ================= Votes =================

func (db *SupabaseDatabase) CreateVote(ctx context.Context, v *models.AwardVote) error {
	row, err := toRow(v, "created_at")
	if err != nil {
		return err
	}
	var rows []models.AwardVote
	if err := db.fetchRows(ctx, http.MethodPost, "/award_votes", row, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		*v = rows[0]
	}
	return nil
}

func (db *SupabaseDatabase) ListVotesByVoter(ctx context.Context, voterEmail string, year int) ([]models.AwardVote, error) {
	endpoint := "/award_votes?select=*&order=created_at.asc&voter_email=" + eq(models.NormalizeEmail(voterEmail))
	if year != 0 {
		endpoint += fmt.Sprintf("&award_year=eq.%d", year)
	}
	var rows []models.AwardVote
	if err := db.fetchRows(ctx, http.MethodGet, endpoint, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *SupabaseDatabase) ListVotes(ctx context.Context, year int) ([]models.AwardVote, error) {
	endpoint := "/award_votes?select=*&order=created_at.asc"
	if year != 0 {
		endpoint += fmt.Sprintf("&award_year=eq.%d", year)
	}
	var rows []models.AwardVote
	if err := db.fetchRows(ctx, http.MethodGet, endpoint, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// HealthCheck 健康检查
func (db *SupabaseDatabase) HealthCheck(ctx context.Context) error {
	// 发送简单的查询来检查连接
	_, err := db.makeRequest(ctx, http.MethodGet, "/award_settings?select=id&limit=1", nil)
	return err
}

// Close 关闭连接
func (db *SupabaseDatabase) Close() error {
	// HTTP客户端无需显式关闭
	return nil
}
