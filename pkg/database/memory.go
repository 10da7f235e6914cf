package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"runclub-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase 内存数据库实现，用于本地开发和测试。
// Every check-then-write runs under one lock, so uniqueness holds under concurrency.
type MemoryDatabase struct {
	mu          sync.RWMutex
	members     map[string]models.Member
	admins      map[string]models.AdminRosterEntry // keyed by normalized email
	settings    *models.AwardSettings
	categories  map[string]models.AwardCategory
	nominations map[string]models.AwardNomination
	votes       map[string]models.AwardVote
	now         func() time.Time
}

// NewMemoryDatabase 创建内存数据库实例
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		members:     make(map[string]models.Member),
		admins:      make(map[string]models.AdminRosterEntry),
		categories:  make(map[string]models.AwardCategory),
		nominations: make(map[string]models.AwardNomination),
		votes:       make(map[string]models.AwardVote),
		now:         time.Now,
	}
}

// ================= Members =================

func (db *MemoryDatabase) CreateMember(ctx context.Context, m *models.Member) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	email := models.NormalizeEmail(m.Email)
	for _, existing := range db.members {
		if models.NormalizeEmail(existing.Email) == email {
			return fmt.Errorf("%w: member %s already exists", ErrDuplicate, m.Email)
		}
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := db.now()
	m.CreatedAt, m.UpdatedAt = now, now
	db.members[m.ID] = *m
	return nil
}

func (db *MemoryDatabase) GetMemberByID(ctx context.Context, id string) (*models.Member, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (db *MemoryDatabase) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	want := models.NormalizeEmail(email)
	for _, m := range db.members {
		if models.NormalizeEmail(m.Email) == want {
			found := m
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) SearchMembersByEmail(ctx context.Context, fragment string) ([]models.Member, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	frag := strings.ToLower(strings.TrimSpace(fragment))
	var list []models.Member
	for _, m := range db.members {
		if frag != "" && strings.Contains(strings.ToLower(m.Email), frag) {
			list = append(list, m)
		}
	}
	sortMembers(list)
	return list, nil
}

func (db *MemoryDatabase) ListMembers(ctx context.Context, status models.ApplicationStatus) ([]models.Member, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var list []models.Member
	for _, m := range db.members {
		if status == "" || m.Status == status {
			list = append(list, m)
		}
	}
	sortMembers(list)
	return list, nil
}

func (db *MemoryDatabase) UpdateMember(ctx context.Context, id string, patch map[string]interface{}) (*models.Member, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := applyPatch(&m, patch); err != nil {
		return nil, err
	}
	m.ID = id
	m.UpdatedAt = db.now()
	db.members[id] = m
	return &m, nil
}

func (db *MemoryDatabase) DeleteMember(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.members[id]; !ok {
		return ErrNotFound
	}
	delete(db.members, id)
	return nil
}

func (db *MemoryDatabase) ExpireMemberships(ctx context.Context, asOf models.Date) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var ids []string
	for id, m := range db.members {
		if m.MembershipStatus == models.MembershipActive && m.MembershipExpiry != nil && m.MembershipExpiry.Before(asOf) {
			m.MembershipStatus = models.MembershipExpired
			m.UpdatedAt = db.now()
			db.members[id] = m
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ================= Admin roster =================

func (db *MemoryDatabase) GetAdminByEmail(ctx context.Context, email string) (*models.AdminRosterEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.admins[models.NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (db *MemoryDatabase) ListAdmins(ctx context.Context) ([]models.AdminRosterEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	list := make([]models.AdminRosterEntry, 0, len(db.admins))
	for _, e := range db.admins {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Email < list[j].Email })
	return list, nil
}

func (db *MemoryDatabase) CreateAdmin(ctx context.Context, entry *models.AdminRosterEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := models.NormalizeEmail(entry.Email)
	if _, ok := db.admins[key]; ok {
		return fmt.Errorf("%w: admin %s already exists", ErrDuplicate, entry.Email)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.Email = key
	now := db.now()
	entry.CreatedAt, entry.UpdatedAt = now, now
	db.admins[key] = *entry
	return nil
}

func (db *MemoryDatabase) UpdateAdmin(ctx context.Context, entry *models.AdminRosterEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := models.NormalizeEmail(entry.Email)
	existing, ok := db.admins[key]
	if !ok {
		return ErrNotFound
	}
	existing.Role = entry.Role
	existing.Name = entry.Name
	existing.UpdatedAt = db.now()
	db.admins[key] = existing
	*entry = existing
	return nil
}

func (db *MemoryDatabase) DeleteAdmin(ctx context.Context, email string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := models.NormalizeEmail(email)
	if _, ok := db.admins[key]; !ok {
		return ErrNotFound
	}
	delete(db.admins, key)
	return nil
}

// ================= Award settings =================

func (db *MemoryDatabase) GetAwardSettings(ctx context.Context) (*models.AwardSettings, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.settings == nil {
		return nil, ErrNotFound
	}
	s := *db.settings
	return &s, nil
}

func (db *MemoryDatabase) SaveAwardSettings(ctx context.Context, s *models.AwardSettings) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if s.ID == "" {
		if db.settings != nil {
			s.ID = db.settings.ID
		} else {
			s.ID = uuid.New().String()
		}
	}
	s.UpdatedAt = db.now()
	saved := *s
	db.settings = &saved
	return nil
}

// ================= Categories =================

func (db *MemoryDatabase) ListCategories(ctx context.Context) ([]models.AwardCategory, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	list := make([]models.AwardCategory, 0, len(db.categories))
	for _, c := range db.categories {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (db *MemoryDatabase) GetCategory(ctx context.Context, id string) (*models.AwardCategory, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (db *MemoryDatabase) CreateCategory(ctx context.Context, c *models.AwardCategory) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = db.now()
	db.categories[c.ID] = *c
	return nil
}

func (db *MemoryDatabase) UpdateCategory(ctx context.Context, c *models.AwardCategory) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	existing, ok := db.categories[c.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = c.Name
	existing.Description = c.Description
	db.categories[c.ID] = existing
	*c = existing
	return nil
}

func (db *MemoryDatabase) DeleteCategory(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.categories[id]; !ok {
		return ErrNotFound
	}
	for _, n := range db.nominations {
		if n.CategoryID == id {
			return fmt.Errorf("%w: category %s has nominations", ErrReferenced, id)
		}
	}
	delete(db.categories, id)
	return nil
}

// ================= Nominations =================

func (db *MemoryDatabase) CreateNomination(ctx context.Context, n *models.AwardNomination) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	nominator := models.NormalizeEmail(n.NominatorEmail)
	for _, existing := range db.nominations {
		if models.NormalizeEmail(existing.NominatorEmail) == nominator &&
			existing.CategoryID == n.CategoryID && existing.AwardYear == n.AwardYear {
			return fmt.Errorf("%w: nomination already exists", ErrDuplicate)
		}
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := db.now()
	n.CreatedAt, n.UpdatedAt = now, now
	db.nominations[n.ID] = *n
	return nil
}

func (db *MemoryDatabase) GetNomination(ctx context.Context, id string) (*models.AwardNomination, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n, ok := db.nominations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (db *MemoryDatabase) ListNominations(ctx context.Context, filter models.NominationFilter) ([]models.AwardNomination, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var list []models.AwardNomination
	for _, n := range db.nominations {
		if filter.Status != "" && n.Status != filter.Status {
			continue
		}
		if filter.AwardYear != 0 && n.AwardYear != filter.AwardYear {
			continue
		}
		if filter.CategoryID != "" && n.CategoryID != filter.CategoryID {
			continue
		}
		if filter.NominatorEmail != "" && models.NormalizeEmail(n.NominatorEmail) != models.NormalizeEmail(filter.NominatorEmail) {
			continue
		}
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func (db *MemoryDatabase) UpdateNomination(ctx context.Context, id string, patch map[string]interface{}) (*models.AwardNomination, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	n, ok := db.nominations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := applyPatch(&n, patch); err != nil {
		return nil, err
	}
	n.ID = id
	n.UpdatedAt = db.now()
	db.nominations[id] = n
	return &n, nil
}

// ================= Votes =================

func (db *MemoryDatabase) CreateVote(ctx context.Context, v *models.AwardVote) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	voter := models.NormalizeEmail(v.VoterEmail)
	for _, existing := range db.votes {
		if models.NormalizeEmail(existing.VoterEmail) == voter &&
			existing.CategoryID == v.CategoryID && existing.AwardYear == v.AwardYear {
			return fmt.Errorf("%w: vote already cast", ErrDuplicate)
		}
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.CreatedAt = db.now()
	db.votes[v.ID] = *v
	return nil
}

func (db *MemoryDatabase) ListVotesByVoter(ctx context.Context, voterEmail string, year int) ([]models.AwardVote, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	voter := models.NormalizeEmail(voterEmail)
	var list []models.AwardVote
	for _, v := range db.votes {
		if models.NormalizeEmail(v.VoterEmail) == voter && (year == 0 || v.AwardYear == year) {
			list = append(list, v)
		}
	}
	sortVotes(list)
	return list, nil
}

func (db *MemoryDatabase) ListVotes(ctx context.Context, year int) ([]models.AwardVote, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var list []models.AwardVote
	for _, v := range db.votes {
		if year == 0 || v.AwardYear == year {
			list = append(list, v)
		}
	}
	sortVotes(list)
	return list, nil
}

// HealthCheck 健康检查
func (db *MemoryDatabase) HealthCheck(ctx context.Context) error {
	return nil
}

// Close 关闭连接
func (db *MemoryDatabase) Close() error {
	return nil
}

// applyPatch merges a column→value patch into a record by round-tripping through JSON.
func applyPatch(dst interface{}, patch map[string]interface{}) error {
	raw, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	merged := map[string]interface{}{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return err
	}
	for k, v := range patch {
		merged[k] = v
	}
	raw, err = json.Marshal(merged)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid patch: %w", err)
	}
	return nil
}

func sortMembers(list []models.Member) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Email < list[j].Email
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

func sortVotes(list []models.AwardVote) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
