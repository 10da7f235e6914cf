package database

import (
	"context"
	"fmt"
	"os"

	"runclub-backend/pkg/models"

	"github.com/sirupsen/logrus"
)

// DatabaseInterface 定义数据库访问接口
//
// Implementations must enforce the uniqueness invariants themselves
// (one nomination per nominator/category/year, one vote per voter/category/year,
// one member per email) and report violations as ErrDuplicate.
type DatabaseInterface interface {
	// 会员
	CreateMember(ctx context.Context, m *models.Member) error
	GetMemberByID(ctx context.Context, id string) (*models.Member, error)
	// GetMemberByEmail matches case-insensitively on the whole address.
	GetMemberByEmail(ctx context.Context, email string) (*models.Member, error)
	// SearchMembersByEmail returns members whose email contains fragment, case-insensitively.
	SearchMembersByEmail(ctx context.Context, fragment string) ([]models.Member, error)
	// ListMembers lists members, optionally filtered by application status.
	ListMembers(ctx context.Context, status models.ApplicationStatus) ([]models.Member, error)
	// UpdateMember applies a partial update. Keys are column names.
	UpdateMember(ctx context.Context, id string, patch map[string]interface{}) (*models.Member, error)
	DeleteMember(ctx context.Context, id string) error
	// ExpireMemberships flips every active membership that expired before asOf.
	ExpireMemberships(ctx context.Context, asOf models.Date) ([]string, error)

	// 管理员名册
	GetAdminByEmail(ctx context.Context, email string) (*models.AdminRosterEntry, error)
	ListAdmins(ctx context.Context) ([]models.AdminRosterEntry, error)
	CreateAdmin(ctx context.Context, entry *models.AdminRosterEntry) error
	UpdateAdmin(ctx context.Context, entry *models.AdminRosterEntry) error
	DeleteAdmin(ctx context.Context, email string) error

	// 奖项设置（单例）
	GetAwardSettings(ctx context.Context) (*models.AwardSettings, error)
	SaveAwardSettings(ctx context.Context, s *models.AwardSettings) error

	// 奖项类别
	ListCategories(ctx context.Context) ([]models.AwardCategory, error)
	GetCategory(ctx context.Context, id string) (*models.AwardCategory, error)
	CreateCategory(ctx context.Context, c *models.AwardCategory) error
	UpdateCategory(ctx context.Context, c *models.AwardCategory) error
	// DeleteCategory returns ErrReferenced while any nomination points at the category.
	DeleteCategory(ctx context.Context, id string) error

	// 提名
	CreateNomination(ctx context.Context, n *models.AwardNomination) error
	GetNomination(ctx context.Context, id string) (*models.AwardNomination, error)
	ListNominations(ctx context.Context, filter models.NominationFilter) ([]models.AwardNomination, error)
	UpdateNomination(ctx context.Context, id string, patch map[string]interface{}) (*models.AwardNomination, error)

	// 投票
	CreateVote(ctx context.Context, v *models.AwardVote) error
	ListVotesByVoter(ctx context.Context, voterEmail string, year int) ([]models.AwardVote, error)
	ListVotes(ctx context.Context, year int) ([]models.AwardVote, error)

	// 健康检查
	HealthCheck(ctx context.Context) error

	// 关闭连接
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	UseMemoryDB bool
	PostgresDSN string
	SupabaseURL string
	SupabaseKey string
}

// NewDatabase 根据环境与配置选择数据库实现
func NewDatabase(config DatabaseConfig, log logrus.FieldLogger) (DatabaseInterface, error) {
	if config.UseMemoryDB {
		log.Warn("Using in-memory database; data is lost on restart")
		return NewMemoryDatabase(), nil
	}

	// Serverless platforms prefer the REST API (no long-lived TCP connections)
	if IsServerlessEnvironment() && config.SupabaseURL != "" && config.SupabaseKey != "" {
		log.Info("Using Supabase REST API (serverless)")
		return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey, log), nil
	}

	if config.PostgresDSN != "" {
		log.Info("Using PostgreSQL database")
		pg, err := NewPostgresDatabase(config.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	if config.SupabaseURL != "" && config.SupabaseKey != "" {
		log.Info("Using Supabase REST API")
		return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey, log), nil
	}

	return nil, fmt.Errorf("no valid database configuration found: configure POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY")
}

// IsServerlessEnvironment 检查是否在 Vercel / Lambda 环境中
func IsServerlessEnvironment() bool {
	return os.Getenv("VERCEL_ENV") != "" || os.Getenv("VERCEL_URL") != "" || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
