package config

import (
	"fmt"
	"net/mail"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Membership match modes.
const (
	MatchExact = "exact"
	MatchFuzzy = "fuzzy"
)

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string
	Port        string
	LogLevel    string

	// 数据库配置
	UseMemoryDB    bool
	PostgresDSN    string
	SupabaseURL    string
	SupabaseKey    string // service role key, used for table access
	SupabaseAnon   string // anon key, used for GoTrue token checks
	MigrationsPath string

	// 认证配置
	SupabaseJWTSecret  string
	SessionCookieNames []string
	DevBypassSecret    string

	// BreakGlassEmail is always treated as super_admin, whatever the roster says.
	BreakGlassEmail string

	// CronSecret guards the membership expiry sweep.
	CronSecret string

	// MembershipMatchMode is "exact" (normalized email only) or "fuzzy".
	MembershipMatchMode string

	// 超时配置
	RequestTimeout  time.Duration
	UpstreamTimeout time.Duration

	// CORS配置
	AllowedOrigins []string

	MetricsEnabled bool

	// Debug forces debug-level logging outside production.
	Debug bool
}

// LoadConfig 加载配置
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 按优先级加载环境文件；已存在的环境变量不会被覆盖
	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}
	loadEnvFile(".env")

	config := &Config{
		Environment:         getEnvWithDefault("ENVIRONMENT", "development"),
		Port:                getEnvWithDefault("PORT", "3000"),
		LogLevel:            getEnvWithDefault("LOG_LEVEL", "info"),
		UseMemoryDB:         getEnvBool("USE_MEMORY_DB", false),
		MigrationsPath:      getEnvWithDefault("MIGRATIONS_PATH", "migrations"),
		MembershipMatchMode: strings.ToLower(getEnvWithDefault("MEMBERSHIP_MATCH_MODE", MatchExact)),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 25*time.Second),
		UpstreamTimeout:     getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
		Debug:               getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.SupabaseURL = strings.TrimSpace(os.Getenv("SUPABASE_URL"))
	config.SupabaseKey = strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_KEY"))
	config.SupabaseAnon = strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY"))
	config.SupabaseJWTSecret = strings.TrimSpace(os.Getenv("SUPABASE_JWT_SECRET"))
	config.DevBypassSecret = strings.TrimSpace(os.Getenv("DEV_BYPASS_SECRET"))
	config.CronSecret = strings.TrimSpace(os.Getenv("CRON_SECRET"))
	config.BreakGlassEmail = strings.ToLower(strings.TrimSpace(os.Getenv("BREAK_GLASS_EMAIL")))

	config.SessionCookieNames = splitList(getEnvWithDefault("SESSION_COOKIE_NAMES", "sb-access-token,supabase-auth-token"))

	// 生产环境没有默认来源，必须显式配置
	defaultOrigins := "*"
	if config.Environment == "production" {
		defaultOrigins = ""
	}
	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", defaultOrigins)
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		config.AllowedOrigins = splitList(allowedOrigins)
	}

	if config.Environment == "production" {
		config.Debug = false
	}
	if config.Debug {
		config.LogLevel = "debug"
	}

	return config
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless platforms it initializes once per cold start and is reused
// across warm invocations.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if !c.UseMemoryDB && c.PostgresDSN == "" && (c.SupabaseURL == "" || c.SupabaseKey == "") {
		return fmt.Errorf("database configuration incomplete: set POSTGRES_DSN, SUPABASE_URL+SUPABASE_SERVICE_KEY or USE_MEMORY_DB")
	}

	if c.IsProduction() {
		if c.UseMemoryDB {
			return fmt.Errorf("USE_MEMORY_DB is not allowed in production")
		}
		if c.DevBypassSecret != "" {
			return fmt.Errorf("DEV_BYPASS_SECRET must not be set in production")
		}
		if len(c.AllowedOrigins) == 0 || slices.Contains(c.AllowedOrigins, "*") {
			return fmt.Errorf("ALLOWED_ORIGINS must list explicit origins in production")
		}
	}

	if c.SupabaseJWTSecret == "" && c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET or SUPABASE_URL is required to verify sessions")
	}

	switch c.MembershipMatchMode {
	case MatchExact, MatchFuzzy:
	default:
		return fmt.Errorf("MEMBERSHIP_MATCH_MODE must be %q or %q, got %q", MatchExact, MatchFuzzy, c.MembershipMatchMode)
	}

	if c.BreakGlassEmail != "" {
		if _, err := mail.ParseAddress(c.BreakGlassEmail); err != nil {
			return fmt.Errorf("BREAK_GLASS_EMAIL is not a valid address: %w", err)
		}
	}

	return nil
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// FuzzyMembershipMatching reports whether the legacy substring fallback is on.
func (c *Config) FuzzyMembershipMatching() bool {
	return c.MembershipMatchMode == MatchFuzzy
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadEnvFile 加载 .env 文件到环境变量（文件不存在时静默返回）
func loadEnvFile(filename string) {
	if _, err := os.Stat(filename); err != nil {
		return
	}
	_ = godotenv.Load(filename)
}
