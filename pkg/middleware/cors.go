package middleware

import (
	"net/http"
	"slices"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/config"

	"github.com/go-chi/cors"
)

// CORS 创建CORS中间件
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "Cache-Control"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true, // session cookies
		MaxAge:           300,
	}

	// 开发环境额外允许旁路头
	if !cfg.IsProduction() {
		corsOptions.AllowedHeaders = append(corsOptions.AllowedHeaders, auth.HeaderDevBypassSecret, auth.HeaderDevUserEmail)
	}

	switch {
	case len(cfg.AllowedOrigins) == 0 && cfg.IsProduction():
		// 生产环境未配置来源时拒绝所有跨域请求（空列表在 cors 包里等于放行全部）
		corsOptions.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
	case len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*"):
		// 通配符来源不能携带凭据（会话cookie）
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}

	return cors.Handler(corsOptions)
}
