package handlers

import (
	"context"
	"net/http"
	"time"

	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/utils"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewHealthHandler(cfg *config.Config, db database.DatabaseInterface) *HealthHandler {
	return &HealthHandler{config: cfg, db: db}
}

// HealthCheck 健康检查；数据库不可用时返回503
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	dbStatus := "healthy"
	if err := h.db.HealthCheck(ctx); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
		dbStatus = "unhealthy"
		if database.IsSetupRequired(err) {
			dbStatus = "setup_required"
		}
	}

	utils.WriteJSONResponse(w, code, map[string]interface{}{
		"service":     "runclub-backend",
		"environment": h.config.Environment,
		"database":    h.databaseType(),
		"db_status":   dbStatus,
		"timestamp":   time.Now().Unix(),
		"status":      status,
	})
}

// PoolStats 数据库连接池状态（仅开发环境挂载）
func (h *HealthHandler) PoolStats(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, database.GetConnectionStats())
}

// databaseType 获取数据库类型
func (h *HealthHandler) databaseType() string {
	switch {
	case h.config.UseMemoryDB:
		return "memory"
	case h.config.PostgresDSN != "" && !database.IsServerlessEnvironment():
		return "postgresql"
	case h.config.SupabaseURL != "" && h.config.SupabaseKey != "":
		return "supabase"
	case h.config.PostgresDSN != "":
		return "postgresql"
	}
	return "unknown"
}
