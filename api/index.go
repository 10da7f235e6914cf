package handler

import (
	"context"
	"net/http"
	"sync"

	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/logger"
	"runclub-backend/pkg/router"
	"runclub-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// 冷启动时构建一次，热调用复用
var (
	routerMu     sync.Mutex
	cachedRouter http.Handler
	cachedDB     database.DatabaseInterface
	log          *logrus.Logger
	logOnce      sync.Once
)

// Handler 是Vercel函数的入口点
func Handler(w http.ResponseWriter, r *http.Request) {
	// 加载配置
	cfg := config.GetCached()
	logOnce.Do(func() {
		log = logger.New(cfg.LogLevel, cfg.IsProduction())
	})

	// 验证配置
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("Invalid configuration")
		utils.WriteInternalServerErrorResponse(w, "Server configuration error")
		return
	}

	h, err := handlerFor(r.Context(), cfg)
	if err != nil {
		log.WithError(err).Error("Database unavailable")
		utils.WriteErrorResponseWithCode(w, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE", "Database is unavailable")
		return
	}

	h.ServeHTTP(w, r)
}

// handlerFor returns the router for the pooled database, rebuilding it when the
// pool hands back a new connection.
func handlerFor(ctx context.Context, cfg *config.Config) (http.Handler, error) {
	db, err := database.GetDatabase(ctx, database.DatabaseConfig{
		UseMemoryDB: cfg.UseMemoryDB,
		PostgresDSN: cfg.PostgresDSN,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
	}, log)
	if err != nil {
		return nil, err
	}

	routerMu.Lock()
	defer routerMu.Unlock()
	if cachedRouter == nil || cachedDB != db {
		cachedRouter = router.New(cfg, db, log)
		cachedDB = db
	}
	return cachedRouter, nil
}
