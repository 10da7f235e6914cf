package router

import (
	"fmt"
	"net/http"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/awards"
	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/handlers"
	"runclub-backend/pkg/metrics"
	customMiddleware "runclub-backend/pkg/middleware"
	"runclub-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// New 组装完整的 Chi 路由器，供 Vercel 函数和独立服务共用
// 所有API端点集中在一个路由器中管理（单体路由模式）
func New(cfg *config.Config, db database.DatabaseInterface, log logrus.FieldLogger) http.Handler {
	router := chi.NewRouter()

	setupMiddleware(router, cfg, log)
	setupRoutes(router, cfg, db, log)

	return router
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config, log logrus.FieldLogger) {
	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(log))
	router.Use(customMiddleware.Recovery(cfg, log))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	// 请求体限制
	router.Use(customMiddleware.MaxBodySize(customMiddleware.DefaultMaxBodyBytes))
	router.Use(customMiddleware.ContentTypeJSON)

	// 压缩中间件
	router.Use(middleware.Compress(5))

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface, log logrus.FieldLogger) {
	// 策略模块：会话、角色、会员资格
	sessions := auth.NewSessionResolver(cfg, auth.NewVerifier(cfg), log)
	authz := auth.NewAuthorizer(
		auth.NewRoleResolver(db, cfg.BreakGlassEmail, log),
		auth.NewMembershipResolver(db, cfg.FuzzyMembershipMatching(), log),
	)
	awardsService := awards.NewService(db, authz, log)

	// 创建处理器
	healthHandler := handlers.NewHealthHandler(cfg, db)
	meHandler := handlers.NewMeHandler(cfg, db, authz, awardsService, log)
	membersHandler := handlers.NewMembersHandler(cfg, db, authz, log)
	profileHandler := handlers.NewProfileHandler(cfg, db, authz, log)
	adminsHandler := handlers.NewAdminsHandler(cfg, db, authz, log)
	awardsHandler := handlers.NewAwardsHandler(cfg, db, authz, awardsService, log)

	// 健康检查端点
	router.Get("/", healthHandler.HealthCheck)

	if cfg.MetricsEnabled {
		router.Handle("/metrics", metrics.Handler())
	}

	// 数据库连接池状态端点（调试用）
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", healthHandler.PoolStats)
	}

	router.Route("/api", func(r chi.Router) {
		// 公开路由（不需要认证）
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/awards/categories", awardsHandler.ListCategories)
		r.Get("/awards/public-settings", awardsHandler.PublicSettings)

		// 定时任务（共享密钥）
		r.With(customMiddleware.RequireSecret(cfg.CronSecret)).Get("/membership-check", membersHandler.MembershipCheck)

		// 需要认证的路由
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(sessions, log))

			r.Get("/me", meHandler.Me)

			// 会员
			r.Get("/members", membersHandler.ListMembers)
			r.Get("/profile", profileHandler.GetProfile)
			r.Patch("/profile", profileHandler.UpdateProfile)
			r.Post("/applications", membersHandler.Apply)

			// 管理员
			r.Route("/admin", func(r chi.Router) {
				r.Get("/applications", membersHandler.ListApplications)
				r.Post("/applications/{id}/review", membersHandler.ReviewApplication)
				r.Put("/members/{id}", membersHandler.UpdateMember)
				r.Delete("/members/{id}", membersHandler.DeleteMember)

				r.Get("/manage-admins", adminsHandler.ListAdmins)
				r.Post("/manage-admins", adminsHandler.CreateAdmin)
				r.Put("/manage-admins", adminsHandler.UpdateAdmin)
				r.Delete("/manage-admins", adminsHandler.DeleteAdmin)
			})

			// 奖项
			r.Route("/awards", func(r chi.Router) {
				r.Post("/categories/manage", awardsHandler.CreateCategory)
				r.Put("/categories/manage", awardsHandler.UpdateCategory)
				r.Delete("/categories/manage", awardsHandler.DeleteCategory)

				r.Get("/settings", awardsHandler.GetSettings)
				r.Put("/settings", awardsHandler.UpdateSettings)
				r.Patch("/settings", awardsHandler.UpdateSettings)

				r.Get("/nominations", awardsHandler.ListNominations)
				r.Post("/nominations", awardsHandler.CreateNomination)
				r.Patch("/nominations", awardsHandler.UpdateNomination)

				r.Get("/nominations-review", awardsHandler.ReviewQueue)
				r.Post("/nominations-review", awardsHandler.ReviewNomination)

				r.Get("/my-nominations", awardsHandler.MyNominations)

				r.Get("/votes", awardsHandler.Tallies)
				r.Post("/votes", awardsHandler.CastVote)
				r.Get("/votes/my-votes", awardsHandler.MyVotes)
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteMethodNotAllowedResponse(w)
	})
}
