package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/logger"
	"runclub-backend/pkg/router"

	"github.com/sirupsen/logrus"
)

// 本地/独立部署入口：与 Vercel 函数共用同一路由器
func main() {
	cfg := config.LoadConfig()
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	db, err := openDatabase(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, db, log),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).WithField("environment", cfg.Environment).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

// openDatabase prefers a direct Postgres connection (running migrations first),
// then the Supabase REST store, then the in-memory store.
func openDatabase(cfg *config.Config, log logrus.FieldLogger) (database.DatabaseInterface, error) {
	if cfg.PostgresDSN != "" && !cfg.UseMemoryDB {
		pg, err := database.NewPostgresDatabase(cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		pg.TunePool()
		if err := pg.Migrate(cfg.MigrationsPath); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout)
	defer cancel()
	return database.GetDatabase(ctx, database.DatabaseConfig{
		UseMemoryDB: cfg.UseMemoryDB,
		PostgresDSN: cfg.PostgresDSN,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
	}, log)
}
