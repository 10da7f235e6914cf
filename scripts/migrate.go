package main

import (
	"flag"
	"os"

	"runclub-backend/pkg/config"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/logger"
)

// 运行数据库迁移: go run scripts/migrate.go [-down N] [-dsn DSN]
func main() {
	cfg := config.LoadConfig()
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	dsn := flag.String("dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	path := flag.String("path", cfg.MigrationsPath, "migrations directory")
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("POSTGRES_DSN is required (or pass -dsn)")
	}

	log.WithField("dsn", maskPassword(*dsn)).Info("Connecting to database")
	db, err := database.NewPostgresDatabase(*dsn, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if *down > 0 {
		err = db.MigrateDown(*path, *down)
	} else {
		err = db.Migrate(*path)
	}
	if err != nil {
		log.WithError(err).Error("Migration failed")
		db.Close()
		os.Exit(1)
	}
}

// maskPassword 隐藏连接字符串中的密码
func maskPassword(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:20] + "***" + dsn[len(dsn)-20:]
	}
	if len(dsn) > 10 {
		return dsn[:10] + "***"
	}
	return "***"
}
