package database

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// idleTimeout is how long a cached store may sit unused before it is rebuilt.
const idleTimeout = 30 * time.Minute

// DatabasePool 数据库连接缓存（每个冷启动一份，热调用复用）
type DatabasePool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex
)

// GetDatabase 获取数据库连接（单例模式 + 健康检查）
func GetDatabase(ctx context.Context, config DatabaseConfig, log logrus.FieldLogger) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && !shouldRecreateConnection(ctx, globalPool, config, log) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		return globalPool.instance, nil
	}

	// 关闭旧连接（如果存在）
	if globalPool != nil && globalPool.instance != nil {
		_ = globalPool.instance.Close()
		globalPool = nil
	}

	log.Debug("Creating new database connection")
	instance, err := NewDatabase(config, log)
	if err != nil {
		return nil, err
	}
	globalPool = &DatabasePool{
		instance: instance,
		config:   config,
		lastUsed: time.Now(),
	}
	return instance, nil
}

// shouldRecreateConnection 判断是否需要重新创建连接
func shouldRecreateConnection(ctx context.Context, pool *DatabasePool, newConfig DatabaseConfig, log logrus.FieldLogger) bool {
	if pool.instance == nil {
		return true
	}

	if !configEquals(pool.config, newConfig) {
		log.Info("Database configuration changed, recreating connection")
		return true
	}

	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > idleTimeout
	pool.mu.RUnlock()
	if !expired {
		return false
	}

	// 闲置过久时才做健康检查
	if err := pool.instance.HealthCheck(ctx); err != nil && !IsSetupRequired(err) {
		log.WithError(err).Warn("Database health check failed, recreating")
		return true
	}
	return false
}

// configEquals 比较两个数据库配置是否相等
func configEquals(a, b DatabaseConfig) bool {
	return a.UseMemoryDB == b.UseMemoryDB &&
		a.PostgresDSN == b.PostgresDSN &&
		a.SupabaseURL == b.SupabaseURL &&
		a.SupabaseKey == b.SupabaseKey
}

// ResetPool closes and forgets the cached store.
func ResetPool() {
	poolMutex.Lock()
	defer poolMutex.Unlock()
	if globalPool != nil && globalPool.instance != nil {
		_ = globalPool.instance.Close()
	}
	globalPool = nil
}

// GetConnectionStats 获取连接池统计信息
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
		"config": map[string]interface{}{
			"use_memory_db": globalPool.config.UseMemoryDB,
			"has_postgres":  globalPool.config.PostgresDSN != "",
			"has_supabase":  globalPool.config.SupabaseURL != "",
		},
	}
}
