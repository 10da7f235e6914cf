package database

import (
	"context"
	"testing"

	"runclub-backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDatabase_ReusesCachedStore(t *testing.T) {
	ResetPool()
	t.Cleanup(ResetPool)

	assert.Equal(t, "no_connection", GetConnectionStats()["status"])

	cfg := DatabaseConfig{UseMemoryDB: true}
	first, err := GetDatabase(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	second, err := GetDatabase(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	assert.Same(t, first, second)

	stats := GetConnectionStats()
	assert.Equal(t, "connected", stats["status"])
	assert.Equal(t, true, stats["config"].(map[string]interface{})["use_memory_db"])

	ResetPool()
	assert.Equal(t, "no_connection", GetConnectionStats()["status"])

	third, err := GetDatabase(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestConfigEquals(t *testing.T) {
	a := DatabaseConfig{PostgresDSN: "postgres://a", SupabaseURL: "https://x", SupabaseKey: "k"}
	assert.True(t, configEquals(a, a))

	b := a
	b.SupabaseKey = "other"
	assert.False(t, configEquals(a, b))
}
