package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("T_STR", "value")
	t.Setenv("T_BOOL", "off")
	t.Setenv("T_BAD_BOOL", "maybe")
	t.Setenv("T_INT", "42")
	t.Setenv("T_BAD_INT", "forty")
	t.Setenv("T_DUR", "90s")

	assert.Equal(t, "value", envStr("T_STR", "d"))
	assert.Equal(t, "d", envStr("T_MISSING", "d"))
	assert.False(t, envBool("T_BOOL", true))
	assert.True(t, envBool("T_BAD_BOOL", true))
	assert.Equal(t, 42, envInt("T_INT", 1))
	assert.Equal(t, 1, envInt("T_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, envDur("T_DUR", time.Second))
	assert.Equal(t, time.Second, envDur("T_MISSING", time.Second))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
}

func TestLoad(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", ":memory:")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, ":memory:", cfg.DBName)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.ActivationTTL)
	assert.Equal(t, "NG", cfg.DefaultRegion)
	assert.Equal(t, 50, cfg.DefaultPageSize)
	assert.Equal(t, 500, cfg.MaxPageSize)
	assert.False(t, cfg.IsProd())
}

func TestRateLimitNormalize(t *testing.T) {
	c := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: 0}.normalize()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, time.Second, c.RefillInterval)
	assert.Equal(t, 5*time.Second, c.TTL)

	t.Setenv("RATE_LIMIT_BURST", "7")
	assert.Equal(t, 7, LoadRateLimitConfig().Capacity)
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://:pw@cache:6380/2")
	opts, err := RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "prod", "warn").Info("hidden")
	newLogger(&buf, "prod", "warn").Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	newLogger(&buf, "dev", "debug").Debug("detail")
	assert.Contains(t, buf.String(), "level=DEBUG")
}
