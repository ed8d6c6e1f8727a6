package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{"REDIS_HOST", "REDIS_PORT", "REDIS_CHANNELS", "REDIS_AUTO_RECONNECT", "REDIS_RECONNECT_MAX"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := fromEnv()
	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, "6379", cfg.RedisPort)
	assert.True(t, cfg.RedisAutoReconnect)
	assert.Nil(t, cfg.RedisChannels)
	assert.Equal(t, 10*time.Second, cfg.RedisReconnectMax)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_PASSWORD", "s3cret")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_AUTO_RECONNECT", "false")
	t.Setenv("REDIS_CHANNELS", "lobby.start, lobby.prepare,,")
	t.Setenv("REDIS_HANDSHAKE_TIMEOUT", "2s")
	t.Setenv("REDIS_HEALTH_CHECK_INTERVAL", "not-a-duration")
	t.Setenv("DISPATCH_BUFFER", "64")

	cfg := fromEnv()
	assert.Equal(t, []string{"lobby.start", "lobby.prepare"}, cfg.RedisChannels)
	assert.Equal(t, 64, cfg.DispatchBuffer)

	rc := cfg.Redis()
	assert.Equal(t, "redis.internal:6380", rc.Addr())
	assert.Equal(t, "s3cret", rc.Password)
	assert.Equal(t, 2, rc.DB)
	assert.False(t, rc.AutoReconnect)
	assert.Equal(t, 2*time.Second, rc.HandshakeTimeout)
	assert.Equal(t, 15*time.Second, rc.HealthCheckInterval)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("REDIS_CHANNELS=match.end\nAPP_PORT=9090\n"), 0o600))

	t.Setenv("REDIS_CHANNELS", "")
	os.Unsetenv("REDIS_CHANNELS")
	t.Setenv("APP_PORT", "")
	os.Unsetenv("APP_PORT")

	require.NoError(t, godotenv.Load(path))
	cfg := fromEnv()
	assert.Equal(t, []string{"match.end"}, cfg.RedisChannels)
	assert.Equal(t, "9090", cfg.AppPort)
}
