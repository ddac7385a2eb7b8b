package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.PresenceBackend)
	assert.Equal(t, 50, cfg.HistoryPageSize)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadValidatesPresenceBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PRESENCE_BACKEND", "gossip")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRedisPresenceNeedsURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PRESENCE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.PresenceBackend)
}
