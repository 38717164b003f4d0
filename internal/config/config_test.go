package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://feedhub@localhost/feedhub")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.PostDelay)
	assert.Equal(t, 3, cfg.PostRateLimit)
	assert.Equal(t, time.Minute, cfg.PostRateWindow)
	assert.Equal(t, 3, cfg.JobMaxAttempts)
	assert.Equal(t, []time.Duration{5 * time.Second, 30 * time.Second, 2 * time.Minute}, cfg.RetryBackoff)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://feedhub@localhost/feedhub")
	t.Setenv("JOB_BACKOFF", "1s,2s")
	t.Setenv("JOB_WORKERS", "9")
	t.Setenv("POST_DELAY", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, cfg.RetryBackoff)
	assert.Equal(t, 9, cfg.JobWorkers)
	assert.Equal(t, 250*time.Millisecond, cfg.PostDelay)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://feedhub@localhost/feedhub")
	t.Setenv("JOB_WORKERS", "0")

	_, err := Load()
	assert.Error(t, err)
}
