package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: custom.sqlite\nretry:\n  max_attempts: 9\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "custom.sqlite", cfg.DBPath)
	require.Equal(t, 9, cfg.Retry.MaxAttempts)
	require.Equal(t, Default().Logging, cfg.Logging)
}

func TestRetryPolicyDurations(t *testing.T) {
	r := RetryPolicy{BaseDelaySeconds: 0.5, MaxDelaySeconds: 30, CircuitBreakerCooldownSec: 10}
	require.Equal(t, 500_000_000, int(r.BaseDelay()))
	require.Equal(t, int64(30), int64(r.MaxDelay().Seconds()))
	require.Equal(t, int64(10), int64(r.CircuitBreakerCooldown().Seconds()))
}
