package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PG_DSN", "postgres://localhost/kitchen_test")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 3, cfg.ProcurementTxRetries)
	assert.Equal(t, 10*time.Second, cfg.ProcurementOrderLockTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, 72*time.Hour, cfg.IdempotencyRetention)
	assert.Equal(t, ":9091", cfg.WorkerMetricsAddr)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APP_ENV=production\nRATE_LIMIT_PER_MINUTE=30\n"), 0o600))
	t.Setenv("APP_ENV", "")
	os.Unsetenv("APP_ENV")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "45")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 45, cfg.RateLimitPerMinute)
}

func TestConfigValidate(t *testing.T) {
	base := Config{PGDSN: "postgres://x", ProcurementTxRetries: 1, ProcurementOrderLockTTL: time.Second, RateLimitPerMinute: 10}
	require.NoError(t, base.Validate())

	cases := map[string]func(*Config){
		"dsn":        func(c *Config) { c.PGDSN = "" },
		"retries":    func(c *Config) { c.ProcurementTxRetries = -1 },
		"lock ttl":   func(c *Config) { c.ProcurementOrderLockTTL = 0 },
		"rate limit": func(c *Config) { c.RateLimitPerMinute = 0 },
	}
	for name, mutate := range cases {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
