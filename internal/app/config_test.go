package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/clarity/internal/model"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	assert.Equal(t, model.StrategyLocal, cfg.Scan.Strategy)
	assert.Equal(t, 2*time.Minute, cfg.Scan.Timeout)
	assert.True(t, cfg.Scan.URL.DenyPrivateHosts)
	assert.Equal(t, 60*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, []string{"wcag2a", "wcag2aa"}, cfg.Engine.RunTags)
	assert.Equal(t, "desktop", cfg.Remote.Strategy)
	assert.Equal(t, 5*time.Minute, cfg.Remote.HTTP.DNSCacheRefresh)
	assert.Equal(t, 3, cfg.Quota.FreeScansPerDay)
	assert.Equal(t, 5, cfg.Server.RateLimit.Burst, "ratelimit section is copied into the server config")
	assert.NoError(t, cfg.Validate())
}

func TestConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CLARITY_SCAN_STRATEGY", "remote")
	t.Setenv("CLARITY_SCAN_TIMEOUT", "90s")
	t.Setenv("CLARITY_SERVER_WRITE_TIMEOUT", "100s")
	t.Setenv("PAGESPEED_API_KEY", "psi-key")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_1")
	t.Setenv("STRIPE_PRICE_PERSONAL", "price_p")
	t.Setenv("PUBLIC_DOMAIN", "https://clarity.example")

	cfg, err := NewConfigFromViper(NewViper())
	require.NoError(t, err)

	assert.Equal(t, model.StrategyRemote, cfg.Scan.Strategy)
	assert.Equal(t, 90*time.Second, cfg.Scan.Timeout)
	assert.Equal(t, "psi-key", cfg.Remote.APIKey)
	assert.Equal(t, "sk_test_1", cfg.Billing.SecretKey)
	assert.Equal(t, "price_p", cfg.Billing.PricePersonal)
	assert.Equal(t, "https://clarity.example", cfg.Billing.PublicDomain)
}

func TestConfig_PrefixedEnvWinsOverConventionalName(t *testing.T) {
	t.Setenv("CLARITY_REMOTE_API_KEY", "prefixed")
	t.Setenv("PAGESPEED_API_KEY", "conventional")

	cfg, err := NewConfigFromViper(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Remote.APIKey)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "clarity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scan:
  strategy: remote
  max_concurrent: 2
remote:
  strategy: mobile
  allow_anonymous: true
quota:
  free_scans_per_day: 10
storage:
  path: ":memory:"
`), 0o600))

	cfg, err := LoadConfig(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, model.StrategyRemote, cfg.Scan.Strategy)
	assert.Equal(t, int64(2), cfg.Scan.MaxConcurrent)
	assert.Equal(t, "mobile", cfg.Remote.Strategy)
	assert.True(t, cfg.Remote.AllowAnonymous)
	assert.Equal(t, 10, cfg.Quota.FreeScansPerDay)
	assert.Equal(t, ":memory:", cfg.Storage.Path)

	_, err = LoadConfig(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown strategy", func(c *Config) { c.Scan.Strategy = "hybrid" }},
		{"zero scan timeout", func(c *Config) { c.Scan.Timeout = 0 }},
		{"negative concurrency", func(c *Config) { c.Scan.MaxConcurrent = -1 }},
		{"zero navigation timeout", func(c *Config) { c.Browser.NavigationTimeout = 0 }},
		{"write timeout shorter than scan", func(c *Config) { c.Server.WriteTimeout = time.Minute }},
		{"bad form factor", func(c *Config) { c.Remote.Strategy = "tablet" }},
		{"quota without allowance", func(c *Config) { c.Quota.FreeScansPerDay = 0 }},
		{"quota without storage", func(c *Config) { c.Storage.Path = "" }},
		{"negative rps", func(c *Config) { c.RateLimit.RPS = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
