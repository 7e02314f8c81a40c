package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: pricewatch\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Analysis.WindowSize)
	assert.InDelta(t, 0.05, cfg.Analysis.Threshold, 1e-12)
	assert.Equal(t, BackendCSV, cfg.History.Backend)
	assert.Equal(t, "bitcoin_data.csv", cfg.History.Path)
	assert.Equal(t, "bitcoin.usd", cfg.Provider.PricePath)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, LockNone, cfg.Scheduler.Lock.Backend)
	assert.Equal(t, "bitcoin_trend.png", cfg.Report.ChartPath)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
analysis:
  window_size: 5
  threshold: 0.1
history:
  backend: SQLite
  path: /tmp/prices.db
scheduler:
  interval: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Analysis.WindowSize)
	assert.InDelta(t, 0.1, cfg.Analysis.Threshold, 1e-12)
	assert.Equal(t, BackendSQLite, cfg.History.Backend)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
}

func TestLoadLegacyEnv(t *testing.T) {
	t.Setenv("API_URL", "https://example.test/price")
	t.Setenv("ALERT_EMAIL", "ops@example.test")
	t.Setenv("EMAIL_APP_PASSWORD", "secret")

	cfg, err := Load(writeConfig(t, "alerting:\n  email:\n    enabled: true\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://example.test/price", cfg.Provider.URL)
	assert.Equal(t, "ops@example.test", cfg.Alerting.Email.From)
	assert.Equal(t, []string{"ops@example.test"}, cfg.Alerting.Email.To)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Provider:  ProviderConfig{URL: "http://x", PricePath: "bitcoin.usd"},
			History:   HistoryConfig{Backend: BackendCSV, Path: "data.csv"},
			Analysis:  AnalysisConfig{WindowSize: 2, Threshold: 0.05},
			Scheduler: SchedulerConfig{Interval: time.Minute, Lock: LockConfig{Backend: LockNone}},
			Export:    ExportConfig{MaxDataPoints: 10},
		}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(c *Config){
		"window zero":       func(c *Config) { c.Analysis.WindowSize = 0 },
		"negative":          func(c *Config) { c.Analysis.Threshold = -0.1 },
		"no interval":       func(c *Config) { c.Scheduler.Interval = 0 },
		"unknown backend":   func(c *Config) { c.History.Backend = "mongo" },
		"postgres no dsn":   func(c *Config) { c.History.Backend = BackendPostgres },
		"pg lock on csv":    func(c *Config) { c.Scheduler.Lock.Backend = LockPostgres },
		"email no password": func(c *Config) { c.Alerting.Email = EmailConfig{Enabled: true, Username: "a"} },
		"webhook no url":    func(c *Config) { c.Alerting.Webhook.Enabled = true },
		"s3 no bucket":      func(c *Config) { c.Report.S3.Enabled = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	c := &Config{Export: ExportConfig{MaxDataPoints: 50}}
	assert.Equal(t, 50, c.ResolveMaxPoints(0))
	assert.Equal(t, 7, c.ResolveMaxPoints(7))
}
