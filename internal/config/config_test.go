package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CRON_SECRET", "s3cret")
	t.Setenv("LEDGER_BACKEND", "memory")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("APP_BASE_URL", "https://studio.example/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Ledger.Backend)
	assert.Equal(t, time.UTC, cfg.Ledger.Location)
	assert.Equal(t, "https://studio.example", cfg.Server.AppBaseURL)
	assert.Equal(t, 8, cfg.Reports.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Reports.MemberTimeout)
	assert.False(t, cfg.Firebase.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CRON_SECRET", "s3cret")
	t.Setenv("LEDGER_BACKEND", "Postgres")
	t.Setenv("POSTGRES_URL", "postgres://localhost/ledger")
	t.Setenv("TIMEZONE", "Europe/Istanbul")
	t.Setenv("REPORT_CONCURRENCY", "3")
	t.Setenv("REPORT_MEMBER_TIMEOUT", "5s")
	t.Setenv("REPORT_RUN_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Ledger.Backend)
	assert.Equal(t, "Europe/Istanbul", cfg.Ledger.Location.String())
	assert.Equal(t, 3, cfg.Reports.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Reports.MemberTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Reports.RunTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Ledger:  LedgerConfig{Backend: BackendMemory, Timezone: "UTC"},
			Cron:    CronConfig{Secret: "s3cret"},
			Reports: ReportsConfig{Concurrency: 1},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing cron secret", func(c *Config) { c.Cron.Secret = "" }},
		{"unknown backend", func(c *Config) { c.Ledger.Backend = "sqlite" }},
		{"postgres without url", func(c *Config) { c.Ledger.Backend = BackendPostgres }},
		{"bad timezone", func(c *Config) { c.Ledger.Timezone = "Mars/Olympus" }},
		{"partial firebase", func(c *Config) { c.Firebase.ProjectID = "studio" }},
		{"otel without endpoint", func(c *Config) { c.OTEL.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
