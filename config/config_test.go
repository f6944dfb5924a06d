package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timetracker/factory"
	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/mail"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./timetracker.db", cfg.DB.Path)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, mail.DefaultFrom, cfg.Mail.From)
	assert.Equal(t, 5, cfg.Tracker.WorkingDays)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	// GIVEN: A YAML file with market maps and an env override for the port
	// WHEN: Loading
	// THEN: The env wins and market keys come back uppercased

	path := writeConfig(t, `
server:
  port: 9000
tracker:
  zeroing_markets: [ie, PL]
  overrides:
    - market: ie
      strategy: rounded
      increment_minutes: 30
notify:
  manager_emails_override:
    IE: [ie-managers@example.com]
  manager_names_override:
    IE: [Ann, Bob]
  tl_approval_chains:
    BG:
      AD: [lead@example.com]
scheduler:
  enabled: true
  interval: 1h
`)
	t.Setenv("TIMETRACKER_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"IE", "PL"}, cfg.Tracker.ZeroingMarkets)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)

	notify := cfg.NotifyConfig()
	assert.Equal(t, []string{"ie-managers@example.com"}, notify.ManagerEmailsOverride["IE"])
	assert.Equal(t, []string{"Ann", "Bob"}, notify.ManagerNamesOverride["IE"])
	assert.Equal(t, []string{"lead@example.com"}, notify.TLApprovalChains["BG"]["AD"])
	assert.Equal(t, mail.DefaultFrom, notify.From)

	overrides, err := cfg.Overrides()
	require.NoError(t, err)
	assert.Contains(t, overrides, "IE")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:  ServerConfig{Port: 8080},
			DB:      DBConfig{Path: ":memory:"},
			Log:     LogConfig{Level: "info", Format: "json"},
			Tracker: TrackerConfig{WorkingDays: 5},
		}
	}
	cfg := valid()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"no db path", func(c *Config) { c.DB.Path = "" }},
		{"working days", func(c *Config) { c.Tracker.WorkingDays = 8 }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"scheduler interval", func(c *Config) { c.Scheduler = SchedulerConfig{Enabled: true} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("unknown strategy", func(t *testing.T) {
		cfg := valid()
		cfg.Tracker.Overrides = append(cfg.Tracker.Overrides, overrideDef("IE", "magic"))
		assert.ErrorIs(t, cfg.Validate(), generic.ErrInvalidArgument)
	})
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: -1\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [unclosed\n"))
	assert.Error(t, err)
}

func overrideDef(market, strategy string) factory.OverrideJSON {
	return factory.OverrideJSON{Market: market, Strategy: strategy}
}
