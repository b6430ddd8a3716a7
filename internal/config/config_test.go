package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "tally.db", cfg.Store.SQLitePath)
	assert.Equal(t, 2*time.Second, cfg.Store.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.Survey.SessionTTL)
	assert.Equal(t, 500, cfg.Dashboard.SubmissionWindow)
	assert.Equal(t, 1000, cfg.Dashboard.EventWindow)
	assert.Equal(t, 7, cfg.Dashboard.TrendDays)
	assert.Equal(t, 3, cfg.Matcher.MaxCandidates)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Empty(t, cfg.Survey.Dir)

	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.ValidateServe(), "no jwt secret")
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
store:
  driver: Postgres
  postgres_dsn: postgres://localhost/tally
  poll_interval: 45s
dashboard:
  timezone: Africa/Accra
  submission_window: 50
auth:
  jwt_secret: from-file-secret-value
`), 0o644))

	t.Setenv("TALLY_HTTP_ADDR", ":7070")
	t.Setenv("TALLY_MATCHER_MAX_CANDIDATES", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Addr, "env overrides file")
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/tally", cfg.Store.PostgresDSN)
	assert.Equal(t, 45*time.Second, cfg.Store.PollInterval)
	assert.Equal(t, 50, cfg.Dashboard.SubmissionWindow)
	assert.Equal(t, 5, cfg.Matcher.MaxCandidates)
	assert.Equal(t, "from-file-secret-value", cfg.Auth.JWTSecret)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Africa/Accra", loc.String())

	assert.NoError(t, cfg.ValidateServe())
}

func TestLoad_DefaultFileName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "tally.yaml"), []byte("survey:\n  dir: ./surveys\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./surveys", cfg.Survey.Dir)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Auth.JWTSecret = "0123456789abcdef"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, "postgres_dsn"},
		{"empty sqlite path", func(c *Config) { c.Store.SQLitePath = "" }, "sqlite_path"},
		{"zero window", func(c *Config) { c.Dashboard.SubmissionWindow = 0 }, "submission_window"},
		{"negative event window", func(c *Config) { c.Dashboard.EventWindow = -1 }, "event_window"},
		{"one candidate", func(c *Config) { c.Matcher.MaxCandidates = 1 }, "max_candidates"},
		{"bad timezone", func(c *Config) { c.Dashboard.Timezone = "Mars/Olympus" }, "timezone"},
		{"zero ttl", func(c *Config) { c.Survey.SessionTTL = 0 }, "session_ttl"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			require.NoError(t, cfg.ValidateServe())
			tt.mutate(cfg)
			err := cfg.ValidateServe()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
