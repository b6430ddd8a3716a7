// Package config loads server configuration from defaults, an optional
// YAML file and TALLY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	// zone database for dashboard.timezone
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// EnvPrefix prefixes every environment override: http.addr is read from
// TALLY_HTTP_ADDR.
const EnvPrefix = "TALLY"

// Config holds the configuration for the server.
type Config struct {
	HTTP struct {
		Addr           string        `mapstructure:"addr"`
		RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
		RateLimitBurst int           `mapstructure:"rate_limit_burst"`
		ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
	} `mapstructure:"http"`
	Store struct {
		Driver       string        `mapstructure:"driver"`
		SQLitePath   string        `mapstructure:"sqlite_path"`
		PostgresDSN  string        `mapstructure:"postgres_dsn"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"store"`
	Survey struct {
		// Dir holds CUE questionnaire definitions. Empty selects the
		// built-in questionnaire.
		Dir        string        `mapstructure:"dir"`
		Name       string        `mapstructure:"name"`
		SessionTTL time.Duration `mapstructure:"session_ttl"`
	} `mapstructure:"survey"`
	Dashboard struct {
		SubmissionWindow int    `mapstructure:"submission_window"`
		EventWindow      int    `mapstructure:"event_window"`
		Timezone         string `mapstructure:"timezone"`
		TrendDays        int    `mapstructure:"trend_days"`
	} `mapstructure:"dashboard"`
	Matcher struct {
		MaxCandidates int `mapstructure:"max_candidates"`
	} `mapstructure:"matcher"`
	Auth struct {
		JWTSecret string        `mapstructure:"jwt_secret"`
		TokenTTL  time.Duration `mapstructure:"token_ttl"`
		Operator  string        `mapstructure:"operator"`
	} `mapstructure:"auth"`
}

var defaults = map[string]any{
	"http.addr":                   ":8080",
	"http.rate_limit_rps":         5.0,
	"http.rate_limit_burst":       20,
	"http.shutdown_grace":         10 * time.Second,
	"store.driver":                DriverSQLite,
	"store.sqlite_path":           "tally.db",
	"store.postgres_dsn":          "",
	"store.poll_interval":         2 * time.Second,
	"survey.dir":                  "",
	"survey.name":                 "",
	"survey.session_ttl":          30 * time.Minute,
	"dashboard.submission_window": 500,
	"dashboard.event_window":      1000,
	"dashboard.timezone":          "UTC",
	"dashboard.trend_days":        7,
	"matcher.max_candidates":      3,
	"auth.jwt_secret":             "",
	"auth.token_ttl":              12 * time.Hour,
	"auth.operator":               "admin",
}

// Load reads configuration. With an empty path it looks for tally.yaml in
// the working directory and ./config, and a missing file is not an error.
// An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tally")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	return &cfg, nil
}

// Location returns the dashboard time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Dashboard.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Dashboard.Timezone)
	if err != nil {
		return nil, fmt.Errorf("dashboard.timezone: %w", err)
	}
	return loc, nil
}

// Validate checks settings every command needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of sqlite, postgres", c.Store.Driver))
	}

	if c.Dashboard.SubmissionWindow <= 0 {
		errs = append(errs, errors.New("dashboard.submission_window must be positive"))
	}
	if c.Dashboard.EventWindow <= 0 {
		errs = append(errs, errors.New("dashboard.event_window must be positive"))
	}
	if c.Dashboard.TrendDays <= 0 {
		errs = append(errs, errors.New("dashboard.trend_days must be positive"))
	}
	if c.Matcher.MaxCandidates < 2 {
		errs = append(errs, errors.New("matcher.max_candidates must be at least 2"))
	}
	if c.Survey.SessionTTL <= 0 {
		errs = append(errs, errors.New("survey.session_ttl must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateServe adds the checks that only matter when serving HTTP.
func (c *Config) ValidateServe() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.RateLimitRPS <= 0 || c.HTTP.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("http.rate_limit_rps and http.rate_limit_burst must be positive"))
	}
	return errors.Join(errs...)
}
