package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultListen          = "127.0.0.1:8080"
	defaultServiceURL      = "http://127.0.0.1:9000/"
	defaultReferenceMonday = "1970-01-05"
	defaultSessionSweep    = "*/10 * * * *"
	referenceDateLayout    = "2006-01-02"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// TermConfig describes the teaching term a schedule repeats over when it is
// exported as an iCalendar feed.
type TermConfig struct {
	// Start is the first day of the term (YYYY-MM-DD). Weekly sessions are
	// anchored on the week containing it.
	Start string `yaml:"start" json:"start" validate:"omitempty,datetime=2006-01-02"`
	// Weeks is the number of weeks sessions repeat for.
	Weeks int `yaml:"weeks" json:"weeks" validate:"gte=1,lte=60"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// ServiceURL is the root endpoint of the remote scheduling service.
	ServiceURL string `yaml:"service_url" json:"service_url" validate:"required,url"`

	// Timezone is the IANA timezone of the reference week (e.g. "America/New_York").
	// Empty means the process local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// ReferenceMonday is the Monday (YYYY-MM-DD) whose week the calendar shows.
	ReferenceMonday string `yaml:"reference_monday" json:"reference_monday" validate:"required,datetime=2006-01-02"`

	// DayStartHour / DayEndHour bound the visible part of each day.
	DayStartHour int `yaml:"day_start_hour" json:"day_start_hour" validate:"gte=0,lte=23"`
	DayEndHour   int `yaml:"day_end_hour" json:"day_end_hour" validate:"gte=1,lte=24,gtfield=DayStartHour"`

	// RequestTimeoutSeconds bounds one round-trip to the scheduling service.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" json:"request_timeout_seconds" validate:"gte=1"`

	// SubmitRatePerMinute limits submissions per client IP.
	SubmitRatePerMinute int `yaml:"submit_rate_per_minute" json:"submit_rate_per_minute" validate:"gte=1"`

	// SessionIdleMinutes is how long an untouched browsing session is kept.
	SessionIdleMinutes int `yaml:"session_idle_minutes" json:"session_idle_minutes" validate:"gte=1"`

	// SessionSweep is a cron-style schedule for dropping idle sessions.
	SessionSweep string `yaml:"session_sweep" json:"session_sweep" validate:"required"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`

	// Palette overrides the course colors. Empty uses the built-in palette.
	Palette []string `yaml:"palette,omitempty" json:"palette,omitempty" validate:"dive,required"`

	// Term controls iCalendar export.
	Term TermConfig `yaml:"term" json:"term"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                defaultListen,
		ServiceURL:            defaultServiceURL,
		Timezone:              "",
		ReferenceMonday:       defaultReferenceMonday,
		DayStartHour:          8,
		DayEndHour:            22,
		RequestTimeoutSeconds: 30,
		SubmitRatePerMinute:   30,
		SessionIdleMinutes:    120,
		SessionSweep:          defaultSessionSweep,
		LogLevel:              "info",
		Term: TermConfig{
			Weeks: 15,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.ServiceURL == "" {
		c.ServiceURL = defaultServiceURL
	}
	if c.ReferenceMonday == "" {
		c.ReferenceMonday = defaultReferenceMonday
	}
	// A zero window means the field was left out.
	if c.DayStartHour == 0 && c.DayEndHour == 0 {
		c.DayStartHour = 8
		c.DayEndHour = 22
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 30
	}
	if c.SubmitRatePerMinute <= 0 {
		c.SubmitRatePerMinute = 30
	}
	if c.SessionIdleMinutes <= 0 {
		c.SessionIdleMinutes = 120
	}
	if c.SessionSweep == "" {
		c.SessionSweep = defaultSessionSweep
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Term.Weeks <= 0 {
		c.Term.Weeks = 15
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints after Normalize.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.ReferenceOrigin(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. Empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ReferenceOrigin parses ReferenceMonday and checks it is a Monday.
func (c *Config) ReferenceOrigin() (time.Time, error) {
	t, err := time.Parse(referenceDateLayout, c.ReferenceMonday)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: reference_monday: %w", err)
	}
	if t.Weekday() != time.Monday {
		return time.Time{}, fmt.Errorf("config: reference_monday %s is a %s", c.ReferenceMonday, t.Weekday())
	}
	return t, nil
}

// RequestTimeout returns RequestTimeoutSeconds as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// SessionIdle returns SessionIdleMinutes as a duration.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".schedgen-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
