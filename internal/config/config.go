package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"dutycal/internal/duty"
	"dutycal/internal/ourairports"
	"dutycal/internal/publish"
)

// Environment variables overriding file values.
const (
	EnvInputURL     = "DUTYCAL_INPUT_URL"
	EnvOutputPath   = "DUTYCAL_OUTPUT_PATH"
	EnvDatabasePath = "DUTYCAL_DATABASE_PATH"
	EnvLogLevel     = "DUTYCAL_LOG_LEVEL"
	EnvListen       = "DUTYCAL_LISTEN"
	EnvWorkers      = "DUTYCAL_WORKERS"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// AirportsConfig locates the airport reference data.
type AirportsConfig struct {
	AirportsURL  string `yaml:"airports_url" json:"airports_url"`
	CountriesURL string `yaml:"countries_url" json:"countries_url"`
	// RefreshCron schedules the dataset download. The data changes rarely.
	RefreshCron string `yaml:"refresh" json:"refresh"`
}

// Config is the top-level application configuration.
type Config struct {
	// InputCalendarURL is the roster ICS subscription. It usually carries a
	// secret token and is redacted in logs.
	InputCalendarURL string `yaml:"input_calendar_url" json:"-"`

	// OutputCalendarPath is where the enriched calendar is written.
	OutputCalendarPath string `yaml:"output_calendar_path" json:"output_calendar_path"`

	// CalendarName is written as X-WR-CALNAME.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Timezone is the IANA zone used for floating times in the source.
	Timezone string `yaml:"timezone" json:"timezone"`

	DatabasePath string `yaml:"database_path" json:"database_path"`
	CacheDir     string `yaml:"cache_dir" json:"cache_dir"`

	// ArchiveAfter is how long after its end a roster event is frozen in the
	// archive instead of following the source.
	ArchiveAfter time.Duration `yaml:"archive_after" json:"archive_after"`

	// HorizonDays bounds recurrence expansion into the future.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// Workers caps classification workers. Zero uses GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// Listen is the HTTP listen address. Empty disables the HTTP server.
	Listen string `yaml:"listen" json:"listen"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Airports AirportsConfig `yaml:"airports" json:"airports"`

	// Reminders overrides the built-in reminder offsets per duty kind, e.g.
	//
	//	reminders:
	//	  flight: [2h, 30m]
	//	  standby: []
	Reminders map[string][]time.Duration `yaml:"reminders,omitempty" json:"reminders,omitempty"`

	Publish publish.Config `yaml:"publish" json:"publish"`
}

const (
	defaultRefresh         = "*/15 * * * *"
	defaultAirportsRefresh = "30 3 * * 0"
	defaultArchiveAfter    = 7 * 24 * time.Hour
	defaultHorizonDays     = 365
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults so partially filled
// configs still behave correctly.
func (c *Config) Normalize() {
	if c.OutputCalendarPath == "" {
		c.OutputCalendarPath = "./var/duty.ics"
	}
	if c.CalendarName == "" {
		c.CalendarName = "Duty Plan"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "./var/dutycal.db"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/cache"
	}
	if c.ArchiveAfter <= 0 {
		c.ArchiveAfter = defaultArchiveAfter
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Airports.AirportsURL == "" {
		c.Airports.AirportsURL = ourairports.DefaultAirportsURL
	}
	if c.Airports.CountriesURL == "" {
		c.Airports.CountriesURL = ourairports.DefaultCountriesURL
	}
	if c.Airports.RefreshCron == "" {
		c.Airports.RefreshCron = defaultAirportsRefresh
	}
}

// ApplyEnv overrides file values with DUTYCAL_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvInputURL); v != "" {
		c.InputCalendarURL = v
	}
	if v := os.Getenv(EnvOutputPath); v != "" {
		c.OutputCalendarPath = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.InputCalendarURL) == "" {
		errs = append(errs, errors.New("input_calendar_url is required"))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	if _, err := cron.ParseStandard(c.Airports.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("airports.refresh %q: %w", c.Airports.RefreshCron, err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if _, err := c.ReminderPolicy(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location returns the configured zone, UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReminderPolicy is the default reminder table with the configured
// overrides applied.
func (c *Config) ReminderPolicy() (duty.Policy, error) {
	return duty.DefaultPolicy().WithOverrides(c.Reminders)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and defaults are filled in.
//
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Normalize()
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions. The file may
// hold credentials.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return publish.WriteFileAtomic(path, data, 0o600)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
