package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Environment variables (optionally from a .env file) win
// over the file; see ApplyEnv.

const dateLayout = "2006-01-02"

// ICSConfig describes a personal calendar whose events become blockers.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for blocker IDs and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// FestivalConfig bounds the days for which representations are generated.
// Dates use YYYY-MM-DD and are inclusive.
type FestivalConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// RateLimitConfig limits API requests per client address.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute" json:"per_minute"`
	Burst     int `yaml:"burst" json:"burst"`
	// TrustedProxies lists peer IPs or CIDRs whose X-Forwarded-For header
	// names the client. Other peers are limited by their own address.
	TrustedProxies []string `yaml:"trusted_proxies,omitempty" json:"trusted_proxies,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API and calendar page.
	Listen string `yaml:"listen" json:"listen"`

	// Env selects the log format: "production" or "development".
	Env string `yaml:"env" json:"env"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Timezone is the IANA zone for festival wall-clock times
	// (e.g. "Europe/Paris").
	Timezone string `yaml:"timezone" json:"timezone"`

	Festival FestivalConfig `yaml:"festival" json:"festival"`

	// Catalog is the path of the play catalog (YAML or JSON).
	Catalog string `yaml:"catalog" json:"catalog"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to refresh blockers from the ICS sources.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// MaxOccurrences caps expansion per play and per recurring blocker.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// ICS is the list of blocker calendars.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Env:            "development",
		LogLevel:       "info",
		Timezone:       "Europe/Paris",
		Festival:       FestivalConfig{Start: "2026-07-01", End: "2026-07-31"},
		Catalog:        "plays.yaml",
		RefreshCron:    "*/15 * * * *",
		MaxOccurrences: 5000,
		CacheDir:       "./cache/ics-cache",
		ICS:            []ICSConfig{},
		RateLimit:      RateLimitConfig{PerMinute: 120, Burst: 20},
		BasicAuth:      nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	switch c.Env {
	case "production", "development":
	default:
		c.Env = def.Env
	}
	switch c.LogLevel {
	case "debug", "info", "error":
	default:
		c.LogLevel = def.LogLevel
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Festival.Start == "" {
		c.Festival.Start = def.Festival.Start
	}
	if c.Festival.End == "" {
		c.Festival.End = def.Festival.End
	}
	if c.Catalog == "" {
		c.Catalog = def.Catalog
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = def.MaxOccurrences
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.RateLimit.PerMinute <= 0 {
		c.RateLimit.PerMinute = def.RateLimit.PerMinute
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// FestivalRange parses the festival dates in the configured location.
func (c *Config) FestivalRange() (time.Time, time.Time, error) {
	loc := c.Location()
	start, err := time.ParseInLocation(dateLayout, c.Festival.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("festival.start: %w", err)
	}
	end, err := time.ParseInLocation(dateLayout, c.Festival.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("festival.end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("festival.end is before festival.start")
	}
	return start, end, nil
}

// ApplyEnv loads envFile (if present) into the process environment and
// overrides file values with FESTCAL_* variables.
func (c *Config) ApplyEnv(envFile string) {
	if envFile != "" {
		// A missing .env file is normal outside development.
		_ = godotenv.Load(envFile)
	}
	if v := os.Getenv("FESTCAL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("FESTCAL_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("FESTCAL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FESTCAL_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("FESTCAL_CATALOG"); v != "" {
		c.Catalog = v
	}
	c.Normalize()
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
//   - normalize defaults
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

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file in the same directory, then rename) with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".festcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
