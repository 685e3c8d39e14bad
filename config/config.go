/*
Package config loads the service configuration.

PURPOSE:
  One YAML file carries every non-secret tunable: listen address, database
  path, window ceilings, breaker threshold, per-source timeouts, currency
  overrides, location seed, cache backend, staff ICS feeds and the refresh
  schedule. Secrets come from the environment (optionally a .env file).

DEFAULTS:
  DefaultConfig() is a working local setup. Normalize() fills zero values so
  partial files behave like the default.

SEE ALSO:
  - cmd/meetingd/main.go: flag overrides and wiring
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/warp/meeting-engine/engine"
	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
)

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type WindowConfig struct {
	// SoftMaxDays is the span cost-sensitive sources are truncated to.
	SoftMaxDays int `yaml:"soft_max_days"`
	// HardMaxDays rejects larger requests before any source is queried.
	HardMaxDays int `yaml:"hard_max_days"`
}

type SourcesConfig struct {
	DefaultTimeout time.Duration            `yaml:"default_timeout"`
	Timeouts       map[string]time.Duration `yaml:"timeouts"`
	CostSensitive  []string                 `yaml:"cost_sensitive"`
	// TripAfter is how many consecutive timeouts open a source's breaker.
	TripAfter int `yaml:"trip_after"`
}

type LocationConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Link string `yaml:"link,omitempty"`
}

type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend   string        `yaml:"backend"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
}

// ICSConfig is one supplementary staff-calendar subscription.
type ICSConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

type NotifyConfig struct {
	FromEmail   string        `yaml:"from_email"`
	FromName    string        `yaml:"from_name"`
	SMSFrom     string        `yaml:"sms_from"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// Config is the top-level service configuration.
type Config struct {
	Listen      string   `yaml:"listen"`
	DB          string   `yaml:"db"`
	Timezone    string   `yaml:"timezone"`
	CORSOrigins []string `yaml:"cors_origins"`

	Log     LogConfig     `yaml:"log"`
	Window  WindowConfig  `yaml:"window"`
	Sources SourcesConfig `yaml:"sources"`

	// Rates overrides ISO code -> NIS rate.
	Rates     map[string]float64 `yaml:"rates"`
	Locations []LocationConfig   `yaml:"locations"`

	Cache  CacheConfig  `yaml:"cache"`
	ICS    []ICSConfig  `yaml:"ics"`
	Notify NotifyConfig `yaml:"notify"`

	// RefreshCron rebuilds the availability index. Empty disables it.
	RefreshCron string        `yaml:"refresh"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		DB:          "./data/meetings.db",
		Timezone:    "Asia/Jerusalem",
		CORSOrigins: []string{"*"},
		Log:         LogConfig{Level: "info"},
		Window: WindowConfig{
			SoftMaxDays: engine.DefaultSoftMaxDays,
			HardMaxDays: engine.DefaultHardMaxDays,
		},
		Sources: SourcesConfig{
			DefaultTimeout: engine.DefaultSourceTimeout,
			Timeouts:       map[string]time.Duration{},
			CostSensitive:  []string{string(meeting.SourceLegacy)},
			TripAfter:      1,
		},
		Rates:       map[string]float64{},
		Locations:   []LocationConfig{},
		Cache:       CacheConfig{Backend: "memory", TTL: 5 * time.Minute},
		ICS:         []ICSConfig{},
		Notify:      NotifyConfig{FromName: "Meetings", SendTimeout: 15 * time.Second},
		RefreshCron: "*/15 * * * *",
		TokenTTL:    12 * time.Hour,
	}
}

// Normalize fills in missing or zero values with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.DB == "" {
		c.DB = d.DB
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = d.CORSOrigins
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Window.SoftMaxDays <= 0 {
		c.Window.SoftMaxDays = d.Window.SoftMaxDays
	}
	if c.Window.HardMaxDays <= 0 {
		c.Window.HardMaxDays = d.Window.HardMaxDays
	}
	if c.Window.SoftMaxDays > c.Window.HardMaxDays {
		c.Window.SoftMaxDays = c.Window.HardMaxDays
	}
	if c.Sources.DefaultTimeout <= 0 {
		c.Sources.DefaultTimeout = d.Sources.DefaultTimeout
	}
	if c.Sources.Timeouts == nil {
		c.Sources.Timeouts = d.Sources.Timeouts
	}
	if c.Sources.CostSensitive == nil {
		c.Sources.CostSensitive = d.Sources.CostSensitive
	}
	if c.Sources.TripAfter <= 0 {
		c.Sources.TripAfter = d.Sources.TripAfter
	}
	if c.Rates == nil {
		c.Rates = d.Rates
	}
	if c.Locations == nil {
		c.Locations = d.Locations
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "memory", "redis":
		c.Cache.Backend = strings.ToLower(c.Cache.Backend)
	default:
		c.Cache.Backend = d.Cache.Backend
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.ICS == nil {
		c.ICS = d.ICS
	}
	if c.Notify.FromName == "" {
		c.Notify.FromName = d.Notify.FromName
	}
	if c.Notify.SendTimeout <= 0 {
		c.Notify.SendTimeout = d.Notify.SendTimeout
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = d.TokenTTL
	}
}

// Validate reports settings Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	for name := range c.Sources.Timeouts {
		if _, ok := meeting.ParseSourceKind(name); !ok {
			errs = append(errs, fmt.Errorf("sources.timeouts: unknown source %q", name))
		}
	}
	for _, name := range c.Sources.CostSensitive {
		if _, ok := meeting.ParseSourceKind(name); !ok {
			errs = append(errs, fmt.Errorf("sources.cost_sensitive: unknown source %q", name))
		}
	}
	if lvl := strings.ToLower(c.Log.Level); string(logging.ParseLevel(lvl)) != lvl {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	for i, feed := range c.ICS {
		if feed.ID == "" || feed.URL == "" {
			errs = append(errs, fmt.Errorf("ics[%d]: id and url are required", i))
		}
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		errs = append(errs, errors.New("cache.redis_addr required for redis backend"))
	}
	return errors.Join(errs...)
}

// Engine translates the file settings into engine tunables.
func (c *Config) Engine() engine.Config {
	cfg := engine.Config{
		SoftMaxDays:    c.Window.SoftMaxDays,
		HardMaxDays:    c.Window.HardMaxDays,
		TripAfter:      c.Sources.TripAfter,
		DefaultTimeout: c.Sources.DefaultTimeout,
		SourceTimeouts: make(map[meeting.SourceKind]time.Duration, len(c.Sources.Timeouts)),
	}
	for name, d := range c.Sources.Timeouts {
		if kind, ok := meeting.ParseSourceKind(name); ok && d > 0 {
			cfg.SourceTimeouts[kind] = d
		}
	}
	for _, name := range c.Sources.CostSensitive {
		if kind, ok := meeting.ParseSourceKind(name); ok {
			cfg.CostSensitive = append(cfg.CostSensitive, kind)
		}
	}
	return cfg
}

// Lookup builds the canonical lookup tables: the built-in location seed
// extended by configured locations, and default rates with overrides.
func (c *Config) Lookup() *meeting.Lookup {
	seed := meeting.DefaultLocationSeed()
	for _, loc := range c.Locations {
		seed[loc.ID] = meeting.Location{Name: loc.Name, Link: loc.Link}
	}
	return meeting.NewLookup(seed, meeting.DefaultRates().WithOverrides(c.Rates))
}

// Location resolves Timezone, falling back to UTC for a name Validate would
// have rejected.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// =============================================================================
// SECRETS
// =============================================================================

// Secrets are read from the environment only.
type Secrets struct {
	JWTSecret        string
	SendGridAPIKey   string
	TwilioAccountSID string
	TwilioAuthToken  string
	RedisPassword    string
}

// LoadSecrets loads envFiles (missing files are ignored) then reads the
// environment. Variables already set win over file values.
func LoadSecrets(envFiles ...string) Secrets {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
	return Secrets{
		JWTSecret:        os.Getenv("JWT_SECRET"),
		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
	}
}
