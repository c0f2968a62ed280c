package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	appLog "classcal/internal/log"
)

// EnvPrefix is stripped from environment overrides; "__" separates nested
// keys, e.g. CLASSCAL_LAYOUT__DAY_START=07:30.
const EnvPrefix = "CLASSCAL_"

// BasicAuthConfig holds HTTP Basic Auth credentials for the API. Auth is
// enabled only when both fields are set.
type BasicAuthConfig struct {
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
}

// Enabled reports whether credentials are configured.
func (b BasicAuthConfig) Enabled() bool {
	return b.Username != "" && b.Password != ""
}

// LayoutConfig controls the day view.
type LayoutConfig struct {
	// Grouping is the overlap grouping policy: "exact" or "chained".
	Grouping string `koanf:"grouping" yaml:"grouping"`
	// DayStart and DayEnd bound the visible hour grid ("HH:MM").
	DayStart string `koanf:"day_start" yaml:"day_start"`
	DayEnd   string `koanf:"day_end" yaml:"day_end"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `koanf:"listen" yaml:"listen"`

	// Timezone is the IANA zone used to display events and to read floating
	// times. "Local" means the system zone.
	Timezone string `koanf:"timezone" yaml:"timezone"`

	// WeekStart is the first column of the month grid: "monday" or "sunday".
	WeekStart string `koanf:"week_start" yaml:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to reload FeedURL. Empty disables periodic refresh.
	RefreshCron string `koanf:"refresh" yaml:"refresh"`

	// FeedURL is the ICS subscription endpoint.
	FeedURL string `koanf:"feed_url" yaml:"feed_url"`

	// StatePath is where the selection and last events are persisted.
	StatePath string `koanf:"state_path" yaml:"state_path"`

	// CacheDir holds ETag/Last-Modified metadata; empty disables it.
	CacheDir string `koanf:"cache_dir" yaml:"cache_dir"`

	LogLevel string `koanf:"log_level" yaml:"log_level"`

	// Metrics exposes /metrics when true.
	Metrics bool `koanf:"metrics" yaml:"metrics"`

	Layout    LayoutConfig    `koanf:"layout" yaml:"layout"`
	BasicAuth BasicAuthConfig `koanf:"basic_auth" yaml:"basic_auth"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Local",
		WeekStart:   "monday",
		RefreshCron: "*/30 * * * *",
		FeedURL:     "",
		StatePath:   "/var/lib/classcal/state.json",
		CacheDir:    "/var/cache/classcal",
		LogLevel:    "info",
		Metrics:     true,
		Layout: LayoutConfig{
			Grouping: "exact",
			DayStart: "08:00",
			DayEnd:   "19:30",
		},
	}
}

// Normalize fills in missing or invalid values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	c.Listen = strings.TrimSpace(c.Listen)
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}

	switch strings.ToLower(strings.TrimSpace(c.WeekStart)) {
	case "sunday":
		c.WeekStart = "sunday"
	default:
		c.WeekStart = "monday"
	}

	c.RefreshCron = strings.TrimSpace(c.RefreshCron)
	c.FeedURL = strings.TrimSpace(c.FeedURL)
	if c.StatePath == "" {
		c.StatePath = def.StatePath
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
		c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	default:
		c.LogLevel = def.LogLevel
	}

	switch strings.ToLower(strings.TrimSpace(c.Layout.Grouping)) {
	case "chained":
		c.Layout.Grouping = "chained"
	default:
		c.Layout.Grouping = "exact"
	}
	if c.Layout.DayStart == "" {
		c.Layout.DayStart = def.Layout.DayStart
	}
	if c.Layout.DayEnd == "" {
		c.Layout.DayEnd = def.Layout.DayEnd
	}
}

// Location resolves Timezone, falling back to the system zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Warn("unknown timezone; using local time", "timezone", c.Timezone, "err", err)
		return time.Local
	}
	return loc
}

// FirstWeekday maps WeekStart onto a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Load builds the configuration from defaults, the YAML file at path and
// CLASSCAL_* environment variables, in that order.
//
// When the file does not exist a default one is written first (0600), so a
// fresh install has something to edit.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if err := Save(path, DefaultConfig()); err != nil {
			appLog.Error("failed to write default config", err, "path", path)
		} else {
			appLog.Info("wrote default config", "path", path)
		}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(*DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		appLog.Info("config file not found; using defaults and environment", "path", path)
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
			return strings.ReplaceAll(k, "__", "."), v
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path as YAML, atomically (temp file + rename) and with
// 0600 permissions, creating the parent directory if needed.
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

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".classcal-config-*.tmp")
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
