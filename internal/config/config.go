// Package config loads process configuration for the taskpg command.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// YAML file, a .env file in the working directory and TASKPG_ environment
// variables. Nested keys map to variables with dots replaced by
// underscores, so http.addr is TASKPG_HTTP_ADDR.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverPgx    = "pgx"
	DriverPq     = "pq"
	DriverSQLite = "sqlite"
)

// ErrInvalid indicates a configuration value that cannot be used.
var ErrInvalid = errors.New("config: invalid")

// Config is the full process configuration.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	UI          UIConfig          `mapstructure:"ui"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// DatabaseConfig selects the storage driver.
type DatabaseConfig struct {
	// Driver is pgx, pq or sqlite.
	Driver string `mapstructure:"driver"`

	// URL is a PostgreSQL connection string, or a file path for sqlite.
	URL string `mapstructure:"url"`
}

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// UIConfig configures the web surfaces.
type UIConfig struct {
	BasePath        string        `mapstructure:"base_path"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Timezone        string        `mapstructure:"timezone"`
	SecureCookie    bool          `mapstructure:"secure_cookie"`
}

// AuthConfig configures session lifetimes.
type AuthConfig struct {
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
	RecoveryTTL time.Duration `mapstructure:"recovery_ttl"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`

	// Format is text or json.
	Format string `mapstructure:"format"`
}

// MaintenanceConfig configures background cleanup.
type MaintenanceConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

var defaults = map[string]any{
	"database.driver":       DriverSQLite,
	"database.url":          "taskpg.db",
	"http.addr":             ":8080",
	"http.shutdown_timeout": "15s",
	"ui.base_path":          "/ui",
	"ui.refresh_interval":   "5s",
	"ui.timezone":           "",
	"ui.secure_cookie":      false,
	"auth.session_ttl":      "168h",
	"auth.recovery_ttl":     "1h",
	"log.level":             "info",
	"log.format":            "text",
	"maintenance.interval":  "10m",
}

// Load reads the configuration. path names an optional YAML file; an empty
// path skips it. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("TASKPG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPgx, DriverPq, DriverSQLite:
	default:
		return fmt.Errorf("%w: database.driver %q (want pgx, pq or sqlite)", ErrInvalid, c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("%w: database.url is required", ErrInvalid)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: http.addr is required", ErrInvalid)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: ui.timezone: %v", ErrInvalid, err)
	}
	if _, err := c.level(); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log.format %q (want text or json)", ErrInvalid, c.Log.Format)
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.RecoveryTTL <= 0 {
		return fmt.Errorf("%w: auth TTLs must be positive", ErrInvalid)
	}
	return nil
}

// Location resolves ui.timezone. Empty means the host's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.UI.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.UI.Timezone)
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}

// NewLogger builds the slog logger described by the log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.level()
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
