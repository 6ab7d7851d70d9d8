package ui

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	DefaultRefreshInterval = 5 * time.Second
	DefaultEventInterval   = 2 * time.Second
	DefaultPageSize        = 25
	DefaultCookieName      = "taskpg_session"
)

// Config holds UI package configuration.
type Config struct {
	// BasePath is the URL prefix where the frontend is mounted.
	// For example, if mounted at "/ui/", set BasePath to "/ui".
	// All navigation links and the session cookie path use it.
	// Defaults to empty string (root mount).
	BasePath string

	// Location is the time zone "today" is computed in for overdue checks,
	// the calendar and the timeline marker. Defaults to time.Local.
	Location *time.Location

	// Logger for structured logging.
	// If nil, logging is disabled.
	Logger Logger

	// RefreshInterval is how often pages poll for task changes.
	// Defaults to 5 seconds.
	RefreshInterval time.Duration

	// EventInterval is how often the API change stream checks for updates.
	// Defaults to 2 seconds.
	EventInterval time.Duration

	// PageSize for pagination.
	// Defaults to 25.
	PageSize int

	// CookieName names the session cookie shared by the frontend and the API.
	CookieName string

	// SecureCookie marks the session cookie Secure. Enable behind HTTPS.
	SecureCookie bool
}

// Logger interface for structured logging.
// Compatible with *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Location:        time.Local,
		RefreshInterval: DefaultRefreshInterval,
		EventInterval:   DefaultEventInterval,
		PageSize:        DefaultPageSize,
		CookieName:      DefaultCookieName,
	}
}

// applyDefaults fills in default values for zero-valued fields.
func (c *Config) applyDefaults() {
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.EventInterval == 0 {
		c.EventInterval = DefaultEventInterval
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	if c.PageSize < 1 {
		return fmt.Errorf("%w: page size must be positive", ErrInvalidConfig)
	}
	if c.RefreshInterval < time.Second {
		return fmt.Errorf("%w: refresh interval below one second", ErrInvalidConfig)
	}
	if c.EventInterval < 100*time.Millisecond {
		return fmt.Errorf("%w: event interval below 100ms", ErrInvalidConfig)
	}
	if c.BasePath != "" && (c.BasePath[0] != '/' || c.BasePath[len(c.BasePath)-1] == '/') {
		return fmt.Errorf("%w: base path %q must start with / and not end with one", ErrInvalidConfig, c.BasePath)
	}
	return nil
}
