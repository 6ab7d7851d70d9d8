package taskpg

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/taskpg/auth"
	"github.com/youssefsiam38/taskpg/leadership"
	"github.com/youssefsiam38/taskpg/maintenance"
)

// Logger is the logging interface used by the client. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ClientConfig holds configuration for the Client.
type ClientConfig struct {
	// CleanupInterval is how often expired auth sessions are removed (optional)
	// Default: 10 minutes
	CleanupInterval time.Duration

	// NotifyReconnectDelay is how long the change listener waits before
	// reconnecting (optional)
	// Default: 5 seconds
	NotifyReconnectDelay time.Duration

	// InstanceID names this process in the maintenance lease (optional)
	// Default: hostname plus a random suffix
	InstanceID string

	// LeaderTTL is how long the maintenance lease lasts without renewal (optional)
	// Default: 30 seconds
	LeaderTTL time.Duration

	// Auth configures the built-in auth provider (optional)
	Auth *auth.Config

	// Logger for client events (optional)
	Logger Logger

	// OnError is called when background operations fail
	OnError func(err error)

	// Now returns the current time (optional)
	// Default: time.Now
	Now func() time.Time
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		CleanupInterval:      maintenance.DefaultCleanupInterval,
		NotifyReconnectDelay: 5 * time.Second,
		LeaderTTL:            leadership.DefaultLeaderTTL,
		Auth:                 auth.DefaultConfig(),
		Now:                  time.Now,
	}
}

func (c *ClientConfig) applyDefaults() {
	defaults := DefaultClientConfig()
	if c.Now == nil {
		c.Now = defaults.Now
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = defaults.CleanupInterval
	}
	if c.NotifyReconnectDelay == 0 {
		c.NotifyReconnectDelay = defaults.NotifyReconnectDelay
	}
	if c.LeaderTTL == 0 {
		c.LeaderTTL = defaults.LeaderTTL
	}
	if c.InstanceID == "" {
		c.InstanceID = defaultInstanceID()
	}
	if c.Auth == nil {
		c.Auth = defaults.Auth
	}
	if c.Auth.Logger == nil && c.Logger != nil {
		c.Auth.Logger = c.Logger
	}
	if c.Auth.Now == nil {
		c.Auth.Now = c.Now
	}
}

func (c *ClientConfig) validate() error {
	if c.CleanupInterval < 0 {
		return fmt.Errorf("%w: CleanupInterval must not be negative", ErrInvalidConfig)
	}
	if c.NotifyReconnectDelay < 0 {
		return fmt.Errorf("%w: NotifyReconnectDelay must not be negative", ErrInvalidConfig)
	}
	if c.LeaderTTL < 0 {
		return fmt.Errorf("%w: LeaderTTL must not be negative", ErrInvalidConfig)
	}
	if c.Auth != nil && c.Auth.SessionTTL < 0 {
		return fmt.Errorf("%w: Auth.SessionTTL must not be negative", ErrInvalidConfig)
	}
	return nil
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "taskpg"
	}
	return host + "-" + uuid.NewString()[:8]
}
