// Package maintenance runs periodic housekeeping against the store.
package maintenance

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/youssefsiam38/taskpg/storage"
)

// DefaultCleanupInterval is how often expired auth sessions are removed.
const DefaultCleanupInterval = 10 * time.Minute

// CleanupConfig holds configuration for the cleanup service.
type CleanupConfig struct {
	// Interval is how often to run cleanup operations.
	// Default: 10 minutes
	Interval time.Duration

	// Now returns the current time. Default: time.Now
	Now func() time.Time

	// OnExpiredSessionCleanup is called with the number of sessions and
	// recovery tokens removed, when non-zero.
	OnExpiredSessionCleanup func(count int)

	// OnError is called when a cleanup operation fails.
	OnError func(err error)
}

// DefaultCleanupConfig returns the default cleanup configuration.
func DefaultCleanupConfig() *CleanupConfig {
	return &CleanupConfig{
		Interval: DefaultCleanupInterval,
		Now:      time.Now,
	}
}

func (c *CleanupConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultCleanupInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// CleanupResult holds the results of a cleanup operation.
type CleanupResult struct {
	// ExpiredSessionsCleaned counts removed sessions and recovery tokens.
	ExpiredSessionsCleaned int

	// Errors contains any errors that occurred during cleanup.
	Errors []error
}

// Cleanup removes expired auth sessions on an interval.
type Cleanup struct {
	store  storage.Store
	config *CleanupConfig

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewCleanup creates a new cleanup service.
func NewCleanup(store storage.Store, config *CleanupConfig) *Cleanup {
	if config == nil {
		config = DefaultCleanupConfig()
	}
	config.applyDefaults()

	return &Cleanup{
		store:  store,
		config: config,
	}
}

// Start begins the cleanup loop.
// It returns immediately and runs cleanup operations in a goroutine.
func (c *Cleanup) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	c.done = make(chan struct{})
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)

	return nil
}

// Stop stops the cleanup loop and waits for it to exit.
func (c *Cleanup) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return ErrNotStarted
	}

	c.cancel()
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.started.Store(false)
	return nil
}

// run is the main cleanup loop.
func (c *Cleanup) run(ctx context.Context) {
	defer close(c.done)

	// Run cleanup immediately on start
	c.runCleanup(ctx)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runCleanup(ctx)
		}
	}
}

func (c *Cleanup) runCleanup(ctx context.Context) {
	result := c.RunOnce(ctx)

	if c.config.OnExpiredSessionCleanup != nil && result.ExpiredSessionsCleaned > 0 {
		c.config.OnExpiredSessionCleanup(result.ExpiredSessionsCleaned)
	}

	if c.config.OnError != nil {
		for _, err := range result.Errors {
			c.config.OnError(err)
		}
	}
}

// RunOnce performs cleanup operations once and returns the result.
// This can be called manually for testing or one-off cleanup.
func (c *Cleanup) RunOnce(ctx context.Context) *CleanupResult {
	result := &CleanupResult{}

	count, err := c.store.DeleteExpiredAuthSessions(ctx, c.config.Now())
	if err != nil {
		result.Errors = append(result.Errors, err)
	} else {
		result.ExpiredSessionsCleaned = count
	}

	return result
}

// IsRunning returns true if the cleanup service is running.
func (c *Cleanup) IsRunning() bool {
	return c.started.Load()
}
