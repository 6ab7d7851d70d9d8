// Package leadership elects one taskpg instance to run housekeeping.
//
// Several servers may share a database. Expired session cleanup only needs
// to run in one of them, so instances compete for a lease row with a TTL.
// The holder renews it well before it expires; if the holder disappears the
// lease runs out and another instance takes over.
package leadership

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/youssefsiam38/taskpg/storage"
)

// Default configuration values
const (
	DefaultLeaderTTL       = 30 * time.Second
	DefaultElectionPeriod  = 10 * time.Second
	DefaultReelectionDelay = 5 * time.Second
)

// Config holds configuration for the elector.
type Config struct {
	// LeaderTTL is how long a lease is valid without renewal.
	// Default: 30 seconds
	LeaderTTL time.Duration

	// ElectionPeriod is how often a follower tries to take the lease.
	// Default: 10 seconds
	ElectionPeriod time.Duration

	// ReelectionDelay is how often the leader renews. Must be below LeaderTTL.
	// Default: 5 seconds
	ReelectionDelay time.Duration

	// Now returns the current time. Default: time.Now
	Now func() time.Time

	// OnError is called when a store call fails. The loop keeps going.
	OnError func(err error)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LeaderTTL:       DefaultLeaderTTL,
		ElectionPeriod:  DefaultElectionPeriod,
		ReelectionDelay: DefaultReelectionDelay,
		Now:             time.Now,
	}
}

func (c *Config) applyDefaults() {
	if c.LeaderTTL <= 0 {
		c.LeaderTTL = DefaultLeaderTTL
	}
	if c.ElectionPeriod <= 0 {
		c.ElectionPeriod = DefaultElectionPeriod
	}
	if c.ReelectionDelay <= 0 || c.ReelectionDelay >= c.LeaderTTL {
		c.ReelectionDelay = c.LeaderTTL / 3
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Callbacks are called when leadership changes.
type Callbacks struct {
	// OnBecameLeader runs with the context passed to Start.
	OnBecameLeader func(ctx context.Context)

	// OnLostLeadership runs when renewal fails, on Resign and on Stop.
	OnLostLeadership func(ctx context.Context)
}

// Elector competes for the maintenance lease on behalf of one instance.
type Elector struct {
	store      storage.Store
	instanceID string
	config     *Config
	callbacks  Callbacks

	mu       sync.RWMutex
	isLeader bool

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewElector creates an elector for instanceID.
func NewElector(store storage.Store, instanceID string, config *Config, callbacks Callbacks) *Elector {
	if config == nil {
		config = DefaultConfig()
	}
	config.applyDefaults()

	return &Elector{
		store:      store,
		instanceID: instanceID,
		config:     config,
		callbacks:  callbacks,
	}
}

// Start runs the election loop in a goroutine until Stop.
func (e *Elector) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	e.done = make(chan struct{})
	ctx, e.cancel = context.WithCancel(ctx)
	go e.runElectionLoop(ctx)

	return nil
}

// Stop ends the loop and gives the lease back if this instance holds it.
func (e *Elector) Stop(ctx context.Context) error {
	if !e.started.Load() {
		return ErrNotStarted
	}

	e.cancel()
	<-e.done

	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = false
	e.mu.Unlock()

	if wasLeader {
		resignCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := e.store.LeaderResign(resignCtx, e.instanceID); err != nil {
			e.reportError(err)
		}
		if e.callbacks.OnLostLeadership != nil {
			e.callbacks.OnLostLeadership(ctx)
		}
	}

	e.started.Store(false)
	return nil
}

// IsLeader reports whether this instance currently holds the lease.
func (e *Elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// IsRunning reports whether the loop is running.
func (e *Elector) IsRunning() bool {
	return e.started.Load()
}

// Resign gives up the lease. The loop keeps running and may win it again.
func (e *Elector) Resign(ctx context.Context) error {
	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = false
	e.mu.Unlock()

	if !wasLeader {
		return nil
	}

	if err := e.store.LeaderResign(ctx, e.instanceID); err != nil {
		return err
	}
	if e.callbacks.OnLostLeadership != nil {
		e.callbacks.OnLostLeadership(ctx)
	}
	return nil
}

func (e *Elector) runElectionLoop(ctx context.Context) {
	defer close(e.done)

	e.attemptElection(ctx)

	for {
		delay := e.config.ElectionPeriod
		if e.IsLeader() {
			delay = e.config.ReelectionDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if e.IsLeader() {
				e.attemptReelection(ctx)
			} else {
				e.attemptElection(ctx)
			}
		}
	}
}

func (e *Elector) params() *storage.LeaderElectParams {
	return &storage.LeaderElectParams{
		LeaderID: e.instanceID,
		TTL:      e.config.LeaderTTL,
		Now:      e.config.Now(),
	}
}

func (e *Elector) attemptElection(ctx context.Context) {
	elected, err := e.store.LeaderAttemptElect(ctx, e.params())
	if err != nil {
		if ctx.Err() == nil {
			e.reportError(err)
		}
		return
	}
	if !elected {
		return
	}

	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = true
	e.mu.Unlock()

	if !wasLeader && e.callbacks.OnBecameLeader != nil {
		e.callbacks.OnBecameLeader(ctx)
	}
}

// attemptReelection renews the lease. Any failure counts as lost leadership,
// since another instance may take over once the TTL passes.
func (e *Elector) attemptReelection(ctx context.Context) {
	reelected, err := e.store.LeaderAttemptReelect(ctx, e.params())
	if err != nil && ctx.Err() == nil {
		e.reportError(err)
	}
	if err == nil && reelected {
		return
	}

	e.mu.Lock()
	e.isLeader = false
	e.mu.Unlock()

	if e.callbacks.OnLostLeadership != nil {
		e.callbacks.OnLostLeadership(ctx)
	}
}

func (e *Elector) reportError(err error) {
	if e.config.OnError != nil {
		e.config.OnError(err)
	}
}
