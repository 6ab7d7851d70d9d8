package taskpg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/auth"
	"github.com/youssefsiam38/taskpg/driver"
	"github.com/youssefsiam38/taskpg/leadership"
	"github.com/youssefsiam38/taskpg/maintenance"
	"github.com/youssefsiam38/taskpg/notifier"
	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

// Version is the current taskpg version
const Version = "1.0.0"

// Client is the entry point for everything taskpg stores. It validates and
// reconciles task writes, publishes change events, owns the auth provider
// and runs background cleanup while it holds the maintenance lease.
//
// TTx is the native transaction type from the driver (e.g., pgx.Tx, *sql.Tx).
type Client[TTx any] struct {
	driver driver.Driver[TTx]
	store  storage.Store
	config *ClientConfig

	auth    *auth.Provider
	notif   *notifier.Notifier
	cleanup *maintenance.Cleanup
	elector *leadership.Elector

	started atomic.Bool
	cancel  context.CancelFunc
}

// NewClient creates a new client with the given driver and configuration.
// The transaction type TTx is inferred from the driver argument.
//
// Example:
//
//	drv := pgxv5.New(pool)
//	client, err := taskpg.NewClient(drv, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Stop(ctx)
//
//	task, err := client.CreateTask(ctx, &storage.Task{Name: "Quarterly report"})
func NewClient[TTx any](drv driver.Driver[TTx], config *ClientConfig) (*Client[TTx], error) {
	if drv == nil {
		return nil, fmt.Errorf("%w: driver is required", ErrInvalidConfig)
	}
	if !drv.PoolIsSet() {
		return nil, fmt.Errorf("%w: driver pool is not set", ErrInvalidConfig)
	}

	if config == nil {
		config = DefaultClientConfig()
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	c := &Client[TTx]{
		driver: drv,
		store:  drv.GetStore(),
		config: config,
	}
	c.auth = auth.New(c.store, config.Auth)

	// Without a listener the notifier delivers in-process.
	var getListener func(context.Context) (driver.Listener, error)
	if drv.SupportsListener() {
		getListener = drv.GetListener
	}
	c.notif = notifier.NewNotifier(getListener, drv.GetNotifier(), &notifier.Config{
		ReconnectDelay: config.NotifyReconnectDelay,
		OnError:        c.reportError,
		OnReconnect: func() {
			c.logInfo("change listener reconnected")
		},
	})

	c.cleanup = maintenance.NewCleanup(c.store, &maintenance.CleanupConfig{
		Interval: config.CleanupInterval,
		Now:      config.Now,
		OnExpiredSessionCleanup: func(count int) {
			c.logInfo("removed expired auth sessions", "count", count)
		},
		OnError: c.reportError,
	})

	c.elector = leadership.NewElector(c.store, config.InstanceID, &leadership.Config{
		LeaderTTL: config.LeaderTTL,
		Now:       config.Now,
		OnError:   c.reportError,
	}, leadership.Callbacks{
		OnBecameLeader: func(ctx context.Context) {
			c.logInfo("acquired maintenance lease", "instance_id", config.InstanceID)
			if err := c.cleanup.Start(ctx); err != nil && !errors.Is(err, maintenance.ErrAlreadyStarted) {
				c.reportError(fmt.Errorf("failed to start cleanup service: %w", err))
			}
		},
		OnLostLeadership: func(ctx context.Context) {
			c.logInfo("released maintenance lease", "instance_id", config.InstanceID)
			if c.cleanup.IsRunning() {
				_ = c.cleanup.Stop(ctx)
			}
		},
	})

	return c, nil
}

// Start begins background operations: the change listener and the election
// for the maintenance lease. Session cleanup runs only on the lease holder.
func (c *Client[TTx]) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrClientAlreadyStarted
	}

	ctx, c.cancel = context.WithCancel(ctx)

	if err := c.notif.Start(ctx); err != nil {
		c.cancel()
		c.started.Store(false)
		return fmt.Errorf("failed to start notifier: %w", err)
	}

	if err := c.elector.Start(ctx); err != nil {
		_ = c.notif.Stop(ctx)
		c.cancel()
		c.started.Store(false)
		return fmt.Errorf("failed to start leader election: %w", err)
	}

	c.logInfo("client started", "version", Version, "instance_id", c.config.InstanceID, "local_events", c.notif.Local())
	return nil
}

// Stop gracefully shuts down the background services.
func (c *Client[TTx]) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return ErrClientNotStarted
	}

	if c.cancel != nil {
		c.cancel()
	}

	// Stop services in reverse order (best-effort, continue on errors)
	if c.elector.IsRunning() {
		_ = c.elector.Stop(ctx)
	}
	if c.cleanup.IsRunning() {
		_ = c.cleanup.Stop(ctx)
	}
	if c.notif.IsRunning() {
		_ = c.notif.Stop(ctx)
	}

	c.started.Store(false)
	return nil
}

// IsRunning returns true if the client is running.
func (c *Client[TTx]) IsRunning() bool {
	return c.started.Load()
}

// IsLeader reports whether this instance holds the maintenance lease.
func (c *Client[TTx]) IsLeader() bool {
	return c.elector.IsLeader()
}

// Store returns the storage interface for direct access.
func (c *Client[TTx]) Store() storage.Store {
	return c.store
}

// Driver returns the database driver.
func (c *Client[TTx]) Driver() driver.Driver[TTx] {
	return c.driver
}

// Auth returns the auth provider.
func (c *Client[TTx]) Auth() *auth.Provider {
	return c.auth
}

// Now returns the configured clock's current time.
func (c *Client[TTx]) Now() time.Time {
	return c.config.Now()
}

// Migrate creates the schema.
func (c *Client[TTx]) Migrate(ctx context.Context) error {
	if err := c.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// RunCleanup removes expired auth sessions once.
func (c *Client[TTx]) RunCleanup(ctx context.Context) *maintenance.CleanupResult {
	return c.cleanup.RunOnce(ctx)
}

// InTx runs fn inside a transaction. Store calls made with the context passed
// to fn join it, and TxFromContext returns the native transaction. Called
// inside another InTx it opens a savepoint. The transaction commits when fn
// returns nil.
func (c *Client[TTx]) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var (
		tx  driver.ExecutorTx
		err error
	)
	if outer := driver.ExecutorFromContext(ctx); outer != nil {
		tx, err = outer.Begin(ctx)
	} else {
		tx, err = c.driver.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txCtx := driver.WithExecutor(ctx, tx)
	txCtx = withNativeTx(txCtx, c.driver.UnwrapTx(tx))
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// Tasks
// =============================================================================

// ListTasks returns every task ordered by start date.
func (c *Client[TTx]) ListTasks(ctx context.Context) ([]*storage.Task, error) {
	tasks, err := c.store.ListTasks(ctx)
	if err != nil {
		return nil, newTaskError("list tasks", "", err)
	}
	return tasks, nil
}

// GetTask returns one task. A missing task yields ErrTaskNotFound.
func (c *Client[TTx]) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	task, err := c.store.GetTask(ctx, id)
	if err != nil {
		return nil, newTaskError("get task", id, mapNotFound(err))
	}
	return task, nil
}

// CreateTask validates and stores a new task, then publishes task_created.
// Missing fields get their defaults and status and progress are reconciled.
func (c *Client[TTx]) CreateTask(ctx context.Context, task *storage.Task) (*storage.Task, error) {
	if err := c.insertTask(ctx, task); err != nil {
		return nil, err
	}
	c.publish(ctx, notifier.EventTaskCreated, task.ID)
	return task, nil
}

func (c *Client[TTx]) insertTask(ctx context.Context, task *storage.Task) error {
	if task == nil {
		return newTaskError("create task", "", fmt.Errorf("%w: task is nil", ErrInvalidTask))
	}
	task.Name = strings.TrimSpace(task.Name)

	statusGiven, progressGiven := task.Status != "", task.Progress != 0
	task.ApplyDefaults()
	task.Status, task.Progress = types.Reconcile(task.Status, task.Progress, statusGiven, progressGiven)

	if err := c.validateTask(ctx, task); err != nil {
		return newTaskError("create task", task.ID, err)
	}
	if err := c.store.InsertTask(ctx, task); err != nil {
		return newTaskError("create task", task.ID, err)
	}
	return nil
}

// UpdateTask applies a partial update and returns the stored result.
// When status or progress change the other one follows the coupling rules.
func (c *Client[TTx]) UpdateTask(ctx context.Context, id string, patch *storage.TaskPatch) (*storage.Task, error) {
	current, err := c.store.GetTask(ctx, id)
	if err != nil {
		return nil, newTaskError("update task", id, mapNotFound(err))
	}
	if patch.Empty() {
		return current, nil
	}

	p := *patch
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}

	merged := *current
	p.Apply(&merged)

	if p.Status != nil || p.Progress != nil {
		status, progress := types.Reconcile(merged.Status, merged.Progress, p.Status != nil, p.Progress != nil)
		p.Status, p.Progress = &status, &progress
		merged.Status, merged.Progress = status, progress
	}

	if err := c.validateTask(ctx, &merged); err != nil {
		return nil, newTaskError("update task", id, err)
	}
	if err := c.store.UpdateTask(ctx, id, &p); err != nil {
		return nil, newTaskError("update task", id, mapNotFound(err))
	}

	updated, err := c.store.GetTask(ctx, id)
	if err != nil {
		return nil, newTaskError("update task", id, mapNotFound(err))
	}
	c.publish(ctx, notifier.EventTaskUpdated, id)
	return updated, nil
}

// RescheduleTask moves a task to [start, end] in a single update. Reversed
// dates are swapped.
func (c *Client[TTx]) RescheduleTask(ctx context.Context, id string, start, end civil.Date) (*storage.Task, error) {
	if !start.IsValid() || !end.IsValid() {
		return nil, newTaskError("reschedule task", id, fmt.Errorf("%w: invalid dates", ErrInvalidTask))
	}
	if end.Before(start) {
		start, end = end, start
	}
	return c.UpdateTask(ctx, id, &storage.TaskPatch{StartDate: &start, EndDate: &end})
}

// SetProgress sets a task's progress, clamped to 0..100.
func (c *Client[TTx]) SetProgress(ctx context.Context, id string, progress int) (*storage.Task, error) {
	progress = types.ClampProgress(progress)
	return c.UpdateTask(ctx, id, &storage.TaskPatch{Progress: &progress})
}

// DeleteTask removes a task. Its children move up to its parent.
func (c *Client[TTx]) DeleteTask(ctx context.Context, id string) error {
	if err := c.store.DeleteTask(ctx, id); err != nil {
		return newTaskError("delete task", id, mapNotFound(err))
	}
	c.publish(ctx, notifier.EventTaskDeleted, id)
	return nil
}

// ImportTasks inserts tasks in one transaction and publishes a single
// tasks_imported event. Tasks may reference each other as parents when
// their IDs are set; parents must come before their children.
func (c *Client[TTx]) ImportTasks(ctx context.Context, tasks []*storage.Task) (int, error) {
	err := c.InTx(ctx, func(ctx context.Context) error {
		for _, task := range tasks {
			if err := c.insertTask(ctx, task); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.publish(ctx, notifier.EventTasksImported, "")
	return len(tasks), nil
}

func (c *Client[TTx]) validateTask(ctx context.Context, task *storage.Task) error {
	if task.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	if !task.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, task.Status)
	}
	if !task.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, task.Priority)
	}
	if task.StartDate != nil && task.EndDate != nil && task.EndDate.Before(*task.StartDate) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidTask, task.EndDate, task.StartDate)
	}
	if !task.Recurrence.Rule.Valid() {
		return fmt.Errorf("%w: unknown recurrence %q", ErrInvalidTask, task.Recurrence.Rule)
	}
	if task.Recurrence.Interval < 1 {
		return fmt.Errorf("%w: recurrence interval must be at least 1", ErrInvalidTask)
	}

	parent := task.Parent()
	if parent == "" {
		return nil
	}
	if parent == task.ID {
		return fmt.Errorf("%w: a task cannot be its own parent", ErrInvalidTask)
	}

	// Walk up from the new parent; meeting the task itself means a cycle.
	seen := map[string]bool{task.ID: true}
	for id := parent; id != ""; {
		if seen[id] {
			if id == task.ID {
				return fmt.Errorf("%w: parent %s would create a cycle", ErrInvalidTask, parent)
			}
			return nil
		}
		seen[id] = true

		ancestor, err := c.store.GetTask(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			if id == parent {
				return fmt.Errorf("%w: parent %s does not exist", ErrInvalidTask, parent)
			}
			return nil
		}
		if err != nil {
			return err
		}
		id = ancestor.Parent()
	}
	return nil
}

// =============================================================================
// Profiles and teams
// =============================================================================

// ListProfiles returns every profile ordered by display name.
func (c *Client[TTx]) ListProfiles(ctx context.Context) ([]*storage.Profile, error) {
	return c.store.ListProfiles(ctx)
}

// GetProfile returns one profile.
func (c *Client[TTx]) GetProfile(ctx context.Context, id string) (*storage.Profile, error) {
	return c.store.GetProfile(ctx, id)
}

// CreateUser creates a profile that can sign in with password.
func (c *Client[TTx]) CreateUser(ctx context.Context, profile *storage.Profile, password string) (*storage.Profile, error) {
	if profile == nil || strings.TrimSpace(profile.Email) == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidConfig)
	}
	if profile.Role != "" && !profile.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidConfig, profile.Role)
	}
	hash, err := c.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := c.store.CreateProfile(ctx, profile, hash); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	c.logInfo("user created", "profile_id", profile.ID, "role", profile.Role)
	return profile, nil
}

// ListTeams returns every team ordered by name.
func (c *Client[TTx]) ListTeams(ctx context.Context) ([]*storage.Team, error) {
	return c.store.ListTeams(ctx)
}

// CreateTeam stores a new team.
func (c *Client[TTx]) CreateTeam(ctx context.Context, team *storage.Team) (*storage.Team, error) {
	if team == nil || strings.TrimSpace(team.Name) == "" {
		return nil, fmt.Errorf("%w: team name is required", ErrInvalidConfig)
	}
	if err := c.store.CreateTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}
	return team, nil
}

// =============================================================================
// Change events
// =============================================================================

// Subscribe registers handler for one event type and returns a function
// that removes it.
func (c *Client[TTx]) Subscribe(eventType notifier.EventType, handler notifier.Handler) func() {
	return c.notif.Subscribe(eventType, handler)
}

// SubscribeAll registers handler for every task change event.
func (c *Client[TTx]) SubscribeAll(handler notifier.Handler) func() {
	return c.notif.SubscribeAll(handler)
}

// publish sends a change event. A failed publish does not fail the write
// that caused it.
func (c *Client[TTx]) publish(ctx context.Context, eventType notifier.EventType, taskID string) {
	if err := c.notif.Notify(ctx, eventType, taskID); err != nil {
		c.reportError(fmt.Errorf("publish %s: %w", eventType, err))
	}
}

func (c *Client[TTx]) reportError(err error) {
	if c.config.Logger != nil {
		c.config.Logger.Error("background operation failed", "error", err)
	}
	if c.config.OnError != nil {
		c.config.OnError(err)
	}
}

func (c *Client[TTx]) logInfo(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Info(msg, args...)
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrTaskNotFound, err)
	}
	return err
}
