package driver

import (
	"context"
	"errors"
)

// Notification represents a PostgreSQL NOTIFY notification.
type Notification struct {
	Channel string
	Payload string
}

// Listener receives PostgreSQL notifications on a dedicated connection.
// Only drivers talking to PostgreSQL implement it; the notifier package
// falls back to in-process delivery otherwise.
type Listener interface {
	// Listen starts listening on channel. Multiple channels may be active.
	Listen(ctx context.Context, channel string) error

	// WaitForNotification blocks until a notification arrives on any
	// subscribed channel, the context is cancelled or the connection fails.
	WaitForNotification(ctx context.Context) (*Notification, error)

	// Close releases the connection. The listener cannot be reused.
	Close(ctx context.Context) error
}

// Notifier sends NOTIFY notifications through the pool.
type Notifier interface {
	Notify(ctx context.Context, channel, payload string) error
}

// ChannelTaskChanged carries task mutations.
// Payload is JSON: {"op": "task_created|task_updated|task_deleted|tasks_imported", "task_id": "..."}
const ChannelTaskChanged = "taskpg_task_changed"

// ErrListenerClosed is returned by a Listener after Close.
var ErrListenerClosed = errors.New("driver: listener closed")
