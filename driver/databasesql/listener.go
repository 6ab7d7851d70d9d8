package databasesql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/youssefsiam38/taskpg/driver"
)

// Listener implements driver.Listener using lib/pq.
type Listener struct {
	listener *pq.Listener
	events   chan error
}

// NewListener creates a Listener that connects with connStr.
// lib/pq reconnects and re-subscribes on its own.
func NewListener(connStr string) *Listener {
	l := &Listener{events: make(chan error, 1)}
	l.listener = pq.NewListener(connStr, time.Second, time.Minute, l.onEvent)
	return l
}

func (l *Listener) onEvent(event pq.ListenerEventType, err error) {
	if event != pq.ListenerEventConnectionAttemptFailed || err == nil {
		return
	}
	select {
	case l.events <- err:
	default:
	}
}

// Listen subscribes to channel.
func (l *Listener) Listen(ctx context.Context, channel string) error {
	if err := l.listener.Listen(channel); err != nil && err != pq.ErrChannelAlreadyOpen {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	return nil
}

// WaitForNotification blocks until a notification arrives, the connection
// cannot be re-established or ctx is done.
func (l *Listener) WaitForNotification(ctx context.Context) (*driver.Notification, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-l.events:
			return nil, err
		case n, ok := <-l.listener.Notify:
			if !ok {
				return nil, driver.ErrListenerClosed
			}
			// lib/pq sends nil after a reconnect.
			if n == nil {
				continue
			}
			return &driver.Notification{Channel: n.Channel, Payload: n.Extra}, nil
		}
	}
}

// Close closes the listener connection.
func (l *Listener) Close(ctx context.Context) error {
	return l.listener.Close()
}

// Notifier implements driver.Notifier using database/sql.
type Notifier struct {
	db *sql.DB
}

// Notify sends a notification on the specified channel.
func (n *Notifier) Notify(ctx context.Context, channel, payload string) error {
	_, err := n.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}

// Compile-time checks
var (
	_ driver.Listener = (*Listener)(nil)
	_ driver.Notifier = (*Notifier)(nil)
)
