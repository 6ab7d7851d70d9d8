package pgxv5

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/youssefsiam38/taskpg/driver"
)

// Listener implements driver.Listener on a dedicated pooled connection.
type Listener struct {
	mu     sync.Mutex
	conn   *pgxpool.Conn
	closed bool
}

// Listen subscribes the connection to channel.
func (l *Listener) Listen(ctx context.Context, channel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return driver.ErrListenerClosed
	}
	_, err := l.conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

// WaitForNotification blocks until a notification arrives or ctx is done.
func (l *Listener) WaitForNotification(ctx context.Context) (*driver.Notification, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, driver.ErrListenerClosed
	}
	conn := l.conn
	l.mu.Unlock()

	notification, err := conn.Conn().WaitForNotification(ctx)
	if err != nil {
		return nil, err
	}
	return &driver.Notification{
		Channel: notification.Channel,
		Payload: notification.Payload,
	}, nil
}

// Close releases the connection back to the pool.
func (l *Listener) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	// A connection that was interrupted mid-wait is not safe to reuse.
	if ctx.Err() != nil {
		_ = l.conn.Conn().Close(context.Background())
	} else {
		_, _ = l.conn.Exec(ctx, "UNLISTEN *")
	}
	l.conn.Release()
	return nil
}

// Notifier implements driver.Notifier using pg_notify.
type Notifier struct {
	pool *pgxpool.Pool
}

// Notify sends a notification on the specified channel.
func (n *Notifier) Notify(ctx context.Context, channel, payload string) error {
	_, err := n.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}

// Compile-time checks
var (
	_ driver.Listener = (*Listener)(nil)
	_ driver.Notifier = (*Notifier)(nil)
)
