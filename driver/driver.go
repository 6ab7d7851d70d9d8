// Package driver provides database driver abstractions for taskpg.
//
// A driver adapts one database client library to the small executor and
// listener interfaces the shared SQL store is written against:
//   - github.com/youssefsiam38/taskpg/driver/pgxv5.New(pool)
//   - github.com/youssefsiam38/taskpg/driver/databasesql.New(db, connStr)
//   - github.com/youssefsiam38/taskpg/driver/sqlite.New(db)
package driver

import (
	"context"

	"github.com/youssefsiam38/taskpg/storage"
)

// Driver provides database operations for taskpg.
// TTx is the native transaction type (pgx.Tx for pgx/v5, *sql.Tx for database/sql).
type Driver[TTx any] interface {
	// GetExecutor returns an executor backed by the connection pool.
	GetExecutor() Executor

	// UnwrapExecutor converts a native transaction to an ExecutorTx so store
	// calls can join a caller's transaction through WithExecutor.
	UnwrapExecutor(tx TTx) ExecutorTx

	// UnwrapTx extracts the native transaction from an ExecutorTx.
	UnwrapTx(execTx ExecutorTx) TTx

	// Begin starts a new transaction.
	Begin(ctx context.Context) (ExecutorTx, error)

	// PoolIsSet returns true if the driver has a database handle.
	PoolIsSet() bool

	// GetStore returns the row store backed by this driver.
	GetStore() storage.Store

	// SupportsListener reports whether GetListener can return a Listener.
	// Only PostgreSQL drivers can; SQLite dispatches change events in-process.
	SupportsListener() bool

	// GetListener returns a Listener on a dedicated connection.
	// Returns nil when SupportsListener is false.
	GetListener(ctx context.Context) (Listener, error)

	// GetNotifier returns a Notifier, or nil when the database has no NOTIFY.
	GetNotifier() Notifier
}
