package driver

import "context"

// Row represents a single database row.
// Compatible with both pgx.Row and *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows represents a result set from a query.
// Compatible with both pgx.Rows and a wrapped *sql.Rows.
type Rows interface {
	Close()
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// Executor runs statements against a pool or a transaction.
type Executor interface {
	// Begin starts a transaction, or a savepoint when called on a transaction.
	Begin(ctx context.Context) (ExecutorTx, error)

	// Exec executes a statement and returns the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a query that returns at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// ExecutorTx is an Executor inside an open transaction.
type ExecutorTx interface {
	Executor

	Commit(ctx context.Context) error

	// Rollback rolls back the transaction. Calling it after Commit is a no-op
	// so it can be deferred unconditionally.
	Rollback(ctx context.Context) error
}
