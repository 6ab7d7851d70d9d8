// Package databasesql provides a database/sql driver implementation for taskpg.
//
// It works with any database/sql PostgreSQL driver for queries and uses
// lib/pq for LISTEN/NOTIFY. The executor types are exported so other
// database/sql based drivers can reuse them.
//
// Usage:
//
//	db, _ := sql.Open("postgres", databaseURL)
//	drv := databasesql.New(db, databaseURL)
package databasesql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/youssefsiam38/taskpg/driver"
	"github.com/youssefsiam38/taskpg/internal/sqlstore"
	"github.com/youssefsiam38/taskpg/storage"
)

// Driver implements driver.Driver using database/sql.
type Driver struct {
	db      *sql.DB
	store   *sqlstore.Store
	connStr string
}

// New creates a new database/sql driver using the provided connection.
// The connStr is required for creating listener connections.
func New(db *sql.DB, connStr string) *Driver {
	d := &Driver{
		db:      db,
		connStr: connStr,
	}
	d.store = sqlstore.New(d.GetExecutor, sqlstore.Postgres(isUniqueViolation, IsNoRows))
	return d
}

// GetExecutor returns an executor for non-transactional operations.
func (d *Driver) GetExecutor() driver.Executor {
	return NewExecutor(d.db)
}

// UnwrapExecutor converts a *sql.Tx to an ExecutorTx.
func (d *Driver) UnwrapExecutor(tx *sql.Tx) driver.ExecutorTx {
	return NewExecutorTx(tx)
}

// UnwrapTx extracts the *sql.Tx from an ExecutorTx.
func (d *Driver) UnwrapTx(execTx driver.ExecutorTx) *sql.Tx {
	return execTx.(*ExecutorTx).Tx()
}

// Begin starts a new transaction.
func (d *Driver) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	return NewExecutor(d.db).Begin(ctx)
}

// PoolIsSet returns true if the driver has a database handle.
func (d *Driver) PoolIsSet() bool {
	return d.db != nil
}

// GetStore returns the row store backed by this driver.
func (d *Driver) GetStore() storage.Store {
	return d.store
}

// SupportsListener returns true; listeners are opened through lib/pq.
func (d *Driver) SupportsListener() bool {
	return d.connStr != ""
}

// GetListener opens a lib/pq listener connection.
func (d *Driver) GetListener(ctx context.Context) (driver.Listener, error) {
	if d.connStr == "" {
		return nil, nil
	}
	return NewListener(d.connStr), nil
}

// GetNotifier returns a Notifier for sending PostgreSQL notifications.
func (d *Driver) GetNotifier() driver.Notifier {
	return &Notifier{db: d.db}
}

// DB returns the underlying database connection.
func (d *Driver) DB() *sql.DB {
	return d.db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsNoRows reports whether err is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Compile-time check
var _ driver.Driver[*sql.Tx] = (*Driver)(nil)
