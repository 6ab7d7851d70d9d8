// Package sqlite provides a single-node driver for taskpg backed by the
// pure Go modernc.org/sqlite engine.
//
// SQLite has no LISTEN/NOTIFY, so change events are only delivered to
// subscribers in the same process.
//
// Usage:
//
//	db, _ := sqlite.Open("taskpg.db")
//	drv := sqlite.New(db)
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/youssefsiam38/taskpg/driver"
	"github.com/youssefsiam38/taskpg/driver/databasesql"
	"github.com/youssefsiam38/taskpg/internal/sqlstore"
	"github.com/youssefsiam38/taskpg/storage"
)

// Open opens the database file at path with foreign keys enforced.
// SQLite serialises writers, so the pool is limited to one connection.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Driver implements driver.Driver for SQLite.
type Driver struct {
	db    *sql.DB
	store *sqlstore.Store
}

// New creates a driver over db.
func New(db *sql.DB) *Driver {
	d := &Driver{db: db}
	d.store = sqlstore.New(d.GetExecutor, sqlstore.SQLite(isUniqueViolation, databasesql.IsNoRows))
	return d
}

// GetExecutor returns an executor for non-transactional operations.
func (d *Driver) GetExecutor() driver.Executor {
	return databasesql.NewExecutor(d.db)
}

// UnwrapExecutor converts a *sql.Tx to an ExecutorTx.
func (d *Driver) UnwrapExecutor(tx *sql.Tx) driver.ExecutorTx {
	return databasesql.NewExecutorTx(tx)
}

// UnwrapTx extracts the *sql.Tx from an ExecutorTx.
func (d *Driver) UnwrapTx(execTx driver.ExecutorTx) *sql.Tx {
	return execTx.(*databasesql.ExecutorTx).Tx()
}

// Begin starts a new transaction.
func (d *Driver) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	return d.GetExecutor().Begin(ctx)
}

// PoolIsSet returns true if the driver has a database handle.
func (d *Driver) PoolIsSet() bool {
	return d.db != nil
}

// GetStore returns the row store backed by this driver.
func (d *Driver) GetStore() storage.Store {
	return d.store
}

// SupportsListener returns false.
func (d *Driver) SupportsListener() bool {
	return false
}

// GetListener returns nil; SQLite cannot listen.
func (d *Driver) GetListener(ctx context.Context) (driver.Listener, error) {
	return nil, nil
}

// GetNotifier returns nil; SQLite cannot notify.
func (d *Driver) GetNotifier() driver.Notifier {
	return nil
}

// DB returns the underlying database connection.
func (d *Driver) DB() *sql.DB {
	return d.db
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// Compile-time check
var _ driver.Driver[*sql.Tx] = (*Driver)(nil)
