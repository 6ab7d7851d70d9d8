package taskpg

import (
	"context"
	"errors"
)

// nativeTxContextKey is the context key for storing the native transaction type.
type nativeTxContextKey struct{}

// ErrNoTransaction is returned when TxFromContextSafely is called
// but no transaction exists in context.
var ErrNoTransaction = errors.New("taskpg: no transaction in context, only available inside Client.InTx")

// withNativeTx stores the native transaction in context.
func withNativeTx[TTx any](ctx context.Context, tx TTx) context.Context {
	return context.WithValue(ctx, nativeTxContextKey{}, tx)
}

// TxFromContext returns the native database transaction from the context.
// It can only be used inside a function passed to Client.InTx.
//
// It panics if the context does not contain a transaction. Use TxFromContextSafely
// if you need to handle the case where no transaction is present.
//
// The type parameter TTx must match the transaction type of your driver:
//   - pgx.Tx for pgxv5.Driver
//   - *sql.Tx for databasesql.Driver and sqlite.Driver
//
// Example:
//
//	err := client.InTx(ctx, func(ctx context.Context) error {
//	    tx := taskpg.TxFromContext[pgx.Tx](ctx)
//	    _, err := tx.Exec(ctx, "UPDATE audit SET ...")
//	    return err
//	})
func TxFromContext[TTx any](ctx context.Context) TTx {
	tx, err := TxFromContextSafely[TTx](ctx)
	if err != nil {
		panic(err)
	}
	return tx
}

// TxFromContextSafely returns the native database transaction from the context.
// Unlike TxFromContext, it returns an error instead of panicking if no transaction
// is present.
func TxFromContextSafely[TTx any](ctx context.Context) (TTx, error) {
	var zero TTx
	val := ctx.Value(nativeTxContextKey{})
	if val == nil {
		return zero, ErrNoTransaction
	}
	tx, ok := val.(TTx)
	if !ok {
		return zero, ErrNoTransaction
	}
	return tx, nil
}

// WithTestTx creates a context with a native transaction for testing code
// that calls TxFromContext.
func WithTestTx[TTx any](ctx context.Context, tx TTx) context.Context {
	return withNativeTx(ctx, tx)
}
