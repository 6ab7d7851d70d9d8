package driver

import "context"

type executorTxContextKey struct{}

// WithExecutor returns a context carrying exec. Store calls made with the
// returned context run inside that transaction.
//
//	tx, _ := drv.Begin(ctx)
//	defer tx.Rollback(ctx)
//	txCtx := driver.WithExecutor(ctx, tx)
//	_ = store.InsertTask(txCtx, parent)
//	_ = store.InsertTask(txCtx, child)
//	_ = tx.Commit(ctx)
func WithExecutor(ctx context.Context, exec ExecutorTx) context.Context {
	return context.WithValue(ctx, executorTxContextKey{}, exec)
}

// ExecutorFromContext retrieves the executor from context, or nil if not present.
func ExecutorFromContext(ctx context.Context) ExecutorTx {
	if exec, ok := ctx.Value(executorTxContextKey{}).(ExecutorTx); ok {
		return exec
	}
	return nil
}
