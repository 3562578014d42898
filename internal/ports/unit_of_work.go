package ports

import "context"

// Tx is the transaction handle repositories pick up from the context.
// The sqlstore adapters put a *gorm.DB here.
type Tx interface{}

// UnitOfWork is the boundary of the snapshot write: the baseline read, the
// retention delete and the batch insert commit together or not at all.
// Returning an error from fn rolls back, returning nil commits.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads a transaction handle from context.
func TxFromContext(ctx context.Context) Tx {
	if ctx == nil {
		return nil
	}
	return ctx.Value(txKey{})
}

// InTx reports whether ctx already carries a transaction.
func InTx(ctx context.Context) bool {
	return TxFromContext(ctx) != nil
}
