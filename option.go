package ollie

import "context"

// Transaction is an externally managed transaction wrapping multiple
// save/delete calls. The adapter layer itself never begins or commits one.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type QueryOption func(o *queryOption)

type queryOption struct {
	Tx Transaction
}

func WithTransaction(tx Transaction) QueryOption {
	return func(o *queryOption) {
		o.Tx = tx
	}
}
