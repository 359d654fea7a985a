package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "pgx_tx"

// TxFromContext returns the transaction bound to ctx, or nil. Repositories
// use it so that a service-level transaction covers every statement they
// issue.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// WithTxContext binds a transaction to a context.
func WithTxContext(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// Runner executes a function within a transaction scope. Services depend
// on this interface rather than on pgxpool so unit tests can substitute a
// pass-through implementation.
type Runner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolRunner runs each mutation as a single serializable transaction.
// Every mutating billing operation (line items, payments, advances,
// splits, settlements) goes through here: read state, validate, write
// recomputed aggregates, commit — no intermediate state is ever visible
// to other callers.
type PoolRunner struct {
	pool *pgxpool.Pool
}

func NewPoolRunner(pool *pgxpool.Pool) *PoolRunner {
	return &PoolRunner{pool: pool}
}

func (r *PoolRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls reuse the outer transaction so cross-entity
	// operations (split, settlement) stay all-or-nothing.
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}

	if err := fn(WithTxContext(ctx, tx)); err != nil {
		rbErr := tx.Rollback(ctx)
		if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return tx.Commit(ctx)
}

// PassthroughRunner executes the function directly, with no transaction.
// Used by unit tests against in-memory repositories.
type PassthroughRunner struct{}

func (PassthroughRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
