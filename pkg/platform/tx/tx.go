// Package tx carries a database transaction through context so that every
// store touched during one domain operation joins the same atomic unit. The
// funding, escrow, dispute, ledger, and audit stores all resolve their
// executor from context, which is how a dispute resolution can update the
// dispute row, drive the escrow state machine, and append ledger and audit
// rows with a single commit.
package tx

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a pgx transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a pgx transaction from context if present.
func From(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

// Runner opens an atomic unit and invokes fn with a context that carries it.
// Implementations must join an already-open unit instead of nesting, so a
// service may call another service's public operations inside its own unit.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type lockKeyCtx struct{}

// WithLockKey tags the context with the hot-row key of the operation (the
// opportunity or escrow ID). The memory runner serializes on it; the postgres
// runner ignores it because row locks do the work.
func WithLockKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, lockKeyCtx{}, key)
}

// LockKey returns the serialization key set by WithLockKey, if any.
func LockKey(ctx context.Context) string {
	key, _ := ctx.Value(lockKeyCtx{}).(string)
	return key
}
