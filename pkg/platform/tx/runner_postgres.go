package tx

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
)

// defaultTxTimeout bounds how long a single atomic unit may hold row locks.
const defaultTxTimeout = 5 * time.Second

// PostgresRunner runs atomic units on a pgx pool at read-committed isolation.
// Capacity checks rely on conditional UPDATEs inside the unit, so read
// committed is sufficient; escrow transitions additionally compare-and-swap on
// status.
type PostgresRunner struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRunner(pool *pgxpool.Pool) *PostgresRunner {
	return &PostgresRunner{pool: pool}
}

func (r *PostgresRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// Join an already-open unit instead of nesting.
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	pgxTx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	defer func() {
		_ = pgxTx.Rollback(ctx)
	}()

	if err := fn(WithTx(ctx, pgxTx)); err != nil {
		return err
	}

	if err := pgxTx.Commit(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}
