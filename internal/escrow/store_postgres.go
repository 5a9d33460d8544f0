package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	txcontext "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/tx"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

const uniqueViolation = "23505"

// PostgresStore persists escrows. The one-active-escrow-per-investment rule
// is a partial unique index on investment_id over non-terminal rows, so two
// concurrent Creates cannot both win.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type dbExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

func (s *PostgresStore) Create(ctx context.Context, e Escrow) error {
	const query = `
		INSERT INTO escrows (
			id, investment_id, payer_id, payee_id, amount, status,
			conditions, release_on, payment_reference, failed_attempts,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	conditions := e.Conditions
	if conditions == nil {
		conditions = []string{}
	}
	_, err := s.execer(ctx).Exec(ctx, query,
		e.ID.String(), e.InvestmentID.String(), e.PayerID.String(), e.PayeeID.String(),
		int64(e.Amount), string(e.Status), conditions, e.ReleaseOn,
		e.PaymentReference, e.FailedAttempts, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return dErrors.New(dErrors.CodeConflict, "investment already has an active escrow")
		}
		return fmt.Errorf("insert escrow: %w", err)
	}
	return nil
}

const escrowColumns = `
	id, investment_id, payer_id, payee_id, amount, status, conditions, release_on,
	payment_reference, failed_attempts, created_at, updated_at, funded_at, closed_at
`

func (s *PostgresStore) Get(ctx context.Context, escrowID id.EscrowID) (Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE id = $1`
	row := s.execer(ctx).QueryRow(ctx, query, escrowID.String())
	e, err := scanEscrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Escrow{}, dErrors.New(dErrors.CodeNotFound, "escrow not found")
	}
	return e, err
}

func (s *PostgresStore) GetActiveByInvestment(ctx context.Context, investmentID id.InvestmentID) (Escrow, error) {
	query := `
		SELECT ` + escrowColumns + `
		FROM escrows
		WHERE investment_id = $1 AND status NOT IN ('RELEASED', 'REFUNDED')
	`
	row := s.execer(ctx).QueryRow(ctx, query, investmentID.String())
	e, err := scanEscrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Escrow{}, dErrors.New(dErrors.CodeNotFound, "no active escrow for investment")
	}
	return e, err
}

func (s *PostgresStore) GetByPaymentReference(ctx context.Context, reference string) (Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE payment_reference = $1`
	row := s.execer(ctx).QueryRow(ctx, query, reference)
	e, err := scanEscrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Escrow{}, dErrors.New(dErrors.CodeNotFound, "no escrow for payment reference")
	}
	return e, err
}

func (s *PostgresStore) Transition(ctx context.Context, escrowID id.EscrowID, from, to Status) (Escrow, error) {
	now := requestcontext.Now(ctx)
	var fundedAt, closedAt *time.Time
	if to == StatusFunded {
		fundedAt = &now
	}
	if to.Terminal() {
		closedAt = &now
	}

	query := `
		UPDATE escrows
		SET status = $1,
		    updated_at = $2,
		    funded_at = COALESCE(funded_at, $3),
		    closed_at = COALESCE(closed_at, $4)
		WHERE id = $5 AND status = $6
		RETURNING ` + escrowColumns

	row := s.execer(ctx).QueryRow(ctx, query,
		string(to), now, fundedAt, closedAt, escrowID.String(), string(from))
	e, err := scanEscrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		current, err := s.Get(ctx, escrowID)
		if err != nil {
			return Escrow{}, err
		}
		return Escrow{}, transitionConflict(current.Status, from)
	}
	if err != nil {
		return Escrow{}, fmt.Errorf("transition escrow: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) SetPaymentReference(ctx context.Context, escrowID id.EscrowID, reference string) error {
	const query = `UPDATE escrows SET payment_reference = $1 WHERE id = $2`
	tag, err := s.execer(ctx).Exec(ctx, query, reference, escrowID.String())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return dErrors.New(dErrors.CodeConflict, "payment reference already in use")
		}
		return fmt.Errorf("set payment reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.New(dErrors.CodeNotFound, "escrow not found")
	}
	return nil
}

func (s *PostgresStore) IncrementFailedAttempts(ctx context.Context, escrowID id.EscrowID) (int, error) {
	// updated_at doubles as the last-attempt timestamp.
	const query = `
		UPDATE escrows SET failed_attempts = failed_attempts + 1, updated_at = $2
		WHERE id = $1
		RETURNING failed_attempts
	`
	var attempts int
	err := s.execer(ctx).QueryRow(ctx, query, escrowID.String(), requestcontext.Now(ctx)).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, dErrors.New(dErrors.CodeNotFound, "escrow not found")
	}
	if err != nil {
		return 0, fmt.Errorf("increment failed attempts: %w", err)
	}
	return attempts, nil
}

func scanEscrow(row pgx.Row) (Escrow, error) {
	var (
		e                        Escrow
		eid, iid, payer, payee   string
		amount                   int64
		status                   string
	)
	if err := row.Scan(&eid, &iid, &payer, &payee, &amount, &status,
		&e.Conditions, &e.ReleaseOn, &e.PaymentReference, &e.FailedAttempts,
		&e.CreatedAt, &e.UpdatedAt, &e.FundedAt, &e.ClosedAt); err != nil {
		return Escrow{}, err
	}
	e.ID = id.EscrowID(eid)
	e.InvestmentID = id.InvestmentID(iid)
	e.PayerID = id.UserID(payer)
	e.PayeeID = id.UserID(payee)
	e.Amount = id.Money(amount)
	e.Status = Status(status)
	return e, nil
}
