package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	txcontext "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/tx"
)

const uniqueViolation = "23505"

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

func (s *PostgresStore) Append(ctx context.Context, txn Transaction) error {
	const query = `
		INSERT INTO transactions (
			id, user_id, investment_id, type, amount, reference, description, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).Exec(ctx, query,
		txn.ID.String(), txn.UserID.String(), txn.InvestmentID.String(),
		string(txn.Type), int64(txn.Amount), txn.Reference, txn.Description, txn.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return dErrors.Newf(dErrors.CodeConflict, "reference %s already exists", txn.Reference)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const transactionColumns = `
	id, user_id, investment_id, type, amount, reference, description, created_at
`

func (s *PostgresStore) Get(ctx context.Context, txnID id.TransactionID) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	row := s.execer(ctx).QueryRow(ctx, query, txnID.String())
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, dErrors.New(dErrors.CodeNotFound, "transaction not found")
	}
	return txn, err
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY created_at ASC`
	rows, err := s.execer(ctx).Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *PostgresStore) ListByInvestment(ctx context.Context, investmentID id.InvestmentID) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE investment_id = $1 ORDER BY created_at ASC`
	rows, err := s.execer(ctx).Query(ctx, query, investmentID.String())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *PostgresStore) SumByInvestments(ctx context.Context, investmentIDs []id.InvestmentID, t TransactionType) (id.Money, error) {
	if len(investmentIDs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(investmentIDs))
	for i, iid := range investmentIDs {
		ids[i] = iid.String()
	}
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE type = $1 AND investment_id = ANY($2)
	`
	var total int64
	if err := s.execer(ctx).QueryRow(ctx, query, string(t), ids).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return id.Money(total), nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		txn                 Transaction
		tid, uid, iid, kind string
		amount              int64
	)
	if err := row.Scan(&tid, &uid, &iid, &kind, &amount,
		&txn.Reference, &txn.Description, &txn.CreatedAt); err != nil {
		return Transaction{}, err
	}
	txn.ID = id.TransactionID(tid)
	txn.UserID = id.UserID(uid)
	txn.InvestmentID = id.InvestmentID(iid)
	txn.Type = TransactionType(kind)
	txn.Amount = id.Money(amount)
	return txn, nil
}

func scanTransactions(rows pgx.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}
