package dispute

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
)

const uniqueViolation = "23505"

// PostgresStore persists disputes. A partial unique index on escrow_id over
// OPEN rows keeps double-raising out even under concurrency.
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

func (s *PostgresStore) Create(ctx context.Context, d Dispute) error {
	const query = `
		INSERT INTO disputes (id, escrow_id, payment_reference, raised_by, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var escrowID *string
	if d.EscrowID != "" {
		v := d.EscrowID.String()
		escrowID = &v
	}
	_, err := s.execer(ctx).Exec(ctx, query,
		d.ID.String(), escrowID, d.PaymentRef, d.RaisedBy.String(),
		d.Reason, string(d.Status), d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return dErrors.New(dErrors.CodeConflict, "escrow already has an open dispute")
		}
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

const disputeColumns = `
	id, COALESCE(escrow_id::text, ''), payment_reference, raised_by, reason, status,
	COALESCE(resolution, ''), COALESCE(resolved_by, ''), COALESCE(resolution_note, ''),
	created_at, resolved_at
`

func (s *PostgresStore) Get(ctx context.Context, disputeID id.DisputeID) (Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	row := s.execer(ctx).QueryRow(ctx, query, disputeID.String())
	d, err := scanDispute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Dispute{}, dErrors.New(dErrors.CodeNotFound, "dispute not found")
	}
	return d, err
}

func (s *PostgresStore) GetOpenByEscrow(ctx context.Context, escrowID id.EscrowID) (Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE escrow_id = $1 AND status = 'OPEN'`
	row := s.execer(ctx).QueryRow(ctx, query, escrowID.String())
	d, err := scanDispute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Dispute{}, dErrors.New(dErrors.CodeNotFound, "no open dispute for escrow")
	}
	return d, err
}

func (s *PostgresStore) ListOpen(ctx context.Context, limit int) ([]Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE status = 'OPEN' ORDER BY created_at ASC LIMIT $1`
	rows, err := s.execer(ctx).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query open disputes: %w", err)
	}
	defer rows.Close()

	var out []Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispute: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate disputes: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Resolve(ctx context.Context, disputeID id.DisputeID, resolution Resolution, resolvedBy id.UserID, note string, at time.Time) (Dispute, error) {
	query := `
		UPDATE disputes
		SET status = 'RESOLVED', resolution = $1, resolved_by = $2,
		    resolution_note = $3, resolved_at = $4
		WHERE id = $5 AND status = 'OPEN'
		RETURNING ` + disputeColumns

	row := s.execer(ctx).QueryRow(ctx, query,
		string(resolution), resolvedBy.String(), note, at, disputeID.String())
	d, err := scanDispute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := s.Get(ctx, disputeID)
		if getErr != nil {
			return Dispute{}, getErr
		}
		return Dispute{}, dErrors.Newf(dErrors.CodeConflict, "dispute already resolved as %s", current.Resolution)
	}
	if err != nil {
		return Dispute{}, fmt.Errorf("resolve dispute: %w", err)
	}
	return d, nil
}

func scanDispute(row pgx.Row) (Dispute, error) {
	var (
		d                       Dispute
		did, eid, raised        string
		status, res, resolvedBy string
	)
	if err := row.Scan(&did, &eid, &d.PaymentRef, &raised, &d.Reason, &status,
		&res, &resolvedBy, &d.ResolutionNote, &d.CreatedAt, &d.ResolvedAt); err != nil {
		return Dispute{}, err
	}
	d.ID = id.DisputeID(did)
	d.EscrowID = id.EscrowID(eid)
	d.RaisedBy = id.UserID(raised)
	d.Status = Status(status)
	d.Resolution = Resolution(res)
	d.ResolvedBy = id.UserID(resolvedBy)
	return d, nil
}
