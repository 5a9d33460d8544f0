package funding

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

// PostgresStore persists funding state in PostgreSQL. Cap enforcement is a
// single conditional UPDATE so concurrent investors never overshoot the
// target regardless of interleaving.
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

func (s *PostgresStore) CreateBusiness(ctx context.Context, b Business) error {
	const query = `
		INSERT INTO businesses (id, owner_id, name, target_amount, current_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).Exec(ctx, query,
		b.ID.String(), b.OwnerID.String(), b.Name,
		int64(b.TargetAmount), int64(b.CurrentAmount), string(b.Status), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert business: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBusiness(ctx context.Context, businessID id.BusinessID) (Business, error) {
	const query = `
		SELECT id, owner_id, name, target_amount, current_amount, status, created_at
		FROM businesses WHERE id = $1
	`
	row := s.execer(ctx).QueryRow(ctx, query, businessID.String())
	b, err := scanBusiness(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Business{}, dErrors.New(dErrors.CodeNotFound, "business not found")
	}
	return b, err
}

func scanBusiness(row pgx.Row) (Business, error) {
	var (
		b               Business
		bid, owner      string
		target, current int64
		status          string
	)
	if err := row.Scan(&bid, &owner, &b.Name, &target, &current, &status, &b.CreatedAt); err != nil {
		return Business{}, err
	}
	b.ID = id.BusinessID(bid)
	b.OwnerID = id.UserID(owner)
	b.TargetAmount = id.Money(target)
	b.CurrentAmount = id.Money(current)
	b.Status = BusinessStatus(status)
	return b, nil
}

func (s *PostgresStore) CreateOpportunity(ctx context.Context, o Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, business_id, title, target_amount, current_amount,
			min_investment, max_investment, return_rate_bps, duration_months,
			status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).Exec(ctx, query,
		o.ID.String(), o.BusinessID.String(), o.Title,
		int64(o.TargetAmount), int64(o.CurrentAmount),
		int64(o.MinInvestment), int64(o.MaxInvestment),
		int32(o.ReturnRateBps), o.DurationMonths,
		string(o.Status), o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

const opportunityColumns = `
	id, business_id, title, target_amount, current_amount,
	min_investment, max_investment, return_rate_bps, duration_months,
	status, created_at
`

func (s *PostgresStore) GetOpportunity(ctx context.Context, opportunityID id.OpportunityID) (Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE id = $1`
	row := s.execer(ctx).QueryRow(ctx, query, opportunityID.String())
	o, err := scanOpportunity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Opportunity{}, dErrors.New(dErrors.CodeNotFound, "opportunity not found")
	}
	return o, err
}

func scanOpportunity(row pgx.Row) (Opportunity, error) {
	var (
		o                          Opportunity
		oid, bid                   string
		target, current, min, max  int64
		rate                       int32
		status                     string
	)
	if err := row.Scan(&oid, &bid, &o.Title, &target, &current,
		&min, &max, &rate, &o.DurationMonths, &status, &o.CreatedAt); err != nil {
		return Opportunity{}, err
	}
	o.ID = id.OpportunityID(oid)
	o.BusinessID = id.BusinessID(bid)
	o.TargetAmount = id.Money(target)
	o.CurrentAmount = id.Money(current)
	o.MinInvestment = id.Money(min)
	o.MaxInvestment = id.Money(max)
	o.ReturnRateBps = id.BasisPoints(rate)
	o.Status = OpportunityStatus(status)
	return o, nil
}

func (s *PostgresStore) ApplyToCap(ctx context.Context, opportunityID id.OpportunityID, amount id.Money) (Opportunity, error) {
	// The WHERE clause carries the cap check; the row either moves within
	// bounds or is left untouched. No read-then-write window exists.
	query := `
		UPDATE opportunities
		SET current_amount = current_amount + $1,
		    status = CASE WHEN current_amount + $1 = target_amount THEN 'FUNDED' ELSE status END
		WHERE id = $2
		  AND status = 'OPEN'
		  AND current_amount + $1 <= target_amount
		RETURNING ` + opportunityColumns

	row := s.execer(ctx).QueryRow(ctx, query, int64(amount), opportunityID.String())
	o, err := scanOpportunity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Opportunity{}, s.capRefusal(ctx, opportunityID)
	}
	if err != nil {
		return Opportunity{}, fmt.Errorf("apply to cap: %w", err)
	}
	return o, nil
}

// capRefusal distinguishes why the conditional update matched no row:
// missing opportunity, closed window, or insufficient capacity.
func (s *PostgresStore) capRefusal(ctx context.Context, opportunityID id.OpportunityID) error {
	o, err := s.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return err
	}
	if o.Status != OpportunityOpen {
		return dErrors.Newf(dErrors.CodeConflict, "opportunity is %s", o.Status)
	}
	return dErrors.Newf(dErrors.CodeConflict, "opportunity has only %s remaining", o.Remaining())
}

func (s *PostgresStore) ReleaseFromCap(ctx context.Context, opportunityID id.OpportunityID, amount id.Money) (Opportunity, error) {
	query := `
		UPDATE opportunities
		SET current_amount = current_amount - $1,
		    status = CASE WHEN status = 'FUNDED' THEN 'OPEN' ELSE status END
		WHERE id = $2
		  AND current_amount >= $1
		RETURNING ` + opportunityColumns

	row := s.execer(ctx).QueryRow(ctx, query, int64(amount), opportunityID.String())
	o, err := scanOpportunity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Opportunity{}, dErrors.New(dErrors.CodeInternal, "release exceeds recorded funding")
	}
	if err != nil {
		return Opportunity{}, fmt.Errorf("release from cap: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) AddToBusinessTotal(ctx context.Context, businessID id.BusinessID, amount id.Money) error {
	const query = `UPDATE businesses SET current_amount = current_amount + $1 WHERE id = $2`
	tag, err := s.execer(ctx).Exec(ctx, query, int64(amount), businessID.String())
	if err != nil {
		return fmt.Errorf("update business total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.New(dErrors.CodeNotFound, "business not found")
	}
	return nil
}

const investmentColumns = `
	id, investor_id, opportunity_id, amount, expected_return,
	maturity_date, status, created_at
`

func (s *PostgresStore) CreateInvestment(ctx context.Context, inv Investment) error {
	const query = `
		INSERT INTO investments (
			id, investor_id, opportunity_id, amount, expected_return,
			maturity_date, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).Exec(ctx, query,
		inv.ID.String(), inv.InvestorID.String(), inv.OpportunityID.String(),
		int64(inv.Amount), int64(inv.ExpectedReturn),
		inv.MaturityDate, string(inv.Status), inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert investment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInvestment(ctx context.Context, investmentID id.InvestmentID) (Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`
	row := s.execer(ctx).QueryRow(ctx, query, investmentID.String())
	inv, err := scanInvestment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Investment{}, dErrors.New(dErrors.CodeNotFound, "investment not found")
	}
	return inv, err
}

func scanInvestment(row pgx.Row) (Investment, error) {
	var (
		inv              Investment
		iid, investor, o string
		amount, expected int64
		status           string
	)
	if err := row.Scan(&iid, &investor, &o, &amount, &expected,
		&inv.MaturityDate, &status, &inv.CreatedAt); err != nil {
		return Investment{}, err
	}
	inv.ID = id.InvestmentID(iid)
	inv.InvestorID = id.UserID(investor)
	inv.OpportunityID = id.OpportunityID(o)
	inv.Amount = id.Money(amount)
	inv.ExpectedReturn = id.Money(expected)
	inv.Status = InvestmentStatus(status)
	return inv, nil
}

func (s *PostgresStore) ListInvestmentsByInvestor(ctx context.Context, investorID id.UserID) ([]Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE investor_id = $1 ORDER BY created_at ASC`
	rows, err := s.execer(ctx).Query(ctx, query, investorID.String())
	if err != nil {
		return nil, fmt.Errorf("query investments: %w", err)
	}
	defer rows.Close()
	return scanInvestments(rows)
}

func (s *PostgresStore) ListInvestmentIDsByOpportunity(ctx context.Context, opportunityID id.OpportunityID) ([]id.InvestmentID, error) {
	const query = `SELECT id FROM investments WHERE opportunity_id = $1`
	rows, err := s.execer(ctx).Query(ctx, query, opportunityID.String())
	if err != nil {
		return nil, fmt.Errorf("query investment ids: %w", err)
	}
	defer rows.Close()

	var out []id.InvestmentID
	for rows.Next() {
		var iid string
		if err := rows.Scan(&iid); err != nil {
			return nil, fmt.Errorf("scan investment id: %w", err)
		}
		out = append(out, id.InvestmentID(iid))
	}
	return out, rows.Err()
}

func (s *PostgresStore) TransitionInvestment(ctx context.Context, investmentID id.InvestmentID, from, to InvestmentStatus) error {
	const query = `UPDATE investments SET status = $1 WHERE id = $2 AND status = $3`
	tag, err := s.execer(ctx).Exec(ctx, query, string(to), investmentID.String(), string(from))
	if err != nil {
		return fmt.Errorf("transition investment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		inv, err := s.GetInvestment(ctx, investmentID)
		if err != nil {
			return err
		}
		return dErrors.Newf(dErrors.CodeConflict, "investment is %s, expected %s", inv.Status, from)
	}
	return nil
}

func (s *PostgresStore) ListActiveMaturedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Investment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM investments
		WHERE status = 'ACTIVE' AND maturity_date <= $1
		ORDER BY maturity_date ASC
		LIMIT $2
	`
	rows, err := s.execer(ctx).Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query matured investments: %w", err)
	}
	defer rows.Close()
	return scanInvestments(rows)
}

func scanInvestments(rows pgx.Rows) ([]Investment, error) {
	var out []Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate investments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetInvestmentParties(ctx context.Context, investmentID id.InvestmentID) (InvestmentParties, error) {
	const query = `
		SELECT i.id, i.investor_id, i.opportunity_id, b.id, b.owner_id, i.amount
		FROM investments i
		JOIN opportunities o ON o.id = i.opportunity_id
		JOIN businesses b ON b.id = o.business_id
		WHERE i.id = $1
	`
	var (
		p                       InvestmentParties
		iid, investor, oid, bid string
		owner                   string
		amount                  int64
	)
	err := s.execer(ctx).QueryRow(ctx, query, investmentID.String()).
		Scan(&iid, &investor, &oid, &bid, &owner, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return InvestmentParties{}, dErrors.New(dErrors.CodeNotFound, "investment not found")
	}
	if err != nil {
		return InvestmentParties{}, fmt.Errorf("query investment parties: %w", err)
	}
	p.InvestmentID = id.InvestmentID(iid)
	p.InvestorID = id.UserID(investor)
	p.OpportunityID = id.OpportunityID(oid)
	p.BusinessID = id.BusinessID(bid)
	p.BusinessOwner = id.UserID(owner)
	p.Amount = id.Money(amount)
	return p, nil
}
