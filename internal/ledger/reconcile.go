package ledger

import (
	"context"
	"log/slog"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
)

// OpportunitySnapshot is what the reconciler needs to know about an
// opportunity: the counter the funding side maintains and the investments
// that should explain it.
type OpportunitySnapshot struct {
	OpportunityID id.OpportunityID
	Recorded      id.Money
	Target        id.Money
	InvestmentIDs []id.InvestmentID
}

// OpportunitySource is implemented by the funding store.
type OpportunitySource interface {
	Snapshot(ctx context.Context, opportunityID id.OpportunityID) (OpportunitySnapshot, error)
}

// Report compares the opportunity's running counter against the ledger.
// LedgerAmount nets investments against refunds; withdrawals pay out after
// maturity and never return capacity, so they are excluded.
type Report struct {
	OpportunityID id.OpportunityID `json:"opportunity_id"`
	Recorded      id.Money         `json:"recorded_amount"`
	LedgerAmount  id.Money         `json:"ledger_amount"`
	Drift         id.Money         `json:"drift"`
}

func (r Report) Clean() bool { return r.Drift == 0 }

// Reconciler cross-checks the funding counters against the append-only
// ledger. Any drift means an invariant was broken somewhere and is worth an
// alert, not an automatic correction.
type Reconciler struct {
	ledger Store
	source OpportunitySource
	logger *slog.Logger
}

func NewReconciler(ledger Store, source OpportunitySource, logger *slog.Logger) *Reconciler {
	return &Reconciler{ledger: ledger, source: source, logger: logger}
}

func (r *Reconciler) Check(ctx context.Context, opportunityID id.OpportunityID) (Report, error) {
	snap, err := r.source.Snapshot(ctx, opportunityID)
	if err != nil {
		return Report{}, err
	}

	invested, err := r.ledger.SumByInvestments(ctx, snap.InvestmentIDs, TypeInvestment)
	if err != nil {
		return Report{}, err
	}
	refunded, err := r.ledger.SumByInvestments(ctx, snap.InvestmentIDs, TypeRefund)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		OpportunityID: snap.OpportunityID,
		Recorded:      snap.Recorded,
		LedgerAmount:  invested - refunded,
	}
	report.Drift = report.Recorded - report.LedgerAmount

	if !report.Clean() {
		r.logger.Error("ledger drift detected",
			"opportunity_id", report.OpportunityID.String(),
			"recorded", int64(report.Recorded),
			"ledger", int64(report.LedgerAmount),
			"drift", int64(report.Drift),
		)
	}
	return report, nil
}
