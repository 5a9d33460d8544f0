package funding

import (
	"context"

	"github.com/Allan-Afari/investghanahub-sub000/internal/ledger"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
)

// SnapshotSource adapts the funding store to the reconciler's view of an
// opportunity.
type SnapshotSource struct {
	store Store
}

func NewSnapshotSource(store Store) SnapshotSource {
	return SnapshotSource{store: store}
}

func (s SnapshotSource) Snapshot(ctx context.Context, opportunityID id.OpportunityID) (ledger.OpportunitySnapshot, error) {
	o, err := s.store.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return ledger.OpportunitySnapshot{}, err
	}
	ids, err := s.store.ListInvestmentIDsByOpportunity(ctx, opportunityID)
	if err != nil {
		return ledger.OpportunitySnapshot{}, err
	}
	return ledger.OpportunitySnapshot{
		OpportunityID: o.ID,
		Recorded:      o.CurrentAmount,
		Target:        o.TargetAmount,
		InvestmentIDs: ids,
	}, nil
}
