package funding

import (
	"context"
	"time"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
)

// Store persists businesses, opportunities and investments. Mutating calls
// participate in a transaction carried on the context when one is present.
type Store interface {
	CreateBusiness(ctx context.Context, b Business) error
	GetBusiness(ctx context.Context, businessID id.BusinessID) (Business, error)

	CreateOpportunity(ctx context.Context, o Opportunity) error
	GetOpportunity(ctx context.Context, opportunityID id.OpportunityID) (Opportunity, error)

	// ApplyToCap atomically adds amount to the opportunity's running total,
	// refusing the add when it would overshoot the target. On success it
	// returns the opportunity as updated, with Status flipped to FUNDED
	// when the target was reached exactly. A refused add returns a
	// CodeConflict error carrying the remaining capacity.
	ApplyToCap(ctx context.Context, opportunityID id.OpportunityID, amount id.Money) (Opportunity, error)

	// ReleaseFromCap undoes a prior ApplyToCap, reopening a FUNDED
	// opportunity when capacity frees up.
	ReleaseFromCap(ctx context.Context, opportunityID id.OpportunityID, amount id.Money) (Opportunity, error)

	AddToBusinessTotal(ctx context.Context, businessID id.BusinessID, amount id.Money) error

	CreateInvestment(ctx context.Context, inv Investment) error
	GetInvestment(ctx context.Context, investmentID id.InvestmentID) (Investment, error)
	ListInvestmentsByInvestor(ctx context.Context, investorID id.UserID) ([]Investment, error)
	ListInvestmentIDsByOpportunity(ctx context.Context, opportunityID id.OpportunityID) ([]id.InvestmentID, error)

	// TransitionInvestment moves an investment from one status to another,
	// failing with CodeConflict when the investment is no longer in the
	// expected state.
	TransitionInvestment(ctx context.Context, investmentID id.InvestmentID, from, to InvestmentStatus) error
	ListActiveMaturedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Investment, error)

	// GetInvestmentParties resolves investor and business owner for an
	// investment in one read.
	GetInvestmentParties(ctx context.Context, investmentID id.InvestmentID) (InvestmentParties, error)
}
