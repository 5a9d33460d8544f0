package funding

import (
	"time"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
)

// BusinessStatus gates whether a business may accept new investment.
type BusinessStatus string

const (
	BusinessPending   BusinessStatus = "PENDING"
	BusinessApproved  BusinessStatus = "APPROVED"
	BusinessSuspended BusinessStatus = "SUSPENDED"
)

// Business aggregates funding across its opportunities.
// Invariant: CurrentAmount equals the sum of CurrentAmount over its
// opportunities; both counters move only inside the invest transaction.
type Business struct {
	ID            id.BusinessID
	OwnerID       id.UserID
	Name          string
	TargetAmount  id.Money
	CurrentAmount id.Money
	Status        BusinessStatus
	CreatedAt     time.Time
}

// OpportunityStatus tracks an opportunity through its funding window.
type OpportunityStatus string

const (
	OpportunityOpen   OpportunityStatus = "OPEN"
	OpportunityFunded OpportunityStatus = "FUNDED"
	OpportunityClosed OpportunityStatus = "CLOSED"
)

// Opportunity is a funding round owned by a business.
// Invariant: 0 <= CurrentAmount <= TargetAmount; Status is FUNDED exactly
// when CurrentAmount has reached TargetAmount.
type Opportunity struct {
	ID             id.OpportunityID
	BusinessID     id.BusinessID
	Title          string
	TargetAmount   id.Money
	CurrentAmount  id.Money
	MinInvestment  id.Money
	MaxInvestment  id.Money
	ReturnRateBps  id.BasisPoints
	DurationMonths int
	Status         OpportunityStatus
	CreatedAt      time.Time
}

// Remaining is the capacity left before the opportunity is fully funded.
func (o Opportunity) Remaining() id.Money {
	return o.TargetAmount - o.CurrentAmount
}

// InvestmentStatus transitions only forward: ACTIVE to MATURED or WITHDRAWN,
// never back.
type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "ACTIVE"
	InvestmentMatured   InvestmentStatus = "MATURED"
	InvestmentWithdrawn InvestmentStatus = "WITHDRAWN"
)

// Investment records one investor's committed stake. Amount is immutable
// after creation.
type Investment struct {
	ID             id.InvestmentID
	InvestorID     id.UserID
	OpportunityID  id.OpportunityID
	Amount         id.Money
	ExpectedReturn id.Money
	MaturityDate   time.Time
	Status         InvestmentStatus
	CreatedAt      time.Time
}

/// InvestmentParties resolves who may act on an investment's escrow: the
// investor and the business owner behind the opportunity.
type InvestmentParties struct {
	InvestmentID  id.InvestmentID
	InvestorID    id.UserID
	OpportunityID id.OpportunityID
	BusinessID    id.BusinessID
	BusinessOwner id.UserID
	Amount        id.Money
}

// ValidateAmountBounds enforces the opportunity's per-investment band.
func (o Opportunity) ValidateAmountBounds(amount id.Money) error {
	if amount < o.MinInvestment || amount > o.MaxInvestment {
		return dErrors.Newf(dErrors.CodeValidation,
			"amount must be between %s and %s", o.MinInvestment, o.MaxInvestment)
	}
	return nil
}
