package funding

import (
	"context"
	"sort"
	"sync"
	"time"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
)

type InMemoryStore struct {
	mu            sync.RWMutex
	businesses    map[id.BusinessID]Business
	opportunities map[id.OpportunityID]Opportunity
	investments   map[id.InvestmentID]Investment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		businesses:    make(map[id.BusinessID]Business),
		opportunities: make(map[id.OpportunityID]Opportunity),
		investments:   make(map[id.InvestmentID]Investment),
	}
}

func (s *InMemoryStore) CreateBusiness(_ context.Context, b Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.businesses[b.ID]; ok {
		return dErrors.New(dErrors.CodeConflict, "business already exists")
	}
	s.businesses[b.ID] = b
	return nil
}

func (s *InMemoryStore) GetBusiness(_ context.Context, businessID id.BusinessID) (Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[businessID]
	if !ok {
		return Business{}, dErrors.New(dErrors.CodeNotFound, "business not found")
	}
	return b, nil
}

func (s *InMemoryStore) CreateOpportunity(_ context.Context, o Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.opportunities[o.ID]; ok {
		return dErrors.New(dErrors.CodeConflict, "opportunity already exists")
	}
	s.opportunities[o.ID] = o
	return nil
}

func (s *InMemoryStore) GetOpportunity(_ context.Context, opportunityID id.OpportunityID) (Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.opportunities[opportunityID]
	if !ok {
		return Opportunity{}, dErrors.New(dErrors.CodeNotFound, "opportunity not found")
	}
	return o, nil
}

func (s *InMemoryStore) ApplyToCap(_ context.Context, opportunityID id.OpportunityID, amount id.Money) (Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opportunities[opportunityID]
	if !ok {
		return Opportunity{}, dErrors.New(dErrors.CodeNotFound, "opportunity not found")
	}
	if o.Status != OpportunityOpen {
		return Opportunity{}, dErrors.Newf(dErrors.CodeConflict, "opportunity is %s", o.Status)
	}
	if o.CurrentAmount+amount > o.TargetAmount {
		return Opportunity{}, dErrors.Newf(dErrors.CodeConflict,
			"opportunity has only %s remaining", o.Remaining())
	}
	o.CurrentAmount += amount
	if o.CurrentAmount == o.TargetAmount {
		o.Status = OpportunityFunded
	}
	s.opportunities[opportunityID] = o
	return o, nil
}

func (s *InMemoryStore) ReleaseFromCap(_ context.Context, opportunityID id.OpportunityID, amount id.Money) (Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opportunities[opportunityID]
	if !ok {
		return Opportunity{}, dErrors.New(dErrors.CodeNotFound, "opportunity not found")
	}
	if o.CurrentAmount < amount {
		return Opportunity{}, dErrors.New(dErrors.CodeInternal, "release exceeds recorded funding")
	}
	o.CurrentAmount -= amount
	if o.Status == OpportunityFunded {
		o.Status = OpportunityOpen
	}
	s.opportunities[opportunityID] = o
	return o, nil
}

func (s *InMemoryStore) AddToBusinessTotal(_ context.Context, businessID id.BusinessID, amount id.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[businessID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "business not found")
	}
	b.CurrentAmount += amount
	s.businesses[businessID] = b
	return nil
}

func (s *InMemoryStore) CreateInvestment(_ context.Context, inv Investment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.investments[inv.ID]; ok {
		return dErrors.New(dErrors.CodeConflict, "investment already exists")
	}
	s.investments[inv.ID] = inv
	return nil
}

func (s *InMemoryStore) GetInvestment(_ context.Context, investmentID id.InvestmentID) (Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.investments[investmentID]
	if !ok {
		return Investment{}, dErrors.New(dErrors.CodeNotFound, "investment not found")
	}
	return inv, nil
}

func (s *InMemoryStore) ListInvestmentsByInvestor(_ context.Context, investorID id.UserID) ([]Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Investment
	for _, inv := range s.investments {
		if inv.InvestorID == investorID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListInvestmentIDsByOpportunity(_ context.Context, opportunityID id.OpportunityID) ([]id.InvestmentID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []id.InvestmentID
	for _, inv := range s.investments {
		if inv.OpportunityID == opportunityID {
			out = append(out, inv.ID)
		}
	}
	return out, nil
}

func (s *InMemoryStore) TransitionInvestment(_ context.Context, investmentID id.InvestmentID, from, to InvestmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.investments[investmentID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "investment not found")
	}
	if inv.Status != from {
		return dErrors.Newf(dErrors.CodeConflict, "investment is %s, expected %s", inv.Status, from)
	}
	inv.Status = to
	s.investments[investmentID] = inv
	return nil
}

func (s *InMemoryStore) ListActiveMaturedBefore(_ context.Context, cutoff time.Time, limit int) ([]Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Investment
	for _, inv := range s.investments {
		if inv.Status == InvestmentActive && !inv.MaturityDate.After(cutoff) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaturityDate.Before(out[j].MaturityDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) GetInvestmentParties(ctx context.Context, investmentID id.InvestmentID) (InvestmentParties, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.investments[investmentID]
	if !ok {
		return InvestmentParties{}, dErrors.New(dErrors.CodeNotFound, "investment not found")
	}
	o, ok := s.opportunities[inv.OpportunityID]
	if !ok {
		return InvestmentParties{}, dErrors.New(dErrors.CodeNotFound, "opportunity not found")
	}
	b, ok := s.businesses[o.BusinessID]
	if !ok {
		return InvestmentParties{}, dErrors.New(dErrors.CodeNotFound, "business not found")
	}
	return InvestmentParties{
		InvestmentID:  inv.ID,
		InvestorID:    inv.InvestorID,
		OpportunityID: o.ID,
		BusinessID:    b.ID,
		BusinessOwner: b.OwnerID,
		Amount:        inv.Amount,
	}, nil
}
