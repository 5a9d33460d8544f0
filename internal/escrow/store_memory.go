package escrow

import (
	"context"
	"sync"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	escrows map[id.EscrowID]Escrow
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{escrows: make(map[id.EscrowID]Escrow)}
}

func (s *InMemoryStore) Create(_ context.Context, e Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.escrows {
		if existing.InvestmentID == e.InvestmentID && !existing.Status.Terminal() {
			return dErrors.New(dErrors.CodeConflict, "investment already has an active escrow")
		}
	}
	if _, ok := s.escrows[e.ID]; ok {
		return dErrors.New(dErrors.CodeConflict, "escrow already exists")
	}
	s.escrows[e.ID] = e
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, escrowID id.EscrowID) (Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escrows[escrowID]
	if !ok {
		return Escrow{}, dErrors.New(dErrors.CodeNotFound, "escrow not found")
	}
	return e, nil
}

func (s *InMemoryStore) GetActiveByInvestment(_ context.Context, investmentID id.InvestmentID) (Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.escrows {
		if e.InvestmentID == investmentID && !e.Status.Terminal() {
			return e, nil
		}
	}
	return Escrow{}, dErrors.New(dErrors.CodeNotFound, "no active escrow for investment")
}

func (s *InMemoryStore) GetByPaymentReference(_ context.Context, reference string) (Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.escrows {
		if e.PaymentReference == reference {
			return e, nil
		}
	}
	return Escrow{}, dErrors.New(dErrors.CodeNotFound, "no escrow for payment reference")
}

func (s *InMemoryStore) Transition(ctx context.Context, escrowID id.EscrowID, from, to Status) (Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[escrowID]
	if !ok {
		return Escrow{}, dErrors.New(dErrors.CodeNotFound, "escrow not found")
	}
	if e.Status != from {
		return Escrow{}, transitionConflict(e.Status, from)
	}
	now := requestcontext.Now(ctx)
	e.Status = to
	e.UpdatedAt = now
	if to == StatusFunded && e.FundedAt == nil {
		e.FundedAt = &now
	}
	if to.Terminal() {
		e.ClosedAt = &now
	}
	s.escrows[escrowID] = e
	return e, nil
}

func (s *InMemoryStore) SetPaymentReference(_ context.Context, escrowID id.EscrowID, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for otherID, other := range s.escrows {
		if otherID != escrowID && other.PaymentReference == reference {
			return dErrors.New(dErrors.CodeConflict, "payment reference already in use")
		}
	}
	e, ok := s.escrows[escrowID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "escrow not found")
	}
	e.PaymentReference = reference
	s.escrows[escrowID] = e
	return nil
}

func (s *InMemoryStore) IncrementFailedAttempts(ctx context.Context, escrowID id.EscrowID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[escrowID]
	if !ok {
		return 0, dErrors.New(dErrors.CodeNotFound, "escrow not found")
	}
	e.FailedAttempts++
	// updated_at doubles as the last-attempt timestamp.
	e.UpdatedAt = requestcontext.Now(ctx)
	s.escrows[escrowID] = e
	return e.FailedAttempts, nil
}
