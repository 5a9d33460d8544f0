package ledger

import (
	"context"
	"sort"
	"sync"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
)

type InMemoryStore struct {
	mu           sync.RWMutex
	transactions map[id.TransactionID]Transaction
	byReference  map[string]id.TransactionID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		transactions: make(map[id.TransactionID]Transaction),
		byReference:  make(map[string]id.TransactionID),
	}
}

func (s *InMemoryStore) Append(_ context.Context, txn Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byReference[txn.Reference]; ok {
		return dErrors.Newf(dErrors.CodeConflict, "reference %s already exists", txn.Reference)
	}
	if _, ok := s.transactions[txn.ID]; ok {
		return dErrors.New(dErrors.CodeConflict, "transaction already exists")
	}
	s.transactions[txn.ID] = txn
	s.byReference[txn.Reference] = txn.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, txnID id.TransactionID) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.transactions[txnID]
	if !ok {
		return Transaction{}, dErrors.New(dErrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, txn := range s.transactions {
		if txn.UserID == userID {
			out = append(out, txn)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *InMemoryStore) ListByInvestment(_ context.Context, investmentID id.InvestmentID) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, txn := range s.transactions {
		if txn.InvestmentID == investmentID {
			out = append(out, txn)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *InMemoryStore) SumByInvestments(_ context.Context, investmentIDs []id.InvestmentID, t TransactionType) (id.Money, error) {
	wanted := make(map[id.InvestmentID]struct{}, len(investmentIDs))
	for _, iid := range investmentIDs {
		wanted[iid] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var total id.Money
	for _, txn := range s.transactions {
		if txn.Type != t {
			continue
		}
		if _, ok := wanted[txn.InvestmentID]; ok {
			total += txn.Amount
		}
	}
	return total, nil
}

func sortByCreated(txns []Transaction) {
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.Before(txns[j].CreatedAt) })
}
