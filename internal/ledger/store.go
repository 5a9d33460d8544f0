package ledger

import (
	"context"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
)

// Store is an append-only transaction ledger. Append returns a CodeConflict
// error when the reference is already taken so callers can retry with a new
// one inside the same transaction.
type Store interface {
	Append(ctx context.Context, txn Transaction) error
	Get(ctx context.Context, txnID id.TransactionID) (Transaction, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]Transaction, error)
	ListByInvestment(ctx context.Context, investmentID id.InvestmentID) ([]Transaction, error)

	// SumByInvestments nets amounts of one type over a set of investments.
	SumByInvestments(ctx context.Context, investmentIDs []id.InvestmentID, t TransactionType) (id.Money, error)
}
