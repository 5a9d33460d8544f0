package escrow

import (
	"context"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
)

// Store persists escrows. At most one non-terminal escrow may exist per
// investment; Create enforces that with a CodeConflict error.
type Store interface {
	Create(ctx context.Context, e Escrow) error
	Get(ctx context.Context, escrowID id.EscrowID) (Escrow, error)
	GetActiveByInvestment(ctx context.Context, investmentID id.InvestmentID) (Escrow, error)
	GetByPaymentReference(ctx context.Context, reference string) (Escrow, error)

	// Transition performs a compare-and-swap on status, returning the
	// updated escrow. A lost CAS returns CodeConflict carrying the actual
	// status; the caller decides whether the loss is an idempotent success.
	Transition(ctx context.Context, escrowID id.EscrowID, from, to Status) (Escrow, error)

	SetPaymentReference(ctx context.Context, escrowID id.EscrowID, reference string) error
	IncrementFailedAttempts(ctx context.Context, escrowID id.EscrowID) (int, error)
}
