package dispute

import (
	"context"
	"time"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
)

// Store persists disputes. One escrow carries at most one open dispute.
type Store interface {
	Create(ctx context.Context, d Dispute) error
	Get(ctx context.Context, disputeID id.DisputeID) (Dispute, error)
	GetOpenByEscrow(ctx context.Context, escrowID id.EscrowID) (Dispute, error)
	ListOpen(ctx context.Context, limit int) ([]Dispute, error)

	// Resolve flips an OPEN dispute to RESOLVED with the verdict, failing
	// with CodeConflict when the dispute is already resolved.
	Resolve(ctx context.Context, disputeID id.DisputeID, resolution Resolution, resolvedBy id.UserID, note string, at time.Time) (Dispute, error)
}
