// Package service arbitrates disputes. Raising freezes the escrow; resolving
// applies the verdict through the escrow state machine. Each operation is one
// atomic unit spanning the dispute row, the escrow, the ledger, and the audit
// trail.
package service

import (
	"context"
	"log/slog"

	"github.com/Allan-Afari/investghanahub-sub000/internal/dispute"
	"github.com/Allan-Afari/investghanahub-sub000/internal/escrow"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit"
	txcontext "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/tx"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

// EscrowPort is the slice of the escrow service the dispute flow drives.
// Get enforces party visibility; the dispute hooks trust this module's own
// authorization.
type EscrowPort interface {
	Get(ctx context.Context, escrowID id.EscrowID) (escrow.Escrow, error)
	FindByPaymentReference(ctx context.Context, reference string) (escrow.Escrow, error)
	OpenDispute(ctx context.Context, escrowID id.EscrowID) (escrow.Escrow, error)
	SettleDispute(ctx context.Context, escrowID id.EscrowID, to escrow.Status) (escrow.Escrow, error)
}

type Service struct {
	store   dispute.Store
	escrows EscrowPort
	auditor *audit.Publisher
	runner  txcontext.Runner
	logger  *slog.Logger
}

func NewService(
	store dispute.Store,
	escrows EscrowPort,
	auditor *audit.Publisher,
	runner txcontext.Runner,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:   store,
		escrows: escrows,
		auditor: auditor,
		runner:  runner,
		logger:  logger,
	}
}

// Raise opens a dispute against a funded escrow. Either party may raise;
// the escrow moves to DISPUTED in the same commit so no settlement can slip
// through while the challenge is pending.
func (s *Service) Raise(ctx context.Context, escrowID id.EscrowID, reason string) (dispute.Dispute, error) {
	if reason == "" {
		return dispute.Dispute{}, dErrors.New(dErrors.CodeInvalidInput, "a dispute needs a reason")
	}

	// Party check rides on escrow visibility rules.
	e, err := s.escrows.Get(ctx, escrowID)
	if err != nil {
		return dispute.Dispute{}, err
	}
	return s.raiseBound(ctx, e, "", reason)
}

// RaiseByReference opens a dispute keyed by a gateway payment reference. When
// the reference matches one of the caller's escrows this is the same flow as
// Raise; otherwise the dispute is stored unbound, carrying only the reference,
// so arbitrators can investigate payments that never reached an escrow.
func (s *Service) RaiseByReference(ctx context.Context, reference, reason string) (dispute.Dispute, error) {
	if reason == "" {
		return dispute.Dispute{}, dErrors.New(dErrors.CodeInvalidInput, "a dispute needs a reason")
	}
	if reference == "" {
		return dispute.Dispute{}, dErrors.New(dErrors.CodeInvalidInput, "a payment reference is required")
	}

	e, err := s.escrows.FindByPaymentReference(ctx, reference)
	switch {
	case err == nil:
		return s.raiseBound(ctx, e, reference, reason)
	case dErrors.CodeOf(err) == dErrors.CodeNotFound:
		return s.raiseUnbound(ctx, reference, reason)
	default:
		return dispute.Dispute{}, err
	}
}

func (s *Service) raiseBound(ctx context.Context, e escrow.Escrow, reference, reason string) (dispute.Dispute, error) {
	if e.Status != escrow.StatusFunded {
		return dispute.Dispute{}, dErrors.Newf(dErrors.CodeConflict,
			"only a FUNDED escrow can be disputed, escrow is %s", e.Status)
	}

	callerID := requestcontext.UserID(ctx)
	d := dispute.Dispute{
		ID:         id.NewDisputeID(),
		EscrowID:   e.ID,
		PaymentRef: reference,
		RaisedBy:   callerID,
		Reason:     reason,
		Status:     dispute.StatusOpen,
		CreatedAt:  requestcontext.Now(ctx),
	}

	escrowID := e.ID
	txCtx := txcontext.WithLockKey(ctx, escrowID.String())
	err := s.runner.RunInTx(txCtx, func(ctx context.Context) error {
		if _, err := s.escrows.OpenDispute(ctx, escrowID); err != nil {
			return err
		}
		if err := s.store.Create(ctx, d); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Actor:      callerID,
			Action:     string(audit.EventDisputeRaised),
			EntityType: "dispute",
			EntityID:   d.ID.String(),
			Amount:     e.Amount.Int64(),
			Reason:     reason,
		})
	})
	if err != nil {
		return dispute.Dispute{}, err
	}

	s.logger.Info("dispute raised",
		"request_id", requestcontext.RequestID(ctx),
		"dispute_id", d.ID.String(),
		"escrow_id", escrowID.String(),
	)
	return d, nil
}

func (s *Service) raiseUnbound(ctx context.Context, reference, reason string) (dispute.Dispute, error) {
	callerID := requestcontext.UserID(ctx)
	if callerID.IsNil() {
		return dispute.Dispute{}, dErrors.New(dErrors.CodeUnauthorized, "missing caller identity")
	}
	d := dispute.Dispute{
		ID:         id.NewDisputeID(),
		PaymentRef: reference,
		RaisedBy:   callerID,
		Reason:     reason,
		Status:     dispute.StatusOpen,
		CreatedAt:  requestcontext.Now(ctx),
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, d); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Actor:      callerID,
			Action:     string(audit.EventDisputeRaised),
			EntityType: "dispute",
			EntityID:   d.ID.String(),
			Reason:     reason,
		})
	})
	if err != nil {
		return dispute.Dispute{}, err
	}

	s.logger.Info("dispute raised on unmatched payment reference",
		"request_id", requestcontext.RequestID(ctx),
		"dispute_id", d.ID.String(),
		"payment_reference", reference,
	)
	return d, nil
}

// escrowOutcome maps a verdict to the escrow's next state.
var escrowOutcome = map[dispute.Resolution]escrow.Status{
	dispute.ResolutionRefund:   escrow.StatusRefunded,
	dispute.ResolutionRelease:  escrow.StatusReleased,
	dispute.ResolutionRejected: escrow.StatusFunded,
}

// Resolve applies an arbitrator's verdict. The dispute row, the escrow
// settlement, its ledger entry, and the audit event commit together; a
// rejected dispute simply returns the escrow to FUNDED.
func (s *Service) Resolve(ctx context.Context, disputeID id.DisputeID, resolution dispute.Resolution, note string) (dispute.Dispute, error) {
	if !requestcontext.Role(ctx).CanArbitrate() {
		return dispute.Dispute{}, dErrors.New(dErrors.CodeForbidden, "only an arbitrator may resolve disputes")
	}
	target, ok := escrowOutcome[resolution]
	if !ok {
		return dispute.Dispute{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown resolution %q", resolution)
	}

	d, err := s.store.Get(ctx, disputeID)
	if err != nil {
		return dispute.Dispute{}, err
	}

	callerID := requestcontext.UserID(ctx)
	lockKey := d.EscrowID.String()
	if d.EscrowID == "" {
		lockKey = disputeID.String()
	}
	var resolved dispute.Dispute
	txCtx := txcontext.WithLockKey(ctx, lockKey)
	err = s.runner.RunInTx(txCtx, func(ctx context.Context) error {
		var err error
		resolved, err = s.store.Resolve(ctx, disputeID, resolution, callerID, note, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		// An unbound dispute has no escrow to settle; the verdict only
		// records the outcome.
		if d.EscrowID != "" {
			if _, err := s.escrows.SettleDispute(ctx, d.EscrowID, target); err != nil {
				return err
			}
		}
		return s.auditor.Emit(ctx, audit.Event{
			Actor:      callerID,
			Action:     string(audit.EventDisputeResolved),
			EntityType: "dispute",
			EntityID:   disputeID.String(),
			Reason:     string(resolution),
		})
	})
	if err != nil {
		return dispute.Dispute{}, err
	}

	s.logger.Info("dispute resolved",
		"request_id", requestcontext.RequestID(ctx),
		"dispute_id", disputeID.String(),
		"escrow_id", d.EscrowID.String(),
		"resolution", string(resolution),
	)
	return resolved, nil
}

// Get returns a dispute, visible to the escrow parties and arbitrators.
func (s *Service) Get(ctx context.Context, disputeID id.DisputeID) (dispute.Dispute, error) {
	d, err := s.store.Get(ctx, disputeID)
	if err != nil {
		return dispute.Dispute{}, err
	}
	if requestcontext.Role(ctx).CanArbitrate() {
		return d, nil
	}
	// Unbound disputes are visible only to whoever raised them.
	if d.EscrowID == "" {
		if requestcontext.UserID(ctx) != d.RaisedBy {
			return dispute.Dispute{}, dErrors.New(dErrors.CodeForbidden, "caller did not raise this dispute")
		}
		return d, nil
	}
	// Reuse escrow visibility for party membership.
	if _, err := s.escrows.Get(ctx, d.EscrowID); err != nil {
		return dispute.Dispute{}, err
	}
	return d, nil
}

// ListOpen returns the arbitration queue.
func (s *Service) ListOpen(ctx context.Context, limit int) ([]dispute.Dispute, error) {
	if !requestcontext.Role(ctx).CanArbitrate() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only an arbitrator may list the dispute queue")
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListOpen(ctx, limit)
}
