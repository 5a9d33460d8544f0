// Package service drives the escrow state machine. Every transition is a
// compare-and-swap against the stored status, so concurrent actors cannot
// move the same escrow twice; losing a CAS into the state we wanted anyway
// is treated as an idempotent success.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Allan-Afari/investghanahub-sub000/internal/escrow"
	"github.com/Allan-Afari/investghanahub-sub000/internal/escrow/metrics"
	"github.com/Allan-Afari/investghanahub-sub000/internal/funding"
	"github.com/Allan-Afari/investghanahub-sub000/internal/gateway"
	"github.com/Allan-Afari/investghanahub-sub000/internal/ledger"
	platformredis "github.com/Allan-Afari/investghanahub-sub000/internal/platform/redis"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit"
	txcontext "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/tx"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

// FundingPort is the slice of the funding store the escrow flow needs.
type FundingPort interface {
	GetInvestmentParties(ctx context.Context, investmentID id.InvestmentID) (funding.InvestmentParties, error)
	ReleaseFromCap(ctx context.Context, opportunityID id.OpportunityID, amount id.Money) (funding.Opportunity, error)
	AddToBusinessTotal(ctx context.Context, businessID id.BusinessID, amount id.Money) error
	TransitionInvestment(ctx context.Context, investmentID id.InvestmentID, from, to funding.InvestmentStatus) error
}

var tracer = otel.Tracer("escrow/service")

// confirmGuardTTL bounds how long a crashed confirmation can hold the
// per-reference guard before another caller may proceed.
const confirmGuardTTL = 30 * time.Second

type Service struct {
	store   escrow.Store
	funding FundingPort
	ledger  ledger.Store
	gateway gateway.PaymentGateway
	auditor *audit.Publisher
	runner  txcontext.Runner
	metrics *metrics.Metrics
	logger  *slog.Logger
	redis   *platformredis.Client
}

// Option configures optional collaborators.
type Option func(*Service)

// WithRedis enables the confirmation guard that stops concurrent confirms of
// the same payment reference from hitting the gateway twice.
func WithRedis(client *platformredis.Client) Option {
	return func(s *Service) { s.redis = client }
}

func NewService(
	store escrow.Store,
	fundingPort FundingPort,
	ledgerStore ledger.Store,
	gw gateway.PaymentGateway,
	auditor *audit.Publisher,
	runner txcontext.Runner,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:   store,
		funding: fundingPort,
		ledger:  ledgerStore,
		gateway: gw,
		auditor: auditor,
		runner:  runner,
		metrics: m,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the escrow terms alongside the investment it holds
// funds for.
type CreateParams struct {
	InvestmentID id.InvestmentID
	Conditions   []string
	ReleaseOn    *time.Time
}

// Create opens an escrow for an investment. Either party to the investment
// may open one, and an investment carries at most one active escrow at a
// time.
func (s *Service) Create(ctx context.Context, p CreateParams) (escrow.Escrow, error) {
	parties, err := s.funding.GetInvestmentParties(ctx, p.InvestmentID)
	if err != nil {
		return escrow.Escrow{}, err
	}
	callerID := requestcontext.UserID(ctx)
	if callerID != parties.InvestorID && callerID != parties.BusinessOwner &&
		!requestcontext.Role(ctx).CanArbitrate() {
		return escrow.Escrow{}, dErrors.New(dErrors.CodeForbidden, "caller is not a party to this investment")
	}

	now := requestcontext.Now(ctx)
	e := escrow.Escrow{
		ID:           id.NewEscrowID(),
		InvestmentID: p.InvestmentID,
		PayerID:      parties.InvestorID,
		PayeeID:      parties.BusinessOwner,
		Amount:       parties.Amount,
		Status:       escrow.StatusCreated,
		Conditions:   p.Conditions,
		ReleaseOn:    p.ReleaseOn,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	txCtx := txcontext.WithLockKey(ctx, e.ID.String())
	err = s.runner.RunInTx(txCtx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, e); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Actor:      callerID,
			Action:     string(audit.EventEscrowCreated),
			EntityType: "escrow",
			EntityID:   e.ID.String(),
			Amount:     e.Amount.Int64(),
		})
	})
	if err != nil {
		return escrow.Escrow{}, err
	}

	s.metrics.IncrementTransition(string(escrow.StatusCreated))
	s.logger.Info("escrow created",
		"request_id", requestcontext.RequestID(ctx),
		"escrow_id", e.ID.String(),
		"investment_id", p.InvestmentID.String(),
		"amount", e.Amount.Int64(),
	)
	return e, nil
}

// InitiatePayment moves CREATED to AWAITING_PAYMENT and allocates the
// reference the gateway will be asked about.
func (s *Service) InitiatePayment(ctx context.Context, escrowID id.EscrowID) (escrow.Escrow, error) {
	e, err := s.authorized(ctx, escrowID, payerOrArbitrator)
	if err != nil {
		return escrow.Escrow{}, err
	}

	// Re-initiating is idempotent while payment is pending.
	if e.Status == escrow.StatusAwaitingPayment {
		return e, nil
	}

	reference := escrow.NewPaymentReference()
	var updated escrow.Escrow
	txCtx := txcontext.WithLockKey(ctx, escrowID.String())
	err = s.runner.RunInTx(txCtx, func(ctx context.Context) error {
		var err error
		updated, err = s.store.Transition(ctx, escrowID, escrow.StatusCreated, escrow.StatusAwaitingPayment)
		if err != nil {
			return err
		}
		if err := s.store.SetPaymentReference(ctx, escrowID, reference); err != nil {
			return err
		}
		updated.PaymentReference = reference
		return s.auditor.Emit(ctx, audit.Event{
			Actor:      requestcontext.UserID(ctx),
			Action:     string(audit.EventPaymentInitiated),
			EntityType: "escrow",
			EntityID:   escrowID.String(),
			Amount:     updated.Amount.Int64(),
			Reason:     "reference " + reference,
		})
	})
	if err != nil {
		return escrow.Escrow{}, err
	}

	s.metrics.IncrementTransition(string(escrow.StatusAwaitingPayment))
	return updated, nil
}

// ConfirmPayment asks the gateway whether the payment landed, and on success
// moves AWAITING_PAYMENT to FUNDED. The gateway call happens outside the
// transaction; only the verified outcome is committed. A gateway timeout
// leaves the escrow in AWAITING_PAYMENT for a later retry. A non-empty
// reference, as carried by gateway callbacks, must match the stored one.
func (s *Service) ConfirmPayment(ctx context.Context, escrowID id.EscrowID, reference string) (escrow.Escrow, error) {
	ctx, span := tracer.Start(ctx, "escrow.ConfirmPayment", trace.WithAttributes(
		attribute.String("escrow_id", escrowID.String()),
	))
	defer span.End()

	e, err := s.authorized(ctx, escrowID, payerOrArbitrator)
	if err != nil {
		return escrow.Escrow{}, err
	}

	// Confirming an already funded escrow is an idempotent success.
	if e.Status == escrow.StatusFunded {
		s.metrics.IncrementConfirmOutcome("idempotent")
		return e, nil
	}
	// A confirm arriving before initiation means the checkout happened out of
	// band; initiate first so there is a reference to verify.
	if e.Status == escrow.StatusCreated {
		e, err = s.InitiatePayment(ctx, escrowID)
		if err != nil {
			return escrow.Escrow{}, err
		}
	}
	if e.Status != escrow.StatusAwaitingPayment {
		return escrow.Escrow{}, dErrors.Newf(dErrors.CodeConflict, "escrow is %s, expected %s",
			e.Status, escrow.StatusAwaitingPayment)
	}
	if reference != "" && reference != e.PaymentReference {
		return escrow.Escrow{}, dErrors.New(dErrors.CodeConflict,
			"payment reference does not match this escrow")
	}

	if s.redis != nil {
		key := "escrow:confirm:" + e.PaymentReference
		acquired, guardErr := s.redis.SetNX(ctx, key, e.ID.String(), confirmGuardTTL).Result()
		if guardErr == nil {
			if !acquired {
				return escrow.Escrow{}, dErrors.New(dErrors.CodeConflict, "confirmation already in progress")
			}
			defer func() { _ = s.redis.Del(context.WithoutCancel(ctx), key).Err() }()
		}
		// Guard errors fall through: redis trouble must not block funding.
	}

	gwStart := time.Now()
	confirmation, err := s.gateway.Confirm(ctx, e.PaymentReference)
	s.metrics.ObserveGatewayLatency(time.Since(gwStart))
	if err != nil {
		s.metrics.IncrementConfirmOutcome("gateway_error")
		s.recordConfirmFailure(ctx, e, "gateway: "+dErrors.MessageOf(err))
		return escrow.Escrow{}, err
	}
	if !confirmation.Success {
		s.metrics.IncrementConfirmOutcome("failed")
		s.recordConfirmFailure(ctx, e, "payment not completed")
		return escrow.Escrow{}, dErrors.New(dErrors.CodeConflict, "payment has not completed")
	}
	if confirmation.Amount != e.Amount {
		s.metrics.IncrementConfirmOutcome("amount_mismatch")
		s.recordConfirmFailure(ctx, e, "amount mismatch")
		return escrow.Escrow{}, dErrors.Newf(dErrors.CodeConflict,
			"gateway reports %s, escrow expects %s", confirmation.Amount, e.Amount)
	}

	var updated escrow.Escrow
	txCtx := txcontext.WithLockKey(ctx, escrowID.String())
	err = s.runner.RunInTx(txCtx, func(ctx context.Context) error {
		var err error
		updated, err = s.store.Transition(ctx, escrowID, escrow.StatusAwaitingPayment, escrow.StatusFunded)
		if err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Actor:      requestcontext.UserID(ctx),
			Action:     string(audit.EventEscrowFunded),
			EntityType: "escrow",
			EntityID:   escrowID.String(),
			Amount:     updated.Amount.Int64(),
		})
	})
	if err != nil {
		// Another confirmation may have won the CAS; funded either way.
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			current, getErr := s.store.Get(ctx, escrowID)
			if getErr == nil && current.Status == escrow.StatusFunded {
				s.metrics.IncrementConfirmOutcome("idempotent")
				return current, nil
			}
		}
		return escrow.Escrow{}, err
	}

	s.metrics.IncrementConfirmOutcome("confirmed")
	s.metrics.IncrementTransition(string(escrow.StatusFunded))
	s.metrics.AddHeld(updated.Amount.Int64())
	s.logger.Info("escrow funded",
		"request_id", requestcontext.RequestID(ctx),
		"escrow_id", escrowID.String(),
		"reference", updated.PaymentReference,
	)
	return updated, nil
}

// recordConfirmFailure bumps the attempt counter and leaves an audit trace.
// These writes survive the failed confirmation on purpose.
func (s *Service) recordConfirmFailure(ctx context.Context, e escrow.Escrow, reason string) {
	attempts, err := s.store.IncrementFailedAttempts(ctx, e.ID)
	if err != nil {
		s.logger.Error("increment failed attempts",
			"request_id", requestcontext.RequestID(ctx), "escrow_id", e.ID.String(), "error", err)
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		Actor:      requestcontext.UserID(ctx),
		Action:     string(audit.EventPaymentConfirmFailed),
		EntityType: "escrow",
		EntityID:   e.ID.String(),
		Amount:     e.Amount.Int64(),
		Reason:     reason,
	}); err != nil {
		s.logger.Error("audit confirm failure",
			"request_id", requestcontext.RequestID(ctx), "escrow_id", e.ID.String(), "error", err)
	}
	s.logger.Warn("payment confirmation failed",
		"request_id", requestcontext.RequestID(ctx),
		"escrow_id", e.ID.String(),
		"failed_attempts", attempts,
		"reason", reason,
	)
}

// Release settles a funded escrow to the business owner. Arbitrators only:
// the payee must not be able to claim held funds on their own say-so. The
// reason and any supporting documents go into the audit trail.
func (s *Service) Release(ctx context.Context, escrowID id.EscrowID, reason string, documents []string) (escrow.Escrow, error) {
	e, err := s.authorized(ctx, escrowID, arbitratorOnly)
	if err != nil {
		return escrow.Escrow{}, err
	}
	if e.Status == escrow.StatusReleased {
		return e, nil
	}
	if len(documents) > 0 {
		reason += " (documents: " + strings.Join(documents, ", ") + ")"
	}
	return s.settle(ctx, e, escrow.StatusFunded, escrow.StatusReleased, e.Amount, reason)
}

// Refund returns held funds to the investor and gives the capacity back to
// the opportunity and business. Outside a dispute only an arbitrator may
// refund. A zero amount refunds the full escrow; a partial amount must not
// exceed it.
func (s *Service) Refund(ctx context.Context, escrowID id.EscrowID, reason string, amount id.Money) (escrow.Escrow, error) {
	e, err := s.authorized(ctx, escrowID, arbitratorOnly)
	if err != nil {
		return escrow.Escrow{}, err
	}
	if e.Status == escrow.StatusRefunded {
		return e, nil
	}
	if amount < 0 {
		return escrow.Escrow{}, dErrors.New(dErrors.CodeInvalidInput, "refund amount cannot be negative")
	}
	if amount == 0 {
		amount = e.Amount
	}
	if amount > e.Amount {
		return escrow.Escrow{}, dErrors.Newf(dErrors.CodeInvalidInput,
			"refund of %s exceeds the escrow's %s", amount, e.Amount)
	}
	return s.settle(ctx, e, escrow.StatusFunded, escrow.StatusRefunded, amount, reason)
}

// OpenDispute moves FUNDED to DISPUTED. Authorization is the dispute
// module's responsibility; it calls this inside its own transaction.
func (s *Service) OpenDispute(ctx context.Context, escrowID id.EscrowID) (escrow.Escrow, error) {
	updated, err := s.store.Transition(ctx, escrowID, escrow.StatusFunded, escrow.StatusDisputed)
	if err != nil {
		return escrow.Escrow{}, err
	}
	s.metrics.IncrementTransition(string(escrow.StatusDisputed))
	return updated, nil
}

// SettleDispute closes a DISPUTED escrow per the resolution: RELEASED,
// REFUNDED, or back to FUNDED when the dispute was rejected.
func (s *Service) SettleDispute(ctx context.Context, escrowID id.EscrowID, to escrow.Status) (escrow.Escrow, error) {
	e, err := s.store.Get(ctx, escrowID)
	if err != nil {
		return escrow.Escrow{}, err
	}
	if to == escrow.StatusFunded {
		updated, err := s.store.Transition(ctx, escrowID, escrow.StatusDisputed, escrow.StatusFunded)
		if err != nil {
			return escrow.Escrow{}, err
		}
		s.metrics.IncrementTransition(string(escrow.StatusFunded))
		return updated, nil
	}
	return s.settle(ctx, e, escrow.StatusDisputed, to, e.Amount, "dispute resolution")
}

// settle performs the terminal transition plus its money movement: a ledger
// row for the receiving side and, for refunds, the capacity hand-back on
// both the opportunity and business aggregates.
func (s *Service) settle(ctx context.Context, e escrow.Escrow, from, to escrow.Status, amount id.Money, reason string) (escrow.Escrow, error) {
	if !escrow.CanTransition(from, to) {
		return escrow.Escrow{}, dErrors.Newf(dErrors.CodeConflict, "cannot move %s to %s", from, to)
	}

	var updated escrow.Escrow
	txCtx := txcontext.WithLockKey(ctx, e.ID.String())
	err := s.runner.RunInTx(txCtx, func(ctx context.Context) error {
		var err error
		updated, err = s.store.Transition(ctx, e.ID, from, to)
		if err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		var (
			txnType   ledger.TransactionType
			recipient id.UserID
			action    audit.AuditEvent
		)
		switch to {
		case escrow.StatusReleased:
			txnType, recipient, action = ledger.TypeRelease, e.PayeeID, audit.EventEscrowReleased
		case escrow.StatusRefunded:
			txnType, recipient, action = ledger.TypeRefund, e.PayerID, audit.EventEscrowRefunded
		}

		txn := ledger.Transaction{
			ID:           id.NewTransactionID(),
			UserID:       recipient,
			InvestmentID: e.InvestmentID,
			Type:         txnType,
			Amount:       amount,
			Description:  "escrow " + e.ID.String(),
			CreatedAt:    now,
		}
		if _, err := s.appendLedger(ctx, txn); err != nil {
			return err
		}

		if to == escrow.StatusRefunded {
			parties, err := s.funding.GetInvestmentParties(ctx, e.InvestmentID)
			if err != nil {
				return err
			}
			// Both aggregates give the money back so the business total keeps
			// equalling the sum of its opportunities.
			if _, err := s.funding.ReleaseFromCap(ctx, parties.OpportunityID, amount); err != nil {
				return err
			}
			if err := s.funding.AddToBusinessTotal(ctx, parties.BusinessID, -amount); err != nil {
				return err
			}
			// The investment may have matured while the escrow was held.
			err = s.funding.TransitionInvestment(ctx, e.InvestmentID,
				funding.InvestmentActive, funding.InvestmentWithdrawn)
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				err = s.funding.TransitionInvestment(ctx, e.InvestmentID,
					funding.InvestmentMatured, funding.InvestmentWithdrawn)
			}
			if err != nil {
				return err
			}
		}

		return s.auditor.Emit(ctx, audit.Event{
			Actor:      requestcontext.UserID(ctx),
			Action:     string(action),
			EntityType: "escrow",
			EntityID:   e.ID.String(),
			Amount:     amount.Int64(),
			Reason:     reason,
		})
	})
	if err != nil {
		// The CAS may have lost to an identical settlement.
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			current, getErr := s.store.Get(ctx, e.ID)
			if getErr == nil && current.Status == to {
				return current, nil
			}
		}
		return escrow.Escrow{}, err
	}

	s.metrics.IncrementTransition(string(to))
	s.metrics.AddHeld(-e.Amount.Int64())
	s.logger.Info("escrow settled",
		"request_id", requestcontext.RequestID(ctx),
		"escrow_id", e.ID.String(),
		"status", string(to),
		"amount", e.Amount.Int64(),
	)
	return updated, nil
}

// appendLedger retries reference allocation on collision, mirroring the
// funding side.
func (s *Service) appendLedger(ctx context.Context, txn ledger.Transaction) (ledger.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		txn.Reference = ledger.NewReference(txn.Type)
		lastErr = s.ledger.Append(ctx, txn)
		if lastErr == nil {
			return txn, nil
		}
		if !dErrors.HasCode(lastErr, dErrors.CodeConflict) {
			return ledger.Transaction{}, lastErr
		}
	}
	return ledger.Transaction{}, dErrors.Wrap(lastErr, dErrors.CodeInternal, "could not allocate a unique reference")
}

// Get returns an escrow visible to its parties and arbitrators.
func (s *Service) Get(ctx context.Context, escrowID id.EscrowID) (escrow.Escrow, error) {
	return s.authorized(ctx, escrowID, anyParty)
}

// FindByPaymentReference resolves a gateway reference to its escrow, with the
// same party visibility as Get.
func (s *Service) FindByPaymentReference(ctx context.Context, reference string) (escrow.Escrow, error) {
	e, err := s.store.GetByPaymentReference(ctx, reference)
	if err != nil {
		return escrow.Escrow{}, err
	}
	return s.authorized(ctx, e.ID, anyParty)
}

type authz int

const (
	anyParty authz = iota
	payerOrArbitrator
	payeeOrArbitrator
	arbitratorOnly
)

func (s *Service) authorized(ctx context.Context, escrowID id.EscrowID, level authz) (escrow.Escrow, error) {
	e, err := s.store.Get(ctx, escrowID)
	if err != nil {
		return escrow.Escrow{}, err
	}
	callerID := requestcontext.UserID(ctx)
	if callerID.IsNil() {
		return escrow.Escrow{}, dErrors.New(dErrors.CodeUnauthorized, "missing caller identity")
	}
	if requestcontext.Role(ctx).CanArbitrate() {
		return e, nil
	}

	allowed := false
	switch level {
	case anyParty:
		allowed = callerID == e.PayerID || callerID == e.PayeeID
	case payerOrArbitrator:
		allowed = callerID == e.PayerID
	case payeeOrArbitrator:
		allowed = callerID == e.PayeeID
	case arbitratorOnly:
		allowed = false
	}
	if !allowed {
		return escrow.Escrow{}, dErrors.New(dErrors.CodeForbidden, "caller is not a party to this escrow")
	}
	return e, nil
}
