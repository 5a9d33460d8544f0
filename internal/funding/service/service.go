// Package service orchestrates the funding flow: gate checks, cap
// enforcement, investment creation, ledger append, and audit trail, all
// committed as one atomic unit.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Allan-Afari/investghanahub-sub000/internal/funding"
	"github.com/Allan-Afari/investghanahub-sub000/internal/funding/metrics"
	"github.com/Allan-Afari/investghanahub-sub000/internal/gates"
	"github.com/Allan-Afari/investghanahub-sub000/internal/ledger"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit"
	txcontext "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/tx"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

// referenceAttempts bounds retries when a generated ledger reference
// collides with an existing one.
const referenceAttempts = 3

var tracer = otel.Tracer("funding/service")

type Service struct {
	store   funding.Store
	ledger  ledger.Store
	kyc     gates.KYCGate
	fraud   gates.FraudGate
	auditor *audit.Publisher
	runner  txcontext.Runner
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(
	store funding.Store,
	ledgerStore ledger.Store,
	kyc gates.KYCGate,
	fraud gates.FraudGate,
	auditor *audit.Publisher,
	runner txcontext.Runner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:   store,
		ledger:  ledgerStore,
		kyc:     kyc,
		fraud:   fraud,
		auditor: auditor,
		runner:  runner,
		metrics: m,
		logger:  logger,
	}
}

// InvestResult is what a successful investment produced.
type InvestResult struct {
	Investment  funding.Investment
	Transaction ledger.Transaction
	Opportunity funding.Opportunity
}

// Invest commits an investor's stake in an opportunity. The gate checks run
// before the transaction; the cap update, investment row, business total,
// ledger append, and audit event commit or roll back together.
//
// Errors: CodeValidation for amount bounds, CodeForbidden for gate denials,
// CodeConflict when capacity is exhausted or the opportunity is not open,
// CodeNotFound for unknown opportunities.
func (s *Service) Invest(ctx context.Context, opportunityID id.OpportunityID, amount id.Money) (InvestResult, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "funding.Invest", trace.WithAttributes(
		attribute.String("opportunity_id", opportunityID.String()),
		attribute.Int64("amount", int64(amount)),
	))
	defer span.End()

	investorID := requestcontext.UserID(ctx)
	if investorID.IsNil() {
		return InvestResult{}, dErrors.New(dErrors.CodeUnauthorized, "missing caller identity")
	}

	opp, err := s.store.GetOpportunity(ctx, opportunityID)
	if err != nil {
		s.metrics.IncrementOutcome("error")
		return InvestResult{}, err
	}
	if err := opp.ValidateAmountBounds(amount); err != nil {
		s.metrics.IncrementOutcome("validation_failed")
		return InvestResult{}, err
	}

	biz, err := s.store.GetBusiness(ctx, opp.BusinessID)
	if err != nil {
		s.metrics.IncrementOutcome("error")
		return InvestResult{}, err
	}
	if biz.Status != funding.BusinessApproved {
		s.metrics.IncrementOutcome("validation_failed")
		return InvestResult{}, dErrors.New(dErrors.CodeConflict, "business is not approved for funding")
	}

	if err := s.checkGates(ctx, investorID, opportunityID, amount); err != nil {
		s.metrics.IncrementOutcome("gate_denied")
		return InvestResult{}, err
	}

	var result InvestResult
	txCtx := txcontext.WithLockKey(ctx, opportunityID.String())
	err = s.runner.RunInTx(txCtx, func(ctx context.Context) error {
		updated, err := s.store.ApplyToCap(ctx, opportunityID, amount)
		if err != nil {
			return err
		}
		if err := s.store.AddToBusinessTotal(ctx, opp.BusinessID, amount); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		inv := funding.Investment{
			ID:             id.NewInvestmentID(),
			InvestorID:     investorID,
			OpportunityID:  opportunityID,
			Amount:         amount,
			ExpectedReturn: updated.ReturnRateBps.ApplyReturn(amount),
			MaturityDate:   now.AddDate(0, updated.DurationMonths, 0),
			Status:         funding.InvestmentActive,
			CreatedAt:      now,
		}
		if err := s.store.CreateInvestment(ctx, inv); err != nil {
			return err
		}

		txn, err := s.appendLedger(ctx, ledger.Transaction{
			ID:           id.NewTransactionID(),
			UserID:       investorID,
			InvestmentID: inv.ID,
			Type:         ledger.TypeInvestment,
			Amount:       amount,
			Description:  "investment in " + updated.Title,
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}

		if err := s.auditor.Emit(ctx, audit.Event{
			Actor:      investorID,
			Action:     string(audit.EventInvestmentMade),
			EntityType: "investment",
			EntityID:   inv.ID.String(),
			Amount:     amount.Int64(),
		}); err != nil {
			return err
		}

		result = InvestResult{Investment: inv, Transaction: txn, Opportunity: updated}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncrementOutcome("cap_exceeded")
		} else {
			s.metrics.IncrementOutcome("error")
		}
		return InvestResult{}, err
	}

	s.metrics.IncrementOutcome("accepted")
	s.metrics.AddInvested(amount.Int64())
	s.metrics.ObserveInvestLatency(time.Since(started))
	s.logger.Info("investment accepted",
		"request_id", requestcontext.RequestID(ctx),
		"investment_id", result.Investment.ID.String(),
		"opportunity_id", opportunityID.String(),
		"amount", amount.Int64(),
		"reference", result.Transaction.Reference,
	)
	return result, nil
}

// checkGates runs KYC and fraud in order. KYC short-circuits: a user who may
// not invest at all never reaches fraud scoring.
func (s *Service) checkGates(ctx context.Context, investorID id.UserID, opportunityID id.OpportunityID, amount id.Money) error {
	status, err := s.kyc.Status(ctx, investorID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeDependency, "kyc lookup failed")
	}
	s.metrics.IncrementGateVerdict("kyc", string(status))
	if status != gates.KYCApproved {
		s.auditGateDenied(ctx, investorID, opportunityID, amount, "kyc status "+string(status))
		return dErrors.New(dErrors.CodeForbidden, "identity verification required before investing")
	}

	decision, err := s.fraud.Evaluate(ctx, investorID, amount, requestcontext.ClientIP(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeDependency, "fraud evaluation failed")
	}
	s.metrics.IncrementGateVerdict("fraud", string(decision))
	switch decision {
	case gates.FraudAllow:
		return nil
	case gates.FraudReview:
		s.auditGateDenied(ctx, investorID, opportunityID, amount, "fraud decision REVIEW")
		return dErrors.New(dErrors.CodeForbidden, "transaction flagged for manual review")
	default:
		s.auditGateDenied(ctx, investorID, opportunityID, amount, "fraud decision "+string(decision))
		return dErrors.New(dErrors.CodeForbidden, "transaction blocked")
	}
}

func (s *Service) auditGateDenied(ctx context.Context, investorID id.UserID, opportunityID id.OpportunityID, amount id.Money, reason string) {
	if err := s.auditor.Emit(ctx, audit.Event{
		Actor:      investorID,
		Action:     string(audit.EventGateDenied),
		EntityType: "opportunity",
		EntityID:   opportunityID.String(),
		Amount:     amount.Int64(),
		Reason:     reason,
	}); err != nil {
		s.logger.Error("audit gate denial failed",
			"request_id", requestcontext.RequestID(ctx), "error", err)
	}
}

// appendLedger appends with a fresh reference, retrying on the store's
// unique-constraint conflict.
func (s *Service) appendLedger(ctx context.Context, txn ledger.Transaction) (ledger.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		txn.Reference = ledger.NewReference(txn.Type)
		lastErr = s.ledger.Append(ctx, txn)
		if lastErr == nil {
			return txn, nil
		}
		if !dErrors.HasCode(lastErr, dErrors.CodeConflict) {
			return ledger.Transaction{}, lastErr
		}
		s.metrics.IncrementReferenceRetry()
	}
	return ledger.Transaction{}, dErrors.Wrap(lastErr, dErrors.CodeInternal, "could not allocate a unique reference")
}

// Withdraw pays out a matured investment to its investor. Only the investor
// may withdraw, and only once.
func (s *Service) Withdraw(ctx context.Context, investmentID id.InvestmentID) (ledger.Transaction, error) {
	callerID := requestcontext.UserID(ctx)
	if callerID.IsNil() {
		return ledger.Transaction{}, dErrors.New(dErrors.CodeUnauthorized, "missing caller identity")
	}

	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if inv.InvestorID != callerID {
		return ledger.Transaction{}, dErrors.New(dErrors.CodeForbidden, "investment belongs to another investor")
	}

	var txn ledger.Transaction
	txCtx := txcontext.WithLockKey(ctx, investmentID.String())
	err = s.runner.RunInTx(txCtx, func(ctx context.Context) error {
		if err := s.store.TransitionInvestment(ctx, investmentID, funding.InvestmentMatured, funding.InvestmentWithdrawn); err != nil {
			return err
		}
		var err error
		txn, err = s.appendLedger(ctx, ledger.Transaction{
			ID:           id.NewTransactionID(),
			UserID:       callerID,
			InvestmentID: investmentID,
			Type:         ledger.TypeWithdrawal,
			Amount:       inv.ExpectedReturn,
			Description:  "withdrawal of matured investment",
			CreatedAt:    requestcontext.Now(ctx),
		})
		if err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Actor:      callerID,
			Action:     string(audit.EventInvestmentWithdrawn),
			EntityType: "investment",
			EntityID:   investmentID.String(),
			Amount:     inv.ExpectedReturn.Int64(),
		})
	})
	if err != nil {
		return ledger.Transaction{}, err
	}

	s.logger.Info("investment withdrawn",
		"request_id", requestcontext.RequestID(ctx),
		"investment_id", investmentID.String(),
		"amount", inv.ExpectedReturn.Int64(),
	)
	return txn, nil
}

// MatureDue marks every active investment whose maturity date has passed as
// MATURED. Run from a scheduler; each investment transitions in its own
// transaction so one failure does not hold back the batch.
func (s *Service) MatureDue(ctx context.Context, batchSize int) (int, error) {
	due, err := s.store.ListActiveMaturedBefore(ctx, requestcontext.Now(ctx), batchSize)
	if err != nil {
		return 0, err
	}

	matured := 0
	for _, inv := range due {
		inv := inv
		txCtx := txcontext.WithLockKey(ctx, inv.ID.String())
		err := s.runner.RunInTx(txCtx, func(ctx context.Context) error {
			if err := s.store.TransitionInvestment(ctx, inv.ID, funding.InvestmentActive, funding.InvestmentMatured); err != nil {
				return err
			}
			return s.auditor.Emit(ctx, audit.Event{
				Actor:      inv.InvestorID,
				Action:     string(audit.EventInvestmentMatured),
				EntityType: "investment",
				EntityID:   inv.ID.String(),
				Amount:     inv.ExpectedReturn.Int64(),
			})
		})
		if err != nil {
			// A concurrent withdrawal or dispute can race the scheduler;
			// skip and move on.
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				continue
			}
			return matured, err
		}
		matured++
	}
	return matured, nil
}

// GetInvestment returns an investment visible to the caller: the investor
// themselves or an arbitrator.
func (s *Service) GetInvestment(ctx context.Context, investmentID id.InvestmentID) (funding.Investment, error) {
	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return funding.Investment{}, err
	}
	callerID := requestcontext.UserID(ctx)
	if inv.InvestorID != callerID && !requestcontext.Role(ctx).CanArbitrate() {
		return funding.Investment{}, dErrors.New(dErrors.CodeForbidden, "investment belongs to another investor")
	}
	return inv, nil
}

// ListInvestments returns the caller's own investments.
func (s *Service) ListInvestments(ctx context.Context) ([]funding.Investment, error) {
	callerID := requestcontext.UserID(ctx)
	if callerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing caller identity")
	}
	return s.store.ListInvestmentsByInvestor(ctx, callerID)
}

// GetOpportunity is a public read; funding progress is not sensitive.
func (s *Service) GetOpportunity(ctx context.Context, opportunityID id.OpportunityID) (funding.Opportunity, error) {
	return s.store.GetOpportunity(ctx, opportunityID)
}
