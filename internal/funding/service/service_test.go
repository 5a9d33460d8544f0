package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Allan-Afari/investghanahub-sub000/internal/funding"
	"github.com/Allan-Afari/investghanahub-sub000/internal/gates"
	"github.com/Allan-Afari/investghanahub-sub000/internal/ledger"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit"
	auditmem "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit/store/memory"
	txcontext "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/tx"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

// =============================================================================
// Funding Service Test Suite
// =============================================================================
// Justification for unit tests: capacity enforcement under concurrency and
// the gate short-circuit ordering are the core correctness properties of
// this module and are impractical to exercise deterministically end to end.

type FundingServiceSuite struct {
	suite.Suite
	store      *funding.InMemoryStore
	ledger     *ledger.InMemoryStore
	auditStore *auditmem.InMemoryStore
	kyc        *gates.StaticKYC
	fraud      *gates.StaticFraud
	service    *Service

	investorID id.UserID
	businessID id.BusinessID
	oppID      id.OpportunityID
}

func TestFundingServiceSuite(t *testing.T) {
	suite.Run(t, new(FundingServiceSuite))
}

func (s *FundingServiceSuite) SetupTest() {
	s.store = funding.NewInMemoryStore()
	s.ledger = ledger.NewInMemoryStore()
	s.auditStore = auditmem.NewInMemoryStore()
	s.kyc = gates.NewStaticKYC()
	s.fraud = gates.NewStaticFraud()

	s.service = NewService(
		s.store,
		s.ledger,
		s.kyc,
		s.fraud,
		audit.NewPublisher(s.auditStore),
		txcontext.NewMemoryRunner(),
		nil,
		slog.New(slog.NewTextHandler(testWriter{s.T()}, nil)),
	)

	s.investorID = id.NewUserID()
	s.kyc.Set(s.investorID, gates.KYCApproved)

	s.businessID = id.NewBusinessID()
	s.Require().NoError(s.store.CreateBusiness(context.Background(), funding.Business{
		ID:           s.businessID,
		OwnerID:      id.NewUserID(),
		Name:         "Kumasi Shea Collective",
		TargetAmount: 5_000_00,
		Status:       funding.BusinessApproved,
		CreatedAt:    time.Now(),
	}))

	s.oppID = id.NewOpportunityID()
	s.Require().NoError(s.store.CreateOpportunity(context.Background(), funding.Opportunity{
		ID:             s.oppID,
		BusinessID:     s.businessID,
		Title:          "Processing equipment round",
		TargetAmount:   1_000_00,
		MinInvestment:  50_00,
		MaxInvestment:  1_000_00,
		ReturnRateBps:  1_500,
		DurationMonths: 6,
		Status:         funding.OpportunityOpen,
		CreatedAt:      time.Now(),
	}))
}

func (s *FundingServiceSuite) investorCtx() context.Context {
	return requestcontext.WithUserID(context.Background(), s.investorID)
}

// =============================================================================
// Invest Tests
// =============================================================================

func (s *FundingServiceSuite) TestInvest() {
	s.Run("accepted investment records investment, ledger row, and audit event", func() {
		result, err := s.service.Invest(s.investorCtx(), s.oppID, 500_00)
		s.Require().NoError(err)

		s.Equal(funding.InvestmentActive, result.Investment.Status)
		s.Equal(id.Money(500_00), result.Investment.Amount)
		s.Equal(id.Money(575_00), result.Investment.ExpectedReturn)
		s.Equal(id.Money(500_00), result.Opportunity.CurrentAmount)

		s.Equal(ledger.TypeInvestment, result.Transaction.Type)
		s.Regexp(`^INV-[0-9a-f]{12}$`, result.Transaction.Reference)

		events, err := s.service.auditor.ListByEntity(context.Background(), "investment", result.Investment.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventInvestmentMade), events[0].Action)

		biz, err := s.store.GetBusiness(context.Background(), s.businessID)
		s.Require().NoError(err)
		s.Equal(id.Money(500_00), biz.CurrentAmount)
	})

	s.Run("filling the target flips the opportunity to FUNDED", func() {
		result, err := s.service.Invest(s.investorCtx(), s.oppID, 500_00)
		s.Require().NoError(err)
		s.Equal(funding.OpportunityFunded, result.Opportunity.Status)
	})

	s.Run("investing in a funded opportunity is refused", func() {
		_, err := s.service.Invest(s.investorCtx(), s.oppID, 50_00)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(dErrors.MessageOf(err), "FUNDED")
	})
}

func (s *FundingServiceSuite) TestInvestCapExceeded() {
	// 900 of 1000 taken; a 150 ask must be refused with the remainder named.
	_, err := s.service.Invest(s.investorCtx(), s.oppID, 900_00)
	s.Require().NoError(err)

	_, err = s.service.Invest(s.investorCtx(), s.oppID, 150_00)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Contains(dErrors.MessageOf(err), "GHS 100.00 remaining")

	// The refused attempt must leave no partial writes behind.
	opp, err := s.store.GetOpportunity(context.Background(), s.oppID)
	s.Require().NoError(err)
	s.Equal(id.Money(900_00), opp.CurrentAmount)

	txns, err := s.ledger.ListByUser(context.Background(), s.investorID)
	s.Require().NoError(err)
	s.Len(txns, 1)
}

func (s *FundingServiceSuite) TestInvestAmountBounds() {
	s.Run("below minimum", func() {
		_, err := s.service.Invest(s.investorCtx(), s.oppID, 10_00)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("above maximum", func() {
		_, err := s.service.Invest(s.investorCtx(), s.oppID, 2_000_00)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("bounds are checked before capacity", func() {
		opp, err := s.store.GetOpportunity(context.Background(), s.oppID)
		s.Require().NoError(err)
		s.Equal(id.Money(0), opp.CurrentAmount)
	})
}

func (s *FundingServiceSuite) TestInvestGates() {
	s.Run("pending KYC denies and records a gate_denied audit event", func() {
		pending := id.NewUserID()
		s.kyc.Set(pending, gates.KYCPending)
		ctx := requestcontext.WithUserID(context.Background(), pending)

		_, err := s.service.Invest(ctx, s.oppID, 100_00)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		events, err := s.auditStore.ListByActor(context.Background(), pending)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventGateDenied), events[0].Action)
		s.Contains(events[0].Reason, "PENDING")
	})

	s.Run("unknown investor defaults to NOT_SUBMITTED and is denied", func() {
		ctx := requestcontext.WithUserID(context.Background(), id.NewUserID())
		_, err := s.service.Invest(ctx, s.oppID, 100_00)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("fraud REVIEW is not an allow", func() {
		s.fraud.Set(s.investorID, gates.FraudReview)
		_, err := s.service.Invest(s.investorCtx(), s.oppID, 100_00)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Contains(dErrors.MessageOf(err), "review")
	})

	s.Run("fraud BLOCK denies", func() {
		s.fraud.Set(s.investorID, gates.FraudBlock)
		_, err := s.service.Invest(s.investorCtx(), s.oppID, 100_00)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("gate denials leave the cap untouched", func() {
		opp, err := s.store.GetOpportunity(context.Background(), s.oppID)
		s.Require().NoError(err)
		s.Equal(id.Money(0), opp.CurrentAmount)
	})
}

func (s *FundingServiceSuite) TestInvestUnapprovedBusiness() {
	pendingBiz := id.NewBusinessID()
	s.Require().NoError(s.store.CreateBusiness(context.Background(), funding.Business{
		ID:      pendingBiz,
		OwnerID: id.NewUserID(),
		Status:  funding.BusinessPending,
	}))
	pendingOpp := id.NewOpportunityID()
	s.Require().NoError(s.store.CreateOpportunity(context.Background(), funding.Opportunity{
		ID:            pendingOpp,
		BusinessID:    pendingBiz,
		TargetAmount:  1_000_00,
		MinInvestment: 1_00,
		MaxInvestment: 1_000_00,
		Status:        funding.OpportunityOpen,
	}))

	_, err := s.service.Invest(s.investorCtx(), pendingOpp, 100_00)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Contains(dErrors.MessageOf(err), "not approved")
}

// TestInvestConcurrentCap races two 600 investments against a 700 cap.
// Exactly one must win; the loser sees a conflict and no partial state.
func (s *FundingServiceSuite) TestInvestConcurrentCap() {
	oppID := id.NewOpportunityID()
	s.Require().NoError(s.store.CreateOpportunity(context.Background(), funding.Opportunity{
		ID:            oppID,
		BusinessID:    s.businessID,
		TargetAmount:  700_00,
		MinInvestment: 1_00,
		MaxInvestment: 700_00,
		Status:        funding.OpportunityOpen,
	}))

	second := id.NewUserID()
	s.kyc.Set(second, gates.KYCApproved)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, investor := range []id.UserID{s.investorID, second} {
		wg.Add(1)
		go func(i int, investor id.UserID) {
			defer wg.Done()
			ctx := requestcontext.WithUserID(context.Background(), investor)
			_, errs[i] = s.service.Invest(ctx, oppID, 600_00)
		}(i, investor)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		}
	}
	s.Equal(1, winners)

	opp, err := s.store.GetOpportunity(context.Background(), oppID)
	s.Require().NoError(err)
	s.Equal(id.Money(600_00), opp.CurrentAmount)

	ids, err := s.store.ListInvestmentIDsByOpportunity(context.Background(), oppID)
	s.Require().NoError(err)
	s.Len(ids, 1)
}

// =============================================================================
// Aggregation / Reconciliation Tests
// =============================================================================

func (s *FundingServiceSuite) TestReconcilerSeesNoDrift() {
	for _, amount := range []id.Money{300_00, 200_00, 100_00} {
		_, err := s.service.Invest(s.investorCtx(), s.oppID, amount)
		s.Require().NoError(err)
	}

	rec := ledger.NewReconciler(s.ledger, funding.NewSnapshotSource(s.store),
		slog.New(slog.NewTextHandler(testWriter{s.T()}, nil)))
	report, err := rec.Check(context.Background(), s.oppID)
	s.Require().NoError(err)
	s.True(report.Clean())
	s.Equal(id.Money(600_00), report.Recorded)
	s.Equal(id.Money(600_00), report.LedgerAmount)
}

// =============================================================================
// Withdraw / Maturity Tests
// =============================================================================

func (s *FundingServiceSuite) TestWithdraw() {
	result, err := s.service.Invest(s.investorCtx(), s.oppID, 200_00)
	s.Require().NoError(err)
	invID := result.Investment.ID

	s.Run("active investment cannot be withdrawn", func() {
		_, err := s.service.Withdraw(s.investorCtx(), invID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("matured investment pays out expected return once", func() {
		s.Require().NoError(s.store.TransitionInvestment(context.Background(), invID,
			funding.InvestmentActive, funding.InvestmentMatured))

		txn, err := s.service.Withdraw(s.investorCtx(), invID)
		s.Require().NoError(err)
		s.Equal(ledger.TypeWithdrawal, txn.Type)
		s.Equal(id.Money(230_00), txn.Amount)

		_, err = s.service.Withdraw(s.investorCtx(), invID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("another investor may not withdraw", func() {
		other := requestcontext.WithUserID(context.Background(), id.NewUserID())
		_, err := s.service.Withdraw(other, invID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *FundingServiceSuite) TestMatureDue() {
	result, err := s.service.Invest(s.investorCtx(), s.oppID, 200_00)
	s.Require().NoError(err)

	s.Run("nothing due before maturity", func() {
		matured, err := s.service.MatureDue(context.Background(), 100)
		s.Require().NoError(err)
		s.Zero(matured)
	})

	s.Run("past-due investment matures", func() {
		future := requestcontext.WithTime(context.Background(),
			result.Investment.MaturityDate.Add(24*time.Hour))
		matured, err := s.service.MatureDue(future, 100)
		s.Require().NoError(err)
		s.Equal(1, matured)

		inv, err := s.store.GetInvestment(context.Background(), result.Investment.ID)
		s.Require().NoError(err)
		s.Equal(funding.InvestmentMatured, inv.Status)
	})

	s.Run("maturing is idempotent across runs", func() {
		future := requestcontext.WithTime(context.Background(),
			result.Investment.MaturityDate.Add(24*time.Hour))
		matured, err := s.service.MatureDue(future, 100)
		s.Require().NoError(err)
		s.Zero(matured)
	})
}

// =============================================================================
// Reference Retry Tests
// =============================================================================

func (s *FundingServiceSuite) TestReferenceCollisionRetries() {
	collider := &collidingLedger{InMemoryStore: s.ledger, conflicts: 2}
	svc := NewService(s.store, collider, s.kyc, s.fraud,
		audit.NewPublisher(s.auditStore), txcontext.NewMemoryRunner(), nil,
		slog.New(slog.NewTextHandler(testWriter{s.T()}, nil)))

	result, err := svc.Invest(s.investorCtx(), s.oppID, 100_00)
	s.Require().NoError(err)
	s.Regexp(`^INV-[0-9a-f]{12}$`, result.Transaction.Reference)
	s.Zero(collider.conflicts)
}

func (s *FundingServiceSuite) TestReferenceCollisionExhaustion() {
	collider := &collidingLedger{InMemoryStore: s.ledger, conflicts: 10}
	svc := NewService(s.store, collider, s.kyc, s.fraud,
		audit.NewPublisher(s.auditStore), txcontext.NewMemoryRunner(), nil,
		slog.New(slog.NewTextHandler(testWriter{s.T()}, nil)))

	_, err := svc.Invest(s.investorCtx(), s.oppID, 100_00)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

// collidingLedger forces the first N appends to report a reference conflict.
type collidingLedger struct {
	*ledger.InMemoryStore
	mu        sync.Mutex
	conflicts int
}

func (c *collidingLedger) Append(ctx context.Context, txn ledger.Transaction) error {
	c.mu.Lock()
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, "reference already exists")
	}
	c.mu.Unlock()
	return c.InMemoryStore.Append(ctx, txn)
}

// testWriter routes slog output through the test log.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
