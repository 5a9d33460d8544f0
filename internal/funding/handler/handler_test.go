package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/Allan-Afari/investghanahub-sub000/internal/funding"
	"github.com/Allan-Afari/investghanahub-sub000/internal/funding/service"
	"github.com/Allan-Afari/investghanahub-sub000/internal/ledger"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/testutil"
)

// =============================================================================
// Funding Handler Test Suite
// =============================================================================
// Justification for unit tests: the handler owns request decoding, ID parsing,
// and error-to-status mapping; a stub service isolates those from the domain
// logic the service suite already covers.

type stubService struct {
	investFn func(ctx context.Context, opportunityID id.OpportunityID, amount id.Money) (service.InvestResult, error)
	getFn    func(ctx context.Context, investmentID id.InvestmentID) (funding.Investment, error)
}

func (s *stubService) Invest(ctx context.Context, opportunityID id.OpportunityID, amount id.Money) (service.InvestResult, error) {
	return s.investFn(ctx, opportunityID, amount)
}

func (s *stubService) Withdraw(context.Context, id.InvestmentID) (ledger.Transaction, error) {
	return ledger.Transaction{}, dErrors.New(dErrors.CodeConflict, "investment is ACTIVE, expected MATURED")
}

func (s *stubService) GetInvestment(ctx context.Context, investmentID id.InvestmentID) (funding.Investment, error) {
	return s.getFn(ctx, investmentID)
}

func (s *stubService) ListInvestments(context.Context) ([]funding.Investment, error) {
	return nil, nil
}

func (s *stubService) GetOpportunity(context.Context, id.OpportunityID) (funding.Opportunity, error) {
	return funding.Opportunity{}, dErrors.New(dErrors.CodeNotFound, "opportunity not found")
}

type stubReconciler struct {
	report ledger.Report
}

func (s stubReconciler) Check(context.Context, id.OpportunityID) (ledger.Report, error) {
	return s.report, nil
}

type FundingHandlerSuite struct {
	suite.Suite
	service    *stubService
	reconciler stubReconciler
	router     chi.Router
}

func TestFundingHandlerSuite(t *testing.T) {
	suite.Run(t, new(FundingHandlerSuite))
}

func (s *FundingHandlerSuite) SetupTest() {
	s.service = &stubService{}
	s.reconciler = stubReconciler{}

	h := New(s.service, s.reconciler, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func (s *FundingHandlerSuite) TestInvestCreated() {
	oppID := id.NewOpportunityID()
	invID := id.NewInvestmentID()
	s.service.investFn = func(_ context.Context, gotOpp id.OpportunityID, amount id.Money) (service.InvestResult, error) {
		s.Equal(oppID, gotOpp)
		s.Equal(id.Money(500_00), amount)
		return service.InvestResult{
			Investment: funding.Investment{
				ID:             invID,
				OpportunityID:  oppID,
				Amount:         amount,
				ExpectedReturn: 575_00,
				MaturityDate:   time.Now().AddDate(0, 6, 0),
				Status:         funding.InvestmentActive,
			},
			Transaction: ledger.Transaction{Reference: "INV-0123456789ab"},
		}, nil
	}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/investments", map[string]any{
		"opportunity_id": oppID.String(),
		"amount":         500_00,
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.Equal(invID.String(), (*resp)["investment_id"])
	s.Equal(float64(575_00), (*resp)["expected_return"])
	s.Equal("INV-0123456789ab", (*resp)["reference"])
}

func (s *FundingHandlerSuite) TestInvestMalformedBody() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/investments", nil)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertCodedError(s.T(), rr, http.StatusBadRequest, dErrors.CodeInvalidInput)
}

func (s *FundingHandlerSuite) TestInvestBadOpportunityID() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/investments", map[string]any{
		"opportunity_id": "not-a-uuid",
		"amount":         500_00,
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertCodedError(s.T(), rr, http.StatusBadRequest, dErrors.CodeInvalidInput)
}

func (s *FundingHandlerSuite) TestInvestCapExhaustedMapsToConflict() {
	s.service.investFn = func(context.Context, id.OpportunityID, id.Money) (service.InvestResult, error) {
		return service.InvestResult{}, dErrors.Newf(dErrors.CodeConflict, "opportunity has only %s remaining", id.Money(100_00))
	}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/investments", map[string]any{
		"opportunity_id": id.NewOpportunityID().String(),
		"amount":         150_00,
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertCodedError(s.T(), rr, http.StatusConflict, dErrors.CodeConflict)
	testutil.AssertJSONContains(s.T(), rr, "error_description", "opportunity has only GHS 100.00 remaining")
}

func (s *FundingHandlerSuite) TestWithdrawNotMatured() {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/investments/"+id.NewInvestmentID().String()+"/withdraw")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertCodedError(s.T(), rr, http.StatusConflict, dErrors.CodeConflict)
}

func (s *FundingHandlerSuite) TestGetInvestmentForbiddenHidesNothingExtra() {
	s.service.getFn = func(context.Context, id.InvestmentID) (funding.Investment, error) {
		return funding.Investment{}, dErrors.New(dErrors.CodeForbidden, "not your investment")
	}
	req := testutil.NewRequest(s.T(), http.MethodGet, "/investments/"+id.NewInvestmentID().String())
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertCodedError(s.T(), rr, http.StatusForbidden, dErrors.CodeForbidden)
}

func (s *FundingHandlerSuite) TestReconciliationReport() {
	oppID := id.NewOpportunityID()
	s.reconciler = stubReconciler{report: ledger.Report{
		OpportunityID: oppID,
		Recorded:      400_00,
		LedgerAmount:  400_00,
	}}
	// Rebuild with the fresh reconciler.
	h := New(s.service, s.reconciler, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := chi.NewRouter()
	h.RegisterAdmin(router)

	req := testutil.NewRequest(s.T(), http.MethodGet, "/opportunities/"+oppID.String()+"/reconciliation")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "drift", float64(0))
}
