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

	"github.com/Allan-Afari/investghanahub-sub000/internal/escrow"
	"github.com/Allan-Afari/investghanahub-sub000/internal/escrow/service"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/testutil"
)

// =============================================================================
// Escrow Handler Test Suite
// =============================================================================
// Justification for unit tests: request parsing, the optional confirm body,
// and the split between party routes and arbitrator routes are handler
// decisions, separate from the state machine underneath.

type stubService struct {
	createFn  func(ctx context.Context, p service.CreateParams) (escrow.Escrow, error)
	confirmFn func(ctx context.Context, escrowID id.EscrowID, reference string) (escrow.Escrow, error)
	releaseFn func(ctx context.Context, escrowID id.EscrowID, reason string, documents []string) (escrow.Escrow, error)
	refundFn  func(ctx context.Context, escrowID id.EscrowID, reason string, amount id.Money) (escrow.Escrow, error)
}

func (s *stubService) Create(ctx context.Context, p service.CreateParams) (escrow.Escrow, error) {
	return s.createFn(ctx, p)
}

func (s *stubService) InitiatePayment(context.Context, id.EscrowID) (escrow.Escrow, error) {
	return escrow.Escrow{}, dErrors.New(dErrors.CodeNotFound, "escrow not found")
}

func (s *stubService) ConfirmPayment(ctx context.Context, escrowID id.EscrowID, reference string) (escrow.Escrow, error) {
	return s.confirmFn(ctx, escrowID, reference)
}

func (s *stubService) Release(ctx context.Context, escrowID id.EscrowID, reason string, documents []string) (escrow.Escrow, error) {
	return s.releaseFn(ctx, escrowID, reason, documents)
}

func (s *stubService) Refund(ctx context.Context, escrowID id.EscrowID, reason string, amount id.Money) (escrow.Escrow, error) {
	return s.refundFn(ctx, escrowID, reason, amount)
}

func (s *stubService) Get(context.Context, id.EscrowID) (escrow.Escrow, error) {
	return escrow.Escrow{}, dErrors.New(dErrors.CodeNotFound, "escrow not found")
}

type EscrowHandlerSuite struct {
	suite.Suite
	service *stubService
	party   chi.Router
	admin   chi.Router
}

func TestEscrowHandlerSuite(t *testing.T) {
	suite.Run(t, new(EscrowHandlerSuite))
}

func (s *EscrowHandlerSuite) SetupTest() {
	s.service = &stubService{}

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.party = chi.NewRouter()
	h.Register(s.party)
	s.admin = chi.NewRouter()
	h.RegisterAdmin(s.admin)
}

func (s *EscrowHandlerSuite) TestCreateCarriesReleaseTerms() {
	invID := id.NewInvestmentID()
	releaseOn := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	s.service.createFn = func(_ context.Context, p service.CreateParams) (escrow.Escrow, error) {
		s.Equal(invID, p.InvestmentID)
		s.Equal([]string{"milestone 1 delivered"}, p.Conditions)
		s.Require().NotNil(p.ReleaseOn)
		s.True(p.ReleaseOn.Equal(releaseOn))
		return escrow.Escrow{
			ID:           id.NewEscrowID(),
			InvestmentID: invID,
			Amount:       300_00,
			Status:       escrow.StatusCreated,
			Conditions:   p.Conditions,
			ReleaseOn:    p.ReleaseOn,
		}, nil
	}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/escrows", map[string]any{
		"investment_id": invID.String(),
		"conditions":    []string{"milestone 1 delivered"},
		"release_on":    releaseOn.Format(time.RFC3339),
	})
	rr := testutil.DoRequest(s.party, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.Equal(releaseOn.Format(time.RFC3339), (*resp)["release_on"])
}

func (s *EscrowHandlerSuite) TestCreateRejectsBadReleaseOn() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/escrows", map[string]any{
		"investment_id": id.NewInvestmentID().String(),
		"release_on":    "next tuesday",
	})
	rr := testutil.DoRequest(s.party, req)
	testutil.AssertCodedError(s.T(), rr, http.StatusBadRequest, dErrors.CodeInvalidInput)
}

func (s *EscrowHandlerSuite) TestConfirmWithoutBody() {
	escrowID := id.NewEscrowID()
	s.service.confirmFn = func(_ context.Context, gotID id.EscrowID, reference string) (escrow.Escrow, error) {
		s.Equal(escrowID, gotID)
		s.Empty(reference)
		return escrow.Escrow{ID: escrowID, InvestmentID: id.NewInvestmentID(), Status: escrow.StatusFunded}, nil
	}

	req := testutil.NewRequest(s.T(), http.MethodPost, "/escrows/"+escrowID.String()+"/confirm")
	rr := testutil.DoRequest(s.party, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "status", string(escrow.StatusFunded))
}

func (s *EscrowHandlerSuite) TestConfirmForwardsCallbackReference() {
	escrowID := id.NewEscrowID()
	s.service.confirmFn = func(_ context.Context, _ id.EscrowID, reference string) (escrow.Escrow, error) {
		s.Equal("PAY-feedfacefeedface", reference)
		return escrow.Escrow{ID: escrowID, InvestmentID: id.NewInvestmentID(), Status: escrow.StatusFunded}, nil
	}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost,
		"/escrows/"+escrowID.String()+"/confirm",
		map[string]any{"payment_reference": "PAY-feedfacefeedface"})
	rr := testutil.DoRequest(s.party, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *EscrowHandlerSuite) TestSettlementRoutesAreAdminOnly() {
	escrowID := id.NewEscrowID()

	s.Run("release is not mounted for parties", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost,
			"/escrows/"+escrowID.String()+"/release",
			map[string]any{"reason": "milestone reached"})
		rr := testutil.DoRequest(s.party, req)
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})

	s.Run("refund is not mounted for parties", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost,
			"/escrows/"+escrowID.String()+"/refund",
			map[string]any{"reason": "deal fell through"})
		rr := testutil.DoRequest(s.party, req)
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})
}

func (s *EscrowHandlerSuite) TestReleaseForwardsReasonAndDocuments() {
	escrowID := id.NewEscrowID()
	s.service.releaseFn = func(_ context.Context, gotID id.EscrowID, reason string, documents []string) (escrow.Escrow, error) {
		s.Equal(escrowID, gotID)
		s.Equal("milestone reached", reason)
		s.Equal([]string{"delivery-note.pdf"}, documents)
		return escrow.Escrow{ID: escrowID, InvestmentID: id.NewInvestmentID(), Status: escrow.StatusReleased}, nil
	}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost,
		"/escrows/"+escrowID.String()+"/release",
		map[string]any{"reason": "milestone reached", "documents": []string{"delivery-note.pdf"}})
	rr := testutil.DoRequest(s.admin, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "status", string(escrow.StatusReleased))
}

func (s *EscrowHandlerSuite) TestReleaseRequiresReason() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost,
		"/escrows/"+id.NewEscrowID().String()+"/release",
		map[string]any{"documents": []string{"delivery-note.pdf"}})
	rr := testutil.DoRequest(s.admin, req)
	testutil.AssertCodedError(s.T(), rr, http.StatusBadRequest, dErrors.CodeInvalidInput)
}

func (s *EscrowHandlerSuite) TestRefundForwardsPartialAmount() {
	escrowID := id.NewEscrowID()
	s.service.refundFn = func(_ context.Context, _ id.EscrowID, reason string, amount id.Money) (escrow.Escrow, error) {
		s.Equal("partial delivery", reason)
		s.Equal(id.Money(100_00), amount)
		return escrow.Escrow{ID: escrowID, InvestmentID: id.NewInvestmentID(), Status: escrow.StatusRefunded}, nil
	}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost,
		"/escrows/"+escrowID.String()+"/refund",
		map[string]any{"reason": "partial delivery", "amount": 100_00})
	rr := testutil.DoRequest(s.admin, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *EscrowHandlerSuite) TestRefundRejectsNegativeAmount() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost,
		"/escrows/"+id.NewEscrowID().String()+"/refund",
		map[string]any{"reason": "nonsense", "amount": -1})
	rr := testutil.DoRequest(s.admin, req)
	testutil.AssertCodedError(s.T(), rr, http.StatusBadRequest, dErrors.CodeInvalidInput)
}
