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

	"github.com/Allan-Afari/investghanahub-sub000/internal/dispute"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/testutil"
)

// =============================================================================
// Dispute Handler Test Suite
// =============================================================================
// Justification for unit tests: the raise route takes either an escrow id or
// a payment reference, and the exactly-one rule plus the routing between the
// two service entry points belong to the handler alone.

type stubService struct {
	raiseFn      func(ctx context.Context, escrowID id.EscrowID, reason string) (dispute.Dispute, error)
	raiseByRefFn func(ctx context.Context, reference, reason string) (dispute.Dispute, error)
}

func (s *stubService) Raise(ctx context.Context, escrowID id.EscrowID, reason string) (dispute.Dispute, error) {
	return s.raiseFn(ctx, escrowID, reason)
}

func (s *stubService) RaiseByReference(ctx context.Context, reference, reason string) (dispute.Dispute, error) {
	return s.raiseByRefFn(ctx, reference, reason)
}

func (s *stubService) Resolve(context.Context, id.DisputeID, dispute.Resolution, string) (dispute.Dispute, error) {
	return dispute.Dispute{}, dErrors.New(dErrors.CodeForbidden, "only an arbitrator may resolve disputes")
}

func (s *stubService) Get(context.Context, id.DisputeID) (dispute.Dispute, error) {
	return dispute.Dispute{}, dErrors.New(dErrors.CodeNotFound, "dispute not found")
}

func (s *stubService) ListOpen(context.Context, int) ([]dispute.Dispute, error) {
	return nil, nil
}

type DisputeHandlerSuite struct {
	suite.Suite
	service *stubService
	router  chi.Router
}

func TestDisputeHandlerSuite(t *testing.T) {
	suite.Run(t, new(DisputeHandlerSuite))
}

func (s *DisputeHandlerSuite) SetupTest() {
	s.service = &stubService{}

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func (s *DisputeHandlerSuite) TestRaiseByEscrowID() {
	escrowID := id.NewEscrowID()
	disputeID := id.NewDisputeID()
	s.service.raiseFn = func(_ context.Context, gotEscrow id.EscrowID, reason string) (dispute.Dispute, error) {
		s.Equal(escrowID, gotEscrow)
		s.Equal("goods never delivered", reason)
		return dispute.Dispute{
			ID:        disputeID,
			EscrowID:  escrowID,
			Status:    dispute.StatusOpen,
			Reason:    reason,
			CreatedAt: time.Now(),
		}, nil
	}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/disputes", map[string]any{
		"escrow_id": escrowID.String(),
		"reason":    "goods never delivered",
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.Equal(disputeID.String(), (*resp)["dispute_id"])
	s.Equal(escrowID.String(), (*resp)["escrow_id"])
}

func (s *DisputeHandlerSuite) TestRaiseByPaymentReference() {
	disputeID := id.NewDisputeID()
	s.service.raiseByRefFn = func(_ context.Context, reference, reason string) (dispute.Dispute, error) {
		s.Equal("PAY-feedfacefeedface", reference)
		return dispute.Dispute{
			ID:         disputeID,
			PaymentRef: reference,
			Status:     dispute.StatusOpen,
			Reason:     reason,
			CreatedAt:  time.Now(),
		}, nil
	}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/disputes", map[string]any{
		"payment_reference": "PAY-feedfacefeedface",
		"reason":            "charged with no escrow",
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.Equal("PAY-feedfacefeedface", (*resp)["payment_reference"])
	// An unbound dispute carries no escrow id at all.
	s.NotContains(*resp, "escrow_id")
}

func (s *DisputeHandlerSuite) TestRaiseRequiresExactlyOneTarget() {
	s.Run("neither", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/disputes", map[string]any{
			"reason": "something is wrong",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertCodedError(s.T(), rr, http.StatusBadRequest, dErrors.CodeInvalidInput)
	})

	s.Run("both", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/disputes", map[string]any{
			"escrow_id":         id.NewEscrowID().String(),
			"payment_reference": "PAY-feedfacefeedface",
			"reason":            "something is wrong",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertCodedError(s.T(), rr, http.StatusBadRequest, dErrors.CodeInvalidInput)
	})
}

func (s *DisputeHandlerSuite) TestRaiseBadEscrowID() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/disputes", map[string]any{
		"escrow_id": "not-a-uuid",
		"reason":    "something is wrong",
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertCodedError(s.T(), rr, http.StatusBadRequest, dErrors.CodeInvalidInput)
}

func (s *DisputeHandlerSuite) TestRaiseMissingReason() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/disputes", map[string]any{
		"escrow_id": id.NewEscrowID().String(),
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertCodedError(s.T(), rr, http.StatusBadRequest, dErrors.CodeInvalidInput)
}

func (s *DisputeHandlerSuite) TestResolveForbiddenForNonArbitrator() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost,
		"/disputes/"+id.NewDisputeID().String()+"/resolve",
		map[string]any{"resolution": "REFUND"})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertCodedError(s.T(), rr, http.StatusForbidden, dErrors.CodeForbidden)
}

func (s *DisputeHandlerSuite) TestResolveUnknownVerdict() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost,
		"/disputes/"+id.NewDisputeID().String()+"/resolve",
		map[string]any{"resolution": "SPLIT"})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertCodedError(s.T(), rr, http.StatusBadRequest, dErrors.CodeInvalidInput)
}
