package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Allan-Afari/investghanahub-sub000/internal/funding"
	"github.com/Allan-Afari/investghanahub-sub000/internal/funding/service"
	"github.com/Allan-Afari/investghanahub-sub000/internal/ledger"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/httputil"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

// Service defines the funding operations the handler exposes.
type Service interface {
	Invest(ctx context.Context, opportunityID id.OpportunityID, amount id.Money) (service.InvestResult, error)
	Withdraw(ctx context.Context, investmentID id.InvestmentID) (ledger.Transaction, error)
	GetInvestment(ctx context.Context, investmentID id.InvestmentID) (funding.Investment, error)
	ListInvestments(ctx context.Context) ([]funding.Investment, error)
	GetOpportunity(ctx context.Context, opportunityID id.OpportunityID) (funding.Opportunity, error)
}

// Reconciler exposes the admin drift check.
type Reconciler interface {
	Check(ctx context.Context, opportunityID id.OpportunityID) (ledger.Report, error)
}

type Handler struct {
	funding    Service
	reconciler Reconciler
	logger     *slog.Logger
}

func New(funding Service, reconciler Reconciler, logger *slog.Logger) *Handler {
	return &Handler{funding: funding, reconciler: reconciler, logger: logger}
}

// Register mounts the funding routes. The router already carries auth and
// request metadata middleware; admin-only routes are guarded by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Post("/investments", h.handleInvest)
	r.Get("/investments", h.handleListInvestments)
	r.Get("/investments/{investmentID}", h.handleGetInvestment)
	r.Post("/investments/{investmentID}/withdraw", h.handleWithdraw)
	r.Get("/opportunities/{opportunityID}", h.handleGetOpportunity)
}

// RegisterAdmin mounts arbitrator-only funding routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/opportunities/{opportunityID}/reconciliation", h.handleReconcile)
}

type investRequest struct {
	OpportunityID string `json:"opportunity_id"`
	Amount        int64  `json:"amount"`
}

func (r *investRequest) Validate() error {
	if _, err := id.ParseOpportunityID(r.OpportunityID); err != nil {
		return err
	}
	if _, err := id.ParseMoney(r.Amount); err != nil {
		return err
	}
	return nil
}

type investmentResponse struct {
	InvestmentID   string `json:"investment_id"`
	OpportunityID  string `json:"opportunity_id"`
	Amount         int64  `json:"amount"`
	ExpectedReturn int64  `json:"expected_return"`
	MaturityDate   string `json:"maturity_date"`
	Status         string `json:"status"`
	Reference      string `json:"reference,omitempty"`
}

func investmentToResponse(inv funding.Investment, reference string) investmentResponse {
	return investmentResponse{
		InvestmentID:   inv.ID.String(),
		OpportunityID:  inv.OpportunityID.String(),
		Amount:         inv.Amount.Int64(),
		ExpectedReturn: inv.ExpectedReturn.Int64(),
		MaturityDate:   inv.MaturityDate.Format(time.RFC3339),
		Status:         string(inv.Status),
		Reference:      reference,
	}
}

func (h *Handler) handleInvest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[investRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	opportunityID, _ := id.ParseOpportunityID(req.OpportunityID)
	amount, _ := id.ParseMoney(req.Amount)

	result, err := h.funding.Invest(ctx, opportunityID, amount)
	if err != nil {
		h.writeServiceError(ctx, w, "invest failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, investmentToResponse(result.Investment, result.Transaction.Reference))
}

func (h *Handler) handleListInvestments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	investments, err := h.funding.ListInvestments(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list investments failed", err)
		return
	}
	out := make([]investmentResponse, 0, len(investments))
	for _, inv := range investments {
		out = append(out, investmentToResponse(inv, ""))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"investments": out})
}

func (h *Handler) handleGetInvestment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	investmentID, err := id.ParseInvestmentID(chi.URLParam(r, "investmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	inv, err := h.funding.GetInvestment(ctx, investmentID)
	if err != nil {
		h.writeServiceError(ctx, w, "get investment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, investmentToResponse(inv, ""))
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	investmentID, err := id.ParseInvestmentID(chi.URLParam(r, "investmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	txn, err := h.funding.Withdraw(ctx, investmentID)
	if err != nil {
		h.writeServiceError(ctx, w, "withdraw failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"transaction_id": txn.ID.String(),
		"type":           string(txn.Type),
		"amount":         txn.Amount.Int64(),
		"reference":      txn.Reference,
	})
}

func (h *Handler) handleGetOpportunity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	opportunityID, err := id.ParseOpportunityID(chi.URLParam(r, "opportunityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	opp, err := h.funding.GetOpportunity(ctx, opportunityID)
	if err != nil {
		h.writeServiceError(ctx, w, "get opportunity failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"opportunity_id": opp.ID.String(),
		"business_id":    opp.BusinessID.String(),
		"title":          opp.Title,
		"target_amount":  opp.TargetAmount.Int64(),
		"current_amount": opp.CurrentAmount.Int64(),
		"min_investment": opp.MinInvestment.Int64(),
		"max_investment": opp.MaxInvestment.Int64(),
		"status":         string(opp.Status),
	})
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	opportunityID, err := id.ParseOpportunityID(chi.URLParam(r, "opportunityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.reconciler.Check(ctx, opportunityID)
	if err != nil {
		h.writeServiceError(ctx, w, "reconciliation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}
