package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Allan-Afari/investghanahub-sub000/internal/escrow"
	"github.com/Allan-Afari/investghanahub-sub000/internal/escrow/service"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/httputil"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

// Service defines the escrow operations the handler exposes.
type Service interface {
	Create(ctx context.Context, p service.CreateParams) (escrow.Escrow, error)
	InitiatePayment(ctx context.Context, escrowID id.EscrowID) (escrow.Escrow, error)
	ConfirmPayment(ctx context.Context, escrowID id.EscrowID, reference string) (escrow.Escrow, error)
	Release(ctx context.Context, escrowID id.EscrowID, reason string, documents []string) (escrow.Escrow, error)
	Refund(ctx context.Context, escrowID id.EscrowID, reason string, amount id.Money) (escrow.Escrow, error)
	Get(ctx context.Context, escrowID id.EscrowID) (escrow.Escrow, error)
}

type Handler struct {
	escrows Service
	logger  *slog.Logger
}

func New(escrows Service, logger *slog.Logger) *Handler {
	return &Handler{escrows: escrows, logger: logger}
}

// Register mounts the escrow routes on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/escrows", h.handleCreate)
	r.Get("/escrows/{escrowID}", h.handleGet)
	r.Post("/escrows/{escrowID}/initiate", h.handleInitiate)
	r.Post("/escrows/{escrowID}/confirm", h.handleConfirm)
}

// RegisterAdmin mounts arbitrator-only escrow routes. Settlement releases
// held funds, so neither party gets a route for it.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/escrows/{escrowID}/release", h.handleRelease)
	r.Post("/escrows/{escrowID}/refund", h.handleRefund)
}

type createRequest struct {
	InvestmentID string   `json:"investment_id"`
	Conditions   []string `json:"conditions,omitempty"`
	ReleaseOn    string   `json:"release_on,omitempty"`
}

func (r *createRequest) Validate() error {
	if _, err := id.ParseInvestmentID(r.InvestmentID); err != nil {
		return err
	}
	if r.ReleaseOn != "" {
		if _, err := time.Parse(time.RFC3339, r.ReleaseOn); err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "release_on must be RFC 3339")
		}
	}
	return nil
}

type escrowResponse struct {
	EscrowID         string   `json:"escrow_id"`
	InvestmentID     string   `json:"investment_id"`
	Amount           int64    `json:"amount"`
	Status           string   `json:"status"`
	Conditions       []string `json:"conditions,omitempty"`
	ReleaseOn        string   `json:"release_on,omitempty"`
	PaymentReference string   `json:"payment_reference,omitempty"`
	FailedAttempts   int      `json:"failed_attempts,omitempty"`
	FundedAt         string   `json:"funded_at,omitempty"`
	ClosedAt         string   `json:"closed_at,omitempty"`
}

func toResponse(e escrow.Escrow) escrowResponse {
	resp := escrowResponse{
		EscrowID:         e.ID.String(),
		InvestmentID:     e.InvestmentID.String(),
		Amount:           e.Amount.Int64(),
		Status:           string(e.Status),
		Conditions:       e.Conditions,
		PaymentReference: e.PaymentReference,
		FailedAttempts:   e.FailedAttempts,
	}
	if e.ReleaseOn != nil {
		resp.ReleaseOn = e.ReleaseOn.Format(time.RFC3339)
	}
	if e.FundedAt != nil {
		resp.FundedAt = e.FundedAt.Format(time.RFC3339)
	}
	if e.ClosedAt != nil {
		resp.ClosedAt = e.ClosedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	investmentID, _ := id.ParseInvestmentID(req.InvestmentID)
	params := service.CreateParams{
		InvestmentID: investmentID,
		Conditions:   req.Conditions,
	}
	if req.ReleaseOn != "" {
		releaseOn, _ := time.Parse(time.RFC3339, req.ReleaseOn)
		params.ReleaseOn = &releaseOn
	}

	e, err := h.escrows.Create(ctx, params)
	if err != nil {
		h.writeServiceError(ctx, w, "create escrow failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(e))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, http.StatusOK, h.escrows.Get, "get escrow failed")
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, http.StatusOK, h.escrows.InitiatePayment, "initiate payment failed")
}

type confirmRequest struct {
	PaymentReference string `json:"payment_reference"`
}

// handleConfirm accepts an optional body so both a bare client retry and a
// gateway callback carrying its reference land on the same route.
func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "escrowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req confirmRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed JSON body"))
		return
	}

	e, err := h.escrows.ConfirmPayment(ctx, escrowID, req.PaymentReference)
	if err != nil {
		h.writeServiceError(ctx, w, "confirm payment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(e))
}

type releaseRequest struct {
	Reason    string   `json:"reason"`
	Documents []string `json:"documents,omitempty"`
}

func (r *releaseRequest) Validate() error {
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "a release needs a reason")
	}
	return nil
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "escrowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[releaseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	e, err := h.escrows.Release(ctx, escrowID, req.Reason, req.Documents)
	if err != nil {
		h.writeServiceError(ctx, w, "release escrow failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(e))
}

type refundRequest struct {
	Reason string `json:"reason"`
	// Amount is optional; zero refunds the full escrow.
	Amount int64 `json:"amount,omitempty"`
}

func (r *refundRequest) Validate() error {
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "a refund needs a reason")
	}
	if r.Amount < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "refund amount cannot be negative")
	}
	return nil
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "escrowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[refundRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	e, err := h.escrows.Refund(ctx, escrowID, req.Reason, id.Money(req.Amount))
	if err != nil {
		h.writeServiceError(ctx, w, "refund escrow failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(e))
}

// act parses the escrow ID from the path and runs one service operation.
func (h *Handler) act(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	op func(context.Context, id.EscrowID) (escrow.Escrow, error),
	failMsg string,
) {
	ctx := r.Context()
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "escrowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := op(ctx, escrowID)
	if err != nil {
		h.writeServiceError(ctx, w, failMsg, err)
		return
	}
	httputil.WriteJSON(w, status, toResponse(e))
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
