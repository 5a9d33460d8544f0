package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Allan-Afari/investghanahub-sub000/internal/dispute"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/httputil"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

// Service defines the dispute operations the handler exposes.
type Service interface {
	Raise(ctx context.Context, escrowID id.EscrowID, reason string) (dispute.Dispute, error)
	RaiseByReference(ctx context.Context, reference, reason string) (dispute.Dispute, error)
	Resolve(ctx context.Context, disputeID id.DisputeID, resolution dispute.Resolution, note string) (dispute.Dispute, error)
	Get(ctx context.Context, disputeID id.DisputeID) (dispute.Dispute, error)
	ListOpen(ctx context.Context, limit int) ([]dispute.Dispute, error)
}

type Handler struct {
	disputes Service
	logger   *slog.Logger
}

func New(disputes Service, logger *slog.Logger) *Handler {
	return &Handler{disputes: disputes, logger: logger}
}

// Register mounts dispute routes reachable by escrow parties.
func (h *Handler) Register(r chi.Router) {
	r.Post("/disputes", h.handleRaise)
	r.Get("/disputes/{disputeID}", h.handleGet)
}

// RegisterAdmin mounts the arbitration routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/disputes", h.handleListOpen)
	r.Post("/disputes/{disputeID}/resolve", h.handleResolve)
}

type raiseRequest struct {
	EscrowID         string `json:"escrow_id,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`
	Reason           string `json:"reason"`
}

func (r *raiseRequest) Validate() error {
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "a dispute needs a reason")
	}
	if (r.EscrowID == "") == (r.PaymentReference == "") {
		return dErrors.New(dErrors.CodeInvalidInput, "exactly one of escrow_id or payment_reference is required")
	}
	return nil
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
	Note       string `json:"note"`
}

func (r *resolveRequest) Validate() error {
	_, err := dispute.ParseResolution(r.Resolution)
	return err
}

type disputeResponse struct {
	DisputeID  string `json:"dispute_id"`
	EscrowID   string `json:"escrow_id,omitempty"`
	PaymentRef string `json:"payment_reference,omitempty"`
	RaisedBy   string `json:"raised_by"`
	Reason     string `json:"reason"`
	Status     string `json:"status"`
	Resolution string `json:"resolution,omitempty"`
	Note       string `json:"note,omitempty"`
	CreatedAt  string `json:"created_at"`
	ResolvedAt string `json:"resolved_at,omitempty"`
}

func toResponse(d dispute.Dispute) disputeResponse {
	resp := disputeResponse{
		DisputeID:  d.ID.String(),
		EscrowID:   d.EscrowID.String(),
		PaymentRef: d.PaymentRef,
		RaisedBy:   d.RaisedBy.String(),
		Reason:     d.Reason,
		Status:     string(d.Status),
		Resolution: string(d.Resolution),
		Note:       d.ResolutionNote,
		CreatedAt:  d.CreatedAt.Format(time.RFC3339),
	}
	if d.ResolvedAt != nil {
		resp.ResolvedAt = d.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) handleRaise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[raiseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	var (
		d   dispute.Dispute
		err error
	)
	if req.EscrowID != "" {
		var escrowID id.EscrowID
		escrowID, err = id.ParseEscrowID(req.EscrowID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		d, err = h.disputes.Raise(ctx, escrowID, req.Reason)
	} else {
		d, err = h.disputes.RaiseByReference(ctx, req.PaymentReference, req.Reason)
	}
	if err != nil {
		h.writeServiceError(ctx, w, "raise dispute failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(d))
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	disputeID, err := id.ParseDisputeID(chi.URLParam(r, "disputeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[resolveRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	resolution, _ := dispute.ParseResolution(req.Resolution)

	d, err := h.disputes.Resolve(ctx, disputeID, resolution, req.Note)
	if err != nil {
		h.writeServiceError(ctx, w, "resolve dispute failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(d))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	disputeID, err := id.ParseDisputeID(chi.URLParam(r, "disputeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.disputes.Get(ctx, disputeID)
	if err != nil {
		h.writeServiceError(ctx, w, "get dispute failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(d))
}

func (h *Handler) handleListOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	disputes, err := h.disputes.ListOpen(ctx, 50)
	if err != nil {
		h.writeServiceError(ctx, w, "list disputes failed", err)
		return
	}
	out := make([]disputeResponse, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, toResponse(d))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"disputes": out})
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
