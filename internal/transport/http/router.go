// Package httptransport assembles the engine's HTTP surface: public probes,
// authenticated funding and escrow routes, and the arbitrator-only admin
// routes, all behind a shared middleware chain.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	disputehandler "github.com/Allan-Afari/investghanahub-sub000/internal/dispute/handler"
	escrowhandler "github.com/Allan-Afari/investghanahub-sub000/internal/escrow/handler"
	fundinghandler "github.com/Allan-Afari/investghanahub-sub000/internal/funding/handler"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/httputil"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/middleware/auth"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/middleware/metadata"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/middleware/requestid"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/middleware/requesttime"
)

// HealthChecker reports readiness of one dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps collects everything the router mounts.
type Deps struct {
	Funding   *fundinghandler.Handler
	Escrow    *escrowhandler.Handler
	Dispute   *disputehandler.Handler
	Validator auth.TokenValidator
	Logger    *slog.Logger
	Health    map[string]HealthChecker
}

// NewRouter builds the full route tree.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Validator, deps.Logger))
		deps.Funding.Register(r)
		deps.Escrow.Register(r)
		deps.Dispute.Register(r)

		// Arbitrator-only surface.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(deps.Logger))
			deps.Funding.RegisterAdmin(r)
			deps.Escrow.RegisterAdmin(r)
			deps.Dispute.RegisterAdmin(r)
		})
	})

	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
