package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the escrow module.
type Metrics struct {
	// State transitions by target status
	Transitions *prometheus.CounterVec

	// Payment confirmation outcomes: confirmed, failed, gateway_error,
	// amount_mismatch, idempotent
	ConfirmOutcome *prometheus.CounterVec

	// Gateway confirmation round-trip latency
	GatewayLatency prometheus.Histogram

	// Escrows currently holding funds
	HeldFunds prometheus.Gauge
}

// New creates a new Metrics instance with all escrow module metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "investhub_escrow_transitions_total",
			Help: "Escrow state transitions by target status",
		}, []string{"to"}),

		ConfirmOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "investhub_escrow_confirmations_total",
			Help: "Payment confirmation outcomes",
		}, []string{"outcome"}),

		GatewayLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "investhub_escrow_gateway_duration_seconds",
			Help:    "Payment gateway confirmation round-trip duration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		HeldFunds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "investhub_escrow_held_amount",
			Help: "Total amount currently held in funded escrows, minor units",
		}),
	}
}

// IncrementTransition records a successful state transition.
func (m *Metrics) IncrementTransition(to string) {
	if m != nil {
		m.Transitions.WithLabelValues(to).Inc()
	}
}

// IncrementConfirmOutcome records one confirmation attempt's outcome.
func (m *Metrics) IncrementConfirmOutcome(outcome string) {
	if m != nil {
		m.ConfirmOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveGatewayLatency records one gateway round trip.
func (m *Metrics) ObserveGatewayLatency(d time.Duration) {
	if m != nil {
		m.GatewayLatency.Observe(d.Seconds())
	}
}

// AddHeld moves the held-funds gauge by delta minor units.
func (m *Metrics) AddHeld(delta int64) {
	if m != nil {
		m.HeldFunds.Add(float64(delta))
	}
}
