package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the funding module.
type Metrics struct {
	// Investment attempts by outcome: accepted, cap_exceeded, gate_denied,
	// validation_failed, error
	InvestmentOutcome *prometheus.CounterVec

	// Amounts accepted, in minor units
	InvestedAmount prometheus.Counter

	// Gate verdicts by gate and verdict
	GateVerdict *prometheus.CounterVec

	// Full invest operation latency
	InvestLatency prometheus.Histogram

	// Reference collisions caught by the ledger's unique constraint
	ReferenceRetries prometheus.Counter
}

// New creates a new Metrics instance with all funding module metrics registered.
func New() *Metrics {
	return &Metrics{
		InvestmentOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "investhub_funding_investments_total",
			Help: "Total investment attempts by outcome",
		}, []string{"outcome"}),

		InvestedAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "investhub_funding_invested_amount_total",
			Help: "Total accepted investment amounts in minor units",
		}),

		GateVerdict: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "investhub_funding_gate_verdicts_total",
			Help: "Gate verdicts by gate and verdict",
		}, []string{"gate", "verdict"}),

		InvestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "investhub_funding_invest_duration_seconds",
			Help:    "Duration of the full invest operation including gate checks",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		ReferenceRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "investhub_funding_reference_retries_total",
			Help: "Ledger reference collisions that triggered a retry",
		}),
	}
}

// IncrementOutcome records the outcome of one investment attempt.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.InvestmentOutcome.WithLabelValues(outcome).Inc()
	}
}

// AddInvested records an accepted amount in minor units.
func (m *Metrics) AddInvested(minorUnits int64) {
	if m != nil {
		m.InvestedAmount.Add(float64(minorUnits))
	}
}

// IncrementGateVerdict records a gate's verdict.
func (m *Metrics) IncrementGateVerdict(gate, verdict string) {
	if m != nil {
		m.GateVerdict.WithLabelValues(gate, verdict).Inc()
	}
}

// ObserveInvestLatency records the duration of a full invest operation.
func (m *Metrics) ObserveInvestLatency(d time.Duration) {
	if m != nil {
		m.InvestLatency.Observe(d.Seconds())
	}
}

// IncrementReferenceRetry records one reference collision retry.
func (m *Metrics) IncrementReferenceRetry() {
	if m != nil {
		m.ReferenceRetries.Inc()
	}
}
