package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transfer metrics
	Transfers        *prometheus.CounterVec
	TransferDuration *prometheus.HistogramVec

	// Transaction handle metrics
	HandlesOpen   prometheus.Gauge
	HandlesClosed *prometheus.CounterVec
	EngineErrors  *prometheus.CounterVec

	// Authentication metrics
	AuthAttempts *prometheus.CounterVec

	// Idempotency metrics
	IdempotentReplays prometheus.Counter
}

// New creates all Prometheus metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Transfer metrics
		Transfers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankito_transfers_total",
				Help: "Total transfers by scenario and outcome",
			},
			[]string{"scenario", "outcome"},
		),
		TransferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bankito_transfer_duration_seconds",
				Help:    "Duration of transfers, lock waits and pauses included",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"scenario"},
		),

		// Transaction handle metrics
		HandlesOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bankito_tx_handles_open",
			Help: "Transaction handles currently open",
		}),
		HandlesClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankito_tx_handles_closed_total",
				Help: "Transaction handles closed by outcome",
			},
			[]string{"outcome"},
		),
		EngineErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankito_engine_errors_total",
				Help: "Storage engine failures by operation",
			},
			[]string{"op", "retryable"},
		),

		// Authentication metrics
		AuthAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankito_auth_attempts_total",
				Help: "Total login attempts",
			},
			[]string{"status"},
		),

		// Idempotency metrics
		IdempotentReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankito_idempotent_replays_total",
			Help: "Transfer requests answered from a stored response",
		}),
	}
}

// ObserveTransfer records one transfer outcome.
func (m *Metrics) ObserveTransfer(scenario, outcome string, elapsed time.Duration) {
	m.Transfers.WithLabelValues(scenario, outcome).Inc()
	m.TransferDuration.WithLabelValues(scenario).Observe(elapsed.Seconds())
}

// HandleOpened records a begun transaction.
func (m *Metrics) HandleOpened() {
	m.HandlesOpen.Inc()
}

// HandleClosed records a committed, cancelled or failed transaction.
func (m *Metrics) HandleClosed(outcome string) {
	m.HandlesOpen.Dec()
	m.HandlesClosed.WithLabelValues(outcome).Inc()
}

// EngineFailure records a storage engine failure.
func (m *Metrics) EngineFailure(op string, retryable bool) {
	m.EngineErrors.WithLabelValues(op, strconv.FormatBool(retryable)).Inc()
}

// LoginAttempt records a login by result.
func (m *Metrics) LoginAttempt(ok bool) {
	status := "failure"
	if ok {
		status = "success"
	}
	m.AuthAttempts.WithLabelValues(status).Inc()
}

// IdempotentReplay records a response served from the idempotency store.
func (m *Metrics) IdempotentReplay() {
	m.IdempotentReplays.Inc()
}
