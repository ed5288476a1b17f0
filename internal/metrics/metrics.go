// Package metrics exposes Prometheus collectors for RPC traffic, APR runs and the HTTP adapter.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for RPC requests.
const (
	OutcomeOK        = "ok"
	OutcomeTransient = "transient"
	OutcomeOther     = "other"
)

// Collector holds every metric of the process. A nil *Collector is valid and records nothing.
type Collector struct {
	rpcRequests     *prometheus.CounterVec
	rpcAttempts     *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	apr             *prometheus.GaugeVec
	snapshotBlock   prometheus.Gauge
	poolsSkipped    prometheus.Gauge
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	circuitBreaker  prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collector {
	m := &Collector{
		rpcRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yyptp_rpc_requests_total",
				Help: "JSON-RPC requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		rpcAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yyptp_rpc_attempts_total",
				Help: "HTTP attempts issued for JSON-RPC requests, retries included",
			},
			[]string{"method"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yyptp_apr_runs_total",
				Help: "APR computations by status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "yyptp_apr_run_duration_seconds",
				Help:    "Duration of one APR computation",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		apr: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "yyptp_apr_percent",
				Help: "Last computed yyPTP APR in percent",
			},
			[]string{"variant"},
		),
		snapshotBlock: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "yyptp_snapshot_block",
				Help: "Block the last APR computation was pinned to",
			},
		),
		poolsSkipped: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "yyptp_pools_skipped",
				Help: "Pools excluded from the last APR computation",
			},
		),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yyptp_requests_total",
				Help: "Total number of adapter requests processed",
			},
			[]string{"status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yyptp_request_duration_seconds",
				Help:    "Adapter request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		circuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "yyptp_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
	}

	reg.MustRegister(
		m.rpcRequests,
		m.rpcAttempts,
		m.runs,
		m.runDuration,
		m.apr,
		m.snapshotBlock,
		m.poolsSkipped,
		m.requestCounter,
		m.requestDuration,
		m.circuitBreaker,
	)

	return m
}

// RPCAttempt counts one HTTP attempt for method.
func (m *Collector) RPCAttempt(method string) {
	if m == nil {
		return
	}
	m.rpcAttempts.WithLabelValues(method).Inc()
}

// RPCResult counts a finished JSON-RPC request.
func (m *Collector) RPCResult(method, outcome string) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
}

// RunFailed records a computation that returned an error.
func (m *Collector) RunFailed(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues("error").Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

// RunSucceeded records a completed computation and its figures.
func (m *Collector) RunSucceeded(elapsed time.Duration, block uint64, nominalPct, discountedPct float64, skipped int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues("success").Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.apr.WithLabelValues("nominal").Set(nominalPct)
	m.apr.WithLabelValues("discounted").Set(discountedPct)
	m.snapshotBlock.Set(float64(block))
	m.poolsSkipped.Set(float64(skipped))
}

// Request records one adapter request.
func (m *Collector) Request(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestCounter.WithLabelValues(status).Inc()
	m.requestDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// BreakerState publishes the circuit breaker state.
func (m *Collector) BreakerState(state int) {
	if m == nil {
		return
	}
	m.circuitBreaker.Set(float64(state))
}
