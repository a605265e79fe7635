package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every Prometheus collector the pipeline records
// against, generalized from the teacher's MetricsRegistry (exchange
// step/cache/WS-latency metrics) to chain-RPC calls, job runs, lock
// contention, and signal lifecycle mix. It owns a private
// prometheus.Registry rather than registering against the global
// DefaultRegisterer, consistent with this tree's no-singletons design.
type Registry struct {
	reg *prometheus.Registry

	JobDuration     *prometheus.HistogramVec
	JobFailures     *prometheus.CounterVec
	LockContention  *prometheus.CounterVec
	RPCLatency      *prometheus.HistogramVec
	CacheHitRatio   prometheus.Gauge
	SignalsByState  *prometheus.GaugeVec
	DecisionsBlocked *prometheus.CounterVec
}

// NewRegistry builds and registers every collector.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,

		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_job_duration_seconds",
				Help:    "Duration of each orchestrator job run in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"job", "result"},
		),
		JobFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_job_failures_total",
				Help: "Total number of failed orchestrator job runs by job name",
			},
			[]string{"job"},
		),
		LockContention: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_job_lock_contention_total",
				Help: "Total number of job-lock acquisitions that found the lock already held",
			},
			[]string{"job"},
		),
		RPCLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_chain_rpc_latency_ms",
				Help:    "Chain RPC call latency in milliseconds",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"method", "result"},
		),
		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pulse_cache_hit_ratio",
				Help: "Current tiered-cache hit ratio across both tiers (0.0 to 1.0)",
			},
		),
		SignalsByState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulse_signals_by_lifecycle_state",
				Help: "Count of currently tracked signals by lifecycle state",
			},
			[]string{"state"},
		),
		DecisionsBlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_decisions_blocked_total",
				Help: "Total number of blocked decisions by gate reason",
			},
			[]string{"reason"},
		),
	}

	reg.MustRegister(
		r.JobDuration, r.JobFailures, r.LockContention,
		r.RPCLatency, r.CacheHitRatio, r.SignalsByState, r.DecisionsBlocked,
	)
	return r
}

// Handler exposes the registry's collectors over /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveJobDuration records one job run's duration and outcome.
func (r *Registry) ObserveJobDuration(job, result string, seconds float64) {
	r.JobDuration.WithLabelValues(job, result).Observe(seconds)
	if result != "success" {
		r.JobFailures.WithLabelValues(job).Inc()
	}
}

// RecordLockContention records one job's lock acquisition finding the
// lock already held by another owner.
func (r *Registry) RecordLockContention(job string) {
	r.LockContention.WithLabelValues(job).Inc()
}

// ObserveRPCLatency records one chain-RPC call's latency and outcome.
func (r *Registry) ObserveRPCLatency(method, result string, milliseconds float64) {
	r.RPCLatency.WithLabelValues(method, result).Observe(milliseconds)
}

// SetCacheHitRatio updates the tiered-cache hit ratio gauge.
func (r *Registry) SetCacheHitRatio(ratio float64) {
	r.CacheHitRatio.Set(ratio)
}

// SetSignalsByState replaces the lifecycle-state gauge vec with counts.
func (r *Registry) SetSignalsByState(counts map[string]int) {
	for state, count := range counts {
		r.SignalsByState.WithLabelValues(state).Set(float64(count))
	}
}

// RecordDecisionBlocked increments the blocked-decision counter for
// every reason a gate cascade recorded.
func (r *Registry) RecordDecisionBlocked(reasons []string) {
	for _, reason := range reasons {
		r.DecisionsBlocked.WithLabelValues(reason).Inc()
	}
}
