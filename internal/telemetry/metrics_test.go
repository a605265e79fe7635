package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRegistryExposesMetricsOverHandler(t *testing.T) {
	reg := NewRegistry()
	reg.ObserveJobDuration("lifecycle_sweep", "success", 1.25)
	reg.ObserveRPCLatency("eth_getLogs", "ok", 42)
	reg.SetCacheHitRatio(0.87)
	reg.RecordLockContention("lifecycle_sweep")
	reg.SetSignalsByState(map[string]int{"active": 3, "decayed": 1})
	reg.RecordDecisionBlocked([]string{"coverage_below_minimum", "evidence_below_minimum"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("handler status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"pulse_job_duration_seconds",
		"pulse_chain_rpc_latency_ms",
		"pulse_cache_hit_ratio 0.87",
		"pulse_job_lock_contention_total",
		"pulse_signals_by_lifecycle_state",
		"pulse_decisions_blocked_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics body missing %q", want)
		}
	}
}

func TestObserveJobDurationCountsFailures(t *testing.T) {
	reg := NewRegistry()
	reg.ObserveJobDuration("snapshot_build", "error", 0.5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `pulse_job_failures_total{job="snapshot_build"} 1`) {
		t.Errorf("expected one failure recorded for snapshot_build, got: %s", rec.Body.String())
	}
}
