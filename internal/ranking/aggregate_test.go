package ranking

import (
	"testing"
	"time"

	"github.com/sentrychain/pulse/internal/lifecycle"
	"github.com/sentrychain/pulse/internal/store"
)

func TestAggregateProducesPositiveEvidenceForActiveSignals(t *testing.T) {
	now := time.Now().UTC()
	signals := []store.Signal{
		{ID: "s1", Type: "NEW_BRIDGE", Confidence: 90, Direction: "inflow", LifecycleState: lifecycle.StateActive, LastTriggeredAt: now},
		{ID: "s2", Type: "DENSITY_SPIKE", Confidence: 85, Direction: "inflow", LifecycleState: lifecycle.StateActive, LastTriggeredAt: now},
	}
	in := AggregateInput{
		SubjectKind: "entity", SubjectID: "e1", Window: "1h",
		Signals: signals, Coverage: 75, ClusterPassRate: 80, PenaltyRate: 5, Now: now,
	}

	result, trace := Aggregate(in)

	if result.Evidence <= 0 {
		t.Errorf("Evidence = %v, want > 0", result.Evidence)
	}
	if result.Direction <= 0 {
		t.Errorf("Direction = %v, want > 0 for all-inflow signals", result.Direction)
	}
	if result.ActiveSignals != 2 {
		t.Errorf("ActiveSignals = %d, want 2", result.ActiveSignals)
	}
	if trace.ScoreRaw <= 0 {
		t.Errorf("ScoreRaw = %v, want > 0", trace.ScoreRaw)
	}
	if result.RankTraceJSON == "" {
		t.Error("expected RankTraceJSON to be populated")
	}
}

func TestAggregateNoSignalsYieldsZeroEvidence(t *testing.T) {
	result, _ := Aggregate(AggregateInput{SubjectKind: "entity", SubjectID: "e2", Window: "1h", Now: time.Now().UTC()})
	if result.Evidence != 0 {
		t.Errorf("Evidence = %v, want 0 with no signals", result.Evidence)
	}
	if result.Bucket != "NEUTRAL" {
		t.Errorf("Bucket = %s, want NEUTRAL", result.Bucket)
	}
}

func TestFreshnessFactorDecaysLinearly(t *testing.T) {
	if got := freshnessFactor(0); got != 1.0 {
		t.Errorf("freshnessFactor(0) = %v, want 1.0", got)
	}
	if got := freshnessFactor(72); got != 0.5 {
		t.Errorf("freshnessFactor(72) = %v, want 0.5", got)
	}
	if got := freshnessFactor(36); got != 0.75 {
		t.Errorf("freshnessFactor(36) = %v, want 0.75", got)
	}
	if got := freshnessFactor(200); got != 0.5 {
		t.Errorf("freshnessFactor(200) = %v, want floored at 0.5", got)
	}
}

func TestComputeRiskRewardsHighClusterPassRate(t *testing.T) {
	low := computeRisk(10, 90)
	high := computeRisk(10, 20)
	if low >= high {
		t.Errorf("risk with high cluster pass rate (%v) should be lower than with low (%v)", low, high)
	}
}
