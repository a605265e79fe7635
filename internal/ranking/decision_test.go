package ranking

import (
	"testing"
	"time"

	"github.com/sentrychain/pulse/internal/store"
)

func TestDecideBlocksOnLowCoverage(t *testing.T) {
	in := GateInput{
		Ranking: store.RankingResult{Coverage: 58, Evidence: 72, Risk: 45, Direction: 35},
		EngineStatus: EngineStatusOK,
		Now:          time.Now().UTC(),
	}
	d := Decide(in, DefaultGateThresholds())

	if d.DecisionType != "NEUTRAL" || d.ConfidenceBand != "LOW" {
		t.Fatalf("got %s/%s, want NEUTRAL/LOW", d.DecisionType, d.ConfidenceBand)
	}
	if len(d.Reasons) != 1 || d.Reasons[0] != "low_coverage" {
		t.Errorf("Reasons = %v, want [low_coverage]", d.Reasons)
	}
}

func TestDecideBuysOnStrongPositiveDirection(t *testing.T) {
	in := GateInput{
		Ranking:      store.RankingResult{Coverage: 75, Evidence: 82, Risk: 40, Direction: 45},
		EngineStatus: EngineStatusOK,
		Now:          time.Now().UTC(),
	}
	d := Decide(in, DefaultGateThresholds())

	if d.DecisionType != "BUY" || d.ConfidenceBand != "HIGH" {
		t.Fatalf("got %s/%s, want BUY/HIGH", d.DecisionType, d.ConfidenceBand)
	}
	if d.Blocked || len(d.Reasons) != 0 {
		t.Errorf("expected unblocked decision with no reasons, got blocked=%v reasons=%v", d.Blocked, d.Reasons)
	}
}

func TestDecideSellsOnStrongNegativeDirection(t *testing.T) {
	in := GateInput{
		Ranking:      store.RankingResult{Coverage: 70, Evidence: 70, Risk: 30, Direction: -40},
		EngineStatus: EngineStatusOK,
		Now:          time.Now().UTC(),
	}
	d := Decide(in, DefaultGateThresholds())
	if d.DecisionType != "SELL" {
		t.Fatalf("DecisionType = %s, want SELL", d.DecisionType)
	}
}

func TestDecideWeakDirectionStaysNeutralUnblocked(t *testing.T) {
	in := GateInput{
		Ranking:      store.RankingResult{Coverage: 70, Evidence: 70, Risk: 30, Direction: 5},
		EngineStatus: EngineStatusOK,
		Now:          time.Now().UTC(),
	}
	d := Decide(in, DefaultGateThresholds())
	if d.DecisionType != "NEUTRAL" || d.Blocked {
		t.Fatalf("got type=%s blocked=%v, want NEUTRAL unblocked", d.DecisionType, d.Blocked)
	}
	if len(d.Reasons) != 1 || d.Reasons[0] != "weak_direction" {
		t.Errorf("Reasons = %v, want [weak_direction]", d.Reasons)
	}
}

func TestDecideCriticalDriftBlocks(t *testing.T) {
	in := GateInput{
		Ranking:      store.RankingResult{Coverage: 80, Evidence: 80, Risk: 10, Direction: 50},
		EngineStatus: EngineStatusOK,
		DriftFlags:   []string{"liquidity_collapse"},
		Now:          time.Now().UTC(),
	}
	d := Decide(in, DefaultGateThresholds())
	if !d.Blocked {
		t.Fatal("expected critical drift to block the decision")
	}
	found := false
	for _, r := range d.Reasons {
		if r == "critical_drift" {
			found = true
		}
	}
	if !found {
		t.Errorf("Reasons = %v, want critical_drift present", d.Reasons)
	}
}

func TestDecideAccumulatesMultipleReasons(t *testing.T) {
	in := GateInput{
		Ranking:      store.RankingResult{Coverage: 40, Evidence: 50, Risk: 70, Direction: 0},
		EngineStatus: EngineStatusProtectionMode,
		Now:          time.Now().UTC(),
	}
	d := Decide(in, DefaultGateThresholds())
	if len(d.Reasons) != 4 {
		t.Fatalf("Reasons = %v, want 4 entries", d.Reasons)
	}
}
