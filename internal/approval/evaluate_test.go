package approval

import (
	"testing"
	"time"

	"github.com/sentrychain/pulse/internal/store"
)

func baseAgg() store.WindowAggregate {
	return store.WindowAggregate{
		Chain:       "ethereum",
		Token:       "USDC",
		Window:      "1h",
		WindowStart: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 7, 31, 1, 0, 0, 0, time.UTC),
	}
}

func TestEvaluateApprovedWhenClean(t *testing.T) {
	agg := baseAgg()
	agg.EventCount = 10
	agg.UniqueActors = 6
	agg.InflowAmount = "1000"
	agg.OutflowAmount = "1000"

	verdict := Evaluate(RuleContext{Current: agg, Th: DefaultThresholds()})
	if verdict.Verdict != VerdictApproved {
		t.Fatalf("verdict = %s, want APPROVED (penalty=%d, rules=%v)", verdict.Verdict, verdict.TotalPenalty, verdict.TriggeredRules)
	}
}

// S2 from the supplemented examples: eventCount=60, uniqueActors derived
// from 1 sender + 0 receivers folding to 1 unique actor, zero volume ->
// ActorCoverage fires at penalty 55, total 55 -> QUARANTINED.
func TestEvaluateQuarantineOnActorCoverage(t *testing.T) {
	agg := baseAgg()
	agg.EventCount = 60
	agg.UniqueSenders = 1
	agg.UniqueReceivers = 0
	agg.UniqueActors = 1
	agg.InflowAmount = "0"
	agg.OutflowAmount = "0"

	verdict := Evaluate(RuleContext{Current: agg, Th: DefaultThresholds()})
	if verdict.Verdict != VerdictQuarantined {
		t.Fatalf("verdict = %s, want QUARANTINED", verdict.Verdict)
	}
	if verdict.TotalPenalty != 55 {
		t.Errorf("TotalPenalty = %d, want 55", verdict.TotalPenalty)
	}
}

func TestEvaluateRejectsOnNegativeAmount(t *testing.T) {
	agg := baseAgg()
	agg.EventCount = 3
	agg.UniqueActors = 3
	agg.InflowAmount = "-5"
	agg.OutflowAmount = "0"

	verdict := Evaluate(RuleContext{Current: agg, Th: DefaultThresholds()})
	if verdict.Verdict != VerdictRejected {
		t.Fatalf("verdict = %s, want REJECTED", verdict.Verdict)
	}
}

// ActorCoverage fires at penalty 60 for events with zero actors; no other
// rule fires, so the total of 60 falls in the QUARANTINED band.
func TestEvaluateQuarantinesOnZeroActorsWithEvents(t *testing.T) {
	agg := baseAgg()
	agg.EventCount = 5
	agg.UniqueActors = 0
	agg.InflowAmount = "10"
	agg.OutflowAmount = "10"

	verdict := Evaluate(RuleContext{Current: agg, Th: DefaultThresholds()})
	if verdict.Verdict != VerdictQuarantined {
		t.Fatalf("verdict = %s, want QUARANTINED (penalty=%d)", verdict.Verdict, verdict.TotalPenalty)
	}
}

func TestActivityShapeFlagsBurstyIdenticalSizes(t *testing.T) {
	events := make([]store.RawEvent, 10)
	for i := range events {
		events[i] = store.RawEvent{From: "a", To: "b", Amount: "1000"}
	}
	agg := baseAgg()
	agg.EventCount = 10
	agg.UniqueActors = 2
	agg.InflowAmount = "10000"
	agg.OutflowAmount = "10000"

	verdict := Evaluate(RuleContext{Current: agg, Events: events, Th: DefaultThresholds()})
	found := false
	for _, r := range verdict.TriggeredRules {
		if r.Name == "ActivityShape" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ActivityShape to fire on all-identical-size burst, got %v", verdict.TriggeredRules)
	}
}

func TestFlowContinuityFiresOnLargeGap(t *testing.T) {
	prev := baseAgg()
	prev.InflowAmount = "1000"
	prev.OutflowAmount = "1000"

	cur := baseAgg()
	cur.EventCount = 5
	cur.UniqueActors = 3
	cur.InflowAmount = "100"
	cur.OutflowAmount = "100"

	verdict := Evaluate(RuleContext{Current: cur, Previous: &prev, Th: DefaultThresholds()})
	found := false
	for _, r := range verdict.TriggeredRules {
		if r.Name == "FlowContinuity" {
			found = true
			if r.Penalty <= 0 || r.Penalty > 30 {
				t.Errorf("FlowContinuity penalty = %d, want (0,30]", r.Penalty)
			}
		}
	}
	if !found {
		t.Errorf("expected FlowContinuity to fire on a 90%% volume drop, got %v", verdict.TriggeredRules)
	}
}
