package signalengine

import (
	"testing"
	"time"

	"github.com/sentrychain/pulse/internal/store"
)

func TestNewCorridorDetectorFiresOnFirstAppearance(t *testing.T) {
	cur := &store.Snapshot{
		Edges: []store.Edge{{FromActorID: "A", ToActorID: "B", FlowUSD: 50_000, EventCount: 5}},
		Stats: store.SnapshotStats{TotalFlowUSD: 50_000},
	}
	th := DefaultThresholds()["1h"]

	sigs, errs := NewCorridorDetector{}.Detect(cur, nil, "1h", th, time.Now())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	if sigs[0].Type != "NEW_CORRIDOR" {
		t.Errorf("Type = %s, want NEW_CORRIDOR", sigs[0].Type)
	}
}

func TestNewCorridorDetectorSkipsExistingCorridor(t *testing.T) {
	edge := store.Edge{FromActorID: "A", ToActorID: "B", FlowUSD: 50_000, EventCount: 5}
	cur := &store.Snapshot{Edges: []store.Edge{edge}, Stats: store.SnapshotStats{TotalFlowUSD: 50_000}}
	prev := &store.Snapshot{Edges: []store.Edge{edge}}
	th := DefaultThresholds()["1h"]

	sigs, _ := NewCorridorDetector{}.Detect(cur, prev, "1h", th, time.Now())
	if len(sigs) != 0 {
		t.Errorf("expected no signal for a corridor seen in the previous snapshot, got %d", len(sigs))
	}
}

func TestDensitySpikeDetectorFiresOnRatio(t *testing.T) {
	prev := &store.Snapshot{Edges: []store.Edge{{FromActorID: "A", ToActorID: "B", FlowUSD: 10_000}}}
	cur := &store.Snapshot{Edges: []store.Edge{{FromActorID: "A", ToActorID: "B", FlowUSD: 50_000}}}
	th := DefaultThresholds()["1h"]

	sigs, _ := DensitySpikeDetector{}.Detect(cur, prev, "1h", th, time.Now())
	if len(sigs) != 1 {
		t.Fatalf("expected 1 density spike signal, got %d", len(sigs))
	}
}

func TestDirectionImbalanceDetectorFiresOnSkew(t *testing.T) {
	// B receives far more from A than it returns: B's own flow is
	// lopsided even though the two-node graph's net is 0 overall (every
	// edge credits one actor and debits the other by the same amount).
	cur := &store.Snapshot{
		Edges: []store.Edge{
			{FromActorID: "A", ToActorID: "B", FlowUSD: 90_000},
			{FromActorID: "B", ToActorID: "A", FlowUSD: 10_000},
		},
		Actors: []store.Actor{
			{ActorID: "A", NetFlowUSD: -80_000},
			{ActorID: "B", NetFlowUSD: 80_000},
		},
	}
	th := DefaultThresholds()["1h"]

	sigs, _ := DirectionImbalanceDetector{}.Detect(cur, nil, "1h", th, time.Now())

	var bSignal *store.Signal
	for i := range sigs {
		if sigs[i].PrimaryActorID == "B" {
			bSignal = &sigs[i]
		}
	}
	if bSignal == nil {
		t.Fatalf("expected a DIRECTION_IMBALANCE signal for actor B, got %d signals: %v", len(sigs), sigs)
	}
	if bSignal.Direction != "inflow" {
		t.Errorf("Direction = %s, want inflow", bSignal.Direction)
	}
}

func TestClusterReconfigurationFiresOnHighDelta(t *testing.T) {
	cur := &store.Snapshot{Stability: store.Stability{DeltaFromPrev: 0.9}}
	prev := &store.Snapshot{}
	th := DefaultThresholds()["1h"]

	sigs, _ := ClusterReconfigurationDetector{}.Detect(cur, prev, "1h", th, time.Now())
	if len(sigs) != 1 {
		t.Fatalf("expected 1 cluster-reconfiguration signal, got %d", len(sigs))
	}
}

func TestEngineRunTrimsToMaxSignalsPerRun(t *testing.T) {
	edges := make([]store.Edge, 0, 60)
	for i := 0; i < 60; i++ {
		edges = append(edges, store.Edge{FromActorID: "A", ToActorID: string(rune('a' + i)), FlowUSD: 20_000, EventCount: 10})
	}
	cur := &store.Snapshot{Edges: edges, Stats: store.SnapshotStats{TotalFlowUSD: 20_000 * 60}}
	th := DefaultThresholds()["1h"]

	e := &Engine{Detectors: []Detector{NewCorridorDetector{}}}
	sigs, errs := e.Run(cur, nil, "1h", th, time.Now())
	if len(sigs) != MaxSignalsPerRun {
		t.Fatalf("len(sigs) = %d, want %d", len(sigs), MaxSignalsPerRun)
	}
	if len(errs) == 0 {
		t.Error("expected a dropped-signals error to be reported")
	}
}
