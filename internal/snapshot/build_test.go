package snapshot

import (
	"testing"
	"time"

	"github.com/sentrychain/pulse/internal/store"
)

func sampleEvents() []store.RawEvent {
	return []store.RawEvent{
		{From: "0xWhale", To: "0xExchange", Amount: "1000"},
		{From: "0xExchange", To: "0xWhale", Amount: "200"},
		{From: "0xOther", To: "0xExchange", Amount: "50"},
	}
}

func TestBuildGraphShape(t *testing.T) {
	known := map[string]store.Actor{
		"0xExchange": {ActorID: "0xExchange", ActorType: "exchange", SourceLevel: "verified"},
	}
	snap := Build("1h", time.Now().UTC(), sampleEvents(), known, nil, DefaultConfig())

	if snap.Stats.ActorCount != 3 {
		t.Errorf("ActorCount = %d, want 3", snap.Stats.ActorCount)
	}
	if snap.Stats.EdgeCount != 3 {
		t.Errorf("EdgeCount = %d, want 3", snap.Stats.EdgeCount)
	}
	if snap.SnapshotHash == "" {
		t.Error("expected non-empty snapshot hash")
	}
}

func usd(v float64) *float64 { return &v }

func TestBuildGraphComputesPerActorNetFlowUSD(t *testing.T) {
	events := []store.RawEvent{
		{From: "0xWhale", To: "0xExchange", Amount: "1000", USDValue: usd(90_000)},
		{From: "0xExchange", To: "0xWhale", Amount: "200", USDValue: usd(10_000)},
	}
	snap := Build("1h", time.Now().UTC(), events, nil, nil, DefaultConfig())

	byID := map[string]store.Actor{}
	for _, a := range snap.Actors {
		byID[a.ActorID] = a
	}
	if got := byID["0xWhale"].NetFlowUSD; got != -80_000 {
		t.Errorf("0xWhale NetFlowUSD = %v, want -80000", got)
	}
	if got := byID["0xExchange"].NetFlowUSD; got != 80_000 {
		t.Errorf("0xExchange NetFlowUSD = %v, want 80000", got)
	}
	if snap.Stats.TotalFlowUSD != 100_000 {
		t.Errorf("Stats.TotalFlowUSD = %v, want 100000", snap.Stats.TotalFlowUSD)
	}
}

func TestBuildFirstSnapshotIsStable(t *testing.T) {
	snap := Build("1h", time.Now().UTC(), sampleEvents(), nil, nil, DefaultConfig())
	if !snap.Stability.IsStable {
		t.Error("expected first-ever snapshot to report stable (no prior to diverge from)")
	}
	if snap.Stability.DeltaFromPrev != 0 {
		t.Errorf("DeltaFromPrev = %f, want 0", snap.Stability.DeltaFromPrev)
	}
}

func TestBuildViabilityRequiresCoverageAndActorCount(t *testing.T) {
	// No known actors at all -> 0% coverage -> never viable regardless
	// of actor count.
	snap := Build("1h", time.Now().UTC(), sampleEvents(), nil, nil, DefaultConfig())
	if snap.IsViable {
		t.Error("expected snapshot with zero attribution coverage to be non-viable")
	}

	known := map[string]store.Actor{
		"0xWhale":    {ActorID: "0xWhale", ActorType: "whale", SourceLevel: "attributed"},
		"0xExchange": {ActorID: "0xExchange", ActorType: "exchange", SourceLevel: "verified"},
		"0xOther":    {ActorID: "0xOther", ActorType: "trader", SourceLevel: "behavioral"},
	}
	snap = Build("1h", time.Now().UTC(), sampleEvents(), known, nil, DefaultConfig())
	if !snap.IsViable {
		t.Errorf("expected fully-attributed 3-actor snapshot to be viable, coverage=%+v stats=%+v", snap.Coverage, snap.Stats)
	}
}

func TestBuildStabilityDeltaAgainstPrevious(t *testing.T) {
	known := map[string]store.Actor{"0xExchange": {ActorID: "0xExchange", SourceLevel: "verified"}}
	prev := Build("1h", time.Now().UTC(), sampleEvents(), known, nil, DefaultConfig())

	// Completely disjoint actor set from prev.
	disjoint := []store.RawEvent{
		{From: "0xNew1", To: "0xNew2", Amount: "5"},
	}
	cur := Build("1h", time.Now().UTC(), disjoint, known, &prev, DefaultConfig())
	if cur.Stability.DeltaFromPrev != 1 {
		t.Errorf("DeltaFromPrev = %f, want 1 (fully disjoint actor sets)", cur.Stability.DeltaFromPrev)
	}
	if cur.Stability.IsStable {
		t.Error("expected fully disjoint snapshot to be unstable")
	}
}
