// Package snapshot builds immutable per-window graph summaries from
// approved raw events: an actor/edge graph plus coverage, stability, and
// viability metadata (spec §4.5, C5).
package snapshot

import (
	"math"
	"sort"
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// Config parameterizes Build (spec §4.5's "STABILITY_THRESHOLD" and
// viability floor, window-independent unless the caller wires a
// per-window table over it).
type Config struct {
	StabilityThreshold float64 // deltaFromPrev below this is "stable"
	MinActorsCoverage  float64 // viability floor, actorsCoveragePct
	MinActorCount      int     // viability floor, stats.actorCount
}

func DefaultConfig() Config {
	return Config{
		StabilityThreshold: 0.15,
		MinActorsCoverage:  40,
		MinActorCount:      3,
	}
}

// Build folds a set of APPROVED (and optionally QUARANTINED) raw events
// for one window into a Snapshot. known supplies attribution for
// addresses this build recognizes as named actors; an address absent
// from known is still included in the graph as an "unknown" actor, but
// counts against coverage. Build never mutates previous; it only reads
// its hash/actor-set for the stability delta (spec §4.5: "never mutates
// a previous row").
func Build(window string, snapshotAt time.Time, events []store.RawEvent, known map[string]store.Actor, previous *store.Snapshot, cfg Config) store.Snapshot {
	actors, edges, stats := buildGraph(events, known)

	coverage := computeCoverage(actors, edges, events, known)
	stability := computeStability(actors, edges, coverage, previous, cfg.StabilityThreshold)

	isViable := coverage.ActorsPct >= cfg.MinActorsCoverage && stats.ActorCount >= cfg.MinActorCount

	return store.Snapshot{
		ID:           kernel.StableID(window, snapshotAt.UTC().Format(time.RFC3339Nano)),
		Window:       window,
		SnapshotAt:   snapshotAt,
		Actors:       actors,
		Edges:        edges,
		Stats:        stats,
		Coverage:     coverage,
		Stability:    stability,
		IsViable:     isViable,
		SnapshotHash: stability.Hash,
	}
}

func buildGraph(events []store.RawEvent, known map[string]store.Actor) ([]store.Actor, []store.Edge, store.SnapshotStats) {
	type edgeKey struct{ from, to string }
	edgeAgg := map[edgeKey]*store.Edge{}
	flowByActor := map[string]map[string]kernel.Amount{} // actorId -> counterpart -> net flow
	netUSDByActor := map[string]float64{}                // actorId -> net USD flow (inbound minus outbound)

	var totalEvents int64

	for _, ev := range events {
		amt, err := kernel.ParseAmount(ev.Amount)
		if err != nil {
			continue
		}
		totalEvents++

		k := edgeKey{ev.From, ev.To}
		e, ok := edgeAgg[k]
		if !ok {
			e = &store.Edge{FromActorID: ev.From, ToActorID: ev.To}
			edgeAgg[k] = e
		}
		cur, _ := kernel.ParseAmount(e.FlowAmount)
		e.FlowAmount = cur.Add(amt).String()
		e.EventCount++
		if ev.USDValue != nil {
			e.FlowUSD += *ev.USDValue
			netUSDByActor[ev.From] -= *ev.USDValue
			netUSDByActor[ev.To] += *ev.USDValue
		}

		if flowByActor[ev.From] == nil {
			flowByActor[ev.From] = map[string]kernel.Amount{}
		}
		if flowByActor[ev.To] == nil {
			flowByActor[ev.To] = map[string]kernel.Amount{}
		}
		flowByActor[ev.From][ev.To] = flowByActor[ev.From][ev.To].Sub(amt)
		flowByActor[ev.To][ev.From] = flowByActor[ev.To][ev.From].Add(amt)
	}

	edges := make([]store.Edge, 0, len(edgeAgg))
	for _, e := range edgeAgg {
		edges = append(edges, *e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FromActorID != edges[j].FromActorID {
			return edges[i].FromActorID < edges[j].FromActorID
		}
		return edges[i].ToActorID < edges[j].ToActorID
	})

	actors := make([]store.Actor, 0, len(flowByActor))
	var dominantNetFlowUSD, dominantAbs float64
	for actorID, flows := range flowByActor {
		flowsOut := map[string]string{}
		for counterpart, amt := range flows {
			flowsOut[counterpart] = amt.String()
		}
		a := store.Actor{
			ActorID:    actorID,
			ActorType:  "unknown",
			Flows:      flowsOut,
			NetFlowUSD: netUSDByActor[actorID],
		}
		if k, ok := known[actorID]; ok {
			a.Name = k.Name
			a.ActorType = k.ActorType
			a.SourceLevel = k.SourceLevel
			a.Coverage = k.Coverage
		} else {
			a.SourceLevel = "behavioral"
		}
		actors = append(actors, a)

		if abs := math.Abs(a.NetFlowUSD); abs > dominantAbs {
			dominantAbs = abs
			dominantNetFlowUSD = a.NetFlowUSD
		}
	}
	sort.Slice(actors, func(i, j int) bool { return actors[i].ActorID < actors[j].ActorID })

	var totalFlowUSD float64
	for _, e := range edges {
		totalFlowUSD += e.FlowUSD
	}

	// NetFlowUSD is the window's single most USD-imbalanced actor, not a
	// whole-graph sum: every edge credits one actor and debits another by
	// the same amount, so the graph-wide net is ~0 by conservation and
	// would be meaningless here. DIRECTION_IMBALANCE reads per-actor
	// Actor.NetFlowUSD instead of this field; this one is a
	// quick-glance diagnostic for dashboards that want a single number.
	stats := store.SnapshotStats{
		ActorCount:      len(actors),
		EdgeCount:       len(edges),
		TotalFlowUSD:    totalFlowUSD,
		NetFlowUSD:      dominantNetFlowUSD,
		TotalEventCount: totalEvents,
	}
	return actors, edges, stats
}
