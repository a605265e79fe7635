package snapshot

import (
	"fmt"
	"sort"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// computeStability hashes the sorted actor/edge lists and compares the
// full actor-ID set (every actor, not a top-N subset) against the
// previous snapshot's via Jaccard similarity
// (spec §4.5). A nil previous snapshot (first-ever snapshot for this
// window) is always reported stable: there is nothing to drift from.
func computeStability(actors []store.Actor, edges []store.Edge, coverage store.Coverage, previous *store.Snapshot, threshold float64) store.Stability {
	lines := make([]string, 0, len(actors)+len(edges))
	actorIDs := make([]string, 0, len(actors))
	for _, a := range actors {
		lines = append(lines, fmt.Sprintf("actor:%s:%s", a.ActorID, a.ActorType))
		actorIDs = append(actorIDs, a.ActorID)
	}
	for _, e := range edges {
		lines = append(lines, fmt.Sprintf("edge:%s>%s:%s", e.FromActorID, e.ToActorID, e.FlowAmount))
	}
	sort.Strings(lines)
	hash := kernel.ContentHash(lines)

	delta := 0.0
	if previous != nil {
		prevIDs := make([]string, 0, len(previous.Actors))
		for _, a := range previous.Actors {
			prevIDs = append(prevIDs, a.ActorID)
		}
		sim := kernel.Jaccard(kernel.ToSet(actorIDs), kernel.ToSet(prevIDs))
		delta = 1 - sim
	}

	return store.Stability{
		Hash:          hash,
		DeltaFromPrev: delta,
		IsStable:      delta < threshold,
		Quality:       QualityBand(coverage.ActorsPct),
	}
}
