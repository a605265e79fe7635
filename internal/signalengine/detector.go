package signalengine

import (
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// Detector evaluates one rule against a snapshot pair. A detector is
// deterministic for a fixed (cur, prev, th) triple and performs no I/O
// (spec §4.6).
type Detector interface {
	Name() string
	Detect(cur, prev *store.Snapshot, window string, th Thresholds, now time.Time) ([]store.Signal, []error)
}

// newSignal builds the common Signal envelope every detector shares: a
// stable, content-addressed id so repeated firings across ticks refresh
// the same row rather than duplicate it (spec §4.6, C8).
func newSignal(sigType, subjectKey, window, direction, severity string, confidence int, metrics map[string]float64, evidence map[string]interface{}, now time.Time) store.Signal {
	return store.Signal{
		ID:               kernel.StableID(sigType, subjectKey, window),
		Type:             sigType,
		WindowLabel:      window,
		Severity:         severity,
		Confidence:       confidence,
		Direction:        direction,
		PrimaryActorID:   subjectKey,
		Metrics:          metrics,
		Evidence:         evidence,
		LifecycleState:   "NEW",
		FirstTriggeredAt: now,
		LastTriggeredAt:  now,
	}
}

// edgeIndex indexes a snapshot's edges by (from,to) for O(1) corridor
// lookups, used by several detectors.
func edgeIndex(snap *store.Snapshot) map[[2]string]store.Edge {
	idx := make(map[[2]string]store.Edge, len(snap.Edges))
	for _, e := range snap.Edges {
		idx[[2]string{e.FromActorID, e.ToActorID}] = e
	}
	return idx
}

func actorIndex(snap *store.Snapshot) map[string]store.Actor {
	idx := make(map[string]store.Actor, len(snap.Actors))
	for _, a := range snap.Actors {
		idx[a.ActorID] = a
	}
	return idx
}
