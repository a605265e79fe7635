package signalengine

import (
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// ActorRegimeChangeDetector fires when an actor's transaction count
// deviates sharply from its previous-snapshot baseline (spec §4.6 #4).
// The baseline is the immediately preceding snapshot; a longer rolling
// baseline across minActiveDays would require a dedicated actor-history
// store this pipeline does not yet persist.
type ActorRegimeChangeDetector struct{}

func (ActorRegimeChangeDetector) Name() string { return "ACTOR_REGIME_CHANGE" }

func (ActorRegimeChangeDetector) Detect(cur, prev *store.Snapshot, window string, th Thresholds, now time.Time) ([]store.Signal, []error) {
	if cur == nil || prev == nil {
		return nil, nil
	}
	prevTx := actorTxCounts(prev)

	var out []store.Signal
	for actorID, txCount := range actorTxCounts(cur) {
		baseline, ok := prevTx[actorID]
		if !ok || baseline == 0 {
			continue
		}
		deltaPct := (float64(txCount) - float64(baseline)) / float64(baseline)
		abs := deltaPct
		if abs < 0 {
			abs = -abs
		}
		if abs < th.MinTxDeltaPct {
			continue
		}

		direction := "inflow"
		if deltaPct < 0 {
			direction = "outflow"
		}
		sev := kernel.BandSeverity(abs, th.MinTxDeltaPct, th.MinTxDeltaPct*2)
		confidence := kernel.Clamp01(abs)
		sig := newSignal("ACTOR_REGIME_CHANGE", actorID, window, direction, string(sev), kernel.RoundInt(confidence*100),
			map[string]float64{"currentTxCount": float64(txCount), "baselineTxCount": float64(baseline), "deltaPct": deltaPct},
			nil, now)
		out = append(out, sig)
	}
	return out, nil
}

// actorTxCounts approximates per-actor transaction count as the summed
// EventCount of the edges the actor participates in within the snapshot
// window.
func actorTxCounts(snap *store.Snapshot) map[string]int64 {
	counts := map[string]int64{}
	for _, e := range snap.Edges {
		counts[e.FromActorID] += e.EventCount
		counts[e.ToActorID] += e.EventCount
	}
	return counts
}
