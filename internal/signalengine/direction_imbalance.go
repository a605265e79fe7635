package signalengine

import (
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// DirectionImbalanceDetector fires per-actor when an actor's net USD
// flow dominates its gross USD flow, signalling one-sided accumulation
// or distribution rather than balanced churn (spec §4.6 #3). The whole
// graph's net is ~0 by conservation (every edge credits one actor and
// debits another by the same amount), so this is scoped to the actor
// whose own inflow/outflow is lopsided, not the snapshot as a whole.
type DirectionImbalanceDetector struct{}

func (DirectionImbalanceDetector) Name() string { return "DIRECTION_IMBALANCE" }

func (DirectionImbalanceDetector) Detect(cur, prev *store.Snapshot, window string, th Thresholds, now time.Time) ([]store.Signal, []error) {
	if cur == nil {
		return nil, nil
	}
	actors := actorIndex(cur)

	var out []store.Signal
	for actorID, total := range actorFlowUSD(cur) {
		if total < th.MinTotalFlowUSD {
			continue
		}
		net := actors[actorID].NetFlowUSD
		ratio := net / total
		if ratio < 0 {
			ratio = -ratio
		}
		if ratio < th.ImbalanceRatio {
			continue
		}

		direction := "inflow"
		if net < 0 {
			direction = "outflow"
		}
		sev := kernel.BandSeverity(ratio, th.ImbalanceRatio, th.HighImbalanceRatio)
		confidence := kernel.Clamp01(ratio)
		sig := newSignal("DIRECTION_IMBALANCE", actorID, window, direction, string(sev), kernel.RoundInt(confidence*100),
			map[string]float64{"netFlowUsd": net, "totalFlowUsd": total, "ratio": ratio},
			map[string]interface{}{"current": map[string]string{"direction": direction}},
			now)
		out = append(out, sig)
	}
	return out, nil
}

// actorFlowUSD sums each actor's gross USD flow (inbound plus outbound)
// across the edges it participates in within the snapshot window.
func actorFlowUSD(snap *store.Snapshot) map[string]float64 {
	totals := map[string]float64{}
	for _, e := range snap.Edges {
		totals[e.FromActorID] += e.FlowUSD
		totals[e.ToActorID] += e.FlowUSD
	}
	return totals
}
