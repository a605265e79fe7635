package signalengine

import (
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// NewCorridorDetector fires on the first appearance of a (from,to)
// corridor above a minimum density and confidence (spec §4.6 #1).
type NewCorridorDetector struct{}

func (NewCorridorDetector) Name() string { return "NEW_CORRIDOR" }

func (NewCorridorDetector) Detect(cur, prev *store.Snapshot, window string, th Thresholds, now time.Time) ([]store.Signal, []error) {
	if cur == nil {
		return nil, nil
	}
	prevEdges := map[[2]string]struct{}{}
	if prev != nil {
		for _, e := range prev.Edges {
			prevEdges[[2]string{e.FromActorID, e.ToActorID}] = struct{}{}
		}
	}

	var out []store.Signal
	for _, e := range cur.Edges {
		key := [2]string{e.FromActorID, e.ToActorID}
		if _, seen := prevEdges[key]; seen {
			continue
		}
		if e.FlowUSD < th.MinCorridorDensityUSD {
			continue
		}
		confidence := corridorConfidence(e, cur)
		if confidence < th.MinCorridorConfidence {
			continue
		}

		sev := kernel.BandSeverity(e.FlowUSD, th.MedDensity, th.HighDensity)
		subjectKey := e.FromActorID + ">" + e.ToActorID
		sig := newSignal("NEW_CORRIDOR", subjectKey, window, "bidirectional", string(sev), kernel.RoundInt(confidence*100),
			map[string]float64{"flowUsd": e.FlowUSD, "eventCount": float64(e.EventCount)},
			map[string]interface{}{"metrics": map[string]float64{"flowUsd": e.FlowUSD}, "topEdges": []store.Edge{e}},
			now)
		out = append(out, sig)
	}
	return out, nil
}

func corridorConfidence(e store.Edge, snap *store.Snapshot) float64 {
	if snap.Stats.TotalFlowUSD <= 0 {
		return 0
	}
	share := kernel.Clamp01(e.FlowUSD / snap.Stats.TotalFlowUSD)
	density := kernel.Clamp01(float64(e.EventCount) / 10)
	return kernel.Clamp01(0.6*share + 0.4*density)
}
