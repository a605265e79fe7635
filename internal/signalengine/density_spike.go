package signalengine

import (
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// DensitySpikeDetector fires when a corridor's flow density jumps by at
// least SpikeRatio versus the previous snapshot, with both sides clear
// of the density floor (spec §4.6 #2).
type DensitySpikeDetector struct{}

func (DensitySpikeDetector) Name() string { return "DENSITY_SPIKE" }

func (DensitySpikeDetector) Detect(cur, prev *store.Snapshot, window string, th Thresholds, now time.Time) ([]store.Signal, []error) {
	if cur == nil || prev == nil {
		return nil, nil
	}
	prevEdges := edgeIndex(prev)

	var out []store.Signal
	for _, e := range cur.Edges {
		pe, ok := prevEdges[[2]string{e.FromActorID, e.ToActorID}]
		if !ok || pe.FlowUSD < th.MinSpikeDensity || e.FlowUSD < th.MinSpikeDensity {
			continue
		}
		ratio := (e.FlowUSD - pe.FlowUSD) / pe.FlowUSD
		if ratio < th.SpikeRatio {
			continue
		}

		sev := kernel.BandSeverity(ratio, th.SpikeRatio, th.HighSpikeRatio)
		subjectKey := e.FromActorID + ">" + e.ToActorID
		confidence := kernel.Clamp01(ratio / th.HighSpikeRatio)
		sig := newSignal("DENSITY_SPIKE", subjectKey, window, "bidirectional", string(sev), kernel.RoundInt(confidence*100),
			map[string]float64{"currentUsd": e.FlowUSD, "previousUsd": pe.FlowUSD, "ratio": ratio},
			map[string]interface{}{"topEdges": []store.Edge{e}},
			now)
		out = append(out, sig)
	}
	return out, nil
}
