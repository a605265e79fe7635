package signalengine

import (
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// ClusterReconfigurationDetector fires when the snapshot's actor-set
// drift against the previous snapshot (computed by the Snapshot Builder
// as Stability.DeltaFromPrev) clears a coverage threshold (spec §4.6
// #6).
type ClusterReconfigurationDetector struct{}

func (ClusterReconfigurationDetector) Name() string { return "CLUSTER_RECONFIGURATION" }

func (ClusterReconfigurationDetector) Detect(cur, prev *store.Snapshot, window string, th Thresholds, now time.Time) ([]store.Signal, []error) {
	if cur == nil || prev == nil {
		return nil, nil
	}
	delta := cur.Stability.DeltaFromPrev
	if delta < th.ClusterCoverageThreshold {
		return nil, nil
	}

	highDelta := th.ClusterCoverageThreshold + (1-th.ClusterCoverageThreshold)/2
	sev := kernel.BandSeverity(delta, th.ClusterCoverageThreshold, highDelta)
	confidence := kernel.Clamp01(delta)
	sig := newSignal("CLUSTER_RECONFIGURATION", window, window, "neutral", string(sev), kernel.RoundInt(confidence*100),
		map[string]float64{"deltaFromPrev": delta},
		nil, now)
	return []store.Signal{sig}, nil
}
