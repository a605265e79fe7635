// Package signalengine evaluates a fixed catalog of detectors against a
// viable snapshot pair and produces typed, evidence-carrying signals
// (spec §4.6, C6).
package signalengine

// Thresholds parameterizes every detector for one window label. Each
// window (1h/24h/7d/30d) carries its own tuning, the same per-tier
// weight-map idiom as the teacher's catalyst.RegistryConfig.TierWeights,
// generalized from event tiers to window labels.
type Thresholds struct {
	// NEW_CORRIDOR
	MinCorridorDensityUSD float64
	MinCorridorConfidence float64

	// DENSITY_SPIKE
	SpikeRatio      float64 // (cur-prev)/prev must be >= this
	MinSpikeDensity float64 // both cur and prev density must clear this floor
	HighSpikeRatio  float64

	// DIRECTION_IMBALANCE
	ImbalanceRatio     float64 // |net|/total must be >= this
	MinTotalFlowUSD    float64
	HighImbalanceRatio float64

	// ACTOR_REGIME_CHANGE
	MinTxDeltaPct float64 // tx-count deviation vs baseline
	MinActiveDays int
	HighNetFlowUSD float64

	// NEW_BRIDGE
	MinBridgeSync float64 // inflow/outflow symmetry required to call a corridor "synchronous"

	// CLUSTER_RECONFIGURATION
	ClusterCoverageThreshold float64 // Stability.DeltaFromPrev above this fires

	MedDensity float64
	HighDensity float64
}

// DefaultThresholds returns a starter table keyed by window label. Real
// deployments are expected to override per-window entries via config
// (spec §4.6: "thresholds are window-dependent").
func DefaultThresholds() map[string]Thresholds {
	return map[string]Thresholds{
		"1h": {
			MinCorridorDensityUSD: 10_000, MinCorridorConfidence: 0.4,
			SpikeRatio: 1.5, MinSpikeDensity: 5_000, HighSpikeRatio: 3.0,
			ImbalanceRatio: 0.6, MinTotalFlowUSD: 20_000, HighImbalanceRatio: 0.85,
			MinTxDeltaPct: 0.5, MinActiveDays: 1, HighNetFlowUSD: 1_000_000,
			MinBridgeSync: 0.7,
			ClusterCoverageThreshold: 0.3,
			MedDensity: 25_000, HighDensity: 100_000,
		},
		"24h": {
			MinCorridorDensityUSD: 50_000, MinCorridorConfidence: 0.45,
			SpikeRatio: 1.3, MinSpikeDensity: 20_000, HighSpikeRatio: 2.5,
			ImbalanceRatio: 0.55, MinTotalFlowUSD: 100_000, HighImbalanceRatio: 0.8,
			MinTxDeltaPct: 0.4, MinActiveDays: 2, HighNetFlowUSD: 5_000_000,
			MinBridgeSync: 0.65,
			ClusterCoverageThreshold: 0.25,
			MedDensity: 100_000, HighDensity: 500_000,
		},
		"7d": {
			MinCorridorDensityUSD: 250_000, MinCorridorConfidence: 0.5,
			SpikeRatio: 1.2, MinSpikeDensity: 100_000, HighSpikeRatio: 2.0,
			ImbalanceRatio: 0.5, MinTotalFlowUSD: 500_000, HighImbalanceRatio: 0.75,
			MinTxDeltaPct: 0.35, MinActiveDays: 4, HighNetFlowUSD: 20_000_000,
			MinBridgeSync: 0.6,
			ClusterCoverageThreshold: 0.2,
			MedDensity: 500_000, HighDensity: 2_000_000,
		},
		"30d": {
			MinCorridorDensityUSD: 1_000_000, MinCorridorConfidence: 0.55,
			SpikeRatio: 1.15, MinSpikeDensity: 500_000, HighSpikeRatio: 1.75,
			ImbalanceRatio: 0.45, MinTotalFlowUSD: 2_000_000, HighImbalanceRatio: 0.7,
			MinTxDeltaPct: 0.3, MinActiveDays: 7, HighNetFlowUSD: 100_000_000,
			MinBridgeSync: 0.55,
			ClusterCoverageThreshold: 0.15,
			MedDensity: 2_000_000, HighDensity: 10_000_000,
		},
	}
}
