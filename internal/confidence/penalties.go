package confidence

import "github.com/sentrychain/pulse/internal/store"

// buildPenalties returns the ordered multiplicative penalty chain (spec
// §4.7 step 3). Order matters: each entry's ImpactPoints (set by the
// caller) is measured against the score after the prior penalty, so the
// chain must always run in this fixed sequence.
func buildPenalties(in Input) []store.ConfidencePenalty {
	var penalties []store.ConfidencePenalty

	if in.MinClustersForBoost > 0 && in.CoFiringClusters < in.MinClustersForBoost {
		penalties = append(penalties, store.ConfidencePenalty{
			Type:       "low_cluster_confirmation",
			Reason:     "fewer independent clusters co-firing than required for a confirmation boost",
			Multiplier: 0.9,
		})
	}

	if in.HighPenaltyRateThreshold > 0 && in.PenaltyRate >= in.HighPenaltyRateThreshold {
		penalties = append(penalties, store.ConfidencePenalty{
			Type:       "high_penalty_rate",
			Reason:     "subject's recent approval-rule penalty rate exceeds the tolerance threshold",
			Multiplier: 0.8,
		})
	}

	if in.ContradictingSignals {
		penalties = append(penalties, store.ConfidencePenalty{
			Type:       "contradicting_signals",
			Reason:     "another active signal on the same subject points the opposite direction",
			Multiplier: 0.75,
		})
	}

	if in.AntiManipulationFlag {
		penalties = append(penalties, store.ConfidencePenalty{
			Type:       "anti_manipulation",
			Reason:     "subject's flow pattern matches a known wash/manipulation shape",
			Multiplier: 0.5,
		})
	}

	return penalties
}
