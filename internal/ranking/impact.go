// Package ranking aggregates a subject's active signals into the
// Evidence/Direction/Risk/Confidence axes and gates the result into a
// BUY/SELL/NEUTRAL decision (spec §4.9, C9). The aggregation shape is
// grounded on internal/score/portfolio/aware_scorer_simple.go (a base
// score adjusted by a sequence of named factors, each recorded for
// explainability); the gate cascade is grounded on
// internal/policy/validators.go's ordered-validator-with-reason-codes
// idiom, generalized from trade-entry policy to signal ranking.
package ranking

import (
	"math"
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/lifecycle"
	"github.com/sentrychain/pulse/internal/store"
)

const freshnessHorizonHours = 72

// DefaultSignalWeights assigns each detector type's relative weight in
// the impact formula (spec §4.9). NEW_BRIDGE weighs most (1.2), then
// DENSITY_SPIKE (1.1); NEW_CORRIDOR and ACTOR_REGIME_CHANGE are neutral
// (1.0); DIRECTION_IMBALANCE (0.9) and CLUSTER_RECONFIGURATION (0.8)
// weigh least.
func DefaultSignalWeights() map[string]float64 {
	return map[string]float64{
		"NEW_CORRIDOR":            1.0,
		"DENSITY_SPIKE":           1.1,
		"DIRECTION_IMBALANCE":     0.9,
		"ACTOR_REGIME_CHANGE":     1.0,
		"NEW_BRIDGE":              1.2,
		"CLUSTER_RECONFIGURATION": 0.8,
	}
}

func lifecycleFactor(state string) float64 {
	switch state {
	case lifecycle.StateActive:
		return 1.0
	case lifecycle.StateCooldown:
		return 0.7
	case lifecycle.StateResolved:
		return 0.3
	default:
		return 0.0
	}
}

// freshnessFactor decays linearly from 1.0 at 0h since the signal last
// triggered to 0.5 at freshnessHorizonHours and beyond (spec §4.9).
// This is distinct from confidence's 168h temporal decay: one axis
// ages the confidence score itself, the other ages a signal's
// contribution to its subject's ranking.
func freshnessFactor(hoursSinceTrigger float64) float64 {
	if hoursSinceTrigger <= 0 {
		return 1.0
	}
	if hoursSinceTrigger >= freshnessHorizonHours {
		return 0.5
	}
	return 1.0 - 0.5*(hoursSinceTrigger/freshnessHorizonHours)
}

func signalDirection(direction string) float64 {
	switch direction {
	case "inflow":
		return 1
	case "outflow":
		return -1
	default:
		return 0
	}
}

// signalImpact implements the per-signal impact formula from spec §4.9.
// clusterFactor and penaltyFactor are subject-level modifiers shared by
// every signal in the aggregation, not per-signal values.
func signalImpact(sig store.Signal, weights map[string]float64, clusterFactor, penaltyFactor float64, now time.Time) float64 {
	weight := weights[sig.Type]
	if weight == 0 {
		weight = 1.0
	}
	hours := math.Max(0, now.Sub(sig.LastTriggeredAt).Hours())
	impact := kernel.Clamp01(float64(sig.Confidence)/100) *
		weight *
		lifecycleFactor(sig.LifecycleState) *
		freshnessFactor(hours) *
		clusterFactor *
		penaltyFactor
	return impact
}
