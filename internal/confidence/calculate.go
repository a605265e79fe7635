// Package confidence computes the per-signal confidence score and its
// ordered explain trace (spec §4.7, C7). Every step is a pure function
// of the snapshot and the signal's own metrics — grounded on the
// teacher's composite scoring pipeline
// (internal/score/composite/orthogonalize.go, explain.go): fixed-weight
// component sum, ordered adjustments, and a final explain trace UIs can
// render directly.
package confidence

import (
	"fmt"
	"math"
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// Weights are the fixed per-component weights from spec §4.7 step 2.
var Weights = map[string]float64{
	"coverage": 0.30,
	"actors":   0.25,
	"flow":     0.20,
	"temporal": 0.15,
	"evidence": 0.10,
}

const (
	decayLambda  = 0.02
	decayMinFactor = 0.4
	maxDecayHours  = 168
	clusterBoostMax = 1.15
)

// Input carries everything Calculate needs. All fields are precomputed
// by the caller (the ranking engine or the lifecycle tick that invokes
// this package) so confidence itself stays free of I/O.
type Input struct {
	Signal       store.Signal
	Snapshot     *store.Snapshot
	PrevSnapshot *store.Snapshot

	ActorWeight           float64 // source × flowShare × connectivity × history, already 0..1
	EffectiveActiveActors int
	ActorGuardThreshold   int
	ActorGuardCapValue    float64

	CoFiringClusters    int
	MinClustersForBoost int

	ContradictingSignals     bool
	PenaltyRate              float64
	HighPenaltyRateThreshold float64
	AntiManipulationFlag     bool

	Now time.Time
}

// Calculate runs the seven-step confidence pipeline and returns the
// full audit trace (spec §4.7).
func Calculate(in Input) store.ConfidenceTrace {
	components := computeComponents(in)
	raw := weightedSum(components)

	trace := store.ConfidenceTrace{
		SignalID:         in.Signal.ID,
		Components:       components,
		ComponentWeights: Weights,
		RawWeightedScore: raw,
		ComputedAt:       in.Now,
	}
	trace.Operations = append(trace.Operations, opLine("Base", raw))

	score := raw
	penalties := buildPenalties(in)
	for i := range penalties {
		before := score
		score *= penalties[i].Multiplier
		penalties[i].ImpactPoints = before - score
		trace.Operations = append(trace.Operations, opLine("-"+penalties[i].Type, score))
	}
	trace.Penalties = penalties

	hoursElapsed := math.Max(0, in.Now.Sub(in.Signal.LastTriggeredAt).Hours())
	if hoursElapsed > maxDecayHours {
		hoursElapsed = maxDecayHours
	}
	decayFactor := math.Max(decayMinFactor, math.Exp(-decayLambda*hoursElapsed))
	score *= decayFactor
	trace.HoursElapsed = hoursElapsed
	trace.DecayFactor = decayFactor
	trace.Operations = append(trace.Operations, opLine("-decay", score))

	if in.ActorGuardThreshold > 0 && in.EffectiveActiveActors < in.ActorGuardThreshold && score > in.ActorGuardCapValue {
		score = in.ActorGuardCapValue
		trace.CapApplied = true
		cap := in.ActorGuardCapValue
		trace.CapValue = &cap
		trace.Operations = append(trace.Operations, opLine("cap(actorGuard)", score))
	}

	if in.MinClustersForBoost > 0 && in.CoFiringClusters >= in.MinClustersForBoost {
		boost := math.Min(clusterBoostMax, 1+0.05*float64(in.CoFiringClusters-in.MinClustersForBoost+1))
		score = kernel.Clamp(score*boost, 0, 100)
		trace.Operations = append(trace.Operations, opLine("+clusterBoost", score))
	}

	score = kernel.Clamp(score, 0, 100)
	trace.FinalScore = score
	trace.Label = string(kernel.BandConfidence(score))
	trace.Operations = append(trace.Operations, opLine("Final", score))

	return trace
}

func weightedSum(components map[string]float64) float64 {
	sum := 0.0
	for name, w := range Weights {
		sum += components[name] * w
	}
	return kernel.Round(sum)
}

func opLine(label string, value float64) string {
	return fmt.Sprintf("%s %.2f", label, value)
}
