package ranking

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

const directionEpsilon = 1e-9

// AggregateInput carries one subject's active signals and the
// subject-level modifiers the impact formula needs. Callers compute
// ClusterPassRate/PenaltyRate/AntiSpamFactor from the wider run (other
// subjects' approval/lifecycle state) before calling Aggregate, so this
// package stays a pure function of its inputs.
type AggregateInput struct {
	SubjectKind string
	SubjectID   string
	Window      string
	Signals     []store.Signal

	Coverage        float64
	ClusterPassRate float64 // 0..100, share of co-firing clusters that passed approval
	PenaltyRate     float64 // 0..100, share of this subject's recent approval penalties
	AntiSpamFactor  float64 // 0..1, 1.0 unless an anti-spam control is suppressing this subject

	Weights map[string]float64
	Now     time.Time
}

// Aggregate runs the Evidence/Direction/Risk/Confidence aggregation for
// one subject (spec §4.9) and returns the populated store.RankingResult
// plus its RankTrace for the caller to persist.
func Aggregate(in AggregateInput) (store.RankingResult, RankTrace) {
	weights := in.Weights
	if weights == nil {
		weights = DefaultSignalWeights()
	}
	antiSpam := in.AntiSpamFactor
	if antiSpam == 0 {
		antiSpam = 1.0
	}
	clusterFactor := kernel.Clamp01(in.ClusterPassRate / 100)
	penaltyFactor := 1 - kernel.Clamp01(in.PenaltyRate/100)

	var (
		sumImpact            float64
		sumDirectedImpact    float64
		sumLifecycleFactor   float64
		sumFreshnessFactor   float64
		sumAgeHours          float64
		sumLifecycleDecayAge float64
		sumWeightedConf      float64
		lifecycleMix         = map[string]int{}
		topSignals           []string
	)

	for _, sig := range in.Signals {
		impact := signalImpact(sig, weights, clusterFactor, penaltyFactor, in.Now)
		sumImpact += impact
		sumDirectedImpact += impact * signalDirection(sig.Direction)
		sumLifecycleFactor += lifecycleFactor(sig.LifecycleState)
		hours := math.Max(0, in.Now.Sub(sig.LastTriggeredAt).Hours())
		sumFreshnessFactor += freshnessFactor(hours)
		sumAgeHours += hours
		sumLifecycleDecayAge += math.Min(hours, lifecycleDecayHorizonHours)
		sumWeightedConf += impact * float64(sig.Confidence)
		lifecycleMix[sig.LifecycleState]++
		topSignals = append(topSignals, sig.ID)
	}

	n := float64(len(in.Signals))
	avgLifecycleFactor, avgFreshnessFactor, avgAgeHours, avgLifecycleDecayAge := 0.0, 0.0, 0.0, 0.0
	if n > 0 {
		avgLifecycleFactor = sumLifecycleFactor / n
		avgFreshnessFactor = sumFreshnessFactor / n
		avgAgeHours = sumAgeHours / n
		avgLifecycleDecayAge = sumLifecycleDecayAge / n
	}

	// antiSpam is applied at the subject level, after the per-signal
	// impact sum, rather than per signal: it guards against one subject
	// flooding its own ranking with near-duplicate signals rather than
	// discounting any individual signal's evidence.
	sumImpact *= antiSpam
	sumDirectedImpact *= antiSpam

	baseEvidence := math.Min(1, sumImpact*1.25)
	evidence := kernel.Round(baseEvidence * 100)
	direction := kernel.Round(kernel.Clamp(sumDirectedImpact/math.Max(sumImpact, directionEpsilon), -1, 1) * 100)

	risk := computeRisk(in.PenaltyRate, in.ClusterPassRate)

	confidenceAxis := 0.0
	if sumImpact > directionEpsilon {
		confidenceAxis = kernel.Round(sumWeightedConf / sumImpact)
	}

	if len(topSignals) > maxTopSignals {
		topSignals = topSignals[:maxTopSignals]
	}

	rankScore := kernel.Round(evidence * (0.5 + 0.5*math.Abs(direction)/100))
	bucket := classifyBucket(in.Coverage, evidence, direction)

	result := store.RankingResult{
		SubjectKind:       in.SubjectKind,
		SubjectID:         in.SubjectID,
		Window:            in.Window,
		Coverage:          in.Coverage,
		Evidence:          evidence,
		Direction:         direction,
		Risk:              risk,
		Confidence:        confidenceAxis,
		ClusterPassRate:   in.ClusterPassRate,
		AvgDominance:      avgLifecycleFactor,
		PenaltyRate:       in.PenaltyRate,
		ActiveSignals:     len(in.Signals),
		LifecycleMix:      lifecycleMix,
		AvgSignalAgeHours: kernel.Round(avgAgeHours),
		FreshnessFactor:   kernel.Round(avgFreshnessFactor),
		RankScore:         rankScore,
		Bucket:            bucket,
		TopSignals:        topSignals,
		ComputedAt:        in.Now,
	}

	trace := RankTrace{
		BaseEvidence:              kernel.Round(baseEvidence * 100),
		AvgLifecycleFactor:        kernel.Round(avgLifecycleFactor),
		AvgFreshnessFactor:        kernel.Round(avgFreshnessFactor),
		ClusterFactor:             kernel.Round(clusterFactor),
		PenaltyFactor:             kernel.Round(penaltyFactor),
		AntiSpamFactor:            antiSpam,
		ScoreRaw:                  kernel.Round(sumImpact),
		LifecycleDecayHours:       kernel.Round(avgLifecycleDecayAge),
		AttributionFreshnessHours: kernel.Round(avgAgeHours),
	}
	if encoded, err := json.Marshal(trace); err == nil {
		result.RankTraceJSON = string(encoded)
	}

	return result, trace
}

const maxTopSignals = 10

// RankTrace mirrors the confidence trace's ordered-operations idea at
// the ranking level (spec §4.9): enough named intermediates to
// attribute the final Evidence score to its contributing factors.
type RankTrace struct {
	BaseEvidence       float64 `json:"baseEvidence"`
	AvgLifecycleFactor float64 `json:"lifecycleFactor"`
	AvgFreshnessFactor float64 `json:"freshnessFactor"`
	ClusterFactor      float64 `json:"clusterFactor"`
	PenaltyFactor      float64 `json:"penaltyFactor"`
	AntiSpamFactor     float64 `json:"antiSpamFactor"`
	ScoreRaw           float64 `json:"scoreRaw"`

	// LifecycleDecayHours and AttributionFreshnessHours are deliberately
	// separate axes (spec §9 Open Question): the former mirrors the
	// confidence calculator's 168h decay horizon, the latter this
	// package's own 72h freshness horizon. They read the same
	// underlying signal age but must not be collapsed into one field.
	LifecycleDecayHours       float64 `json:"lifecycleDecayHours"`
	AttributionFreshnessHours float64 `json:"attributionFreshnessHours"`
}

const lifecycleDecayHorizonHours = 168

// computeRisk is a judgment-call composite (the spec treats risk as an
// input to the gate cascade's scenarios without naming its source
// formula): subjects with a higher recent approval-penalty rate or a
// lower cluster pass rate carry more risk.
func computeRisk(penaltyRate, clusterPassRate float64) float64 {
	risk := penaltyRate*0.6 + (100-clusterPassRate)*0.4
	return kernel.Round(kernel.Clamp(risk, 0, 100))
}

// classifyBucket is a gate-free heuristic ranking tier used for list
// sorting ahead of the full Decide gate cascade; WATCH covers subjects
// with middling evidence that the gate cascade would route to NEUTRAL
// for a different reason than a strong opposing signal.
func classifyBucket(coverage, evidence, direction float64) string {
	switch {
	case coverage < 60 || evidence < 65:
		return "NEUTRAL"
	case direction >= 20:
		return "BUY"
	case direction <= -20:
		return "SELL"
	default:
		return "WATCH"
	}
}
