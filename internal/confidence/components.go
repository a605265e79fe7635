package confidence

import "github.com/sentrychain/pulse/internal/kernel"

// computeComponents scores each of the five inputs to the weighted sum
// on a 0..100 scale (spec §4.7 step 1). Every component is derived from
// data already present on the snapshot pair and the signal itself — no
// component does I/O.
func computeComponents(in Input) map[string]float64 {
	return map[string]float64{
		"coverage": coverageComponent(in),
		"actors":   actorsComponent(in),
		"flow":     flowComponent(in),
		"temporal": temporalComponent(in),
		"evidence": evidenceComponent(in),
	}
}

func coverageComponent(in Input) float64 {
	if in.Snapshot == nil {
		return 0
	}
	return kernel.Clamp(in.Snapshot.Coverage.ActorsPct, 0, 100)
}

func actorsComponent(in Input) float64 {
	return kernel.Clamp(in.ActorWeight*100, 0, 100)
}

// flowComponent scores the snapshot's total USD flow linearly against a
// $1M materiality mark: 100 at or above $1M, proportionally less below
// it. It reads the whole snapshot's flow, not the subject's own share.
func flowComponent(in Input) float64 {
	const materialFlowUSD = 1_000_000
	if in.Snapshot == nil || in.Snapshot.Stats.TotalFlowUSD <= 0 {
		return 0
	}
	ratio := in.Snapshot.Stats.TotalFlowUSD / materialFlowUSD
	return kernel.Clamp(kernel.Clamp01(ratio)*100, 0, 100)
}

// temporalComponent rewards a signal whose subject also produced
// activity in the previous snapshot, i.e. the pattern persists across
// at least one tick rather than appearing from a single window.
func temporalComponent(in Input) float64 {
	if in.PrevSnapshot == nil {
		return 0
	}
	for _, a := range in.PrevSnapshot.Actors {
		if a.ActorID == in.Signal.PrimaryActorID {
			return 100
		}
	}
	return 0
}

// evidenceComponent rewards signals whose explain metrics are denser;
// a signal backed by more independently computed metrics is harder to
// have triggered by chance.
func evidenceComponent(in Input) float64 {
	const wellEvidenced = 5
	n := float64(len(in.Signal.Metrics))
	return kernel.Clamp(kernel.Clamp01(n/wellEvidenced)*100, 0, 100)
}
