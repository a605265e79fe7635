package signalengine

import (
	"fmt"
	"sort"
	"time"

	"github.com/sentrychain/pulse/internal/store"
)

const (
	MaxSignalsPerRun    = 50
	AutoResolveAfterRuns = 1
)

// Engine runs the fixed detector catalog against one viable snapshot
// pair and trims the result to MaxSignalsPerRun, dropping the lowest
// severity×confidence signals first (spec §4.6 "Engine limits").
type Engine struct {
	Detectors []Detector
}

func NewEngine() *Engine {
	return &Engine{Detectors: []Detector{
		NewCorridorDetector{},
		DensitySpikeDetector{},
		DirectionImbalanceDetector{},
		ActorRegimeChangeDetector{},
		NewBridgeDetector{},
		ClusterReconfigurationDetector{},
	}}
}

// Run evaluates every detector and returns the trimmed signal set plus
// any per-detector errors encountered (a detector error never aborts
// the others). Non-viable snapshots are never passed to Run by the
// caller (spec §4.5: "non-viable snapshots ... not consumed by the
// Signal Engine").
func (e *Engine) Run(cur, prev *store.Snapshot, window string, th Thresholds, now time.Time) ([]store.Signal, []error) {
	var signals []store.Signal
	var errs []error

	for _, d := range e.Detectors {
		sigs, detErrs := d.Detect(cur, prev, window, th, now)
		signals = append(signals, sigs...)
		errs = append(errs, detErrs...)
	}

	if len(signals) > MaxSignalsPerRun {
		sort.Slice(signals, func(i, j int) bool {
			return severityScore(signals[i]) > severityScore(signals[j])
		})
		dropped := len(signals) - MaxSignalsPerRun
		signals = signals[:MaxSignalsPerRun]
		errs = append(errs, droppedSignalsError(dropped))
	}

	return signals, errs
}

func severityScore(s store.Signal) float64 {
	band := 1.0
	switch s.Severity {
	case "high":
		band = 3
	case "med":
		band = 2
	case "low":
		band = 1
	}
	return band * float64(s.Confidence)
}

type droppedSignalsError int

func (d droppedSignalsError) Error() string {
	return fmt.Sprintf("signalengine: dropped %d lowest-ranked signals over MAX_SIGNALS_PER_RUN", int(d))
}
