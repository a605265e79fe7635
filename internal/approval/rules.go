// Package approval implements the sanity-check layer between the Window
// Aggregator and the Snapshot Builder: a fixed set of pure rule
// functions, each independently scoring a window on a 0-100 penalty
// scale, composed into a single classification (spec §4.4, C4).
//
// The shape is grounded on the teacher's policy-matrix gate
// (internal/gates/policy_matrix.go): a config-driven set of checks, each
// contributing violations to a result, with thresholds deciding the
// final recommended action. Here the checks are pure functions of a
// RuleContext rather than methods on a stateful matrix, since the
// Approval Gate has no venue/market state to track.
package approval

import (
	"fmt"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// Thresholds parameterizes the rule set (spec §4.4 "admin threshold").
type Thresholds struct {
	MinActorsForHighVolume   int64   // eventCount above which uniqueActors < 2 is suspicious
	MaxEventsPerActor        float64 // eventsPerActor above which volume looks automated
	MaxAvgEventVolume        kernel.Amount
	GapPenaltyPerMissingPct  float64 // FlowContinuity: penalty per 1% of expected volume missing
	BurstIdenticalSizeRatio  float64 // ActivityShape: fraction of events sharing one size before penalizing
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinActorsForHighVolume:  50,
		MaxEventsPerActor:       100,
		MaxAvgEventVolume:       kernel.Pow10(27),
		GapPenaltyPerMissingPct: 0.6, // 30 penalty points at a 50% gap
		BurstIdenticalSizeRatio: 0.8,
	}
}

// RuleContext carries everything a rule needs to evaluate one window,
// including the previous window for continuity checks and the raw
// events folded into Current for shape analysis.
type RuleContext struct {
	Current  store.WindowAggregate
	Previous *store.WindowAggregate // nil if no prior window exists
	Events   []store.RawEvent       // the events Current was folded from
	Th       Thresholds
}

// Rule is a pure check: given a context, it either returns nil (no
// violation) or a *store.TriggeredRule describing the penalty incurred.
type Rule func(ctx RuleContext) *store.TriggeredRule

// Rules is the fixed, ordered rule set evaluated on every tick (spec
// §4.4). Order only affects the order TriggeredRules are reported in;
// penalties are summed regardless of order.
var Rules = []Rule{
	ActorCoverage,
	VolumeSanity,
	FlowContinuity,
	ActivityShape,
}

// ActorCoverage flags windows with high event volume but implausibly
// few distinct participants, or volume from zero participants at all
// (spec §4.4).
func ActorCoverage(ctx RuleContext) *store.TriggeredRule {
	agg := ctx.Current

	if agg.EventCount > 0 && agg.UniqueActors == 0 {
		return &store.TriggeredRule{
			Name:    "ActorCoverage",
			Penalty: 60,
			Reason:  fmt.Sprintf("%d events but zero unique actors", agg.EventCount),
		}
	}
	if agg.EventCount > ctx.Th.MinActorsForHighVolume && agg.UniqueActors < 2 {
		return &store.TriggeredRule{
			Name:    "ActorCoverage",
			Penalty: 55,
			Reason:  fmt.Sprintf("%d events with only %d unique actors", agg.EventCount, agg.UniqueActors),
		}
	}
	if agg.UniqueActors > 0 {
		perActor := float64(agg.EventCount) / float64(agg.UniqueActors)
		if perActor > ctx.Th.MaxEventsPerActor {
			return &store.TriggeredRule{
				Name:    "ActorCoverage",
				Penalty: 25,
				Reason:  fmt.Sprintf("%.1f events per actor exceeds threshold %.1f", perActor, ctx.Th.MaxEventsPerActor),
			}
		}
	}
	return nil
}

// VolumeSanity flags impossible or implausible flow totals: negative
// amounts (which should never reach this layer), volume reported with
// no events, or per-event averages so large they suggest a unit/decimals
// bug upstream (spec §4.4).
func VolumeSanity(ctx RuleContext) *store.TriggeredRule {
	agg := ctx.Current

	inflow, errIn := kernel.ParseAmount(agg.InflowAmount)
	outflow, errOut := kernel.ParseAmount(agg.OutflowAmount)
	if errIn != nil || errOut != nil || inflow.IsNegative() || outflow.IsNegative() {
		return &store.TriggeredRule{
			Name:    "VolumeSanity",
			Penalty: 100,
			Reason:  "negative or malformed flow amount",
		}
	}

	total := inflow.Add(outflow)
	if agg.EventCount == 0 && !total.IsZero() {
		return &store.TriggeredRule{
			Name:    "VolumeSanity",
			Penalty: 60,
			Reason:  "non-zero volume with zero events",
		}
	}

	if agg.EventCount > 0 {
		avg := total.DivInt64(agg.EventCount)
		if avg.GreaterThan(ctx.Th.MaxAvgEventVolume) {
			return &store.TriggeredRule{
				Name:    "VolumeSanity",
				Penalty: 40,
				Reason:  fmt.Sprintf("average per-event volume %s exceeds sanity bound", avg.String()),
			}
		}
	}
	return nil
}

// FlowContinuity flags a sudden drop in observed volume relative to the
// immediately preceding window, proportional to the size of the gap and
// capped at 30 points (spec §4.4). A window with no predecessor cannot
// be evaluated and never fires.
func FlowContinuity(ctx RuleContext) *store.TriggeredRule {
	if ctx.Previous == nil {
		return nil
	}
	prevTotal, err := kernel.ParseAmount(ctx.Previous.InflowAmount)
	if err != nil || prevTotal.IsZero() {
		return nil
	}
	prevOut, _ := kernel.ParseAmount(ctx.Previous.OutflowAmount)
	prevTotal = prevTotal.Add(prevOut)
	if prevTotal.IsZero() {
		return nil
	}

	curIn, _ := kernel.ParseAmount(ctx.Current.InflowAmount)
	curOut, _ := kernel.ParseAmount(ctx.Current.OutflowAmount)
	curTotal := curIn.Add(curOut)

	if !curTotal.GreaterThan(prevTotal) && curTotal.Cmp(prevTotal) != 0 {
		gapPct := gapPercent(prevTotal, curTotal)
		if gapPct <= 0 {
			return nil
		}
		penalty := int(gapPct * ctx.Th.GapPenaltyPerMissingPct)
		if penalty > 30 {
			penalty = 30
		}
		if penalty <= 0 {
			return nil
		}
		return &store.TriggeredRule{
			Name:    "FlowContinuity",
			Penalty: penalty,
			Reason:  fmt.Sprintf("volume dropped %.0f%% versus previous window", gapPct),
		}
	}
	return nil
}

// gapPercent returns how much smaller cur is than prev, as a percentage
// of prev (0 when cur >= prev). The underlying amounts stay big.Int;
// only the ratio is approximated in float64, matching the one
// sanctioned boundary documented on kernel.Amount.ToUSD.
func gapPercent(prev, cur kernel.Amount) float64 {
	if !prev.GreaterThan(cur) {
		return 0
	}
	diff := prev.Sub(cur)
	prevF := amountToFloat(prev)
	if prevF == 0 {
		return 0
	}
	return (amountToFloat(diff) / prevF) * 100
}

func amountToFloat(a kernel.Amount) float64 {
	return a.ToUSD(1, 0)
}

// ActivityShape flags bursts of many events sharing an identical
// transfer size, a pattern consistent with automated structuring (spec
// §4.4).
func ActivityShape(ctx RuleContext) *store.TriggeredRule {
	if len(ctx.Events) < 5 {
		return nil
	}
	sizes := map[string]int{}
	mode, modeCount := "", 0
	for _, ev := range ctx.Events {
		sizes[ev.Amount]++
		if sizes[ev.Amount] > modeCount {
			mode, modeCount = ev.Amount, sizes[ev.Amount]
		}
	}
	ratio := float64(modeCount) / float64(len(ctx.Events))
	if ratio < ctx.Th.BurstIdenticalSizeRatio {
		return nil
	}
	penalty := int((ratio - ctx.Th.BurstIdenticalSizeRatio) / (1 - ctx.Th.BurstIdenticalSizeRatio) * 40)
	if penalty > 40 {
		penalty = 40
	}
	if penalty <= 0 {
		return nil
	}
	return &store.TriggeredRule{
		Name:    "ActivityShape",
		Penalty: penalty,
		Reason:  fmt.Sprintf("%d/%d events share identical size %s", modeCount, len(ctx.Events), mode),
	}
}
