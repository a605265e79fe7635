package signalengine

import (
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// NewBridgeDetector fires on first observed usage of a bridge actor
// (ActorType == "bridge") whose inflow/outflow are synchronous — both
// sides moving together within the window rather than one-directional
// drift — above a minimum synchrony ratio (spec §4.6 #5).
type NewBridgeDetector struct{}

func (NewBridgeDetector) Name() string { return "NEW_BRIDGE" }

func (NewBridgeDetector) Detect(cur, prev *store.Snapshot, window string, th Thresholds, now time.Time) ([]store.Signal, []error) {
	if cur == nil {
		return nil, nil
	}
	prevBridges := map[string]struct{}{}
	if prev != nil {
		for _, a := range prev.Actors {
			if a.ActorType == "bridge" {
				prevBridges[a.ActorID] = struct{}{}
			}
		}
	}

	var out []store.Signal
	for _, a := range cur.Actors {
		if a.ActorType != "bridge" {
			continue
		}
		if _, seen := prevBridges[a.ActorID]; seen {
			continue
		}
		sync := bridgeSynchrony(a)
		if sync < th.MinBridgeSync {
			continue
		}

		highSync := th.MinBridgeSync + (1-th.MinBridgeSync)/2
		sev := kernel.BandSeverity(sync, th.MinBridgeSync, highSync)
		confidence := kernel.Clamp01(sync)
		sig := newSignal("NEW_BRIDGE", a.ActorID, window, "bidirectional", string(sev), kernel.RoundInt(confidence*100),
			map[string]float64{"synchrony": sync},
			nil, now)
		out = append(out, sig)
	}
	return out, nil
}

// bridgeSynchrony measures how evenly an actor's flows split between
// inbound and outbound counterparts: 1.0 is perfectly balanced
// (classic two-sided bridge usage), 0 is entirely one-directional.
func bridgeSynchrony(a store.Actor) float64 {
	in := kernel.ZeroAmount()
	out := kernel.ZeroAmount()
	for _, flow := range a.Flows {
		amt, err := kernel.ParseAmount(flow)
		if err != nil {
			continue
		}
		if amt.IsNegative() {
			out = out.Sub(amt)
		} else {
			in = in.Add(amt)
		}
	}
	total := in.Add(out)
	if total.IsZero() {
		return 0
	}
	smaller := in
	if out.Cmp(in) < 0 {
		smaller = out
	}
	return 2 * ratioApprox(smaller, total)
}

// ratioApprox approximates part/whole in float64 for big.Int-backed
// Amounts, the same single sanctioned float boundary documented on
// kernel.Amount.ToUSD.
func ratioApprox(part, whole kernel.Amount) float64 {
	wf := whole.ToUSD(1, 0)
	if wf == 0 {
		return 0
	}
	return part.ToUSD(1, 0) / wf
}
