// Package aggregate folds raw transfer events into per-(token,window)
// WindowAggregate rows (spec §4.3, C3).
package aggregate

import (
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// Fold reduces a slice of raw events observed within [windowStart,
// windowEnd) into a WindowAggregate. It is a pure function: the result
// depends only on the event set, never on the order events arrived in
// (associativity law, spec §8), so replaying the same range is always
// safe.
func Fold(chain, token, window string, windowStart, windowEnd time.Time, events []store.RawEvent, focusActor string) store.WindowAggregate {
	inflow := kernel.ZeroAmount()
	outflow := kernel.ZeroAmount()
	senders := map[string]struct{}{}
	receivers := map[string]struct{}{}
	var firstBlock, lastBlock uint64
	first := true

	actors := map[string]struct{}{}
	for _, ev := range events {
		amt, err := kernel.ParseAmount(ev.Amount)
		if err != nil {
			continue
		}
		senders[ev.From] = struct{}{}
		receivers[ev.To] = struct{}{}
		actors[ev.From] = struct{}{}
		actors[ev.To] = struct{}{}

		if focusActor == "" || ev.To == focusActor {
			inflow = inflow.Add(amt)
		}
		if focusActor == "" || ev.From == focusActor {
			outflow = outflow.Add(amt)
		}

		if first || ev.Block < firstBlock {
			firstBlock = ev.Block
		}
		if first || ev.Block > lastBlock {
			lastBlock = ev.Block
		}
		first = false
	}

	net := inflow.Sub(outflow)

	return store.WindowAggregate{
		Chain:           chain,
		Token:           token,
		Window:          window,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
		InflowCount:     countDirectional(events, focusActor, true),
		OutflowCount:    countDirectional(events, focusActor, false),
		InflowAmount:    inflow.String(),
		OutflowAmount:   outflow.String(),
		NetFlowAmount:   net.String(),
		UniqueSenders:   int64(len(senders)),
		UniqueReceivers: int64(len(receivers)),
		UniqueActors:    int64(len(actors)),
		EventCount:      int64(len(events)),
		FirstBlock:      firstBlock,
		LastBlock:       lastBlock,
	}
}

func countDirectional(events []store.RawEvent, focusActor string, inbound bool) int64 {
	var n int64
	for _, ev := range events {
		if focusActor == "" {
			n++
			continue
		}
		if inbound && ev.To == focusActor {
			n++
		} else if !inbound && ev.From == focusActor {
			n++
		}
	}
	return n
}
