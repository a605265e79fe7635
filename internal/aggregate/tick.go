package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/store"
)

// Backpressure carries the aggregator's range settings (spec §5
// RANGE_START/MIN/MAX). Tick reads only RangeStart; it does not shrink
// or grow its range and does not cap how many raw events one pass
// folds: every Tick folds exactly one aligned window.
type Backpressure struct {
	RangeStart time.Duration // how far before now the first window is placed when no cursor exists
	RangeMin   time.Duration // carried as configuration; not read by Tick
	RangeMax   time.Duration // carried as configuration; not read by Tick
}

func DefaultBackpressure() Backpressure {
	return Backpressure{
		RangeStart: time.Hour,
		RangeMin:   5 * time.Minute,
		RangeMax:   6 * time.Hour,
	}
}

// Aggregator orchestrates the cursor-read -> boundary -> scan -> fold ->
// upsert -> cursor-advance cycle for one (token, window) pair (spec
// §4.3).
type Aggregator struct {
	cursors      store.CursorRepo
	aggregates   store.AggregateRepo
	events       store.RawEventRepo
	backpressure Backpressure
	confirmLag   time.Duration // chain reorg safety margin before a window is considered final
}

func New(cursors store.CursorRepo, aggregates store.AggregateRepo, events store.RawEventRepo, bp Backpressure, confirmLag time.Duration) *Aggregator {
	return &Aggregator{cursors: cursors, aggregates: aggregates, events: events, backpressure: bp, confirmLag: confirmLag}
}

// Tick advances the (token, window) cursor by at most one aligned
// window, folding the raw events observed in it. It returns (false,
// nil) when the next boundary has not yet cleared the confirmation-lag
// guard — the caller should simply retry on its next scheduled run
// rather than treat that as an error (spec §4.3, §5).
func (a *Aggregator) Tick(ctx context.Context, chain, token string, window kernel.Window, now time.Time) (advanced bool, err error) {
	cur, err := a.cursors.Get(ctx, token, string(window))
	if err != nil {
		return false, fmt.Errorf("aggregate: get cursor: %w", err)
	}

	var windowStart, windowEnd time.Time
	if cur == nil {
		windowStart, windowEnd, err = kernel.AlignedBoundary(window, now.Add(-a.backpressure.RangeStart))
	} else {
		windowStart, windowEnd, err = kernel.NextBoundary(window, cur.LastWindowEnd)
	}
	if err != nil {
		return false, fmt.Errorf("aggregate: compute boundary: %w", err)
	}

	// Confirmation-lag guard: never fold a window whose end is still
	// within the reorg safety margin of "now".
	if now.Sub(windowEnd) < a.confirmLag {
		return false, nil
	}

	events, err := a.events.RangeByToken(ctx, token, store.TimeRange{From: windowStart, To: windowEnd}, 0)
	if err != nil {
		return false, fmt.Errorf("aggregate: range scan: %w", err)
	}

	agg := Fold(chain, token, string(window), windowStart, windowEnd, events, "")
	if err := a.aggregates.Upsert(ctx, agg); err != nil {
		return false, fmt.Errorf("aggregate: upsert: %w", err)
	}

	lastBlock := agg.LastBlock
	if cur != nil && cur.LastProcessedBlock > lastBlock {
		lastBlock = cur.LastProcessedBlock
	}
	if err := a.cursors.Upsert(ctx, store.AggregationCursor{
		Token:              token,
		Window:             string(window),
		LastWindowEnd:      windowEnd,
		LastProcessedBlock: lastBlock,
	}); err != nil {
		return false, fmt.Errorf("aggregate: advance cursor: %w", err)
	}

	return true, nil
}
