package kernel

import (
	"fmt"
	"time"
)

// Window is a wall-clock aligned aggregation bucket (spec glossary).
type Window string

const (
	Window1h  Window = "1h"
	Window6h  Window = "6h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
)

func (w Window) Duration() (time.Duration, error) {
	switch w {
	case Window1h:
		return time.Hour, nil
	case Window6h:
		return 6 * time.Hour, nil
	case Window24h:
		return 24 * time.Hour, nil
	case Window7d:
		return 7 * 24 * time.Hour, nil
	case Window30d:
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("kernel: unknown window %q", w)
	}
}

// AlignedBoundary returns the [windowStart, windowEnd) bucket that `t`
// falls into, aligned to UTC midnight for the window's duration (spec
// §4.3 step 1).
func AlignedBoundary(w Window, t time.Time) (start, end time.Time, err error) {
	d, err := w.Duration()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t = t.UTC()
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	elapsed := t.Sub(epoch)
	buckets := elapsed / d
	start = epoch.Add(buckets * d)
	end = start.Add(d)
	return start, end, nil
}

// NextBoundary advances from a known windowEnd to the following bucket.
func NextBoundary(w Window, windowEnd time.Time) (start, end time.Time, err error) {
	d, err := w.Duration()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return windowEnd, windowEnd.Add(d), nil
}
