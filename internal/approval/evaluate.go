package approval

import (
	"time"

	"github.com/sentrychain/pulse/internal/store"
)

const (
	VerdictApproved    = "APPROVED"
	VerdictQuarantined = "QUARANTINED"
	VerdictRejected    = "REJECTED"
)

// Evaluate runs the fixed rule set over one window and classifies it
// into APPROVED / QUARANTINED / REJECTED (spec §4.4):
//
//	total penalty >= 100, or any single rule firing at 100  -> REJECTED
//	40 <= total penalty < 100                                -> QUARANTINED
//	total penalty < 40                                       -> APPROVED
//
// Evaluate is pure and performs no I/O; callers own persisting the
// resulting store.ApprovalVerdict.
func Evaluate(ctx RuleContext) store.ApprovalVerdict {
	var triggered []store.TriggeredRule
	total := 0
	hardReject := false

	for _, rule := range Rules {
		v := rule(ctx)
		if v == nil {
			continue
		}
		triggered = append(triggered, *v)
		total += v.Penalty
		if v.Penalty >= 100 {
			hardReject = true
		}
	}

	verdict := VerdictApproved
	switch {
	case hardReject || total >= 100:
		verdict = VerdictRejected
	case total >= 40:
		verdict = VerdictQuarantined
	}

	return store.ApprovalVerdict{
		WindowKey:      windowKey(ctx.Current),
		Verdict:        verdict,
		TriggeredRules: triggered,
		TotalPenalty:   total,
		EvaluatedAt:    time.Now().UTC(),
	}
}

func windowKey(agg store.WindowAggregate) string {
	return agg.Chain + ":" + agg.Token + ":" + agg.Window + ":" + agg.WindowStart.UTC().Format(time.RFC3339)
}
