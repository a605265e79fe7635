package ranking

import (
	"strings"
	"time"

	"github.com/sentrychain/pulse/internal/store"
)

const (
	EngineStatusOK             = "OK"
	EngineStatusProtectionMode = "PROTECTION_MODE"
	EngineStatusCritical       = "CRITICAL"
)

// GateThresholds are the decision policy's tunable defaults (spec
// §4.9).
type GateThresholds struct {
	MinCoverageToTrade   float64
	MinEvidenceToTrade   float64
	MaxRiskToTrade       float64
	MinDirectionStrength float64
}

func DefaultGateThresholds() GateThresholds {
	return GateThresholds{
		MinCoverageToTrade:   60,
		MinEvidenceToTrade:   65,
		MaxRiskToTrade:       60,
		MinDirectionStrength: 20,
	}
}

// GateInput is everything the decision cascade reads beyond the
// ranking result itself.
type GateInput struct {
	Ranking      store.RankingResult
	EngineStatus string
	DriftFlags   []string
	TTLSeconds   int
	Now          time.Time
}

// Decide runs the ordered gate cascade from spec §4.9: every gate is
// evaluated (rather than short-circuiting on the first failure) so the
// recorded reasons explain every cause of a block, mirroring
// internal/policy/validators.go's ValidateAll, generalized from
// stop-at-first-error to collect-all-reasons since a decision's audit
// trail benefits from seeing every gate that fired.
func Decide(in GateInput, th GateThresholds) store.Decision {
	r := in.Ranking
	var reasons []string

	if r.Coverage < th.MinCoverageToTrade {
		reasons = append(reasons, "low_coverage")
	}
	if r.Risk >= th.MaxRiskToTrade {
		reasons = append(reasons, "high_risk")
	}
	if r.Evidence < th.MinEvidenceToTrade {
		reasons = append(reasons, "low_evidence")
	}
	if in.EngineStatus == EngineStatusProtectionMode || in.EngineStatus == EngineStatusCritical {
		reasons = append(reasons, "protection_mode")
	}
	if hasCriticalDrift(in.DriftFlags) {
		reasons = append(reasons, "critical_drift")
	}

	blocked := len(reasons) > 0
	decisionType := "NEUTRAL"

	switch {
	case blocked:
		// decisionType stays NEUTRAL
	case r.Direction >= th.MinDirectionStrength:
		decisionType = "BUY"
	case r.Direction <= -th.MinDirectionStrength:
		decisionType = "SELL"
	default:
		reasons = append(reasons, "weak_direction")
	}

	return store.Decision{
		SubjectKind:    r.SubjectKind,
		SubjectID:      r.SubjectID,
		Window:         r.Window,
		DecisionType:   decisionType,
		ConfidenceBand: confidenceBand(r.Evidence, blocked),
		Blocked:        blocked,
		Reasons:        reasons,
		TTLSeconds:     in.TTLSeconds,
		CreatedAt:      in.Now,
	}
}

func hasCriticalDrift(flags []string) bool {
	for _, f := range flags {
		lower := strings.ToLower(f)
		if strings.Contains(lower, "collapse") || strings.Contains(lower, "extreme") {
			return true
		}
	}
	return false
}

// confidenceBand implements spec §4.9's "HIGH if evidence≥80 and not
// blocked, else MEDIUM, else LOW" — read as two nested thresholds: a
// blocked decision is always LOW regardless of evidence, and an
// unblocked decision needs evidence of at least 65 to reach MEDIUM.
// The 65 is fixed here (it equals the default MinEvidenceToTrade); the
// configured gate thresholds are not read.
func confidenceBand(evidence float64, blocked bool) string {
	if blocked {
		return "LOW"
	}
	switch {
	case evidence >= 80:
		return "HIGH"
	case evidence >= 65:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
