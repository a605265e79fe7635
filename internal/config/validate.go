package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sentrychain/pulse/internal/store"
)

// ErrLifecycleThresholdDiscrepancy is returned by Validate (wrapped)
// when the config carries a non-zero deprecated confidence-drop
// threshold that differs from the canonical one: spec §9 documents two subtly different thresholds (40,
// canonical, vs a deprecated 50) and requires startup validation to
// surface the discrepancy rather than silently picking one.
var ErrLifecycleThresholdDiscrepancy = fmt.Errorf("config: lifecycle confidence-drop threshold discrepancy")

// Validate checks cfg for internal consistency. It returns a plain
// error for structural problems (missing DSN, out-of-range gate or
// lifecycle thresholds). For the documented lifecycle-threshold
// discrepancy it records a critical system event (when events is
// non-nil) and returns ErrLifecycleThresholdDiscrepancy wrapped with
// both values; the canonical value (40) is the one in use. No job is
// gated on acknowledging that event.
func Validate(ctx context.Context, cfg *Config, events store.SystemEventRepo) error {
	if cfg.Postgres.Enabled && cfg.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres.dsn is required when postgres.enabled is true")
	}
	if cfg.Gates.MinCoverageToTrade < 0 || cfg.Gates.MinCoverageToTrade > 100 {
		return fmt.Errorf("config: gates.min_coverage_to_trade must be within [0,100]")
	}
	if cfg.Gates.MinEvidenceToTrade < 0 || cfg.Gates.MinEvidenceToTrade > 100 {
		return fmt.Errorf("config: gates.min_evidence_to_trade must be within [0,100]")
	}
	if cfg.Gates.MaxRiskToTrade < 0 || cfg.Gates.MaxRiskToTrade > 100 {
		return fmt.Errorf("config: gates.max_risk_to_trade must be within [0,100]")
	}
	if cfg.Lifecycle.MaxMissedSnapshots <= 0 {
		return fmt.Errorf("config: lifecycle.max_missed_snapshots must be positive")
	}
	if cfg.Lifecycle.ConfidenceDropThreshold <= 0 || cfg.Lifecycle.ConfidenceDropThreshold >= 100 {
		return fmt.Errorf("config: lifecycle.confidence_drop_threshold must be within (0,100)")
	}

	if cfg.Lifecycle.DeprecatedConfidenceDropThreshold != 0 &&
		cfg.Lifecycle.DeprecatedConfidenceDropThreshold != cfg.Lifecycle.ConfidenceDropThreshold {
		if events != nil {
			err := events.Insert(ctx, store.SystemEvent{
				Severity: "critical",
				Source:   "config.validate",
				Message: fmt.Sprintf(
					"lifecycle confidence-drop threshold discrepancy: canonical=%d deprecated=%d; using canonical",
					cfg.Lifecycle.ConfidenceDropThreshold, cfg.Lifecycle.DeprecatedConfidenceDropThreshold,
				),
				CreatedAt: time.Now().UTC(),
			})
			if err != nil {
				return fmt.Errorf("config: recording lifecycle discrepancy event: %w", err)
			}
		}
		return fmt.Errorf("%w: canonical=%d deprecated=%d — using canonical",
			ErrLifecycleThresholdDiscrepancy, cfg.Lifecycle.ConfidenceDropThreshold, cfg.Lifecycle.DeprecatedConfidenceDropThreshold)
	}

	return nil
}
