package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sentrychain/pulse/internal/store"
)

func TestDefaultPassesValidation(t *testing.T) {
	cfg := Default()
	if err := Validate(context.Background(), &cfg, nil); err != nil {
		t.Fatalf("Default() should validate cleanly, got %v", err)
	}
}

func TestLoadAppliesYAMLOverFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")
	yaml := "log_level: debug\nwindow: 15m\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PULSE_WINDOW", "1h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug (from file)", cfg.LogLevel)
	}
	if cfg.Window != "1h" {
		t.Errorf("Window = %q, want 1h (env override)", cfg.Window)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load returned error for a missing file: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default info", cfg.LogLevel)
	}
}

func TestValidateRejectsPostgresEnabledWithoutDSN(t *testing.T) {
	cfg := Default()
	cfg.Postgres.Enabled = true
	cfg.Postgres.DSN = ""
	if err := Validate(context.Background(), &cfg, nil); err == nil {
		t.Fatal("expected an error for postgres enabled without a DSN")
	}
}

func TestValidateRejectsOutOfRangeGateThreshold(t *testing.T) {
	cfg := Default()
	cfg.Gates.MinCoverageToTrade = 150
	if err := Validate(context.Background(), &cfg, nil); err == nil {
		t.Fatal("expected an error for an out-of-range gate threshold")
	}
}

type fakeSystemEvents struct {
	inserted []store.SystemEvent
}

func (f *fakeSystemEvents) Insert(ctx context.Context, ev store.SystemEvent) error {
	f.inserted = append(f.inserted, ev)
	return nil
}
func (f *fakeSystemEvents) Acknowledge(ctx context.Context, id string, at time.Time) error {
	return nil
}
func (f *fakeSystemEvents) ListUnacked(ctx context.Context, limit int) ([]store.SystemEvent, error) {
	return nil, nil
}

func TestValidateSurfacesLifecycleThresholdDiscrepancy(t *testing.T) {
	cfg := Default()
	cfg.Lifecycle.ConfidenceDropThreshold = 40
	cfg.Lifecycle.DeprecatedConfidenceDropThreshold = 50

	events := &fakeSystemEvents{}
	err := Validate(context.Background(), &cfg, events)
	if !errors.Is(err, ErrLifecycleThresholdDiscrepancy) {
		t.Fatalf("expected ErrLifecycleThresholdDiscrepancy, got %v", err)
	}
	if len(events.inserted) != 1 || events.inserted[0].Severity != "critical" {
		t.Fatalf("expected one critical system event to be recorded, got %+v", events.inserted)
	}
}

func TestValidateAllowsMatchingDeprecatedThreshold(t *testing.T) {
	cfg := Default()
	cfg.Lifecycle.ConfidenceDropThreshold = 40
	cfg.Lifecycle.DeprecatedConfidenceDropThreshold = 40
	if err := Validate(context.Background(), &cfg, nil); err != nil {
		t.Fatalf("expected no error when both thresholds agree, got %v", err)
	}
}
