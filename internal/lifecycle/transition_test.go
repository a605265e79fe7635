package lifecycle

import "testing"

func TestNewActivatesOnHighConfidenceTrigger(t *testing.T) {
	out := Apply(State{LifecycleState: StateNew}, Input{Triggered: true, Confidence: 75})
	if out.LifecycleState != StateActive {
		t.Fatalf("LifecycleState = %s, want ACTIVE", out.LifecycleState)
	}
}

func TestNewStaysNewBelowActivationConfidence(t *testing.T) {
	out := Apply(State{LifecycleState: StateNew}, Input{Triggered: true, Confidence: 65})
	if out.LifecycleState != StateNew {
		t.Fatalf("LifecycleState = %s, want NEW", out.LifecycleState)
	}
}

func TestActiveRefreshesOnTrigger(t *testing.T) {
	out := Apply(State{LifecycleState: StateActive, SnapshotsWithoutTrigger: 2}, Input{Triggered: true, Confidence: 80})
	if out.LifecycleState != StateActive || out.SnapshotsWithoutTrigger != 0 {
		t.Fatalf("got %+v, want ACTIVE with reset miss counter", out)
	}
}

func TestActiveDropsToCooldownOnMiss(t *testing.T) {
	out := Apply(State{LifecycleState: StateActive}, Input{Triggered: false, Confidence: 80})
	if out.LifecycleState != StateCooldown || out.SnapshotsWithoutTrigger != 1 {
		t.Fatalf("got %+v, want COOLDOWN with miss counter 1", out)
	}
}

func TestCooldownRevivesOnTrigger(t *testing.T) {
	out := Apply(State{LifecycleState: StateCooldown, SnapshotsWithoutTrigger: 2}, Input{Triggered: true, Confidence: 80})
	if out.LifecycleState != StateActive {
		t.Fatalf("LifecycleState = %s, want ACTIVE", out.LifecycleState)
	}
}

func TestCooldownResolvesAfterMaxMisses(t *testing.T) {
	out := Apply(State{LifecycleState: StateCooldown, SnapshotsWithoutTrigger: MaxMissedSnapshots - 1}, Input{Triggered: false, Confidence: 80})
	if out.LifecycleState != StateResolved {
		t.Fatalf("LifecycleState = %s, want RESOLVED", out.LifecycleState)
	}
	if out.ResolveReason == nil || *out.ResolveReason != ReasonInactivity {
		t.Errorf("ResolveReason = %v, want inactivity", out.ResolveReason)
	}
}

func TestAnyStateResolvesOnConfidenceDrop(t *testing.T) {
	out := Apply(State{LifecycleState: StateActive}, Input{Triggered: true, Confidence: 30})
	if out.LifecycleState != StateResolved {
		t.Fatalf("LifecycleState = %s, want RESOLVED", out.LifecycleState)
	}
	if *out.ResolveReason != ReasonConfidenceDrop {
		t.Errorf("ResolveReason = %s, want confidence_drop", *out.ResolveReason)
	}
}

func TestResolvedIsTerminal(t *testing.T) {
	reason := ReasonInactivity
	in := State{LifecycleState: StateResolved, ResolveReason: &reason}
	out := Apply(in, Input{Triggered: true, Confidence: 90})
	if out.LifecycleState != StateResolved {
		t.Fatalf("LifecycleState = %s, want RESOLVED to stay terminal", out.LifecycleState)
	}
}

func TestVisibleHidesResolved(t *testing.T) {
	if Visible(StateResolved) {
		t.Error("expected RESOLVED to be hidden by default")
	}
	if !Visible(StateActive) {
		t.Error("expected ACTIVE to be visible")
	}
}
