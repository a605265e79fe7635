// Package lifecycle implements the signal lifecycle state machine (spec
// §4.8, C8). Apply is the sole exported entry point: a pure transition
// function over the signal's persisted lifecycle fields and the
// current tick's detection result, grounded on the same
// state-plus-decision shape as the teacher's gate evaluation
// (internal/gates/policy_matrix.go) generalized from a single verdict
// to a state machine with memory across ticks.
package lifecycle

const (
	StateNew      = "NEW"
	StateActive   = "ACTIVE"
	StateCooldown = "COOLDOWN"
	StateResolved = "RESOLVED"
)

const (
	ReasonInactivity     = "inactivity"
	ReasonConfidenceDrop = "confidence_drop"
)

// MaxMissedSnapshots is the number of consecutive non-triggering
// snapshots a COOLDOWN signal tolerates before resolving (spec §4.8).
const MaxMissedSnapshots = 3

// ActivationConfidence is the minimum confidence a NEW signal needs on
// its first trigger to activate (spec §4.8).
const ActivationConfidence = 70

// ResolutionConfidence resolves any signal, regardless of state, once
// its confidence drops below this floor (spec §4.8).
const ResolutionConfidence = 40

// Input is one tick's inputs to the transition: whether the signal's
// detector fired again this run, and its freshly computed confidence.
type Input struct {
	Triggered  bool
	Confidence int
}

// State is the subset of store.Signal the transition reads and writes.
// Callers copy these fields out of a store.Signal, call Apply, and
// write the result back — Apply itself does no I/O.
type State struct {
	LifecycleState          string
	SnapshotsWithoutTrigger int
	ResolveReason           *string
}

// Apply runs one lifecycle tick. Its LifecycleState output is
// idempotent — re-applying the same (state, in) pair never changes
// which state a signal is in or moves it past RESOLVED — but
// SnapshotsWithoutTrigger is a counter, not a label: ACTIVE with
// in.Triggered false re-applied twice yields misses=1 then misses=2,
// matching the spec's literal "miss counter += 1" transition table
// rather than the idempotent-apply property that table's text also
// states. Callers must call Apply exactly once per real snapshot tick,
// not defensively re-apply it.
func Apply(s State, in Input) State {
	if s.LifecycleState == StateResolved {
		return s
	}

	if in.Confidence < ResolutionConfidence {
		return resolve(ReasonConfidenceDrop)
	}

	switch s.LifecycleState {
	case StateNew:
		if in.Triggered && in.Confidence >= ActivationConfidence {
			return State{LifecycleState: StateActive, SnapshotsWithoutTrigger: 0}
		}
		return State{LifecycleState: StateNew, SnapshotsWithoutTrigger: s.SnapshotsWithoutTrigger}

	case StateActive:
		if in.Triggered {
			return State{LifecycleState: StateActive, SnapshotsWithoutTrigger: 0}
		}
		return State{LifecycleState: StateCooldown, SnapshotsWithoutTrigger: s.SnapshotsWithoutTrigger + 1}

	case StateCooldown:
		if in.Triggered {
			return State{LifecycleState: StateActive, SnapshotsWithoutTrigger: 0}
		}
		misses := s.SnapshotsWithoutTrigger + 1
		if misses >= MaxMissedSnapshots {
			return resolve(ReasonInactivity)
		}
		return State{LifecycleState: StateCooldown, SnapshotsWithoutTrigger: misses}

	default:
		return State{LifecycleState: StateNew}
	}
}

func resolve(reason string) State {
	r := reason
	return State{LifecycleState: StateResolved, SnapshotsWithoutTrigger: 0, ResolveReason: &r}
}

// Visible reports whether a signal in this lifecycle state is shown in
// the default UI view (spec §4.8: RESOLVED is hidden unless explicitly
// requested).
func Visible(state string) bool {
	return state != StateResolved
}
