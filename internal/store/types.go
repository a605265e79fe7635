// Package store defines the persistence-layer entity types and repository
// interfaces for the signal-to-decision pipeline (spec §3, §4.12, C12).
// Grounded on the teacher's internal/persistence/interfaces.go: one
// TimeRange helper type, one struct-per-entity, one interface-per-entity
// with a method-per-query-shape, aggregated into a Repository root.
package store

import "time"

// TimeRange bounds a range query, inclusive of From, exclusive of To.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// RawEvent is one observed ERC-20 transfer (spec §3 Raw Event).
type RawEvent struct {
	Chain      string            `db:"chain"`
	Block      uint64            `db:"block_number"`
	LogIndex   uint32            `db:"log_index"`
	TxHash     string            `db:"tx_hash"`
	From       string            `db:"from_addr"`
	To         string            `db:"to_addr"`
	Amount     string            `db:"amount"` // decimal string, arbitrary precision
	Token      string            `db:"token"`
	Timestamp  time.Time         `db:"ts"`
	USDValue   *float64          `db:"usd_value"`
	Tags       map[string]string `db:"-"`
	InsertedAt time.Time         `db:"inserted_at"`
}

// AggregationCursor is the per-(token,window) high-water mark (spec §3).
type AggregationCursor struct {
	Token              string    `db:"token"`
	Window             string    `db:"window"`
	LastWindowEnd      time.Time `db:"last_window_end"`
	LastProcessedBlock uint64    `db:"last_processed_block"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// WindowAggregate is a deterministic fold over raw events in
// [windowStart, windowEnd) (spec §3).
type WindowAggregate struct {
	Chain            string    `db:"chain"`
	Token            string    `db:"token"`
	Window           string    `db:"window"`
	WindowStart      time.Time `db:"window_start"`
	WindowEnd        time.Time `db:"window_end"`
	InflowCount      int64     `db:"inflow_count"`
	OutflowCount     int64     `db:"outflow_count"`
	InflowAmount     string    `db:"inflow_amount"`
	OutflowAmount    string    `db:"outflow_amount"`
	NetFlowAmount    string    `db:"net_flow_amount"`
	UniqueSenders    int64     `db:"unique_senders"`
	UniqueReceivers  int64     `db:"unique_receivers"`
	UniqueActors     int64     `db:"unique_actors"` // |senders ∪ receivers|
	EventCount       int64     `db:"event_count"`
	FirstBlock       uint64    `db:"first_block"`
	LastBlock        uint64    `db:"last_block"`
	CreatedAt        time.Time `db:"created_at"`
}

// TriggeredRule records one Approval Gate rule firing (spec §3 Approval
// Verdict).
type TriggeredRule struct {
	Name    string `json:"name" db:"name"`
	Penalty int    `json:"penalty" db:"penalty"`
	Reason  string `json:"reason" db:"reason"`
}

// ApprovalVerdict is the Approval Gate's classification of one window
// (spec §3, §4.4).
type ApprovalVerdict struct {
	WindowKey      string          `db:"window_key"`
	Verdict        string          `db:"verdict"` // APPROVED | QUARANTINED | REJECTED
	TriggeredRules []TriggeredRule `db:"-"`
	TotalPenalty   int             `db:"total_penalty"`
	EvaluatedAt    time.Time       `db:"evaluated_at"`
}

// Coverage reports the three independent coverage percentages computed
// by the Snapshot Builder (spec §3, §4.5).
type Coverage struct {
	ActorsPct    float64 `json:"actorsPct" db:"actors_pct"`
	EdgesPct     float64 `json:"edgesPct" db:"edges_pct"`
	TransfersPct float64 `json:"transfersPct" db:"transfers_pct"`
}

// Stability reports the Snapshot Builder's content-hash-based stability
// metadata (spec §3, §4.5).
type Stability struct {
	Hash          string  `json:"hash" db:"hash"`
	DeltaFromPrev float64 `json:"deltaFromPrev" db:"delta_from_prev"`
	IsStable      bool    `json:"isStable" db:"is_stable"`
	Quality       string  `json:"quality" db:"quality"` // HIGH | MEDIUM | LOW
}

// Actor is an address or cluster participating in the graph (spec §3).
type Actor struct {
	ActorID      string            `json:"actorId"`
	Name         *string           `json:"name,omitempty"`
	ActorType    string            `json:"actorType"` // exchange|market_maker|fund|whale|trader|unknown
	SourceLevel  string            `json:"sourceLevel"` // verified|attributed|behavioral
	Coverage     float64           `json:"coverage"`
	Flows        map[string]string `json:"flows"` // counterpart actorId -> net flow amount (decimal string)
	NetFlowUSD   float64           `json:"netFlowUsd"` // this actor's net USD flow (inbound minus outbound) across the window
}

// Edge is a directed flow relationship between two actors within a
// snapshot window.
type Edge struct {
	FromActorID string  `json:"fromActorId"`
	ToActorID   string  `json:"toActorId"`
	FlowAmount  string  `json:"flowAmount"`
	FlowUSD     float64 `json:"flowUsd"`
	EventCount  int64   `json:"eventCount"`
}

// SnapshotStats carries the aggregate-level rollup the Signal Engine and
// Confidence Calculator read from (actor/edge counts, totals).
type SnapshotStats struct {
	ActorCount     int     `json:"actorCount"`
	EdgeCount      int     `json:"edgeCount"`
	TotalFlowUSD   float64 `json:"totalFlowUsd"`
	NetFlowUSD     float64 `json:"netFlowUsd"`
	TotalEventCount int64  `json:"totalEventCount"`
}

// Snapshot is the immutable per-(window, snapshotAt) summary (spec §3,
// §4.5).
type Snapshot struct {
	ID          string        `db:"id"`
	Window      string        `db:"window"`
	SnapshotAt  time.Time     `db:"snapshot_at"`
	Actors      []Actor       `db:"-"`
	Edges       []Edge        `db:"-"`
	Stats       SnapshotStats `db:"-"`
	Coverage    Coverage      `db:"-"`
	Stability   Stability     `db:"-"`
	IsViable    bool          `db:"is_viable"`
	SnapshotHash string       `db:"snapshot_hash"`
	CreatedAt   time.Time     `db:"created_at"`
}

// Signal is a typed, scored, evidence-carrying observation produced by a
// detector (spec §3, §4.6).
type Signal struct {
	ID                     string                 `db:"id"`
	Type                   string                 `db:"type"`
	WindowLabel            string                 `db:"window_label"`
	Severity               string                 `db:"severity"` // low|med|high
	Confidence             int                    `db:"confidence"`
	Direction              string                 `db:"direction"` // inflow|outflow|bidirectional|neutral
	PrimaryActorID         string                 `db:"primary_actor_id"`
	SecondaryActorID       *string                `db:"secondary_actor_id"`
	EntityIDs              []string               `db:"-"`
	Evidence               map[string]interface{} `db:"-"`
	Metrics                map[string]float64     `db:"-"`
	LifecycleState         string                 `db:"lifecycle_state"`
	FirstTriggeredAt       time.Time              `db:"first_triggered_at"`
	LastTriggeredAt        time.Time              `db:"last_triggered_at"`
	SnapshotsWithoutTrigger int                   `db:"snapshots_without_trigger"`
	ResolveReason          *string                `db:"resolve_reason"`
	Version                int                    `db:"version"`
}

// SubjectKey identifies the signal's subject for grouping/locking (spec
// §3: "uniquely determined by (type, subjectKey, window)").
func (s Signal) SubjectKey() string {
	return s.PrimaryActorID
}

// ConfidencePenalty is one ordered, multiplicative penalty applied during
// confidence calculation (spec §3 Confidence Trace).
type ConfidencePenalty struct {
	Type         string  `json:"type"`
	Reason       string  `json:"reason"`
	Multiplier   float64 `json:"multiplier"`
	ImpactPoints float64 `json:"impactPoints"`
}

// ConfidenceTrace is the per-signal audit artifact (spec §3, §4.7).
type ConfidenceTrace struct {
	SignalID         string                 `db:"signal_id"`
	Components       map[string]float64     `db:"-"`
	ComponentWeights map[string]float64     `db:"-"`
	RawWeightedScore float64                `db:"raw_weighted_score"`
	Penalties        []ConfidencePenalty    `db:"-"`
	DecayFactor      float64                `db:"decay_factor"`
	HoursElapsed     float64                `db:"hours_elapsed"`
	CapApplied       bool                   `db:"cap_applied"`
	CapValue         *float64               `db:"cap_value"`
	FinalScore       float64                `db:"final_score"`
	Label            string                 `db:"label"`
	Operations       []string               `db:"-"` // ordered explain-trace lines
	ComputedAt       time.Time              `db:"computed_at"`
}

// RankingResult is the per-(subjectKind,subjectId,window) aggregation
// (spec §3, §4.9).
type RankingResult struct {
	SubjectKind          string    `db:"subject_kind"` // entity|actor|wallet
	SubjectID            string    `db:"subject_id"`
	Window               string    `db:"window"`
	Coverage             float64   `db:"coverage"`
	Evidence             float64   `db:"evidence"`
	Direction            float64   `db:"direction"`
	Risk                 float64   `db:"risk"`
	Confidence           float64   `db:"confidence"`
	ClusterPassRate      float64   `db:"cluster_pass_rate"`
	AvgDominance         float64   `db:"avg_dominance"`
	PenaltyRate          float64   `db:"penalty_rate"`
	ActiveSignals        int       `db:"active_signals"`
	LifecycleMix         map[string]int `db:"-"`
	AvgSignalAgeHours    float64   `db:"avg_signal_age_hours"`
	FreshnessFactor      float64   `db:"freshness_factor"`
	RankScore            float64   `db:"rank_score"`
	Bucket               string    `db:"bucket"` // BUY|WATCH|SELL|NEUTRAL
	TopSignals           []string  `db:"-"`       // signal ids
	RankTraceJSON        string    `db:"rank_trace"`
	ComputedAt           time.Time `db:"computed_at"`
}

// Gating captures the decision policy's blocked/reasons pair (spec §3).
type Gating struct {
	Blocked bool     `json:"blocked"`
	Reasons []string `json:"reasons"`
}

// Decision is the gated BUY/SELL/NEUTRAL output (spec §3, §4.9).
type Decision struct {
	ID              string    `db:"id"`
	SubjectKind     string    `db:"subject_kind"`
	SubjectID       string    `db:"subject_id"`
	Window          string    `db:"window"`
	DecisionType    string    `db:"decision_type"` // BUY|SELL|NEUTRAL
	ConfidenceBand  string    `db:"confidence_band"`
	Blocked         bool      `db:"blocked"`
	Reasons         []string  `db:"-"`
	TTLSeconds      int       `db:"ttl_seconds"`
	SupersededBy    *string   `db:"superseded_by"`
	CreatedAt       time.Time `db:"created_at"`
}

// JobLock is a persistent named lease enforcing single-leader execution
// of periodic jobs (spec §3, §4.10).
type JobLock struct {
	Key      string    `db:"key"`
	LockedBy string    `db:"locked_by"` // "pid@host"
	LockedAt time.Time `db:"locked_at"`
	TTLSec   int       `db:"ttl_sec"`
}

// SystemEvent records a CRITICAL/operational occurrence for operator
// acknowledgement (spec §7, SPEC_FULL §5).
type SystemEvent struct {
	ID            string    `db:"id"`
	CorrelationID string    `db:"correlation_id"`
	Severity      string    `db:"severity"` // info|warning|error|critical
	Source        string    `db:"source"`
	Message       string    `db:"message"`
	AckedAt       *time.Time `db:"acked_at"`
	CreatedAt     time.Time `db:"created_at"`
}
