package store

import (
	"context"
	"errors"
	"time"
)

// ErrVersionConflict is returned by SignalRepo.Update when the caller's
// expected version no longer matches the stored row (spec §4.8
// idempotency/versioning note).
var ErrVersionConflict = errors.New("store: version conflict")

// RawEventRepo persists observed transfers with idempotent writes keyed
// on (chain, tx_hash, log_index) (spec §4.2).
type RawEventRepo interface {
	Insert(ctx context.Context, ev RawEvent) error
	InsertBatch(ctx context.Context, events []RawEvent) (inserted int, err error)
	RangeByToken(ctx context.Context, token string, tr TimeRange, limit int) ([]RawEvent, error)
	RangeByTxHash(ctx context.Context, txHash string) ([]RawEvent, error)
	Count(ctx context.Context, tr TimeRange) (int64, error)
}

// CursorRepo tracks the aggregator's per-(token,window) high-water mark
// (spec §4.3).
type CursorRepo interface {
	Get(ctx context.Context, token, window string) (*AggregationCursor, error)
	Upsert(ctx context.Context, cur AggregationCursor) error
	ListStale(ctx context.Context, olderThan time.Time) ([]AggregationCursor, error)
}

// AggregateRepo persists deterministic window folds; Upsert is
// idempotent so a re-run over the same range is a no-op on content
// (spec §4.3 invariant).
type AggregateRepo interface {
	Upsert(ctx context.Context, agg WindowAggregate) error
	Get(ctx context.Context, token, window string, windowStart time.Time) (*WindowAggregate, error)
	ListByToken(ctx context.Context, token, window string, tr TimeRange) ([]WindowAggregate, error)
	Previous(ctx context.Context, token, window string, beforeWindowStart time.Time) (*WindowAggregate, error)
}

// ApprovalRepo persists the Approval Gate's per-window verdicts.
type ApprovalRepo interface {
	Upsert(ctx context.Context, v ApprovalVerdict) error
	Get(ctx context.Context, windowKey string) (*ApprovalVerdict, error)
	ListByVerdict(ctx context.Context, verdict string, tr TimeRange, limit int) ([]ApprovalVerdict, error)
}

// SnapshotRepo persists immutable per-window graph snapshots.
type SnapshotRepo interface {
	Insert(ctx context.Context, snap Snapshot) error
	GetLatest(ctx context.Context, window string) (*Snapshot, error)
	GetByID(ctx context.Context, id string) (*Snapshot, error)
	ListRange(ctx context.Context, window string, tr TimeRange) ([]Snapshot, error)
}

// SignalRepo persists detector output and supports lifecycle updates.
// Update uses the Version column for optimistic concurrency: a mismatch
// returns ErrVersionConflict (spec §4.8 idempotency/versioning note).
type SignalRepo interface {
	Upsert(ctx context.Context, sig Signal) error
	Update(ctx context.Context, sig Signal, expectedVersion int) error
	GetByID(ctx context.Context, id string) (*Signal, error)
	ListActive(ctx context.Context, window string) ([]Signal, error)
	ListBySubject(ctx context.Context, subjectKey, window string) ([]Signal, error)
	ListByState(ctx context.Context, state string, limit int) ([]Signal, error)
}

// ConfidenceTraceRepo persists one audit trace per confidence
// calculation (append-only; spec §4.7).
type ConfidenceTraceRepo interface {
	Insert(ctx context.Context, trace ConfidenceTrace) error
	GetLatestForSignal(ctx context.Context, signalID string) (*ConfidenceTrace, error)
	ListForSignal(ctx context.Context, signalID string, limit int) ([]ConfidenceTrace, error)
}

// RankingRepo persists per-(subject,window) ranking results.
type RankingRepo interface {
	Upsert(ctx context.Context, r RankingResult) error
	Get(ctx context.Context, subjectKind, subjectID, window string) (*RankingResult, error)
	ListByBucket(ctx context.Context, bucket, window string, limit int) ([]RankingResult, error)
	Top(ctx context.Context, window string, limit int) ([]RankingResult, error)
}

// DecisionRepo persists gated decisions and tracks supersession chains.
type DecisionRepo interface {
	Insert(ctx context.Context, d Decision) error
	GetActive(ctx context.Context, subjectKind, subjectID, window string) (*Decision, error)
	Supersede(ctx context.Context, oldID, newID string) error
	ListRecent(ctx context.Context, tr TimeRange, limit int) ([]Decision, error)
}

// ErrLockHeld is returned by JobLockRepo.Acquire when another process
// holds an unexpired lease.
type ErrLockHeld struct {
	Key      string
	LockedBy string
}

func (e *ErrLockHeld) Error() string {
	return "store: lock " + e.Key + " held by " + e.LockedBy
}

// JobLockRepo provides cross-process compare-and-set leases (spec §4.10
// "persistent distributed lock").
type JobLockRepo interface {
	// Acquire attempts to claim key for owner with the given TTL. Returns
	// *ErrLockHeld if another live owner holds it.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) error
	// Heartbeat extends an existing lease; fails if owner no longer holds it.
	Heartbeat(ctx context.Context, key, owner string, ttl time.Duration) error
	Release(ctx context.Context, key, owner string) error
	Get(ctx context.Context, key string) (*JobLock, error)
}

// SystemEventRepo persists operator-facing critical/operational events.
type SystemEventRepo interface {
	Insert(ctx context.Context, ev SystemEvent) error
	Acknowledge(ctx context.Context, id string, at time.Time) error
	ListUnacked(ctx context.Context, limit int) ([]SystemEvent, error)
}

// HealthCheck mirrors the teacher's repository health-monitoring shape.
type HealthCheck struct {
	Healthy        bool            `json:"healthy"`
	Errors         []string        `json:"errors,omitempty"`
	ConnectionPool map[string]int  `json:"connectionPool"`
	LastCheck      time.Time       `json:"lastCheck"`
	ResponseTimeMS int64           `json:"responseTimeMs"`
}

// RepositoryHealth exposes liveness/connection diagnostics for the
// persistence layer.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
	Stats(ctx context.Context) map[string]interface{}
}

// Repository aggregates every persistence interface the pipeline needs,
// wired once at startup (spec §4.12).
type Repository struct {
	RawEvents        RawEventRepo
	Cursors          CursorRepo
	Aggregates       AggregateRepo
	Approvals        ApprovalRepo
	Snapshots        SnapshotRepo
	Signals          SignalRepo
	ConfidenceTraces ConfidenceTraceRepo
	Rankings         RankingRepo
	Decisions        DecisionRepo
	JobLocks         JobLockRepo
	SystemEvents     SystemEventRepo
	Health           RepositoryHealth
}
