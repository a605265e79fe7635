// Package pipeline wires the seven pure packages (aggregate, approval,
// snapshot, signalengine, confidence, lifecycle, ranking) plus the
// chain adapter and persistence layer into orchestrator.StageFunc
// implementations. cmd/pulsed registers these against the scheduler;
// orchestrator itself never imports any of the stage packages (spec
// §4.10, §4.12).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sentrychain/pulse/internal/aggregate"
	"github.com/sentrychain/pulse/internal/approval"
	"github.com/sentrychain/pulse/internal/chainkit"
	"github.com/sentrychain/pulse/internal/confidence"
	"github.com/sentrychain/pulse/internal/eventbus"
	"github.com/sentrychain/pulse/internal/kernel"
	"github.com/sentrychain/pulse/internal/lifecycle"
	"github.com/sentrychain/pulse/internal/orchestrator"
	"github.com/sentrychain/pulse/internal/ranking"
	"github.com/sentrychain/pulse/internal/rawstore"
	"github.com/sentrychain/pulse/internal/signalengine"
	"github.com/sentrychain/pulse/internal/snapshot"
	"github.com/sentrychain/pulse/internal/store"
)

// IngestCursorWindow is the sentinel window label the ingest stage's
// block cursor is stored under, distinct from any kernel.Window
// aggregation label so the two never collide in store.CursorRepo.
const IngestCursorWindow = "__ingest__"

// erc20TransferTopic is keccak256("Transfer(address,address,uint256)"),
// the only log topic the ingest stage scans for (spec §4: ERC-20
// Transfer events are the sole raw event source).
const erc20TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

const (
	defaultActorWeight      = 0.5
	viableLookback          = 24 * time.Hour
	maxLifecycleBatch       = 500
	maxRankedSubjectsPerTick = 200
)

// Deps bundles every collaborator a pipeline stage needs. One Deps is
// built once at startup (cmd/pulsed) and its methods registered in the
// orchestrator.Scheduler's stage map, keyed by job type.
type Deps struct {
	Chain   string
	Adapter chainkit.Adapter
	Repo    store.Repository

	Tokens        []string
	Confirmations uint64
	RewindBlocks  uint64

	AggregatorBackpressure aggregate.Backpressure
	ConfirmLag             time.Duration

	ApprovalThresholds approval.Thresholds
	SnapshotConfig     snapshot.Config
	Engine             *signalengine.Engine
	SignalThresholds   map[string]signalengine.Thresholds
	GateThresholds     ranking.GateThresholds
	SignalWeights      map[string]float64

	// Bus publishes lifecycle events for downstream subscribers (spec
	// §4.11). Nil is valid: publish no-ops then,
	// since a bus-less deployment still computes and persists signals
	// correctly, it just has nothing subscribed to react in-process.
	Bus *eventbus.Bus
}

func (d *Deps) publish(ctx context.Context, topic, key string, payload interface{}) {
	if d.Bus == nil {
		return
	}
	if err := d.Bus.Publish(ctx, topic, key, payload); err != nil {
		log.Warn().Str("topic", topic).Str("key", key).Err(err).Msg("pipeline: event publish failed")
	}
}

// Stages returns the job-type -> StageFunc map DefaultCatalog's Type
// field selects from.
func (d *Deps) Stages() map[string]orchestrator.StageFunc {
	return map[string]orchestrator.StageFunc{
		"ingest":    d.Ingest,
		"aggregate": d.Aggregate,
		"approve":   d.Approve,
		"snapshot":  d.Snapshot,
		"signal":    d.Signal,
		"lifecycle": d.Lifecycle,
		"rank":      d.Rank,
		"decide":    d.Decide,
	}
}

// Ingest scans every tracked token for new ERC-20 Transfer logs up to
// the confirmation-safe chain head, re-scanning RewindBlocks behind the
// last cursor each cycle to absorb shallow reorgs (spec §4 ingest
// description: REWIND_BLOCKS/CONFIRMATIONS).
func (d *Deps) Ingest(ctx context.Context, cfg orchestrator.JobConfig) error {
	rs := rawstore.New(d.Repo.RawEvents)

	head, err := d.Adapter.HeadHeight(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: ingest head height: %w", err)
	}
	if head < d.Confirmations {
		return nil
	}
	safeHead := head - d.Confirmations

	for _, token := range d.Tokens {
		if err := d.ingestToken(ctx, rs, token, safeHead); err != nil {
			return fmt.Errorf("pipeline: ingest %s: %w", token, err)
		}
	}
	return nil
}

func (d *Deps) ingestToken(ctx context.Context, rs *rawstore.Store, token string, safeHead uint64) error {
	cur, err := d.Repo.Cursors.Get(ctx, token, IngestCursorWindow)
	if err != nil {
		return fmt.Errorf("get cursor: %w", err)
	}

	var from uint64
	switch {
	case cur == nil:
		from = safeHead
	case cur.LastProcessedBlock > d.RewindBlocks:
		from = cur.LastProcessedBlock - d.RewindBlocks
	default:
		from = 0
	}
	if from > safeHead {
		return nil // cursor is already past the confirmation-safe head
	}

	logs, err := d.Adapter.LogsByRange(ctx, from, safeHead, []string{token}, []string{erc20TransferTopic})
	if err != nil {
		return fmt.Errorf("logs by range: %w", err)
	}

	blockTimes := map[uint64]time.Time{}
	events := make([]store.RawEvent, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ev, ok := d.decodeTransferLog(token, lg)
		if !ok {
			log.Debug().Str("token", token).Str("tx", lg.TransactionHash).Msg("pipeline: skipped malformed transfer log")
			continue
		}
		ts, ok := blockTimes[lg.BlockNumber]
		if !ok {
			blk, err := d.Adapter.BlockByNumber(ctx, lg.BlockNumber)
			if err != nil {
				return fmt.Errorf("block %d: %w", lg.BlockNumber, err)
			}
			ts = blk.Timestamp
			blockTimes[lg.BlockNumber] = ts
		}
		ev.Timestamp = ts
		events = append(events, ev)
	}

	if len(events) > 0 {
		if _, err := rs.InsertBatch(ctx, events); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
	}

	return d.Repo.Cursors.Upsert(ctx, store.AggregationCursor{
		Token:              token,
		Window:             IngestCursorWindow,
		LastWindowEnd:      time.Now().UTC(),
		LastProcessedBlock: safeHead,
	})
}

func (d *Deps) decodeTransferLog(token string, lg chainkit.Log) (store.RawEvent, bool) {
	if len(lg.Topics) < 3 {
		return store.RawEvent{}, false
	}
	from, ok := addressFromTopic(lg.Topics[1])
	if !ok {
		return store.RawEvent{}, false
	}
	to, ok := addressFromTopic(lg.Topics[2])
	if !ok {
		return store.RawEvent{}, false
	}
	amount, ok := amountFromData(lg.Data)
	if !ok {
		return store.RawEvent{}, false
	}
	return store.RawEvent{
		Chain:    d.Chain,
		Block:    lg.BlockNumber,
		LogIndex: uint32(lg.LogIndex),
		TxHash:   lg.TransactionHash,
		From:     from,
		To:       to,
		Amount:   amount,
		Token:    token,
	}, true
}

// addressFromTopic extracts a 20-byte address from its left-zero-padded
// 32-byte log topic representation.
func addressFromTopic(topic string) (string, bool) {
	t := strings.TrimPrefix(topic, "0x")
	if len(t) < 40 {
		return "", false
	}
	return "0x" + strings.ToLower(t[len(t)-40:]), true
}

// amountFromData decodes a Transfer log's hex-encoded uint256 value
// into a base-10 string (spec §9: flow amounts are never float64).
func amountFromData(data string) (string, bool) {
	t := strings.TrimPrefix(data, "0x")
	if t == "" {
		return "0", true
	}
	v, ok := new(big.Int).SetString(t, 16)
	if !ok {
		return "", false
	}
	return v.String(), true
}

// Aggregate folds newly ingested raw events into the next aligned
// window per tracked token (spec §4.3, C3).
func (d *Deps) Aggregate(ctx context.Context, cfg orchestrator.JobConfig) error {
	win := kernel.Window(cfg.Window)
	if _, err := win.Duration(); err != nil {
		return fmt.Errorf("pipeline: aggregate: %w", err)
	}

	agg := aggregate.New(d.Repo.Cursors, d.Repo.Aggregates, d.Repo.RawEvents, d.AggregatorBackpressure, d.ConfirmLag)
	now := time.Now().UTC()
	for _, token := range d.Tokens {
		if _, err := agg.Tick(ctx, d.Chain, token, win, now); err != nil {
			return fmt.Errorf("pipeline: aggregate %s: %w", token, err)
		}
	}
	return nil
}

// Approve runs the Approval Gate over the most recently folded window
// of each tracked token (spec §4.4, C4).
func (d *Deps) Approve(ctx context.Context, cfg orchestrator.JobConfig) error {
	dur, err := kernel.Window(cfg.Window).Duration()
	if err != nil {
		return fmt.Errorf("pipeline: approve: %w", err)
	}

	for _, token := range d.Tokens {
		cur, err := d.Repo.Cursors.Get(ctx, token, cfg.Window)
		if err != nil {
			return fmt.Errorf("pipeline: approve %s cursor: %w", token, err)
		}
		if cur == nil {
			continue
		}
		windowStart := cur.LastWindowEnd.Add(-dur)

		agg, err := d.Repo.Aggregates.Get(ctx, token, cfg.Window, windowStart)
		if err != nil {
			return fmt.Errorf("pipeline: approve %s aggregate: %w", token, err)
		}
		if agg == nil {
			continue
		}
		prev, err := d.Repo.Aggregates.Previous(ctx, token, cfg.Window, windowStart)
		if err != nil {
			return fmt.Errorf("pipeline: approve %s previous aggregate: %w", token, err)
		}
		events, err := d.Repo.RawEvents.RangeByToken(ctx, token, store.TimeRange{From: agg.WindowStart, To: agg.WindowEnd}, 0)
		if err != nil {
			return fmt.Errorf("pipeline: approve %s events: %w", token, err)
		}

		verdict := approval.Evaluate(approval.RuleContext{Current: *agg, Previous: prev, Events: events, Th: d.ApprovalThresholds})
		if err := d.Repo.Approvals.Upsert(ctx, verdict); err != nil {
			return fmt.Errorf("pipeline: approve %s upsert: %w", token, err)
		}
	}
	return nil
}

// approvalWindowKey mirrors internal/approval's unexported windowKey so
// the Snapshot stage can look up a window's verdict by the same key
// Approve persisted it under.
func approvalWindowKey(chain, token, window string, windowStart time.Time) string {
	return chain + ":" + token + ":" + window + ":" + windowStart.UTC().Format(time.RFC3339)
}

// Snapshot folds every tracked token's APPROVED/QUARANTINED window into
// one actor/edge graph per window label (spec §4.5, C5). A REJECTED
// window's events never reach the graph.
func (d *Deps) Snapshot(ctx context.Context, cfg orchestrator.JobConfig) error {
	dur, err := kernel.Window(cfg.Window).Duration()
	if err != nil {
		return fmt.Errorf("pipeline: snapshot: %w", err)
	}

	var events []store.RawEvent
	var windowEnd time.Time
	have := false

	for _, token := range d.Tokens {
		cur, err := d.Repo.Cursors.Get(ctx, token, cfg.Window)
		if err != nil {
			return fmt.Errorf("pipeline: snapshot %s cursor: %w", token, err)
		}
		if cur == nil {
			continue
		}
		windowStart := cur.LastWindowEnd.Add(-dur)

		key := approvalWindowKey(d.Chain, token, cfg.Window, windowStart)
		verdict, err := d.Repo.Approvals.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("pipeline: snapshot %s verdict: %w", token, err)
		}
		if verdict == nil || verdict.Verdict == approval.VerdictRejected {
			continue
		}

		tokenEvents, err := d.Repo.RawEvents.RangeByToken(ctx, token, store.TimeRange{From: windowStart, To: cur.LastWindowEnd}, 0)
		if err != nil {
			return fmt.Errorf("pipeline: snapshot %s events: %w", token, err)
		}
		events = append(events, tokenEvents...)
		if !have || cur.LastWindowEnd.After(windowEnd) {
			windowEnd = cur.LastWindowEnd
			have = true
		}
	}

	if !have {
		return nil
	}

	previous, err := d.Repo.Snapshots.GetLatest(ctx, cfg.Window)
	if err != nil {
		return fmt.Errorf("pipeline: snapshot latest: %w", err)
	}

	// Named-actor attribution is an external data source this pipeline
	// does not ingest (SPEC_FULL §6 non-goal: token metadata ingestion);
	// every actor is built as unknown/behavioral until that source exists.
	known := map[string]store.Actor{}

	snap := snapshot.Build(cfg.Window, windowEnd, events, known, previous, d.SnapshotConfig)
	if err := d.Repo.Snapshots.Insert(ctx, snap); err != nil {
		return fmt.Errorf("pipeline: snapshot insert: %w", err)
	}
	return nil
}

// Signal runs the detector catalog against the latest viable snapshot
// pair (spec §4.6, C6). Non-viable snapshots are never passed to the
// engine.
func (d *Deps) Signal(ctx context.Context, cfg orchestrator.JobConfig) error {
	cur, err := d.Repo.Snapshots.GetLatest(ctx, cfg.Window)
	if err != nil {
		return fmt.Errorf("pipeline: signal latest snapshot: %w", err)
	}
	if cur == nil || !cur.IsViable {
		return nil
	}
	prev, err := d.previousViableSnapshot(ctx, cfg.Window, cur)
	if err != nil {
		return fmt.Errorf("pipeline: signal previous snapshot: %w", err)
	}

	th := d.SignalThresholds[cfg.Window]
	signals, errs := d.Engine.Run(cur, prev, cfg.Window, th, time.Now().UTC())
	for _, e := range errs {
		log.Warn().Err(e).Str("window", cfg.Window).Msg("pipeline: signal engine reported a non-fatal error")
	}
	for _, sig := range signals {
		if err := d.Repo.Signals.Upsert(ctx, sig); err != nil {
			return fmt.Errorf("pipeline: signal upsert %s: %w", sig.ID, err)
		}
		d.publish(ctx, eventbus.TopicSignalNew, sig.ID, sig)
	}
	return nil
}

func (d *Deps) previousViableSnapshot(ctx context.Context, window string, cur *store.Snapshot) (*store.Snapshot, error) {
	lookback := store.TimeRange{From: cur.SnapshotAt.Add(-viableLookback), To: cur.SnapshotAt}
	snaps, err := d.Repo.Snapshots.ListRange(ctx, window, lookback)
	if err != nil {
		return nil, err
	}
	var prev *store.Snapshot
	for i := range snaps {
		s := snaps[i]
		if s.ID == cur.ID || !s.IsViable {
			continue
		}
		if prev == nil || s.SnapshotAt.After(prev.SnapshotAt) {
			sc := s
			prev = &sc
		}
	}
	return prev, nil
}

// Lifecycle recomputes confidence for every NEW/ACTIVE/COOLDOWN signal
// in window and advances its lifecycle state machine (spec §4.7, §4.8,
// C7, C8).
func (d *Deps) Lifecycle(ctx context.Context, cfg orchestrator.JobConfig) error {
	dur, err := kernel.Window(cfg.Window).Duration()
	if err != nil {
		return fmt.Errorf("pipeline: lifecycle: %w", err)
	}
	now := time.Now().UTC()

	var signals []store.Signal
	for _, state := range []string{lifecycle.StateNew, lifecycle.StateActive, lifecycle.StateCooldown} {
		sigs, err := d.Repo.Signals.ListByState(ctx, state, maxLifecycleBatch)
		if err != nil {
			return fmt.Errorf("pipeline: lifecycle list %s: %w", state, err)
		}
		signals = append(signals, sigs...)
	}

	cur, err := d.Repo.Snapshots.GetLatest(ctx, cfg.Window)
	if err != nil {
		return fmt.Errorf("pipeline: lifecycle latest snapshot: %w", err)
	}
	var prev *store.Snapshot
	if cur != nil {
		prev, err = d.previousViableSnapshot(ctx, cfg.Window, cur)
		if err != nil {
			return fmt.Errorf("pipeline: lifecycle previous snapshot: %w", err)
		}
	}

	for _, sig := range signals {
		if sig.WindowLabel != cfg.Window {
			continue
		}
		triggered := now.Sub(sig.LastTriggeredAt) < dur

		trace := confidence.Calculate(confidence.Input{
			Signal:                sig,
			Snapshot:              cur,
			PrevSnapshot:          prev,
			ActorWeight:           defaultActorWeight,
			EffectiveActiveActors: 1,
			ActorGuardThreshold:   0, // no actor-attribution subsystem built; guard disabled
			MinClustersForBoost:   0,
			Now:                   now,
		})
		if err := d.Repo.ConfidenceTraces.Insert(ctx, trace); err != nil {
			return fmt.Errorf("pipeline: lifecycle trace insert %s: %w", sig.ID, err)
		}

		next := lifecycle.Apply(lifecycle.State{
			LifecycleState:          sig.LifecycleState,
			SnapshotsWithoutTrigger: sig.SnapshotsWithoutTrigger,
			ResolveReason:           sig.ResolveReason,
		}, lifecycle.Input{Triggered: triggered, Confidence: int(trace.FinalScore)})

		updated := sig
		updated.LifecycleState = next.LifecycleState
		updated.SnapshotsWithoutTrigger = next.SnapshotsWithoutTrigger
		updated.ResolveReason = next.ResolveReason
		updated.Confidence = int(trace.FinalScore)
		if triggered {
			updated.LastTriggeredAt = now
		}

		if err := d.Repo.Signals.Update(ctx, updated, sig.Version); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				log.Debug().Str("signal", sig.ID).Msg("pipeline: lifecycle update lost a race, retrying next tick")
				continue
			}
			return fmt.Errorf("pipeline: lifecycle update %s: %w", sig.ID, err)
		}
		if updated.LifecycleState != sig.LifecycleState {
			d.publish(ctx, eventbus.TopicSignalStateChanged, updated.ID, updated)
		}
	}
	return nil
}

// Rank aggregates every subject's active signals into one RankingResult
// per subject (spec §4.9, C9).
func (d *Deps) Rank(ctx context.Context, cfg orchestrator.JobConfig) error {
	signals, err := d.Repo.Signals.ListActive(ctx, cfg.Window)
	if err != nil {
		return fmt.Errorf("pipeline: rank list active: %w", err)
	}

	cur, err := d.Repo.Snapshots.GetLatest(ctx, cfg.Window)
	if err != nil {
		return fmt.Errorf("pipeline: rank latest snapshot: %w", err)
	}
	coverage := 0.0
	if cur != nil {
		coverage = cur.Coverage.ActorsPct
	}

	bySubject := map[string][]store.Signal{}
	for _, sig := range signals {
		bySubject[sig.SubjectKey()] = append(bySubject[sig.SubjectKey()], sig)
	}

	now := time.Now().UTC()
	for subjectID, sigs := range bySubject {
		result, _ := ranking.Aggregate(ranking.AggregateInput{
			SubjectKind: "actor",
			SubjectID:   subjectID,
			Window:      cfg.Window,
			Signals:     sigs,
			Coverage:    coverage,
			// No cluster-pass/penalty-rate tracking subsystem is built yet
			// (SPEC_FULL §6 non-goal scope); these stay neutral until one is.
			ClusterPassRate: 100,
			PenaltyRate:     0,
			AntiSpamFactor:  1,
			Weights:         d.SignalWeights,
			Now:             now,
		})

		if err := d.Repo.Rankings.Upsert(ctx, result); err != nil {
			return fmt.Errorf("pipeline: rank upsert %s: %w", subjectID, err)
		}
	}
	return nil
}

// Decide gates every currently ranked subject through the decision
// cascade and supersedes any prior active decision (spec §4.9, C9).
func (d *Deps) Decide(ctx context.Context, cfg orchestrator.JobConfig) error {
	dur, err := kernel.Window(cfg.Window).Duration()
	if err != nil {
		return fmt.Errorf("pipeline: decide: %w", err)
	}

	rankings, err := d.Repo.Rankings.Top(ctx, cfg.Window, maxRankedSubjectsPerTick)
	if err != nil {
		return fmt.Errorf("pipeline: decide top rankings: %w", err)
	}

	now := time.Now().UTC()
	for _, r := range rankings {
		decision := ranking.Decide(ranking.GateInput{
			Ranking:      r,
			EngineStatus: ranking.EngineStatusOK, // no market-wide drift detector built yet
			TTLSeconds:   int(dur.Seconds()),
			Now:          now,
		}, d.GateThresholds)
		decision.ID = kernel.StableID(decision.SubjectKind, decision.SubjectID, decision.Window, now.Format(time.RFC3339Nano))

		previous, err := d.Repo.Decisions.GetActive(ctx, decision.SubjectKind, decision.SubjectID, decision.Window)
		if err != nil {
			return fmt.Errorf("pipeline: decide get active %s: %w", decision.SubjectID, err)
		}

		if err := d.Repo.Decisions.Insert(ctx, decision); err != nil {
			return fmt.Errorf("pipeline: decide insert %s: %w", decision.SubjectID, err)
		}
		if previous != nil {
			if err := d.Repo.Decisions.Supersede(ctx, previous.ID, decision.ID); err != nil {
				return fmt.Errorf("pipeline: decide supersede %s: %w", previous.ID, err)
			}
		}
	}
	return nil
}
