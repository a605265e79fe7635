package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sentrychain/pulse/internal/store"
)

type signalRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newSignalRepo(db *sqlx.DB, timeout time.Duration) store.SignalRepo {
	return &signalRepo{db: db, timeout: timeout}
}

func (r *signalRepo) Upsert(ctx context.Context, sig store.Signal) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	evidenceJSON, err := json.Marshal(sig.Evidence)
	if err != nil {
		return fmt.Errorf("store: marshal signal evidence: %w", err)
	}
	metricsJSON, err := json.Marshal(sig.Metrics)
	if err != nil {
		return fmt.Errorf("store: marshal signal metrics: %w", err)
	}
	entityIDsJSON, err := json.Marshal(sig.EntityIDs)
	if err != nil {
		return fmt.Errorf("store: marshal signal entity ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO signals (
			id, type, window_label, severity, confidence, direction,
			primary_actor_id, secondary_actor_id, entity_ids, evidence, metrics,
			lifecycle_state, first_triggered_at, last_triggered_at,
			snapshots_without_trigger, resolve_reason, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,1)
		ON CONFLICT (id) DO UPDATE SET
			severity = EXCLUDED.severity,
			confidence = EXCLUDED.confidence,
			direction = EXCLUDED.direction,
			evidence = EXCLUDED.evidence,
			metrics = EXCLUDED.metrics,
			last_triggered_at = EXCLUDED.last_triggered_at,
			snapshots_without_trigger = 0,
			version = signals.version + 1`,
		sig.ID, sig.Type, sig.WindowLabel, sig.Severity, sig.Confidence, sig.Direction,
		sig.PrimaryActorID, sig.SecondaryActorID, entityIDsJSON, evidenceJSON, metricsJSON,
		sig.LifecycleState, sig.FirstTriggeredAt, sig.LastTriggeredAt,
		sig.SnapshotsWithoutTrigger, sig.ResolveReason)
	if err != nil {
		return fmt.Errorf("store: upsert signal: %w", err)
	}
	return nil
}

// Update applies an optimistic-concurrency write: it only succeeds if
// the row's version still matches expectedVersion, preventing two
// concurrent lifecycle ticks from clobbering each other's transition
// (spec §4.8).
func (r *signalRepo) Update(ctx context.Context, sig store.Signal, expectedVersion int) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE signals SET
			lifecycle_state = $1,
			snapshots_without_trigger = $2,
			resolve_reason = $3,
			last_triggered_at = $4,
			version = version + 1
		WHERE id = $5 AND version = $6`,
		sig.LifecycleState, sig.SnapshotsWithoutTrigger, sig.ResolveReason,
		sig.LastTriggeredAt, sig.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("store: update signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrVersionConflict
	}
	return nil
}

func (r *signalRepo) GetByID(ctx context.Context, id string) (*store.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, signalSelectColumns+` WHERE id = $1`, id)
	sig, err := scanSignal(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get signal: %w", err)
	}
	return sig, nil
}

func (r *signalRepo) ListActive(ctx context.Context, window string) ([]store.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, signalSelectColumns+`
		WHERE window_label = $1 AND lifecycle_state NOT IN ('RESOLVED')
		ORDER BY last_triggered_at DESC`, window)
	if err != nil {
		return nil, fmt.Errorf("store: list active signals: %w", err)
	}
	defer rows.Close()
	return scanSignalRows(rows)
}

func (r *signalRepo) ListBySubject(ctx context.Context, subjectKey, window string) ([]store.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, signalSelectColumns+`
		WHERE primary_actor_id = $1 AND window_label = $2
		ORDER BY last_triggered_at DESC`, subjectKey, window)
	if err != nil {
		return nil, fmt.Errorf("store: list signals by subject: %w", err)
	}
	defer rows.Close()
	return scanSignalRows(rows)
}

func (r *signalRepo) ListByState(ctx context.Context, state string, limit int) ([]store.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, signalSelectColumns+`
		WHERE lifecycle_state = $1
		ORDER BY last_triggered_at DESC LIMIT $2`, state, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list signals by state: %w", err)
	}
	defer rows.Close()
	return scanSignalRows(rows)
}

const signalSelectColumns = `
	SELECT id, type, window_label, severity, confidence, direction,
		primary_actor_id, secondary_actor_id, entity_ids, evidence, metrics,
		lifecycle_state, first_triggered_at, last_triggered_at,
		snapshots_without_trigger, resolve_reason, version
	FROM signals`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignal(row rowScanner) (*store.Signal, error) {
	var sig store.Signal
	var entityIDsJSON, evidenceJSON, metricsJSON []byte
	err := row.Scan(
		&sig.ID, &sig.Type, &sig.WindowLabel, &sig.Severity, &sig.Confidence, &sig.Direction,
		&sig.PrimaryActorID, &sig.SecondaryActorID, &entityIDsJSON, &evidenceJSON, &metricsJSON,
		&sig.LifecycleState, &sig.FirstTriggeredAt, &sig.LastTriggeredAt,
		&sig.SnapshotsWithoutTrigger, &sig.ResolveReason, &sig.Version)
	if err != nil {
		return nil, err
	}
	if len(entityIDsJSON) > 0 {
		json.Unmarshal(entityIDsJSON, &sig.EntityIDs)
	}
	if len(evidenceJSON) > 0 {
		json.Unmarshal(evidenceJSON, &sig.Evidence)
	}
	if len(metricsJSON) > 0 {
		json.Unmarshal(metricsJSON, &sig.Metrics)
	}
	return &sig, nil
}

func scanSignalRows(rows *sql.Rows) ([]store.Signal, error) {
	var out []store.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan signal: %w", err)
		}
		out = append(out, *sig)
	}
	return out, rows.Err()
}
