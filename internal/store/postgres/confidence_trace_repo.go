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

type confidenceTraceRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newConfidenceTraceRepo(db *sqlx.DB, timeout time.Duration) store.ConfidenceTraceRepo {
	return &confidenceTraceRepo{db: db, timeout: timeout}
}

// Insert is append-only: every confidence calculation gets its own
// audit row, never overwriting an earlier trace for the same signal
// (spec §4.7).
func (r *confidenceTraceRepo) Insert(ctx context.Context, trace store.ConfidenceTrace) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	componentsJSON, err := json.Marshal(trace.Components)
	if err != nil {
		return fmt.Errorf("store: marshal components: %w", err)
	}
	weightsJSON, err := json.Marshal(trace.ComponentWeights)
	if err != nil {
		return fmt.Errorf("store: marshal component weights: %w", err)
	}
	penaltiesJSON, err := json.Marshal(trace.Penalties)
	if err != nil {
		return fmt.Errorf("store: marshal penalties: %w", err)
	}
	opsJSON, err := json.Marshal(trace.Operations)
	if err != nil {
		return fmt.Errorf("store: marshal operations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO confidence_traces (
			signal_id, components, component_weights, raw_weighted_score, penalties,
			decay_factor, hours_elapsed, cap_applied, cap_value, final_score, label, operations, computed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, now())`,
		trace.SignalID, componentsJSON, weightsJSON, trace.RawWeightedScore, penaltiesJSON,
		trace.DecayFactor, trace.HoursElapsed, trace.CapApplied, trace.CapValue, trace.FinalScore, trace.Label, opsJSON)
	if err != nil {
		return fmt.Errorf("store: insert confidence trace: %w", err)
	}
	return nil
}

const confidenceTraceSelectColumns = `signal_id, components, component_weights, raw_weighted_score, penalties,
	decay_factor, hours_elapsed, cap_applied, cap_value, final_score, label, operations, computed_at`

func (r *confidenceTraceRepo) GetLatestForSignal(ctx context.Context, signalID string) (*store.ConfidenceTrace, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+confidenceTraceSelectColumns+`
		FROM confidence_traces WHERE signal_id = $1 ORDER BY computed_at DESC LIMIT 1`, signalID)
	trace, err := scanConfidenceTrace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return trace, err
}

func (r *confidenceTraceRepo) ListForSignal(ctx context.Context, signalID string, limit int) ([]store.ConfidenceTrace, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+confidenceTraceSelectColumns+`
		FROM confidence_traces WHERE signal_id = $1 ORDER BY computed_at DESC LIMIT $2`, signalID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list confidence traces: %w", err)
	}
	defer rows.Close()

	var out []store.ConfidenceTrace
	for rows.Next() {
		trace, err := scanConfidenceTrace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *trace)
	}
	return out, rows.Err()
}

func scanConfidenceTrace(row rowScanner) (*store.ConfidenceTrace, error) {
	var t store.ConfidenceTrace
	var componentsJSON, weightsJSON, penaltiesJSON, opsJSON []byte
	err := row.Scan(&t.SignalID, &componentsJSON, &weightsJSON, &t.RawWeightedScore, &penaltiesJSON,
		&t.DecayFactor, &t.HoursElapsed, &t.CapApplied, &t.CapValue, &t.FinalScore, &t.Label, &opsJSON, &t.ComputedAt)
	if err != nil {
		return nil, fmt.Errorf("store: scan confidence trace: %w", err)
	}
	if len(componentsJSON) > 0 {
		if err := json.Unmarshal(componentsJSON, &t.Components); err != nil {
			return nil, fmt.Errorf("store: unmarshal components: %w", err)
		}
	}
	if len(weightsJSON) > 0 {
		if err := json.Unmarshal(weightsJSON, &t.ComponentWeights); err != nil {
			return nil, fmt.Errorf("store: unmarshal component weights: %w", err)
		}
	}
	if len(penaltiesJSON) > 0 {
		if err := json.Unmarshal(penaltiesJSON, &t.Penalties); err != nil {
			return nil, fmt.Errorf("store: unmarshal penalties: %w", err)
		}
	}
	if len(opsJSON) > 0 {
		if err := json.Unmarshal(opsJSON, &t.Operations); err != nil {
			return nil, fmt.Errorf("store: unmarshal operations: %w", err)
		}
	}
	return &t, nil
}
