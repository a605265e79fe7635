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

type decisionRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newDecisionRepo(db *sqlx.DB, timeout time.Duration) store.DecisionRepo {
	return &decisionRepo{db: db, timeout: timeout}
}

const decisionSelectColumns = `id, subject_kind, subject_id, window, decision_type, confidence_band,
	blocked, reasons, ttl_seconds, superseded_by, created_at`

func (r *decisionRepo) Insert(ctx context.Context, d store.Decision) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reasonsJSON, err := json.Marshal(d.Reasons)
	if err != nil {
		return fmt.Errorf("store: marshal decision reasons: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO decisions (id, subject_kind, subject_id, window, decision_type, confidence_band, blocked, reasons, ttl_seconds, superseded_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now())`,
		d.ID, d.SubjectKind, d.SubjectID, d.Window, d.DecisionType, d.ConfidenceBand, d.Blocked, reasonsJSON, d.TTLSeconds, d.SupersededBy)
	if err != nil {
		return fmt.Errorf("store: insert decision: %w", err)
	}
	return nil
}

func (r *decisionRepo) GetActive(ctx context.Context, subjectKind, subjectID, window string) (*store.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+decisionSelectColumns+`
		FROM decisions
		WHERE subject_kind = $1 AND subject_id = $2 AND window = $3 AND superseded_by IS NULL
		ORDER BY created_at DESC LIMIT 1`, subjectKind, subjectID, window)
	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// Supersede marks oldID as replaced by newID. It never deletes the old
// row: decisions form an append-only chain so a ranking's history can
// always be replayed (spec §4.9).
func (r *decisionRepo) Supersede(ctx context.Context, oldID, newID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `UPDATE decisions SET superseded_by = $1 WHERE id = $2`, newID, oldID)
	if err != nil {
		return fmt.Errorf("store: supersede decision: %w", err)
	}
	return nil
}

func (r *decisionRepo) ListRecent(ctx context.Context, tr store.TimeRange, limit int) ([]store.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+decisionSelectColumns+`
		FROM decisions WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at DESC LIMIT $3`, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list recent decisions: %w", err)
	}
	defer rows.Close()

	var out []store.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDecision(row rowScanner) (*store.Decision, error) {
	var d store.Decision
	var reasonsJSON []byte
	err := row.Scan(&d.ID, &d.SubjectKind, &d.SubjectID, &d.Window, &d.DecisionType, &d.ConfidenceBand,
		&d.Blocked, &reasonsJSON, &d.TTLSeconds, &d.SupersededBy, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: scan decision: %w", err)
	}
	if len(reasonsJSON) > 0 {
		if err := json.Unmarshal(reasonsJSON, &d.Reasons); err != nil {
			return nil, fmt.Errorf("store: unmarshal reasons: %w", err)
		}
	}
	return &d, nil
}
