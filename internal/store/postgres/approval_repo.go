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

type approvalRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newApprovalRepo(db *sqlx.DB, timeout time.Duration) store.ApprovalRepo {
	return &approvalRepo{db: db, timeout: timeout}
}

func (r *approvalRepo) Upsert(ctx context.Context, v store.ApprovalVerdict) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rulesJSON, err := json.Marshal(v.TriggeredRules)
	if err != nil {
		return fmt.Errorf("store: marshal triggered rules: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO approval_verdicts (window_key, verdict, triggered_rules, total_penalty, evaluated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (window_key) DO UPDATE SET
			verdict = EXCLUDED.verdict,
			triggered_rules = EXCLUDED.triggered_rules,
			total_penalty = EXCLUDED.total_penalty,
			evaluated_at = EXCLUDED.evaluated_at`,
		v.WindowKey, v.Verdict, rulesJSON, v.TotalPenalty, v.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert approval verdict: %w", err)
	}
	return nil
}

func (r *approvalRepo) Get(ctx context.Context, windowKey string) (*store.ApprovalVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var v store.ApprovalVerdict
	var rulesJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT window_key, verdict, triggered_rules, total_penalty, evaluated_at
		FROM approval_verdicts WHERE window_key = $1`, windowKey).
		Scan(&v.WindowKey, &v.Verdict, &rulesJSON, &v.TotalPenalty, &v.EvaluatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get approval verdict: %w", err)
	}
	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &v.TriggeredRules); err != nil {
			return nil, fmt.Errorf("store: unmarshal triggered rules: %w", err)
		}
	}
	return &v, nil
}

func (r *approvalRepo) ListByVerdict(ctx context.Context, verdict string, tr store.TimeRange, limit int) ([]store.ApprovalVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT window_key, verdict, triggered_rules, total_penalty, evaluated_at
		FROM approval_verdicts
		WHERE verdict = $1 AND evaluated_at >= $2 AND evaluated_at < $3
		ORDER BY evaluated_at DESC LIMIT $4`, verdict, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list approval verdicts: %w", err)
	}
	defer rows.Close()

	var out []store.ApprovalVerdict
	for rows.Next() {
		var v store.ApprovalVerdict
		var rulesJSON []byte
		if err := rows.Scan(&v.WindowKey, &v.Verdict, &rulesJSON, &v.TotalPenalty, &v.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("store: scan approval verdict: %w", err)
		}
		if len(rulesJSON) > 0 {
			if err := json.Unmarshal(rulesJSON, &v.TriggeredRules); err != nil {
				return nil, fmt.Errorf("store: unmarshal triggered rules: %w", err)
			}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
