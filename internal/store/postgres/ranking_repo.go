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

type rankingRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newRankingRepo(db *sqlx.DB, timeout time.Duration) store.RankingRepo {
	return &rankingRepo{db: db, timeout: timeout}
}

const rankingSelectColumns = `subject_kind, subject_id, window, coverage, evidence, direction, risk, confidence,
	cluster_pass_rate, avg_dominance, penalty_rate, active_signals, lifecycle_mix,
	top_signals, avg_signal_age_hours, freshness_factor, rank_score, bucket, rank_trace, computed_at`

func (r *rankingRepo) Upsert(ctx context.Context, res store.RankingResult) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	lifecycleMixJSON, err := json.Marshal(res.LifecycleMix)
	if err != nil {
		return fmt.Errorf("store: marshal lifecycle mix: %w", err)
	}
	topSignalsJSON, err := json.Marshal(res.TopSignals)
	if err != nil {
		return fmt.Errorf("store: marshal top signals: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ranking_results (
			subject_kind, subject_id, window, coverage, evidence, direction, risk, confidence,
			cluster_pass_rate, avg_dominance, penalty_rate, active_signals, lifecycle_mix,
			top_signals, avg_signal_age_hours, freshness_factor, rank_score, bucket, rank_trace, computed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19, now())
		ON CONFLICT (subject_kind, subject_id, window) DO UPDATE SET
			coverage = EXCLUDED.coverage,
			evidence = EXCLUDED.evidence,
			direction = EXCLUDED.direction,
			risk = EXCLUDED.risk,
			confidence = EXCLUDED.confidence,
			cluster_pass_rate = EXCLUDED.cluster_pass_rate,
			avg_dominance = EXCLUDED.avg_dominance,
			penalty_rate = EXCLUDED.penalty_rate,
			active_signals = EXCLUDED.active_signals,
			lifecycle_mix = EXCLUDED.lifecycle_mix,
			top_signals = EXCLUDED.top_signals,
			avg_signal_age_hours = EXCLUDED.avg_signal_age_hours,
			freshness_factor = EXCLUDED.freshness_factor,
			rank_score = EXCLUDED.rank_score,
			bucket = EXCLUDED.bucket,
			rank_trace = EXCLUDED.rank_trace,
			computed_at = EXCLUDED.computed_at`,
		res.SubjectKind, res.SubjectID, res.Window, res.Coverage, res.Evidence, res.Direction, res.Risk, res.Confidence,
		res.ClusterPassRate, res.AvgDominance, res.PenaltyRate, res.ActiveSignals, lifecycleMixJSON,
		topSignalsJSON, res.AvgSignalAgeHours, res.FreshnessFactor, res.RankScore, res.Bucket, res.RankTraceJSON)
	if err != nil {
		return fmt.Errorf("store: upsert ranking result: %w", err)
	}
	return nil
}

func (r *rankingRepo) Get(ctx context.Context, subjectKind, subjectID, window string) (*store.RankingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+rankingSelectColumns+`
		FROM ranking_results WHERE subject_kind = $1 AND subject_id = $2 AND window = $3`, subjectKind, subjectID, window)
	res, err := scanRankingResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return res, err
}

func (r *rankingRepo) ListByBucket(ctx context.Context, bucket, window string, limit int) ([]store.RankingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rankingSelectColumns+`
		FROM ranking_results WHERE bucket = $1 AND window = $2 ORDER BY rank_score DESC LIMIT $3`, bucket, window, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list ranking results by bucket: %w", err)
	}
	defer rows.Close()
	return scanRankingRows(rows)
}

func (r *rankingRepo) Top(ctx context.Context, window string, limit int) ([]store.RankingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rankingSelectColumns+`
		FROM ranking_results WHERE window = $1 ORDER BY rank_score DESC LIMIT $2`, window, limit)
	if err != nil {
		return nil, fmt.Errorf("store: top ranking results: %w", err)
	}
	defer rows.Close()
	return scanRankingRows(rows)
}

func scanRankingRows(rows *sql.Rows) ([]store.RankingResult, error) {
	var out []store.RankingResult
	for rows.Next() {
		res, err := scanRankingResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func scanRankingResult(row rowScanner) (*store.RankingResult, error) {
	var res store.RankingResult
	var lifecycleMixJSON, topSignalsJSON []byte
	err := row.Scan(&res.SubjectKind, &res.SubjectID, &res.Window, &res.Coverage, &res.Evidence, &res.Direction, &res.Risk, &res.Confidence,
		&res.ClusterPassRate, &res.AvgDominance, &res.PenaltyRate, &res.ActiveSignals, &lifecycleMixJSON,
		&topSignalsJSON, &res.AvgSignalAgeHours, &res.FreshnessFactor, &res.RankScore, &res.Bucket, &res.RankTraceJSON, &res.ComputedAt)
	if err != nil {
		return nil, fmt.Errorf("store: scan ranking result: %w", err)
	}
	if len(lifecycleMixJSON) > 0 {
		if err := json.Unmarshal(lifecycleMixJSON, &res.LifecycleMix); err != nil {
			return nil, fmt.Errorf("store: unmarshal lifecycle mix: %w", err)
		}
	}
	if len(topSignalsJSON) > 0 {
		if err := json.Unmarshal(topSignalsJSON, &res.TopSignals); err != nil {
			return nil, fmt.Errorf("store: unmarshal top signals: %w", err)
		}
	}
	return &res, nil
}
