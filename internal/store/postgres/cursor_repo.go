package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sentrychain/pulse/internal/store"
)

type cursorRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newCursorRepo(db *sqlx.DB, timeout time.Duration) store.CursorRepo {
	return &cursorRepo{db: db, timeout: timeout}
}

func (r *cursorRepo) Get(ctx context.Context, token, window string) (*store.AggregationCursor, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var cur store.AggregationCursor
	err := r.db.GetContext(ctx, &cur, `
		SELECT token, window, last_window_end, last_processed_block, updated_at
		FROM aggregation_cursors WHERE token = $1 AND window = $2`, token, window)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get cursor: %w", err)
	}
	return &cur, nil
}

// Upsert is the only writer of cursor state; callers serialize via the
// aggregator's logical per-(token,window) lock so this never races with
// itself (spec §4.3 invariant: monotonic cursor advance).
func (r *cursorRepo) Upsert(ctx context.Context, cur store.AggregationCursor) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO aggregation_cursors (token, window, last_window_end, last_processed_block, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (token, window) DO UPDATE SET
			last_window_end = EXCLUDED.last_window_end,
			last_processed_block = EXCLUDED.last_processed_block,
			updated_at = now()`,
		cur.Token, cur.Window, cur.LastWindowEnd, cur.LastProcessedBlock)
	if err != nil {
		return fmt.Errorf("store: upsert cursor: %w", err)
	}
	return nil
}

func (r *cursorRepo) ListStale(ctx context.Context, olderThan time.Time) ([]store.AggregationCursor, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []store.AggregationCursor
	err := r.db.SelectContext(ctx, &out, `
		SELECT token, window, last_window_end, last_processed_block, updated_at
		FROM aggregation_cursors WHERE updated_at < $1
		ORDER BY updated_at ASC`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("store: list stale cursors: %w", err)
	}
	return out, nil
}
