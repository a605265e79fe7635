package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sentrychain/pulse/internal/store"
)

type rawEventRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newRawEventRepo(db *sqlx.DB, timeout time.Duration) store.RawEventRepo {
	return &rawEventRepo{db: db, timeout: timeout}
}

// Insert is idempotent on (chain, tx_hash, log_index): a duplicate is
// silently dropped rather than surfaced as an error, matching the
// at-least-once delivery guarantee for chain ingestion (spec §4.2).
func (r *rawEventRepo) Insert(ctx context.Context, ev store.RawEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO raw_events (chain, block_number, log_index, tx_hash, from_addr, to_addr, amount, token, ts, usd_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (chain, tx_hash, log_index) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		ev.Chain, ev.Block, ev.LogIndex, ev.TxHash, ev.From, ev.To,
		ev.Amount, ev.Token, ev.Timestamp, ev.USDValue)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("store: insert raw event (%s): %w", pqErr.Code, err)
		}
		return fmt.Errorf("store: insert raw event: %w", err)
	}
	return nil
}

func (r *rawEventRepo) InsertBatch(ctx context.Context, events []store.RawEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(events)/200+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin batch insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO raw_events (chain, block_number, log_index, tx_hash, from_addr, to_addr, amount, token, ts, usd_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (chain, tx_hash, log_index) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare batch insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, ev := range events {
		res, err := stmt.ExecContext(ctx,
			ev.Chain, ev.Block, ev.LogIndex, ev.TxHash, ev.From, ev.To,
			ev.Amount, ev.Token, ev.Timestamp, ev.USDValue)
		if err != nil {
			return 0, fmt.Errorf("store: batch insert raw event: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit batch insert: %w", err)
	}
	return inserted, nil
}

func (r *rawEventRepo) RangeByToken(ctx context.Context, token string, tr store.TimeRange, limit int) ([]store.RawEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 1_000_000 // effectively unbounded; callers scan a bounded window already
	}

	query := `
		SELECT chain, block_number, log_index, tx_hash, from_addr, to_addr, amount, token, ts, usd_value, inserted_at
		FROM raw_events
		WHERE token = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC, log_index ASC
		LIMIT $4`

	var out []store.RawEvent
	if err := r.db.SelectContext(ctx, &out, query, token, tr.From, tr.To, limit); err != nil {
		return nil, fmt.Errorf("store: range by token: %w", err)
	}
	return out, nil
}

func (r *rawEventRepo) RangeByTxHash(ctx context.Context, txHash string) ([]store.RawEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT chain, block_number, log_index, tx_hash, from_addr, to_addr, amount, token, ts, usd_value, inserted_at
		FROM raw_events
		WHERE tx_hash = $1
		ORDER BY log_index ASC`

	var out []store.RawEvent
	if err := r.db.SelectContext(ctx, &out, query, txHash); err != nil {
		return nil, fmt.Errorf("store: range by tx hash: %w", err)
	}
	return out, nil
}

func (r *rawEventRepo) Count(ctx context.Context, tr store.TimeRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_events WHERE ts >= $1 AND ts < $2`, tr.From, tr.To).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count raw events: %w", err)
	}
	return count, nil
}
