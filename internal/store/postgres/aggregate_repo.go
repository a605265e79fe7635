package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sentrychain/pulse/internal/store"
)

type aggregateRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newAggregateRepo(db *sqlx.DB, timeout time.Duration) store.AggregateRepo {
	return &aggregateRepo{db: db, timeout: timeout}
}

const aggregateSelectColumns = `chain, token, window, window_start, window_end,
	inflow_count, outflow_count, inflow_amount, outflow_amount, net_flow_amount,
	unique_senders, unique_receivers, unique_actors, event_count, first_block, last_block, created_at`

// Upsert is content-idempotent: replaying the same range produces the
// same row, so a crashed Tick that partially advanced its cursor can
// safely redo the fold (spec §4.3 invariant).
func (r *aggregateRepo) Upsert(ctx context.Context, agg store.WindowAggregate) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO window_aggregates (
			chain, token, window, window_start, window_end,
			inflow_count, outflow_count, inflow_amount, outflow_amount, net_flow_amount,
			unique_senders, unique_receivers, unique_actors, event_count, first_block, last_block, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16, now())
		ON CONFLICT (token, window, window_start) DO UPDATE SET
			inflow_count = EXCLUDED.inflow_count,
			outflow_count = EXCLUDED.outflow_count,
			inflow_amount = EXCLUDED.inflow_amount,
			outflow_amount = EXCLUDED.outflow_amount,
			net_flow_amount = EXCLUDED.net_flow_amount,
			unique_senders = EXCLUDED.unique_senders,
			unique_receivers = EXCLUDED.unique_receivers,
			unique_actors = EXCLUDED.unique_actors,
			event_count = EXCLUDED.event_count,
			first_block = EXCLUDED.first_block,
			last_block = EXCLUDED.last_block`,
		agg.Chain, agg.Token, agg.Window, agg.WindowStart, agg.WindowEnd,
		agg.InflowCount, agg.OutflowCount, agg.InflowAmount, agg.OutflowAmount, agg.NetFlowAmount,
		agg.UniqueSenders, agg.UniqueReceivers, agg.UniqueActors, agg.EventCount, agg.FirstBlock, agg.LastBlock)
	if err != nil {
		return fmt.Errorf("store: upsert window aggregate: %w", err)
	}
	return nil
}

func (r *aggregateRepo) Get(ctx context.Context, token, window string, windowStart time.Time) (*store.WindowAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var agg store.WindowAggregate
	err := r.db.GetContext(ctx, &agg, `
		SELECT `+aggregateSelectColumns+`
		FROM window_aggregates WHERE token = $1 AND window = $2 AND window_start = $3`,
		token, window, windowStart)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get window aggregate: %w", err)
	}
	return &agg, nil
}

func (r *aggregateRepo) ListByToken(ctx context.Context, token, window string, tr store.TimeRange) ([]store.WindowAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []store.WindowAggregate
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+aggregateSelectColumns+`
		FROM window_aggregates
		WHERE token = $1 AND window = $2 AND window_start >= $3 AND window_start < $4
		ORDER BY window_start ASC`, token, window, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("store: list window aggregates: %w", err)
	}
	return out, nil
}

func (r *aggregateRepo) Previous(ctx context.Context, token, window string, beforeWindowStart time.Time) (*store.WindowAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var agg store.WindowAggregate
	err := r.db.GetContext(ctx, &agg, `
		SELECT `+aggregateSelectColumns+`
		FROM window_aggregates
		WHERE token = $1 AND window = $2 AND window_start < $3
		ORDER BY window_start DESC LIMIT 1`, token, window, beforeWindowStart)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: previous window aggregate: %w", err)
	}
	return &agg, nil
}
