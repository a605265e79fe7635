package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/google/uuid"

	"github.com/sentrychain/pulse/internal/store"
)

type systemEventRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newSystemEventRepo(db *sqlx.DB, timeout time.Duration) store.SystemEventRepo {
	return &systemEventRepo{db: db, timeout: timeout}
}

func (r *systemEventRepo) Insert(ctx context.Context, ev store.SystemEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CorrelationID == "" {
		ev.CorrelationID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_events (id, correlation_id, severity, source, message, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		ev.ID, ev.CorrelationID, ev.Severity, ev.Source, ev.Message)
	if err != nil {
		return fmt.Errorf("store: insert system event: %w", err)
	}
	return nil
}

func (r *systemEventRepo) Acknowledge(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `UPDATE system_events SET acked_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("store: acknowledge system event: %w", err)
	}
	return nil
}

func (r *systemEventRepo) ListUnacked(ctx context.Context, limit int) ([]store.SystemEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []store.SystemEvent
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, correlation_id, severity, source, message, acked_at, created_at
		FROM system_events WHERE acked_at IS NULL
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list unacked system events: %w", err)
	}
	return out, nil
}
