package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sentrychain/pulse/internal/store"
)

type jobLockRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newJobLockRepo(db *sqlx.DB, timeout time.Duration) store.JobLockRepo {
	return &jobLockRepo{db: db, timeout: timeout}
}

// Acquire claims the lock row if it is absent or its lease has expired,
// in a single statement so two orchestrator instances racing on the
// same key cannot both succeed (spec §4.10 "persistent distributed
// lock").
func (r *jobLockRepo) Acquire(ctx context.Context, key, owner string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO job_locks (key, locked_by, locked_at, ttl_sec)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (key) DO UPDATE SET
			locked_by = EXCLUDED.locked_by,
			locked_at = EXCLUDED.locked_at,
			ttl_sec = EXCLUDED.ttl_sec
		WHERE job_locks.locked_at + (job_locks.ttl_sec || ' seconds')::interval < now()
			OR job_locks.locked_by = $2`,
		key, owner, int(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("store: acquire lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: acquire lock rows affected: %w", err)
	}
	if n == 0 {
		cur, getErr := r.Get(ctx, key)
		heldBy := "unknown"
		if getErr == nil && cur != nil {
			heldBy = cur.LockedBy
		}
		return &store.ErrLockHeld{Key: key, LockedBy: heldBy}
	}
	return nil
}

// Heartbeat extends the lease only while owner still holds it, so a
// lock-holder that lost its lease to a takeover detects the conflict
// instead of silently overwriting the new holder (spec §4.10).
func (r *jobLockRepo) Heartbeat(ctx context.Context, key, owner string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE job_locks SET locked_at = now(), ttl_sec = $3
		WHERE key = $1 AND locked_by = $2`, key, owner, int(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("store: heartbeat lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: heartbeat rows affected: %w", err)
	}
	if n == 0 {
		return &store.ErrLockHeld{Key: key, LockedBy: "lost-lease"}
	}
	return nil
}

func (r *jobLockRepo) Release(ctx context.Context, key, owner string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `DELETE FROM job_locks WHERE key = $1 AND locked_by = $2`, key, owner)
	if err != nil {
		return fmt.Errorf("store: release lock: %w", err)
	}
	return nil
}

func (r *jobLockRepo) Get(ctx context.Context, key string) (*store.JobLock, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var lock store.JobLock
	err := r.db.GetContext(ctx, &lock, `SELECT key, locked_by, locked_at, ttl_sec FROM job_locks WHERE key = $1`, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get lock: %w", err)
	}
	return &lock, nil
}
