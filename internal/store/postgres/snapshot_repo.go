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

type snapshotRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newSnapshotRepo(db *sqlx.DB, timeout time.Duration) store.SnapshotRepo {
	return &snapshotRepo{db: db, timeout: timeout}
}

// snapshotRow mirrors store.Snapshot with its nested graph/coverage/
// stability fields marshaled to JSON columns, the same pattern used for
// TriggeredRules on ApprovalVerdict.
type snapshotRow struct {
	ID           string    `db:"id"`
	Window       string    `db:"window"`
	SnapshotAt   time.Time `db:"snapshot_at"`
	ActorsJSON   []byte    `db:"actors"`
	EdgesJSON    []byte    `db:"edges"`
	StatsJSON    []byte    `db:"stats"`
	CoverageJSON []byte    `db:"coverage"`
	StabilityJSON []byte   `db:"stability"`
	IsViable     bool      `db:"is_viable"`
	SnapshotHash string    `db:"snapshot_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Insert writes a snapshot; snapshots are immutable once written, so a
// duplicate (window, snapshot_at) pair is rejected rather than
// overwritten (spec §4.5: "never mutates a previous row").
func (r *snapshotRepo) Insert(ctx context.Context, snap store.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	actorsJSON, err := json.Marshal(snap.Actors)
	if err != nil {
		return fmt.Errorf("store: marshal actors: %w", err)
	}
	edgesJSON, err := json.Marshal(snap.Edges)
	if err != nil {
		return fmt.Errorf("store: marshal edges: %w", err)
	}
	statsJSON, err := json.Marshal(snap.Stats)
	if err != nil {
		return fmt.Errorf("store: marshal stats: %w", err)
	}
	coverageJSON, err := json.Marshal(snap.Coverage)
	if err != nil {
		return fmt.Errorf("store: marshal coverage: %w", err)
	}
	stabilityJSON, err := json.Marshal(snap.Stability)
	if err != nil {
		return fmt.Errorf("store: marshal stability: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, window, snapshot_at, actors, edges, stats, coverage, stability, is_viable, snapshot_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now())`,
		snap.ID, snap.Window, snap.SnapshotAt, actorsJSON, edgesJSON, statsJSON, coverageJSON, stabilityJSON, snap.IsViable, snap.SnapshotHash)
	if err != nil {
		return fmt.Errorf("store: insert snapshot: %w", err)
	}
	return nil
}

const snapshotSelectColumns = `id, window, snapshot_at, actors, edges, stats, coverage, stability, is_viable, snapshot_hash, created_at`

func (r *snapshotRepo) GetLatest(ctx context.Context, window string) (*store.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row snapshotRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+snapshotSelectColumns+`
		FROM snapshots WHERE window = $1 ORDER BY snapshot_at DESC LIMIT 1`, window)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get latest snapshot: %w", err)
	}
	return scanSnapshotRow(row)
}

func (r *snapshotRepo) GetByID(ctx context.Context, id string) (*store.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row snapshotRow
	err := r.db.GetContext(ctx, &row, `SELECT `+snapshotSelectColumns+` FROM snapshots WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get snapshot by id: %w", err)
	}
	return scanSnapshotRow(row)
}

func (r *snapshotRepo) ListRange(ctx context.Context, window string, tr store.TimeRange) ([]store.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []snapshotRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+snapshotSelectColumns+`
		FROM snapshots
		WHERE window = $1 AND snapshot_at >= $2 AND snapshot_at < $3
		ORDER BY snapshot_at ASC`, window, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	out := make([]store.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := scanSnapshotRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, nil
}

func scanSnapshotRow(row snapshotRow) (*store.Snapshot, error) {
	snap := &store.Snapshot{
		ID:           row.ID,
		Window:       row.Window,
		SnapshotAt:   row.SnapshotAt,
		IsViable:     row.IsViable,
		SnapshotHash: row.SnapshotHash,
		CreatedAt:    row.CreatedAt,
	}
	if err := json.Unmarshal(row.ActorsJSON, &snap.Actors); err != nil {
		return nil, fmt.Errorf("store: unmarshal actors: %w", err)
	}
	if err := json.Unmarshal(row.EdgesJSON, &snap.Edges); err != nil {
		return nil, fmt.Errorf("store: unmarshal edges: %w", err)
	}
	if err := json.Unmarshal(row.StatsJSON, &snap.Stats); err != nil {
		return nil, fmt.Errorf("store: unmarshal stats: %w", err)
	}
	if err := json.Unmarshal(row.CoverageJSON, &snap.Coverage); err != nil {
		return nil, fmt.Errorf("store: unmarshal coverage: %w", err)
	}
	if err := json.Unmarshal(row.StabilityJSON, &snap.Stability); err != nil {
		return nil, fmt.Errorf("store: unmarshal stability: %w", err)
	}
	return snap, nil
}
