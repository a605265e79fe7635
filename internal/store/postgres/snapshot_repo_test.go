package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrychain/pulse/internal/store"
)

func TestSnapshotRepoInsert(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := newSnapshotRepo(db, 5*time.Second)

	mock.ExpectExec("INSERT INTO snapshots").
		WithArgs("snap-1", "1h", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), true, "hash-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	snap := store.Snapshot{ID: "snap-1", Window: "1h", SnapshotAt: time.Now(), IsViable: true, SnapshotHash: "hash-1"}
	require.NoError(t, repo.Insert(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepoGetLatest(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := newSnapshotRepo(db, 5*time.Second)

	actorsJSON, _ := json.Marshal([]store.Actor{{ActorID: "0xA"}})
	edgesJSON, _ := json.Marshal([]store.Edge{})
	statsJSON, _ := json.Marshal(store.SnapshotStats{ActorCount: 1})
	coverageJSON, _ := json.Marshal(store.Coverage{})
	stabilityJSON, _ := json.Marshal(store.Stability{})

	rows := sqlmock.NewRows([]string{"id", "window", "snapshot_at", "actors", "edges", "stats", "coverage", "stability", "is_viable", "snapshot_hash", "created_at"}).
		AddRow("snap-1", "1h", time.Now(), actorsJSON, edgesJSON, statsJSON, coverageJSON, stabilityJSON, true, "hash-1", time.Now())
	mock.ExpectQuery("SELECT id, window, snapshot_at").WillReturnRows(rows)

	snap, err := repo.GetLatest(context.Background(), "1h")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "snap-1", snap.ID)
	assert.Len(t, snap.Actors, 1)
}
