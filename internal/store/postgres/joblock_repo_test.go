package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrychain/pulse/internal/store"
)

func TestJobLockAcquireSucceeds(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := newJobLockRepo(db, 5*time.Second)

	mock.ExpectExec("INSERT INTO job_locks").
		WithArgs("aggregate:USDC:1h", "orch-1@host-a", 30).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Acquire(context.Background(), "aggregate:USDC:1h", "orch-1@host-a", 30*time.Second)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobLockAcquireConflict(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := newJobLockRepo(db, 5*time.Second)

	mock.ExpectExec("INSERT INTO job_locks").
		WithArgs("aggregate:USDC:1h", "orch-2@host-b", 30).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT key, locked_by, locked_at, ttl_sec FROM job_locks").
		WithArgs("aggregate:USDC:1h").
		WillReturnRows(sqlmock.NewRows([]string{"key", "locked_by", "locked_at", "ttl_sec"}).
			AddRow("aggregate:USDC:1h", "orch-1@host-a", time.Now(), 30))

	err = repo.Acquire(context.Background(), "aggregate:USDC:1h", "orch-2@host-b", 30*time.Second)
	require.Error(t, err)
	var lockErr *store.ErrLockHeld
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, "orch-1@host-a", lockErr.LockedBy)
}

func TestJobLockHeartbeatLostLease(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := newJobLockRepo(db, 5*time.Second)

	mock.ExpectExec("UPDATE job_locks").
		WithArgs("aggregate:USDC:1h", "orch-1@host-a", 30).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Heartbeat(context.Background(), "aggregate:USDC:1h", "orch-1@host-a", 30*time.Second)
	require.Error(t, err)
	var lockErr *store.ErrLockHeld
	require.ErrorAs(t, err, &lockErr)
}
