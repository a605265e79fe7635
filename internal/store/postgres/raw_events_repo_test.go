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

func TestRawEventRepoInsert(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := newRawEventRepo(db, 5*time.Second)

	mock.ExpectExec("INSERT INTO raw_events").
		WithArgs("ethereum", uint64(100), uint32(2), "0xabc", "0xfrom", "0xto", "1000", "USDC", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ev := store.RawEvent{
		Chain: "ethereum", Block: 100, LogIndex: 2, TxHash: "0xabc",
		From: "0xfrom", To: "0xto", Amount: "1000", Token: "USDC",
		Timestamp: time.Now(),
	}
	err = repo.Insert(context.Background(), ev)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRawEventRepoCount(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := newRawEventRepo(db, 5*time.Second)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(42)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(rows)

	n, err := repo.Count(context.Background(), store.TimeRange{From: time.Now().Add(-time.Hour), To: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestRawEventRepoInsertBatchEmpty(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := newRawEventRepo(db, 5*time.Second)

	n, err := repo.InsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
