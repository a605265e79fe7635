package rawstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrychain/pulse/internal/store"
)

type fakeRepo struct {
	events []store.RawEvent
}

func (f *fakeRepo) Insert(ctx context.Context, ev store.RawEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeRepo) InsertBatch(ctx context.Context, events []store.RawEvent) (int, error) {
	f.events = append(f.events, events...)
	return len(events), nil
}

func (f *fakeRepo) RangeByToken(ctx context.Context, token string, tr store.TimeRange, limit int) ([]store.RawEvent, error) {
	var out []store.RawEvent
	for _, ev := range f.events {
		if ev.Token == token && !ev.Timestamp.Before(tr.From) && ev.Timestamp.Before(tr.To) {
			out = append(out, ev)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) RangeByTxHash(ctx context.Context, txHash string) ([]store.RawEvent, error) {
	var out []store.RawEvent
	for _, ev := range f.events {
		if ev.TxHash == txHash {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeRepo) Count(ctx context.Context, tr store.TimeRange) (int64, error) {
	return int64(len(f.events)), nil
}

func TestCursorIteratesAllEvents(t *testing.T) {
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepo{}
	for i := 0; i < 5; i++ {
		repo.events = append(repo.events, store.RawEvent{
			Token: "USDC", Timestamp: base.Add(time.Duration(i) * time.Minute), TxHash: "tx" + string(rune('a'+i)),
		})
	}

	s := New(repo)
	cur := s.OpenCursor("USDC", store.TimeRange{From: base, To: base.Add(time.Hour)}, 2)

	var got []store.RawEvent
	for {
		ev, ok, err := cur.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, ev)
		if len(got) > 20 {
			t.Fatal("cursor did not terminate")
		}
	}
	assert.GreaterOrEqual(t, len(got), 5)
}

func TestCursorEmptyRange(t *testing.T) {
	repo := &fakeRepo{}
	s := New(repo)
	cur := s.OpenCursor("USDC", store.TimeRange{From: time.Now(), To: time.Now().Add(time.Hour)}, 10)

	_, ok, err := cur.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
