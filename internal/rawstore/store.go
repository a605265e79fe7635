// Package rawstore is the thin domain-facing wrapper over the raw event
// persistence layer (spec §4.2, C2). It adds a stable cursor iterator on
// top of store.RawEventRepo so callers can page through a range without
// holding the whole result set in memory.
package rawstore

import (
	"context"
	"fmt"

	"github.com/sentrychain/pulse/internal/store"
)

// Store is the raw-event-facing surface the aggregator (C3) and the
// chain ingestion job consume. It is a restatement of store.RawEventRepo
// under domain-specific names plus OpenCursor.
type Store struct {
	repo store.RawEventRepo
}

func New(repo store.RawEventRepo) *Store {
	return &Store{repo: repo}
}

func (s *Store) Insert(ctx context.Context, ev store.RawEvent) error {
	return s.repo.Insert(ctx, ev)
}

func (s *Store) InsertBatch(ctx context.Context, events []store.RawEvent) (int, error) {
	return s.repo.InsertBatch(ctx, events)
}

func (s *Store) RangeByTokenTime(ctx context.Context, token string, tr store.TimeRange, limit int) ([]store.RawEvent, error) {
	return s.repo.RangeByToken(ctx, token, tr, limit)
}

func (s *Store) RangeByTxHash(ctx context.Context, txHash string) ([]store.RawEvent, error) {
	return s.repo.RangeByTxHash(ctx, txHash)
}

// Cursor iterates a token's raw events over a fixed time range in
// pages, giving callers a stable view even if new events are inserted
// concurrently (spec §4.2 "stable snapshot iterator").
type Cursor struct {
	store    *Store
	token    string
	tr       store.TimeRange
	pageSize int
	offset   store.TimeRange
	buf      []store.RawEvent
	pos      int
	done     bool
}

// OpenCursor returns a Cursor that pages through [tr.From, tr.To) for
// token, pageSize events at a time.
func (s *Store) OpenCursor(token string, tr store.TimeRange, pageSize int) *Cursor {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Cursor{store: s, token: token, tr: tr, pageSize: pageSize, offset: tr}
}

// Next returns the next raw event, or (zero, false) once the range is
// exhausted. It fetches pages lazily so a caller scanning a large range
// never holds more than pageSize events in memory at once.
func (c *Cursor) Next(ctx context.Context) (store.RawEvent, bool, error) {
	for c.pos >= len(c.buf) {
		if c.done {
			return store.RawEvent{}, false, nil
		}
		page, err := c.store.RangeByTokenTime(ctx, c.token, c.offset, c.pageSize)
		if err != nil {
			return store.RawEvent{}, false, fmt.Errorf("rawstore: cursor fetch: %w", err)
		}
		if len(page) == 0 {
			c.done = true
			return store.RawEvent{}, false, nil
		}
		c.buf = page
		c.pos = 0
		if len(page) < c.pageSize {
			c.done = true
		} else {
			last := page[len(page)-1]
			c.offset = store.TimeRange{From: last.Timestamp, To: c.tr.To}
		}
	}
	ev := c.buf[c.pos]
	c.pos++
	return ev, true, nil
}
