// Package cache generalizes the teacher's in-process TTLCache
// (internal/data/cache/ttl.go) into a two-tier cache: the same
// map+mutex+TTL+LRU-eviction local layer fronting a shared
// github.com/redis/go-redis/v9 remote tier, with the dual raw(5m)/
// calibrated(30m) TTLs and graph:<kind>:<id>:<mode>[:<version>] key
// scheme this pipeline needs (spec §4.13, C13).
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mode distinguishes the two TTL tiers a cached value can belong to
// (spec §4.13): freshly ingested data decays fast, data that has
// passed through approval/snapshot calibration can sit longer.
type Mode string

const (
	ModeRaw        Mode = "raw"
	ModeCalibrated Mode = "calibrated"
)

const (
	RawTTL        = 5 * time.Minute
	CalibratedTTL = 30 * time.Minute
)

func ttlFor(mode Mode) time.Duration {
	if mode == ModeCalibrated {
		return CalibratedTTL
	}
	return RawTTL
}

// Key builds the graph:<kind>:<id>:<mode>[:<version>] scheme (spec
// §4.13). version is optional; pass "" to omit it.
func Key(kind, id string, mode Mode, version string) string {
	if version == "" {
		return fmt.Sprintf("graph:%s:%s:%s", kind, id, mode)
	}
	return fmt.Sprintf("graph:%s:%s:%s:%s", kind, id, mode, version)
}

// RemoteStore is the subset of *redis.Client this package needs,
// kept as an interface so tests use a small in-memory fake rather than
// a real Redis connection or the v8-only redismock library the
// teacher's parallel go-redis dependency would otherwise pull in.
type RemoteStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type localEntry struct {
	value    string
	expires  time.Time
	accessed time.Time
}

// Tiered is an in-process LRU/TTL layer fronting a RemoteStore (spec
// §4.13). Reads check the local tier first; a miss falls through to
// the remote tier and backfills the local entry. Writes go to both
// tiers so a restarted process still finds warm data in Redis.
type Tiered struct {
	mu         sync.RWMutex
	local      map[string]*localEntry
	maxEntries int
	remote     RemoteStore

	hits, misses int64
}

func NewTiered(remote RemoteStore, maxLocalEntries int) *Tiered {
	return &Tiered{
		local:      map[string]*localEntry{},
		maxEntries: maxLocalEntries,
		remote:     remote,
	}
}

// Get reads key, trying the local tier then the remote tier. The bool
// result reports whether a live (non-expired) value was found.
func (t *Tiered) Get(ctx context.Context, key string) (string, bool) {
	t.mu.Lock()
	entry, ok := t.local[key]
	if ok && time.Now().Before(entry.expires) {
		entry.accessed = time.Now()
		t.hits++
		value := entry.value
		t.mu.Unlock()
		return value, true
	}
	t.mu.Unlock()

	if t.remote == nil {
		t.recordMiss()
		return "", false
	}
	value, err := t.remote.Get(ctx, key)
	if err != nil || value == "" {
		t.recordMiss()
		return "", false
	}
	t.backfillLocal(key, value, ttlFor(ModeRaw))
	t.recordHit()
	return value, true
}

// Set writes key to both tiers with the TTL for mode.
func (t *Tiered) Set(ctx context.Context, key, value string, mode Mode) error {
	ttl := ttlFor(mode)
	t.backfillLocal(key, value, ttl)
	if t.remote == nil {
		return nil
	}
	return t.remote.Set(ctx, key, value, ttl)
}

// Invalidate removes key from both tiers.
func (t *Tiered) Invalidate(ctx context.Context, key string) error {
	t.mu.Lock()
	delete(t.local, key)
	t.mu.Unlock()
	if t.remote == nil {
		return nil
	}
	return t.remote.Del(ctx, key)
}

func (t *Tiered) backfillLocal(key, value string, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.maxEntries > 0 && len(t.local) >= t.maxEntries {
		t.evictLRU()
	}
	t.local[key] = &localEntry{value: value, expires: time.Now().Add(ttl), accessed: time.Now()}
}

// evictLRU removes the least recently accessed entry; caller must hold
// the write lock.
func (t *Tiered) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	for k, e := range t.local {
		if oldestKey == "" || e.accessed.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.accessed
		}
	}
	if oldestKey != "" {
		delete(t.local, oldestKey)
	}
}

func (t *Tiered) recordHit() {
	t.mu.Lock()
	t.hits++
	t.mu.Unlock()
}

func (t *Tiered) recordMiss() {
	t.mu.Lock()
	t.misses++
	t.mu.Unlock()
}

// Stats reports hit/miss counters across both tiers (a remote-tier hit
// counts as a hit) and the local entry count, matching the teacher's
// Stats() shape (hits, misses, hit ratio) without its fixed four-tier
// price/volume breakdown, which has no analogue in this domain.
type Stats struct {
	Hits     int64
	Misses   int64
	HitRatio float64
	Entries  int
}

func (t *Tiered) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := t.hits + t.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(t.hits) / float64(total)
	}
	return Stats{Hits: t.hits, Misses: t.misses, HitRatio: ratio, Entries: len(t.local)}
}
