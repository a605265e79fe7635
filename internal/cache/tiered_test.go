package cache

import (
	"context"
	"testing"
	"time"
)

type fakeRemote struct {
	data map[string]string
}

func newFakeRemote() *fakeRemote { return &fakeRemote{data: map[string]string{}} }

func (f *fakeRemote) Get(ctx context.Context, key string) (string, error) {
	return f.data[key], nil
}

func (f *fakeRemote) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeRemote) Del(ctx context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func TestKeyScheme(t *testing.T) {
	if got := Key("actor", "0xabc", ModeRaw, ""); got != "graph:actor:0xabc:raw" {
		t.Errorf("Key = %s, want graph:actor:0xabc:raw", got)
	}
	if got := Key("actor", "0xabc", ModeCalibrated, "3"); got != "graph:actor:0xabc:calibrated:3" {
		t.Errorf("Key = %s, want graph:actor:0xabc:calibrated:3", got)
	}
}

func TestSetThenGetHitsLocalTier(t *testing.T) {
	remote := newFakeRemote()
	c := NewTiered(remote, 10)
	ctx := context.Background()

	c.Set(ctx, "graph:actor:1:raw", "value1", ModeRaw)
	got, ok := c.Get(ctx, "graph:actor:1:raw")
	if !ok || got != "value1" {
		t.Fatalf("Get = (%q, %v), want (value1, true)", got, ok)
	}
	if c.Stats().Hits != 1 {
		t.Errorf("Hits = %d, want 1", c.Stats().Hits)
	}
}

func TestGetFallsThroughToRemoteOnLocalMiss(t *testing.T) {
	remote := newFakeRemote()
	remote.data["graph:actor:2:raw"] = "remote-value"
	c := NewTiered(remote, 10)

	got, ok := c.Get(context.Background(), "graph:actor:2:raw")
	if !ok || got != "remote-value" {
		t.Fatalf("Get = (%q, %v), want (remote-value, true)", got, ok)
	}
}

func TestGetMissesWhenAbsentFromBothTiers(t *testing.T) {
	c := NewTiered(newFakeRemote(), 10)
	_, ok := c.Get(context.Background(), "graph:actor:missing:raw")
	if ok {
		t.Error("expected a miss for a key absent from both tiers")
	}
}

func TestEvictLRURemovesOldestOnOverflow(t *testing.T) {
	c := NewTiered(newFakeRemote(), 2)
	ctx := context.Background()

	c.Set(ctx, "k1", "v1", ModeRaw)
	c.Set(ctx, "k2", "v2", ModeRaw)
	c.Set(ctx, "k3", "v3", ModeRaw)

	if c.Stats().Entries > 2 {
		t.Errorf("Entries = %d, want <= 2 after eviction", c.Stats().Entries)
	}
}

func TestInvalidateRemovesFromBothTiers(t *testing.T) {
	remote := newFakeRemote()
	c := NewTiered(remote, 10)
	ctx := context.Background()

	c.Set(ctx, "k1", "v1", ModeRaw)
	c.Invalidate(ctx, "k1")

	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("expected key to be gone after Invalidate")
	}
}
