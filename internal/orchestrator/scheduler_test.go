package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sentrychain/pulse/internal/store"
)

type fakeLockRepo struct {
	mu    sync.Mutex
	held  map[string]string
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{held: map[string]string{}}
}

func (f *fakeLockRepo) Acquire(ctx context.Context, key, owner string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.held[key]; ok && cur != owner {
		return &store.ErrLockHeld{Key: key, LockedBy: cur}
	}
	f.held[key] = owner
	return nil
}

func (f *fakeLockRepo) Heartbeat(ctx context.Context, key, owner string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] != owner {
		return &store.ErrLockHeld{Key: key, LockedBy: f.held[key]}
	}
	return nil
}

func (f *fakeLockRepo) Release(ctx context.Context, key, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == owner {
		delete(f.held, key)
	}
	return nil
}

func (f *fakeLockRepo) Get(ctx context.Context, key string) (*store.JobLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.held[key]
	if !ok {
		return nil, nil
	}
	return &store.JobLock{Key: key, LockedBy: owner}, nil
}

func TestRunOnceExecutesStageWhenLockAcquired(t *testing.T) {
	locks := newFakeLockRepo()
	var ran bool
	s := NewScheduler(locks, map[string]StageFunc{
		"ingest": func(ctx context.Context, cfg JobConfig) error {
			ran = true
			return nil
		},
	})

	result := s.runOnce(context.Background(), Job{Name: "ingest:1h", Type: "ingest"}, JobConfig{Window: "1h"})
	if !ran {
		t.Fatal("expected the registered stage to run")
	}
	if !result.Success {
		t.Errorf("result.Success = false, error = %s", result.Error)
	}
}

func TestRunOnceSkipsWhenLockHeldByAnotherOwner(t *testing.T) {
	locks := newFakeLockRepo()
	locks.held["ingest:1h"] = "other-owner"

	var ran bool
	s := NewScheduler(locks, map[string]StageFunc{
		"ingest": func(ctx context.Context, cfg JobConfig) error {
			ran = true
			return nil
		},
	})

	result := s.runOnce(context.Background(), Job{Name: "ingest:1h", Type: "ingest"}, JobConfig{Window: "1h"})
	if ran {
		t.Fatal("expected the stage not to run while another owner holds the lock")
	}
	if result.Success {
		t.Error("expected a failed result when the lock could not be acquired")
	}
}

func TestRunOnceAbortsStageWhenHeartbeatFails(t *testing.T) {
	locks := newFakeLockRepo()
	jobName := "ingest:1h"

	stageCanceled := make(chan struct{})
	s := NewScheduler(locks, map[string]StageFunc{
		"ingest": func(ctx context.Context, cfg JobConfig) error {
			// Another owner steals the lease mid-run, as if the lease
			// expired and a second process acquired it.
			locks.mu.Lock()
			locks.held[jobName] = "other-owner"
			locks.mu.Unlock()

			<-ctx.Done()
			close(stageCanceled)
			return ctx.Err()
		},
	})
	s.LockCfg.HeartbeatInterval = 5 * time.Millisecond

	result := s.runOnce(context.Background(), Job{Name: jobName, Type: "ingest"}, JobConfig{Window: "1h"})

	select {
	case <-stageCanceled:
	case <-time.After(time.Second):
		t.Fatal("expected the stage context to be canceled once the heartbeat lost the lease")
	}
	if result.Success {
		t.Error("expected a failed result once the stage observed cancellation")
	}
}

func TestRunOnceReportsMissingStage(t *testing.T) {
	locks := newFakeLockRepo()
	s := NewScheduler(locks, map[string]StageFunc{})

	result := s.runOnce(context.Background(), Job{Name: "ghost:1h", Type: "ghost"}, JobConfig{Window: "1h"})
	if result.Success {
		t.Error("expected failure for an unregistered job type")
	}
}

func TestCheckDependenciesFailsFast(t *testing.T) {
	err := CheckDependencies(context.Background(), []DependencyCheck{
		{Name: "postgres", Check: func(ctx context.Context) error { return nil }},
		{Name: "chain-rpc", Check: func(ctx context.Context) error { return context.DeadlineExceeded }},
	})
	if err == nil {
		t.Fatal("expected an error when a dependency check fails")
	}
}
