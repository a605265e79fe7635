package orchestrator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sentrychain/pulse/internal/store"
	"github.com/sentrychain/pulse/internal/telemetry"
)

// StageFunc runs one pipeline stage for one job config. Registered by
// the process wiring up the Scheduler (cmd/pulsed), not by this
// package, so orchestrator never imports the stage packages directly.
type StageFunc func(ctx context.Context, cfg JobConfig) error

// DependencyCheck reports whether a required external system is
// reachable (spec §4.10: "refuse to start the process if a required
// one is down").
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// LockConfig tunes the persistent lease behind each job run.
type LockConfig struct {
	TTL               time.Duration
	HeartbeatInterval time.Duration // defaults to TTL/3
}

func DefaultLockConfig() LockConfig {
	ttl := 30 * time.Second
	return LockConfig{TTL: ttl, HeartbeatInterval: ttl / 3}
}

// Scheduler runs the job catalog, each job protected by a
// store.JobLockRepo lease so at most one process executes a given job
// at a time (spec §4.10 "persistent cross-process execution lock").
type Scheduler struct {
	Locks     store.JobLockRepo
	Owner     string // "pid@host", unique per process
	LockCfg   LockConfig
	Stages    map[string]StageFunc
	ShutdownGrace time.Duration

	// Metrics is optional; when set, every job run records its
	// duration, outcome, and any lock contention against it.
	Metrics *telemetry.Registry

	mu      sync.Mutex
	running bool
	startAt time.Time
}

func NewScheduler(locks store.JobLockRepo, stages map[string]StageFunc) *Scheduler {
	hostname, _ := os.Hostname()
	return &Scheduler{
		Locks:         locks,
		Owner:         fmt.Sprintf("%d@%s", os.Getpid(), hostname),
		LockCfg:       DefaultLockConfig(),
		Stages:        stages,
		ShutdownGrace: 20 * time.Second,
	}
}

// CheckDependencies runs every check and returns the first failure; a
// non-nil error means the process must not start (spec §4.10).
func CheckDependencies(ctx context.Context, checks []DependencyCheck) error {
	for _, c := range checks {
		if err := c.Check(ctx); err != nil {
			return fmt.Errorf("orchestrator: dependency %q unavailable: %w", c.Name, err)
		}
	}
	return nil
}

// Run starts one goroutine per enabled job and blocks until ctx is
// cancelled, then drains in-flight jobs up to ShutdownGrace before
// returning (spec §4.10 "graceful-shutdown deadline draining").
func (s *Scheduler) Run(ctx context.Context, jobs []Job, cfg JobConfig) error {
	s.mu.Lock()
	s.running = true
	s.startAt = time.Now()
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.runLoop(ctx, j, cfg)
		}(job)
	}

	<-ctx.Done()
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-time.After(s.ShutdownGrace):
		return fmt.Errorf("orchestrator: shutdown grace period exceeded with jobs still draining (%d jobs in catalog)", len(jobs))
	}
}

func (s *Scheduler) runLoop(ctx context.Context, job Job, cfg JobConfig) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job, cfg)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job, cfg JobConfig) JobResult {
	result := JobResult{JobName: job.Name, StartTime: time.Now()}

	stage, ok := s.Stages[job.Type]
	if !ok {
		result.Success = false
		result.Error = "no stage registered for job type " + job.Type
		result.EndTime = time.Now()
		return result
	}

	if err := s.Locks.Acquire(ctx, job.Name, s.Owner, s.LockCfg.TTL); err != nil {
		result.Success = false
		result.Error = err.Error()
		result.EndTime = time.Now()
		if s.Metrics != nil {
			s.Metrics.RecordLockContention(job.Name)
		}
		log.Debug().Str("job", job.Name).Err(err).Msg("orchestrator: lock not acquired, another owner is running this job")
		return result
	}
	defer func() {
		if err := s.Locks.Release(ctx, job.Name, s.Owner); err != nil {
			log.Warn().Str("job", job.Name).Err(err).Msg("orchestrator: failed to release job lock")
		}
	}()

	// stageCtx governs both the heartbeat goroutine and the stage
	// itself: a failed Heartbeat cancels it, so the stage aborts at its
	// next safe point instead of continuing to run past an expired
	// lease another process may already have taken over (spec §4.10,
	// §5 lock-safety invariant).
	stageCtx, cancelStage := context.WithCancel(ctx)
	defer cancelStage()
	go s.heartbeat(stageCtx, cancelStage, job.Name)

	log.Info().Str("job", job.Name).Str("type", job.Type).Msg("orchestrator: running job")

	if err := stage(stageCtx, cfg); err != nil {
		result.Success = false
		result.Error = err.Error()
		log.Error().Str("job", job.Name).Err(err).Msg("orchestrator: job failed")
	} else {
		result.Success = true
	}
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	if s.Metrics != nil {
		outcome := "success"
		if !result.Success {
			outcome = "error"
		}
		s.Metrics.ObserveJobDuration(job.Name, outcome, result.Duration.Seconds())
	}
	return result
}

// heartbeat refreshes the job lease on every tick until ctx is done. A
// failed refresh calls cancel so the stage sharing ctx aborts at its
// next safe point rather than keep running past an expired lease.
func (s *Scheduler) heartbeat(ctx context.Context, cancel context.CancelFunc, key string) {
	interval := s.LockCfg.HeartbeatInterval
	if interval <= 0 {
		interval = s.LockCfg.TTL / 3
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Locks.Heartbeat(ctx, key, s.Owner, s.LockCfg.TTL); err != nil {
				log.Warn().Str("job", key).Err(err).Msg("orchestrator: heartbeat failed, aborting job at its next safe point")
				cancel()
				return
			}
		}
	}
}

// Ack records operator acknowledgement of a critical system event
// (spec §4.10 supplemented feature), clearing it from the default
// unacknowledged view without deleting the audit row.
func (s *Scheduler) Ack(ctx context.Context, events store.SystemEventRepo, eventID string) error {
	return events.Acknowledge(ctx, eventID, time.Now().UTC())
}
