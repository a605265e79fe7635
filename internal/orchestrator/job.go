// Package orchestrator runs the ingest→aggregate→approve→snapshot→
// signal→lifecycle→rank→decide pipeline as a catalog of scheduled jobs
// (spec §4.10, C10). The Job/JobConfig/Scheduler shape is adapted
// directly from the teacher's internal/scheduler/scheduler.go, with
// its in-memory-only "running" flag replaced by a persistent
// cross-process lock (store.JobLockRepo) and its bare ticker loop
// replaced by a per-job interval with heartbeat and graceful-shutdown
// draining — the things the teacher's scheduler explicitly TODOs away.
package orchestrator

import "time"

// Job is one entry in the pipeline catalog (spec §4.10).
type Job struct {
	Name     string
	Type     string // ingest|aggregate|approve|snapshot|signal|lifecycle|rank|decide
	Interval time.Duration
	Enabled  bool
}

// JobConfig holds the one parameter every job type in this pipeline
// needs: the window label it operates on. Unlike the teacher's
// per-job-type Universe/Venues/TopN knobs, every stage of this
// pipeline is parameterized purely by window.
type JobConfig struct {
	Window string
}

// JobResult mirrors the teacher's JobResult shape (name, timing,
// success, error) without the artifacts list this pipeline has no use
// for — progress here is persisted rows, not generated files.
type JobResult struct {
	JobName   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// DefaultCatalog is the fixed pipeline stage order (spec §4.10).
func DefaultCatalog(window string) []Job {
	cfg := func(t string, interval time.Duration) Job {
		return Job{Name: t + ":" + window, Type: t, Interval: interval, Enabled: true}
	}
	return []Job{
		cfg("ingest", 15*time.Second),
		cfg("aggregate", 30*time.Second),
		cfg("approve", 30*time.Second),
		cfg("snapshot", time.Minute),
		cfg("signal", time.Minute),
		cfg("lifecycle", time.Minute),
		cfg("rank", 2*time.Minute),
		cfg("decide", 2*time.Minute),
	}
}
