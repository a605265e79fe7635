// Package postgres implements internal/store's repository interfaces
// against PostgreSQL via jmoiron/sqlx and lib/pq, grounded on the
// teacher's internal/infrastructure/db and internal/persistence/postgres
// packages (connection pooling, timeout-scoped queries, ON CONFLICT
// upserts, pq.Error code inspection).
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sentrychain/pulse/internal/store"
)

// Config holds database connection configuration, YAML-first with env
// overrides per the teacher's db.Config pattern.
type Config struct {
	DSN             string        `yaml:"dsn" env:"PG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"PG_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PG_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"PG_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"PG_CONN_MAX_IDLE_TIME"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"PG_QUERY_TIMEOUT"`
	Enabled         bool          `yaml:"enabled" env:"PG_ENABLED"`
}

func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    10 * time.Second,
		Enabled:         false,
	}
}

// Manager owns the pooled connection and the wired repository set.
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  *store.Repository
	health *healthChecker
}

// NewManager opens the pool, verifies connectivity, and wires every
// repository implementation in this package.
func NewManager(cfg Config) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{config: cfg, health: &healthChecker{enabled: false}}, nil
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: DSN required when enabled")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	repos := &store.Repository{
		RawEvents:        newRawEventRepo(db, cfg.QueryTimeout),
		Cursors:          newCursorRepo(db, cfg.QueryTimeout),
		Aggregates:       newAggregateRepo(db, cfg.QueryTimeout),
		Approvals:        newApprovalRepo(db, cfg.QueryTimeout),
		Snapshots:        newSnapshotRepo(db, cfg.QueryTimeout),
		Signals:          newSignalRepo(db, cfg.QueryTimeout),
		ConfidenceTraces: newConfidenceTraceRepo(db, cfg.QueryTimeout),
		Rankings:         newRankingRepo(db, cfg.QueryTimeout),
		Decisions:        newDecisionRepo(db, cfg.QueryTimeout),
		JobLocks:         newJobLockRepo(db, cfg.QueryTimeout),
		SystemEvents:     newSystemEventRepo(db, cfg.QueryTimeout),
	}

	hc := &healthChecker{enabled: true, db: db, timeout: cfg.QueryTimeout}
	return &Manager{db: db, config: cfg, repos: repos, health: hc}, nil
}

func (m *Manager) Repository() *store.Repository   { return m.repos }
func (m *Manager) Health() store.RepositoryHealth   { return m.health }
func (m *Manager) DB() *sqlx.DB                     { return m.db }
func (m *Manager) IsEnabled() bool                  { return m.config.Enabled && m.db != nil }

func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

type healthChecker struct {
	enabled bool
	db      *sqlx.DB
	timeout time.Duration
}

func (h *healthChecker) Health(ctx context.Context) store.HealthCheck {
	if !h.enabled {
		return store.HealthCheck{
			Healthy:        true,
			Errors:         []string{"postgres persistence disabled"},
			ConnectionPool: map[string]int{"status": 0},
			LastCheck:      time.Now(),
		}
	}
	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var errs []string
	healthy := true
	if err := h.db.PingContext(pingCtx); err != nil {
		errs = append(errs, fmt.Sprintf("ping failed: %v", err))
		healthy = false
	}
	s := h.db.Stats()
	pool := map[string]int{
		"max_open": s.MaxOpenConnections,
		"open":     s.OpenConnections,
		"in_use":   s.InUse,
		"idle":     s.Idle,
	}
	return store.HealthCheck{
		Healthy:        healthy,
		Errors:         errs,
		ConnectionPool: pool,
		LastCheck:      time.Now(),
		ResponseTimeMS: time.Since(start).Milliseconds(),
	}
}

func (h *healthChecker) Ping(ctx context.Context) error {
	if !h.enabled {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.db.PingContext(pingCtx)
}

func (h *healthChecker) Stats(ctx context.Context) map[string]interface{} {
	if !h.enabled {
		return map[string]interface{}{"enabled": false}
	}
	s := h.db.Stats()
	return map[string]interface{}{
		"enabled":              true,
		"max_open_connections": s.MaxOpenConnections,
		"open_connections":     s.OpenConnections,
		"in_use":               s.InUse,
		"idle":                 s.Idle,
		"wait_count":           s.WaitCount,
		"wait_duration_ms":     s.WaitDuration.Milliseconds(),
	}
}
