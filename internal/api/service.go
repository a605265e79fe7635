// Package api is the thin read-service layer the (external) HTTP/WS
// surface calls (spec §6: "core exposes services; route code belongs
// outside the core"). It never imports net/http, gorilla/mux, or
// gorilla/websocket — it exposes typed query methods over
// store.Repository that a router elsewhere wires to endpoints, in the
// same spirit as the teacher's internal/interfaces/http/endpoints
// handlers but with the HTTP/JSON concerns stripped out.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sentrychain/pulse/internal/cache"
	"github.com/sentrychain/pulse/internal/store"
)

// Service answers read queries against the persisted pipeline state.
type Service struct {
	repo  store.Repository
	cache *cache.Tiered
}

func NewService(repo store.Repository) *Service {
	return &Service{repo: repo}
}

// SetCache attaches the tiered read cache to the two query paths hot
// enough to benefit (LatestSnapshot, TopRankings) — both are read far
// more often than the pipeline writes fresh values (spec §4.13). A nil
// cache, the zero value, leaves Service reading straight through to repo.
func (s *Service) SetCache(c *cache.Tiered) {
	s.cache = c
}

// TopRankings returns the highest-scoring subjects for window, capped
// at limit (spec §4.9 C9 output).
func (s *Service) TopRankings(ctx context.Context, window string, limit int) ([]store.RankingResult, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	key := cache.Key("rankings", window, cache.ModeCalibrated, fmt.Sprintf("top%d", limit))
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var cached []store.RankingResult
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	results, err := s.repo.Rankings.Top(ctx, window, limit)
	if err != nil {
		return nil, fmt.Errorf("api: top rankings: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(results); err == nil {
			_ = s.cache.Set(ctx, key, string(raw), cache.ModeCalibrated)
		}
	}
	return results, nil
}

// RankingFor returns one subject's current ranking within window.
func (s *Service) RankingFor(ctx context.Context, subjectKind, subjectID, window string) (*store.RankingResult, error) {
	r, err := s.repo.Rankings.Get(ctx, subjectKind, subjectID, window)
	if err != nil {
		return nil, fmt.Errorf("api: ranking for %s/%s/%s: %w", subjectKind, subjectID, window, err)
	}
	return r, nil
}

// ActiveDecision returns the current, non-superseded decision for a
// subject, or nil if none is active.
func (s *Service) ActiveDecision(ctx context.Context, subjectKind, subjectID, window string) (*store.Decision, error) {
	d, err := s.repo.Decisions.GetActive(ctx, subjectKind, subjectID, window)
	if err != nil {
		return nil, fmt.Errorf("api: active decision for %s/%s/%s: %w", subjectKind, subjectID, window, err)
	}
	return d, nil
}

// RecentDecisions lists decisions created within tr, most recent first,
// capped at limit.
func (s *Service) RecentDecisions(ctx context.Context, tr store.TimeRange, limit int) ([]store.Decision, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ds, err := s.repo.Decisions.ListRecent(ctx, tr, limit)
	if err != nil {
		return nil, fmt.Errorf("api: recent decisions: %w", err)
	}
	return ds, nil
}

// SignalTrace returns a signal and its full confidence-trace audit
// history, most recent first — the dump cmd/pulsectl's "signal"
// command surfaces for one signal.
type SignalTrace struct {
	Signal *store.Signal
	Traces []store.ConfidenceTrace
}

func (s *Service) SignalTrace(ctx context.Context, signalID string, limit int) (*SignalTrace, error) {
	sig, err := s.repo.Signals.GetByID(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("api: signal %s: %w", signalID, err)
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	traces, err := s.repo.ConfidenceTraces.ListForSignal(ctx, signalID, limit)
	if err != nil {
		return nil, fmt.Errorf("api: confidence traces for signal %s: %w", signalID, err)
	}
	return &SignalTrace{Signal: sig, Traces: traces}, nil
}

// ActiveSignals lists the currently active signals for window.
func (s *Service) ActiveSignals(ctx context.Context, window string) ([]store.Signal, error) {
	sigs, err := s.repo.Signals.ListActive(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("api: active signals for window %s: %w", window, err)
	}
	return sigs, nil
}

// LatestSnapshot returns the most recent snapshot for window.
func (s *Service) LatestSnapshot(ctx context.Context, window string) (*store.Snapshot, error) {
	key := cache.Key("snapshot", window, cache.ModeCalibrated, "latest")
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var cached store.Snapshot
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	snap, err := s.repo.Snapshots.GetLatest(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("api: latest snapshot for window %s: %w", window, err)
	}

	if s.cache != nil && snap != nil {
		if raw, err := json.Marshal(snap); err == nil {
			_ = s.cache.Set(ctx, key, string(raw), cache.ModeCalibrated)
		}
	}
	return snap, nil
}

// UnacknowledgedEvents lists critical/operational system events that
// still require operator Ack (spec §5 supplemented feature), capped at
// limit.
func (s *Service) UnacknowledgedEvents(ctx context.Context, limit int) ([]store.SystemEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	events, err := s.repo.SystemEvents.ListUnacked(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("api: unacknowledged events: %w", err)
	}
	return events, nil
}

// Health reports the persistence layer's liveness for a readiness probe.
func (s *Service) Health(ctx context.Context) store.HealthCheck {
	if s.repo.Health == nil {
		return store.HealthCheck{Healthy: false, Errors: []string{"no health checker wired"}, LastCheck: time.Now().UTC()}
	}
	return s.repo.Health.Health(ctx)
}
