package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrychain/pulse/internal/cache"
	"github.com/sentrychain/pulse/internal/store"
)

type fakeRankings struct {
	store.RankingRepo
	top []store.RankingResult
	get *store.RankingResult
}

func (f *fakeRankings) Top(ctx context.Context, window string, limit int) ([]store.RankingResult, error) {
	if len(f.top) < limit {
		return f.top, nil
	}
	return f.top[:limit], nil
}

func (f *fakeRankings) Get(ctx context.Context, subjectKind, subjectID, window string) (*store.RankingResult, error) {
	return f.get, nil
}

type fakeDecisions struct {
	store.DecisionRepo
	active *store.Decision
	recent []store.Decision
}

func (f *fakeDecisions) GetActive(ctx context.Context, subjectKind, subjectID, window string) (*store.Decision, error) {
	return f.active, nil
}

func (f *fakeDecisions) ListRecent(ctx context.Context, tr store.TimeRange, limit int) ([]store.Decision, error) {
	return f.recent, nil
}

type fakeSignals struct {
	store.SignalRepo
	byID map[string]*store.Signal
}

func (f *fakeSignals) GetByID(ctx context.Context, id string) (*store.Signal, error) {
	return f.byID[id], nil
}

func (f *fakeSignals) ListActive(ctx context.Context, window string) ([]store.Signal, error) {
	return nil, nil
}

type fakeTraces struct {
	store.ConfidenceTraceRepo
	bySignal map[string][]store.ConfidenceTrace
}

func (f *fakeTraces) ListForSignal(ctx context.Context, signalID string, limit int) ([]store.ConfidenceTrace, error) {
	return f.bySignal[signalID], nil
}

func TestTopRankingsClampsLimit(t *testing.T) {
	top := make([]store.RankingResult, 300)
	for i := range top {
		top[i] = store.RankingResult{SubjectID: "s"}
	}
	svc := NewService(store.Repository{Rankings: &fakeRankings{top: top}})

	results, err := svc.TopRankings(context.Background(), "1h", 0)
	require.NoError(t, err)
	assert.Len(t, results, 50)
}

func TestActiveDecisionPassesThrough(t *testing.T) {
	want := &store.Decision{ID: "d-1", DecisionType: "BUY"}
	svc := NewService(store.Repository{Decisions: &fakeDecisions{active: want}})

	got, err := svc.ActiveDecision(context.Background(), "entity", "acme", "1h")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSignalTraceJoinsSignalAndHistory(t *testing.T) {
	sig := &store.Signal{ID: "sig-1", Type: "whale_inflow"}
	traces := []store.ConfidenceTrace{{SignalID: "sig-1", FinalScore: 72, ComputedAt: time.Now()}}
	svc := NewService(store.Repository{
		Signals:          &fakeSignals{byID: map[string]*store.Signal{"sig-1": sig}},
		ConfidenceTraces: &fakeTraces{bySignal: map[string][]store.ConfidenceTrace{"sig-1": traces}},
	})

	result, err := svc.SignalTrace(context.Background(), "sig-1", 0)
	require.NoError(t, err)
	assert.Equal(t, sig, result.Signal)
	assert.Equal(t, traces, result.Traces)
}

type fakeSnapshots struct {
	store.SnapshotRepo
	latest *store.Snapshot
	calls  int
}

func (f *fakeSnapshots) GetLatest(ctx context.Context, window string) (*store.Snapshot, error) {
	f.calls++
	return f.latest, nil
}

func TestLatestSnapshotBackfillsCacheOnMiss(t *testing.T) {
	repo := &fakeSnapshots{latest: &store.Snapshot{ID: "snap-1", Window: "1h", IsViable: true}}
	svc := NewService(store.Repository{Snapshots: repo})
	svc.SetCache(cache.NewTiered(nil, 10))

	first, err := svc.LatestSnapshot(context.Background(), "1h")
	require.NoError(t, err)
	assert.Equal(t, "snap-1", first.ID)
	assert.Equal(t, 1, repo.calls)

	second, err := svc.LatestSnapshot(context.Background(), "1h")
	require.NoError(t, err)
	assert.Equal(t, "snap-1", second.ID)
	assert.Equal(t, 1, repo.calls, "second call should be served from cache, not the repo")
}

func TestHealthReportsUnwiredChecker(t *testing.T) {
	svc := NewService(store.Repository{})
	health := svc.Health(context.Background())
	assert.False(t, health.Healthy)
	assert.NotEmpty(t, health.Errors)
}
