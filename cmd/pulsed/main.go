// Command pulsed runs the full ingest -> aggregate -> approve ->
// snapshot -> signal -> lifecycle -> rank -> decide pipeline as a
// long-running daemon, grounded on the teacher's cmd/cryptorun
// monitor_main.go: an http.ServeMux exposing /health and /metrics,
// started alongside the work loop, torn down on SIGINT/SIGTERM with a
// bounded grace period.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sentrychain/pulse/internal/aggregate"
	"github.com/sentrychain/pulse/internal/api"
	"github.com/sentrychain/pulse/internal/approval"
	"github.com/sentrychain/pulse/internal/cache"
	"github.com/sentrychain/pulse/internal/chainkit"
	"github.com/sentrychain/pulse/internal/config"
	"github.com/sentrychain/pulse/internal/eventbus"
	"github.com/sentrychain/pulse/internal/orchestrator"
	"github.com/sentrychain/pulse/internal/pipeline"
	"github.com/sentrychain/pulse/internal/ranking"
	"github.com/sentrychain/pulse/internal/signalengine"
	"github.com/sentrychain/pulse/internal/snapshot"
	"github.com/sentrychain/pulse/internal/store/postgres"
	"github.com/sentrychain/pulse/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults baked in if omitted)")
	addr := flag.String("addr", ":8080", "address the health/metrics server listens on")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pulsed: load config: %v\n", err)
		os.Exit(1)
	}

	telemetry.ConfigureLogging(cfg.LogLevel)
	metrics := telemetry.NewRegistry()

	pg, err := postgres.NewManager(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("pulsed: connect to postgres")
	}
	defer pg.Close()
	if !pg.IsEnabled() {
		log.Fatal().Msg("pulsed: postgres is required for the daemon and is not enabled")
	}
	repo := *pg.Repository()

	redisOpts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	if cfg.Redis.TLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	tiered := cache.NewTiered(cache.NewRedisStore(redisClient), cfg.Cache.MaxLocalEntries)

	adapter := chainkit.WithMetrics(chainkit.NewEVMAdapter(chainkit.ChainConfig{
		ChainID:      cfg.Chain.ChainID,
		RPCURLs:      cfg.Chain.RPCURLs,
		NativeSymbol: cfg.Chain.NativeSymbol,
		Decimals:     cfg.Chain.Decimals,
		Explorer:     cfg.Chain.Explorer,
		MaxRetries:   cfg.Chain.MaxRetries,
		MaxBackoff:   cfg.Chain.MaxBackoff,
		RateRPS:      cfg.Chain.RateRPS,
		RateBurst:    cfg.Chain.RateBurst,
	}, nil), metrics)

	bus := eventbus.New()

	deps := &pipeline.Deps{
		Chain:         fmt.Sprintf("%d", cfg.Chain.ChainID),
		Adapter:       adapter,
		Repo:          repo,
		Tokens:        cfg.Chain.TrackedTokens,
		Confirmations: uint64(cfg.Chain.Confirmations),
		RewindBlocks:  uint64(cfg.Chain.RewindBlocks),

		AggregatorBackpressure: aggregate.DefaultBackpressure(),
		ApprovalThresholds:     approval.DefaultThresholds(),
		SnapshotConfig:         snapshot.DefaultConfig(),
		Engine:                 signalengine.NewEngine(),
		SignalThresholds:       signalengine.DefaultThresholds(),
		GateThresholds: ranking.GateThresholds{
			MinCoverageToTrade:   cfg.Gates.MinCoverageToTrade,
			MinEvidenceToTrade:   cfg.Gates.MinEvidenceToTrade,
			MaxRiskToTrade:       cfg.Gates.MaxRiskToTrade,
			MinDirectionStrength: cfg.Gates.MinDirectionStrength,
		},
		SignalWeights: ranking.DefaultSignalWeights(),
		Bus:           bus,
	}

	scheduler := orchestrator.NewScheduler(repo.JobLocks, deps.Stages())
	scheduler.LockCfg.TTL = cfg.Orchestrator.LockTTL
	scheduler.LockCfg.HeartbeatInterval = cfg.Orchestrator.HeartbeatInterval
	scheduler.ShutdownGrace = cfg.Orchestrator.ShutdownGrace
	scheduler.Metrics = metrics

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	depCtx, depCancel := context.WithTimeout(rootCtx, 10*time.Second)
	checks := []orchestrator.DependencyCheck{
		{Name: "postgres", Check: func(ctx context.Context) error {
			return pg.DB().PingContext(ctx)
		}},
		{Name: "chain-rpc", Check: func(ctx context.Context) error {
			_, err := adapter.HeadHeight(ctx)
			return err
		}},
	}
	if err := orchestrator.CheckDependencies(depCtx, checks); err != nil {
		depCancel()
		log.Fatal().Err(err).Msg("pulsed: a required dependency is unavailable, refusing to start")
	}
	depCancel()

	if err := bus.Start(rootCtx); err != nil {
		log.Fatal().Err(err).Msg("pulsed: start event bus")
	}

	svc := api.NewService(repo)
	svc.SetCache(tiered)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		hc := svc.Health(r.Context())
		if !hc.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, "healthy=%v errors=%v\n", hc.Healthy, hc.Errors)
	})

	server := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go reportCacheHitRatio(rootCtx, tiered, metrics)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", *addr).Msg("pulsed: health/metrics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	schedulerDone := make(chan error, 1)
	go func() {
		schedulerDone <- scheduler.Run(rootCtx, orchestrator.DefaultCatalog(cfg.Window), orchestrator.JobConfig{Window: cfg.Window})
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("pulsed: shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("pulsed: health/metrics server failed")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("pulsed: health/metrics server shutdown error")
	}

	select {
	case err := <-schedulerDone:
		if err != nil {
			log.Error().Err(err).Msg("pulsed: scheduler did not drain cleanly")
		}
	case <-time.After(cfg.Orchestrator.ShutdownGrace + 5*time.Second):
		log.Warn().Msg("pulsed: scheduler drain timed out waiting for confirmation")
	}

	if err := bus.Stop(context.Background()); err != nil {
		log.Error().Err(err).Msg("pulsed: event bus stop error")
	}

	log.Info().Msg("pulsed: shutdown complete")
}

// reportCacheHitRatio samples the tiered cache's hit ratio into the
// metrics registry every 30s until ctx is cancelled (spec §4.13's
// "cache hit rates" observability surface, carried from the teacher's
// metrics.Collector.StartCollection poll loop).
func reportCacheHitRatio(ctx context.Context, tiered *cache.Tiered, metrics *telemetry.Registry) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetCacheHitRatio(tiered.Stats().HitRatio)
		}
	}
}
