// Command pulsectl is the operator CLI for inspecting and nudging a
// running pulsed deployment: job locks, unacknowledged system events,
// rankings, decisions, and a signal's confidence-trace audit trail.
// Patterned on the teacher's cmd/cryptorun/main.go root-command/
// subcommand cobra wiring, trimmed to this daemon's read/ack surface —
// there is no interactive menu here, every subcommand is a one-shot
// automation shim.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sentrychain/pulse/internal/api"
	"github.com/sentrychain/pulse/internal/config"
	"github.com/sentrychain/pulse/internal/orchestrator"
	"github.com/sentrychain/pulse/internal/store"
	"github.com/sentrychain/pulse/internal/store/postgres"
)

const appName = "pulsectl"

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Operator CLI for pulsed",
		Long:  "pulsectl inspects and acknowledges the state a running pulsed daemon has persisted: job locks, system events, rankings, decisions, and per-signal confidence traces.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults baked in if omitted)")

	rootCmd.AddCommand(
		locksCmd(),
		eventsCmd(),
		rankingsCmd(),
		decisionsCmd(),
		signalCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("pulsectl: command failed")
	}
}

// openManager loads config and connects to postgres for one command
// invocation; every subcommand is a short-lived connection, not a
// shared daemon resource.
func openManager() (*postgres.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	pg, err := postgres.NewManager(cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if !pg.IsEnabled() {
		pg.Close()
		return nil, fmt.Errorf("postgres is not enabled in config")
	}
	return pg, nil
}

func locksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locks <job-key>",
		Short: "Show the current lease holder for one job key (e.g. ingest:1h)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := openManager()
			if err != nil {
				return err
			}
			defer pg.Close()

			lock, err := pg.Repository().JobLocks.Get(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("get lock %s: %w", args[0], err)
			}
			if lock == nil {
				fmt.Printf("%s: no lease held\n", args[0])
				return nil
			}
			fmt.Printf("%s: held by %s since %s (ttl %ds)\n", args[0], lock.LockedBy, lock.LockedAt.Format(time.RFC3339), lock.TTLSec)
			return nil
		},
	}
	return cmd
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "System event commands",
	}

	limit := 0
	list := &cobra.Command{
		Use:   "list",
		Short: "List unacknowledged system events",
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := openManager()
			if err != nil {
				return err
			}
			defer pg.Close()

			svc := api.NewService(*pg.Repository())
			events, err := svc.UnacknowledgedEvents(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("no unacknowledged events")
				return nil
			}
			for _, ev := range events {
				fmt.Printf("%s [%s] %s: %s (at %s)\n", ev.ID, ev.Severity, ev.Source, ev.Message, ev.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 100, "maximum events to list")

	ack := &cobra.Command{
		Use:   "ack <event-id>",
		Short: "Acknowledge a system event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := openManager()
			if err != nil {
				return err
			}
			defer pg.Close()

			scheduler := orchestrator.NewScheduler(pg.Repository().JobLocks, nil)
			if err := scheduler.Ack(context.Background(), pg.Repository().SystemEvents, args[0]); err != nil {
				return fmt.Errorf("ack %s: %w", args[0], err)
			}
			fmt.Printf("acknowledged %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, ack)
	return cmd
}

func rankingsCmd() *cobra.Command {
	window := ""
	limit := 0
	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Show the top-ranked subjects for a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := openManager()
			if err != nil {
				return err
			}
			defer pg.Close()

			svc := api.NewService(*pg.Repository())
			results, err := svc.TopRankings(context.Background(), window, limit)
			if err != nil {
				return err
			}
			for i, r := range results {
				fmt.Printf("%2d. %s/%s confidence=%.1f coverage=%.1f risk=%.1f signals=%d\n",
					i+1, r.SubjectKind, r.SubjectID, r.Confidence, r.Coverage, r.Risk, r.ActiveSignals)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&window, "window", "1h", "aggregation window label")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum subjects to show")
	return cmd
}

func decisionsCmd() *cobra.Command {
	since := time.Duration(0)
	limit := 0
	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List recent gate decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := openManager()
			if err != nil {
				return err
			}
			defer pg.Close()

			svc := api.NewService(*pg.Repository())
			now := time.Now().UTC()
			decisions, err := svc.RecentDecisions(context.Background(), store.TimeRange{From: now.Add(-since), To: now}, limit)
			if err != nil {
				return err
			}
			for _, d := range decisions {
				status := "clear"
				if d.Blocked {
					status = "blocked"
				}
				fmt.Printf("%s %s/%s %s [%s] band=%s reasons=%v\n",
					d.CreatedAt.Format(time.RFC3339), d.SubjectKind, d.SubjectID, d.DecisionType, status, d.ConfidenceBand, d.Reasons)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", time.Hour, "how far back to look")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum decisions to show")
	return cmd
}

func signalCmd() *cobra.Command {
	limit := 0
	cmd := &cobra.Command{
		Use:   "signal <signal-id>",
		Short: "Explain one signal's confidence-trace audit history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := openManager()
			if err != nil {
				return err
			}
			defer pg.Close()

			svc := api.NewService(*pg.Repository())
			trace, err := svc.SignalTrace(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			if trace.Signal == nil {
				fmt.Printf("signal %s not found\n", args[0])
				return nil
			}
			fmt.Printf("signal %s type=%s state=%s confidence=%d\n",
				trace.Signal.ID, trace.Signal.Type, trace.Signal.LifecycleState, trace.Signal.Confidence)
			for _, t := range trace.Traces {
				fmt.Printf("  score=%.1f decay=%.2f cap_applied=%v label=%s\n", t.FinalScore, t.DecayFactor, t.CapApplied, t.Label)
				for _, op := range t.Operations {
					fmt.Printf("    %s\n", op)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum trace entries to show")
	return cmd
}
