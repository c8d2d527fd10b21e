package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jdeinum/simulation-testing/internal/broadcast"
	"github.com/jdeinum/simulation-testing/internal/config"
	"github.com/jdeinum/simulation-testing/internal/discovery"
	"github.com/jdeinum/simulation-testing/internal/journal"
	"github.com/jdeinum/simulation-testing/internal/node"
	"github.com/jdeinum/simulation-testing/internal/sim"
	"github.com/jdeinum/simulation-testing/internal/telemetry"
	"github.com/jdeinum/simulation-testing/internal/transport"
)

// Set with -ldflags "-X main.version=... -X main.gitSHA=...".
var (
	version = "dev"
	gitSHA  = "unknown"
)

const (
	connectDelay = 2 * time.Second
	leaseTTL     = 10 // seconds
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:          "simtest",
	Short:        "Seeded broadcast nodes and a deterministic cluster simulator",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("log-json")
		var err error
		if asJSON {
			logger, err = zap.NewProduction()
		} else {
			logger, err = zap.NewDevelopment()
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// ─── run ─────────────────────────────────────────────────────────────────────

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a broadcast node over TCP",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		metricsAddr, _ := cmd.Flags().GetString("metrics")
		endpoints, _ := cmd.Flags().GetStringSlice("etcd")

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		telemetry.SetBuildInfo(version, gitSHA)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		peers := cfg.Peers
		if len(endpoints) > 0 {
			found, cleanup, err := discover(ctx, endpoints, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			peers = discovery.Merge(cfg.Peers, found)
		}

		var log journal.Log = journal.NewMemory()
		if cfg.Journal != "" {
			if log, err = journal.OpenBolt(cfg.Journal); err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
		}
		defer log.Close()

		tr := transport.NewTCP(cfg.Listen, peers, logger)
		if err := tr.Start(); err != nil {
			return err
		}
		defer tr.Close()
		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(connectDelay):
			}
			tr.ConnectAll(ctx)
		}()

		if metricsAddr != "" {
			srv := serveMetrics(metricsAddr)
			defer srv.Shutdown(context.Background())
		}

		layer := broadcast.New(slices.Sorted(maps.Keys(peers)), tr,
			broadcast.WithLog(log),
			broadcast.WithLogger(logger))
		n, err := node.New(node.Config{
			ID:       cfg.ID,
			Interval: cfg.IntervalDuration(),
			WarmUp:   cfg.WarmUpDuration(),
			Logger:   logger,
		}, layer)
		if err != nil {
			return err
		}

		logger.Info("node starting",
			zap.String("id", cfg.ID),
			zap.Stringer("listen", tr.Addr()),
			zap.Int("peers", len(peers)),
			zap.String("version", version))
		return n.Run(ctx)
	},
}

func discover(ctx context.Context, endpoints []string, cfg *config.Config) (map[string]string, func(), error) {
	cli, err := discovery.NewClient(endpoints)
	if err != nil {
		return nil, nil, fmt.Errorf("etcd: %w", err)
	}
	lease, cancel, err := discovery.Register(ctx, cli, cfg.ID, cfg.Listen, leaseTTL)
	if err != nil {
		cli.Close()
		return nil, nil, err
	}
	cleanup := func() {
		cancel()
		_, _ = cli.Revoke(context.Background(), lease)
		cli.Close()
	}
	found, err := discovery.Peers(ctx, cli, cfg.ID)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	logger.Info("discovered peers", zap.Int("count", len(found)))
	return found, cleanup, nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}

// ─── sim ─────────────────────────────────────────────────────────────────────

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run the deterministic cluster simulator for one seed",
	RunE: func(cmd *cobra.Command, args []string) error {
		seedVal, _ := cmd.Flags().GetUint64("seed")
		nodes, _ := cmd.Flags().GetInt("nodes")
		steps, _ := cmd.Flags().GetInt("steps")
		failAt, _ := cmd.Flags().GetUint64("fail-at")
		showTrace, _ := cmd.Flags().GetBool("trace")

		res, err := sim.Run(cmd.Context(), sim.Options{
			Seed:   seedVal,
			Nodes:  nodes,
			Steps:  steps,
			FailAt: failAt,
			Logger: logger,
		})
		if err != nil {
			return err
		}

		if showTrace {
			for _, e := range res.Trace {
				fmt.Println(e)
			}
		}
		rows := [][]string{{"Node", "Log entries"}}
		for _, id := range slices.Sorted(maps.Keys(res.Logs)) {
			rows = append(rows, []string{id, fmt.Sprint(len(res.Logs[id]))})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
			return err
		}
		pterm.Info.Printfln("seed %d, %d events, digest %s", res.Seed, len(res.Trace), res.Digest)

		if res.Crash != nil {
			pterm.Error.Printfln("node crashed; replay with: simtest sim --seed %d --nodes %d --steps %d --fail-at %d",
				seedVal, nodes, steps, failAt)
			return res.Crash
		}
		pterm.Success.Println("run completed")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs (production encoder)")

	runCmd.Flags().String("config", "simtest.json", "Node configuration file")
	runCmd.Flags().String("metrics", "", "Serve Prometheus metrics on this address (empty = off)")
	runCmd.Flags().StringSlice("etcd", []string{}, "etcd endpoints for peer discovery")

	demoCmd.Flags().UintSlice("seed", []uint{30, 31}, "Seeds to demonstrate")

	simCmd.Flags().Uint64("seed", 0, "Simulation seed")
	simCmd.Flags().Int("nodes", 3, "Number of nodes")
	simCmd.Flags().Int("steps", 500, "Scheduled events to run")
	simCmd.Flags().Uint64("fail-at", 0, "Crash a node once it has broadcast this many messages (0 = never)")
	simCmd.Flags().Bool("trace", false, "Print every event")

	rootCmd.AddCommand(runCmd, demoCmd, simCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
