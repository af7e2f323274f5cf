package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/voltlab/electric"
	"github.com/voltlab/electric/internal/adapters/status"
	"github.com/voltlab/electric/internal/presentation/report"
	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/observability"
	"github.com/voltlab/electric/pkg/persistence/middleware"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the convergence loop to a terminal state",
	Long: `Iterates encode, engine launch and decode until the residual drops
below the tolerance or the iteration budget runs out.

Exit codes: 0 converged, 1 diverged, 2 iteration budget exhausted,
3 configuration error.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fail(err)
		}
		if err := cfg.Validate(); err != nil {
			fail(err)
		}
		logger := newLogger(cfg)

		rawStore, closeStore, err := electric.OpenStore(cfg)
		if err != nil {
			fail(err)
		}
		defer closeStore()
		store := middleware.Chain(rawStore, middleware.NewLoggingMiddleware(logger))

		if cfg.RunID == "" {
			cfg.RunID = uuid.NewString()
		}

		metrics := observability.NewMetrics()
		tracker := status.NewTracker(cfg.RunID)
		hooks := domain.MergeHooks(metrics.Hooks(), tracker.Hooks())

		opts := []electric.Option{
			electric.WithStore(store),
			electric.WithLogger(logger),
			electric.WithLifecycleHooks(hooks),
		}
		if locker := electric.OpenLocker(rawStore); locker != nil {
			opts = append(opts, electric.WithLocker(locker))
		}
		driver := electric.NewFromConfig(cfg, opts...)

		if addr, _ := cmd.Flags().GetString("status-addr"); addr != "" {
			cfg.StatusAddr = addr
		}
		if cfg.StatusAddr != "" {
			srv := status.NewServer(cfg.StatusAddr, status.NewHandler(tracker, store, metrics.Registry()), logger)
			srv.Start()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := driver.Run(ctx)
		if err != nil {
			fail(err)
		}

		if err := report.Render(os.Stdout, report.Build(res)); err != nil {
			logger.Warn("failed to render report", "err", err)
		}

		switch res.Status {
		case domain.RunConverged:
			os.Exit(exitConverged)
		case domain.RunExhaustedBudget:
			os.Exit(exitExhausted)
		default:
			os.Exit(exitDiverged)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("status-addr", "", "Serve /status, /records and /metrics on this address while running")
}
