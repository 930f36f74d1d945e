package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/config"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/oteladapters"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/harness"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/workload"
)

const meterName = "entitystore-bench"

type runOptions struct {
	workers    int
	iterations int
	sessions   int
}

func newRunCmd(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run workload sessions against the configured backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(rootOpts.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if cmd.Flags().Changed("workers") {
				cfg.Harness.Workers = opts.workers
			}

			if cmd.Flags().Changed("iterations") {
				cfg.Harness.Iterations = opts.iterations
			}

			if cmd.Flags().Changed("sessions") {
				cfg.Harness.Sessions = opts.sessions
			}

			if err = cfg.Validate(); err != nil {
				return err
			}

			return runBenchmark(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	runCmd.Flags().IntVar(&opts.workers, "workers", 0, "number of concurrent workers (overrides harness.workers)")
	runCmd.Flags().IntVar(&opts.iterations, "iterations", 0, "units per worker and session (overrides harness.iterations)")
	runCmd.Flags().IntVar(&opts.sessions, "sessions", 0, "number of sessions (overrides harness.sessions)")

	return runCmd
}

func runBenchmark(ctx context.Context, cfg *config.Config, out io.Writer, logOut io.Writer) error {
	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	collector := oteladapters.NewMetricsCollector(provider.Meter(meterName))

	backend, err := config.OpenBackend(ctx, cfg.Backend, logger)
	if err != nil {
		return fmt.Errorf("failed to open backend: %w", err)
	}

	if err = backend.CreateSchema(ctx); err != nil {
		_ = backend.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	bench, err := newBench(cfg, backend, logger, collector)
	if err != nil {
		_ = backend.Close()
		return err
	}

	sessionsDone := make(chan error, 1)
	go func() {
		sessionsDone <- runSessions(ctx, cfg, bench, backend, reader, out, logger)
	}()

	var runErr error
	interrupted := false
	select {
	case runErr = <-sessionsDone:
	case <-ctx.Done():
		interrupted = true
		logger.Warn("interrupted, waiting for the running session", "grace_ms", entitystore.ToMilliseconds(cfg.Harness.ShutdownGrace))
	}

	// The pool stays open when workers did not stop in time.
	if err = bench.Shutdown(cfg.Harness.ShutdownGrace); err != nil {
		return fmt.Errorf("fatal: %w", err)
	}

	if interrupted {
		runErr = <-sessionsDone
	}

	if closeErr := backend.Close(); closeErr != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to close backend: %w", closeErr))
	}

	return runErr
}

func newBench(
	cfg *config.Config,
	backend config.Backend,
	logger *slog.Logger,
	collector *oteladapters.MetricsCollector,
) (*harness.Harness, error) {
	store, err := entitystore.NewStore(
		backend,
		entitystore.WithSnapshotInterval(cfg.Store.SnapshotInterval),
		entitystore.WithAcquireTimeout(cfg.Store.AcquireTimeout),
		entitystore.WithLogger(logger),
		entitystore.WithMetrics(collector),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	driver, err := workload.NewDriver(
		store,
		workload.WithMaxAttempts(cfg.Workload.MaxAttempts),
		workload.WithBaseDelay(cfg.Workload.BaseDelay),
		workload.WithMaxDelay(cfg.Workload.MaxDelay),
		workload.WithJitterFactor(cfg.Workload.JitterFactor),
		workload.WithLogger(logger),
		workload.WithMetrics(collector),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create workload driver: %w", err)
	}

	harnessOptions := []harness.Option{harness.WithLogger(logger), harness.WithMetrics(collector)}
	if cfg.Harness.Seed != 0 {
		harnessOptions = append(harnessOptions, harness.WithSeed(cfg.Harness.Seed))
	}

	bench, err := harness.New(driver, harnessOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create harness: %w", err)
	}

	return bench, nil
}

func runSessions(
	ctx context.Context,
	cfg *config.Config,
	bench *harness.Harness,
	backend config.Backend,
	reader *sdkmetric.ManualReader,
	out io.Writer,
	logger *slog.Logger,
) error {
	session := harness.Session{
		Workers:    cfg.Harness.Workers,
		Iterations: cfg.Harness.Iterations,
		Band:       harness.Band{Width: cfg.Harness.BandWidth, Mask: cfg.Harness.BandMask},
	}

	if cfg.Harness.Truncate {
		session.Truncate = backend.Truncate
	}

	printHeader(out)

	var violations int
	for range cfg.Harness.Sessions {
		result, err := bench.Run(ctx, session)
		if err != nil {
			return fmt.Errorf("session failed: %w", err)
		}

		printResult(out, result)
		logCollectedMetrics(ctx, reader, logger)
		violations += result.Totals.Violations
	}

	if violations > 0 {
		return fmt.Errorf("%w: %d in total", workload.ErrConsistencyViolation, violations)
	}

	return nil
}
