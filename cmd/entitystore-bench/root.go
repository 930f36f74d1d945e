package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/config"
)

var version = "v0.1.0-dev"

type rootOptions struct {
	cfgFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "entitystore-bench",
		Short:         "Benchmark and fuzz the snapshotting entity store",
		Long:          `Runs concurrent transactional workload sessions against an event-sourced entity store and reports consistency violations, throughput and latency.`,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file path (yaml)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSchemaCmd(opts))
	rootCmd.AddCommand(newTruncateCmd(opts))
	rootCmd.AddCommand(newRunCmd(opts))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "entitystore-bench %s\n", version)
		},
	}
}

func newSchemaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the event log schema if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, backend config.Backend) error {
				if err := backend.CreateSchema(ctx); err != nil {
					return fmt.Errorf("failed to create schema: %w", err)
				}

				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "schema is in place")

				return nil
			})
		},
	}
}

func newTruncateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "truncate",
		Short: "Delete every event from the event log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, backend config.Backend) error {
				if err := backend.CreateSchema(ctx); err != nil {
					return fmt.Errorf("failed to create schema: %w", err)
				}

				if err := backend.Truncate(ctx); err != nil {
					return fmt.Errorf("failed to truncate event log: %w", err)
				}

				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "event log truncated")

				return nil
			})
		},
	}
}

// withBackend loads the config, opens the backend, runs fn, and closes the backend again.
func withBackend(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, config.Backend) error) error {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	backend, err := config.OpenBackend(ctx, cfg.Backend, logger)
	if err != nil {
		return fmt.Errorf("failed to open backend: %w", err)
	}
	defer func() { _ = backend.Close() }()

	return fn(ctx, backend)
}

// newLogger builds the slog logger described by cfg.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOptions)), nil
	}

	return slog.New(slog.NewTextHandler(w, handlerOptions)), nil
}
