package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgeflare/json2avro/pkg/metrics"
	"github.com/edgeflare/json2avro/pkg/pipeline"
)

const shutdownTimeout = 10 * time.Second

func newPipelineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pipeline",
		Aliases: []string{"p"},
		Short:   "Run the conversion pipelines",
		Long:    `Run the configured pipelines, converting records consumed from source peers and publishing them to sink peers.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runPipeline(ctx)
		},
	}

	cmd.Flags().Bool("metrics", true, "Enable Prometheus metrics server")
	cmd.Flags().String("metrics-addr", ":9100", "Prometheus metrics server address")
	cobra.CheckErr(a.v.BindPFlag("metrics.enabled", cmd.Flags().Lookup("metrics")))
	cobra.CheckErr(a.v.BindPFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr")))

	return cmd
}

// runPipeline runs until ctx is done or a pipeline halts. A halted pipeline
// is reported as the returned error.
func (a *app) runPipeline(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := a.logger
	var wg sync.WaitGroup

	if a.cfg.Metrics.Enabled {
		if _, err := metrics.StartServer(ctx, &wg, metrics.ServerOptions{
			Addr:   a.cfg.Metrics.Addr,
			Path:   a.cfg.Metrics.Path,
			Logger: logger.Named("metrics"),
		}); err != nil {
			return err
		}
	}

	m := pipeline.NewManager(pipeline.WithLogger(logger.Named("pipeline")))
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("Error disconnecting peers", zap.Error(err))
		}
	}()

	if err := m.Init(&a.cfg.Pipeline); err != nil {
		return fmt.Errorf("failed to initialize peers: %w", err)
	}

	errChan := make(chan error, 1)
	if err := m.Start(ctx, &wg, &a.cfg.Pipeline, errChan); err != nil {
		return fmt.Errorf("failed to start pipeline processing: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received termination signal, shutting down gracefully")
	case runErr = <-errChan:
		logger.Error("Pipeline halted", zap.Error(runErr))
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("Shutdown timed out", zap.Duration("timeout", shutdownTimeout))
	}

	return runErr
}
