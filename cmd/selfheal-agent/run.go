package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/opscart/selfheal-agent/pkg/agent"
	"github.com/opscart/selfheal-agent/pkg/analyzer"
	"github.com/opscart/selfheal-agent/pkg/config"
	"github.com/opscart/selfheal-agent/pkg/datasource"
	"github.com/opscart/selfheal-agent/pkg/events"
	"github.com/opscart/selfheal-agent/pkg/executor"
	"github.com/opscart/selfheal-agent/pkg/logging"
	"github.com/opscart/selfheal-agent/pkg/metrics"
	"github.com/opscart/selfheal-agent/pkg/sampler"
	"github.com/opscart/selfheal-agent/pkg/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	exporter := metrics.NewPromExporter()
	sink := events.New(cfg.Webhook, cfg.WebhookTimeout, logger.Named("events"))

	source, err := datasource.New(datasource.Config{
		Source:        cfg.MetricsSource,
		Scope:         cfg.SampleScope,
		TargetPID:     cfg.TargetPID,
		PrometheusURL: cfg.PrometheusURL,
		Timeout:       cfg.SampleInterval,
	}, logger.Named("datasource"))
	if err != nil {
		return fmt.Errorf("failed to initialize metrics source: %w", err)
	}

	smp, err := sampler.New(ctx, source, exporter, sampler.Options{
		WindowSize: cfg.WindowSize,
		Interval:   cfg.SampleInterval,
		Logger:     logger.Named("sampler"),
	})
	if err != nil {
		return err
	}

	exec := executor.New(executor.NewOSController(), exporter, sink, executor.Options{
		Cooldown: cfg.ActionCooldown,
		Logger:   logger.Named("executor"),
		Store:    store,
		// audit writes share the webhook's bound
		StoreTimeout: cfg.WebhookTimeout,
	})

	a, err := agent.New(smp, exec, analyzer.LinearTrend{}, exporter, sink, agent.Options{
		TargetPID:       cfg.TargetPID,
		CPUThreshold:    cfg.CPUThreshold,
		MemThreshold:    cfg.MemThreshold,
		NiceIncrement:   cfg.NiceIncrement,
		GracefulTimeout: cfg.GracefulTimeout,
		SampleInterval:  cfg.SampleInterval,
		EvalInterval:    cfg.EvalInterval,
		Logger:          logger.Named("agent"),
	})
	if err != nil {
		return err
	}

	logger.Info("starting selfheal-agent",
		zap.String("source", source.Name()),
		zap.String("metrics_addr", cfg.MetricsAddr()),
		zap.Bool("webhook", cfg.Webhook != ""),
		zap.Bool("storage", store != nil))

	server := metrics.NewServer(cfg.MetricsAddr(), exporter, logger.Named("metrics"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return a.Run(gctx) })
	return g.Wait()
}

// initStorage opens the audit log when storage is enabled
func initStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if !cfg.StorageEnabled {
		return nil, nil
	}

	store, err := storage.New(storage.Config{Type: "postgres", URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to reach storage: %w", err)
	}
	logger.Info("action audit log enabled")
	return store, nil
}
