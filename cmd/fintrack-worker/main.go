package main

import (
	"context"
	"errors"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

var version = "dev"

func main() {
	cfg, logger, flush := cli.Bootstrap(log.ComponentWorker, version)
	defer flush()

	if !cfg.AMQPEnabled() {
		cli.Fatal(logger, flush, "AMQP_URL is required for the classification worker", nil)
	}

	app, err := backend.NewApp(context.Background(), cfg, logger)
	if err != nil {
		cli.Fatal(logger, flush, "Failed to initialize application", err)
	}
	if app.AMQP == nil {
		_ = app.Close()
		cli.Fatal(logger, flush, "AMQP client unavailable, cannot consume classification requests", nil)
	}

	w := worker.NewClassificationWorker(app.Repository, app.Transactions, worker.DefaultSweepBatchSize)
	sweeper := worker.NewSweeper(w, cfg.SweepInterval, cfg.StartupSweep)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := sweeper.Stop(ctx); err != nil {
			logger.Warn("Sweeper stop error", log.FieldError, err.Error())
		}
		if err := app.Close(); err != nil {
			logger.Error("Application close error", log.FieldError, err.Error())
		}
	})

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweeper", log.FieldError, err.Error())
	}

	logger.Info("Starting fintrack-worker",
		"queue", cfg.AMQPQueue,
		"sweep_interval", cfg.SweepInterval.String(),
		"startup_sweep", cfg.StartupSweep,
		"version", version)

	if err := app.AMQP.ConsumeClassifications(ctx, w.HandleClassificationRequest); err != nil && !errors.Is(err, context.Canceled) {
		log.ReportError(ctx, err, map[string]string{"component": log.ComponentWorker})
		_ = sweeper.Stop(context.Background())
		_ = app.Close()
		cli.Fatal(logger, flush, "Message consumption failed", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
