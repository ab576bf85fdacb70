// Package cli holds the process startup and shutdown sequence shared by
// cmd/fintrack and cmd/fintrack-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/config"
	"fintrack/internal/log"
)

// Bootstrap loads an optional .env file and the configuration, installs the
// process logger and starts Sentry. Invalid configuration ends the process.
// The returned func flushes pending error reports and must run before exit.
func Bootstrap(component, release string) (*config.Config, *log.Logger, func()) {
	// .env is a local development convenience; its absence is normal.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	flush := log.InitSentry(log.SentryConfig{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     release,
	}, logger)
	return cfg, logger, flush
}

// Fatal logs err, flushes error reporting and exits with status 1.
func Fatal(logger *log.Logger, flush func(), msg string, err error) {
	if err != nil {
		logger.Error(msg, log.FieldError, err.Error())
	} else {
		logger.Error(msg)
	}
	if flush != nil {
		flush()
	}
	os.Exit(1)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// cancellation cleanup runs with a context bounded by timeout, then done is
// closed.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutdown signal received", "timeout", timeout.String())

		cleanupCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if cleanup != nil {
			cleanup(cleanupCtx)
		}
		if cleanupCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached, some resources may not be released")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the signal arrived and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
