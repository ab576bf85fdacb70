package main

import (
	"context"
	"errors"
	"net/http"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, logger, flush := cli.Bootstrap(log.ComponentApp, version)
	defer flush()

	app, err := backend.NewApp(context.Background(), cfg, logger)
	if err != nil {
		cli.Fatal(logger, flush, "Failed to initialize application", err)
	}

	limits := ratelimit.DefaultConfig()
	limits.RequestsPerMinute = cfg.RateLimitPerMinute
	srv := apphttp.NewServer(":"+cfg.Port, app.Transactions, apphttp.Config{
		DefaultOwner:   cfg.DefaultOwner,
		TrustedProxies: cfg.TrustedProxies,
		RateLimit:      limits,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		if err := app.Close(); err != nil {
			logger.Error("Application close error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"version", version)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, flush, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
