package log

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryConfig configures error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// InitSentry initialises the global Sentry hub. It returns a flush function
// to defer from main; both are no-ops without a DSN.
func InitSentry(cfg SentryConfig, logger *Logger) func() {
	if cfg.DSN == "" {
		return func() {}
	}
	env := cfg.Environment
	if env == "" {
		env = "production"
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: env,
		Release:     cfg.Release,
	}); err != nil {
		// Reporting is best effort; never fail startup over it.
		logger.Error("Failed to initialize Sentry", FieldError, err)
		return func() {}
	}
	logger.Info("Sentry error reporting enabled", "environment", env)
	return func() { sentry.Flush(2 * time.Second) }
}

// ReportError captures err with tags on the context hub, or the global hub
// when the context carries none. Without an initialised client this does
// nothing.
func ReportError(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}
