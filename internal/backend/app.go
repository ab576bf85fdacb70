package backend

import (
	"context"
	"fmt"

	"fintrack/internal/aggregate"
	"fintrack/internal/ai"
	"fintrack/internal/ai/gemini"
	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/classify"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/sheets/google"
	"fintrack/internal/storage"
	"fintrack/internal/taxonomy"
)

const dashboardCacheSize = 256

// App is the wired object graph shared by the API server and the worker.
type App struct {
	Config       *config.Config
	Repository   storage.Repository
	Classifier   *services.ClassificationService
	Transactions *services.TransactionService
	// AMQP is nil when AMQP_URL is unset or the broker was unreachable.
	AMQP   *amqp.Client
	Caches *cache.Manager

	logger *log.Logger
}

// NewApp builds every collaborator from cfg. Optional integrations that fail
// to start are logged and left out; only storage and rule errors are fatal.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default(log.ComponentApp)
	}
	tax := taxonomy.Default()

	keywords, err := loadKeywords(cfg.KeywordRulesFile, tax)
	if err != nil {
		return nil, err
	}

	sc, err := StoreConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	repo, err := OpenStore(ctx, sc, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		Repository: repo,
		Caches:     cache.NewManager(logger.WithComponent(log.ComponentCache)),
		logger:     logger,
	}

	var aiClassifier ai.Classifier
	if cfg.AIEnabled() {
		g, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel, Timeout: cfg.AITimeout}, tax)
		if err != nil {
			logger.WarnContext(ctx, "AI classifier disabled, using keyword rules only", log.FieldError, err.Error())
		} else {
			aiClassifier = g
		}
	}
	app.Classifier = services.NewClassificationService(aiClassifier, keywords, tax,
		services.WithBatchSize(cfg.ClassifyBatchSize),
		services.WithConcurrency(cfg.ClassifyConcurrency),
		services.WithClassificationLogger(logger))

	opts := []services.TransactionOption{
		services.WithTaxonomy(tax),
		services.WithTrendMonths(cfg.TrendMonths),
		services.WithTransactionLogger(logger),
	}

	if cfg.CacheTTL > 0 {
		dashboards := cache.NewLRUCache[core.Dashboard](dashboardCacheSize, cfg.CacheTTL)
		app.Caches.Register(dashboards)
		app.Caches.StartCleanup(cfg.CacheTTL)
		opts = append(opts, services.WithDashboardCache(dashboards))
	}

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WarnContext(ctx, "Failed to initialize AMQP client, classifying inline", log.FieldError, err.Error())
		} else {
			app.AMQP = client
			opts = append(opts, services.WithPublisher(client))
			logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	if cfg.GoogleSpreadsheetID != "" {
		exporter, err := google.NewFromEnv(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleExportSheet)
		if err != nil {
			logger.WarnContext(ctx, "Google Sheets export disabled", log.FieldError, err.Error())
		} else {
			opts = append(opts, services.WithSheetsExporter(exporter))
		}
	}

	app.Transactions = services.NewTransactionService(repo, app.Classifier, aggregate.NewEngine(tax), opts...)

	logger.InfoContext(ctx, "Application wired",
		"backend", string(sc.Kind),
		"ai_enabled", aiClassifier != nil,
		"amqp_enabled", app.AMQP != nil,
		"cache_ttl", cfg.CacheTTL)
	return app, nil
}

func loadKeywords(path string, tax *taxonomy.Taxonomy) (*classify.Classifier, error) {
	if path == "" {
		return classify.Default(), nil
	}
	rules, err := classify.LoadRulesFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keyword rules: %w", err)
	}
	keywords, err := classify.New(tax, rules)
	if err != nil {
		return nil, fmt.Errorf("compile keyword rules: %w", err)
	}
	return keywords, nil
}

// Close stops cache cleanup and closes storage and the broker connection.
func (a *App) Close() error {
	a.Caches.Stop()
	if err := a.Transactions.Close(); err != nil {
		a.logger.Error("Failed to close application", log.FieldError, err.Error())
		return fmt.Errorf("close app: %w", err)
	}
	return nil
}
