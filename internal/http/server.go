package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

const readyTimeout = 2 * time.Second

// Config tunes the API server.
type Config struct {
	// DefaultOwner is used when a request carries no X-Owner-ID header.
	DefaultOwner string
	// TrustedProxies are extra CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string
	RateLimit      ratelimit.Config
}

type Server struct {
	http.Server
	svc          *services.TransactionService
	defaultOwner string
	detector     *security.Detector
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	logger       *log.Logger
	now          func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server serving the JSON API.
func NewServer(addr string, svc *services.TransactionService, cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if cfg.DefaultOwner == "" {
		cfg.DefaultOwner = "default"
	}

	detector := security.NewDetector()
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}

	s := &Server{
		svc:          svc,
		defaultOwner: cfg.DefaultOwner,
		detector:     detector,
		limiter:      ratelimit.NewLimiter(cfg.RateLimit),
		tracer:       trace.NewMiddleware(logger, detector.ExtractClientIP),
		logger:       logger,
		now:          time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/taxonomy", s.handleTaxonomy)
	mux.HandleFunc("GET /api/classify/preview", s.handlePreview)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("DELETE /api/transactions", s.handleBulkDelete)
	mux.HandleFunc("POST /api/transactions/classify", s.handleClassify)

	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/export/sheets", s.handleExportSheets)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("PUT /api/budgets", s.handleReplaceBudgets)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /api/sample", s.handleSample)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var h http.Handler = mux
	h = s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	})(h)
	h = s.flagSuspicious(h)
	h = security.NoStore(h)
	h = headers.Middleware(h)
	h = log.Middleware(logger, func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// flagSuspicious logs requests matching common probe patterns. They are
// still served; the rate limiter and routing reject what needs rejecting.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reasons := s.detector.Inspect(r); len(reasons) > 0 {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldComponent, log.ComponentSecurity,
				"reasons", reasons,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and the limiter cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		m := s.tracer.GetMetrics()
		s.logger.InfoContext(ctx, "HTTP server shutting down",
			"total_requests", m.TotalRequests,
			"avg_response_us", m.AverageResponseTime,
			"rate_limited", s.limiter.GetMetrics().TotalHits,
			"suspicious", s.detector.GetMetrics().SuspiciousRequests)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// owner resolves the request owner, writing a 400 when the header is invalid.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, err := ParseOwner(r, s.defaultOwner)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return "", false
	}
	return owner, true
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
