// Package ratelimit throttles mutating API calls per client IP.
package ratelimit

import (
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/log"
)

const window = time.Minute

// Limiter counts requests per client in one-minute windows. A window starts
// with the first request after the previous one expired.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*clientWindow
	now     func() time.Time

	perMinute  int
	methods    []string
	staleAfter time.Duration

	limited  atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

type clientWindow struct {
	start time.Time
	last  time.Time
	count int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// Methods lists the limited HTTP methods. Nil means the defaults.
	Methods []string
}

// DefaultConfig limits the mutating methods to 60 requests per minute.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		Methods:           []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}
}

// NewLimiter starts a limiter and its background cleanup; call Stop to end it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.Methods == nil {
		cfg.Methods = def.Methods
	}

	l := &Limiter{
		windows:    make(map[string]*clientWindow),
		now:        time.Now,
		perMinute:  cfg.RequestsPerMinute,
		methods:    slices.Clone(cfg.Methods),
		staleAfter: 2 * cfg.CleanupInterval,
		stop:       make(chan struct{}),
	}
	go l.cleanupLoop(cfg.CleanupInterval)
	return l
}

// Allow records a request from clientIP and reports whether it is within
// the limit.
func (l *Limiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[clientIP]
	if !ok || now.Sub(w.start) > window {
		l.windows[clientIP] = &clientWindow{start: now, last: now, count: 1}
		return true
	}

	w.count++
	w.last = now
	if w.count > l.perMinute {
		l.limited.Add(1)
		return false
	}
	return true
}

// Limits reports whether requests with method are counted.
func (l *Limiter) Limits(method string) bool {
	return slices.Contains(l.methods, method)
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.dropStale()
		case <-l.stop:
			return
		}
	}
}

// dropStale forgets clients idle for longer than staleAfter.
func (l *Limiter) dropStale() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.staleAfter)
	n := 0
	for ip, w := range l.windows {
		if w.last.Before(cutoff) {
			delete(l.windows, ip)
			n++
		}
	}
	return n
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   l.limited.Load(),
		ClientCount: int64(l.ActiveClients()),
	}
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
// onLimit writes the body; nil writes a plain-text message.
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(window / time.Second))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Limits(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := extractIP(r)
			if l.Allow(clientIP) {
				next.ServeHTTP(w, r)
				return
			}

			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldComponent, log.ComponentRateLimit,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", retryAfter)
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
