package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/log"
)

// Sweeper runs StartupSweep on a fixed interval.
type Sweeper struct {
	worker   *ClassificationWorker
	interval time.Duration
	// immediate runs a sweep before the first tick.
	immediate bool
	logger    *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(w *ClassificationWorker, interval time.Duration, immediate bool) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		worker:    w,
		interval:  interval,
		immediate: immediate,
		logger:    log.Default(log.ComponentWorker),
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Sweeper started", "interval", s.interval)
	return nil
}

// Stop signals the loop and waits for the sweep in progress to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.immediate {
		s.sweep(ctx)
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.worker.StartupSweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "Sweep failed", log.NewFields().
			WithOperation(log.OpClassify).
			WithError(err, log.ErrorTypeDatabase).ToSlice()...)
		log.ReportError(ctx, err, map[string]string{log.FieldOperation: log.OpClassify})
	}
}
