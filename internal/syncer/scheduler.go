package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const flightKey = "sync"

// Runner is what the scheduler drives. *Synchronizer implements it.
type Runner interface {
	RunWithRetry(ctx context.Context) (*Result, error)
	Probe(ctx context.Context) error
}

// Scheduler runs the synchronizer on a fixed interval and on demand. At most
// one run executes at a time; callers that arrive during a run share its
// result.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	flight  singleflight.Group
	flights sync.WaitGroup

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Start launches the periodic loop. Calling Start while running is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.wg.Add(1)
	go s.loop(s.ctx)
	s.logger.Info("sync scheduler started", "interval", s.interval.String())
}

// Stop cancels the loop and any in-flight run and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.flights.Wait()
	s.logger.Info("sync scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger requests a one-shot run without waiting for it. It does nothing
// while the scheduler is stopped.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Run(ctx); err != nil {
			s.logger.Warn("triggered sync failed", "error", err)
		}
	}()
}

// Run executes a run and waits for it, joining one already in flight. The
// run itself is bound to the scheduler's lifetime, not to ctx: a caller that
// gives up stops waiting without cancelling the run for the others.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	ch := s.flight.DoChan(flightKey, func() (any, error) {
		runCtx, done := s.flightContext(ctx)
		defer done()
		return s.runner.RunWithRetry(runCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("joined in-flight sync")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

// flightContext returns the context a new run executes under. While started
// that is the scheduler's own context; a stopped scheduler detaches from the
// caller instead, and the run ends on its own retry budget.
func (s *Scheduler) flightContext(ctx context.Context) (context.Context, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return context.WithoutCancel(ctx), func() {}
	}
	s.flights.Add(1)
	return s.ctx, s.flights.Done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick skips the run when the backend is unreachable.
func (s *Scheduler) tick(ctx context.Context) {
	if err := s.runner.Probe(ctx); err != nil {
		s.logger.Debug("sync skipped, cloud unreachable", "error", err)
		return
	}
	if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("scheduled sync failed", "error", err)
	}
}
