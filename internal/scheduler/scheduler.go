// Package scheduler implements the drain scheduler: a single-leader periodic
// timer built on a self-rescheduling timer rather than a fixed ticker, so a
// slow tick does not accumulate drift, and each tick is guarded against
// overlap.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/netresearch/go-cron"

	"interpreter-engine/internal/dbredis"
	"interpreter-engine/internal/metrics"
)

// TickFunc is invoked once per tick (normally the Pool Processor's Drain).
type TickFunc func(ctx context.Context)

// Status is the scheduler's read model, protected behind its own mutex.
type Status struct {
	Running      bool
	Interval     time.Duration
	LastTickAt   time.Time
	NextTickAt   time.Time
	TickCount    int64
	LastTickTook time.Duration
}

// Scheduler runs TickFunc on a drift-controlled interval, or on a cron
// expression when CustomCronExpr is set (CUSTOM mode, via go-cron).
type Scheduler struct {
	tick    TickFunc
	redis   *dbredis.Client
	logger  *slog.Logger
	lockKey string
	lockTTL time.Duration

	mu       sync.Mutex
	status   Status
	cancel   context.CancelFunc
	running  bool
	cronJob  *cron.Cron
	inFlight sync.Mutex
}

func New(tick TickFunc, redis *dbredis.Client, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tick:    tick,
		redis:   redis,
		logger:  logger,
		lockKey: "scheduler:tick-lock",
		lockTTL: 55 * time.Second,
	}
}

// Start begins the timer loop at the given interval.
func (s *Scheduler) Start(interval time.Duration) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.status = Status{Running: true, Interval: interval, NextTickAt: time.Now().Add(interval)}
	s.mu.Unlock()

	go s.run(ctx, interval)
}

// StartCron begins a CUSTOM-mode cron-expression schedule via go-cron, since
// a fixed ticker cannot express arbitrary cron syntax.
func (s *Scheduler) StartCron(expr string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	job := cron.New()
	_, err := job.AddFunc(expr, func() {
		s.runTick(context.Background())
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	job.Start()
	s.cronJob = job
	s.running = true
	s.status = Status{Running: true}
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration) {
	next := time.Now().Add(interval)
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-timer.C:
			// Stop cancels ctx; the tick itself runs on a context that is
			// not cancelled with it, so an in-flight tick finishes and
			// releases its lock.
			s.runTick(context.WithoutCancel(ctx))

			// Drift control: schedule the next tick from the expected
			// wakeup, not the actual one. A tick that fell far behind
			// coalesces into a single immediate-ish next fire rather than
			// rapid catch-up ticks.
			next = next.Add(interval)
			if next.Before(time.Now()) {
				next = time.Now()
			}
			s.mu.Lock()
			s.status.NextTickAt = next
			s.mu.Unlock()
			timer.Reset(time.Until(next))
		}
	}
}

// runTick serializes execution: a new tick is skipped if the previous is
// still running, and is further guarded by a Redis lock so that at
// most one process-wide tick runs even across multiple engine instances.
func (s *Scheduler) runTick(ctx context.Context) {
	if !s.inFlight.TryLock() {
		s.logger.Debug("skipping tick, previous tick still running")
		return
	}
	defer s.inFlight.Unlock()
	s.executeTick(ctx)
}

func (s *Scheduler) executeTick(ctx context.Context) {
	acquired, err := s.redis.AcquireLock(ctx, s.lockKey, s.lockTTL)
	if err != nil {
		s.logger.Error("failed to acquire scheduler lock", "error", err)
		return
	}
	if !acquired {
		s.logger.Debug("skipping tick, another instance holds the lock")
		return
	}
	defer func() {
		if err := s.redis.ReleaseLock(ctx, s.lockKey); err != nil {
			s.logger.Error("failed to release scheduler lock", "error", err)
		}
	}()

	started := time.Now()
	s.tick(ctx)
	took := time.Since(started)
	metrics.RecordSchedulerTick()

	s.mu.Lock()
	s.status.LastTickAt = started
	s.status.LastTickTook = took
	s.status.TickCount++
	s.mu.Unlock()
}

// Stop signals the loop; an in-flight tick is allowed to finish, but no new
// tick starts.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.cronJob != nil {
		s.cronJob.Stop()
		s.cronJob = nil
	}
	s.running = false
	s.status.Running = false
}

// Restart stops and starts again at the given interval.
func (s *Scheduler) Restart(interval time.Duration) {
	s.Stop()
	s.Start(interval)
}

// ProcessNow blocks on the current tick's completion, then runs an
// out-of-band tick immediately.
func (s *Scheduler) ProcessNow(ctx context.Context) {
	s.inFlight.Lock()
	defer s.inFlight.Unlock()
	s.executeTick(ctx)
}

// GetStatus returns a snapshot of the Scheduler's read model.
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
