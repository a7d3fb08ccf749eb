// Package pool implements the Pool Processor: drains ready pool entries each
// Scheduler tick, claiming before dispatching to the Runner so concurrent
// workers never double-process an entry.
package pool

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"interpreter-engine/internal/config"
	"interpreter-engine/internal/events"
	"interpreter-engine/internal/metrics"
	"interpreter-engine/internal/models"
	"interpreter-engine/internal/repository"
	"interpreter-engine/internal/runner"
)

// Report summarizes one drain pass.
type Report struct {
	Claimed   int
	Assigned  int
	Escalated int
	Failed    int
	Skipped   int
}

// Processor is the Pool Processor.
type Processor struct {
	repo      *repository.PoolRepository
	policies  *repository.PolicyRepository
	logs      *repository.LogRepository
	tx        *repository.TxRunner
	runner    *runner.Runner
	notifier  events.Notifier
	logger    *slog.Logger
	batchSize int
	limiter   *rate.Limiter
}

func New(repo *repository.PoolRepository, policies *repository.PolicyRepository, logs *repository.LogRepository, tx *repository.TxRunner, r *runner.Runner, notifier events.Notifier, logger *slog.Logger, batchSize int) *Processor {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Processor{
		repo:      repo,
		policies:  policies,
		logs:      logs,
		tx:        tx,
		runner:    r,
		notifier:  notifier,
		logger:    logger,
		batchSize: batchSize,
		// Keeps a large drain from monopolizing DB capacity that concurrent
		// Runner invocations share.
		limiter: rate.NewLimiter(rate.Limit(20), 5),
	}
}

// peekCeiling bounds how many eligible entries one tick fetches before the
// Go-side priority sort. It is a safety valve far above any realistic
// backlog, not a batch size: the batch cut happens after ordering.
const peekCeiling = 1 << 20

// Drain runs one tick: fetch every ready entry whose deadline falls inside
// the mode's lookahead window, order the full set by the deadline-bucket
// priority key, and process the top batchSize within tickBudget. Ordering
// precedes the batch cut, so a freshly pooled near-deadline entry is
// drained ahead of older, lower-priority backlog rather than waiting for
// it to clear. Entries left over stay waiting with unchanged priority.
// CUSTOM mode's parallelism > 1 dispatches across a worker pool with the
// same claim-first discipline; every other mode is sequential.
func (p *Processor) Drain(ctx context.Context, tickBudget time.Duration) Report {
	ctx, cancel := context.WithTimeout(ctx, tickBudget)
	defer cancel()

	policy, err := p.policies.Load()
	if err != nil {
		p.logger.Error("failed to load policy for drain", "error", err)
		return Report{}
	}

	now := time.Now()
	horizon := now.Add(config.ModeLookahead(policy.Mode, policy.CustomLookaheadHours))
	entries, err := p.repo.PeekReady(horizon, peekCeiling)
	if err != nil {
		p.logger.Error("failed to peek ready pool entries", "error", err)
		return Report{}
	}

	entries = OrderForDrain(entries, now, p.batchSize)

	parallelism := 1
	if policy.Mode == models.ModeCustom && policy.CustomParallelism > 1 {
		parallelism = policy.CustomParallelism
	}

	if parallelism <= 1 {
		return p.drainSequential(ctx, entries)
	}
	return p.drainParallel(ctx, entries, parallelism)
}

// OrderForDrain sorts entries by the full priority key and keeps the top
// batchSize. The sort precedes the cut, so the batch always holds the
// highest-priority entries of the whole eligible set.
func OrderForDrain(entries []models.PoolEntry, now time.Time, batchSize int) []models.PoolEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Less(&entries[j], now)
	})
	if batchSize > 0 && len(entries) > batchSize {
		entries = entries[:batchSize]
	}
	return entries
}

func (p *Processor) drainSequential(ctx context.Context, entries []models.PoolEntry) Report {
	var report Report
	for _, entry := range entries {
		if ctx.Err() != nil {
			report.Skipped += len(entries) - report.Claimed - report.Skipped
			break
		}
		p.processOne(ctx, entry, &report)
	}
	return report
}

func (p *Processor) drainParallel(ctx context.Context, entries []models.PoolEntry, parallelism int) Report {
	var report Report
	var mu sync.Mutex
	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for _, entry := range entries {
		if ctx.Err() != nil {
			mu.Lock()
			report.Skipped++
			mu.Unlock()
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(e models.PoolEntry) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if rec := recover(); rec != nil {
					p.logger.Error("panic processing pool entry", "booking_id", e.BookingID, "panic", rec)
				}
			}()
			var local Report
			p.processOne(ctx, e, &local)
			mu.Lock()
			report.Claimed += local.Claimed
			report.Assigned += local.Assigned
			report.Escalated += local.Escalated
			report.Failed += local.Failed
			mu.Unlock()
		}(entry)
	}
	wg.Wait()
	return report
}

func (p *Processor) processOne(ctx context.Context, entry models.PoolEntry, report *Report) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}
	ok, err := p.repo.Claim(entry.BookingID, entry.Version)
	if err != nil {
		p.logger.Error("failed to claim pool entry", "booking_id", entry.BookingID, "error", err)
		return
	}
	if !ok {
		// Lost the race to another worker/tick; leave it alone.
		return
	}
	report.Claimed++

	outcome, err := p.runner.AssignBooking(ctx, entry.BookingID)
	if err != nil && outcome.Status == "" {
		p.recordFailure(ctx, entry, err.Error())
		report.Failed++
		return
	}

	switch outcome.Status {
	case models.OutcomeAssigned:
		if cErr := p.repo.Complete(entry.BookingID); cErr != nil {
			p.logger.Error("failed to complete pool entry", "booking_id", entry.BookingID, "error", cErr)
		}
		metrics.RecordPoolEntry(string(models.PoolAssigned))
		report.Assigned++
	case models.OutcomeEscalated:
		if eErr := p.repo.Escalate(entry.BookingID); eErr != nil {
			p.logger.Error("failed to escalate pool entry", "booking_id", entry.BookingID, "error", eErr)
		}
		p.recordHistory(ctx, entry, models.HistoryEscalated, models.PoolEscalated, outcome.Reason)
		metrics.RecordPoolEntry(string(models.PoolEscalated))
		if p.notifier != nil {
			event := events.PoolEscalatedEvent{BookingID: entry.BookingID.String(), Reason: outcome.Reason, Source: "pool_processor"}
			if pErr := p.notifier.PublishPoolEscalated(ctx, event); pErr != nil {
				p.logger.Warn("failed to publish escalation event", "booking_id", entry.BookingID, "error", pErr)
			}
		}
		report.Escalated++
	case runner.StatusPooled:
		// Re-evaluated and still not ready for immediate assignment; the
		// Runner already re-enqueued it with a fresh deadline.
	default:
		p.recordFailure(ctx, entry, outcome.Reason)
		report.Failed++
	}
}

func (p *Processor) recordFailure(ctx context.Context, entry models.PoolEntry, reason string) {
	terminal := entry.Attempts >= 6
	if err := p.repo.Fail(entry.BookingID, terminal); err != nil {
		p.logger.Error("failed to fail pool entry", "booking_id", entry.BookingID, "error", err)
	}
	state := models.PoolWaiting
	if terminal {
		state = models.PoolFailed
	}
	metrics.RecordPoolEntry(string(state))
	p.recordHistory(ctx, entry, models.HistoryFailed, state, reason)
}

func (p *Processor) recordHistory(ctx context.Context, entry models.PoolEntry, action models.PoolHistoryAction, newState models.PoolSubState, reason string) {
	err := p.tx.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		return p.logs.InsertPoolHistory(tx, &models.PoolEntryHistory{
			ID:            uuid.New(),
			BookingID:     entry.BookingID,
			Action:        action,
			PreviousState: entry.SubState,
			NewState:      newState,
			Attempts:      entry.Attempts,
			ErrorMessage:  &reason,
			SystemState:   models.JSONMap{},
			CreatedAt:     time.Now(),
		})
	})
	if err != nil {
		p.logger.Error("failed to record pool history", "booking_id", entry.BookingID, "error", err)
	}
}
