// Package emergency implements the emergency override: an admin-triggered
// full drain of every pool entry in strict priority order, independent of
// the Scheduler's normal batch and lookahead limits, with per-entry
// retry/backoff and a structured report.
package emergency

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"interpreter-engine/internal/dbredis"
	"interpreter-engine/internal/events"
	"interpreter-engine/internal/metrics"
	"interpreter-engine/internal/models"
	"interpreter-engine/internal/repository"
	"interpreter-engine/internal/runner"
)

const maxRetries = 5

var errAlreadyRunning = errors.New("emergency override already running")

// EntryReport is one pool entry's outcome within an emergency run.
type EntryReport struct {
	BookingID         string        `json:"booking_id"`
	Outcome           string        `json:"outcome"`
	UrgencyLevel      string        `json:"urgency_level"`
	TimeToDeadline    time.Duration `json:"time_to_deadline"`
	ManualEscalation  bool          `json:"manual_escalation"`
	Attempts          int           `json:"attempts"`
}

// Report is the full structured report produced by one emergency run.
type Report struct {
	TriggeredBy string        `json:"triggered_by"`
	Reason      string        `json:"reason"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	BeforeStats models.PoolStats `json:"before_stats"`
	AfterStats  models.PoolStats `json:"after_stats"`
	Entries     []EntryReport `json:"entries"`
}

// Override is the Emergency Override component.
type Override struct {
	pool     *repository.PoolRepository
	logs     *repository.LogRepository
	tx       *repository.TxRunner
	runner   *runner.Runner
	redis    *dbredis.Client
	notifier events.Notifier
	logger   *slog.Logger
}

func New(pool *repository.PoolRepository, logs *repository.LogRepository, tx *repository.TxRunner, r *runner.Runner, redis *dbredis.Client, notifier events.Notifier, logger *slog.Logger) *Override {
	return &Override{pool: pool, logs: logs, tx: tx, runner: r, redis: redis, notifier: notifier, logger: logger}
}

// Run performs one full drain, guarded so at most one emergency run executes
// at a time across the process.
func (o *Override) Run(ctx context.Context, reason, triggeredBy string) (*Report, error) {
	const lockKey = "emergency:run-lock"
	acquired, err := o.redis.AcquireLock(ctx, lockKey, 10*time.Minute)
	if err != nil {
		return nil, err
	}
	if !acquired {
		o.logger.Warn("emergency override already running, refusing concurrent trigger")
		return nil, errAlreadyRunning
	}
	defer func() {
		if err := o.redis.ReleaseLock(ctx, lockKey); err != nil {
			o.logger.Error("failed to release emergency run lock", "error", err)
		}
	}()

	report := &Report{TriggeredBy: triggeredBy, Reason: reason, StartedAt: time.Now()}

	before, err := o.pool.Stats()
	if err != nil {
		return nil, err
	}
	report.BeforeStats = *before

	entries, err := o.peekAll()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Less(&entries[j], now)
	})

	for _, entry := range entries {
		report.Entries = append(report.Entries, o.processWithRetry(ctx, entry, now))
	}

	after, err := o.pool.Stats()
	if err != nil {
		return nil, err
	}
	report.AfterStats = *after
	report.FinishedAt = time.Now()

	o.recordAudit(ctx, report)
	metrics.RecordEmergencyRun()

	return report, nil
}

// peekAll fetches every pool entry irrespective of deadline or batch
// limits; emergency runs intentionally bypass the Scheduler's lookahead
// and batchSize.
func (o *Override) peekAll() ([]models.PoolEntry, error) {
	return o.pool.PeekAll(1 << 20)
}

func (o *Override) processWithRetry(ctx context.Context, entry models.PoolEntry, now time.Time) EntryReport {
	report := EntryReport{
		BookingID:      entry.BookingID.String(),
		UrgencyLevel:   entry.Bucket(now).String(),
		TimeToDeadline: entry.Deadline.Sub(now),
	}

	var lastErr error
	current := entry
	for attempt := 0; attempt < maxRetries; attempt++ {
		ok, err := o.pool.Claim(current.BookingID, current.Version)
		if err != nil {
			lastErr = err
			break
		}
		if !ok {
			report.Outcome = "already_claimed"
			return report
		}

		outcome, err := o.runner.AssignBooking(ctx, current.BookingID)
		report.Attempts = attempt + 1
		if err == nil && outcome.Status == models.OutcomeAssigned {
			if cErr := o.pool.Complete(current.BookingID); cErr != nil {
				o.logger.Error("failed to complete emergency entry", "booking_id", current.BookingID, "error", cErr)
			}
			report.Outcome = "assigned"
			return report
		}
		if outcome.Status == models.OutcomeEscalated {
			if eErr := o.pool.Escalate(current.BookingID); eErr != nil {
				o.logger.Error("failed to escalate emergency entry", "booking_id", current.BookingID, "error", eErr)
			}
			if o.notifier != nil {
				event := events.PoolEscalatedEvent{BookingID: current.BookingID.String(), Reason: outcome.Reason, Source: "emergency_override"}
				if pErr := o.notifier.PublishPoolEscalated(ctx, event); pErr != nil {
					o.logger.Warn("failed to publish escalation event", "booking_id", current.BookingID, "error", pErr)
				}
			}
			report.Outcome = "escalated"
			report.ManualEscalation = true
			return report
		}

		lastErr = err
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		time.Sleep(backoff)

		reloaded, rErr := o.reload(current.BookingID)
		if rErr != nil {
			lastErr = rErr
			break
		}
		current = reloaded
	}

	report.Outcome = "failed"
	report.ManualEscalation = true
	if lastErr != nil {
		if fErr := o.pool.Fail(current.BookingID, true); fErr != nil {
			o.logger.Error("failed to fail emergency entry", "booking_id", current.BookingID, "error", fErr)
		}
	}
	return report
}

func (o *Override) reload(bookingID uuid.UUID) (models.PoolEntry, error) {
	entry, err := o.pool.Get(bookingID)
	if err != nil {
		return models.PoolEntry{}, err
	}
	return *entry, nil
}

func (o *Override) recordAudit(ctx context.Context, report *Report) {
	entries := make([]any, 0, len(report.Entries))
	for _, e := range report.Entries {
		entries = append(entries, e)
	}

	err := o.tx.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		return o.logs.InsertEmergencyAudit(tx, &models.EmergencyAudit{
			ID:          uuid.New(),
			TriggeredBy: report.TriggeredBy,
			Reason:      report.Reason,
			EntryCount:  len(report.Entries),
			StartedAt:   report.StartedAt,
			FinishedAt:  report.FinishedAt,
			Report: models.JSONMap{
				"before_stats": report.BeforeStats,
				"after_stats":  report.AfterStats,
				"entries":      entries,
			},
			CreatedAt: time.Now(),
		})
	})
	if err != nil {
		o.logger.Error("failed to record emergency audit log", "error", err)
	}
}
