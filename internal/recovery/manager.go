// Package recovery implements the Error-Recovery Manager: stuck-
// processing reset, excessive-retries reset, corruption quarantine, and
// exponential-backoff/error-categorization helpers.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"interpreter-engine/internal/models"
	"interpreter-engine/internal/repository"
)

const (
	stuckProcessingAge = time.Hour
	excessiveRetries   = 6
)

// Manager is the Error-Recovery Manager.
type Manager struct {
	pool   *repository.PoolRepository
	logs   *repository.LogRepository
	tx     *repository.TxRunner
	logger *slog.Logger
}

func New(pool *repository.PoolRepository, logs *repository.LogRepository, tx *repository.TxRunner, logger *slog.Logger) *Manager {
	return &Manager{pool: pool, logs: logs, tx: tx, logger: logger}
}

// Result summarizes one sweep across all three recovery checks.
type Result struct {
	StuckReset      int64
	ExcessiveReset  int64
	Quarantined     int
	QuarantineNotes []string
}

// ResetStuckProcessing reverts entries stuck in "processing" longer than
// stuckProcessingAge back to "waiting".
func (m *Manager) ResetStuckProcessing(ctx context.Context) (int64, error) {
	return m.pool.ResetStuckProcessing(stuckProcessingAge)
}

// ResetExcessiveRetries resets the state to "waiting" for entries with
// attempts > 6, flagging them for admin review. The attempts counter is not
// reset; it keeps its value. The review flag
// is recorded via a PoolEntryHistory row rather than a new column, since the
// history trail is already the admin-facing audit surface.
func (m *Manager) ResetExcessiveRetries(ctx context.Context, entries []models.PoolEntry) (int64, error) {
	var reset int64
	for _, e := range entries {
		if e.Attempts <= excessiveRetries {
			continue
		}
		if err := m.pool.Fail(e.BookingID, false); err != nil {
			m.logger.Error("failed to reset excessive-retry entry", "booking_id", e.BookingID, "error", err)
			continue
		}
		reset++
		m.flagForReview(ctx, e)
	}
	return reset, nil
}

// DetectCorruption finds entries violating the pool invariants (deadline <
// poolEntryTime, end <= start, deadline > start) and returns their booking
// IDs. Bookings themselves are never deleted; callers must call Quarantine
// to remove only the pool entry.
func DetectCorruption(bookings []models.Booking) []string {
	var corrupted []string
	for _, b := range bookings {
		if b.PoolDeadlineTime == nil || b.PoolEntryTime == nil {
			continue
		}
		switch {
		case b.PoolDeadlineTime.Before(*b.PoolEntryTime):
			corrupted = append(corrupted, b.ID.String())
		case !b.EndTime.After(b.StartTime):
			corrupted = append(corrupted, b.ID.String())
		case b.PoolDeadlineTime.After(b.StartTime):
			corrupted = append(corrupted, b.ID.String())
		}
	}
	return corrupted
}

// Quarantine removes a corrupted entry from the pool, recording the reason;
// the underlying booking row is left untouched; bookings are never silently
// deleted.
func (m *Manager) Quarantine(ctx context.Context, bookingID string, reason string) error {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return fmt.Errorf("invalid booking id %s: %w", bookingID, err)
	}
	// Complete clears the pool sub-state to "none", taking the entry out of
	// the pool without touching the rest of the booking row.
	if err := m.pool.Complete(id); err != nil {
		return err
	}
	m.logger.Warn("quarantined corrupted pool entry", "booking_id", bookingID, "reason", reason)
	return nil
}

func (m *Manager) flagForReview(ctx context.Context, entry models.PoolEntry) {
	err := m.tx.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		msg := "excessive retries, flagged for admin review"
		return m.logs.InsertPoolHistory(tx, &models.PoolEntryHistory{
			ID:            uuid.New(),
			BookingID:     entry.BookingID,
			Action:        models.HistoryRetried,
			PreviousState: entry.SubState,
			NewState:      models.PoolWaiting,
			Attempts:      entry.Attempts,
			ErrorMessage:  &msg,
			SystemState:   models.JSONMap{},
			CreatedAt:     time.Now(),
		})
	})
	if err != nil {
		m.logger.Error("failed to record excessive-retry review flag", "booking_id", entry.BookingID, "error", err)
	}
}

// Backoff computes the exponential retry delay: min(baseDelay*2^attempt, 30s)
//.
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	delay := baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	const ceiling = 30 * time.Second
	if delay > ceiling {
		return ceiling
	}
	return delay
}

// Categorize classifies an error message by keyword for reporting purposes
// only; it never affects correctness.
func Categorize(errMsg string) string {
	lower := strings.ToLower(errMsg)
	switch {
	case strings.Contains(lower, "timeout"):
		return "timeout"
	case strings.Contains(lower, "network"):
		return "network"
	case strings.Contains(lower, "conflict"):
		return "conflict"
	case strings.Contains(lower, "invalid"):
		return "invalid"
	case strings.Contains(lower, "business"):
		return "business"
	default:
		return "unknown"
	}
}
