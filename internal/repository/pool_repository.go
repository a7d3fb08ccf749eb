package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"interpreter-engine/internal/models"
)

// PoolRepository is the pooled-booking store: a priority-ordered,
// version-guarded queue over the booking table.
type PoolRepository struct {
	db *sqlx.DB
}

func NewPoolRepository(db *sqlx.DB) *PoolRepository {
	return &PoolRepository{db: db}
}

// Enqueue moves a booking into the pool with the given deadline.
func (r *PoolRepository) Enqueue(bookingID uuid.UUID, deadline time.Time) error {
	query := `
		UPDATE booking SET
			pool_sub_state = $1,
			pool_entry_time = now(),
			pool_deadline_time = $2,
			processing_attempts = 0,
			version = version + 1,
			updated_at = now()
		WHERE id = $3`
	if _, err := r.db.Exec(query, models.PoolWaiting, deadline, bookingID); err != nil {
		return fmt.Errorf("failed to enqueue booking %s: %w", bookingID, err)
	}
	return nil
}

// PeekReady returns pool entries eligible for processing (waiting or ready,
// not already claimed) whose deadline falls on or before horizon, most
// urgent deadlines first. The caller applies the full priority key
// (deadline bucket, then meeting-type weight, then entry time) and its
// batch size after this fetch -- ordering before limiting, so a
// near-deadline entry is never crowded out of a batch by older,
// lower-priority entries. limit is only a safety ceiling, set well above
// any realistic backlog.
func (r *PoolRepository) PeekReady(horizon time.Time, limit int) ([]models.PoolEntry, error) {
	var rows []models.PoolEntry
	query := `
		SELECT id, meeting_type, start_time, pool_entry_time, pool_deadline_time, pool_sub_state, processing_attempts, version
		FROM booking
		WHERE pool_sub_state IN ($1, $2)
		  AND booking_status != $3
		  AND pool_deadline_time <= $4
		ORDER BY pool_deadline_time
		LIMIT $5`
	if err := r.db.Select(&rows, query, models.PoolWaiting, models.PoolReady, models.BookingCancel, horizon, limit); err != nil {
		return nil, fmt.Errorf("failed to peek ready pool entries: %w", err)
	}
	return rows, nil
}

// PeekAll returns every unclaimed pool entry regardless of deadline, for the
// emergency override's full drain and the repair sweeps.
func (r *PoolRepository) PeekAll(limit int) ([]models.PoolEntry, error) {
	var rows []models.PoolEntry
	query := `
		SELECT id, meeting_type, start_time, pool_entry_time, pool_deadline_time, pool_sub_state, processing_attempts, version
		FROM booking
		WHERE pool_sub_state IN ($1, $2)
		  AND booking_status != $3
		ORDER BY pool_deadline_time
		LIMIT $4`
	if err := r.db.Select(&rows, query, models.PoolWaiting, models.PoolReady, models.BookingCancel, limit); err != nil {
		return nil, fmt.Errorf("failed to peek pool entries: %w", err)
	}
	return rows, nil
}

// Get returns a single pool entry regardless of sub-state, used to reload
// the version token after a failed attempt mid-retry (the entry may already
// be "processing" by then, so PeekReady's waiting/ready filter won't see it).
func (r *PoolRepository) Get(bookingID uuid.UUID) (*models.PoolEntry, error) {
	var entry models.PoolEntry
	query := `
		SELECT id, meeting_type, start_time, pool_entry_time, pool_deadline_time, pool_sub_state, processing_attempts, version
		FROM booking WHERE id = $1`
	if err := r.db.Get(&entry, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to get pool entry %s: %w", bookingID, err)
	}
	return &entry, nil
}

// Claim transitions an entry to "processing" iff its version still matches,
// the compare-and-swap that lets concurrent pool-processor workers and
// scheduler ticks share one queue without double-dispatch.
func (r *PoolRepository) Claim(bookingID uuid.UUID, expectedVersion int64) (bool, error) {
	query := `
		UPDATE booking SET
			pool_sub_state = $1,
			processing_attempts = processing_attempts + 1,
			version = version + 1,
			updated_at = now()
		WHERE id = $2 AND version = $3`
	res, err := r.db.Exec(query, models.PoolProcessing, bookingID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to claim pool entry %s: %w", bookingID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for %s: %w", bookingID, err)
	}
	return affected == 1, nil
}

// Complete marks a claimed entry as assigned, clearing pool state.
func (r *PoolRepository) Complete(bookingID uuid.UUID) error {
	query := `
		UPDATE booking SET
			pool_sub_state = $1,
			version = version + 1,
			updated_at = now()
		WHERE id = $2`
	if _, err := r.db.Exec(query, models.PoolNone, bookingID); err != nil {
		return fmt.Errorf("failed to complete pool entry %s: %w", bookingID, err)
	}
	return nil
}

// Fail returns a claimed entry to "waiting" (retry) or "failed" (exhausted),
// chosen by the caller per the error-recovery backoff policy.
func (r *PoolRepository) Fail(bookingID uuid.UUID, terminal bool) error {
	state := models.PoolWaiting
	if terminal {
		state = models.PoolFailed
	}
	query := `
		UPDATE booking SET
			pool_sub_state = $1,
			version = version + 1,
			updated_at = now()
		WHERE id = $2`
	if _, err := r.db.Exec(query, state, bookingID); err != nil {
		return fmt.Errorf("failed to fail pool entry %s: %w", bookingID, err)
	}
	return nil
}

// Escalate marks an entry as escalated, needing human intervention.
func (r *PoolRepository) Escalate(bookingID uuid.UUID) error {
	query := `
		UPDATE booking SET
			pool_sub_state = $1,
			version = version + 1,
			updated_at = now()
		WHERE id = $2`
	if _, err := r.db.Exec(query, models.PoolEscalated, bookingID); err != nil {
		return fmt.Errorf("failed to escalate pool entry %s: %w", bookingID, err)
	}
	return nil
}

// ResetFailed returns "failed" entries older than age to "waiting" so the
// next tick retries them.
func (r *PoolRepository) ResetFailed(age time.Duration) (int64, error) {
	query := `
		UPDATE booking SET
			pool_sub_state = $1,
			processing_attempts = 0,
			version = version + 1,
			updated_at = now()
		WHERE pool_sub_state = $2 AND updated_at < $3`
	res, err := r.db.Exec(query, models.PoolWaiting, models.PoolFailed, time.Now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed pool entries: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing reverts entries stuck in "processing" longer than
// olderThan back to "waiting", the Error-Recovery Manager's stuck-reset sweep
//.
func (r *PoolRepository) ResetStuckProcessing(olderThan time.Duration) (int64, error) {
	query := `
		UPDATE booking SET
			pool_sub_state = $1,
			version = version + 1,
			updated_at = now()
		WHERE pool_sub_state = $2 AND updated_at < $3`
	res, err := r.db.Exec(query, models.PoolWaiting, models.PoolProcessing, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck pool entries: %w", err)
	}
	return res.RowsAffected()
}

// Stats computes pool composition for status/report endpoints.
func (r *PoolRepository) Stats() (*models.PoolStats, error) {
	stats := &models.PoolStats{CountBySubState: make(map[models.PoolSubState]int)}

	type countRow struct {
		SubState models.PoolSubState `db:"pool_sub_state"`
		Count    int                 `db:"count"`
	}
	var counts []countRow
	query := `
		SELECT pool_sub_state, COUNT(*) as count FROM booking
		WHERE pool_sub_state != $1
		GROUP BY pool_sub_state`
	if err := r.db.Select(&counts, query, models.PoolNone); err != nil {
		return nil, fmt.Errorf("failed to count pool entries: %w", err)
	}
	for _, c := range counts {
		stats.CountBySubState[c.SubState] = c.Count
		if c.SubState == models.PoolProcessing {
			stats.ProcessingCount = c.Count
		}
	}

	var oldest time.Time
	oldestQuery := `
		SELECT pool_entry_time FROM booking
		WHERE pool_sub_state IN ($1, $2) ORDER BY pool_entry_time LIMIT 1`
	if err := r.db.Get(&oldest, oldestQuery, models.PoolWaiting, models.PoolReady); err == nil {
		stats.OldestEntry = &oldest
	}

	return stats, nil
}
