package recovery

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"interpreter-engine/internal/models"
)

func TestBackoff_DoublesUpToCeiling(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(time.Second, 0))
	assert.Equal(t, 2*time.Second, Backoff(time.Second, 1))
	assert.Equal(t, 4*time.Second, Backoff(time.Second, 2))
	assert.Equal(t, 16*time.Second, Backoff(time.Second, 4))
	assert.Equal(t, 30*time.Second, Backoff(time.Second, 5))
	assert.Equal(t, 30*time.Second, Backoff(time.Second, 20))
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, "timeout", Categorize("context deadline exceeded: TIMEOUT waiting for db"))
	assert.Equal(t, "network", Categorize("network unreachable"))
	assert.Equal(t, "conflict", Categorize("optimistic conflict on version 3"))
	assert.Equal(t, "invalid", Categorize("invalid booking id"))
	assert.Equal(t, "business", Categorize("business rule rejected candidate"))
	assert.Equal(t, "unknown", Categorize("something else entirely"))
}

func pooledBooking(entry, deadline, start, end time.Time) models.Booking {
	return models.Booking{
		ID:               uuid.New(),
		MeetingType:      models.MeetingGeneral,
		StartTime:        start,
		EndTime:          end,
		BookingStatus:    models.BookingWaiting,
		PoolSubState:     models.PoolWaiting,
		PoolEntryTime:    &entry,
		PoolDeadlineTime: &deadline,
	}
}

func TestDetectCorruption(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	start := now.Add(48 * time.Hour)
	end := start.Add(time.Hour)

	healthy := pooledBooking(now, now.Add(24*time.Hour), start, end)
	deadlineBeforeEntry := pooledBooking(now, now.Add(-time.Hour), start, end)
	endBeforeStart := pooledBooking(now, now.Add(24*time.Hour), start, start)
	deadlineAfterStart := pooledBooking(now, start.Add(time.Hour), start, end)

	corrupted := DetectCorruption([]models.Booking{healthy, deadlineBeforeEntry, endBeforeStart, deadlineAfterStart})

	assert.ElementsMatch(t, []string{
		deadlineBeforeEntry.ID.String(),
		endBeforeStart.ID.String(),
		deadlineAfterStart.ID.String(),
	}, corrupted)
}

func TestDetectCorruption_SkipsEntriesWithoutPoolTimes(t *testing.T) {
	b := models.Booking{ID: uuid.New(), StartTime: time.Now(), EndTime: time.Now()}
	assert.Empty(t, DetectCorruption([]models.Booking{b}))
}
