package pool

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"interpreter-engine/internal/models"
)

func entry(mt models.MeetingType, deadlineOffset time.Duration, entered time.Time, now time.Time) models.PoolEntry {
	return models.PoolEntry{
		BookingID:     uuid.New(),
		MeetingType:   mt,
		Deadline:      now.Add(deadlineOffset),
		PoolEntryTime: entered,
		SubState:      models.PoolWaiting,
	}
}

func TestOrderForDrain_PriorityBeforeBatchCut(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// A backlog of older, far-deadline entries plus one freshly pooled
	// entry already past its deadline. The late arrival must make the
	// batch even though every backlog entry entered the pool first.
	var entries []models.PoolEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(models.MeetingGeneral, 20*time.Hour, now.Add(-24*time.Hour), now))
	}
	urgent := entry(models.MeetingDR, -time.Hour, now.Add(-time.Minute), now)
	entries = append(entries, urgent)

	batch := OrderForDrain(entries, now, 5)

	assert.Len(t, batch, 5)
	assert.Equal(t, urgent.BookingID, batch[0].BookingID)
}

func TestOrderForDrain_FullPriorityKey(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entered := now.Add(-time.Hour)

	past := entry(models.MeetingGeneral, -time.Hour, entered, now)
	vipSoon := entry(models.MeetingVIP, 30*time.Minute, entered, now)
	drSoon := entry(models.MeetingDR, 90*time.Minute, entered, now)
	later := entry(models.MeetingGeneral, 5*time.Hour, entered, now)

	batch := OrderForDrain([]models.PoolEntry{later, vipSoon, past, drSoon}, now, 0)

	// Past-deadline first, then the <=2h bucket ordered DR before VIP,
	// then the <=6h bucket.
	assert.Equal(t, past.BookingID, batch[0].BookingID)
	assert.Equal(t, drSoon.BookingID, batch[1].BookingID)
	assert.Equal(t, vipSoon.BookingID, batch[2].BookingID)
	assert.Equal(t, later.BookingID, batch[3].BookingID)
}

func TestOrderForDrain_BatchSizeZeroKeepsAll(t *testing.T) {
	now := time.Now()
	entries := []models.PoolEntry{
		entry(models.MeetingGeneral, time.Hour, now, now),
		entry(models.MeetingGeneral, 2*time.Hour, now, now),
	}

	assert.Len(t, OrderForDrain(entries, now, 0), 2)
	assert.Empty(t, OrderForDrain(nil, now, 5))
}
