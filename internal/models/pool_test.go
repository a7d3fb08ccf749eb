package models

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func poolEntry(mt MeetingType, deadlineOffset time.Duration, entered time.Time, now time.Time) PoolEntry {
	return PoolEntry{
		BookingID:     uuid.New(),
		MeetingType:   mt,
		Deadline:      now.Add(deadlineOffset),
		PoolEntryTime: entered,
		SubState:      PoolWaiting,
	}
}

func TestBucket_Classification(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entered := now.Add(-time.Hour)

	assert.Equal(t, BucketPastDeadline, poolEntry(MeetingGeneral, -time.Minute, entered, now).Bucket(now))
	assert.Equal(t, BucketWithin2h, poolEntry(MeetingGeneral, 2*time.Hour, entered, now).Bucket(now))
	assert.Equal(t, BucketWithin6h, poolEntry(MeetingGeneral, 5*time.Hour, entered, now).Bucket(now))
	assert.Equal(t, BucketWithin24h, poolEntry(MeetingGeneral, 20*time.Hour, entered, now).Bucket(now))
	assert.Equal(t, BucketNormal, poolEntry(MeetingGeneral, 48*time.Hour, entered, now).Bucket(now))
}

func TestLess_OrdersByDeadlineBucket(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entered := now.Add(-time.Hour)

	// Emergency drain scenario: past deadline, +1h, +5h, +20h.
	e1 := poolEntry(MeetingGeneral, -time.Hour, entered, now)
	e2 := poolEntry(MeetingGeneral, time.Hour, entered, now)
	e3 := poolEntry(MeetingGeneral, 5*time.Hour, entered, now)
	e4 := poolEntry(MeetingGeneral, 20*time.Hour, entered, now)

	entries := []PoolEntry{e4, e2, e1, e3}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Less(&entries[j], now)
	})

	assert.Equal(t, e1.BookingID, entries[0].BookingID)
	assert.Equal(t, e2.BookingID, entries[1].BookingID)
	assert.Equal(t, e3.BookingID, entries[2].BookingID)
	assert.Equal(t, e4.BookingID, entries[3].BookingID)
}

func TestLess_MeetingTypeBreaksBucketTies(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entered := now.Add(-time.Hour)

	general := poolEntry(MeetingGeneral, time.Hour, entered, now)
	dr := poolEntry(MeetingDR, 90*time.Minute, entered, now)
	vip := poolEntry(MeetingVIP, 30*time.Minute, entered, now)

	entries := []PoolEntry{general, vip, dr}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Less(&entries[j], now)
	})

	assert.Equal(t, MeetingDR, entries[0].MeetingType)
	assert.Equal(t, MeetingVIP, entries[1].MeetingType)
	assert.Equal(t, MeetingGeneral, entries[2].MeetingType)
}

func TestLess_EntryTimeBreaksRemainingTies(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	older := poolEntry(MeetingGeneral, time.Hour, now.Add(-3*time.Hour), now)
	newer := poolEntry(MeetingGeneral, time.Hour, now.Add(-time.Hour), now)

	assert.True(t, older.Less(&newer, now))
	assert.False(t, newer.Less(&older, now))
}

func TestMeetingTypeWeight_Ordering(t *testing.T) {
	assert.Less(t, MeetingTypeWeight(MeetingDR), MeetingTypeWeight(MeetingVIP))
	assert.Less(t, MeetingTypeWeight(MeetingVIP), MeetingTypeWeight(MeetingUrgent))
	assert.Less(t, MeetingTypeWeight(MeetingUrgent), MeetingTypeWeight(MeetingWeekly))
	assert.Less(t, MeetingTypeWeight(MeetingWeekly), MeetingTypeWeight(MeetingGeneral))
	assert.Equal(t, MeetingTypeWeight(MeetingGeneral), MeetingTypeWeight(MeetingOther))
}
