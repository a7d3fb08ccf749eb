package models

import (
	"time"

	"github.com/google/uuid"
)

// PriorityBucket is the coarse deadline-urgency classification used to order
// pool drains.
type PriorityBucket int

const (
	BucketPastDeadline PriorityBucket = iota
	BucketWithin2h
	BucketWithin6h
	BucketWithin24h
	BucketNormal
)

func (b PriorityBucket) String() string {
	switch b {
	case BucketPastDeadline:
		return "past_deadline"
	case BucketWithin2h:
		return "within_2h"
	case BucketWithin6h:
		return "within_6h"
	case BucketWithin24h:
		return "within_24h"
	default:
		return "normal"
	}
}

// MeetingTypeWeight ranks meeting types for the tie-break within a priority
// bucket.
func MeetingTypeWeight(mt MeetingType) int {
	switch mt {
	case MeetingDR:
		return 0
	case MeetingVIP:
		return 1
	case MeetingUrgent:
		return 2
	case MeetingWeekly:
		return 3
	default:
		return 4
	}
}

// PoolEntry is a query projection of a pooled Booking carrying its computed
// priority classification, used by the Pool Store and Pool Processor.
type PoolEntry struct {
	BookingID     uuid.UUID     `json:"booking_id" db:"id"`
	MeetingType   MeetingType   `json:"meeting_type" db:"meeting_type"`
	StartTime     time.Time     `json:"start_time" db:"start_time"`
	PoolEntryTime time.Time     `json:"pool_entry_time" db:"pool_entry_time"`
	Deadline      time.Time     `json:"deadline" db:"pool_deadline_time"`
	SubState      PoolSubState  `json:"pool_sub_state" db:"pool_sub_state"`
	Attempts      int           `json:"processing_attempts" db:"processing_attempts"`
	Version       int64         `json:"version" db:"version"`
}

// Bucket classifies the entry's deadline urgency at the given instant.
func (e *PoolEntry) Bucket(now time.Time) PriorityBucket {
	switch remaining := e.Deadline.Sub(now); {
	case remaining < 0:
		return BucketPastDeadline
	case remaining <= 2*time.Hour:
		return BucketWithin2h
	case remaining <= 6*time.Hour:
		return BucketWithin6h
	case remaining <= 24*time.Hour:
		return BucketWithin24h
	default:
		return BucketNormal
	}
}

// Less implements the drain ordering: deadline bucket, then meeting-type
// weight, then (in the beyond-24h normal bucket only) the deadline itself,
// then pool-entry time, all ascending (earlier processed first).
func (e *PoolEntry) Less(other *PoolEntry, now time.Time) bool {
	be, bo := e.Bucket(now), other.Bucket(now)
	if be != bo {
		return be < bo
	}
	we, wo := MeetingTypeWeight(e.MeetingType), MeetingTypeWeight(other.MeetingType)
	if we != wo {
		return we < wo
	}
	if be == BucketNormal {
		if !e.Deadline.Equal(other.Deadline) {
			return e.Deadline.Before(other.Deadline)
		}
	}
	return e.PoolEntryTime.Before(other.PoolEntryTime)
}

// PoolStats summarizes pool composition for status/report output.
type PoolStats struct {
	CountBySubState map[PoolSubState]int `json:"count_by_sub_state"`
	OldestEntry     *time.Time           `json:"oldest_entry,omitempty"`
	ProcessingCount int                  `json:"processing_count"`
}
