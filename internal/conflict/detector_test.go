package conflict

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"interpreter-engine/internal/models"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func booking(startOffset, endOffset time.Duration, status models.BookingStatus) models.Booking {
	return models.Booking{
		ID:            uuid.New(),
		MeetingType:   models.MeetingGeneral,
		StartTime:     base.Add(startOffset),
		EndTime:       base.Add(endOffset),
		BookingStatus: status,
	}
}

func TestCheck_NoBookingsIsAvailable(t *testing.T) {
	d := New()
	result := d.Check(Window{Start: base, End: base.Add(time.Hour)}, nil, uuid.Nil)
	assert.True(t, result.Available)
	assert.Empty(t, result.Conflicts)
}

func TestCheck_OverlapConflicts(t *testing.T) {
	d := New()
	existing := []models.Booking{booking(30*time.Minute, 90*time.Minute, models.BookingApproved)}

	result := d.Check(Window{Start: base, End: base.Add(time.Hour)}, existing, uuid.Nil)

	assert.False(t, result.Available)
	assert.Len(t, result.Conflicts, 1)
	assert.Equal(t, models.ConflictOverlap, result.Conflicts[0].Type)
}

func TestCheck_AdjacencyIsNotAConflict(t *testing.T) {
	d := New()
	// Existing booking ends exactly when the candidate window starts.
	before := booking(-time.Hour, 0, models.BookingApproved)
	// Existing booking starts exactly when the candidate window ends.
	after := booking(time.Hour, 2*time.Hour, models.BookingApproved)

	result := d.Check(Window{Start: base, End: base.Add(time.Hour)}, []models.Booking{before, after}, uuid.Nil)

	assert.True(t, result.Available)
}

func TestCheck_EqualIntervalsAreContained(t *testing.T) {
	d := New()
	existing := []models.Booking{booking(0, time.Hour, models.BookingApproved)}

	result := d.Check(Window{Start: base, End: base.Add(time.Hour)}, existing, uuid.Nil)

	assert.False(t, result.Available)
	assert.Equal(t, models.ConflictContained, result.Conflicts[0].Type)
}

func TestCheck_InnerIntervalIsContained(t *testing.T) {
	d := New()
	existing := []models.Booking{booking(-time.Hour, 3*time.Hour, models.BookingApproved)}

	result := d.Check(Window{Start: base, End: base.Add(time.Hour)}, existing, uuid.Nil)

	assert.False(t, result.Available)
	assert.Equal(t, models.ConflictContained, result.Conflicts[0].Type)
}

func TestCheck_CancelledBookingsIgnored(t *testing.T) {
	d := New()
	existing := []models.Booking{booking(0, time.Hour, models.BookingCancel)}

	result := d.Check(Window{Start: base, End: base.Add(time.Hour)}, existing, uuid.Nil)

	assert.True(t, result.Available)
}

func TestCheck_ExcludedBookingIgnored(t *testing.T) {
	d := New()
	same := booking(0, time.Hour, models.BookingApproved)

	result := d.Check(Window{Start: base, End: base.Add(time.Hour)}, []models.Booking{same}, same.ID)

	assert.True(t, result.Available)
}

func TestAvailability_ReturnsOnlyConflictFree(t *testing.T) {
	d := New()
	window := Window{Start: base, End: base.Add(time.Hour)}

	byCandidate := map[string][]models.Booking{
		"EMP001": {booking(30*time.Minute, 2*time.Hour, models.BookingApproved)},
		"EMP002": {booking(2*time.Hour, 3*time.Hour, models.BookingApproved)},
		"EMP003": nil,
	}

	available := d.Availability(window, uuid.Nil, byCandidate)

	assert.ElementsMatch(t, []string{"EMP002", "EMP003"}, available)
}
