package fairness

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	hours     float64
	hoursErr  error
	last      *time.Time
	sinceSeen time.Time
	untilSeen time.Time
}

func (f *fakeSource) HoursInWindow(empCode string, since, until time.Time) (float64, error) {
	f.sinceSeen, f.untilSeen = since, until
	return f.hours, f.hoursErr
}

func (f *fakeSource) LastAssignedAt(empCode string, before time.Time) (*time.Time, error) {
	return f.last, nil
}

func TestHoursInWindow_UsesRollingWindow(t *testing.T) {
	src := &fakeSource{hours: 12.5}
	a := New(src)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	hours, err := a.HoursInWindow("EMP001", now, 30)

	assert.NoError(t, err)
	assert.Equal(t, 12.5, hours)
	assert.Equal(t, now.AddDate(0, 0, -30), src.sinceSeen)
	assert.Equal(t, now, src.untilSeen)
}

func TestDaysSinceLast_ComputesFromLastStart(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	last := now.Add(-36 * time.Hour)
	a := New(&fakeSource{last: &last})

	days, err := a.DaysSinceLast("EMP001", now)

	assert.NoError(t, err)
	assert.InDelta(t, 1.5, days, 1e-9)
}

func TestDaysSinceLast_NeverAssignedIsInfinite(t *testing.T) {
	a := New(&fakeSource{})

	days, err := a.DaysSinceLast("EMP001", time.Now())

	assert.NoError(t, err)
	assert.True(t, math.IsInf(days, 1))
}
