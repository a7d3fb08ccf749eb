package drpolicy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"interpreter-engine/internal/models"
)

type fakeSource struct {
	history []models.Booking
	err     error
}

func (f *fakeSource) RecentDRAssignments(before, since time.Time, scope models.DRScope, owningGroup models.OwningGroup) ([]models.Booking, error) {
	return f.history, f.err
}

func drAssignment(empCode string, start time.Time) models.Booking {
	return models.Booking{
		ID:                 uuid.New(),
		MeetingType:        models.MeetingDR,
		StartTime:          start,
		EndTime:            start.Add(time.Hour),
		BookingStatus:      models.BookingApproved,
		InterpreterEmpCode: &empCode,
	}
}

func drBooking(start time.Time) models.Booking {
	return models.Booking{
		ID:            uuid.New(),
		MeetingType:   models.MeetingDR,
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
		BookingStatus: models.BookingWaiting,
	}
}

func TestParamsForMode(t *testing.T) {
	balance := ParamsForMode(&models.Policy{Mode: models.ModeBalance})
	assert.Equal(t, models.DRScopeGlobal, balance.Scope)
	assert.True(t, balance.ForbidConsecutive)

	urgent := ParamsForMode(&models.Policy{Mode: models.ModeUrgent})
	assert.Equal(t, models.DRScopeLocal, urgent.Scope)
	assert.False(t, urgent.ForbidConsecutive)
	assert.True(t, urgent.IncludesPending)

	normal := ParamsForMode(&models.Policy{Mode: models.ModeNormal})
	assert.Equal(t, models.DRScopeGlobal, normal.Scope)
	assert.False(t, normal.ForbidConsecutive)

	custom := ParamsForMode(&models.Policy{Mode: models.ModeCustom, CustomForbidConsec: true, DRConsecutivePenalty: -1.5})
	assert.True(t, custom.ForbidConsecutive)
	assert.Equal(t, -1.5, custom.Penalty)
}

func TestInspectAll_NoHistoryBlocksNobody(t *testing.T) {
	i := New(&fakeSource{})
	booking := drBooking(time.Now().Add(2 * time.Hour))

	statuses, err := i.InspectAll([]string{"X", "Y"}, booking, models.DRScopeGlobal, true, models.GroupIOT, 30*24*time.Hour)

	assert.NoError(t, err)
	assert.False(t, statuses["X"].IsBlocked)
	assert.False(t, statuses["Y"].IsBlocked)
	assert.Nil(t, statuses["X"].LastDRAt)
}

func TestInspectAll_OnlyMostRecentAssigneeIsBlocked(t *testing.T) {
	// X assigned a day ago (latest overall), Y ten days ago, Z never.
	now := time.Now()
	xAt := now.Add(-24 * time.Hour)
	yAt := now.Add(-10 * 24 * time.Hour)
	i := New(&fakeSource{history: []models.Booking{
		drAssignment("X", xAt),
		drAssignment("Y", yAt),
	}})
	booking := drBooking(now.Add(2 * time.Hour))

	statuses, err := i.InspectAll([]string{"X", "Y", "Z"}, booking, models.DRScopeGlobal, true, models.GroupIOT, 120*24*time.Hour)

	assert.NoError(t, err)
	assert.True(t, statuses["X"].IsBlocked)
	assert.Equal(t, 1, statuses["X"].ConsecutiveCount)
	assert.Equal(t, xAt, *statuses["X"].LastDRAt)

	// Y's own DR history falls inside the lookback, but X's later
	// assignment intervened, so Y stays eligible.
	assert.False(t, statuses["Y"].IsBlocked)
	assert.Equal(t, 0, statuses["Y"].ConsecutiveCount)
	assert.Equal(t, yAt, *statuses["Y"].LastDRAt)

	assert.False(t, statuses["Z"].IsBlocked)
	assert.Nil(t, statuses["Z"].LastDRAt)
}

func TestInspectAll_CountsUnbrokenHeadRun(t *testing.T) {
	now := time.Now()
	i := New(&fakeSource{history: []models.Booking{
		drAssignment("X", now.Add(-24*time.Hour)),
		drAssignment("X", now.Add(-48*time.Hour)),
		drAssignment("Y", now.Add(-72*time.Hour)),
		drAssignment("X", now.Add(-96*time.Hour)),
	}})
	booking := drBooking(now.Add(2 * time.Hour))

	statuses, err := i.InspectAll([]string{"X", "Y"}, booking, models.DRScopeGlobal, true, models.GroupIOT, 120*24*time.Hour)

	assert.NoError(t, err)
	// X leads with two in a row; the third is past Y's intervening one.
	assert.Equal(t, 2, statuses["X"].ConsecutiveCount)
	assert.True(t, statuses["X"].IsBlocked)
	assert.False(t, statuses["Y"].IsBlocked)
}

func TestInspectAll_SoftModeRecordsButDoesNotBlock(t *testing.T) {
	now := time.Now()
	i := New(&fakeSource{history: []models.Booking{drAssignment("X", now.Add(-24 * time.Hour))}})
	booking := drBooking(now.Add(2 * time.Hour))

	statuses, err := i.InspectAll([]string{"X"}, booking, models.DRScopeGlobal, false, models.GroupIOT, 30*24*time.Hour)

	assert.NoError(t, err)
	assert.False(t, statuses["X"].IsBlocked)
	assert.Equal(t, 1, statuses["X"].ConsecutiveCount)
}

func TestEvaluate_SkipsUnassignedRowsAndUnknownCandidates(t *testing.T) {
	now := time.Now()
	unassigned := models.Booking{MeetingType: models.MeetingDR, StartTime: now.Add(-time.Hour)}
	statuses := Evaluate(
		map[string]Status{"X": {EmpCode: "X"}},
		[]models.Booking{unassigned, drAssignment("GONE", now.Add(-2*time.Hour)), drAssignment("X", now.Add(-3*time.Hour))},
		true,
	)

	// The most recent assignee is no longer a candidate; X was superseded.
	assert.False(t, statuses["X"].IsBlocked)
	assert.NotNil(t, statuses["X"].LastDRAt)
}

func TestApplyOverride_PicksEarliestLastDR(t *testing.T) {
	now := time.Now()
	t1 := now.Add(-1 * 24 * time.Hour)
	t5 := now.Add(-5 * 24 * time.Hour)
	t10 := now.Add(-10 * 24 * time.Hour)

	chosen := ApplyOverride([]Status{
		{EmpCode: "X", LastDRAt: &t1},
		{EmpCode: "Y", LastDRAt: &t10},
		{EmpCode: "Z", LastDRAt: &t5},
	})

	assert.Equal(t, "Y", chosen)
}

func TestApplyOverride_NoHistoryMeansNoPick(t *testing.T) {
	assert.Equal(t, "", ApplyOverride([]Status{{EmpCode: "X"}, {EmpCode: "Y"}}))
	assert.Equal(t, "", ApplyOverride(nil))
}
