package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validPriority() MeetingTypePriority {
	return MeetingTypePriority{
		MeetingType:          MeetingGeneral,
		PriorityValue:        5,
		UrgentThresholdDays:  3,
		GeneralThresholdDays: 30,
	}
}

func TestPriorityValidate_OK(t *testing.T) {
	p := validPriority()
	assert.NoError(t, p.Validate())
}

func TestPriorityValidate_UrgentMustPrecedeGeneral(t *testing.T) {
	p := validPriority()
	p.UrgentThresholdDays = 30
	p.GeneralThresholdDays = 30
	assert.Error(t, p.Validate())

	p.UrgentThresholdDays = 5
	p.GeneralThresholdDays = 4
	assert.Error(t, p.Validate())
}

func TestPriorityValidate_Ranges(t *testing.T) {
	p := validPriority()
	p.PriorityValue = 11
	assert.Error(t, p.Validate())

	p = validPriority()
	p.UrgentThresholdDays = -1
	assert.Error(t, p.Validate())

	p = validPriority()
	p.GeneralThresholdDays = 366
	assert.Error(t, p.Validate())
}

func TestPolicyIsLocked(t *testing.T) {
	assert.True(t, (&Policy{Mode: ModeBalance}).IsLocked())
	assert.True(t, (&Policy{Mode: ModeUrgent}).IsLocked())
	assert.True(t, (&Policy{Mode: ModeNormal}).IsLocked())
	assert.False(t, (&Policy{Mode: ModeCustom}).IsLocked())
}

func TestBookingStateHelpers(t *testing.T) {
	emp := "EMP001"
	assigned := Booking{InterpreterEmpCode: &emp, BookingStatus: BookingApproved}
	assert.True(t, assigned.IsAssigned())

	waiting := Booking{BookingStatus: BookingWaiting}
	assert.False(t, waiting.IsAssigned())
	assert.True(t, waiting.IsActiveForConflict())

	cancelled := Booking{BookingStatus: BookingCancel}
	assert.False(t, cancelled.IsActiveForConflict())
}
