package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking is a single meeting that may require an interpreter.
type Booking struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	OwningGroup        OwningGroup   `json:"owning_group" db:"owning_group"`
	MeetingType        MeetingType   `json:"meeting_type" db:"meeting_type"`
	DRSubType          *DRSubType    `json:"dr_sub_type,omitempty" db:"dr_sub_type"`
	StartTime          time.Time     `json:"start_time" db:"start_time"`
	EndTime            time.Time     `json:"end_time" db:"end_time"`
	BookingStatus      BookingStatus `json:"booking_status" db:"booking_status"`
	InterpreterEmpCode *string       `json:"interpreter_emp_code,omitempty" db:"interpreter_emp_code"`
	PoolSubState       PoolSubState  `json:"pool_sub_state" db:"pool_sub_state"`
	PoolEntryTime      *time.Time    `json:"pool_entry_time,omitempty" db:"pool_entry_time"`
	PoolDeadlineTime   *time.Time    `json:"pool_deadline_time,omitempty" db:"pool_deadline_time"`
	ProcessingAttempts int           `json:"processing_attempts" db:"processing_attempts"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
	Version            int64         `json:"version" db:"version"`
}

// IsDR reports whether the booking belongs to the DR meeting type.
func (b *Booking) IsDR() bool {
	return b.MeetingType == MeetingDR
}

// IsActiveForConflict reports whether the booking must be considered by the
// Conflict Detector and Scorer; cancelled bookings never participate.
func (b *Booking) IsActiveForConflict() bool {
	return b.BookingStatus != BookingCancel
}

// IsAssigned reports whether the booking currently holds an interpreter.
func (b *Booking) IsAssigned() bool {
	return b.InterpreterEmpCode != nil && b.BookingStatus == BookingApproved
}

// Interpreter is a pool member eligible for assignment.
type Interpreter struct {
	EmpCode        string    `json:"emp_code" db:"emp_code"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	DepartmentPath *string   `json:"department_path,omitempty" db:"department_path"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName renders a presentation-only name. Score breakdowns must never
// key candidates by this value, only by EmpCode.
func (i *Interpreter) DisplayName() string {
	return i.FirstName + " " + i.LastName
}
