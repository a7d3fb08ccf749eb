package models

import (
	"time"

	"github.com/google/uuid"
)

// CandidateScore is one candidate's score breakdown within a ScoreBreakdown
//.
type CandidateScore struct {
	EmpCode       string  `json:"emp_code"`
	Eligible      bool    `json:"eligible"`
	Reason        string  `json:"reason,omitempty"`
	Fairness      float64 `json:"fairness"`
	Urgency       float64 `json:"urgency"`
	LRS           float64 `json:"lrs"`
	Total         float64 `json:"total"`
	Hours         float64 `json:"hours"`
	DaysSinceLast float64 `json:"days_since_last"`
}

// DRPolicyRecord captures the DR-policy decision made for a booking.
type DRPolicyRecord struct {
	Scope              DRScope `json:"scope"`
	ForbidConsecutive  bool    `json:"forbid_consecutive"`
	Penalty            float64 `json:"penalty"`
	OverrideApplied    bool    `json:"override_applied"`
	OverrideEmpCode    string  `json:"override_emp_code,omitempty"`
	BlockedCandidates  []string `json:"blocked_candidates,omitempty"`
}

// ScoreBreakdown is the stable, versioned scoring artifact produced by the
// Scorer and persisted on AssignmentLog.
type ScoreBreakdown struct {
	SchemaVersion    int              `json:"schema_version"`
	Candidates       []CandidateScore `json:"candidates"`
	SelectedEmpCode  string           `json:"selected_emp_code,omitempty"`
	DRPolicy         *DRPolicyRecord  `json:"dr_policy,omitempty"`
}

const ScoreBreakdownSchemaVersion = 1

// ConflictSummary records the outcome of a conflict-detection pass for the log.
type ConflictSummary struct {
	CandidatesChecked int      `json:"candidates_checked"`
	Conflicted        []string `json:"conflicted,omitempty"`
}

// AssignmentLog is an append-only record of one Runner decision.
type AssignmentLog struct {
	ID                 uuid.UUID         `json:"id" db:"id"`
	BookingID          uuid.UUID         `json:"booking_id" db:"booking_id"`
	InterpreterEmpCode *string           `json:"interpreter_emp_code,omitempty" db:"interpreter_emp_code"`
	Status             AssignmentOutcome `json:"status" db:"status"`
	Reason             string            `json:"reason" db:"reason"`
	PreHours           JSONMap           `json:"pre_hours" db:"pre_hours"`
	PostHours          JSONMap           `json:"post_hours" db:"post_hours"`
	ScoreBreakdown      JSONValue[ScoreBreakdown] `json:"score_breakdown" db:"score_breakdown"`
	ConflictSummary     JSONValue[ConflictSummary] `json:"conflict_summary" db:"conflict_summary"`
	DRPolicy            JSONValue[DRPolicyRecord]  `json:"dr_policy" db:"dr_policy"`
	DurationMillis      int64             `json:"duration_millis" db:"duration_millis"`
	SystemState         JSONMap           `json:"system_state" db:"system_state"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
}

// PoolEntryHistory is an append-only record of a pool-entry transition.
type PoolEntryHistory struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	BookingID       uuid.UUID         `json:"booking_id" db:"booking_id"`
	Action          PoolHistoryAction `json:"action" db:"action"`
	PreviousState   PoolSubState      `json:"previous_state" db:"previous_state"`
	NewState        PoolSubState      `json:"new_state" db:"new_state"`
	Attempts        int               `json:"attempts" db:"attempts"`
	ErrorMessage    *string           `json:"error_message,omitempty" db:"error_message"`
	SystemState     JSONMap           `json:"system_state" db:"system_state"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}

// EmergencyAudit links one Emergency Override run to its trigger, reason,
// and full structured report.
type EmergencyAudit struct {
	ID          uuid.UUID `json:"id" db:"id"`
	TriggeredBy string    `json:"triggered_by" db:"triggered_by"`
	Reason      string    `json:"reason" db:"reason"`
	EntryCount  int       `json:"entry_count" db:"entry_count"`
	StartedAt   time.Time `json:"started_at" db:"started_at"`
	FinishedAt  time.Time `json:"finished_at" db:"finished_at"`
	Report      JSONMap   `json:"report" db:"report"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
