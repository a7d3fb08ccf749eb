package models

import "time"

// Policy is the singleton operational policy.
type Policy struct {
	ID                    int        `json:"id" db:"id"`
	Mode                  PolicyMode `json:"mode" db:"mode"`
	WeightFair            float64    `json:"w_fair" db:"w_fair"`
	WeightUrgency         float64    `json:"w_urgency" db:"w_urgency"`
	WeightLRS             float64    `json:"w_lrs" db:"w_lrs"`
	DRConsecutivePenalty  float64    `json:"dr_consecutive_penalty" db:"dr_consecutive_penalty"`
	FairnessWindowDays    int        `json:"fairness_window_days" db:"fairness_window_days"`
	MaxGapHours           float64    `json:"max_gap_hours" db:"max_gap_hours"`
	MinAdvanceDays        int        `json:"min_advance_days" db:"min_advance_days"`
	AutoAssignEnabled     bool       `json:"auto_assign_enabled" db:"auto_assign_enabled"`
	CustomIntervalMinutes int        `json:"custom_interval_minutes" db:"custom_interval_minutes"`
	CustomCronExpr        string     `json:"custom_cron_expr" db:"custom_cron_expr"`
	CustomLookaheadHours  float64    `json:"custom_lookahead_hours" db:"custom_lookahead_hours"`
	CustomParallelism     int        `json:"custom_parallelism" db:"custom_parallelism"`
	CustomForbidConsec    bool       `json:"custom_forbid_consecutive" db:"custom_forbid_consecutive"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

// IsLocked reports whether the parameter set is read-only given the mode;
// every mode except CUSTOM locks its parameters.
func (p *Policy) IsLocked() bool {
	return p.Mode != ModeCustom
}

// Clone returns a value copy safe to hand out as a read-only snapshot; a
// run works against the snapshot it loaded, not the live row.
func (p *Policy) Clone() Policy {
	return *p
}

// MeetingTypePriority is a per-meeting-type urgency/threshold record.
type MeetingTypePriority struct {
	MeetingType         MeetingType `json:"meeting_type" db:"meeting_type"`
	PriorityValue       int         `json:"priority_value" db:"priority_value"`
	UrgentThresholdDays int         `json:"urgent_threshold_days" db:"urgent_threshold_days"`
	GeneralThresholdDays int        `json:"general_threshold_days" db:"general_threshold_days"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`
}

// Validate enforces the invariant urgentThresholdDays < generalThresholdDays.
func (p *MeetingTypePriority) Validate() error {
	if p.UrgentThresholdDays < 0 || p.UrgentThresholdDays > 30 {
		return errRange("urgentThresholdDays", 0, 30)
	}
	if p.GeneralThresholdDays < 1 || p.GeneralThresholdDays > 365 {
		return errRange("generalThresholdDays", 1, 365)
	}
	if p.PriorityValue < 1 || p.PriorityValue > 10 {
		return errRange("priorityValue", 1, 10)
	}
	if p.UrgentThresholdDays >= p.GeneralThresholdDays {
		return errOrder("urgentThresholdDays", "generalThresholdDays")
	}
	return nil
}
