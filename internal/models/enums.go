package models

// OwningGroup is the team that booked a meeting.
type OwningGroup string

const (
	GroupIOT      OwningGroup = "iot"
	GroupHardware OwningGroup = "hardware"
	GroupSoftware OwningGroup = "software"
	GroupOther    OwningGroup = "other"
)

// MeetingType classifies a booking for priority/threshold lookup and DR scope.
type MeetingType string

const (
	MeetingDR        MeetingType = "DR"
	MeetingVIP       MeetingType = "VIP"
	MeetingWeekly    MeetingType = "Weekly"
	MeetingGeneral   MeetingType = "General"
	MeetingUrgent    MeetingType = "Urgent"
	MeetingPresident MeetingType = "President"
	MeetingOther     MeetingType = "Other"
)

// DRSubType further classifies a MeetingDR booking.
type DRSubType string

const (
	DRSubTypeI     DRSubType = "DR-I"
	DRSubTypeII    DRSubType = "DR-II"
	DRSubTypeK     DRSubType = "DR-k"
	DRSubTypePR    DRSubType = "DR-PR"
	DRSubTypeOther DRSubType = "Other"
)

// BookingStatus is the lifecycle status of a booking.
type BookingStatus string

const (
	BookingWaiting  BookingStatus = "waiting"
	BookingApproved BookingStatus = "approve"
	BookingCancel   BookingStatus = "cancel"
)

// PoolSubState is the deferred-assignment state of a booking.
type PoolSubState string

const (
	PoolNone       PoolSubState = "none"
	PoolWaiting    PoolSubState = "waiting"
	PoolReady      PoolSubState = "ready"
	PoolProcessing PoolSubState = "processing"
	PoolAssigned   PoolSubState = "assigned"
	PoolEscalated  PoolSubState = "escalated"
	PoolFailed     PoolSubState = "failed"
)

// PolicyMode is the operational mode of the singleton Policy.
type PolicyMode string

const (
	ModeBalance PolicyMode = "BALANCE"
	ModeUrgent  PolicyMode = "URGENT"
	ModeNormal  PolicyMode = "NORMAL"
	ModeCustom  PolicyMode = "CUSTOM"
)

// AssignmentOutcome is the terminal status recorded on an AssignmentLog row.
type AssignmentOutcome string

const (
	OutcomeAssigned  AssignmentOutcome = "assigned"
	OutcomeEscalated AssignmentOutcome = "escalated"
	OutcomeRejected  AssignmentOutcome = "rejected"
)

// PoolHistoryAction is the action recorded on a PoolEntryHistory row.
type PoolHistoryAction string

const (
	HistoryEntered   PoolHistoryAction = "entered"
	HistoryUpdated   PoolHistoryAction = "updated"
	HistoryProcessed PoolHistoryAction = "processed"
	HistoryFailed    PoolHistoryAction = "failed"
	HistoryRetried   PoolHistoryAction = "retried"
	HistoryEscalated PoolHistoryAction = "escalated"
)

// ConflictType classifies how two overlapping intervals relate.
type ConflictType string

const (
	ConflictOverlap   ConflictType = "OVERLAP"
	ConflictContained ConflictType = "CONTAINED"
	ConflictAdjacent  ConflictType = "ADJACENT"
)

// Route is the routing decision the Runner makes for one booking.
type Route string

const (
	RouteImmediate Route = "immediate"
	RoutePool      Route = "pool"
	RouteEscalate  Route = "escalate"
)

// DRScope is the scope a DR consecutive-assignment policy is evaluated over.
type DRScope string

const (
	DRScopeLocal  DRScope = "LOCAL"
	DRScopeGlobal DRScope = "GLOBAL"
)
