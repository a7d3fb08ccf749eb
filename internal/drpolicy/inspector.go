// Package drpolicy implements the DR History Inspector and DR Policy:
// consecutive-DR-assignment detection, per-mode scope/forbid/penalty
// parameters, and the all-blocked override.
package drpolicy

import (
	"time"

	"interpreter-engine/internal/models"
)

// Params is the per-mode DR consecutive-assignment policy.
type Params struct {
	Scope             models.DRScope
	ForbidConsecutive bool
	Penalty           float64
	IncludesPending   bool
}

// ParamsForMode resolves the per-mode policy table. CUSTOM reads its configurable
// fields straight off the policy row rather than a fixed vector.
func ParamsForMode(policy *models.Policy) Params {
	switch policy.Mode {
	case models.ModeUrgent:
		return Params{Scope: models.DRScopeLocal, ForbidConsecutive: false, Penalty: 0.2, IncludesPending: true}
	case models.ModeNormal:
		return Params{Scope: models.DRScopeGlobal, ForbidConsecutive: false, Penalty: 0.5, IncludesPending: false}
	case models.ModeBalance:
		return Params{Scope: models.DRScopeGlobal, ForbidConsecutive: true, Penalty: 0.8, IncludesPending: false}
	default: // CUSTOM
		return Params{
			Scope:             models.DRScopeGlobal,
			ForbidConsecutive: policy.CustomForbidConsec,
			Penalty:           policy.DRConsecutivePenalty,
			IncludesPending:   false,
		}
	}
}

// Source is the persistence surface the Inspector reads from, satisfied by
// *repository.BookingRepository.
type Source interface {
	RecentDRAssignments(before, since time.Time, scope models.DRScope, owningGroup models.OwningGroup) ([]models.Booking, error)
}

// Status is one candidate's DR-history finding.
type Status struct {
	EmpCode          string
	ConsecutiveCount int
	IsBlocked        bool
	LastDRAt         *time.Time
}

// Inspector is the stateless DR History Inspector.
type Inspector struct {
	source Source
}

func New(source Source) *Inspector {
	return &Inspector{source: source}
}

// InspectAll evaluates every candidate against the scope-wide DR history
// preceding the booking. X is consecutive-DR-blocked iff X's most recent
// non-cancelled DR assignment (restricted by scope) precedes the booking
// with no other interpreter's intervening DR assignment -- that is, X holds
// the most recent DR assignment overall. An interpreter superseded by a
// different interpreter's later DR assignment is not blocked, whatever their
// own history looks like. ConsecutiveCount is the run length of the blocked
// interpreter's assignments at the head of the history; everyone else's run
// was broken by an intervening assignment, so theirs is 0.
func (i *Inspector) InspectAll(empCodes []string, booking models.Booking, scope models.DRScope, forbidConsecutive bool, owningGroup models.OwningGroup, lookback time.Duration) (map[string]Status, error) {
	history, err := i.source.RecentDRAssignments(booking.StartTime, booking.StartTime.Add(-lookback), scope, owningGroup)
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]Status, len(empCodes))
	for _, code := range empCodes {
		statuses[code] = Status{EmpCode: code}
	}
	return Evaluate(statuses, history, forbidConsecutive), nil
}

// Evaluate folds a newest-first DR assignment history into the candidate
// statuses. Exposed for the Inspector's tests; callers use InspectAll.
func Evaluate(statuses map[string]Status, history []models.Booking, forbidConsecutive bool) map[string]Status {
	assigned := make([]models.Booking, 0, len(history))
	for _, b := range history {
		if b.InterpreterEmpCode != nil {
			assigned = append(assigned, b)
		}
	}

	// Most recent start per candidate.
	for _, b := range assigned {
		code := *b.InterpreterEmpCode
		if st, ok := statuses[code]; ok && st.LastDRAt == nil {
			last := b.StartTime
			st.LastDRAt = &last
			statuses[code] = st
		}
	}

	if len(assigned) == 0 {
		return statuses
	}

	// Only the holder of the most recent assignment is consecutive; the run
	// length is how many of their assignments lead the history unbroken.
	headCode := *assigned[0].InterpreterEmpCode
	headRun := 0
	for _, b := range assigned {
		if *b.InterpreterEmpCode != headCode {
			break
		}
		headRun++
	}

	if st, ok := statuses[headCode]; ok {
		st.ConsecutiveCount = headRun
		st.IsBlocked = forbidConsecutive
		statuses[headCode] = st
	}
	return statuses
}

// ApplyOverride is the last resort when every candidate is blocked: the
// block is lifted for the candidate with the earliest lastDRAt, and the
// assignment is tagged DR_OVERRIDE in the log. Returns the chosen empCode, or "" if no candidate carries a lastDRAt to break the tie on.
func ApplyOverride(statuses []Status) string {
	var chosen string
	var earliest *time.Time
	for _, s := range statuses {
		if s.LastDRAt == nil {
			continue
		}
		if earliest == nil || s.LastDRAt.Before(*earliest) {
			earliest = s.LastDRAt
			chosen = s.EmpCode
		}
	}
	return chosen
}
