// Package conflict implements the interpreter availability check: two
// bookings conflict iff their intervals overlap; adjacency is not a conflict.
package conflict

import (
	"time"

	"github.com/google/uuid"

	"interpreter-engine/internal/models"
)

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Conflict records one other booking that conflicts with a candidate window.
type Conflict struct {
	BookingID uuid.UUID
	Window    Window
	Type      models.ConflictType
}

// Result is the outcome of a single-interpreter availability check.
type Result struct {
	Available bool
	Conflicts []Conflict
}

// Detector is the stateless Conflict Detector.
type Detector struct{}

func New() *Detector {
	return &Detector{}
}

// overlaps reports whether two half-open intervals intersect with nonzero
// duration: s1 < e2 ∧ s2 < e1. Adjacency (e1 = s2 or e2 = s1) is excluded.
func overlaps(a, b Window) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// classify returns the conflict-type tag for two intervals known to overlap.
// CONTAINED when one lies entirely within the other (including equality);
// OVERLAP otherwise. ADJACENT is never returned here -- adjacency is not a
// conflict, so it never survives the overlaps filter.
func classify(a, b Window) models.ConflictType {
	aContainsB := !a.Start.After(b.Start) && !b.End.After(a.End)
	bContainsA := !b.Start.After(a.Start) && !a.End.After(b.End)
	if aContainsB || bContainsA {
		return models.ConflictContained
	}
	return models.ConflictOverlap
}

// Check evaluates (interpreter, window, excludeBookingID) against the
// interpreter's non-cancelled bookings and reports availability.
func (d *Detector) Check(window Window, existing []models.Booking, excludeBookingID uuid.UUID) Result {
	result := Result{Available: true}
	for _, b := range existing {
		if b.ID == excludeBookingID || !b.IsActiveForConflict() {
			continue
		}
		other := Window{Start: b.StartTime, End: b.EndTime}
		if !overlaps(window, other) {
			continue
		}
		result.Available = false
		result.Conflicts = append(result.Conflicts, Conflict{
			BookingID: b.ID,
			Window:    other,
			Type:      classify(window, other),
		})
	}
	return result
}

// Availability is the batch form of Check: given each candidate's existing
// bookings, returns the subset with no conflict.
func (d *Detector) Availability(window Window, excludeBookingID uuid.UUID, byCandidate map[string][]models.Booking) []string {
	var available []string
	for empCode, bookings := range byCandidate {
		if d.Check(window, bookings, excludeBookingID).Available {
			available = append(available, empCode)
		}
	}
	return available
}
