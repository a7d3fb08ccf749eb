// Package fairness implements the Fairness Accountant: hours-in-window
// and days-since-last-assignment, the two raw inputs the Scorer turns into
// the fairness and LRS components.
package fairness

import (
	"math"
	"time"
)

// Source is the persistence surface the Accountant reads from. Satisfied by
// *repository.BookingRepository; declared here so the package stays
// independent of sqlx.
type Source interface {
	HoursInWindow(empCode string, since, until time.Time) (float64, error)
	LastAssignedAt(empCode string, before time.Time) (*time.Time, error)
}

// Accountant is the stateless Fairness Accountant.
type Accountant struct {
	source Source
}

func New(source Source) *Accountant {
	return &Accountant{source: source}
}

// HoursInWindow sums assigned hours in [now-windowDays, now).
func (a *Accountant) HoursInWindow(empCode string, now time.Time, windowDays int) (float64, error) {
	since := now.AddDate(0, 0, -windowDays)
	return a.source.HoursInWindow(empCode, since, now)
}

// DaysSinceLast returns (now - lastAssignedAt)/86400, or +Inf if the
// interpreter has never been assigned before 'now'.
func (a *Accountant) DaysSinceLast(empCode string, now time.Time) (float64, error) {
	last, err := a.source.LastAssignedAt(empCode, now)
	if err != nil {
		return 0, err
	}
	if last == nil {
		return math.Inf(1), nil
	}
	return now.Sub(*last).Hours() / 24, nil
}
