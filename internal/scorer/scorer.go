// Package scorer implements the pure, deterministic candidate scorer: fairness,
// urgency, and LRS components combined into a total score with DR penalty,
// eligibility gating, and tie-break ordering.
package scorer

import (
	"math"
	"sort"

	"interpreter-engine/internal/models"
)

// Candidate is one interpreter's raw scoring inputs, assembled by the Runner
// from the Conflict Detector, Fairness Accountant, and DR History Inspector.
type Candidate struct {
	EmpCode          string
	CurrentHours     float64 // hours-in-window before hypothetically adding this booking
	DaysSinceLast    float64 // may be +Inf
	Available        bool    // passed conflict detection
	DRHardBlocked    bool    // DR policy forbidConsecutive and blocked
	DRConsecutiveCnt int
}

// Thresholds are the meeting-type urgency thresholds (U, G) in days.
type Thresholds struct {
	UrgentDays  float64
	GeneralDays float64
}

// Inputs bundles everything the Scorer needs for one booking.
type Inputs struct {
	Candidates       []Candidate
	BookingDuration  float64 // hours
	DaysToStart      float64
	Thresholds       Thresholds
	WeightFair       float64
	WeightUrgency    float64
	WeightLRS        float64
	DRPenalty        float64
	MaxGapHours      float64
	MinAdvanceDays   float64
	AdjustmentFactor float64
	IsDR             bool
}

// Scored is one candidate's full breakdown, ordered result element.
type Scored struct {
	EmpCode       string
	Eligible      bool
	Reason        string
	Fairness      float64
	Urgency       float64
	LRS           float64
	Total         float64
	Hours         float64
	DaysSinceLast float64
}

// Scorer is stateless and pure: Rank(in) always returns the same result for
// the same in.
type Scorer struct{}

func New() *Scorer {
	return &Scorer{}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func urgency(daysToStart float64, th Thresholds, minAdvanceDays float64) float64 {
	switch {
	case daysToStart <= th.UrgentDays:
		return 1
	case daysToStart <= th.GeneralDays:
		span := th.GeneralDays - th.UrgentDays
		if span <= 0 {
			return 1
		}
		return (th.GeneralDays - daysToStart) / span
	default:
		// Beyond G the interpolated endpoint (G-G)/(G-U) is 0, so the
		// minAdvanceDays/daysToStart term is always capped down to 0.
		return 0
	}
}

func lrsScore(daysSinceLast, fairnessWindowDays float64) float64 {
	if math.IsInf(daysSinceLast, 1) {
		return 1
	}
	if fairnessWindowDays <= 0 {
		return 1
	}
	return clamp01(daysSinceLast / fairnessWindowDays)
}

// Rank computes the ordered, eligibility-gated candidate list.
func (s *Scorer) Rank(in Inputs, fairnessWindowDays float64) []Scored {
	// Project hypothetical hours after adding this booking's duration.
	hypo := make(map[string]float64, len(in.Candidates))
	hMin := math.Inf(1)
	for _, c := range in.Candidates {
		h := c.CurrentHours + in.BookingDuration
		hypo[c.EmpCode] = h
		if h < hMin {
			hMin = h
		}
	}

	maxGap := in.MaxGapHours
	if maxGap <= 0 {
		maxGap = math.SmallestNonzeroFloat64
	}

	// Eligibility gate first, so the "no lower-hours candidate available"
	// clause can see the full candidate set.
	anyBelowGap := false
	for _, c := range in.Candidates {
		if hypo[c.EmpCode]-hMin <= in.MaxGapHours {
			anyBelowGap = true
			break
		}
	}

	results := make([]Scored, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		r := Scored{
			EmpCode:       c.EmpCode,
			Hours:         c.CurrentHours,
			DaysSinceLast: c.DaysSinceLast,
		}

		if !c.Available {
			r.Reason = "conflict"
			results = append(results, r)
			continue
		}
		if c.DRHardBlocked {
			r.Reason = "dr_blocked"
			results = append(results, r)
			continue
		}

		fair := clamp01(1 - clamp01((hypo[c.EmpCode]-hMin)/maxGap))
		urg := urgency(in.DaysToStart, in.Thresholds, in.MinAdvanceDays)
		lrs := lrsScore(c.DaysSinceLast, fairnessWindowDays)

		drContribution := 0.0
		if in.IsDR {
			drContribution = in.DRPenalty * float64(c.DRConsecutiveCnt)
		}

		r.Fairness = fair
		r.Urgency = urg
		r.LRS = lrs
		r.Total = in.WeightFair*fair*in.AdjustmentFactor + in.WeightUrgency*urg + in.WeightLRS*lrs + drContribution

		// The gap gate excludes the candidate from selection but its
		// component scores still appear in the breakdown consumers read.
		if in.MaxGapHours > 0 && hypo[c.EmpCode]-hMin > in.MaxGapHours && anyBelowGap {
			r.Reason = "gap_exceeded"
			results = append(results, r)
			continue
		}

		r.Eligible = true
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Eligible != b.Eligible {
			return a.Eligible
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Hours != b.Hours {
			return a.Hours < b.Hours
		}
		if a.DaysSinceLast != b.DaysSinceLast {
			return a.DaysSinceLast > b.DaysSinceLast
		}
		return a.EmpCode < b.EmpCode
	})

	return results
}

// ToCandidateScores converts the Scorer's internal result into the wire
// format persisted on AssignmentLog.
func ToCandidateScores(results []Scored) []models.CandidateScore {
	out := make([]models.CandidateScore, 0, len(results))
	for _, r := range results {
		out = append(out, models.CandidateScore{
			EmpCode:       r.EmpCode,
			Eligible:      r.Eligible,
			Reason:        r.Reason,
			Fairness:      r.Fairness,
			Urgency:       r.Urgency,
			LRS:           r.LRS,
			Total:         r.Total,
			Hours:         r.Hours,
			DaysSinceLast: r.DaysSinceLast,
		})
	}
	return out
}
