package scorer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// normalInputs mirrors the NORMAL-mode policy defaults: w_fair 1.2,
// w_urgency 0.8, w_lrs 0.3, maxGap 5, fairness window 30 days.
func normalInputs(candidates []Candidate) Inputs {
	return Inputs{
		Candidates:       candidates,
		BookingDuration:  2,
		DaysToStart:      1,
		Thresholds:       Thresholds{UrgentDays: 3, GeneralDays: 30},
		WeightFair:       1.2,
		WeightUrgency:    0.8,
		WeightLRS:        0.3,
		MaxGapHours:      5,
		MinAdvanceDays:   1,
		AdjustmentFactor: 1.0,
	}
}

func TestRank_FairnessPicksLeastLoaded(t *testing.T) {
	in := normalInputs([]Candidate{
		{EmpCode: "A", CurrentHours: 20, DaysSinceLast: 2, Available: true},
		{EmpCode: "B", CurrentHours: 5, DaysSinceLast: 10, Available: true},
		{EmpCode: "C", CurrentHours: 12, DaysSinceLast: 5, Available: true},
	})

	ranked := New().Rank(in, 30)

	assert.Equal(t, "B", ranked[0].EmpCode)
	assert.True(t, ranked[0].Eligible)
	assert.Equal(t, 5.0, ranked[0].Hours)
	// Totals keep the B > C > A order even where the gap gate excludes
	// the heavier-loaded candidates from selection.
	assert.Equal(t, "C", ranked[1].EmpCode)
	assert.Equal(t, "A", ranked[2].EmpCode)
	assert.Greater(t, ranked[0].Total, ranked[1].Total)
	assert.Greater(t, ranked[1].Total, ranked[2].Total)
}

func TestRank_GapGateExcludesButStillScores(t *testing.T) {
	in := normalInputs([]Candidate{
		{EmpCode: "A", CurrentHours: 20, DaysSinceLast: 2, Available: true},
		{EmpCode: "B", CurrentHours: 5, DaysSinceLast: 10, Available: true},
	})

	ranked := New().Rank(in, 30)

	// A's projected hours exceed B's by more than maxGapHours while a
	// lower-hours candidate exists, so A is excluded from selection.
	var a Scored
	for _, r := range ranked {
		if r.EmpCode == "A" {
			a = r
		}
	}
	assert.False(t, a.Eligible)
	assert.Equal(t, "gap_exceeded", a.Reason)
	assert.Greater(t, a.Total, 0.0)
}

func TestRank_MinimumHoursCandidateAlwaysEligible(t *testing.T) {
	// The minimum-hours candidate defines the gap baseline, so it can
	// never exceed the gap itself.
	in := normalInputs([]Candidate{
		{EmpCode: "A", CurrentHours: 40, DaysSinceLast: 2, Available: true},
		{EmpCode: "B", CurrentHours: 30, DaysSinceLast: 2, Available: true},
	})
	in.MaxGapHours = 5

	ranked := New().Rank(in, 30)

	assert.True(t, ranked[0].Eligible)
	assert.Equal(t, "B", ranked[0].EmpCode)
}

func TestRank_ConflictedCandidateIneligible(t *testing.T) {
	in := normalInputs([]Candidate{
		{EmpCode: "A", CurrentHours: 5, DaysSinceLast: 2, Available: false},
		{EmpCode: "B", CurrentHours: 10, DaysSinceLast: 2, Available: true},
	})

	ranked := New().Rank(in, 30)

	assert.Equal(t, "B", ranked[0].EmpCode)
	assert.True(t, ranked[0].Eligible)
	assert.False(t, ranked[1].Eligible)
	assert.Equal(t, "conflict", ranked[1].Reason)
}

func TestRank_DRBlockedCandidateIneligible(t *testing.T) {
	in := normalInputs([]Candidate{
		{EmpCode: "A", CurrentHours: 5, DaysSinceLast: 2, Available: true, DRHardBlocked: true},
		{EmpCode: "B", CurrentHours: 10, DaysSinceLast: 2, Available: true},
	})
	in.IsDR = true

	ranked := New().Rank(in, 30)

	assert.Equal(t, "B", ranked[0].EmpCode)
	assert.False(t, ranked[1].Eligible)
	assert.Equal(t, "dr_blocked", ranked[1].Reason)
}

func TestRank_DRPenaltyLowersTotal(t *testing.T) {
	in := normalInputs([]Candidate{
		{EmpCode: "A", CurrentHours: 10, DaysSinceLast: 5, Available: true, DRConsecutiveCnt: 2},
		{EmpCode: "B", CurrentHours: 10, DaysSinceLast: 5, Available: true},
	})
	in.IsDR = true
	in.DRPenalty = -0.5

	ranked := New().Rank(in, 30)

	assert.Equal(t, "B", ranked[0].EmpCode)
	assert.InDelta(t, ranked[0].Total-1.0, ranked[1].Total, 1e-9)
}

func TestUrgency_Boundaries(t *testing.T) {
	th := Thresholds{UrgentDays: 3, GeneralDays: 30}

	assert.Equal(t, 1.0, urgency(3, th, 1))
	assert.InDelta(t, (30.0-3.001)/27.0, urgency(3.001, th, 1), 1e-9)
	assert.InDelta(t, 0.5, urgency(16.5, th, 1), 1e-9)
	assert.Equal(t, 0.0, urgency(30.001, th, 1))
	assert.Equal(t, 0.0, urgency(100, th, 1))
}

func TestLRS_InfiniteMapsToOne(t *testing.T) {
	assert.Equal(t, 1.0, lrsScore(math.Inf(1), 30))
	assert.Equal(t, 1.0, lrsScore(45, 30))
	assert.InDelta(t, 0.5, lrsScore(15, 30), 1e-9)
	assert.Equal(t, 0.0, lrsScore(0, 30))
}

func TestRank_NeverAssignedWinsLRSTieBreak(t *testing.T) {
	// Scenario: identical hours, only LRS differs; never-assigned beats
	// recently assigned.
	in := normalInputs([]Candidate{
		{EmpCode: "Y", CurrentHours: 8, DaysSinceLast: 10, Available: true},
		{EmpCode: "Z", CurrentHours: 8, DaysSinceLast: math.Inf(1), Available: true},
	})

	ranked := New().Rank(in, 30)

	assert.Equal(t, "Z", ranked[0].EmpCode)
}

func TestRank_TieBreaksOnHoursThenDaysThenEmpCode(t *testing.T) {
	in := Inputs{
		Candidates: []Candidate{
			{EmpCode: "B", CurrentHours: 10, DaysSinceLast: 5, Available: true},
			{EmpCode: "A", CurrentHours: 10, DaysSinceLast: 5, Available: true},
		},
		Thresholds:       Thresholds{UrgentDays: 3, GeneralDays: 30},
		DaysToStart:      1,
		MaxGapHours:      5,
		AdjustmentFactor: 1.0,
	}

	ranked := New().Rank(in, 30)

	// All weights zero: totals tie, hours tie, days tie, empCode decides.
	assert.Equal(t, "A", ranked[0].EmpCode)
}

func TestRank_IsPureAndDeterministic(t *testing.T) {
	in := normalInputs([]Candidate{
		{EmpCode: "A", CurrentHours: 20, DaysSinceLast: 2, Available: true},
		{EmpCode: "B", CurrentHours: 5, DaysSinceLast: 10, Available: true},
		{EmpCode: "C", CurrentHours: 12, DaysSinceLast: 5, Available: false},
	})

	s := New()
	first := s.Rank(in, 30)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Rank(in, 30))
	}
}

func TestRank_AdjustmentFactorScalesFairness(t *testing.T) {
	candidates := []Candidate{
		{EmpCode: "A", CurrentHours: 5, DaysSinceLast: 0, Available: true},
		{EmpCode: "B", CurrentHours: 7, DaysSinceLast: 0, Available: true},
	}

	base := normalInputs(candidates)
	boosted := normalInputs(candidates)
	boosted.AdjustmentFactor = 2.0

	rankedBase := New().Rank(base, 30)
	rankedBoosted := New().Rank(boosted, 30)

	// Fairness component doubles for the least-loaded candidate.
	assert.InDelta(t, rankedBase[0].Total+1.2*rankedBase[0].Fairness, rankedBoosted[0].Total, 1e-9)
}
