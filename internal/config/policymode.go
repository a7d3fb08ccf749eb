package config

import (
	"time"

	"interpreter-engine/internal/models"
)

// CanonicalVector is the fixed parameter set a non-CUSTOM mode replaces
// locked policy fields with on transition.
type CanonicalVector struct {
	FairnessWindowDays   int
	MaxGapHours          float64
	WeightFair           float64
	WeightUrgency        float64
	WeightLRS            float64
	DRConsecutivePenalty float64
}

var canonicalVectors = map[models.PolicyMode]CanonicalVector{
	models.ModeBalance: {FairnessWindowDays: 60, MaxGapHours: 2, WeightFair: 2.0, WeightUrgency: 0.6, WeightLRS: 0.6, DRConsecutivePenalty: -0.8},
	models.ModeUrgent:  {FairnessWindowDays: 14, MaxGapHours: 10, WeightFair: 0.5, WeightUrgency: 2.5, WeightLRS: 0.2, DRConsecutivePenalty: -0.1},
	models.ModeNormal:  {FairnessWindowDays: 30, MaxGapHours: 5, WeightFair: 1.2, WeightUrgency: 0.8, WeightLRS: 0.3, DRConsecutivePenalty: -0.5},
}

// Canonical returns the canonical vector for a non-CUSTOM mode. The second
// return is false for CUSTOM, which has no canonical vector by definition.
func Canonical(mode models.PolicyMode) (CanonicalVector, bool) {
	v, ok := canonicalVectors[mode]
	return v, ok
}

// ModeInterval is the Scheduler's default tick interval per mode.
func ModeInterval(mode models.PolicyMode, customMinutes int) time.Duration {
	switch mode {
	case models.ModeBalance:
		return 60 * time.Minute
	case models.ModeNormal:
		return 30 * time.Minute
	case models.ModeUrgent:
		return 5 * time.Minute
	default:
		if customMinutes <= 0 {
			return 15 * time.Minute
		}
		return time.Duration(customMinutes) * time.Minute
	}
}

// ModeLookahead is the Pool Store's peekReady lookahead window per mode.
func ModeLookahead(mode models.PolicyMode, customHours float64) time.Duration {
	switch mode {
	case models.ModeBalance:
		return 6 * time.Hour
	case models.ModeNormal:
		return 24 * time.Hour
	case models.ModeUrgent:
		return 0
	default:
		if customHours <= 0 {
			return time.Hour
		}
		return time.Duration(customHours * float64(time.Hour))
	}
}
