package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"interpreter-engine/internal/models"
)

func customPolicy() models.Policy {
	return models.Policy{
		Mode:                 models.ModeCustom,
		WeightFair:           1.2,
		WeightUrgency:        0.8,
		WeightLRS:            0.3,
		DRConsecutivePenalty: -0.5,
		FairnessWindowDays:   30,
		MaxGapHours:          5,
		MinAdvanceDays:       2,
	}
}

func TestValidatePolicy_DefaultsAreClean(t *testing.T) {
	p := customPolicy()
	warnings, err := ValidatePolicy(&p)
	assert.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidatePolicy_HardRangeBoundaries(t *testing.T) {
	p := customPolicy()
	p.FairnessWindowDays = 7
	_, err := ValidatePolicy(&p)
	assert.NoError(t, err)

	p.FairnessWindowDays = 90
	_, err = ValidatePolicy(&p)
	assert.NoError(t, err)

	p.FairnessWindowDays = 6
	_, err = ValidatePolicy(&p)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	p.FairnessWindowDays = 91
	_, err = ValidatePolicy(&p)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestValidatePolicy_WeightRanges(t *testing.T) {
	p := customPolicy()
	p.WeightFair = 5.1
	_, err := ValidatePolicy(&p)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	p = customPolicy()
	p.DRConsecutivePenalty = 0.1
	_, err = ValidatePolicy(&p)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	p = customPolicy()
	p.DRConsecutivePenalty = -2.5
	_, err = ValidatePolicy(&p)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestValidatePolicy_RecommendedBandWarns(t *testing.T) {
	p := customPolicy()
	p.FairnessWindowDays = 8 // legal but below the recommended 14
	p.MaxGapHours = 80       // legal but above the recommended 20

	warnings, err := ValidatePolicy(&p)

	assert.NoError(t, err)
	assert.Len(t, warnings, 2)
}

func TestLockedFieldsTouched(t *testing.T) {
	wf := 1.5
	assert.True(t, lockedFieldsTouched(PolicyPatch{WeightFair: &wf}))

	days := 14
	assert.True(t, lockedFieldsTouched(PolicyPatch{FairnessWindowDays: &days}))

	// autoAssignEnabled is not a locked parameter.
	enabled := false
	assert.False(t, lockedFieldsTouched(PolicyPatch{AutoAssignEnabled: &enabled}))
}
