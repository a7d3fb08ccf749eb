package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"interpreter-engine/internal/models"
)

func TestCanonical_Vectors(t *testing.T) {
	balance, ok := Canonical(models.ModeBalance)
	assert.True(t, ok)
	assert.Equal(t, 60, balance.FairnessWindowDays)
	assert.Equal(t, 2.0, balance.MaxGapHours)
	assert.Equal(t, 2.0, balance.WeightFair)
	assert.Equal(t, -0.8, balance.DRConsecutivePenalty)

	urgent, ok := Canonical(models.ModeUrgent)
	assert.True(t, ok)
	assert.Equal(t, 14, urgent.FairnessWindowDays)
	assert.Equal(t, 2.5, urgent.WeightUrgency)
	assert.Equal(t, -0.1, urgent.DRConsecutivePenalty)

	normal, ok := Canonical(models.ModeNormal)
	assert.True(t, ok)
	assert.Equal(t, 30, normal.FairnessWindowDays)
	assert.Equal(t, 1.2, normal.WeightFair)
	assert.Equal(t, 0.3, normal.WeightLRS)
}

func TestCanonical_CustomHasNoVector(t *testing.T) {
	_, ok := Canonical(models.ModeCustom)
	assert.False(t, ok)
}

func TestModeInterval(t *testing.T) {
	assert.Equal(t, 60*time.Minute, ModeInterval(models.ModeBalance, 0))
	assert.Equal(t, 30*time.Minute, ModeInterval(models.ModeNormal, 0))
	assert.Equal(t, 5*time.Minute, ModeInterval(models.ModeUrgent, 0))
	assert.Equal(t, 45*time.Minute, ModeInterval(models.ModeCustom, 45))
	assert.Equal(t, 15*time.Minute, ModeInterval(models.ModeCustom, 0))
}

func TestModeLookahead(t *testing.T) {
	assert.Equal(t, 6*time.Hour, ModeLookahead(models.ModeBalance, 0))
	assert.Equal(t, 24*time.Hour, ModeLookahead(models.ModeNormal, 0))
	assert.Equal(t, time.Duration(0), ModeLookahead(models.ModeUrgent, 0))
	assert.Equal(t, 90*time.Minute, ModeLookahead(models.ModeCustom, 1.5))
	assert.Equal(t, time.Hour, ModeLookahead(models.ModeCustom, 0))
}
