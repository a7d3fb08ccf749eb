package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"interpreter-engine/internal/models"
)

func TestRouteFor_UrgentModeAlwaysImmediate(t *testing.T) {
	assert.Equal(t, models.RouteImmediate, routeFor(models.ModeUrgent, 50, 3, 30))
	assert.Equal(t, models.RouteImmediate, routeFor(models.ModeUrgent, 1, 3, 30))
}

func TestRouteFor_ThresholdBoundaries(t *testing.T) {
	// daysToStart == U routes immediate; just past U routes to pool.
	assert.Equal(t, models.RouteImmediate, routeFor(models.ModeNormal, 3, 3, 30))
	assert.Equal(t, models.RoutePool, routeFor(models.ModeNormal, 3.0001, 3, 30))
}

func TestRouteFor_BeyondGeneralStillPools(t *testing.T) {
	assert.Equal(t, models.RoutePool, routeFor(models.ModeBalance, 60, 3, 30))
	assert.Equal(t, models.RoutePool, routeFor(models.ModeNormal, 60, 3, 30))
	assert.Equal(t, models.RoutePool, routeFor(models.ModeCustom, 60, 3, 30))
}

func TestPoolDeadline_StartMinusUrgentThreshold(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, 15)

	deadline := poolDeadline(start, now, 3)

	assert.Equal(t, start.AddDate(0, 0, -3), deadline)
}

func TestPoolDeadline_FlooredAtNowPlusMinute(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)

	// start - 3d is long past; the floor keeps the entry processable.
	deadline := poolDeadline(start, now, 3)

	assert.Equal(t, now.Add(time.Minute), deadline)
}
