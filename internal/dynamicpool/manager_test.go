package dynamicpool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func codes(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("EMP%03d", i)
	}
	return out
}

func TestDiff_NoChange(t *testing.T) {
	prev := codes(10)

	adj := Diff(prev, prev)

	assert.False(t, adj.Significant)
	assert.False(t, adj.ShouldRecalculate)
	assert.Equal(t, 1.0, adj.AdjustmentFactor)
	assert.Empty(t, adj.Added)
	assert.Empty(t, adj.Removed)
}

func TestDiff_SmallChangeInLargePoolIsInsignificant(t *testing.T) {
	prev := codes(30)
	curr := append(codes(30), "EMP900", "EMP901")

	// threshold = max(1, 0.1*30) = 3; 2 changes stay below it.
	adj := Diff(prev, curr)

	assert.Equal(t, []string{"EMP900", "EMP901"}, adj.Added)
	assert.False(t, adj.Significant)
	assert.Equal(t, 1.0, adj.AdjustmentFactor)
}

func TestDiff_GrowthRaisesFactor(t *testing.T) {
	prev := codes(10)
	curr := append(codes(10), "EMP900", "EMP901")

	adj := Diff(prev, curr)

	assert.True(t, adj.Significant)
	assert.True(t, adj.ShouldRecalculate)
	// 1 + 0.25*(2-0)/10 = 1.05
	assert.InDelta(t, 1.05, adj.AdjustmentFactor, 1e-9)
}

func TestDiff_ShrinkageLowersFactor(t *testing.T) {
	prev := codes(10)
	curr := codes(6)

	adj := Diff(prev, curr)

	assert.True(t, adj.Significant)
	assert.Len(t, adj.Removed, 4)
	// 1 + 0.25*(0-4)/10 = 0.9
	assert.InDelta(t, 0.9, adj.AdjustmentFactor, 1e-9)
}

func TestDiff_FactorClamped(t *testing.T) {
	// Ten joiners against two incumbents would push the raw factor to 2.25.
	adj := Diff(codes(2), codes(12))
	assert.Equal(t, 2.0, adj.AdjustmentFactor)
}

func TestMedianHours(t *testing.T) {
	assert.Equal(t, 0.0, MedianHours(nil))
	assert.Equal(t, 7.0, MedianHours([]float64{7}))
	assert.Equal(t, 6.0, MedianHours([]float64{4, 8}))
	assert.Equal(t, 8.0, MedianHours([]float64{12, 4, 8}))
	// Input slice stays untouched.
	in := []float64{9, 1, 5}
	MedianHours(in)
	assert.Equal(t, []float64{9, 1, 5}, in)
}
