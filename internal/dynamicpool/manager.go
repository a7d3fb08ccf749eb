// Package dynamicpool implements the Dynamic Pool Manager: tracks the
// active-interpreter set between Runner invocations and emits an
// adjustmentFactor when membership shifts significantly.
package dynamicpool

import (
	"context"
	"fmt"
	"sort"

	"interpreter-engine/internal/apiutil"
	"interpreter-engine/internal/dbredis"
)

const snapshotKey = "dynamicpool:previous_set"

// Adjustment is the Manager's verdict for one Runner invocation.
type Adjustment struct {
	Added             []string
	Removed           []string
	Significant       bool
	AdjustmentFactor  float64
	ShouldRecalculate bool
}

// snapshot is the persisted previous-set shape, cached in Redis so the
// Manager survives process restarts without losing its comparison baseline.
type snapshot struct {
	EmpCodes []string `json:"emp_codes"`
}

// Manager is the stateful Dynamic Pool Manager, backed by a Redis-cached
// snapshot of the previously observed active set.
type Manager struct {
	redis *dbredis.Client
}

func New(redis *dbredis.Client) *Manager {
	return &Manager{redis: redis}
}

// Observe compares the current active set to the last observed one and
// returns the membership adjustment, then persists the new set as the baseline.
func (m *Manager) Observe(ctx context.Context, currentEmpCodes []string) (Adjustment, error) {
	previous, err := m.loadPrevious(ctx)
	if err != nil {
		return Adjustment{}, err
	}

	if previous == nil {
		if err := m.storeCurrent(ctx, currentEmpCodes); err != nil {
			return Adjustment{}, err
		}
		return Adjustment{AdjustmentFactor: 1.0}, nil
	}

	adj := Diff(previous, currentEmpCodes)

	if err := m.storeCurrent(ctx, currentEmpCodes); err != nil {
		return Adjustment{}, err
	}

	return adj, nil
}

// Diff computes the membership adjustment between two active sets: a change is
// significant when |added ∪ removed| >= max(1, 0.1*|previous|), and the
// factor is clamp(1 + 0.25*(|added|-|removed|)/|previous|, 0.5, 2.0).
func Diff(previous, current []string) Adjustment {
	prevSet := toSet(previous)
	currSet := toSet(current)

	var added, removed []string
	for code := range currSet {
		if !prevSet[code] {
			added = append(added, code)
		}
	}
	for code := range prevSet {
		if !currSet[code] {
			removed = append(removed, code)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	adj := Adjustment{Added: added, Removed: removed, AdjustmentFactor: 1.0}

	changes := len(added) + len(removed)
	adj.Significant = changes >= 1 && 10*changes >= len(previous)

	if adj.Significant {
		factor := 1 + 0.25*float64(len(added)-len(removed))/float64(max(1, len(previous)))
		adj.AdjustmentFactor = clamp(factor, 0.5, 2.0)
		adj.ShouldRecalculate = true
	}
	return adj
}

// MedianHours returns the median of the given hours slice, used to seed
// newly added interpreters' currentHours so they aren't scored as if they
// had zero history and instantly starve longer-tenured staff.
func MedianHours(hours []float64) float64 {
	if len(hours) == 0 {
		return 0
	}
	sorted := append([]float64(nil), hours...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func (m *Manager) loadPrevious(ctx context.Context) ([]string, error) {
	data, err := m.redis.GetClient().Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if err.Error() == "redis: nil" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load dynamic pool snapshot: %w", err)
	}
	var snap snapshot
	if err := apiutil.DeserializeModel(data, &snap); err != nil {
		return nil, err
	}
	return snap.EmpCodes, nil
}

func (m *Manager) storeCurrent(ctx context.Context, empCodes []string) error {
	data, err := apiutil.SerializeModel(snapshot{EmpCodes: empCodes})
	if err != nil {
		return err
	}
	if err := m.redis.GetClient().Set(ctx, snapshotKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store dynamic pool snapshot: %w", err)
	}
	return nil
}

func toSet(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
