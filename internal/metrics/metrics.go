// Package metrics exposes the engine's Prometheus counters: assignment
// outcomes, pool transitions, scheduler ticks, and emergency runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type registry struct {
	reg *prometheus.Registry

	assignmentsTotal  *prometheus.CounterVec
	poolEntriesTotal  *prometheus.CounterVec
	schedulerTicks    prometheus.Counter
	emergencyRuns     prometheus.Counter
}

var m *registry

// Init registers the engine's Prometheus collectors. Safe to call once at
// startup; a nil registry makes every Record* call a no-op, so packages can
// call them unconditionally before Init runs (e.g. in tests).
func Init(namespace string) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	r := &registry{
		reg: reg,
		assignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Total Runner decisions by outcome",
		}, []string{"outcome"}),
		poolEntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_entries_total",
			Help:      "Total pool entry transitions by resulting sub-state",
		}, []string{"substate"}),
		schedulerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_ticks_total",
			Help:      "Total scheduler ticks executed",
		}),
		emergencyRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emergency_runs_total",
			Help:      "Total emergency override runs executed",
		}),
	}

	reg.MustRegister(r.assignmentsTotal, r.poolEntriesTotal, r.schedulerTicks, r.emergencyRuns)
	m = r
}

// RecordAssignment increments assignments_total for the given outcome.
func RecordAssignment(outcome string) {
	if m == nil {
		return
	}
	m.assignmentsTotal.WithLabelValues(outcome).Inc()
}

// RecordPoolEntry increments pool_entries_total for the given sub-state.
func RecordPoolEntry(substate string) {
	if m == nil {
		return
	}
	m.poolEntriesTotal.WithLabelValues(substate).Inc()
}

// RecordSchedulerTick increments scheduler_ticks_total.
func RecordSchedulerTick() {
	if m == nil {
		return
	}
	m.schedulerTicks.Inc()
}

// RecordEmergencyRun increments emergency_runs_total.
func RecordEmergencyRun() {
	if m == nil {
		return
	}
	m.emergencyRuns.Inc()
}

// Handler returns the Prometheus scrape endpoint handler, or a 503 stub if
// Init has not run yet.
func Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
