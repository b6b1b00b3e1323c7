// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus collectors for the operation gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opgate_transitions_total",
		Help: "Total number of activation state transitions processed, by operation and reported state",
	}, []string{"operation", "active"})

	StartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opgate_starts_total",
		Help: "Total number of start notifications issued to the sink",
	}, []string{"operation"})

	StopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opgate_stops_total",
		Help: "Total number of stop notifications issued to the sink, by reason",
	}, []string{"operation", "reason"})

	OperationsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opgate_operations_active",
		Help: "Number of tracked operations currently considered active",
	})

	Busy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opgate_busy",
		Help: "1 while at least one tracked operation is active, 0 otherwise",
	})
)

// Stop reasons for StopsTotal.
const (
	StopReasonDone     = "done"
	StopReasonTeardown = "teardown"
)

// IncTransition records one processed transition for the given operation.
func IncTransition(operation string, active bool) {
	state := "false"
	if active {
		state = "true"
	}
	TransitionsTotal.WithLabelValues(operation, state).Inc()
}

// IncStart records one start notification issued for the given operation.
func IncStart(operation string) {
	StartsTotal.WithLabelValues(operation).Inc()
}

// IncStop records one stop notification issued for the given operation.
func IncStop(operation, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	StopsTotal.WithLabelValues(operation, reason).Inc()
}

// SetActive updates the aggregate activity gauges.
func SetActive(count int) {
	OperationsActive.Set(float64(count))
	if count > 0 {
		Busy.Set(1)
	} else {
		Busy.Set(0)
	}
}
