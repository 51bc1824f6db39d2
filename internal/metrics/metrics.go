// Package metrics exposes Prometheus collectors for routing, rewriting and
// replication-slot activity.
//
// Collectors are registered on a caller-supplied registry rather than the
// global default, so several coordinators (and tests) can coexist in one
// process. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/sluice/internal/ir"
)

// Metrics groups the sluice collectors.
type Metrics struct {
	// RoutesTotal counts routed statements by logical table and outcome.
	RoutesTotal *prometheus.CounterVec
	// RouteUnits is the number of physical targets per routed statement.
	RouteUnits prometheus.Histogram
	// RewritesTotal counts literal rewrites by direction (write, read) and outcome.
	RewritesTotal *prometheus.CounterVec
	// ReplicationOpsTotal counts slot operations (initialize, destroy, advance).
	ReplicationOpsTotal *prometheus.CounterVec
	// CheckpointLSN is the last durable position per migration scope.
	CheckpointLSN *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RoutesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sluice_routes_total",
				Help: "Total number of statements routed",
			},
			[]string{"table", "outcome"},
		),
		RouteUnits: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sluice_route_units",
				Help:    "Physical targets resolved per statement",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),
		RewritesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sluice_rewrites_total",
				Help: "Total number of encrypted values rewritten",
			},
			[]string{"direction", "outcome"},
		),
		ReplicationOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sluice_replication_operations_total",
				Help: "Total number of replication slot operations",
			},
			[]string{"operation", "outcome"},
		),
		CheckpointLSN: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sluice_checkpoint_lsn",
				Help: "Last durable replication position per migration scope",
			},
			[]string{"scope"},
		),
	}
}

// Outcome labels err: "ok", the lower-cased error kind, or "error".
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := ir.KindOf(err); kind != "" {
		return strings.ToLower(string(kind))
	}
	return "error"
}

// ObserveRoute records one routing decision.
func (m *Metrics) ObserveRoute(table string, units int, err error) {
	if m == nil {
		return
	}
	m.RoutesTotal.WithLabelValues(table, Outcome(err)).Inc()
	if err == nil {
		m.RouteUnits.Observe(float64(units))
	}
}

// ObserveRewrite records n rewritten values in one direction.
func (m *Metrics) ObserveRewrite(direction string, n int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RewritesTotal.WithLabelValues(direction, Outcome(err)).Inc()
		return
	}
	if n > 0 {
		m.RewritesTotal.WithLabelValues(direction, "ok").Add(float64(n))
	}
}

// ObserveReplication records one slot operation.
func (m *Metrics) ObserveReplication(op string, err error) {
	if m == nil {
		return
	}
	m.ReplicationOpsTotal.WithLabelValues(op, Outcome(err)).Inc()
}

// SetCheckpoint records the durable position of scope.
func (m *Metrics) SetCheckpoint(scope string, lsn uint64) {
	if m == nil {
		return
	}
	m.CheckpointLSN.WithLabelValues(scope).Set(float64(lsn))
}
