// Package meshmetrics exposes the mesh control surface's operational
// counters as Prometheus metrics, mounted at /mesh/metrics by
// internal/meshapi: a small, fixed set of gauges/counters rather than a
// pluggable sink abstraction.
package meshmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Nodes reports the current number of registered mesh nodes.
	Nodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mesh_nodes",
		Help: "Current number of registered mesh nodes.",
	})

	// RegistrationsTotal counts every accepted call to Registry.Register,
	// whether it minted a token, accepted one, or refreshed an existing
	// registration.
	RegistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesh_registrations_total",
		Help: "Total number of accepted mesh node registrations.",
	})

	// EvictionsTotal counts nodes removed by the reaper for a stale
	// heartbeat.
	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesh_evictions_total",
		Help: "Total number of mesh nodes evicted for a stale heartbeat.",
	})

	// ProjectionFailuresTotal counts registrations that were accepted into
	// the node table but failed to project into the config store.
	ProjectionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesh_projection_failures_total",
		Help: "Total number of mesh node projections into the config store that failed.",
	})

	// ReaperDurationSeconds observes how long each reaper scan takes,
	// including the config-store retraction and journal/event fan-out for
	// any nodes it evicts.
	ReaperDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mesh_reaper_duration_seconds",
		Help:    "Duration of each mesh reaper scan, in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)
