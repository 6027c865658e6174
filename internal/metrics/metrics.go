package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the planning server's operational counters. Registered on a
// private registry so tests can construct as many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	SyncChangesProcessed prometheus.Counter
	SyncConflicts        *prometheus.CounterVec
	PlansGenerated       prometheus.Counter
	PlansCommitted       prometheus.Counter
	WSConnections        prometheus.GaugeFunc
}

func New(connectionCount func() float64) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		SyncChangesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "planner_sync_changes_processed_total",
			Help: "Planning changes successfully applied by the sync endpoint.",
		}),
		SyncConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_sync_conflicts_total",
			Help: "Conflicts produced during sync, by type.",
		}, []string{"type"}),
		PlansGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "planner_plans_generated_total",
			Help: "Plan proposals generated.",
		}),
		PlansCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "planner_plans_committed_total",
			Help: "Plan commit calls that confirmed at least one assignment.",
		}),
		WSConnections: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "planner_websocket_connections",
			Help: "Currently connected websocket clients.",
		}, connectionCount),
	}
}
