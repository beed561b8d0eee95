package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AccessChecks counts authorization gate decisions and their outcome (allow|deny|error).
	AccessChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noderepo_access_checks_total",
			Help: "Total number of authorization gate evaluations",
		},
		[]string{"access_type", "result"},
	)

	// RepositoryOps counts repository operations by resource type and outcome.
	RepositoryOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noderepo_repository_operations_total",
			Help: "Total number of repository operations",
		},
		[]string{"resource_type", "operation", "result"},
	)

	// AggregateUpdateChildren observes the batch size of aggregate entity updates.
	AggregateUpdateChildren = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "noderepo_aggregate_update_children",
			Help:    "Number of children touched per aggregate entity update",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "noderepo_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
