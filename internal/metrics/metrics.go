// Package metrics exposes the process's Prometheus instrumentation: search
// latency/count by mode, and discovery outcomes by upstream. There is no
// Non-goal in the specification excluding these (it excludes distributed
// tracing features, not local observability), so the gateway still carries
// an ambient metrics surface the way the teacher repo's pkg/logger-adjacent
// observability does.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchDuration records search latency in seconds, partitioned by mode.
	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mcp_please",
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "Duration of a search_tools call, by search mode.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	// SearchTotal counts search calls, partitioned by mode and outcome.
	SearchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mcp_please",
		Subsystem: "search",
		Name:      "total",
		Help:      "Total number of search_tools calls, by mode and outcome.",
	}, []string{"mode", "outcome"})

	// DiscoveryTotal counts discovery attempts, partitioned by upstream and outcome.
	DiscoveryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mcp_please",
		Subsystem: "discovery",
		Name:      "total",
		Help:      "Total number of upstream discovery attempts, by upstream and outcome.",
	}, []string{"upstream", "outcome"})

	// ExecutionTotal counts tool executions, partitioned by upstream and outcome.
	ExecutionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mcp_please",
		Subsystem: "executor",
		Name:      "total",
		Help:      "Total number of tool executions, by upstream and outcome.",
	}, []string{"upstream", "outcome"})
)

// Outcome labels used consistently across the counters above.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)
