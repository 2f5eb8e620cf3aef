// Package metrics provides Prometheus instrumentation for the node: message
// dispatch counters, de-dup/correlation gauges, and activity lifecycle
// histograms (§6's Metrics section).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hstp_messages_dispatched_total",
			Help: "Total number of messages dispatched to an operation handler.",
		},
		[]string{"operation"},
	)

	unknownOperationTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hstp_unknown_operation_total",
			Help: "Total number of messages addressed to an unregistered operation.",
		},
	)

	dedupDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hstp_dedup_dropped_total",
			Help: "Total number of inbound messages dropped as duplicates.",
		},
	)

	correlationPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hstp_correlation_pending",
			Help: "Current number of outbound messages awaiting a correlated reply.",
		},
	)

	activitiesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hstp_activities_by_status",
			Help: "Current number of tracked activities in each status.",
		},
		[]string{"status"},
	)

	activityDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hstp_activity_duration_seconds",
			Help:    "Wall-clock duration of an activity, from creation to its terminal status.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)
)

// RecordDispatch records one successful handler dispatch for operation.
func RecordDispatch(operation string) {
	messagesDispatchedTotal.WithLabelValues(operation).Inc()
}

// RecordUnknownOperation records one inbound message for an unregistered
// operation, whether or not it is answered.
func RecordUnknownOperation() {
	unknownOperationTotal.Inc()
}

// RecordDedupDropped records one inbound message dropped as a duplicate.
func RecordDedupDropped() {
	dedupDroppedTotal.Inc()
}

// SetCorrelationPending reports the current correlation table size.
func SetCorrelationPending(n int) {
	correlationPending.Set(float64(n))
}

// SetActivitiesByStatus reports the current per-status activity counts,
// replacing any status not present in counts with zero.
func SetActivitiesByStatus(counts map[string]int, knownStatuses []string) {
	for _, s := range knownStatuses {
		activitiesByStatus.WithLabelValues(s).Set(float64(counts[s]))
	}
}

// ObserveActivityDuration records the wall-clock duration of one activity
// that reached a terminal status (completed, failed or cancelled),
// measured from its creation.
func ObserveActivityDuration(seconds float64) {
	activityDurationSeconds.Observe(seconds)
}

// Handler returns the http.Handler to mount at metrics.endpoint (§6).
func Handler() http.Handler {
	return promhttp.Handler()
}
