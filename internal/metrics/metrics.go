// README: Prometheus metrics for dispatch operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus collectors used by the dispatch core.
type Metrics struct {
	TransitionsTotal   *prometheus.CounterVec
	TransitionFailures *prometheus.CounterVec
	ConflictsTotal     prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trip_transitions_total",
			Help:      "Trip status transitions applied, labelled by target status",
		}, []string{"to_status"}),
		TransitionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trip_transition_failures_total",
			Help:      "Rejected or failed trip transitions by reason and target status",
		}, []string{"reason", "to_status"}),
		ConflictsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_conflicts_total",
			Help:      "Optimistic-concurrency conflicts on status writes",
		}),
		NotificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification emails attempted, labelled by outcome",
		}, []string{"outcome"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
