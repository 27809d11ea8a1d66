package filters

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for filter delivery.
type Metrics struct {
	ActiveHeartbeats prometheus.Gauge

	FiltersCreated    *prometheus.CounterVec
	FiltersRemoved    *prometheus.CounterVec
	CreateFailures    *prometheus.CounterVec
	MessagesDelivered *prometheus.CounterVec
	DecodeFailures    *prometheus.CounterVec
	PollErrors        *prometheus.CounterVec

	PollDuration *prometheus.HistogramVec
}

// NewMetrics builds the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	const namespace, subsystem = "marketscope", "filters"
	factory := promauto.With(reg)

	return &Metrics{
		ActiveHeartbeats: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_heartbeats",
			Help:      "Current number of running poll heartbeats",
		}),
		FiltersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "created_total",
			Help:      "Total number of filters created on the node",
		}, []string{"label"}),
		FiltersRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "removed_total",
			Help:      "Total number of filters removed",
		}, []string{"label"}),
		CreateFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "create_failures_total",
			Help:      "Total number of failed filter creations",
		}, []string{"label"}),
		MessagesDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_delivered_total",
			Help:      "Total number of messages handed to handlers",
		}, []string{"label"}),
		DecodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decode_failures_total",
			Help:      "Total number of messages delivered raw after a decode failure",
		}, []string{"label"}),
		PollErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_errors_total",
			Help:      "Total number of failed eth_getFilterChanges calls",
		}, []string{"label"}),
		PollDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_duration_seconds",
			Help:      "eth_getFilterChanges round trip in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"label"}),
	}
}
