// Package prometheus exports lineserv metrics through a dedicated registry
// and bridges the server's observer events onto them.
package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the default Prometheus registry.
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer.
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "lineserv"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Task metrics
	TasksTotal        *prometheus.CounterVec
	TaskDuration      *prometheus.HistogramVec
	TaskQueueWait     prometheus.Histogram
	TasksRejected     prometheus.Counter
	ProtocolErrors    prometheus.Counter
	TaskLatencyMillis prometheus.Gauge

	// Queue metrics
	QueueDepth    prometheus.Gauge
	QueueCapacity prometheus.Gauge

	// Connection metrics
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
}

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a metrics collection registered with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		TasksTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineserv_tasks_total",
				Help: "Total number of executed tasks",
			},
			[]string{"op", "status"},
		),
		TaskDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lineserv_task_duration_seconds",
				Help:    "Task execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		TaskQueueWait: promauto.With(registerer).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lineserv_task_queue_wait_seconds",
				Help:    "Time tasks spent waiting in the bounded queue",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5},
			},
		),
		TasksRejected: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "lineserv_tasks_rejected_total",
				Help: "Total number of requests rejected with server busy",
			},
		),
		ProtocolErrors: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "lineserv_protocol_errors_total",
				Help: "Total number of request lines that failed to parse",
			},
		),
		TaskLatencyMillis: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "lineserv_task_latency_avg_ms",
				Help: "Average enqueue-to-delivery latency in milliseconds",
			},
		),
		QueueDepth: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "lineserv_queue_depth",
				Help: "Current number of tasks waiting in the bounded queue",
			},
		),
		QueueCapacity: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "lineserv_queue_capacity",
				Help: "Configured capacity of the bounded queue",
			},
		),
		ConnectionsActive: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "lineserv_connections_active",
				Help: "Number of currently open client connections",
			},
		),
		ConnectionsTotal: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "lineserv_connections_total",
				Help: "Total number of accepted client connections",
			},
		),
	}
}
