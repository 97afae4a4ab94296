package prometheus

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/lineservio/lineserv/pkg/server"
)

// ServerObserver records server events as Prometheus metrics. It implements
// server.Observer.
type ServerObserver struct {
	metrics *Metrics
}

// NewServerObserver creates an observer backed by the global metrics.
func NewServerObserver() *ServerObserver {
	return &ServerObserver{metrics: GetMetrics()}
}

func (o *ServerObserver) TaskDone(info server.TaskInfo) {
	o.metrics.TasksTotal.WithLabelValues(info.Op, info.Status).Inc()
	o.metrics.TaskDuration.WithLabelValues(info.Op).Observe(info.Duration.Seconds())
	o.metrics.TaskQueueWait.Observe(info.QueueWait.Seconds())
}

func (o *ServerObserver) TaskRejected() {
	o.metrics.TasksRejected.Inc()
}

func (o *ServerObserver) ProtocolError() {
	o.metrics.ProtocolErrors.Inc()
}

func (o *ServerObserver) ConnOpened() {
	o.metrics.ConnectionsTotal.Inc()
	o.metrics.ConnectionsActive.Inc()
}

func (o *ServerObserver) ConnClosed() {
	o.metrics.ConnectionsActive.Dec()
}

// UpdateServerMetrics refreshes the gauges that are sampled rather than
// event-driven. Call it on a ticker.
func UpdateServerMetrics(s *server.Server) {
	m := GetMetrics()
	snap := s.Metrics()

	m.QueueDepth.Set(float64(snap.QueuedTasks))
	m.QueueCapacity.Set(float64(snap.QueueCapacity))
	m.TaskLatencyMillis.Set(snap.AvgLatencyMillis)
}

// MetricsHandler exposes the default registry in Prometheus text format as a
// fasthttp handler.
func MetricsHandler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{}),
	)
}
