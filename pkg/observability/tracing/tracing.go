// Package tracing provides an optional OpenTelemetry pipeline for task spans.
// Spans are emitted at task completion with explicit timestamps, so tracing
// never sits on the worker hot path.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/lineservio/lineserv/pkg/server"
)

// Setup installs a tracer provider with a stdout span exporter and returns a
// shutdown function that flushes pending spans.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// TaskObserver emits one span per executed task. It implements
// server.Observer; the non-task events are ignored.
type TaskObserver struct {
	tracer trace.Tracer
}

// NewTaskObserver creates an observer using the globally installed tracer
// provider. Call Setup first.
func NewTaskObserver() *TaskObserver {
	return &TaskObserver{tracer: otel.Tracer("lineserv/server")}
}

func (o *TaskObserver) TaskDone(info server.TaskInfo) {
	_, span := o.tracer.Start(context.Background(), "task.execute",
		trace.WithTimestamp(info.Started),
		trace.WithAttributes(
			attribute.String("lineserv.op", info.Op),
			attribute.String("lineserv.status", info.Status),
			attribute.String("lineserv.conn_id", info.ConnID),
			attribute.Int64("lineserv.seq", int64(info.Seq)),
			attribute.Int64("lineserv.queue_wait_us", info.QueueWait.Microseconds()),
		),
	)
	span.End(trace.WithTimestamp(info.Started.Add(info.Duration)))
}

func (o *TaskObserver) TaskRejected()  {}
func (o *TaskObserver) ProtocolError() {}
func (o *TaskObserver) ConnOpened()    {}
func (o *TaskObserver) ConnClosed()    {}
