package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// dispatchMetrics holds the instruments recorded once per dispatch.
type dispatchMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

func newDispatchMetrics(meter metric.Meter) (*dispatchMetrics, error) {
	calls, err := meter.Int64Counter(
		"tool.dispatch.calls",
		metric.WithDescription("Number of tool dispatches by tool, status and error kind"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create calls counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"tool.dispatch.duration",
		metric.WithDescription("Tool dispatch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return &dispatchMetrics{calls: calls, duration: duration}, nil
}

func (m *dispatchMetrics) record(ctx context.Context, tool string, env Envelope, elapsed time.Duration) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool.name", tool),
		attribute.String("tool.status", string(env.Status)),
	}
	if !env.OK() {
		attrs = append(attrs, attribute.String("tool.error_kind", string(env.ErrorKind())))
	}
	opts := metric.WithAttributes(attrs...)

	m.calls.Add(ctx, 1, opts)
	m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), opts)
}
