package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"toolgate/internal/logging"
	"toolgate/internal/toolerr"
	"toolgate/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds a handler when no WithTimeout option is given.
const DefaultTimeout = 30 * time.Second

const (
	tracerName = "toolgate/internal/dispatch"
	spanName   = "tool.dispatch"
)

// Dispatcher routes requests to handlers. It is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	logger   logging.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	metrics  *dispatchMetrics
	timeout  time.Duration
	newID    func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-request time budget. Non-positive values keep
// the default.
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// WithTracer sets the tracer used for dispatch spans. The default comes
// from the global OpenTelemetry provider, which is a no-op unless the
// process installs one.
func WithTracer(t trace.Tracer) Option {
	return func(dp *Dispatcher) {
		if t != nil {
			dp.tracer = t
		}
	}
}

// WithMeter records call counts and durations on meter. Without it no
// metrics are recorded.
func WithMeter(m metric.Meter) Option {
	return func(dp *Dispatcher) {
		dp.meter = m
	}
}

// WithRequestIDs replaces the request id generator.
func WithRequestIDs(gen func() string) Option {
	return func(dp *Dispatcher) {
		if gen != nil {
			dp.newID = gen
		}
	}
}

// NewDispatcher freezes reg and returns a dispatcher over it.
func NewDispatcher(reg *Registry, logger logging.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	reg.Freeze()

	d := &Dispatcher{
		registry: reg,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		timeout:  DefaultTimeout,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.meter != nil {
		m, err := newDispatchMetrics(d.meter)
		if err != nil {
			logger.Warn("Dispatch metrics disabled", "error", err)
		}
		d.metrics = m
	}
	return d
}

// Timeout returns the per-request time budget.
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// Registry returns the frozen registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

type outcome struct {
	data any
	err  error
}

// Dispatch runs req and always returns a well-formed Envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Envelope {
	start := time.Now()
	requestID := d.newID()
	log := d.logger.With("tool", req.Tool, "request_id", requestID)

	ctx, span := d.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("tool.name", req.Tool),
		attribute.String("tool.request_id", requestID),
	))
	defer span.End()

	handler, ok := d.registry.Lookup(req.Tool)
	if !ok {
		env := Failure(toolerr.UnknownTool(req.Tool))
		d.finish(ctx, span, log, req.Tool, env, nil, start)
		return env
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// Buffered so a detached handler can still deliver and exit.
	done := make(chan outcome, 1)
	go func() {
		res := invoke(ctx, handler, req.Arguments)
		if ctx.Err() != nil {
			log.Debug("Handler finished after dispatch gave up", "error", res.err)
		}
		done <- res
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		log.Warn("Handler exceeded time budget, detaching", "timeout", d.timeout)
		res = outcome{err: ctx.Err()}
	}

	var env Envelope
	if res.err != nil {
		env = Failure(res.err)
	} else {
		env = Success(res.data)
	}

	d.finish(ctx, span, log, req.Tool, env, res.err, start)
	return env
}

// invoke binds and runs the handler, turning panics into InternalError.
func invoke(ctx context.Context, h Handler, raw map[string]any) (res outcome) {
	defer func() {
		if r := recover(); r != nil {
			res = outcome{err: toolerr.Internal(fmt.Errorf("handler panic: %v\n%s", r, debug.Stack()))}
		}
	}()

	args, err := validation.Bind(h.Args(), raw)
	if err != nil {
		return outcome{err: err}
	}

	data, err := h.Handle(ctx, args)
	return outcome{data: data, err: err}
}

func (d *Dispatcher) finish(ctx context.Context, span trace.Span, log logging.Logger, tool string, env Envelope, err error, start time.Time) {
	duration := time.Since(start)
	// The dispatch context may already be done; metrics still get recorded.
	d.metrics.record(context.WithoutCancel(ctx), tool, env, duration)
	span.SetAttributes(attribute.String("tool.status", string(env.Status)))

	if env.OK() {
		span.SetStatus(codes.Ok, "")
		log.Debug("Tool succeeded", "duration", duration)
		return
	}

	kind := env.ErrorKind()
	span.SetAttributes(attribute.String("tool.error_kind", string(kind)))
	span.SetStatus(codes.Error, string(kind))

	if kind == toolerr.KindInternalError {
		// Full detail stays server-side.
		log.Error("Tool failed with internal error", "error", err, "duration", duration)
		if err != nil {
			span.RecordError(err)
		}
		return
	}
	log.Info("Tool returned error", "kind", kind, "message", env.Error.Message, "duration", duration)
}
