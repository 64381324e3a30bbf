package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging,
// tracing, metrics, and events for a kingpin run.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// ActorStarted satisfies actor.Instrumentation structurally (pkg/telemetry
// never imports pkg/actor, to keep the dependency edge one-directional):
// it opens a span, starts a timer, and publishes a started event for one
// actor.Run, returning the function the actor framework calls with the
// run's outcome. The interface gives no run ID or context to attach to, so
// each call mints its own actor ID and starts its span detached from any
// enclosing run span.
func (t *Telemetry) ActorStarted(actorType, desc string, dry bool) func(err error) {
	actorID := uuid.New().String()
	_, span := t.Tracer.StartActorSpan(context.Background(), actorID, actorType, desc, dry)
	timer := NewTimer()
	_ = t.Events.PublishActorStarted("", actorID, actorType, desc, dry)

	return func(err error) {
		duration := timer.Duration()
		status := "succeeded"
		if err != nil {
			status = "failed"
			RecordError(span, err)
			_ = t.Events.PublishActorFailed("", actorID, actorType, err.Error())
		} else {
			RecordSuccess(span)
			_ = t.Events.PublishActorCompleted("", actorID, actorType, duration)
		}
		t.Metrics.RecordActorExecution(actorType, status, dry, duration)
		span.End()
	}
}

// Context Helpers for common instrumentation patterns

// InstrumentedContext creates a context with telemetry, logger fields, and a trace span.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	logger := tel.Logger.WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithRunContext creates a context enriched with run-specific telemetry.
func WithRunContext(ctx context.Context, runID, script string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartRunSpan(ctx, runID)

	logger := tel.Logger.WithRunID(runID).WithField("script", script)
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordRunStarted(script)
	_ = tel.Events.PublishRunStarted(runID, script)

	spanCtx = context.WithValue(spanCtx, runSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, runTimerKey{}, NewTimer())

	return spanCtx
}

type runSpanKey struct{}
type runTimerKey struct{}

// EndRunContext completes the run context, recording metrics and events.
func EndRunContext(ctx context.Context, runID, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(runSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(runTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordRunCompleted(status, duration)

	if err != nil {
		_ = tel.Events.PublishRunFailed(runID, err.Error())
	} else {
		_ = tel.Events.PublishRunCompleted(runID, status, duration)
	}
}

// WithActorContext creates a context enriched with actor-specific telemetry.
func WithActorContext(ctx context.Context, runID, actorID, actorType, desc string, dry bool) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartActorSpan(ctx, actorID, actorType, desc, dry)

	logger := tel.Logger.
		WithRunID(runID).
		WithActorID(actorID).
		WithActorType(actorType)
	spanCtx = logger.WithContext(spanCtx)

	_ = tel.Events.PublishActorStarted(runID, actorID, actorType, desc, dry)

	spanCtx = context.WithValue(spanCtx, actorSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, actorTimerKey{}, NewTimer())

	return spanCtx
}

type actorSpanKey struct{}
type actorTimerKey struct{}

// EndActorContext completes the actor context, recording metrics and events.
func EndActorContext(ctx context.Context, runID, actorID, actorType string, dry bool, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(actorSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(actorTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	status := "succeeded"
	if err != nil {
		status = "failed"
		_ = tel.Events.PublishActorFailed(runID, actorID, actorType, err.Error())
	} else {
		_ = tel.Events.PublishActorCompleted(runID, actorID, actorType, duration)
	}
	tel.Metrics.RecordActorExecution(actorType, status, dry, duration)
}

// WithGroupContext creates a context enriched with group fan-out telemetry.
func WithGroupContext(ctx context.Context, runID, actorID, kind string, size int) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartGroupSpan(ctx, kind, size)
	logger := tel.Logger.WithRunID(runID).WithActorID(actorID).WithGroupKind(kind, size)
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordGroupFanOut(kind, size)
	_ = tel.Events.PublishGroupFanOut(runID, actorID, kind, size)

	spanCtx = context.WithValue(spanCtx, groupSpanKey{}, span)
	return spanCtx
}

type groupSpanKey struct{}

// EndGroupContext ends the group fan-out span.
func EndGroupContext(ctx context.Context, err error) {
	span, ok := ctx.Value(groupSpanKey{}).(trace.Span)
	if !ok {
		return
	}
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	span.End()
}
