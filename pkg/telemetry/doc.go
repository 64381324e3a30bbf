// Package telemetry provides observability instrumentation for a kingpin
// run.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a single
// system covering run, actor, and group lifecycle.
//
// # Architecture
//
// Four pillars, one per concern:
//
//  1. Structured logging - context-aware logging with zerolog
//  2. Distributed tracing - OpenTelemetry spans with multiple exporters
//  3. Metrics collection - Prometheus counters/histograms/gauges
//  4. Event publishing - buffered, filterable event fan-out for subscribers
//
// # Usage
//
// Initialize telemetry once at process startup:
//
//	cfg := telemetry.DevelopmentConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("runner")
//	logger = logger.WithRunID("run-123").WithActorID("act-456")
//	logger.Info("actor starting")
//	logger.WithError(err).Error("actor failed")
//
// Log levels: trace, debug, info, warn, error, fatal.
//
// # Distributed Tracing
//
//	ctx, span := tel.Tracer.StartActorSpan(ctx, actorID, actorType, desc, dry)
//	defer span.End()
//
//	telemetry.AddActorEvent(span, actorID, "started", "dispatched")
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	} else {
//	    telemetry.RecordSuccess(span)
//	}
//
// Supported exporters: otlp (production), stdout (development), none
// (testing).
//
// # Metrics
//
//	tel.Metrics.RecordRunStarted(scriptPath)
//	tel.Metrics.RecordRunCompleted("success", duration)
//	tel.Metrics.RecordActorExecution(actorType, "success", dry, duration)
//	tel.Metrics.RecordGroupFanOut("async", len(children))
//	tel.Metrics.RecordError("recoverable", "EXEC_NONZERO")
//
// Metrics are exposed via HTTP at /metrics (default :9090).
//
// # Event Publishing
//
//	tel.Events.PublishRunStarted(runID, scriptPath)
//	tel.Events.PublishActorCompleted(runID, actorID, actorType, duration)
//	tel.Events.PublishGroupFanOut(runID, actorID, kind, size)
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("%s: %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// Event filters: FilterByLevel, FilterByType, FilterByRunID, FilterByActorID.
//
// # Context Helpers
//
// High-level helpers pair a context.Context mutation with its matching
// teardown call, mirroring actor.Run's construct/execute/normalize
// sequence:
//
//	ctx = telemetry.WithRunContext(ctx, runID, scriptPath)
//	defer telemetry.EndRunContext(ctx, runID, status, err)
//
//	ctx = telemetry.WithActorContext(ctx, runID, actorID, actorType, desc, dry)
//	defer telemetry.EndActorContext(ctx, runID, actorID, actorType, dry, err)
//
//	ctx = telemetry.WithGroupContext(ctx, runID, actorID, kind, size)
//	defer telemetry.EndGroupContext(ctx, err)
//
// For anything that isn't a run, actor, or group, use the generic pair:
//
//	ic := telemetry.StartOperation(ctx, "macro.load")
//	defer ic.End(err)
//
// # Configuration
//
//	cfg := telemetry.DevelopmentConfig() // verbose logging, stdout traces, full sampling
//	cfg := telemetry.ProductionConfig()  // JSON logs, OTLP traces, 10% sampling
//
// # Graceful Shutdown
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("telemetry shutdown: %v", err)
//	}
//
// Shutdown flushes buffered events and exports pending spans; metrics are
// left as they are.
package telemetry
