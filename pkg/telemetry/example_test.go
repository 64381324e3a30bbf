package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/nextdoor/kingpin/pkg/telemetry"
)

// Example_basicSetup shows the minimal wiring: build a Telemetry instance
// from a Config and shut it down when the run ends.
func Example_basicSetup() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr"
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	tel.Logger.Info("kingpin run starting")
	fmt.Println("telemetry ready")
	// Output: telemetry ready
}

// Example_structuredLogging shows attaching run/actor fields to the
// component logger instead of formatting them into the message.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr"
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	log := tel.Logger.NewComponentLogger("runner").
		WithRunID("run-1").
		WithActorType("shell.Exec")
	log.Info("actor starting")
	fmt.Println("logged")
	// Output: logged
}

// Example_distributedTracing shows starting and ending a span for a single
// actor execution, the unit StartActorSpan/EndActorContext wrap.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	ctx, span := tel.Tracer.StartActorSpan(context.Background(), "act-1", "shell.Exec", "run migration", false)
	telemetry.AddActorEvent(span, "act-1", "started", "actor dispatched")
	telemetry.RecordSuccess(span)
	span.End()
	_ = ctx
	fmt.Println("span recorded")
	// Output: span recorded
}

// Example_metricsCollection shows recording an actor execution's outcome
// and duration into the Prometheus registry.
func Example_metricsCollection() {
	cfg := telemetry.DevelopmentConfig()
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	timer := telemetry.NewTimer()
	tel.Metrics.RecordActorExecution("shell.Exec", "success", false, timer.Duration())
	tel.Metrics.RecordGroupFanOut("async", 4)
	fmt.Println("metrics recorded")
	// Output: metrics recorded
}

// Example_eventPublishing shows publishing a group fan-out event for
// external subscribers (e.g. an audit sink) to observe.
func Example_eventPublishing() {
	cfg := telemetry.DevelopmentConfig()
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	if err := tel.Events.PublishGroupFanOut("run-1", "grp-1", "async", 3); err != nil {
		fmt.Println("publish failed:", err)
		return
	}
	fmt.Println("published")
	// Output: published
}

// Example_runInstrumentation shows the full run-level context lifecycle:
// WithRunContext attaches a span and timer to the context, EndRunContext
// records both on completion.
func Example_runInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	ctx = telemetry.WithRunContext(ctx, "run-1", "deploy.yaml")
	telemetry.EndRunContext(ctx, "run-1", "success", nil)
	fmt.Println("run instrumented")
	// Output: run instrumented
}

// Example_groupInstrumentation shows the group-level context lifecycle: a
// group is this domain's fan-out unit, in place of the teacher's external
// provider calls.
func Example_groupInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	ctx := telemetry.WithGroupContext(context.Background(), "run-1", "grp-1", "async", 3)
	telemetry.EndGroupContext(ctx, nil)
	fmt.Println("group instrumented")
	// Output: group instrumented
}

// Example_instrumentedOperation shows the generic StartOperation/End pair
// used for spans that don't map to a run, actor, or group.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	ic := telemetry.StartOperation(context.Background(), "macro.load")
	ic.End(nil)
	fmt.Println("operation instrumented")
	// Output: operation instrumented
}

// Example_eventFiltering shows subscribing with a level filter so a
// subscriber only sees warning-and-above events.
func Example_eventFiltering() {
	cfg := telemetry.DevelopmentConfig()
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	received := make(chan telemetry.Event, 1)
	tel.Events.Subscribe(func(e telemetry.Event) {
		received <- e
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	_ = tel.Events.PublishActorFailed("run-1", "act-1", "shell.Exec", "exit status 1")

	select {
	case e := <-received:
		fmt.Println(e.Type)
	case <-time.After(cfg.Events.FlushInterval + time.Second):
		fmt.Println("timeout")
	}
	// Output: actor.failed
}

// Example_productionConfiguration shows the production defaults: JSON
// logging, sampled tracing, Prometheus metrics enabled.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()
	fmt.Println(cfg.Logging.Format, cfg.Metrics.Enabled)
	// Output: json true
}

// Example_errorRecording shows marking a span as failed and recording the
// error as a metric in the same place an actor's run loop would.
func Example_errorRecording() {
	cfg := telemetry.DevelopmentConfig()
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	ctx, span := tel.Tracer.StartActorSpan(context.Background(), "act-1", "shell.Exec", "run migration", false)
	actorErr := fmt.Errorf("exit status 1")
	telemetry.RecordError(span, actorErr)
	tel.Metrics.RecordError("recoverable", "EXEC_NONZERO")
	span.End()
	_ = ctx
	fmt.Println("error recorded")
	// Output: error recorded
}

// Example_multipleComponents shows wiring logger, tracer, metrics, and
// events together for one actor's lifecycle.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr"
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	ctx := telemetry.WithActorContext(context.Background(), "run-1", "act-1", "shell.Exec", "run migration", false)
	tel.Logger.WithActorID("act-1").Info("actor started")
	_ = tel.Events.PublishActorStarted("run-1", "act-1", "shell.Exec", "run migration", false)

	telemetry.EndActorContext(ctx, "run-1", "act-1", "shell.Exec", false, nil)
	_ = tel.Events.PublishActorCompleted("run-1", "act-1", "shell.Exec", 10*time.Millisecond)

	fmt.Println("lifecycle complete")
	// Output: lifecycle complete
}
