package actor

import (
	"context"
	"time"

	"github.com/nextdoor/kingpin/pkg/kperrors"
)

// Instrumentation lets a caller observe actor runs (spans, counters,
// histograms, a structured event bus) without pkg/actor depending on any
// particular telemetry backend. pkg/telemetry supplies the production
// implementation; tests pass nil.
type Instrumentation interface {
	ActorStarted(actorType, desc string, dry bool) func(err error)
}

// Wrapped pairs a Base with its concrete Body, implementing Actor. It is
// the only place the shared lifecycle (condition check, timeout shield,
// error normalization) is applied around a Body's Execute.
type Wrapped struct {
	*Base
	body Body
	inst Instrumentation
}

// New wraps body with its Base, optionally attaching Instrumentation.
func New(base *Base, body Body, inst Instrumentation) *Wrapped {
	return &Wrapped{Base: base, body: body, inst: inst}
}

// Run executes the condition check, then the timeout-shielded body, exactly
// once. Per spec.md §3's "single-use instance" invariant, callers must
// build a fresh Wrapped for every execution pass (dry rehearsal vs. real).
func (w *Wrapped) Run(ctx context.Context) error {
	proceed, err := w.checkCondition()
	if err != nil {
		return kperrors.Normalize(err)
	}
	if !proceed {
		w.Debugf("condition false, skipping")
		return nil
	}

	var finish func(err error)
	if w.inst != nil {
		finish = w.inst.ActorStarted(w.ActorType, w.desc, w.dry)
	}

	err = w.runBody(ctx)
	result := w.normalize(err)

	if finish != nil {
		finish(result)
	}
	return result
}

// runBody executes the Body, applying the timeout shield from spec.md §9:
// an actor's own per-run timeout is a plain timer racing the body's result
// channel, never a context.WithTimeout deadline injected into the body.
// The body always receives the caller's real ctx, so genuine upstream
// cancellation (process shutdown) still reaches it; only the synthetic
// per-actor deadline is shielded, leaving an overrun body to finish
// detached, its eventual result discarded into a buffered channel no one
// reads.
func (w *Wrapped) runBody(ctx context.Context) error {
	if w.timeout <= 0 {
		return w.body.Execute(ctx)
	}

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- w.body.Execute(ctx)
	}()

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case err := <-resultCh:
		return err
	case <-timer.C:
		return kperrors.Timeout(w.desc)
	}
}

func (w *Wrapped) normalize(err error) error {
	if err == nil {
		w.Infof("ok")
		return nil
	}
	ke := kperrors.Normalize(err)
	if ke.Kind == kperrors.Recoverable && w.warnOnFailure {
		w.Warnf("%s (suppressed by warn_on_failure)", ke.Error())
		return nil
	}
	w.Errorf("%s", ke.Error())
	return ke
}
