// Package misc implements the two trivial built-in leaf actors every
// sample script in the suite exercises: misc.Note (a one-line log
// statement) and misc.Sleep (a dry-aware pause), grounded on
// actors/misc.py's Note and Sleep classes.
package misc

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nextdoor/kingpin/pkg/actor"
	"github.com/nextdoor/kingpin/pkg/optschema"
	"github.com/nextdoor/kingpin/pkg/registry"
	"github.com/nextdoor/kingpin/pkg/token"
)

// Module registers misc.Note and misc.Sleep into a Registry.
type Module struct {
	Inst           actor.Instrumentation
	Logger         zerolog.Logger
	DefaultTimeout time.Duration
}

// NewModule builds a Module. defaultTimeout is the per-actor deadline
// applied to an instance whose node omits its own `timeout` (spec.md §3's
// "default 3600", sourced from kingpinconfig.Config.DefaultTimeout).
func NewModule(inst actor.Instrumentation, logger zerolog.Logger, defaultTimeout time.Duration) Module {
	return Module{Inst: inst, Logger: logger, DefaultTimeout: defaultTimeout}
}

func (m Module) Register(r *registry.Registry) {
	r.Register("misc.Note", m.buildNote)
	r.Register("misc.Sleep", m.buildSleep)
}

// Docs satisfies the registry's optional Documented interface, for --explain.
func (m Module) Docs() map[string]optschema.Schema {
	return map[string]optschema.Schema{
		"misc.Note":  noteSchema,
		"misc.Sleep": sleepSchema,
	}
}

var noteSchema = optschema.Schema{
	"message": {Kind: optschema.KindString, Default: optschema.Required, Doc: "Message to log."},
}

func (m Module) buildNote(node map[string]interface{}, ctx token.Values, dry bool) (actor.Actor, error) {
	spec, err := actor.ParseNode(node)
	if err != nil {
		return nil, err
	}
	base, err := actor.NewBase(actor.Config{
		ActorType:   "misc.Note",
		Spec:        spec,
		Context:     ctx,
		Schema:         noteSchema,
		DefaultDesc:    "Info Log",
		DefaultTimeout: m.DefaultTimeout,
		Dry:            dry,
		Logger:         m.Logger,
	})
	if err != nil {
		return nil, err
	}
	return actor.New(base, &noteBody{base: base}, m.Inst), nil
}

type noteBody struct {
	base *actor.Base
}

func (b *noteBody) Execute(ctx context.Context) error {
	b.base.Infof("%s", b.base.Options["message"])
	return nil
}

var sleepSchema = optschema.Schema{
	"sleep": {Kind: optschema.KindFloat, Default: optschema.Required, Doc: "Seconds to sleep."},
}

func (m Module) buildSleep(node map[string]interface{}, ctx token.Values, dry bool) (actor.Actor, error) {
	spec, err := actor.ParseNode(node)
	if err != nil {
		return nil, err
	}
	base, err := actor.NewBase(actor.Config{
		ActorType:   "misc.Sleep",
		Spec:        spec,
		Context:     ctx,
		Schema:         sleepSchema,
		DefaultDesc:    "Sleep {sleep}s",
		DefaultTimeout: m.DefaultTimeout,
		Dry:            dry,
		Logger:         m.Logger,
	})
	if err != nil {
		return nil, err
	}
	return actor.New(base, &sleepBody{base: base}, m.Inst), nil
}

type sleepBody struct {
	base *actor.Base
}

func (b *sleepBody) Execute(ctx context.Context) error {
	seconds, _ := b.base.Options["sleep"].(float64)
	duration := time.Duration(seconds * float64(time.Second))

	if b.base.Dry() {
		b.base.Infof("would sleep %gs", seconds)
		return nil
	}

	b.base.Debugf("sleeping for %gs", seconds)
	select {
	case <-time.After(duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
