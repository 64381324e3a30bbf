// Package macro implements the macro actor (C7): fetches and instantiates
// a referenced sub-document as a single child, grounded on
// actors/misc.py's Macro class.
package macro

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nextdoor/kingpin/pkg/actor"
	"github.com/nextdoor/kingpin/pkg/optschema"
	"github.com/nextdoor/kingpin/pkg/registry"
	"github.com/nextdoor/kingpin/pkg/token"
)

// DocumentLoader loads and validates a referenced script into its root
// actor node. pkg/document.Loader satisfies this; macro never imports
// pkg/document directly.
type DocumentLoader interface {
	Load(ref string, tokens token.Values) (map[string]interface{}, error)
}

// Module registers misc.Macro into a Registry.
type Module struct {
	Loader         DocumentLoader
	Inst           actor.Instrumentation
	Logger         zerolog.Logger
	DefaultTimeout time.Duration
}

func NewModule(loader DocumentLoader, inst actor.Instrumentation, logger zerolog.Logger, defaultTimeout time.Duration) Module {
	return Module{Loader: loader, Inst: inst, Logger: logger, DefaultTimeout: defaultTimeout}
}

var macroSchema = optschema.Schema{
	"macro":  {Kind: optschema.KindString, Default: optschema.Required, Doc: "Path or URL to a Kingpin script."},
	"tokens": {Kind: optschema.KindMap, Default: map[string]interface{}{}, Doc: "Tokens substituted into the referenced script."},
}

func (m Module) Register(r *registry.Registry) {
	r.Register("misc.Macro", func(node map[string]interface{}, ctx token.Values, dry bool) (actor.Actor, error) {
		return m.build(r, node, ctx, dry)
	})
}

// Docs satisfies the registry's optional Documented interface, for --explain.
func (m Module) Docs() map[string]optschema.Schema {
	return map[string]optschema.Schema{"misc.Macro": macroSchema}
}

func (m Module) build(r *registry.Registry, node map[string]interface{}, ctx token.Values, dry bool) (actor.Actor, error) {
	spec, err := actor.ParseNode(node)
	if err != nil {
		return nil, err
	}

	base, err := actor.NewBase(actor.Config{
		ActorType:   "misc.Macro",
		Spec:        spec,
		Context:     ctx,
		Schema:         macroSchema,
		DefaultDesc:    "Macro: {macro}",
		DefaultTimeout: m.DefaultTimeout,
		Dry:            dry,
		Logger:         m.Logger,
	})
	if err != nil {
		return nil, err
	}

	macroPath, _ := base.Options["macro"].(string)
	explicitTokens, _ := base.Options["tokens"].(map[string]interface{})

	// Open Question 3 (resolved): tokens pass through this actor's own
	// option substitution above (against the enclosing context), then are
	// merged over a copy of the ambient environment, with explicit keys
	// winning.
	docTokens := token.Merge(token.FromEnviron(os.Environ()), token.Values(explicitTokens))

	childNode, err := m.Loader.Load(macroPath, docTokens)
	if err != nil {
		return nil, err
	}

	// Macro isolation: the sub-document's phase-1 pass never sees the
	// enclosing group's contextual tokens (docTokens above has no trace of
	// ctx). The child's own instantiation-time ({…}) substitution, by
	// contrast, inherits ctx unchanged — a Macro is a transparent
	// indirection for phase-2 scoping, not a new context boundary.
	child, err := r.Build(childNode, ctx, dry)
	if err != nil {
		return nil, err
	}

	return actor.New(base, &macroBody{child: child}, m.Inst), nil
}

type macroBody struct {
	child actor.Actor
}

func (b *macroBody) Execute(ctx context.Context) error {
	return b.child.Run(ctx)
}
