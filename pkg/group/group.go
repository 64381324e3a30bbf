// Package group implements the group actors (C6): synchronous,
// asynchronous, and bounded-concurrency composition with contextual
// fan-out, grounded on actors/group.py's BaseGroupActor/Sync/Async and
// adapted from the bounded-fan-out pattern in the teacher's scheduler.
package group

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nextdoor/kingpin/pkg/actor"
	"github.com/nextdoor/kingpin/pkg/kperrors"
	"github.com/nextdoor/kingpin/pkg/optschema"
	"github.com/nextdoor/kingpin/pkg/registry"
	"github.com/nextdoor/kingpin/pkg/token"
)

// ContextsLoader resolves a "contexts" file reference into its list of
// context mappings. The referenced file is itself subject to phase-1
// (document-time) substitution before parsing, which is why this is an
// interface onto the document loader rather than a plain fetch — pkg/group
// never imports pkg/document directly.
type ContextsLoader interface {
	LoadContexts(ref string, tokens token.Values) ([]map[string]interface{}, error)
}

// Module registers group.Sync and group.Async into a Registry.
type Module struct {
	Loader ContextsLoader
	Inst   actor.Instrumentation
	Logger zerolog.Logger
}

// NewModule builds a Module with an explicit logger; loader may be nil if
// no script in the deployment ever references a contexts file.
func NewModule(loader ContextsLoader, inst actor.Instrumentation, logger zerolog.Logger) Module {
	return Module{Loader: loader, Inst: inst, Logger: logger}
}

var groupSchema = optschema.Schema{
	"acts":        {Kind: optschema.KindList, Default: optschema.Required, Doc: "Ordered list of child actor definitions."},
	"contexts":    {Kind: optschema.KindAny, Default: nil, Doc: "Inline list of context mappings, or a reference to a file containing one."},
	"concurrency": {Kind: optschema.KindInt, Default: 0, Doc: "Async only: max in-flight children. 0 = unbounded."},
}

const kindSync = "sync"
const kindAsync = "async"

func (m Module) Register(r *registry.Registry) {
	r.Register("group.Sync", func(node map[string]interface{}, ctx token.Values, dry bool) (actor.Actor, error) {
		return m.build(r, kindSync, node, ctx, dry)
	})
	r.Register("group.Async", func(node map[string]interface{}, ctx token.Values, dry bool) (actor.Actor, error) {
		return m.build(r, kindAsync, node, ctx, dry)
	})
}

// Docs satisfies the registry's optional Documented interface, for --explain.
func (m Module) Docs() map[string]optschema.Schema {
	return map[string]optschema.Schema{
		"group.Sync":  groupSchema,
		"group.Async": groupSchema,
	}
}

func (m Module) build(r *registry.Registry, kind string, node map[string]interface{}, ctx token.Values, dry bool) (actor.Actor, error) {
	spec, err := actor.ParseNode(node)
	if err != nil {
		return nil, err
	}

	rawActs, _ := spec.Options["acts"].([]interface{})

	base, err := actor.NewBase(actor.Config{
		ActorType:              "group." + kind,
		Spec:                   spec,
		Context:                ctx,
		SkipOptionSubstitution: true,
		Schema:                 groupSchema,
		DefaultDesc:            defaultDesc(kind, len(rawActs)),
		Dry:                    dry,
		Logger:                 m.Logger,
	})
	if err != nil {
		return nil, err
	}

	acts, _ := base.Options["acts"].([]interface{})
	concurrency, _ := base.Options["concurrency"].(int)

	blocks, err := m.resolveContexts(base.Options["contexts"], ctx)
	if err != nil {
		return nil, err
	}

	children, err := buildChildren(r, acts, blocks, ctx, dry)
	if err != nil {
		return nil, err
	}

	var body actor.Body
	if kind == kindAsync {
		body = &asyncBody{base: base, children: children, concurrency: concurrency}
	} else {
		body = &syncBody{base: base, children: children}
	}
	return actor.New(base, body, m.Inst), nil
}

func defaultDesc(kind string, n int) string {
	switch kind {
	case kindAsync:
		return fmt.Sprintf("Async group of %d action(s)", n)
	default:
		return fmt.Sprintf("Sync group of %d action(s)", n)
	}
}

// resolveContexts normalizes the raw "contexts" option into the ordered
// list of context blocks to fan out over, per spec.md §4.6: absent or a
// single element yields one block; a file reference is loaded (with its
// own phase-1 pass) and then treated the same way.
func (m Module) resolveContexts(raw interface{}, inherited token.Values) ([]map[string]interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return []map[string]interface{}{{}}, nil
	case []interface{}:
		return contextsFromList(v)
	case string:
		if m.Loader == nil {
			return nil, kperrors.Fatalf(kperrors.CodeInvalidOptions,
				"contexts file reference %q but no contexts loader is configured", v)
		}
		loaded, err := m.Loader.LoadContexts(v, inherited)
		if err != nil {
			return nil, err
		}
		if len(loaded) == 0 {
			return []map[string]interface{}{{}}, nil
		}
		return loaded, nil
	default:
		return nil, kperrors.Fatalf(kperrors.CodeInvalidOptions, "contexts must be a list or a file reference, got %T", v)
	}
}

func contextsFromList(items []interface{}) ([]map[string]interface{}, error) {
	if len(items) == 0 {
		return []map[string]interface{}{{}}, nil
	}
	blocks := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, kperrors.Fatalf(kperrors.CodeInvalidOptions, "contexts[%d] must be a mapping, got %T", i, item)
		}
		blocks = append(blocks, m)
	}
	return blocks, nil
}

// buildChildren performs the N·M cartesian expansion: for each context
// block in order, every act is instantiated once with that block merged
// over the inherited context (block values win). All instantiation happens
// here, synchronously, so any child construction error aborts the whole
// build before a single actor executes.
func buildChildren(r *registry.Registry, acts []interface{}, blocks []map[string]interface{}, inherited token.Values, dry bool) ([]actor.Actor, error) {
	children := make([]actor.Actor, 0, len(acts)*len(blocks))
	for _, block := range blocks {
		childCtx := token.Merge(inherited, token.Values(block))
		for _, act := range acts {
			child, err := r.Build(act, childCtx, dry)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
	}
	return children, nil
}

// syncBody runs children in declaration order. In dry mode a Recoverable
// child failure is recorded and execution continues (so the operator sees
// every problem in one pass); a Fatal failure always short-circuits
// immediately, dry or real — actors/group.py's Sync._run_actions catches
// ActorException uniformly regardless of dry mode, so a construction-grade
// (Fatal) error is never swallowed just to keep rehearsing.
type syncBody struct {
	base     *actor.Base
	children []actor.Actor
}

func (s *syncBody) Execute(ctx context.Context) error {
	var recovered []error
	for _, c := range s.children {
		err := c.Run(ctx)
		if err == nil {
			continue
		}
		if s.base.Dry() && kperrors.IsRecoverable(err) {
			recovered = append(recovered, err)
			continue
		}
		return err
	}
	if agg := kperrors.Aggregate("sync group had recoverable child failures", recovered); agg != nil {
		return agg
	}
	return nil
}

// asyncBody dispatches all children concurrently, bounded by concurrency
// (0 = unbounded), and waits for every launched child regardless of
// failure. No sibling is ever cancelled because one failed.
type asyncBody struct {
	base        *actor.Base
	children    []actor.Actor
	concurrency int
}

func (a *asyncBody) Execute(ctx context.Context) error {
	n := len(a.children)
	errs := make([]error, n)

	var sem chan struct{}
	if a.concurrency > 0 {
		sem = make(chan struct{}, a.concurrency)
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i, c := range a.children {
		i, c := i, c
		if sem != nil {
			sem <- struct{}{}
		}
		go func() {
			defer wg.Done()
			if sem != nil {
				defer func() { <-sem }()
			}
			errs[i] = c.Run(ctx)
		}()
	}
	wg.Wait()

	if agg := kperrors.Aggregate("async group had child failures", errs); agg != nil {
		return agg
	}
	return nil
}
