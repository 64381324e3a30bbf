// Package registry implements the actor registry (C4): a compile-time,
// process-start map from identifier string to constructor, replacing the
// dynamic class-path lookup the original implementation performs.
package registry

import (
	"sync"

	"github.com/nextdoor/kingpin/pkg/actor"
	"github.com/nextdoor/kingpin/pkg/kperrors"
	"github.com/nextdoor/kingpin/pkg/optschema"
	"github.com/nextdoor/kingpin/pkg/token"
)

// Documented is the optional interface a Module implements to expose its
// actors' option schemas for the CLI's --explain flag. Not every Module
// needs to: composite actors (group, macro) document themselves the same
// way leaf actors do, through their own package-level schema value.
type Documented interface {
	Docs() map[string]optschema.Schema
}

// Constructor builds one actor.Actor from its raw spec node, the
// instantiation-time context it was reached under, and the dry/real mode
// the whole tree is being built in. Composite constructors (group, macro)
// close over the owning *Registry to resolve and build their own children
// recursively, fulfilling the fail-fast "all construction happens upfront"
// requirement without any import cycle back into this package.
type Constructor func(node map[string]interface{}, ctx token.Values, dry bool) (actor.Actor, error)

// namespaces is the fixed, ordered list of prefixes tried when an
// identifier is not already fully qualified, mirroring
// get_actor_class's ['kingpin.actors.', '', 'actors.'] search order,
// adapted to this registry's own built-in namespaces.
var namespaces = []string{"", "misc.", "group.", "macro.", "script.", "file."}

// Registry resolves actor identifier strings to constructors. Population
// happens once at process start via Module.Register; lookups thereafter
// are read-only and safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]Constructor
	docs  map[string]optschema.Schema
}

// Module registers one or more actor constructors into a Registry at
// process start, replacing runtime class introspection with an explicit,
// compile-time registration table.
type Module interface {
	Register(r *Registry)
}

// New builds a Registry populated by the given modules, in order.
func New(modules ...Module) *Registry {
	r := &Registry{byKey: make(map[string]Constructor), docs: make(map[string]optschema.Schema)}
	for _, m := range modules {
		m.Register(r)
		if d, ok := m.(Documented); ok {
			for id, schema := range d.Docs() {
				r.docs[id] = schema
			}
		}
	}
	return r
}

// Explain returns the declared option schema for a registered actor
// identifier, for the CLI's --explain flag. The second return reports
// whether that actor's Module documented itself.
func (r *Registry) Explain(id string) (optschema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.docs[id]
	return s, ok
}

// Register adds a constructor under the given fully-qualified identifier.
// Re-registering the same identifier is idempotent: the later call wins,
// matching the source's "registration is idempotent" requirement.
func (r *Registry) Register(id string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[id] = ctor
}

// Resolve looks up id, trying it verbatim and then each built-in
// namespace prefix in fixed order. The first match wins; exhaustion
// raises a Fatal InvalidActor failure.
func (r *Registry) Resolve(id string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ctor, ok := r.byKey[id]; ok {
		return ctor, nil
	}
	for _, ns := range namespaces {
		if ctor, ok := r.byKey[ns+id]; ok {
			return ctor, nil
		}
	}
	return nil, kperrors.Fatalf(kperrors.CodeInvalidActor, "unknown actor %q", id)
}

// Build normalizes a raw document node (a single actor mapping, or a bare
// array shorthand for an implicit group.Sync), resolves its actor
// identifier, and constructs it. This is the one entry point pkg/group,
// pkg/macro, and the runner use to build a child node into an actor.Actor.
func (r *Registry) Build(node interface{}, ctx token.Values, dry bool) (actor.Actor, error) {
	m, err := normalizeNode(node)
	if err != nil {
		return nil, err
	}
	spec, err := actor.ParseNode(m)
	if err != nil {
		return nil, err
	}
	ctor, err := r.Resolve(spec.Actor)
	if err != nil {
		return nil, err
	}
	return ctor(m, ctx, dry)
}

func normalizeNode(node interface{}) (map[string]interface{}, error) {
	switch v := node.(type) {
	case map[string]interface{}:
		return v, nil
	case []interface{}:
		return actor.ArrayToSyncGroup(v), nil
	default:
		return nil, kperrors.Fatalf(kperrors.CodeInvalidActor, "actor node must be a mapping or array, got %T", node)
	}
}
