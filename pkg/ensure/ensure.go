// Package ensure implements the ensure-state mixin (C8): a declarative
// get/compare/set reconciliation loop over a resource's managed properties,
// grounded on actors/base.py's EnsurableBaseActor. Unlike the source, which
// discovers _get_x/_set_x/_compare_x methods by reflection, this package
// takes an explicit, ordered dispatch table supplied by the concrete actor —
// the composition the core's own redesign notes call for.
package ensure

import (
	"context"
	"reflect"

	"github.com/nextdoor/kingpin/pkg/actor"
	"github.com/nextdoor/kingpin/pkg/kperrors"
	"github.com/nextdoor/kingpin/pkg/optschema"
)

// Undefined is the sentinel option value meaning "do not manage this
// property": present in the option map (so the schema validates it) but
// excluded from reconciliation entirely.
const Undefined = "undefined"

// StatePresent and StateAbsent are the two values the "state" option
// accepts.
const (
	StatePresent = "present"
	StateAbsent  = "absent"
)

// StateField is the "state" option every Ensure-State actor gets for free.
func StateField() optschema.Field {
	return optschema.Field{
		Kind:    optschema.KindString,
		Type:    optschema.NewEnum(StatePresent, StateAbsent),
		Default: StatePresent,
		Doc:     "Desired state: present or absent.",
	}
}

// StateOps is the resource-lifecycle half of the mixin: a way to check
// whether the resource exists at all, and to create or delete it outright.
// Get returns StatePresent or StateAbsent.
type StateOps struct {
	Get    func(ctx context.Context) (string, error)
	Create func(ctx context.Context) error
	Delete func(ctx context.Context) error
}

// Property is one managed property's get/compare/set trio, in the order the
// concrete actor declares it — the declaration order the reconcile loop
// walks. Compare defaults to reflect.DeepEqual when nil.
type Property struct {
	Name    string
	Get     func(ctx context.Context) (interface{}, error)
	Set     func(ctx context.Context, want interface{}) error
	Compare func(want, have interface{}) bool
}

func (p Property) compare(want, have interface{}) bool {
	if p.Compare != nil {
		return p.Compare(want, have)
	}
	return reflect.DeepEqual(want, have)
}

// Reconciler runs the C8 execution algorithm as an actor.Body. Build one per
// actor instance from its resolved options and embedded *actor.Base (for
// Dry() and the shared logging helpers).
type Reconciler struct {
	Base *actor.Base

	// Precache runs once before any get/set call; nil skips it.
	Precache func(ctx context.Context) error

	State      StateOps
	Properties []Property

	// Desired is the actor's resolved option map, including "state".
	Desired map[string]interface{}
}

func (r *Reconciler) Execute(ctx context.Context) error {
	if r.Precache != nil {
		if err := r.Precache(ctx); err != nil {
			return err
		}
	}

	desiredState, _ := r.Desired["state"].(string)
	haveState, err := r.State.Get(ctx)
	if err != nil {
		return err
	}

	switch desiredState {
	case StateAbsent:
		if haveState == StateAbsent {
			r.Base.Debugf("already absent")
			return nil
		}
		if r.Base.Dry() {
			r.Base.Infof("would delete")
			return nil
		}
		return r.State.Delete(ctx)

	case StatePresent:
		if haveState == StateAbsent {
			if r.Base.Dry() {
				r.Base.Infof("would create")
				return nil
			}
			if err := r.State.Create(ctx); err != nil {
				return err
			}
		}

	default:
		return kperrors.Fatalf(kperrors.CodeInvalidOptions, "state must be %q or %q, got %q", StatePresent, StateAbsent, desiredState)
	}

	for _, p := range r.Properties {
		want, present := r.Desired[p.Name]
		if !present {
			continue
		}
		if s, ok := want.(string); ok && s == Undefined {
			r.Base.Debugf("%s is undefined, not managed", p.Name)
			continue
		}

		have, err := p.Get(ctx)
		if err != nil {
			return err
		}

		if p.compare(want, have) {
			r.Base.Debugf("%s matches", p.Name)
			continue
		}

		if r.Base.Dry() {
			r.Base.Infof("%s: %v -> %v (dry run, not applying)", p.Name, have, want)
			continue
		}

		r.Base.Debugf("%s does not match, setting", p.Name)
		if err := p.Set(ctx, want); err != nil {
			return err
		}
	}

	return nil
}
