package ensure

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nextdoor/kingpin/pkg/actor"
	"github.com/nextdoor/kingpin/pkg/optschema"
)

func testBase(t *testing.T, options map[string]interface{}, dry bool) *actor.Base {
	t.Helper()
	schema := optschema.Schema{
		"state":       StateField(),
		"name":        {Kind: optschema.KindString, Default: optschema.Required},
		"description": {Kind: optschema.KindString, Default: ""},
	}
	b, err := actor.NewBase(actor.Config{
		ActorType: "file.Content",
		Spec:      actor.Spec{Options: options},
		Schema:    schema,
		Dry:       dry,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}
	return b
}

func TestReconcileCreatesMissingResource(t *testing.T) {
	base := testBase(t, map[string]interface{}{"name": "thing", "description": "hi"}, false)
	var created, set bool
	have := map[string]string{}

	r := &Reconciler{
		Base: base,
		State: StateOps{
			Get: func(ctx context.Context) (string, error) {
				if created {
					return StatePresent, nil
				}
				return StateAbsent, nil
			},
			Create: func(ctx context.Context) error { created = true; return nil },
			Delete: func(ctx context.Context) error { t.Fatal("unexpected delete"); return nil },
		},
		Properties: []Property{{
			Name: "description",
			Get:  func(ctx context.Context) (interface{}, error) { return have["description"], nil },
			Set: func(ctx context.Context, want interface{}) error {
				set = true
				have["description"] = want.(string)
				return nil
			},
		}},
		Desired: base.Options,
	}

	if err := r.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !created {
		t.Fatal("expected Create to be called")
	}
	if !set {
		t.Fatal("expected Set to be called for the mismatched property")
	}
	if have["description"] != "hi" {
		t.Fatalf("got description %q", have["description"])
	}
}

func TestReconcileNoOpWhenAlreadyMatching(t *testing.T) {
	base := testBase(t, map[string]interface{}{"name": "thing", "description": "hi"}, false)

	r := &Reconciler{
		Base: base,
		State: StateOps{
			Get:    func(ctx context.Context) (string, error) { return StatePresent, nil },
			Create: func(ctx context.Context) error { t.Fatal("unexpected create"); return nil },
			Delete: func(ctx context.Context) error { t.Fatal("unexpected delete"); return nil },
		},
		Properties: []Property{{
			Name: "description",
			Get:  func(ctx context.Context) (interface{}, error) { return "hi", nil },
			Set: func(ctx context.Context, want interface{}) error {
				t.Fatal("unexpected set")
				return nil
			},
		}},
		Desired: base.Options,
	}

	if err := r.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestReconcileAbsentDeletesAndSkipsProperties(t *testing.T) {
	base := testBase(t, map[string]interface{}{"name": "thing", "state": "absent"}, false)
	var deleted bool

	r := &Reconciler{
		Base: base,
		State: StateOps{
			Get:    func(ctx context.Context) (string, error) { return StatePresent, nil },
			Create: func(ctx context.Context) error { t.Fatal("unexpected create"); return nil },
			Delete: func(ctx context.Context) error { deleted = true; return nil },
		},
		Properties: []Property{{
			Name: "description",
			Get: func(ctx context.Context) (interface{}, error) {
				t.Fatal("property get must be skipped when deleting")
				return nil, nil
			},
			Set: func(ctx context.Context, want interface{}) error {
				t.Fatal("property set must be skipped when deleting")
				return nil
			},
		}},
		Desired: base.Options,
	}

	if err := r.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !deleted {
		t.Fatal("expected Delete to be called")
	}
}

func TestReconcileDryRunSkipsSet(t *testing.T) {
	base := testBase(t, map[string]interface{}{"name": "thing", "description": "hi"}, true)

	r := &Reconciler{
		Base: base,
		State: StateOps{
			Get:    func(ctx context.Context) (string, error) { return StatePresent, nil },
			Create: func(ctx context.Context) error { t.Fatal("unexpected create"); return nil },
			Delete: func(ctx context.Context) error { t.Fatal("unexpected delete"); return nil },
		},
		Properties: []Property{{
			Name: "description",
			Get:  func(ctx context.Context) (interface{}, error) { return "stale", nil },
			Set: func(ctx context.Context, want interface{}) error {
				t.Fatal("dry run must not call Set")
				return nil
			},
		}},
		Desired: base.Options,
	}

	if err := r.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestReconcileUndefinedPropertySkipped(t *testing.T) {
	base := testBase(t, map[string]interface{}{"name": "thing", "description": Undefined}, false)

	r := &Reconciler{
		Base: base,
		State: StateOps{
			Get:    func(ctx context.Context) (string, error) { return StatePresent, nil },
			Create: func(ctx context.Context) error { t.Fatal("unexpected create"); return nil },
			Delete: func(ctx context.Context) error { t.Fatal("unexpected delete"); return nil },
		},
		Properties: []Property{{
			Name: "description",
			Get: func(ctx context.Context) (interface{}, error) {
				t.Fatal("undefined property must not be read")
				return nil, nil
			},
			Set: func(ctx context.Context, want interface{}) error {
				t.Fatal("undefined property must not be set")
				return nil
			},
		}},
		Desired: base.Options,
	}

	if err := r.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
