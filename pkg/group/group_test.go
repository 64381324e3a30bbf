package group

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nextdoor/kingpin/pkg/actor"
	"github.com/nextdoor/kingpin/pkg/kperrors"
	"github.com/nextdoor/kingpin/pkg/registry"
	"github.com/nextdoor/kingpin/pkg/token"
)

// recordingActor counts concurrent in-flight executions for the bounded
// concurrency test, and can be told to fail.
type recordingActor struct {
	desc       string
	delay      time.Duration
	err        error
	inFlight   *atomic.Int32
	maxSeen    *atomic.Int32
}

func (r *recordingActor) Desc() string { return r.desc }
func (r *recordingActor) Run(ctx context.Context) error {
	if r.inFlight != nil {
		cur := r.inFlight.Add(1)
		defer r.inFlight.Add(-1)
		for {
			max := r.maxSeen.Load()
			if cur <= max || r.maxSeen.CompareAndSwap(max, cur) {
				break
			}
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.err
}

func registerStub(r *registry.Registry, id string, a actor.Actor) {
	r.Register(id, func(map[string]interface{}, token.Values, bool) (actor.Actor, error) {
		return a, nil
	})
}

func TestSyncRunsInOrderAndShortCircuitsOnFatal(t *testing.T) {
	var order []string
	mk := func(name string, err error) actor.Actor {
		return &recordingOrderActor{name: name, err: err, order: &order}
	}

	reg := registry.New()
	registerStub(reg, "step.One", mk("one", nil))
	registerStub(reg, "step.Two", mk("two", kperrors.Fatalf(kperrors.CodeInvalidOptions, "boom")))
	registerStub(reg, "step.Three", mk("three", nil))

	mod := NewModule(nil, nil, zerolog.Nop())
	mod.Register(reg)

	node := map[string]interface{}{
		"actor": "group.Sync",
		"options": map[string]interface{}{
			"acts": []interface{}{
				map[string]interface{}{"actor": "step.One"},
				map[string]interface{}{"actor": "step.Two"},
				map[string]interface{}{"actor": "step.Three"},
			},
		},
	}

	a, err := reg.Build(node, token.Values{}, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	runErr := a.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected fatal failure to propagate")
	}
	if len(order) != 2 || order[0] != "one" || order[1] != "two" {
		t.Fatalf("expected short-circuit after step two, got %v", order)
	}
}

type recordingOrderActor struct {
	name  string
	err   error
	order *[]string
}

func (r *recordingOrderActor) Desc() string { return r.name }
func (r *recordingOrderActor) Run(ctx context.Context) error {
	*r.order = append(*r.order, r.name)
	return r.err
}

func TestAsyncBoundedConcurrency(t *testing.T) {
	var inFlight, maxSeen atomic.Int32

	reg := registry.New()
	for _, id := range []string{"step.A", "step.B", "step.C", "step.D"} {
		registerStub(reg, id, &recordingActor{
			desc: id, delay: 20 * time.Millisecond, inFlight: &inFlight, maxSeen: &maxSeen,
		})
	}

	mod := NewModule(nil, nil, zerolog.Nop())
	mod.Register(reg)

	node := map[string]interface{}{
		"actor": "group.Async",
		"options": map[string]interface{}{
			"concurrency": 2,
			"acts": []interface{}{
				map[string]interface{}{"actor": "step.A"},
				map[string]interface{}{"actor": "step.B"},
				map[string]interface{}{"actor": "step.C"},
				map[string]interface{}{"actor": "step.D"},
			},
		},
	}

	a, err := reg.Build(node, token.Values{}, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := maxSeen.Load(); got > 2 {
		t.Fatalf("expected at most 2 in flight, saw %d", got)
	}
}

func TestContextFanOutProducesNTimesM(t *testing.T) {
	var order []string
	reg := registry.New()
	registerStub(reg, "step.Note", &recordingOrderActor{name: "note", order: &order})

	mod := NewModule(nil, nil, zerolog.Nop())
	mod.Register(reg)

	node := map[string]interface{}{
		"actor": "group.Sync",
		"options": map[string]interface{}{
			"contexts": []interface{}{
				map[string]interface{}{"R": "x"},
				map[string]interface{}{"R": "y"},
			},
			"acts": []interface{}{
				map[string]interface{}{"actor": "step.Note"},
			},
		},
	}

	a, err := reg.Build(node, token.Values{}, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 {
		t.Fatalf("expected 2 children from 2 contexts x 1 act, got %d", len(order))
	}
}
