package misc

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nextdoor/kingpin/pkg/registry"
	"github.com/nextdoor/kingpin/pkg/token"
)

func newRegistry() *registry.Registry {
	return registry.New(NewModule(nil, zerolog.Nop(), 3600*time.Second))
}

func TestNoteLogsMessage(t *testing.T) {
	r := newRegistry()
	node := map[string]interface{}{
		"actor":   "misc.Note",
		"options": map[string]interface{}{"message": "hi there"},
	}
	a, err := r.Build(node, token.Values{}, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestSleepDryModeDoesNotBlock(t *testing.T) {
	r := newRegistry()
	node := map[string]interface{}{
		"actor":   "misc.Sleep",
		"options": map[string]interface{}{"sleep": 5},
	}
	a, err := r.Build(node, token.Values{}, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	start := time.Now()
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Fatal("dry-mode sleep should not actually block")
	}
	if a.Desc() != "Sleep 5s" {
		t.Fatalf("got desc %q", a.Desc())
	}
}

func TestSleepRealModeBlocksForDuration(t *testing.T) {
	r := newRegistry()
	node := map[string]interface{}{
		"actor":   "misc.Sleep",
		"options": map[string]interface{}{"sleep": "0.02"},
	}
	a, err := r.Build(node, token.Values{}, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	start := time.Now()
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("real-mode sleep returned too quickly")
	}
}

func TestSleepConditionFalseSkips(t *testing.T) {
	r := newRegistry()
	node := map[string]interface{}{
		"actor":     "misc.Sleep",
		"condition": "false",
		"options":   map[string]interface{}{"sleep": 5},
	}
	a, err := r.Build(node, token.Values{}, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	start := time.Now()
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Fatal("condition-false sleep should have been skipped")
	}
}
