package actor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nextdoor/kingpin/pkg/kperrors"
	"github.com/nextdoor/kingpin/pkg/optschema"
	"github.com/nextdoor/kingpin/pkg/token"
)

type fakeBody struct {
	delay time.Duration
	err   error
}

func (f *fakeBody) Execute(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func testSchema() optschema.Schema {
	return optschema.Schema{
		"sleep": {Kind: optschema.KindInt, Default: 0},
	}
}

func newTestBase(t *testing.T, cfg Config) *Base {
	t.Helper()
	if cfg.Schema == nil {
		cfg.Schema = testSchema()
	}
	cfg.Logger = zerolog.Nop()
	b, err := NewBase(cfg)
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}
	return b
}

func TestRunSucceeds(t *testing.T) {
	b := newTestBase(t, Config{
		ActorType: "misc.Note",
		Spec:      Spec{Desc: "say hi", Options: map[string]interface{}{}},
	})
	w := New(b, &fakeBody{}, nil)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunConditionFalseSkipsExecute(t *testing.T) {
	b := newTestBase(t, Config{
		ActorType: "misc.Note",
		Spec:      Spec{Desc: "skip me", Options: map[string]interface{}{}, Condition: "false"},
	})
	w := New(b, &fakeBody{err: errors.New("should never run")}, nil)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunFatalPropagates(t *testing.T) {
	b := newTestBase(t, Config{
		ActorType: "misc.Note",
		Spec:      Spec{Desc: "fails", Options: map[string]interface{}{}},
	})
	w := New(b, &fakeBody{err: kperrors.Fatalf(kperrors.CodeInvalidOptions, "boom")}, nil)
	err := w.Run(context.Background())
	if !kperrors.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestRunRecoverableSuppressedByWarnOnFailure(t *testing.T) {
	b := newTestBase(t, Config{
		ActorType:     "misc.Note",
		Spec:          Spec{Desc: "warns", Options: map[string]interface{}{}, WarnOnFailure: true},
	})
	w := New(b, &fakeBody{err: kperrors.Recoverablef(kperrors.CodeBadRequest, "nope")}, nil)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("expected suppressed error, got %v", err)
	}
}

func TestRunTimeoutShieldsBody(t *testing.T) {
	b := newTestBase(t, Config{
		ActorType:      "misc.Sleep",
		Spec:           Spec{Desc: "slow", Options: map[string]interface{}{}},
		DefaultTimeout: 10 * time.Millisecond,
	})
	w := New(b, &fakeBody{delay: 50 * time.Millisecond}, nil)
	start := time.Now()
	err := w.Run(context.Background())
	elapsed := time.Since(start)
	if !kperrors.IsRecoverable(err) {
		t.Fatalf("expected recoverable timeout error, got %v", err)
	}
	if elapsed > 30*time.Millisecond {
		t.Fatalf("Run did not return promptly on timeout: took %v", elapsed)
	}
}

func TestDefaultDescFormatting(t *testing.T) {
	b := newTestBase(t, Config{
		ActorType:   "misc.Sleep",
		Spec:        Spec{Options: map[string]interface{}{"sleep": 5}},
		DefaultDesc: "Sleep {sleep}s",
	})
	if b.Desc() != "Sleep 5s" {
		t.Fatalf("got desc %q", b.Desc())
	}
}

func TestMissingContextIsFatal(t *testing.T) {
	_, err := NewBase(Config{
		ActorType: "misc.Note",
		Spec:      Spec{Desc: "hello {name}", Options: map[string]interface{}{}},
		Schema:    testSchema(),
		Logger:    zerolog.Nop(),
	})
	if !kperrors.IsFatal(err) {
		t.Fatalf("expected fatal missing-context error, got %v", err)
	}
}

func TestContextSubstitutionResolvesDesc(t *testing.T) {
	b := newTestBase(t, Config{
		ActorType: "misc.Note",
		Spec:      Spec{Desc: "hello {name}", Options: map[string]interface{}{}},
		Context:   token.Values{"name": "world"},
	})
	if b.Desc() != "hello world" {
		t.Fatalf("got desc %q", b.Desc())
	}
}
