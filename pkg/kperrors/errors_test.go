package kperrors

import (
	"errors"
	"testing"
)

func TestIsRecoverableFatal(t *testing.T) {
	rec := Recoverablef(CodeActorTimedOut, "slow actor")
	fat := Fatalf(CodeInvalidOptions, "bad option %q", "foo")

	if !IsRecoverable(rec) || IsFatal(rec) {
		t.Errorf("expected %v to be recoverable only", rec)
	}
	if !IsFatal(fat) || IsRecoverable(fat) {
		t.Errorf("expected %v to be fatal only", fat)
	}
}

func TestNormalizePreservesKind(t *testing.T) {
	fat := Fatalf(CodeInvalidActor, "unknown actor")
	got := Normalize(fat)
	if got.Kind != Fatal {
		t.Errorf("Normalize changed kind: got %s", got.Kind)
	}

	plain := errors.New("boom")
	got = Normalize(plain)
	if got.Kind != Recoverable {
		t.Errorf("expected plain error normalized to Recoverable, got %s", got.Kind)
	}
	if !errors.Is(got, plain) {
		t.Errorf("expected wrapped cause to satisfy errors.Is")
	}
}

func TestAggregateFatalDominates(t *testing.T) {
	errs := []error{
		Recoverablef(CodeActorTimedOut, "a timed out"),
		nil,
		Fatalf(CodeInvalidOptions, "b invalid"),
	}
	agg := Aggregate("group failed", errs)
	if agg == nil || agg.Kind != Fatal {
		t.Fatalf("expected fatal aggregate, got %v", agg)
	}
}

func TestAggregateAllRecoverable(t *testing.T) {
	errs := []error{
		Recoverablef(CodeActorTimedOut, "a timed out"),
		Recoverablef(CodeBadRequest, "b bad request"),
	}
	agg := Aggregate("group failed", errs)
	if agg == nil || agg.Kind != Recoverable {
		t.Fatalf("expected recoverable aggregate, got %v", agg)
	}
}

func TestAggregateAllNilReturnsNil(t *testing.T) {
	if agg := Aggregate("x", []error{nil, nil}); agg != nil {
		t.Errorf("expected nil aggregate, got %v", agg)
	}
}

func TestErrorIsMatchesByKindAndCode(t *testing.T) {
	err := Timeout("some-actor")
	if !errors.Is(err, New(Recoverable, CodeActorTimedOut, "")) {
		t.Errorf("expected Timeout() to match Recoverable/CodeActorTimedOut sentinel")
	}
	if errors.Is(err, New(Fatal, "", "")) {
		t.Errorf("did not expect Timeout() to match Fatal sentinel")
	}
}
