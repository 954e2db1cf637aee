package errs

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

var (
	errA = errors.New("a")
	errB = errors.New("b")
)

func TestWrapKeepsChain(t *testing.T) {
	err := Wrapf(Wrap(errA, "inner"), "outer %d", 7)
	if !errors.Is(err, errA) {
		t.Fatalf("errors.Is() = false for %v", err)
	}
	if err.Error() != "outer 7: inner: a" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if Wrap(nil, "x") != nil || Wrapf(nil, "x") != nil {
		t.Fatalf("wrapping nil should stay nil")
	}
}

func TestWithStackCapturesOnce(t *testing.T) {
	first := WithStack(errA)
	second := WithStack(Wrap(first, "again"))

	var se *StackError
	if !errors.As(second, &se) || len(se.Stack()) == 0 {
		t.Fatalf("expected stack in chain")
	}
	if !errors.Is(second, errA) {
		t.Fatalf("errors.Is() = false")
	}
	if got := ErrorChainStrings(Wrap(errA, "ctx")); len(got) != 2 {
		t.Fatalf("ErrorChainStrings() = %v", got)
	}
}

func TestErrorChainStringsFollowsEveryCause(t *testing.T) {
	driver := errors.New("no such column: agee")
	err := Wrap(fmt.Errorf("%w: users.agee: %w", errA, driver), "evaluate rule 3")

	got := ErrorChainStrings(err)
	want := []string{
		"evaluate rule 3: a: users.agee: no such column: agee",
		"a: users.agee: no such column: agee",
		"a",
		"no such column: agee",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ErrorChainStrings() = %q, want %q", got, want)
	}

	joined := ErrorChainStrings(errors.Join(errA, Wrap(errB, "record")))
	if len(joined) != 4 || joined[1] != "a" || joined[3] != "b" {
		t.Fatalf("ErrorChainStrings(join) = %q", joined)
	}
}

func TestIsAny(t *testing.T) {
	if !IsAny(Wrap(errB, "x"), errA, errB) {
		t.Fatalf("IsAny() = false, want true")
	}
	if IsAny(errors.New("c"), errA, errB) {
		t.Fatalf("IsAny() = true, want false")
	}
	if IsAny(nil, errA) {
		t.Fatalf("IsAny(nil) = true")
	}
}
