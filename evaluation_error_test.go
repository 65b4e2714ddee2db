package store

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError("expr", "value && missing", "name.first", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" {
		t.Fatalf("expected engine expr, got %q", evalErr.Engine)
	}
	if evalErr.Expr != "value && missing" {
		t.Fatalf("expected expression metadata, got %q", evalErr.Expr)
	}
	if evalErr.Path != "name.first" {
		t.Fatalf("expected path metadata, got %q", evalErr.Path)
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	if !strings.Contains(err.Error(), `expr="value && missing"`) {
		t.Fatalf("expected expression in message, got %q", err.Error())
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: "expr",
		Err:    base,
	}

	err := wrapEvaluationError("cel", "rule", "a", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" {
		t.Fatalf("expression should be filled, got %q", existing.Expr)
	}
	if existing.Path != "a" {
		t.Fatalf("path should be filled, got %q", existing.Path)
	}
}

func TestWrapEvaluatorErrorKeepsStorePrefix(t *testing.T) {
	if wrapEvaluatorError("expr", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	prefixed := errors.New("store: already described")
	if got := wrapEvaluatorError("expr", prefixed); got != prefixed {
		t.Fatalf("expected prefixed error returned as-is, got %v", got)
	}
	got := wrapEvaluatorError("cel", errors.New("bad"))
	if got.Error() != "store: cel evaluator: bad" {
		t.Fatalf("unexpected wrapped message %q", got.Error())
	}
}

func TestPathAndMutatorErrorsUnwrap(t *testing.T) {
	err := pathError("set", Path{"name", "first"}, ErrNotObject)
	if !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
	if err.Error() != `store: set "name.first": store: node is not an object` {
		t.Fatalf("unexpected message %q", err.Error())
	}

	mutErr := &MutatorError{Revision: 3, Err: err}
	var pathErr *PathError
	if !errors.As(mutErr, &pathErr) || pathErr.Op != "set" {
		t.Fatalf("expected PathError through MutatorError, got %v", mutErr)
	}

	if !errors.Is(panicError(ErrMutatorPanic, "boom"), ErrMutatorPanic) {
		t.Fatalf("expected panic sentinel")
	}
	cause := errors.New("cause")
	wrapped := panicError(ErrSubscriberPanic, cause)
	if !errors.Is(wrapped, cause) || !errors.Is(wrapped, ErrSubscriberPanic) {
		t.Fatalf("expected both sentinel and cause, got %v", wrapped)
	}
}
