package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNilMutator is returned by Update when no mutator is supplied.
	ErrNilMutator = errors.New("store: mutator is required")
	// ErrMutatorPanic marks a mutator that panicked instead of returning.
	ErrMutatorPanic = errors.New("store: mutator panicked")
	// ErrSubscriberPanic marks a subscriber callback that panicked.
	ErrSubscriberPanic = errors.New("store: subscriber panicked")
	// ErrNotObject indicates a write through a node that is not an object.
	ErrNotObject = errors.New("store: node is not an object")
	// ErrPathNotFound indicates a missing intermediate node.
	ErrPathNotFound = errors.New("store: path not found")
	// ErrEmptyPath indicates an operation that needs at least one segment.
	ErrEmptyPath = errors.New("store: path must not be empty")
	// ErrDraftClosed is returned when a draft is used after its update finished.
	ErrDraftClosed = errors.New("store: draft is no longer writable")
	// ErrNilCallback is returned by SubscribeWhen for a nil callback.
	ErrNilCallback = errors.New("store: callback is required")
	// ErrConditionType is returned when a subscription condition does not
	// evaluate to a bool.
	ErrConditionType = errors.New("store: condition must evaluate to a bool")
	// ErrEvaluationTimeout is returned when a script exceeds its time budget.
	ErrEvaluationTimeout = errors.New("store: evaluation timed out")
	// ErrNoEvaluator is returned by the evaluation entry points when the store
	// has no evaluator.
	ErrNoEvaluator = errors.New("store: evaluator not configured")
)

// PathError reports a draft operation that failed at a specific path.
type PathError struct {
	Op   string
	Path Path
	Err  error
}

func (e *PathError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: %s %q: %v", e.Op, e.Path.String(), e.Err)
}

func (e *PathError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func pathError(op string, path Path, err error) error {
	return &PathError{Op: op, Path: path.Clone(), Err: err}
}

// MutatorError wraps the failure of a mutator passed to Update. The store
// state is unchanged whenever a MutatorError is returned.
type MutatorError struct {
	Revision uint64
	Err      error
}

func (e *MutatorError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: update from revision %d: %v", e.Revision, e.Err)
}

func (e *MutatorError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SubscriberError reports a callback (or its condition) that failed while
// being notified. Other subscribers still run.
type SubscriberError struct {
	ID   uuid.UUID
	Path Path
	Err  error
}

func (e *SubscriberError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: subscriber %s path=%q: %v", e.ID, e.Path.String(), e.Err)
}

func (e *SubscriberError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func panicError(sentinel error, recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return fmt.Errorf("%w: %v", sentinel, recovered)
}
