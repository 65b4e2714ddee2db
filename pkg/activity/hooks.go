package activity

import (
	"context"
	"errors"
	"fmt"
)

// ErrHookPanic marks a hook that panicked instead of returning an error.
var ErrHookPanic = errors.New("activity: hook panicked")

// ActivityHook receives normalized events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a plain function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// HookError identifies which hook in a Hooks list failed.
type HookError struct {
	Index int
	Verb  string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("activity: hook %d failed on %s: %v", e.Index, e.Verb, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Hooks fans events out to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes event and hands it to every hook in order. Invalid events
// are dropped silently. A failing or panicking hook does not stop the others;
// failures come back joined as *HookError values. Once ctx is done the
// remaining hooks are skipped and ctx.Err() is reported.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 || !event.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	normalized := NormalizeEvent(event)

	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := notifyHook(ctx, hook, normalized); err != nil {
			errs = append(errs, &HookError{Index: i, Verb: normalized.Verb, Err: err})
		}
	}
	return errors.Join(errs...)
}

func notifyHook(ctx context.Context, hook ActivityHook, event Event) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanic, recovered)
		}
	}()
	return hook.Notify(ctx, event)
}

func cloneHooks(hooks Hooks) Hooks {
	normalized := make(Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			normalized = append(normalized, hook)
		}
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

// Clone returns the hooks with nil entries dropped, or nil when none remain.
func (h Hooks) Clone() Hooks {
	return cloneHooks(h)
}
