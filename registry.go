package store

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Callback receives the value found at the subscribed path in the new
// snapshot, or nil when the path no longer resolves. Objects and slices are
// copies owned by the callback.
type Callback func(value any)

// Unsubscribe removes one registration. Calling it more than once is a no-op.
type Unsubscribe func()

type registration struct {
	id        uuid.UUID
	path      Path
	fn        Callback
	expr      string
	condition CompiledRule
}

// registry keeps registrations in subscription order. Each registration has
// its own identity, so duplicate (path, callback) pairs stay independent.
type registry struct {
	mu      sync.RWMutex
	entries []*registration
}

func (r *registry) add(reg *registration) {
	r.mu.Lock()
	r.entries = append(r.entries, reg)
	r.mu.Unlock()
}

func (r *registry) remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, reg := range r.entries {
		if reg.id != id {
			continue
		}
		r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
		return true
	}
	return false
}

func (r *registry) live() []*registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.entries) == 0 {
		return nil
	}
	out := make([]*registration, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// guardFunc decides whether a matching registration fires.
type guardFunc func(reg *registration, value any, snap Snapshot) (bool, error)

// notify invokes every registration affected by changes exactly once, in
// registration order. It works over a copy of the registrations, so
// unsubscribing during dispatch only affects later updates. Failures are
// isolated: the remaining callbacks still run and the failures are joined.
func (r *registry) notify(changes *Changes, snap Snapshot, guard guardFunc) (int, error) {
	if changes.Empty() {
		return 0, nil
	}
	var (
		notified int
		errs     []error
	)
	for _, reg := range r.live() {
		if !changes.Affects(reg.path) {
			continue
		}
		// Each registration gets its own copy.
		value, _ := snap.Get(reg.path)
		if reg.condition != nil && guard != nil {
			ok, err := guard(reg, value, snap)
			if err != nil {
				errs = append(errs, &SubscriberError{ID: reg.id, Path: reg.path.Clone(), Err: err})
				continue
			}
			if !ok {
				continue
			}
		}
		if err := invoke(reg.fn, value); err != nil {
			errs = append(errs, &SubscriberError{ID: reg.id, Path: reg.path.Clone(), Err: err})
		}
		notified++
	}
	return notified, errors.Join(errs...)
}

func invoke(fn Callback, value any) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = panicError(ErrSubscriberPanic, recovered)
		}
	}()
	fn(value)
	return nil
}
