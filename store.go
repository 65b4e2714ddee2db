// Package store is an observable in-process state container.
//
// A Store holds an immutable Snapshot of a map[string]any tree. Update hands a
// copy-on-write Draft to a Mutator, diffs the result against the previous
// snapshot and synchronously notifies every subscriber whose path is an
// ancestor or descendant of a changed path.
package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-store/layering"
	"github.com/goliatone/go-store/pkg/activity"
)

// Store owns the current snapshot and the subscription registry.
type Store struct {
	mu        sync.Mutex
	current   atomic.Pointer[Snapshot]
	registry  registry
	cfg       storeConfig
	evaluator Evaluator
	emitter   *activity.Emitter
}

// New creates a store holding a deep copy of initial as revision 0. A nil
// initial value starts from an empty object.
func New(initial map[string]any, opts ...Option) *Store {
	cfg := applyOptions(opts)

	root := layering.CloneTree(initial)
	if root == nil {
		root = map[string]any{}
	}
	if len(cfg.defaults) > 0 {
		layers := append([]map[string]any{root}, cfg.defaults...)
		root = layering.MergeLayers(layers...)
	}

	s := &Store{
		cfg:       cfg,
		evaluator: resolveEvaluator(cfg),
		emitter:   activity.NewEmitter(cfg.activityHooks, cfg.activityConfig()),
	}
	snap := newSnapshot(root, 0)
	s.current.Store(&snap)
	return s
}

// Current returns the latest committed snapshot.
func (s *Store) Current() Snapshot {
	if snap := s.current.Load(); snap != nil {
		return *snap
	}
	return Snapshot{}
}

// Update applies fn to a draft of the current state.
//
// When fn fails (by returning an error or panicking) the state is left
// untouched, nobody is notified and a *MutatorError is returned. When the
// draft ends up identical to the current state the current snapshot is
// returned and nobody is notified. Otherwise the new snapshot is committed
// and every affected subscriber runs before Update returns.
//
// Subscriber failures never roll the update back. They are collected as
// *SubscriberError values and returned, joined, next to the new snapshot.
func (s *Store) Update(fn Mutator) (Snapshot, error) {
	if fn == nil {
		return s.Current(), ErrNilMutator
	}
	start := time.Now()

	s.mu.Lock()
	prev := s.Current()
	draft := newDraft(prev.root)
	err := runMutator(fn, draft)
	draft.close()
	if err != nil {
		s.mu.Unlock()
		err = &MutatorError{Revision: prev.revision, Err: err}
		s.cfg.logger.LogUpdate(UpdateLogEvent{
			Revision:   prev.revision,
			SnapshotID: prev.ID(),
			Duration:   time.Since(start),
			Err:        err,
		})
		return prev, err
	}

	changes := diffDraft(draft)
	if changes.Empty() {
		s.mu.Unlock()
		s.cfg.logger.LogUpdate(UpdateLogEvent{
			Revision:   prev.revision,
			SnapshotID: prev.ID(),
			Duration:   time.Since(start),
		})
		return prev, nil
	}

	next := newSnapshot(draft.root, prev.revision+1)
	s.current.Store(&next)
	s.mu.Unlock()

	notified, notifyErr := s.registry.notify(changes, next, s.checkCondition)
	paths := changes.Strings()
	s.cfg.logger.LogUpdate(UpdateLogEvent{
		Revision:    next.revision,
		SnapshotID:  next.ID(),
		Changed:     paths,
		Notified:    notified,
		Duration:    time.Since(start),
		Err:         notifyErr,
		ActivityErr: s.emitUpdated(prev, next, paths),
	})
	return next, notifyErr
}

// Subscribe registers fn for path. Key("a") and Path{"a"} match the same
// changes but are separate registrations, as are repeated calls with the
// same arguments. The returned func removes exactly this registration and
// may be called any number of times. A nil fn registers nothing.
func (s *Store) Subscribe(path PathSpec, fn Callback) Unsubscribe {
	if fn == nil {
		return func() {}
	}
	return s.register(&registration{
		id:   uuid.New(),
		path: normalize(path),
		fn:   fn,
	})
}

// SubscribeWhen is Subscribe with a condition. expr is compiled now with the
// store's evaluator and must yield a bool when evaluated against the new
// snapshot. It sees the snapshot's top-level keys plus value, path, revision,
// now, args and metadata.
func (s *Store) SubscribeWhen(path PathSpec, expr string, fn Callback) (Unsubscribe, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	if expr == "" {
		return nil, fmt.Errorf("store: condition expression must not be empty")
	}
	if s.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	rule, err := s.evaluator.Compile(expr)
	if err != nil {
		return nil, wrapEvaluationError(evaluatorEngineName(s.evaluator), expr, normalize(path).String(), err)
	}
	return s.register(&registration{
		id:        uuid.New(),
		path:      normalize(path),
		fn:        fn,
		expr:      expr,
		condition: rule,
	}), nil
}

// Subscribers returns the number of live registrations.
func (s *Store) Subscribers() int {
	return s.registry.len()
}

func (s *Store) register(reg *registration) Unsubscribe {
	s.registry.add(reg)
	s.emitSubscription(activity.BuildSubscriptionCreatedEvent, reg)

	var once sync.Once
	return func() {
		once.Do(func() {
			if s.registry.remove(reg.id) {
				s.emitSubscription(activity.BuildSubscriptionRemovedEvent, reg)
			}
		})
	}
}

// checkCondition is the notify guard for conditional registrations.
func (s *Store) checkCondition(reg *registration, value any, snap Snapshot) (bool, error) {
	ctx := RuleContext{
		Snapshot: snap.root,
		Value:    value,
		Path:     reg.path.Clone(),
		Revision: snap.revision,
	}
	result, err := s.runRule(reg.condition, reg.expr, ctx)
	if err != nil {
		return false, err
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, wrapEvaluationError(evaluatorEngineName(s.evaluator), reg.expr, reg.path.String(),
			fmt.Errorf("%w: got %T", ErrConditionType, result))
	}
	return ok, nil
}

func runMutator(fn Mutator, d *Draft) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = panicError(ErrMutatorPanic, recovered)
		}
	}()
	return fn(d)
}
