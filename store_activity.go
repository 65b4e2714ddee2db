package store

import (
	"context"

	"github.com/goliatone/go-store/pkg/activity"
)

// WithActivityHooks attaches activity hooks to the store. Hooks are cloned
// and nil entries dropped. Emission is enabled unless WithActivityConfig
// says otherwise.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Clone()
	return func(cfg *storeConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig sets the emitter configuration: enabled flag, default
// channel, verb filter and per-emit timeout.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *storeConfig) {
		cfg.activity = config
		cfg.activitySet = true
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (s *Store) ActivityHooks() activity.Hooks {
	if s == nil {
		return nil
	}
	return s.cfg.activityHooks.Clone()
}

func (cfg storeConfig) activityConfig() activity.Config {
	if cfg.activitySet {
		return cfg.activity
	}
	return activity.Config{Enabled: len(cfg.activityHooks) > 0}
}

func (s *Store) emitUpdated(prev, next Snapshot, paths []string) error {
	if !s.emitter.Enabled() {
		return nil
	}
	return s.emitter.Emit(context.Background(), activity.BuildStateUpdatedEvent(activity.StateEventInput{
		Paths:      paths,
		Revision:   next.revision,
		SnapshotID: next.ID(),
		PreviousID: prev.ID(),
	}))
}

func (s *Store) emitSubscription(build func(activity.StateEventInput) activity.Event, reg *registration) {
	if !s.emitter.Enabled() {
		return
	}
	snap := s.Current()
	input := activity.StateEventInput{
		Revision:         snap.revision,
		SnapshotID:       snap.ID(),
		SubscriptionID:   reg.id.String(),
		SubscriptionPath: reg.path.String(),
		Condition:        reg.expr,
	}
	if err := s.emitter.Emit(context.Background(), build(input)); err != nil {
		s.cfg.logger.LogUpdate(UpdateLogEvent{
			Revision:    snap.revision,
			SnapshotID:  snap.ID(),
			ActivityErr: err,
		})
	}
}
