package activity

import (
	"context"
	"strings"
	"time"
)

// DefaultChannel is applied to events that do not name a channel.
const DefaultChannel = "store"

// Config controls whether a store emits activity events and how.
type Config struct {
	Enabled bool
	// Channel replaces DefaultChannel when set.
	Channel string
	// Verbs restricts emission to the listed verbs. Empty means all.
	Verbs []string
	// Timeout bounds a single Emit call across all hooks. Zero means none.
	Timeout time.Duration
}

// Emitter applies Config to events before handing them to hooks.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	verbs   map[string]struct{}
	timeout time.Duration
}

// NewEmitter builds an emitter. It is disabled when cfg.Enabled is false or
// no usable hook is given.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	var verbs map[string]struct{}
	for _, verb := range uniqueTrimmed(cfg.Verbs) {
		if verbs == nil {
			verbs = map[string]struct{}{}
		}
		verbs[verb] = struct{}{}
	}
	normalizedHooks := cloneHooks(hooks)
	return &Emitter{
		hooks:   normalizedHooks,
		enabled: cfg.Enabled && len(normalizedHooks) > 0,
		channel: channel,
		verbs:   verbs,
		timeout: cfg.Timeout,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Channel returns the channel applied to events without one.
func (e *Emitter) Channel() string {
	if e == nil {
		return DefaultChannel
	}
	return e.channel
}

// Allows reports whether verb passes the configured verb filter.
func (e *Emitter) Allows(verb string) bool {
	if !e.Enabled() {
		return false
	}
	if len(e.verbs) == 0 {
		return true
	}
	_, ok := e.verbs[strings.TrimSpace(verb)]
	return ok
}

// Emit forwards event to the hooks unless the emitter is disabled or the
// verb is filtered out.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Allows(event.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.hooks.Notify(ctx, event)
}
