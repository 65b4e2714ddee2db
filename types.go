package store

import (
	"time"

	"github.com/goliatone/go-store/pkg/activity"
)

// RuleContext carries inputs needed when evaluating an expression.
type RuleContext struct {
	Snapshot any
	Value    any
	Path     Path
	Revision uint64
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) pathLabel() string {
	return ctx.Path.String()
}

// bindings returns the variables shared by every evaluator: the snapshot's
// top-level keys plus value, path, revision, now, args and metadata. Snapshot
// keys never shadow the reserved names.
func (ctx RuleContext) bindings() map[string]any {
	env := map[string]any{}
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		for key, value := range snapshot {
			env[key] = value
		}
	}
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	env["metadata"] = ctx.Metadata
	env["value"] = ctx.Value
	env["path"] = ctx.pathLabel()
	env["revision"] = ctx.Revision
	return env
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	evaluator     Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	logger        UpdateLogger
	evalLogger    EvaluatorLogger
	activityHooks activity.Hooks
	activity      activity.Config
	activitySet   bool
	defaults      []map[string]any
}

func applyOptions(opts []Option) storeConfig {
	cfg := storeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopLogger{}
	}
	if cfg.evalLogger == nil {
		cfg.evalLogger = noopLogger{}
	}
	return cfg
}

// WithEvaluator configures the evaluator used by SubscribeWhen and Evaluate.
// The expr-lang evaluator is used when none is configured.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *storeConfig) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers a program cache for the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *storeConfig) {
		cfg.programCache = cache
	}
}

// WithDefaults layers default trees under the initial state, strongest first.
// Keys present in the initial state always win.
func WithDefaults(layers ...map[string]any) Option {
	return func(cfg *storeConfig) {
		cfg.defaults = append(cfg.defaults, layers...)
	}
}
