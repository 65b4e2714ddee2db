package store

import (
	"fmt"
	"time"
)

// Evaluate runs expr against the current snapshot with the store's evaluator.
func (s *Store) Evaluate(expr string) (any, error) {
	snap := s.Current()
	return s.EvaluateWith(RuleContext{Snapshot: snap.root, Revision: snap.revision}, expr)
}

// EvaluateWith runs expr against ctx, falling back to the current snapshot
// when ctx.Snapshot is nil.
func (s *Store) EvaluateWith(ctx RuleContext, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("store: expression must not be empty")
	}
	if s.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	if ctx.Snapshot == nil {
		snap := s.Current()
		ctx.Snapshot = snap.root
		ctx.Revision = snap.revision
	}
	ctx = ctx.withDefaults()
	engine := evaluatorEngineName(s.evaluator)
	start := time.Now()
	value, err := s.evaluator.Evaluate(ctx, expr)
	err = wrapEvaluationError(engine, expr, ctx.pathLabel(), err)
	s.cfg.evalLogger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Path:     ctx.pathLabel(),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// runRule evaluates a compiled condition and logs the attempt.
func (s *Store) runRule(rule CompiledRule, expr string, ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	engine := evaluatorEngineName(s.evaluator)
	start := time.Now()
	value, err := rule.Evaluate(ctx)
	err = wrapEvaluationError(engine, expr, ctx.pathLabel(), err)
	s.cfg.evalLogger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Path:     ctx.pathLabel(),
		Duration: time.Since(start),
		Err:      err,
	})
	return value, err
}

func resolveEvaluator(cfg storeConfig) Evaluator {
	if cfg.evaluator != nil {
		return cfg.evaluator
	}
	var exprOpts []ExprEvaluatorOption
	if cfg.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cfg.programCache))
	}
	if cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
	}
	return NewExprEvaluator(exprOpts...)
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*store.exprEvaluator":
		return "expr"
	case "*store.celEvaluator":
		return "cel"
	case "*store.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
