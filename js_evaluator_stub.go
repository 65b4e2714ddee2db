//go:build !js_eval

package store

// NewJSEvaluator returns nil unless the module is built with the js_eval tag.
// A store given a nil evaluator falls back to expr.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
