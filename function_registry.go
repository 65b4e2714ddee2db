package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrReservedFunction is returned when a function name collides with a
// condition binding (value, path, revision, now, args, metadata, call).
var ErrReservedFunction = errors.New("store: function name is reserved")

// reservedNames are bound in every rule context and cannot be shadowed.
var reservedNames = map[string]struct{}{
	"now":      {},
	"args":     {},
	"metadata": {},
	"value":    {},
	"path":     {},
	"revision": {},
	"call":     {},
}

// Function is a helper callable from condition expressions.
type Function func(args ...any) (any, error)

type registeredFunction struct {
	name string
	fn   Function
}

// FunctionRegistry holds helpers keyed case-insensitively. Each helper is
// exposed under the spelling it was registered with, and through
// call(name, ...) under any spelling.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]registeredFunction
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]registeredFunction),
	}
}

// Register stores fn under name. The name must be an identifier, must not be
// reserved and must not already be taken in any letter case.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("store: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("store: function name must not be empty")
	}
	if !validIdentifier(name) {
		return fmt.Errorf("store: function name %q is not an identifier", name)
	}
	key := strings.ToLower(name)
	if _, reserved := reservedNames[key]; reserved {
		return fmt.Errorf("%w: %q", ErrReservedFunction, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]registeredFunction)
	}
	if existing, exists := r.functions[key]; exists {
		return fmt.Errorf("store: function %q already registered as %q", name, existing.name)
	}
	r.functions[key] = registeredFunction{name: name, fn: fn}
	return nil
}

// Has reports whether a helper is registered under name in any letter case.
func (r *FunctionRegistry) Has(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.functions[strings.ToLower(name)]
	return ok
}

// Clone returns a detached copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]registeredFunction, len(r.functions)),
	}
	for key, entry := range r.functions {
		clone.functions[key] = entry
	}
	return clone
}

// Call runs the helper registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("store: function registry is nil")
	}
	r.mu.RLock()
	entry, ok := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: function %q not registered", name)
	}
	return entry.fn(args...)
}

// Names returns the registered spellings in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for _, entry := range r.functions {
		names = append(names, entry.name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry exposes the helpers in registry to the default
// evaluator. The registry is cloned, so later registrations are not seen.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *storeConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the default evaluator.
// Names Register would reject are skipped.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *storeConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
