// Package layering provides deep copy and precedence merging for state trees.
package layering

import "reflect"

// Clone returns a deep copy of value. Nested maps, slices, pointers and
// interfaces are copied so the result never aliases the input.
func Clone[T any](value T) T {
	switch typed := any(value).(type) {
	case nil:
		return value
	case map[string]any:
		return any(CloneTree(typed)).(T)
	}
	cloned := cloneValue(reflect.ValueOf(value))
	if !cloned.IsValid() {
		var zero T
		return zero
	}
	out, ok := cloned.Interface().(T)
	if !ok {
		return value
	}
	return out
}

// CloneTree deep copies a JSON-like tree. A nil tree yields nil.
func CloneTree(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	out := make(map[string]any, len(tree))
	for key, value := range tree {
		out[key] = cloneAny(value)
	}
	return out
}

func cloneAny(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case map[string]any:
		return CloneTree(typed)
	case []any:
		if typed == nil {
			return typed
		}
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = cloneAny(typed[i])
		}
		return out
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return typed
	default:
		cloned := cloneValue(reflect.ValueOf(value))
		if !cloned.IsValid() {
			return nil
		}
		return cloned.Interface()
	}
}

// MergeLayers composes trees ordered from strongest to weakest. Keys present
// in a stronger layer win; nested objects are merged recursively and missing
// keys are filled from weaker layers. The result shares nothing with inputs.
func MergeLayers[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}

	merged := cloneValue(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeValue(reflect.ValueOf(layers[i]), merged)
	}

	if !merged.IsValid() {
		return zero
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	if merged.Type() != target {
		if !merged.Type().ConvertibleTo(target) {
			return zero
		}
		merged = merged.Convert(target)
	}
	return merged.Interface().(T)
}

func mergeValue(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return cloneValue(weak)
	}

	switch strong.Kind() {
	case reflect.Pointer:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		var weakElem reflect.Value
		if weak.IsValid() && weak.Kind() == reflect.Pointer && !weak.IsNil() {
			weakElem = weak.Elem()
		}
		result := reflect.New(strong.Type().Elem())
		result.Elem().Set(mergeValue(strong.Elem(), weakElem))
		return result
	case reflect.Interface:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		var weakElem reflect.Value
		if weak.IsValid() && weak.Kind() == reflect.Interface && !weak.IsNil() {
			weakElem = weak.Elem()
		} else if weak.IsValid() && weak.Kind() != reflect.Interface {
			weakElem = weak
		}
		return mergeValue(strong.Elem(), weakElem)
	case reflect.Map:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		result := reflect.MakeMapWithSize(strong.Type(), strong.Len())
		if weak.IsValid() && weak.Kind() == reflect.Map && !weak.IsNil() && weak.Type() == strong.Type() {
			iter := weak.MapRange()
			for iter.Next() {
				result.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
			}
		}
		iter := strong.MapRange()
		for iter.Next() {
			key := iter.Key()
			existing := result.MapIndex(key)
			if existing.IsValid() && mergeable(iter.Value(), existing) {
				result.SetMapIndex(key, assignable(mergeValue(iter.Value(), existing), strong.Type().Elem()))
				continue
			}
			result.SetMapIndex(key, cloneValue(iter.Value()))
		}
		return result
	case reflect.Struct:
		result := reflect.New(strong.Type()).Elem()
		var weakStruct reflect.Value
		if weak.IsValid() && weak.Type() == strong.Type() {
			weakStruct = weak
		}
		for i := 0; i < strong.NumField(); i++ {
			field := result.Field(i)
			if !field.CanSet() {
				continue
			}
			var weakField reflect.Value
			if weakStruct.IsValid() {
				weakField = weakStruct.Field(i)
			}
			field.Set(mergeValue(strong.Field(i), weakField))
		}
		return result
	default:
		return cloneValue(strong)
	}
}

// mergeable reports whether both sides hold objects that should be merged
// key by key rather than replaced.
func mergeable(strong, weak reflect.Value) bool {
	return underlying(strong).Kind() == reflect.Map && underlying(weak).Kind() == reflect.Map
}

func underlying(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

func assignable(v reflect.Value, target reflect.Type) reflect.Value {
	if !v.IsValid() {
		return reflect.Zero(target)
	}
	if v.Type().AssignableTo(target) {
		return v
	}
	return v.Convert(target)
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem
	case reflect.Struct:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			field := clone.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(cloneValue(v.Field(i)))
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		elemType := v.Type().Elem()
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), assignable(cloneValue(iter.Value()), elemType))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		elemType := v.Type().Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(assignable(cloneValue(v.Index(i)), elemType))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		elemType := v.Type().Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(assignable(cloneValue(v.Index(i)), elemType))
		}
		return clone
	default:
		if !v.CanInterface() {
			return reflect.Zero(v.Type())
		}
		return reflect.ValueOf(v.Interface())
	}
}
