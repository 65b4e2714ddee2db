package store

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/goliatone/go-store/internal/hydrate"
	"github.com/goliatone/go-store/layering"
)

// Snapshot is one immutable version of the state tree. Snapshots are never
// modified after publication, so they can be shared freely across goroutines.
type Snapshot struct {
	id       uuid.UUID
	revision uint64
	root     map[string]any
}

func newSnapshot(root map[string]any, revision uint64) Snapshot {
	if root == nil {
		root = map[string]any{}
	}
	return Snapshot{id: uuid.New(), revision: revision, root: root}
}

// ID returns the unique snapshot identifier.
func (s Snapshot) ID() string {
	if s.id == uuid.Nil {
		return ""
	}
	return s.id.String()
}

// Revision counts committed updates since the store was created.
func (s Snapshot) Revision() uint64 {
	return s.revision
}

// IsZero reports whether s was never produced by a store.
func (s Snapshot) IsZero() bool {
	return s.id == uuid.Nil && s.root == nil
}

// Get returns the value at path. Objects and slices are deep copies, so the
// caller may modify them without reaching the snapshot.
func (s Snapshot) Get(path PathSpec) (any, bool) {
	return s.detached(normalize(path))
}

// Lookup resolves a dot separated path.
func (s Snapshot) Lookup(dotted string) (any, bool) {
	return s.detached(ParsePath(dotted))
}

func (s Snapshot) detached(path Path) (any, bool) {
	value, ok := lookup(s.root, path)
	if !ok {
		return nil, false
	}
	return layering.Clone(value), true
}

// Value returns a deep copy of the whole tree that the caller may modify.
func (s Snapshot) Value() map[string]any {
	out := layering.CloneTree(s.root)
	if out == nil {
		return map[string]any{}
	}
	return out
}

// Keys lists the top-level keys in sorted order.
func (s Snapshot) Keys() []string {
	return sortedKeys(s.root)
}

// FieldDescriptor describes a leaf path and the inferred Go type.
type FieldDescriptor struct {
	Path string
	Type string
}

// Fields flattens the tree into leaf descriptors sorted by path.
func (s Snapshot) Fields() []FieldDescriptor {
	fields := deriveFieldDescriptors(s.root, Path{})
	if fields == nil {
		return []FieldDescriptor{}
	}
	return fields
}

func deriveFieldDescriptors(value any, prefix Path) []FieldDescriptor {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if len(prefix) == 0 {
				return nil
			}
			return []FieldDescriptor{{Path: prefix.String(), Type: "map[string]any"}}
		}
		var fields []FieldDescriptor
		for _, key := range sortedKeys(typed) {
			fields = append(fields, deriveFieldDescriptors(typed[key], prefix.Child(key))...)
		}
		return fields
	case []any:
		elementType := "any"
		if len(typed) > 0 {
			elementType = typeName(typed[0])
		}
		return []FieldDescriptor{{Path: prefix.String(), Type: "[]" + elementType}}
	default:
		if len(prefix) == 0 {
			return nil
		}
		return []FieldDescriptor{{Path: prefix.String(), Type: typeName(typed)}}
	}
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}

// Decode hydrates the whole snapshot into T. When T (or *T) implements
// Validate() error, validation runs after decoding.
func Decode[T any](snap Snapshot) (T, error) {
	return DecodeAt[T](snap, Path{})
}

// DecodeAt hydrates the value found at path into T. Leaves decode as well as
// objects, so DecodeAt[string] reads a single field.
func DecodeAt[T any](snap Snapshot, path PathSpec) (T, error) {
	var zero T
	target := normalize(path)
	value, ok := lookup(snap.root, target)
	if !ok {
		return zero, pathError("decode", target, ErrPathNotFound)
	}
	decoder := hydrate.NewDecoder[T](hydrate.WithPostHook[T](func(_ hydrate.Source, out *T) error {
		return validateValue(*out)
	}))
	return decoder.Decode(hydrate.Source{
		SnapshotID: snap.ID(),
		Revision:   snap.Revision(),
		Path:       target.String(),
	}, value)
}

func validateValue[T any](value T) error {
	if v, ok := any(value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	if rv := reflect.ValueOf(&value); rv.Elem().Kind() != reflect.Pointer {
		if v, ok := rv.Interface().(interface{ Validate() error }); ok {
			return v.Validate()
		}
	}
	return nil
}
