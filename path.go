package store

import (
	"slices"
	"strings"
)

// PathSpec is anything that can name a location in the state tree.
// Key and Path are the two accepted forms.
type PathSpec interface {
	Segments() []string
}

// Key is a single-segment path. It is never split on dots, so Key("a.b")
// addresses the top-level field named "a.b".
type Key string

// Segments implements PathSpec.
func (k Key) Segments() []string {
	return []string{string(k)}
}

// Path is an ordered key sequence from the root to a (possibly nested) field.
// The empty Path addresses the root.
type Path []string

// Segments implements PathSpec.
func (p Path) Segments() []string {
	return p
}

// ParsePath splits a dot separated string into a Path. Empty segments are
// dropped.
func ParsePath(dotted string) Path {
	if dotted == "" {
		return Path{}
	}
	parts := strings.Split(dotted, ".")
	out := make(Path, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// String renders the path with dot separators.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Clone returns a copy that does not share the backing array.
func (p Path) Clone() Path {
	if p == nil {
		return Path{}
	}
	return slices.Clone(p)
}

// Equal reports element-wise equality.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p, other)
}

// HasPrefix reports whether prefix is an ancestor of, or equal to, p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return slices.Equal(p[:len(prefix)], prefix)
}

// Related reports whether one path is a prefix of the other.
func (p Path) Related(other Path) bool {
	return p.HasPrefix(other) || other.HasPrefix(p)
}

// Child returns a new path with key appended.
func (p Path) Child(key string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, key)
}

// normalize converts any PathSpec into a detached Path.
func normalize(spec PathSpec) Path {
	if spec == nil {
		return Path{}
	}
	return Path(spec.Segments()).Clone()
}
