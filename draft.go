package store

import (
	"reflect"
	"sort"

	"github.com/goliatone/go-store/layering"
)

// Mutator edits a draft of the current state. Returning an error (or
// panicking) discards the draft and leaves the store untouched.
type Mutator func(d *Draft) error

// Draft is the writable working copy handed to a Mutator. Reads see every
// write made so far. The first write below an object clones (shallowly) each
// object on the chain from the root, so untouched subtrees stay shared with
// the previous snapshot. A Draft must not be retained after the mutator
// returns; later writes fail with ErrDraftClosed.
type Draft struct {
	base   map[string]any
	root   map[string]any
	owned  map[uintptr]ownedNode
	copies map[uintptr]any
	closed bool
}

// ownedNode records an object the draft may write in place. origin is the
// snapshot object it was cloned from, nil for objects assigned by the mutator.
type ownedNode struct {
	node   map[string]any
	origin map[string]any
}

func newDraft(base map[string]any) *Draft {
	return &Draft{
		base:   base,
		root:   base,
		owned:  map[uintptr]ownedNode{},
		copies: map[uintptr]any{},
	}
}

// Get returns the value at path as currently seen by the draft. Objects and
// other containers come back draft-owned: writing into them edits the draft
// and never the snapshot it started from. A closed draft returns detached
// copies.
func (d *Draft) Get(path PathSpec) (any, bool) {
	target := normalize(path)
	value, ok := lookup(d.root, target)
	if !ok {
		return nil, false
	}
	if d.closed {
		return layering.Clone(value), true
	}
	if tree, isTree := value.(map[string]any); isTree {
		if tree == nil {
			return value, true
		}
		node, err := d.writable(target, "get")
		if err != nil {
			return layering.Clone(value), true
		}
		d.ownSubtree(node)
		return node, true
	}
	if _, isRef := referenceIdentity(value); !isRef {
		return value, true
	}
	parentPath, key := target[:len(target)-1], target[len(target)-1]
	parent, err := d.writable(parentPath, "get")
	if err != nil {
		return layering.Clone(value), true
	}
	owned := d.ownValue(parent[key])
	parent[key] = owned
	return owned, true
}

// Set assigns value at path. Every intermediate node must already exist and
// be an object. The value is deep copied, so later changes to it by the caller
// never reach the store. Assigning an object replaces the whole subtree.
func (d *Draft) Set(path PathSpec, value any) error {
	target := normalize(path)
	if len(target) == 0 {
		return pathError("set", target, ErrEmptyPath)
	}
	if d.closed {
		return pathError("set", target, ErrDraftClosed)
	}
	parentPath, key := target[:len(target)-1], target[len(target)-1]

	if parent, err := d.readObject(parentPath, "set"); err != nil {
		return err
	} else if existing, ok := parent[key]; ok && sameValue(existing, value) {
		return nil
	}

	parent, err := d.writable(parentPath, "set")
	if err != nil {
		return err
	}
	parent[key] = d.adopt(value)
	return nil
}

// Delete removes the field at path. Deleting a missing field is a no-op.
func (d *Draft) Delete(path PathSpec) error {
	target := normalize(path)
	if len(target) == 0 {
		return pathError("delete", target, ErrEmptyPath)
	}
	if d.closed {
		return pathError("delete", target, ErrDraftClosed)
	}
	parentPath, key := target[:len(target)-1], target[len(target)-1]

	parent, err := d.readObject(parentPath, "delete")
	if err != nil {
		return err
	}
	if _, ok := parent[key]; !ok {
		return nil
	}
	parent, err = d.writable(parentPath, "delete")
	if err != nil {
		return err
	}
	delete(parent, key)
	return nil
}

// Merge applies patch onto the object at path, key by key. Nested objects
// present on both sides are merged recursively; every other value is
// assigned with Set. Only leaves that actually differ end up changed, so
// sibling subscribers stay quiet.
func (d *Draft) Merge(path PathSpec, patch map[string]any) error {
	target := normalize(path)
	if d.closed {
		return pathError("merge", target, ErrDraftClosed)
	}
	node, err := d.readObject(target, "merge")
	if err != nil {
		return err
	}
	for _, key := range sortedKeys(patch) {
		value := patch[key]
		nested, isTree := value.(map[string]any)
		if existing, ok := node[key].(map[string]any); ok && isTree && existing != nil {
			if err := d.Merge(target.Child(key), nested); err != nil {
				return err
			}
			continue
		}
		if err := d.Set(target.Child(key), value); err != nil {
			return err
		}
	}
	return nil
}

// Object returns a handle on the object at path. The handle is resolved
// lazily: errors surface from its read and write methods.
func (d *Draft) Object(path PathSpec) *Object {
	return &Object{draft: d, path: normalize(path)}
}

// Keys lists the top-level keys of the draft in sorted order.
func (d *Draft) Keys() []string {
	return sortedKeys(d.root)
}

func (d *Draft) readObject(path Path, op string) (map[string]any, error) {
	node := d.root
	for i, key := range path {
		child, ok := node[key]
		if !ok {
			return nil, pathError(op, path[:i+1], ErrPathNotFound)
		}
		next, ok := child.(map[string]any)
		if !ok {
			return nil, pathError(op, path[:i+1], ErrNotObject)
		}
		node = next
	}
	return node, nil
}

// writable makes every object from the root to path draft-owned and returns
// the object at path.
func (d *Draft) writable(path Path, op string) (map[string]any, error) {
	if !d.isOwned(d.root) {
		d.root = d.own(d.root)
	}
	node := d.root
	for i, key := range path {
		child, ok := node[key]
		if !ok {
			return nil, pathError(op, path[:i+1], ErrPathNotFound)
		}
		next, ok := child.(map[string]any)
		if !ok {
			return nil, pathError(op, path[:i+1], ErrNotObject)
		}
		if !d.isOwned(next) {
			next = d.own(next)
			node[key] = next
		}
		node = next
	}
	return node, nil
}

func (d *Draft) own(origin map[string]any) map[string]any {
	clone := make(map[string]any, len(origin)+1)
	for key, value := range origin {
		clone[key] = value
	}
	d.owned[identity(clone)] = ownedNode{node: clone, origin: origin}
	return clone
}

// ownSubtree makes every reference value below node draft-owned.
func (d *Draft) ownSubtree(node map[string]any) {
	for key, child := range node {
		node[key] = d.ownValue(child)
	}
}

func (d *Draft) ownValue(value any) any {
	if tree, ok := value.(map[string]any); ok {
		if tree == nil {
			return value
		}
		if !d.isOwned(tree) {
			tree = d.own(tree)
		}
		d.ownSubtree(tree)
		return tree
	}
	id, ok := referenceIdentity(value)
	if !ok {
		return value
	}
	if _, copied := d.copies[id]; copied {
		return value
	}
	clone := layering.Clone(value)
	cloneID, ok := referenceIdentity(clone)
	if !ok || cloneID == id || !reflect.DeepEqual(clone, value) {
		return value
	}
	d.copies[cloneID] = value
	return clone
}

// copiedFrom reports whether after is the draft's copy of the leaf before.
func (d *Draft) copiedFrom(after, before any) bool {
	afterID, ok := referenceIdentity(after)
	if !ok {
		return false
	}
	origin, ok := d.copies[afterID]
	if !ok {
		return false
	}
	originID, _ := referenceIdentity(origin)
	beforeID, ok := referenceIdentity(before)
	return ok && originID == beforeID
}

func (d *Draft) adopt(value any) any {
	cloned := layering.Clone(value)
	if tree, ok := cloned.(map[string]any); ok {
		if tree == nil {
			tree = map[string]any{}
		}
		d.owned[identity(tree)] = ownedNode{node: tree}
		return tree
	}
	return cloned
}

func (d *Draft) isOwned(node map[string]any) bool {
	if node == nil {
		return false
	}
	_, ok := d.owned[identity(node)]
	return ok
}

// derivedFrom reports whether after is the in-place clone of before.
func (d *Draft) derivedFrom(after, before map[string]any) bool {
	if after == nil || before == nil {
		return false
	}
	entry, ok := d.owned[identity(after)]
	if !ok || entry.origin == nil {
		return false
	}
	return identity(entry.origin) == identity(before)
}

func (d *Draft) close() {
	d.closed = true
}

// Object is a path-scoped view of a Draft.
type Object struct {
	draft *Draft
	path  Path
}

// Path returns the location of the object within the state tree.
func (o *Object) Path() Path {
	return o.path.Clone()
}

// Exists reports whether the path currently resolves to an object.
func (o *Object) Exists() bool {
	_, err := o.draft.readObject(o.path, "get")
	return err == nil
}

// Get reads a field of the object with the same ownership rules as
// Draft.Get.
func (o *Object) Get(key string) (any, bool) {
	return o.draft.Get(o.path.Child(key))
}

// Set assigns a field of the object.
func (o *Object) Set(key string, value any) error {
	return o.draft.Set(o.path.Child(key), value)
}

// Delete removes a field of the object.
func (o *Object) Delete(key string) error {
	return o.draft.Delete(o.path.Child(key))
}

// Merge applies patch onto the object.
func (o *Object) Merge(patch map[string]any) error {
	return o.draft.Merge(o.path, patch)
}

// Object returns a handle on a nested object.
func (o *Object) Object(key string) *Object {
	return &Object{draft: o.draft, path: o.path.Child(key)}
}

// Keys lists the object's fields in sorted order.
func (o *Object) Keys() ([]string, error) {
	node, err := o.draft.readObject(o.path, "keys")
	if err != nil {
		return nil, err
	}
	return sortedKeys(node), nil
}

func lookup(root map[string]any, path Path) (any, bool) {
	var current any = root
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func sortedKeys(node map[string]any) []string {
	keys := make([]string, 0, len(node))
	for key := range node {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func identity(node map[string]any) uintptr {
	if node == nil {
		return 0
	}
	return uintptr(reflect.ValueOf(node).UnsafePointer())
}

// referenceIdentity returns the address behind a slice or map that a caller
// could write through. Empty slices and nil maps have none.
func referenceIdentity(value any) (uintptr, bool) {
	if value == nil {
		return 0, false
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		if v.Len() == 0 {
			return 0, false
		}
	case reflect.Map:
		if v.IsNil() {
			return 0, false
		}
	default:
		return 0, false
	}
	return uintptr(v.UnsafePointer()), true
}

// sameValue is the identity test used by the diff: objects and slices compare
// by reference, comparable scalars by value.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if am, ok := a.(map[string]any); ok {
		bm, ok := b.(map[string]any)
		return ok && identity(am) == identity(bm)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return comparableEqual(a, b)
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Map, reflect.Func:
		return va.UnsafePointer() == vb.UnsafePointer()
	default:
		return false
	}
}

// comparableEqual guards against comparable types that hold non-comparable
// dynamic values, which panic under ==.
func comparableEqual(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}
