package store

import (
	"reflect"
	"sort"
)

// Changes is the set of paths affected by one update. The set is closed
// under prefixes: every ancestor of a changed path is itself changed, and
// every path below a wholesale-replaced node (in the old or new subtree) is
// changed too. A path is affected exactly when it is a member.
type Changes struct {
	root *changeNode
	size int
}

type changeNode struct {
	children map[string]*changeNode
	replaced bool
}

func (n *changeNode) child(key string) *changeNode {
	if n.children == nil {
		n.children = map[string]*changeNode{}
	}
	next, ok := n.children[key]
	if !ok {
		next = &changeNode{}
		n.children[key] = next
	}
	return next
}

// Empty reports whether the update changed nothing.
func (c *Changes) Empty() bool {
	return c == nil || c.root == nil
}

// Len returns the number of changed paths, excluding the root.
func (c *Changes) Len() int {
	if c == nil {
		return 0
	}
	return c.size
}

// Affects reports whether a subscriber on path must be notified. The root
// path is affected by any change.
func (c *Changes) Affects(path PathSpec) bool {
	if c.Empty() {
		return false
	}
	node := c.root
	for _, key := range normalize(path) {
		next, ok := node.children[key]
		if !ok {
			return false
		}
		node = next
	}
	return true
}

// Replaced reports whether path was wholesale replaced, either directly or
// through an ancestor.
func (c *Changes) Replaced(path PathSpec) bool {
	if c.Empty() {
		return false
	}
	node := c.root
	for _, key := range normalize(path) {
		if node.replaced {
			return true
		}
		next, ok := node.children[key]
		if !ok {
			return false
		}
		node = next
	}
	return node.replaced
}

// Paths lists every changed path in lexical order, ancestors first.
func (c *Changes) Paths() []Path {
	if c.Empty() {
		return nil
	}
	out := make([]Path, 0, c.size)
	var walk func(prefix Path, node *changeNode)
	walk = func(prefix Path, node *changeNode) {
		keys := make([]string, 0, len(node.children))
		for key := range node.children {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			path := prefix.Child(key)
			out = append(out, path)
			walk(path, node.children[key])
		}
	}
	walk(Path{}, c.root)
	return out
}

// Strings renders Paths with dot separators.
func (c *Changes) Strings() []string {
	paths := c.Paths()
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, path := range paths {
		out[i] = path.String()
	}
	return out
}

// diffDraft compares the draft result against the snapshot it started from.
// Objects the draft cloned in place are walked key by key and leaf copies
// handed out by Draft.Get compare by content. Anything else that is not
// identical counts as a wholesale replacement.
func diffDraft(d *Draft) *Changes {
	b := changeBuilder{draft: d}
	root := &changeNode{}
	if !b.compareObjects(root, d.base, d.root) {
		return &Changes{}
	}
	return &Changes{root: root, size: b.size}
}

type changeBuilder struct {
	draft *Draft
	size  int
}

func (b *changeBuilder) compareObjects(node *changeNode, before, after map[string]any) bool {
	if identity(before) == identity(after) && len(before) == len(after) {
		return false
	}
	changed := false
	for key, value := range before {
		next, ok := after[key]
		if b.compare(node, key, value, next, true, ok) {
			changed = true
		}
	}
	for key, value := range after {
		if _, ok := before[key]; ok {
			continue
		}
		if b.compare(node, key, nil, value, false, true) {
			changed = true
		}
	}
	return changed
}

func (b *changeBuilder) compare(parent *changeNode, key string, before, after any, hadBefore, hasAfter bool) bool {
	if hadBefore && hasAfter && sameValue(before, after) {
		return false
	}
	if hadBefore && hasAfter {
		beforeTree, beforeOK := before.(map[string]any)
		afterTree, afterOK := after.(map[string]any)
		if beforeOK && afterOK && b.draft.derivedFrom(afterTree, beforeTree) {
			candidate := &changeNode{}
			if !b.compareObjects(candidate, beforeTree, afterTree) {
				return false
			}
			b.attach(parent, key, candidate)
			return true
		}
		if b.draft.copiedFrom(after, before) && reflect.DeepEqual(before, after) {
			return false
		}
	}

	node := b.attach(parent, key, &changeNode{replaced: true})
	if hadBefore {
		b.expand(node, before)
	}
	if hasAfter {
		b.expand(node, after)
	}
	return true
}

func (b *changeBuilder) attach(parent *changeNode, key string, node *changeNode) *changeNode {
	if parent.children == nil {
		parent.children = map[string]*changeNode{}
	}
	if _, exists := parent.children[key]; !exists {
		b.size++
	}
	parent.children[key] = node
	return node
}

// expand marks every path below value as changed.
func (b *changeBuilder) expand(node *changeNode, value any) {
	tree, ok := value.(map[string]any)
	if !ok {
		return
	}
	for key, child := range tree {
		if _, exists := node.children[key]; !exists {
			b.size++
		}
		next := node.child(key)
		next.replaced = true
		b.expand(next, child)
	}
}
