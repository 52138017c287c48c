package ripple

import (
	"fmt"
	"iter"
)

// Node is an immutable syntax tree element. A node's children are described
// by its Grammar and read with Get; With returns a shallow copy with one
// field substituted, so edits share every untouched subtree.
type Node interface {
	// Kind names the node's variant, e.g. "BinaryEvaluate".
	Kind() string

	// Grammar lists the node's child fields in source order.
	Grammar() Grammar

	// Get returns the field's value: a Node, a []Node, or nil.
	Get(field string) any

	// With returns a copy of the node with the field replaced.
	With(field string, value any) Node

	// Label renders the node's non-child attributes (operator, literal text,
	// names) for structural equality and debugging.
	Label() string

	GetSourceLocation() *SourceLocation
}

// FieldKind distinguishes single-child fields from list fields.
type FieldKind int

const (
	NodeField FieldKind = iota
	ListField
)

// Field describes one named child slot of a node.
type Field struct {
	Name     string
	Kind     FieldKind
	Optional bool
	// Accepts names the node categories allowed in the field.
	Accepts []string
}

// Grammar is the ordered list of a node's fields.
type Grammar []Field

func one(name string, accepts ...string) Field {
	return Field{Name: name, Kind: NodeField, Accepts: accepts}
}

func optional(name string, accepts ...string) Field {
	return Field{Name: name, Kind: NodeField, Optional: true, Accepts: accepts}
}

func many(name string, accepts ...string) Field {
	return Field{Name: name, Kind: ListField, Accepts: accepts}
}

// Children returns a node's direct children in grammar order, skipping
// absent optional fields.
func Children(n Node) []Node {
	var children []Node
	for _, f := range n.Grammar() {
		switch v := n.Get(f.Name).(type) {
		case nil:
		case Node:
			if !isNilNode(v) {
				children = append(children, v)
			}
		case []Node:
			children = append(children, v...)
		}
	}
	return children
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if isNilNode(n) {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Descendants iterates over every node below n.
func Descendants(n Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		stop := false
		for _, c := range Children(n) {
			Walk(c, func(d Node) bool {
				if stop {
					return false
				}
				if !yield(d) {
					stop = true
					return false
				}
				return true
			})
			if stop {
				return
			}
		}
	}
}

// Equal reports whether two trees are structurally identical.
func Equal(a, b Node) bool {
	aNil, bNil := isNilNode(a), isNilNode(b)
	if aNil || bNil {
		return aNil == bNil
	}
	if a == b {
		return true
	}
	if a.Kind() != b.Kind() || a.Label() != b.Label() {
		return false
	}
	for _, f := range a.Grammar() {
		av, bv := a.Get(f.Name), b.Get(f.Name)
		switch f.Kind {
		case NodeField:
			an, _ := av.(Node)
			bn, _ := bv.(Node)
			if !Equal(an, bn) {
				return false
			}
		case ListField:
			al, _ := av.([]Node)
			bl, _ := bv.([]Node)
			if len(al) != len(bl) {
				return false
			}
			for i := range al {
				if !Equal(al[i], bl[i]) {
					return false
				}
			}
		}
	}
	return true
}

// Replace returns a new tree in which original is substituted by
// replacement. Nodes on the path from root to original are copied; every
// other subtree is shared with root. If original is not in the tree, root is
// returned unchanged.
func Replace(root, original, replacement Node) Node {
	if root == original {
		return replacement
	}
	for _, f := range root.Grammar() {
		switch v := root.Get(f.Name).(type) {
		case Node:
			if isNilNode(v) {
				continue
			}
			if r := Replace(v, original, replacement); r != v {
				return root.With(f.Name, r)
			}
		case []Node:
			for i, c := range v {
				if r := Replace(c, original, replacement); r != c {
					cp := make([]Node, len(v))
					copy(cp, v)
					cp[i] = r
					return root.With(f.Name, cp)
				}
			}
		}
	}
	return root
}

// Contains reports whether node is ancestor itself or one of its
// descendants.
func Contains(ancestor, node Node) bool {
	found := false
	Walk(ancestor, func(n Node) bool {
		if found {
			return false
		}
		if n == node {
			found = true
		}
		return !found
	})
	return found
}

// Root indexes a tree's parent relationships. Nodes never point at their
// parents; the index is built once per Context instead.
type Root struct {
	Node    Node
	parents map[Node]Node
}

// NewRoot indexes the tree under root.
func NewRoot(root Node) *Root {
	r := &Root{Node: root, parents: map[Node]Node{}}
	Walk(root, func(n Node) bool {
		for _, c := range Children(n) {
			r.parents[c] = n
		}
		return true
	})
	return r
}

// Parent returns the node's parent, or nil for the root and for nodes
// outside the tree.
func (r *Root) Parent(n Node) Node {
	return r.parents[n]
}

// Has reports whether n belongs to the indexed tree.
func (r *Root) Has(n Node) bool {
	if n == r.Node {
		return true
	}
	_, ok := r.parents[n]
	return ok
}

// Ancestors returns the node's ancestors, nearest first.
func (r *Root) Ancestors(n Node) []Node {
	var ancestors []Node
	for p := r.parents[n]; p != nil; p = r.parents[p] {
		ancestors = append(ancestors, p)
	}
	return ancestors
}

// Path returns the nodes from the root down to n, inclusive.
func (r *Root) Path(n Node) []Node {
	ancestors := r.Ancestors(n)
	path := make([]Node, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		path = append(path, ancestors[i])
	}
	return append(path, n)
}

// IsInside reports whether n lies within the given field of ancestor.
func (r *Root) IsInside(n, ancestor Node, field string) bool {
	switch v := ancestor.Get(field).(type) {
	case Node:
		if isNilNode(v) {
			return false
		}
		return v == n || r.isAncestor(v, n)
	case []Node:
		for _, c := range v {
			if c == n || r.isAncestor(c, n) {
				return true
			}
		}
	}
	return false
}

func (r *Root) isAncestor(ancestor, n Node) bool {
	for p := r.parents[n]; p != nil; p = r.parents[p] {
		if p == ancestor {
			return true
		}
	}
	return false
}

// isNilNode reports absent optional fields. Get implementations return an
// untyped nil for them via optionalNode.
func isNilNode(n Node) bool {
	return n == nil
}

func nodeList[T Node](xs []T) []Node {
	out := make([]Node, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func listOf[T Node](v any) []T {
	switch xs := v.(type) {
	case []T:
		return xs
	case []Node:
		out := make([]T, len(xs))
		for i, x := range xs {
			out[i] = x.(T)
		}
		return out
	case nil:
		return nil
	}
	panic(internalf("cannot use %T as a node list", v))
}

func nodeOf[T Node](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	n, ok := v.(T)
	if !ok {
		panic(internalf("cannot use %T in this field", v))
	}
	return n
}

// optionalNode converts a possibly-nil typed pointer into an untyped nil so
// that Get callers can rely on a plain nil check.
func optionalNode[T any](n *T) any {
	if n == nil {
		return nil
	}
	return n
}

func unknownField(n Node, field string) *InternalError {
	return internalf("%s has no field %q", n.Kind(), field)
}

// Describe renders a node briefly for traces and debugger frames.
func Describe(n Node) string {
	if isNilNode(n) {
		return "basis"
	}
	if label := n.Label(); label != "" {
		return fmt.Sprintf("%s %s", n.Kind(), label)
	}
	return n.Kind()
}
