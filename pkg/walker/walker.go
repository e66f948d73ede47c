// Package walker implements generic depth-first traversal over the OX AST
// (spec.md §4.3), independent of any particular preprocessing phase.
package walker

import "github.com/the-ox-studio/oxdef-sub002/pkg/ast"

// Action is returned by a Visitor to steer traversal.
type Action int

const (
	Continue Action = iota
	SkipChildren
	Stop
)

// Visitor is invoked once per node in traversal order. ancestors holds the
// path from the root (inclusive) to node's parent (inclusive), outermost
// first, and is empty for the root itself; the walker owns this slice and reuses its backing array between
// sibling calls, so a Visitor that wants to retain it must copy.
type Visitor func(node ast.Node, ancestors []ast.Node) Action

// WalkPreOrder visits a node before its children.
func WalkPreOrder(root ast.Node, visit Visitor) {
	walkPre(root, nil, visit)
}

func walkPre(n ast.Node, ancestors []ast.Node, visit Visitor) bool {
	if n == nil {
		return false
	}
	switch visit(n, ancestors) {
	case Stop:
		return true
	case SkipChildren:
		return false
	}
	next := append(append([]ast.Node{}, ancestors...), n)
	for _, c := range childrenOf(n) {
		if walkPre(c, next, visit) {
			return true
		}
	}
	return false
}

// WalkPostOrder visits a node after its children. SkipChildren has no
// effect here (children are already visited by the time the node itself
// is reached); Stop still aborts the remaining traversal.
func WalkPostOrder(root ast.Node, visit Visitor) {
	walkPost(root, nil, visit)
}

func walkPost(n ast.Node, ancestors []ast.Node, visit Visitor) bool {
	if n == nil {
		return false
	}
	next := append(append([]ast.Node{}, ancestors...), n)
	for _, c := range childrenOf(n) {
		if walkPost(c, next, visit) {
			return true
		}
	}
	return visit(n, ancestors) == Stop
}

// childrenOf returns the structural children of n, in source order. Leaf
// kinds (FreeText, Literal, Reference, Import, Set, ...) return nil.
func childrenOf(n ast.Node) []ast.Node {
	switch x := n.(type) {
	case *ast.Document:
		// Top-level injects already sit in Children; Injects only indexes
		// them, so it is not walked separately.
		return x.Children
	case *ast.Block:
		return x.Children
	case *ast.IfTemplate:
		out := append([]ast.Node{}, x.Children...)
		for _, e := range x.ElseIfs {
			out = append(out, e.Children...)
		}
		out = append(out, x.Else...)
		return out
	case *ast.ForeachTemplate:
		return x.Children
	case *ast.WhileTemplate:
		return x.Children
	case *ast.OnDataTemplate:
		out := append([]ast.Node{}, x.Children...)
		out = append(out, x.ErrorChildren...)
		return out
	default:
		return nil
	}
}

// FindFirst returns the first node (pre-order) satisfying pred, or nil.
func FindFirst(root ast.Node, pred func(ast.Node) bool) ast.Node {
	var found ast.Node
	WalkPreOrder(root, func(n ast.Node, _ []ast.Node) Action {
		if pred(n) {
			found = n
			return Stop
		}
		return Continue
	})
	return found
}

// FindAll returns every node (pre-order) satisfying pred.
func FindAll(root ast.Node, pred func(ast.Node) bool) []ast.Node {
	var out []ast.Node
	WalkPreOrder(root, func(n ast.Node, _ []ast.Node) Action {
		if pred(n) {
			out = append(out, n)
		}
		return Continue
	})
	return out
}

// FindByTagName returns every block carrying a tag (definition or
// instance) with the given name.
func FindByTagName(root ast.Node, name string) []*ast.Block {
	var out []*ast.Block
	WalkPreOrder(root, func(n ast.Node, _ []ast.Node) Action {
		b, ok := n.(*ast.Block)
		if !ok {
			return Continue
		}
		for _, tg := range b.Tags {
			if tg.Name == name {
				out = append(out, b)
				break
			}
		}
		return Continue
	})
	return out
}

// FindByProperty returns every block that declares the given property key.
func FindByProperty(root ast.Node, key string) []*ast.Block {
	var out []*ast.Block
	WalkPreOrder(root, func(n ast.Node, _ []ast.Node) Action {
		if b, ok := n.(*ast.Block); ok && b.Properties != nil && b.Properties.Has(key) {
			out = append(out, b)
		}
		return Continue
	})
	return out
}

// GetAncestors returns the ancestor chain (outermost first) for target, and
// whether target was found at all under root.
func GetAncestors(root ast.Node, target ast.Node) ([]ast.Node, bool) {
	var result []ast.Node
	var found bool
	WalkPreOrder(root, func(n ast.Node, ancestors []ast.Node) Action {
		if n == target {
			result = append([]ast.Node{}, ancestors...)
			found = true
			return Stop
		}
		return Continue
	})
	return result, found
}
