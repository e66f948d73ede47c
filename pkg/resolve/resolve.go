// Package resolve implements the two-pass reference resolver of spec.md
// §4.6: a per-file block registry built post-order, then a $-reference
// resolution pass that feeds pkg/eval's pluggable ReferenceFunc hook.
package resolve

import (
	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/eval"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
	"github.com/the-ox-studio/oxdef-sub002/pkg/walker"
)

// Registry is the per-file id → block table built by BuildRegistry. It is
// frozen (read-only) once construction finishes, matching spec.md §4.6's
// "the registry is frozen after pass 1".
type Registry struct {
	byID   map[string]*ast.Block
	parent map[*ast.Block]*ast.Block
}

// BuildRegistry runs pass 1: a post-order walk recording every non-empty
// block id, plus the block→parent map $parent resolution needs for blocks
// reached indirectly (via $<Id>), not just the block currently being
// walked. Two sibling blocks sharing an id is a DuplicateBlockID error; the
// registry itself stays file-wide so pass 2's `$<Id>` lookups can reach
// forward across the whole file, per spec.md §4.6.
func BuildRegistry(doc *ast.Document) (*Registry, []*oxerrors.Error) {
	reg := &Registry{byID: make(map[string]*ast.Block), parent: make(map[*ast.Block]*ast.Block)}
	var errs []*oxerrors.Error
	siblingSeen := map[ast.Node]map[string]bool{}

	walker.WalkPostOrder(doc, func(n ast.Node, ancestors []ast.Node) walker.Action {
		block, ok := n.(*ast.Block)
		if !ok {
			return walker.Continue
		}
		var parentNode ast.Node
		if len(ancestors) > 0 {
			parentNode = ancestors[len(ancestors)-1]
		}
		if parentBlock, ok := parentNode.(*ast.Block); ok {
			reg.parent[block] = parentBlock
		}
		if block.ID == "" {
			return walker.Continue
		}
		seen := siblingSeen[parentNode]
		if seen == nil {
			seen = make(map[string]bool)
			siblingSeen[parentNode] = seen
		}
		if seen[block.ID] {
			errs = append(errs, oxerrors.New(oxerrors.DuplicateBlockID, block.Location,
				"duplicate block id %q among siblings", block.ID))
			return walker.Continue
		}
		seen[block.ID] = true
		reg.byID[block.ID] = block
		return walker.Continue
	})
	return reg, errs
}

func (r *Registry) Lookup(id string) (*ast.Block, bool) {
	b, ok := r.byID[id]
	return b, ok
}

func (r *Registry) ParentOf(b *ast.Block) (*ast.Block, bool) {
	p, ok := r.parent[b]
	return p, ok
}

// refError carries an oxerrors.Kind through eval's generic error interface
// so resolveValue can classify UnresolvedReference / CircularReferenceError
// precisely instead of folding every reference failure into EvaluationError.
type refError struct {
	kind oxerrors.Kind
	loc  token.Location
	msg  string
}

func (e *refError) Error() string { return e.msg }

// ClassifyEvalError converts an error returned by eval.Eval (when called
// with a Resolver-supplied ReferenceFunc) into an oxerrors.Error, keeping
// the precise Kind for reference failures instead of folding everything
// into a generic EvaluationError. Exported so other callers that evaluate
// expressions through a Resolver's ReferenceFunc directly — the template
// expander's set/if/foreach/while conditions, for instance — classify
// errors the same way pass-2 resolution does.
func ClassifyEvalError(err error, loc token.Location) *oxerrors.Error {
	if err == nil {
		return nil
	}
	if refErr, ok := err.(*refError); ok {
		return oxerrors.New(refErr.kind, refErr.loc, "%s", refErr.msg)
	}
	if evalErr, ok := err.(*eval.Error); ok {
		return oxerrors.New(oxerrors.EvaluationError, evalErr.Loc, "%s", evalErr.Message)
	}
	return oxerrors.New(oxerrors.EvaluationError, loc, "%v", err)
}

// Resolver runs pass 2: evaluating every Expression reachable from doc, and
// supplies the eval.ReferenceFunc that answers `$this`/`$parent`/`$<Id>`
// chains against the registry and the walker's own ancestor stack.
type Resolver struct {
	reg      *Registry
	visiting map[*ast.Block]map[string]bool // property-chain cycle guard
}

func NewResolver(reg *Registry) *Resolver {
	return &Resolver{reg: reg, visiting: make(map[*ast.Block]map[string]bool)}
}

// ResolveAll walks doc and evaluates every Expression value found on block
// properties, including elements of array-valued properties, mutating each
// Expression's Resolved/Cached fields in place. Template headers are not
// visited here; the template expander evaluates those.
func (rv *Resolver) ResolveAll(doc *ast.Document) []*oxerrors.Error {
	var errs []*oxerrors.Error
	walker.WalkPreOrder(doc, func(n ast.Node, ancestors []ast.Node) walker.Action {
		block, ok := n.(*ast.Block)
		if !ok || block.Properties == nil {
			return walker.Continue
		}
		var parent *ast.Block
		for i := len(ancestors) - 1; i >= 0; i-- {
			if p, ok := ancestors[i].(*ast.Block); ok {
				parent = p
				break
			}
		}
		for _, key := range block.Properties.Keys() {
			v, _ := block.Properties.Get(key)
			resolved, err := rv.resolveValue(v, block, parent)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			block.Properties.Set(key, resolved)
		}
		return walker.Continue
	})
	return errs
}

func (rv *Resolver) resolveValue(v ast.Value, this, parent *ast.Block) (ast.Value, *oxerrors.Error) {
	switch x := v.(type) {
	case *ast.Expression:
		if x.Resolved {
			return x.Cached, nil
		}
		result, err := eval.Eval(x, eval.NewScope(), rv.referenceFunc(this, parent))
		if err != nil {
			return nil, ClassifyEvalError(err, x.Location)
		}
		x.Cached = wrapResult(result, x.Location)
		x.Resolved = true
		return x.Cached, nil
	case *ast.Array:
		for i, e := range x.Elements {
			resolved, err := rv.resolveValue(e, this, parent)
			if err != nil {
				return nil, err
			}
			x.Elements[i] = resolved
		}
		return x, nil
	default:
		return v, nil
	}
}

// wrapResult converts a raw Go value produced by eval.Eval (nil, bool,
// int64, float64, string, or []interface{}) back into an ast.Value so it
// can be stored as a resolved property.
func wrapResult(v interface{}, loc token.Location) ast.Value {
	switch x := v.(type) {
	case []interface{}:
		elems := make([]ast.Value, len(x))
		for i, e := range x {
			elems[i] = wrapResult(e, loc)
		}
		return &ast.Array{Elements: elems, Location: loc}
	default:
		return &ast.Literal{Value: x, Location: loc}
	}
}

// referenceFunc binds this/parent into an eval.ReferenceFunc against the
// resolver's registry, implementing spec.md §4.6's resolution rules.
// ReferenceFunc exposes referenceFunc to callers outside this package that
// need ad hoc $-reference resolution against the same registry and cycle
// guard outside a full ResolveAll pass — the template expander's
// set/if/foreach/while condition evaluation, specifically.
func (rv *Resolver) ReferenceFunc(this, parent *ast.Block) eval.ReferenceFunc {
	return rv.referenceFunc(this, parent)
}

func (rv *Resolver) referenceFunc(this, parent *ast.Block) eval.ReferenceFunc {
	return func(ref *ast.Reference) (interface{}, error) {
		var target *ast.Block
		switch ref.Head {
		case ast.RefThis:
			target = this
		case ast.RefParent:
			if parent == nil {
				return nil, &refError{kind: oxerrors.UnresolvedReference, loc: ref.Location, msg: "$parent has no meaning at document root"}
			}
			target = parent
		case ast.RefBlockID:
			b, ok := rv.reg.Lookup(ref.BlockID)
			if !ok {
				return nil, &refError{kind: oxerrors.UnresolvedReference, loc: ref.Location, msg: "no block with id \"" + ref.BlockID + "\" in file scope"}
			}
			target = b
		}
		return rv.walkChain(target, ref.Chain, ref.Location)
	}
}

// walkChain resolves a dotted member chain against target, evaluating
// unresolved property expressions on demand with a per-block visited-set
// cycle guard (spec.md §4.6: "protects against property cycles").
func (rv *Resolver) walkChain(target *ast.Block, chain []string, loc token.Location) (interface{}, error) {
	var current interface{} = target
	for _, member := range chain {
		switch cur := current.(type) {
		case *ast.Block:
			val, ok := cur.Properties.Get(member)
			if !ok {
				return nil, &refError{kind: oxerrors.UnresolvedReference, loc: loc, msg: "no property \"" + member + "\" on block \"" + cur.ID + "\""}
			}
			resolved, err := rv.resolveWithCycleGuard(cur, member, val, loc)
			if err != nil {
				return nil, err
			}
			current = unwrapValue(resolved)
		case []interface{}:
			if member == "length" {
				current = int64(len(cur))
				continue
			}
			return nil, &refError{kind: oxerrors.UnresolvedReference, loc: loc, msg: "no member \"" + member + "\" on array"}
		default:
			return nil, &refError{kind: oxerrors.UnresolvedReference, loc: loc, msg: "cannot access member \"" + member + "\" on a non-block, non-array value"}
		}
	}
	return unwrapValue(current), nil
}

func (rv *Resolver) resolveWithCycleGuard(block *ast.Block, member string, v ast.Value, loc token.Location) (ast.Value, error) {
	seen := rv.visiting[block]
	if seen == nil {
		seen = make(map[string]bool)
		rv.visiting[block] = seen
	}
	if seen[member] {
		return nil, &refError{kind: oxerrors.CircularReferenceError, loc: loc, msg: "circular reference resolving property \"" + member + "\""}
	}
	seen[member] = true
	defer delete(seen, member)

	parent, _ := rv.reg.ParentOf(block)
	resolved, oxErr := rv.resolveValue(v, block, parent)
	if oxErr != nil {
		// Re-wrap as refError so the Kind survives back up through
		// eval's generic error interface instead of being folded into a
		// generic EvaluationError at the outer expression.
		return nil, &refError{kind: oxErr.Kind, loc: oxErr.Loc, msg: oxErr.Message}
	}
	return resolved, nil
}

// unwrapValue converts an ast.Value (or a raw block/array) into the plain
// Go value eval.Eval expects to operate on.
func unwrapValue(v interface{}) interface{} {
	switch x := v.(type) {
	case *ast.Literal:
		return x.Value
	case *ast.Array:
		out := make([]interface{}, len(x.Elements))
		for i, e := range x.Elements {
			out[i] = unwrapValue(e)
		}
		return out
	case *ast.Block:
		return x
	default:
		return v
	}
}
