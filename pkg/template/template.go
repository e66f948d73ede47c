// Package template implements the template expander of spec.md §4.7: a
// single traversal executing set/if-elseif-else/foreach/while/on-data in
// order per visited block, splicing the result in place of each template
// node, and invoking the macro onWalk hook around each Block's own
// children. Reference resolution of ordinary block properties happens
// afterward, in pkg/resolve's two-pass pass — this package only evaluates
// expressions that appear directly inside control-flow headers.
package template

import (
	"fmt"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/eval"
	"github.com/the-ox-studio/oxdef-sub002/pkg/macro"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/resolve"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

const defaultWhileLimit = 10000

// DataSourceRunner executes one on-data template node inline, as step 5 of
// the per-block expansion order (spec.md §4.7/§4.8). Declared here rather
// than in pkg/datasource so pkg/datasource can depend on this package's
// types without a back-import.
type DataSourceRunner interface {
	Run(node *ast.OnDataTemplate, scope *eval.Scope, this, parent *ast.Block) ([]ast.Node, *oxerrors.Error)
}

// Expander runs template expansion over a single file's AST.
type Expander struct {
	rv         *resolve.Resolver
	macroState *macro.State
	dataSource DataSourceRunner
}

// NewExpander builds an Expander. macroState and dataSource may both be
// nil — an absent macro state means no onWalk hook fires, and a nil
// dataSource turns any on-data block into a DataSourceError.
func NewExpander(rv *resolve.Resolver, macroState *macro.State, dataSource DataSourceRunner) *Expander {
	return &Expander{rv: rv, macroState: macroState, dataSource: dataSource}
}

// Expand rewrites doc.Children in place, removing every Template node so
// that only Block, FreeText, Literal, and Array nodes remain (spec.md §3's
// post-preprocessing invariant, for the template-expansion half of it).
func (e *Expander) Expand(doc *ast.Document) []*oxerrors.Error {
	scope := eval.NewScope()
	expanded, errs := e.expandSequence(doc.Children, scope, nil, nil)
	doc.Children = expanded
	return errs
}

func (e *Expander) expandSequence(nodes []ast.Node, scope *eval.Scope, this, parent *ast.Block) ([]ast.Node, []*oxerrors.Error) {
	var out []ast.Node
	var errs []*oxerrors.Error
	i := 0
	for i < len(nodes) {
		switch x := nodes[i].(type) {
		case *ast.SetTemplate:
			val, err := eval.Eval(x.Value, scope, e.rv.ReferenceFunc(this, parent))
			if err != nil {
				errs = append(errs, resolve.ClassifyEvalError(err, x.Location))
			} else {
				scope.Set(x.Name, val)
			}
			i++

		case *ast.IfTemplate:
			children, err := e.selectIfBranch(x, scope, this, parent)
			if err != nil {
				errs = append(errs, err)
				i++
				continue
			}
			expanded, cerrs := e.expandSequence(children, scope, this, parent)
			errs = append(errs, cerrs...)
			out = append(out, expanded...)
			i++

		case *ast.ForeachTemplate:
			expanded, ferrs := e.expandForeach(x, scope, this, parent)
			errs = append(errs, ferrs...)
			out = append(out, expanded...)
			i++

		case *ast.WhileTemplate:
			expanded, werrs := e.expandWhile(x, scope, this, parent)
			errs = append(errs, werrs...)
			out = append(out, expanded...)
			i++

		case *ast.OnDataTemplate:
			expanded, oerrs := e.expandOnData(x, scope, this, parent)
			errs = append(errs, oerrs...)
			out = append(out, expanded...)
			i++

		case *ast.Block:
			// this, not parent: nodes is this block's (or the document
			// root's, if this is nil) own children list, so that is the
			// immediate parent of every Block found in it.
			_, nextI, berrs := e.processBlock(nodes, i, &out, scope, this)
			errs = append(errs, berrs...)
			i = nextI

		default:
			// FreeText and every other leaf node pass through unchanged —
			// the one explicit case that keeps free text alive across
			// every branch above, per spec.md §4.7.
			out = append(out, nodes[i])
			i++
		}
	}
	return out, errs
}

// selectIfBranch evaluates an if/elseif/else chain top to bottom and
// returns the first truthy branch's children (nil if none matched and
// there is no else clause).
func (e *Expander) selectIfBranch(it *ast.IfTemplate, scope *eval.Scope, this, parent *ast.Block) ([]ast.Node, *oxerrors.Error) {
	ok, err := e.truthyEval(it.Cond, scope, this, parent, it.Location)
	if err != nil {
		return nil, err
	}
	if ok {
		return it.Children, nil
	}
	for _, ei := range it.ElseIfs {
		ok, err := e.truthyEval(ei.Cond, scope, this, parent, ei.Location)
		if err != nil {
			return nil, err
		}
		if ok {
			return ei.Children, nil
		}
	}
	return it.Else, nil
}

func (e *Expander) truthyEval(v ast.Value, scope *eval.Scope, this, parent *ast.Block, loc token.Location) (bool, *oxerrors.Error) {
	result, err := eval.Eval(v, scope, e.rv.ReferenceFunc(this, parent))
	if err != nil {
		return false, resolve.ClassifyEvalError(err, loc)
	}
	return truthy(result), nil
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

func (e *Expander) expandForeach(f *ast.ForeachTemplate, scope *eval.Scope, this, parent *ast.Block) ([]ast.Node, []*oxerrors.Error) {
	result, err := eval.Eval(f.Iterable, scope, e.rv.ReferenceFunc(this, parent))
	if err != nil {
		return nil, []*oxerrors.Error{resolve.ClassifyEvalError(err, f.Location)}
	}
	items, ok := result.([]interface{})
	if !ok {
		return nil, []*oxerrors.Error{oxerrors.New(oxerrors.EvaluationError, f.Location,
			"foreach iterable must be an array, got %T", result)}
	}
	var out []ast.Node
	var errs []*oxerrors.Error
	for idx, item := range items {
		scope.Push()
		scope.Set(f.LoopVar, item)
		if f.IndexVar != "" {
			scope.Set(f.IndexVar, int64(idx))
		}
		expanded, cerrs := e.expandSequence(cloneNodes(f.Children), scope, this, parent)
		errs = append(errs, cerrs...)
		out = append(out, expanded...)
		scope.Pop()
	}
	return out, errs
}

func (e *Expander) expandWhile(w *ast.WhileTemplate, scope *eval.Scope, this, parent *ast.Block) ([]ast.Node, []*oxerrors.Error) {
	max := w.MaxIterations
	if max <= 0 {
		max = defaultWhileLimit
	}
	var out []ast.Node
	var errs []*oxerrors.Error
	for iter := 0; ; iter++ {
		if iter >= max {
			errs = append(errs, oxerrors.New(oxerrors.WhileLimitError, w.Location,
				"while loop exceeded %d iterations", max))
			break
		}
		ok, err := e.truthyEval(w.Cond, scope, this, parent, w.Location)
		if err != nil {
			errs = append(errs, err)
			break
		}
		if !ok {
			break
		}
		expanded, cerrs := e.expandSequence(cloneNodes(w.Children), scope, this, parent)
		errs = append(errs, cerrs...)
		out = append(out, expanded...)
	}
	return out, errs
}

func (e *Expander) expandOnData(od *ast.OnDataTemplate, scope *eval.Scope, this, parent *ast.Block) ([]ast.Node, []*oxerrors.Error) {
	if e.dataSource == nil {
		return nil, []*oxerrors.Error{oxerrors.New(oxerrors.DataSourceError, od.Location,
			"on-data block %q has no data-source runner configured", od.ID)}
	}
	children, err := e.dataSource.Run(od, scope, this, parent)
	var errs []*oxerrors.Error
	if err != nil {
		errs = append(errs, err)
	}
	expanded, cerrs := e.expandSequence(children, scope, this, parent)
	errs = append(errs, cerrs...)
	return expanded, errs
}

func cloneNodes(nodes []ast.Node) []ast.Node {
	out := make([]ast.Node, len(nodes))
	for i, n := range nodes {
		out[i] = ast.CloneNode(n)
	}
	return out
}

// processBlock handles one *ast.Block entry at nodes[i]: the macro onWalk
// hook (if registered and not already visited), then the block's own
// children, expanded automatically unless the hook already forced that
// itself via cursor.InvokeWalk(block, ...). Returns the advanced index the
// outer loop should resume at.
func (e *Expander) processBlock(nodes []ast.Node, i int, out *[]ast.Node, scope *eval.Scope, parent *ast.Block) (*ast.Block, int, []*oxerrors.Error) {
	block := nodes[i].(*ast.Block)
	var errs []*oxerrors.Error

	if e.macroState != nil && e.macroState.HasOnWalk() && !e.macroState.Visited(block) {
		d := &seqDriver{e: e, nodes: nodes, idx: i, current: block, scope: scope, parent: parent}
		cursor := macro.NewCursor(d)
		err := e.macroState.RunOnWalk(block, parent, cursor)
		e.macroState.MarkVisited(block)
		if err != nil {
			errs = append(errs, classifyHookError(err, block.Location))
			*out = append(*out, block)
			*out = append(*out, d.invoked...)
			return block, d.idx + 1, errs
		}
		if !d.currentDone {
			expandedChildren, cerrs := e.expandSequence(block.Children, scope, block, parent)
			errs = append(errs, cerrs...)
			block.Children = expandedChildren
		}
		*out = append(*out, block)
		*out = append(*out, d.invoked...)
		return block, d.idx + 1, errs
	}

	expandedChildren, cerrs := e.expandSequence(block.Children, scope, block, parent)
	errs = append(errs, cerrs...)
	block.Children = expandedChildren
	*out = append(*out, block)
	return block, i + 1, errs
}

func classifyHookError(err error, loc token.Location) *oxerrors.Error {
	if oxErr, ok := err.(*oxerrors.Error); ok {
		return oxErr
	}
	return oxerrors.New(oxerrors.MacroAbortError, loc, "%v", err)
}

// invokeStep records enough of an out-of-order InvokeWalk call's effect
// for a single Back() to undo it.
type invokeStep struct {
	prevIdx int
	count   int
}

// seqDriver implements macro.Driver against a single sibling node list: the
// "flattened walk order" a Cursor can look ahead/behind within is this
// block's own sibling sequence, not the whole document. A hook wanting to
// reach into a different subtree should use its own properties/children
// directly rather than the cursor, which is scoped to one level.
type seqDriver struct {
	e       *Expander
	nodes   []ast.Node
	idx     int // position of the block currently being walked
	current *ast.Block
	scope   *eval.Scope
	parent  *ast.Block

	invoked     []ast.Node
	steps       []invokeStep
	currentDone bool
}

func (d *seqDriver) Peek() (block, parent *ast.Block, ok bool) {
	for j := d.idx + 1; j < len(d.nodes); j++ {
		if b, isBlock := d.nodes[j].(*ast.Block); isBlock {
			return b, d.parent, true
		}
	}
	return nil, nil, false
}

func (d *seqDriver) Invoke(block, parent *ast.Block) error {
	if block == d.current {
		expandedChildren, errs := d.e.expandSequence(block.Children, d.scope, block, parent)
		block.Children = expandedChildren
		d.currentDone = true
		if len(errs) > 0 {
			return errs[0]
		}
		return nil
	}

	pos := -1
	for j := d.idx + 1; j < len(d.nodes); j++ {
		if d.nodes[j] == block {
			pos = j
			break
		}
	}
	if pos == -1 {
		return fmt.Errorf("cursor: block %q is not ahead of the current position", block.ID)
	}

	prevIdx := d.idx
	before := len(d.invoked)
	for j := d.idx + 1; j < pos; j++ {
		d.invoked = append(d.invoked, d.nodes[j])
	}
	expandedChildren, errs := d.e.expandSequence(block.Children, d.scope, block, parent)
	block.Children = expandedChildren
	// block's onWalk hook has not run, so it is not marked visited: after a
	// Back() the expander's own loop reaches it and runs the hook.
	d.invoked = append(d.invoked, block)
	d.idx = pos
	d.steps = append(d.steps, invokeStep{prevIdx: prevIdx, count: len(d.invoked) - before})

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (d *seqDriver) Back() error {
	if len(d.steps) == 0 {
		return fmt.Errorf("cursor: nothing to rewind")
	}
	last := d.steps[len(d.steps)-1]
	d.steps = d.steps[:len(d.steps)-1]
	d.invoked = d.invoked[:len(d.invoked)-last.count]
	d.idx = last.prevIdx
	return nil
}
