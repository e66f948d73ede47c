// Package injectproc implements the inject processor of spec.md §4.14:
// resolving each `<inject>` directive (top-level or block-child
// position), fully preprocessing the target file in an isolated scope,
// and splicing the result in place of the inject node.
package injectproc

import (
	"context"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/fileloader"
	"github.com/the-ox-studio/oxdef-sub002/pkg/importgraph"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/parser"
	"github.com/the-ox-studio/oxdef-sub002/pkg/pathresolve"
)

// Evaluator is the explicit dependency spec.md §4.14 calls for: inject
// processing needs to run an injected file through the *entire*
// preprocessing pipeline (its own imports, its own injects, tag
// expansion, module properties, data sources, template expansion,
// reference resolution) in total isolation from the document that
// referenced it. Declaring that need as an interface here — rather than
// this package reaching up to call a free function in pkg/project — keeps
// the dependency direction the same as every other pluggable collaborator
// in this repo (pkg/eval.ReferenceFunc, pkg/macro.Driver,
// pkg/template.DataSourceRunner): the consumer names the shape it needs,
// the assembler (pkg/project) implements it.
type Evaluator interface {
	// Evaluate fully preprocesses doc (loaded from absPath) in its own
	// isolated scope and registry, returning the final top-level nodes to
	// splice in place of the inject that triggered this call. Non-fatal
	// diagnostics collected while evaluating doc are returned alongside;
	// a non-nil *oxerrors.Error is structural and aborts the splice.
	Evaluate(ctx context.Context, doc *ast.Document, absPath string) ([]ast.Node, *oxerrors.Diagnostics, *oxerrors.Error)
}

// Deps bundles the collaborators shared across a project build; the same
// loader cache and import graph instances importproc uses should be
// passed here too, so cycle detection and the file cache span both
// imports and injects together.
type Deps struct {
	Loader   *fileloader.Loader
	Resolver *pathresolve.Resolver
	Graph    *importgraph.Graph
}

// Process walks nodes (a document's top-level Children, or a block's),
// replacing every *ast.Inject with the spliced result of fully
// evaluating its target file, and recursing into block children so
// block-child-position injects resolve too. Sibling order is preserved:
// an inject's replacement nodes land exactly where the inject node was.
func Process(ctx context.Context, nodes []ast.Node, absPath string, evaluator Evaluator, deps Deps, diags *oxerrors.Diagnostics) ([]ast.Node, *oxerrors.Error) {
	out := make([]ast.Node, 0, len(nodes))
	for _, n := range nodes {
		switch x := n.(type) {
		case *ast.Inject:
			spliced, err := processOne(ctx, x, absPath, evaluator, deps, diags)
			if err != nil {
				return nil, err
			}
			out = append(out, spliced...)

		case *ast.Block:
			children, err := Process(ctx, x.Children, absPath, evaluator, deps, diags)
			if err != nil {
				return nil, err
			}
			x.Children = children
			x.Injects = nil
			out = append(out, x)

		default:
			out = append(out, n)
		}
	}
	return out, nil
}

func processOne(ctx context.Context, inj *ast.Inject, fromPath string, evaluator Evaluator, deps Deps, diags *oxerrors.Diagnostics) ([]ast.Node, *oxerrors.Error) {
	resolved, perr := deps.Resolver.Resolve(inj.Path, fromPath, inj.Location)
	if perr != nil {
		return nil, perr
	}

	if err := deps.Graph.Enter(resolved, importgraph.Inject, inj.Location); err != nil {
		return nil, err
	}
	defer deps.Graph.Leave()

	content, lerr := deps.Loader.Load(ctx, resolved, inj.Location)
	if lerr != nil {
		return nil, lerr
	}

	subDoc, err := parser.Parse(resolved, content)
	if err != nil {
		return nil, oxerrors.New(oxerrors.FileNotFound, inj.Location, "parsing injected file %q: %v", resolved, err)
	}

	children, subDiags, everr := evaluator.Evaluate(ctx, subDoc, resolved)
	if subDiags != nil {
		for _, w := range subDiags.Warnings() {
			diags.AddWarning(w)
		}
		for _, e := range subDiags.Errors() {
			diags.AddError(e)
		}
	}
	if everr != nil {
		return nil, everr
	}
	return children, nil
}
