// Package importproc implements the import processor of spec.md §4.13:
// resolving each `<import>` directive, loading and recursively
// processing the target file's own imports, and merging its extracted
// `@tag` definitions into the importing file's tag registry.
package importproc

import (
	"context"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/fileloader"
	"github.com/the-ox-studio/oxdef-sub002/pkg/importgraph"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/parser"
	"github.com/the-ox-studio/oxdef-sub002/pkg/pathresolve"
	"github.com/the-ox-studio/oxdef-sub002/pkg/tagreg"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

// Deps bundles the collaborators the import processor needs; one set is
// shared across an entire project build (the loader's cache and the
// import graph's cycle tracking both span every file visited).
type Deps struct {
	Loader   *fileloader.Loader
	Resolver *pathresolve.Resolver
	Graph    *importgraph.Graph
}

// Process walks doc's top-level `<import>` directives (the parser
// guarantees imports never appear below document root, so there is
// nothing to walk here but the document's own Imports list), resolving,
// loading, and recursively processing each target before merging its
// extracted tag definitions into registry. Returns a structural error on
// the first cycle, depth overflow, path, or load failure; non-structural
// merge conflicts are collected into diags instead of aborting.
func Process(ctx context.Context, doc *ast.Document, absPath string, registry *tagreg.Registry, deps Deps, diags *oxerrors.Diagnostics) *oxerrors.Error {
	for _, imp := range doc.Imports {
		if err := processOne(ctx, imp, absPath, registry, deps, diags); err != nil {
			return err
		}
	}
	return nil
}

func processOne(ctx context.Context, imp *ast.Import, fromPath string, registry *tagreg.Registry, deps Deps, diags *oxerrors.Diagnostics) *oxerrors.Error {
	if imp.Alias != "" {
		if aerr := pathresolve.ValidateAlias(imp.Alias, 0, imp.Location); aerr != nil {
			return aerr
		}
	}

	resolved, perr := deps.Resolver.Resolve(imp.Path, fromPath, imp.Location)
	if perr != nil {
		return perr
	}

	if err := deps.Graph.Enter(resolved, importgraph.Import, imp.Location); err != nil {
		return err
	}
	defer deps.Graph.Leave()

	content, lerr := deps.Loader.Load(ctx, resolved, imp.Location)
	if lerr != nil {
		return lerr
	}

	subDoc, err := parser.Parse(resolved, content)
	if err != nil {
		return oxerrors.New(oxerrors.FileNotFound, imp.Location, "parsing imported file %q: %v", resolved, err)
	}

	subRegistry := tagreg.NewRegistry()
	for _, scanErr := range subRegistry.ScanDefinitions(subDoc) {
		diags.AddError(scanErr)
	}

	// The imported file's own imports merge into its own registry first;
	// only the result crosses into the importing file's registry, so a
	// transitive import's definitions are always seen through every
	// alias prefix on the chain that led to them.
	if err := Process(ctx, subDoc, resolved, subRegistry, deps, diags); err != nil {
		return err
	}

	mergeDefinitions(registry, subRegistry, imp.Alias, imp.Location, diags)
	return nil
}

// mergeDefinitions folds src's tag definitions into dst per spec.md
// §4.13's merge policy: non-namespaced imports last-writer-wins with a
// warning on override; namespaced imports (alias != "") hard-error on a
// collision within that same namespace.
func mergeDefinitions(dst, src *tagreg.Registry, alias string, loc token.Location, diags *oxerrors.Diagnostics) {
	for key, block := range src.Definitions() {
		if alias == "" {
			if _, exists := dst.Definition(key); exists {
				diags.AddWarning(oxerrors.New(oxerrors.DuplicateTagDefinition, loc,
					"tag definition %q overridden by a later import", key))
			}
			dst.SetDefinition(key, block)
			continue
		}
		namespacedKey := alias + "." + key
		if _, exists := dst.Definition(namespacedKey); exists {
			diags.AddError(oxerrors.New(oxerrors.DuplicateTagDefinition, loc,
				"namespaced tag definition %q collides with an existing import under the same alias", namespacedKey))
			continue
		}
		dst.SetDefinition(namespacedKey, block)
	}
}
