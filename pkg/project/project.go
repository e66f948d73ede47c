// Package project implements the project orchestrator of spec.md §4.15:
// the public entry point that wires the loader, path resolver, tag
// registry, import/inject processors, template expander, and reference
// resolver together into the full per-file preprocessing pipeline, and
// drives it once for a project's entry file.
package project

import (
	"context"
	"path/filepath"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/config"
	"github.com/the-ox-studio/oxdef-sub002/pkg/datasource"
	"github.com/the-ox-studio/oxdef-sub002/pkg/fileloader"
	"github.com/the-ox-studio/oxdef-sub002/pkg/importgraph"
	"github.com/the-ox-studio/oxdef-sub002/pkg/importproc"
	"github.com/the-ox-studio/oxdef-sub002/pkg/injectproc"
	"github.com/the-ox-studio/oxdef-sub002/pkg/macro"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxlog"
	"github.com/the-ox-studio/oxdef-sub002/pkg/parser"
	"github.com/the-ox-studio/oxdef-sub002/pkg/pathresolve"
	"github.com/the-ox-studio/oxdef-sub002/pkg/resolve"
	"github.com/the-ox-studio/oxdef-sub002/pkg/tagreg"
	"github.com/the-ox-studio/oxdef-sub002/pkg/template"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

// Project bundles everything a build needs that is configured once and
// reused across every file a build touches: the file cache, the path
// resolver, tag capabilities, macro hooks, and registered data
// providers. A Project is safe to Run multiple times; each Run gets its
// own import graph and diagnostics, but shares the same file cache.
type Project struct {
	cfg *config.Config

	loader   *fileloader.Loader
	resolver *pathresolve.Resolver

	capabilities map[string]tagreg.Capability
	handlers     macro.Handlers
	dataRegistry *datasource.Registry
	dataRunner   *datasource.Runner
	logger       oxlog.Logger
}

// New builds a Project over fs (the backing filesystem the loader reads
// through), configured per cfg's resource budgets and behavior toggles.
// Logging is a no-op until SetLogger installs a real one.
func New(cfg *config.Config, fs fileloader.FileSystem) *Project {
	dataRegistry := datasource.NewRegistry()
	return &Project{
		cfg:          cfg,
		loader:       fileloader.New(fs, cfg.Resources.MaxFileSize, cfg.Resources.MaxCacheSize, cfg.Behavior.EnableCacheEviction),
		resolver:     pathresolve.NewResolver(cfg),
		capabilities: make(map[string]tagreg.Capability),
		dataRegistry: dataRegistry,
		dataRunner:   datasource.NewRunner(dataRegistry),
		logger:       oxlog.Nop(),
	}
}

// SetLogger installs l as the destination for this Project's stage and
// diagnostic logging (entry parse, per-run file/diagnostic counts,
// processing failures). Mirrors SetMacroHandlers: optional, defaults to
// a no-op logger so callers that don't care about logs don't pay for it.
func (p *Project) SetLogger(l oxlog.Logger) {
	p.logger = l
}

// RegisterCapability installs a tag's capability contract, honored by
// every file this Project processes (spec.md §6's TagCapabilities trait:
// "registered before parsing").
func (p *Project) RegisterCapability(name string, cap tagreg.Capability) {
	p.capabilities[name] = cap
}

// RegisterDataProvider installs the provider backing on-data directives
// named id, honored by every file this Project processes.
func (p *Project) RegisterDataProvider(id string, provider datasource.Provider) {
	p.dataRegistry.Register(id, provider)
}

// SetMacroHandlers installs the onParse/onWalk hooks for this Project's
// builds (spec.md §6's MacroHandlers trait).
func (p *Project) SetMacroHandlers(h macro.Handlers) {
	p.handlers = h
}

// Stats reports what one Run did: how much file-loading work it caused
// (sourced from the shared loader's own spec.md §4.12 counters, sampled
// before and after this Run so a Project reused across multiple Runs
// reports only the delta each time) and how many diagnostics it collected.
type Stats struct {
	FileCount        int
	CacheHits        int64
	CacheMisses      int64
	EvictionCount    int64
	TotalDiagnostics int
}

// Run drives spec.md §4.15's six steps against the configured entry
// file: load, onParse, recursive import resolution, recursive inject
// resolution, the per-file preprocessing pipeline, and finally — when
// the project is configured strict (the default) — surfacing any
// collected non-structural diagnostics as a returned error. The
// returned document is always populated on a non-structural failure
// path (callers that want partial results on a Strict error can ignore
// the error and inspect diags directly).
func (p *Project) Run(ctx context.Context) (*ast.Document, *oxerrors.Diagnostics, Stats, error) {
	diags := oxerrors.NewDiagnostics()
	before := p.loader.CacheStats()

	entryPath := filepath.Join(p.cfg.BaseDir, p.cfg.EntryFile)
	loc := token.Location{File: entryPath}

	content, lerr := p.loader.Load(ctx, entryPath, loc)
	if lerr != nil {
		return nil, diags, p.stats(before, diags), lerr
	}

	doc, perr := parser.Parse(entryPath, content,
		parser.WithMergeFreeText(p.cfg.Behavior.MergeFreeText),
		parser.WithMaxWhileIterations(p.cfg.Resources.MaxWhileIterations))
	if perr != nil {
		// A handful of parse-time checks (spec.md §3's duplicate property
		// key) are already typed oxerrors.Error values; preserve their Kind
		// instead of flattening every parse failure into FileNotFound.
		if oxErr, ok := perr.(*oxerrors.Error); ok {
			return nil, diags, p.stats(before, diags), oxErr
		}
		return nil, diags, p.stats(before, diags), oxerrors.New(oxerrors.FileNotFound, loc, "parsing entry file %q: %v", entryPath, perr)
	}

	p.logger.Info("parsed entry file %s", entryPath)

	macroState := macro.NewState(p.handlers)
	if err := macroState.RunOnParse(doc); err != nil {
		return doc, diags, p.stats(before, diags), oxerrors.New(oxerrors.MacroAbortError, doc.Location, "%v", err)
	}
	if macroState.Finished() {
		return doc, diags, p.stats(before, diags), nil
	}

	r := &run{
		project: p,
		importDeps: importproc.Deps{
			Loader:   p.loader,
			Resolver: p.resolver,
			Graph:    importgraph.New(p.cfg.Resources.MaxImportDepth),
		},
		macroState: macroState,
	}
	r.injectDeps = injectproc.Deps{Loader: p.loader, Resolver: p.resolver, Graph: r.importDeps.Graph}

	if err := r.processDocument(ctx, doc, entryPath, diags); err != nil {
		p.logger.Error("processing %s failed: %v", entryPath, err)
		return doc, diags, p.stats(before, diags), err
	}
	p.logger.Info("processed %d file(s), %d diagnostic(s)", r.fileCount, len(diags.Errors())+len(diags.Warnings()))

	finalStats := p.statsWithFiles(before, diags, r.fileCount)
	if finalStats.EvictionCount > 0 {
		p.logger.Warn("file cache evicted %d entries during this run", finalStats.EvictionCount)
	}

	if p.cfg.Behavior.Strict {
		if err := diags.Surface(); err != nil {
			return doc, diags, finalStats, err
		}
	}
	return doc, diags, finalStats, nil
}

// stats builds a Stats snapshot with FileCount left at zero, for the
// early-return paths that never reach a run (no files beyond the entry
// load were touched).
func (p *Project) stats(before fileloader.Stats, diags *oxerrors.Diagnostics) Stats {
	return p.statsWithFiles(before, diags, 0)
}

func (p *Project) statsWithFiles(before fileloader.Stats, diags *oxerrors.Diagnostics, fileCount int) Stats {
	after := p.loader.CacheStats()
	return Stats{
		FileCount:        fileCount,
		CacheHits:        after.Hits - before.Hits,
		CacheMisses:      after.Misses - before.Misses,
		EvictionCount:    after.EvictionCount - before.EvictionCount,
		TotalDiagnostics: len(diags.Errors()) + len(diags.Warnings()),
	}
}

// run holds the per-Run state: the import graph (shared by the import
// and inject processors so cycle detection spans both), and the single
// macro.State carried across the entry file and every inject it pulls
// in, so onWalk sees one coherent traversal session for the whole
// build. run implements injectproc.Evaluator, the callback the inject
// processor needs to fully preprocess an injected file in isolation.
type run struct {
	project    *Project
	importDeps importproc.Deps
	injectDeps injectproc.Deps
	macroState *macro.State
	fileCount  int
}

// Evaluate implements injectproc.Evaluator: it runs the full per-file
// pipeline against doc in a freshly scoped tag/reference registry,
// isolated from whatever document triggered the inject, and reports the
// resulting top-level nodes plus any diagnostics collected along the
// way.
func (r *run) Evaluate(ctx context.Context, doc *ast.Document, absPath string) ([]ast.Node, *oxerrors.Diagnostics, *oxerrors.Error) {
	diags := oxerrors.NewDiagnostics()
	if err := r.processDocument(ctx, doc, absPath, diags); err != nil {
		return nil, diags, err
	}
	return doc.Children, diags, nil
}

// processDocument runs spec.md §4.15 steps 3-5 against a single document
// (the entry file, or an injected file evaluated in isolation): tag
// definition scan, import resolution, inject resolution, tag instance
// expansion, module property injection, data-source prefetch warming,
// template expansion, and two-pass reference resolution. Structural
// failures abort immediately; everything else collects into diags.
func (r *run) processDocument(ctx context.Context, doc *ast.Document, absPath string, diags *oxerrors.Diagnostics) *oxerrors.Error {
	r.fileCount++
	registry := tagreg.NewRegistry()
	for name, cap := range r.project.capabilities {
		registry.SetCapability(name, cap)
	}
	// Scan this file's own @tag definitions before merging in imports, so
	// a later import can override an earlier local definition the same
	// way a later import overrides an earlier one (last-writer-wins).
	for _, e := range registry.ScanDefinitions(doc) {
		diags.AddError(e)
	}
	if err := importproc.Process(ctx, doc, absPath, registry, r.importDeps, diags); err != nil {
		return err
	}

	children, err := injectproc.Process(ctx, doc.Children, absPath, r, r.injectDeps, diags)
	if err != nil {
		return err
	}
	doc.Children = children

	expanded, errs := registry.ExpandInstances(doc.Children)
	for _, e := range errs {
		diags.AddError(e)
	}
	doc.Children = expanded

	for _, e := range registry.InjectModuleProperties(doc) {
		diags.AddError(e)
	}

	// Best-effort concurrency warm-up for spec.md §5's "may begin work on
	// independent on-data siblings concurrently": only the on-data nodes
	// sitting directly at this document's top level are known independent
	// before expansion descends into blocks, so that is as far as
	// prefetching reaches; nested on-data nodes still run correctly, just
	// without the warm cache, when the expander reaches them.
	if nodes := topLevelOnData(doc.Children); len(nodes) > 0 {
		_ = r.project.dataRunner.Prefetch(ctx, nodes)
	}

	refReg, errs := resolve.BuildRegistry(doc)
	for _, e := range errs {
		diags.AddError(e)
	}
	rv := resolve.NewResolver(refReg)

	expander := template.NewExpander(rv, r.macroState, r.project.dataRunner)
	for _, e := range expander.Expand(doc) {
		if e.Structural() {
			return e
		}
		diags.AddError(e)
	}

	for _, e := range rv.ResolveAll(doc) {
		if e.Structural() {
			return e
		}
		diags.AddError(e)
	}
	return nil
}

func topLevelOnData(nodes []ast.Node) []*ast.OnDataTemplate {
	var out []*ast.OnDataTemplate
	for _, n := range nodes {
		if od, ok := n.(*ast.OnDataTemplate); ok {
			out = append(out, od)
		}
	}
	return out
}
