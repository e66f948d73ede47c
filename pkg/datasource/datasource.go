// Package datasource implements the data-source processor of spec.md
// §4.8: it resolves an on-data template's provider by id, invokes it, and
// binds the result into the template expander's scope before the bound
// children are expanded. It implements pkg/template.DataSourceRunner.
package datasource

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/eval"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
)

// defaultVar is the scope variable an on-data result is bound to unless the
// node's properties override it with a "var" entry.
const defaultVar = "data"

// Provider fetches the value backing one on-data block. id is the
// provider identifier named by the on-data directive (`<on-data id>`);
// props are that directive's own properties, unresolved at this point
// (on-data nodes are template constructs, not ordinary blocks, so they
// never pass through pkg/resolve's property resolution).
type Provider func(ctx context.Context, id string, props *ast.PropertyList) (interface{}, error)

// Registry maps provider ids to their implementations, per spec.md §4.8's
// "an external data-provider function (configured at registry level)".
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register installs provider under id, replacing any earlier registration.
func (r *Registry) Register(id string, provider Provider) {
	r.providers[id] = provider
}

func (r *Registry) Lookup(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

type fetchResult struct {
	value interface{}
	err   error
	reqID string
}

// Runner executes on-data nodes against a Registry, optionally warmed by a
// concurrent Prefetch pass across independent siblings (spec.md §5:
// "parallelism across independent on-data nodes is permitted but not
// required"). Run itself always behaves as the single-threaded cooperative
// step §4.8 describes — Prefetch only lets that step be a cache hit.
type Runner struct {
	reg *Registry

	mu    sync.Mutex
	cache map[*ast.OnDataTemplate]fetchResult
}

func NewRunner(reg *Registry) *Runner {
	return &Runner{reg: reg, cache: make(map[*ast.OnDataTemplate]fetchResult)}
}

// Prefetch concurrently invokes the provider for every node in nodes,
// caching each result for the eventual Run call. Callers are responsible
// for only grouping nodes known to be independent of one another (no
// shared scope mutation between them) — typically the on-data siblings
// found directly in one block's children before template expansion walks
// that block. A provider panic or error for one node does not cancel the
// others; Prefetch always returns nil, surfacing failures later through
// Run's normal on-error handling.
func (r *Runner) Prefetch(ctx context.Context, nodes []*ast.OnDataTemplate) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, node := range nodes {
		node := node
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					r.mu.Lock()
					r.cache[node] = fetchResult{err: fmt.Errorf("data provider %q panicked: %v", node.ID, p)}
					r.mu.Unlock()
				}
			}()
			value, err := r.fetch(gctx, node)
			r.mu.Lock()
			r.cache[node] = value.withResult(err)
			r.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

type fetchValue struct {
	value interface{}
	reqID string
}

func (v fetchValue) withResult(err error) fetchResult {
	return fetchResult{value: v.value, err: err, reqID: v.reqID}
}

func (r *Runner) fetch(ctx context.Context, node *ast.OnDataTemplate) (fetchValue, error) {
	reqID := uuid.NewString()
	provider, ok := r.reg.Lookup(node.ID)
	if !ok {
		return fetchValue{reqID: reqID}, fmt.Errorf("no data provider registered for id %q", node.ID)
	}
	value, err := provider(ctx, node.ID, node.Properties)
	return fetchValue{value: value, reqID: reqID}, err
}

// Run implements pkg/template.DataSourceRunner. On success it binds the
// fetched value into scope (as "data", or the name given by the node's own
// "var" property) and returns the node's normal children; on failure it
// returns the on-error children, if any, and a DataSourceError.
func (r *Runner) Run(node *ast.OnDataTemplate, scope *eval.Scope, this, parent *ast.Block) ([]ast.Node, *oxerrors.Error) {
	result, cached := r.takeCached(node)
	if !cached {
		value, err := r.fetch(context.Background(), node)
		result = value.withResult(err)
	}

	if result.err != nil {
		return node.ErrorChildren, oxerrors.New(oxerrors.DataSourceError, node.Location,
			"data provider %q (request %s) failed: %v", node.ID, result.reqID, result.err)
	}

	scope.Set(varName(node), result.value)
	return node.Children, nil
}

func (r *Runner) takeCached(node *ast.OnDataTemplate) (fetchResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.cache[node]
	if ok {
		delete(r.cache, node)
	}
	return result, ok
}

// varName resolves the scope variable an on-data result binds to: "data"
// by default, overridden by a string "var" property on the node.
func varName(node *ast.OnDataTemplate) string {
	if node.Properties == nil {
		return defaultVar
	}
	v, ok := node.Properties.Get("var")
	if !ok {
		return defaultVar
	}
	lit, ok := v.(*ast.Literal)
	if !ok {
		return defaultVar
	}
	name, ok := lit.Value.(string)
	if !ok || name == "" {
		return defaultVar
	}
	return name
}
