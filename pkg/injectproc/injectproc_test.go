package injectproc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/config"
	"github.com/the-ox-studio/oxdef-sub002/pkg/fileloader"
	"github.com/the-ox-studio/oxdef-sub002/pkg/importgraph"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/parser"
	"github.com/the-ox-studio/oxdef-sub002/pkg/pathresolve"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

type osFS struct{}

func (osFS) Exists(ctx context.Context, url string, _ ...interface{}) (bool, error) {
	_, err := os.Stat(url)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, nil
}

func (osFS) DownloadWithURL(ctx context.Context, url string, _ ...interface{}) ([]byte, error) {
	return os.ReadFile(url)
}

func newDeps(baseDir string) Deps {
	cfg := config.Default()
	cfg.BaseDir = baseDir
	return Deps{
		Loader:   fileloader.New(osFS{}, 0, 0, true),
		Resolver: pathresolve.NewResolver(cfg),
		Graph:    importgraph.New(cfg.Resources.MaxImportDepth),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// blockReturningEvaluator is a fake Evaluator returning the injected
// document's own top-level Children verbatim, as if the full pipeline
// were a no-op — enough to test splicing without wiring pkg/project.
type blockReturningEvaluator struct {
	diags *oxerrors.Diagnostics
	err   *oxerrors.Error
}

func (e *blockReturningEvaluator) Evaluate(ctx context.Context, doc *ast.Document, absPath string) ([]ast.Node, *oxerrors.Diagnostics, *oxerrors.Error) {
	if e.err != nil {
		return nil, nil, e.err
	}
	diags := e.diags
	if diags == nil {
		diags = oxerrors.NewDiagnostics()
	}
	return doc.Children, diags, nil
}

func blockIDs(nodes []ast.Node) []string {
	var ids []string
	for _, n := range nodes {
		if b, ok := n.(*ast.Block); ok {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

func TestProcessTopLevelInjectSplicesInPlace(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "child.ox"), `[Injected]`)
	entry := filepath.Join(base, "entry.ox")

	doc, err := parser.Parse(entry, []byte(`[A] <inject "./child"> [B]`))
	require.NoError(t, err)

	deps := newDeps(base)
	diags := oxerrors.NewDiagnostics()
	out, perr := Process(context.Background(), doc.Children, entry, &blockReturningEvaluator{}, deps, diags)
	require.Nil(t, perr)
	require.Equal(t, []string{"A", "Injected", "B"}, blockIDs(out))
}

func TestProcessBlockChildInjectSplicesInPlace(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "child.ox"), `[Injected]`)
	entry := filepath.Join(base, "entry.ox")

	doc, err := parser.Parse(entry, []byte(`[Doc [A] <inject "./child"> [B] ]`))
	require.NoError(t, err)

	deps := newDeps(base)
	diags := oxerrors.NewDiagnostics()
	out, perr := Process(context.Background(), doc.Children, entry, &blockReturningEvaluator{}, deps, diags)
	require.Nil(t, perr)
	require.Len(t, out, 1)

	docBlock := out[0].(*ast.Block)
	require.Equal(t, []string{"A", "Injected", "B"}, blockIDs(docBlock.Children))
	require.Empty(t, docBlock.Injects)
}

func TestProcessPropagatesEvaluatorDiagnostics(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "child.ox"), `[Injected]`)
	entry := filepath.Join(base, "entry.ox")

	doc, err := parser.Parse(entry, []byte(`<inject "./child">`))
	require.NoError(t, err)

	childDiags := oxerrors.NewDiagnostics()
	childDiags.AddWarning(oxerrors.New(oxerrors.DuplicateTagDefinition, token.Location{}, "warn"))

	deps := newDeps(base)
	diags := oxerrors.NewDiagnostics()
	_, perr := Process(context.Background(), doc.Children, entry, &blockReturningEvaluator{diags: childDiags}, deps, diags)
	require.Nil(t, perr)
	require.Len(t, diags.Warnings(), 1)
}

func TestProcessEvaluatorStructuralErrorAborts(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "child.ox"), `[Injected]`)
	entry := filepath.Join(base, "entry.ox")

	doc, err := parser.Parse(entry, []byte(`<inject "./child">`))
	require.NoError(t, err)

	fatal := oxerrors.New(oxerrors.EvaluationError, token.Location{}, "boom")
	deps := newDeps(base)
	diags := oxerrors.NewDiagnostics()
	_, perr := Process(context.Background(), doc.Children, entry, &blockReturningEvaluator{err: fatal}, deps, diags)
	require.NotNil(t, perr)
	require.Equal(t, oxerrors.EvaluationError, perr.Kind)
}

func TestProcessDetectsInjectCycle(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "a.ox"), `<inject "./b">`)
	writeFile(t, filepath.Join(base, "b.ox"), `<inject "./a">`)
	entry := filepath.Join(base, "a.ox")

	doc, err := parser.Parse(entry, []byte(`<inject "./b">`))
	require.NoError(t, err)

	deps := newDeps(base)
	deps.Graph.Enter(entry, importgraph.Inject, doc.Location)
	diags := oxerrors.NewDiagnostics()

	_, perr := Process(context.Background(), doc.Children, entry, &blockReturningEvaluator{}, deps, diags)
	require.NotNil(t, perr)
	require.Equal(t, oxerrors.CircularDependencyError, perr.Kind)
}

func TestProcessNestedBlockInjectRecursesMultipleLevels(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "leaf.ox"), `[Leaf]`)
	entry := filepath.Join(base, "entry.ox")

	doc, err := parser.Parse(entry, []byte(`[Outer [Inner <inject "./leaf"> ] ]`))
	require.NoError(t, err)

	deps := newDeps(base)
	diags := oxerrors.NewDiagnostics()
	out, perr := Process(context.Background(), doc.Children, entry, &blockReturningEvaluator{}, deps, diags)
	require.Nil(t, perr)

	outer := out[0].(*ast.Block)
	inner := outer.Children[0].(*ast.Block)
	require.Equal(t, []string{"Leaf"}, blockIDs(inner.Children))
}
