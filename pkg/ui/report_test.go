package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

func TestReporterPrintMethodsDoNotPanic(t *testing.T) {
	r := NewReporter()
	r.PrintHeader("0.1.0")
	r.PrintFileStart("entry.ox")
	r.PrintStage("Process", StageOK, 12*time.Millisecond)
	r.PrintStage("Process", StageWarning, time.Millisecond)
	r.PrintStage("Process", StageError, 0)

	diags := oxerrors.NewDiagnostics()
	diags.AddError(oxerrors.New(oxerrors.UnresolvedReference, token.Location{File: "a.ox", Line: 1, Column: 1}, "missing %q", "x"))
	diags.AddWarning(oxerrors.New(oxerrors.DuplicateTagDefinition, token.Location{File: "a.ox", Line: 2, Column: 1}, "dup %q", "y"))
	r.PrintDiagnostics(diags)

	r.PrintSummary(true, "")
	r.PrintSummary(false, "boom")
}

func TestDumpDocumentRendersBlockTreeAndProperties(t *testing.T) {
	props := ast.NewPropertyList()
	props.Set("title", &ast.Literal{Value: "Home"})

	child := &ast.Block{ID: "Child"}
	root := &ast.Block{
		ID:         "App",
		Tags:       []*ast.Tag{{Kind: ast.TagDefinition, Name: "widget"}},
		Properties: props,
		Children:   []ast.Node{child},
	}
	doc := &ast.Document{Children: []ast.Node{root}}

	out := DumpDocument(doc)
	require.Contains(t, out, "App")
	require.Contains(t, out, "title")
	require.Contains(t, out, "Home")
	require.Contains(t, out, "Child")
}

func TestDumpDocumentHandlesBlockWithoutID(t *testing.T) {
	props := ast.NewPropertyList()
	root := &ast.Block{Properties: props}
	doc := &ast.Document{Children: []ast.Node{root}}

	out := DumpDocument(doc)
	require.Contains(t, out, "[block]")
}
