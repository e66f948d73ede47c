package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/parser"
)

func parseDoc(t *testing.T, src string) *ast.Document {
	t.Helper()
	doc, err := parser.Parse("test.ox", []byte(src))
	require.NoError(t, err)
	return doc
}

func litValue(t *testing.T, v ast.Value) interface{} {
	t.Helper()
	lit, ok := v.(*ast.Literal)
	require.True(t, ok, "expected *ast.Literal, got %T", v)
	return lit.Value
}

// TestResolveForwardSiblingAndParent mirrors spec.md §8 scenario 2.
func TestResolveForwardSiblingAndParent(t *testing.T) {
	doc := parseDoc(t, `
[Container (width: 400)
	[Header (size: ($Content.width + 10))]
	[Content (width: ($parent.width - 20))]
]`)
	reg, regErrs := BuildRegistry(doc)
	require.Empty(t, regErrs)

	rv := NewResolver(reg)
	errs := rv.ResolveAll(doc)
	require.Empty(t, errs)

	header, ok := reg.Lookup("Header")
	require.True(t, ok)
	size, ok := header.Properties.Get("size")
	require.True(t, ok)
	require.Equal(t, int64(390), litValue(t, size))

	content, ok := reg.Lookup("Content")
	require.True(t, ok)
	width, ok := content.Properties.Get("width")
	require.True(t, ok)
	require.Equal(t, int64(380), litValue(t, width))
}

func TestResolveThisReference(t *testing.T) {
	doc := parseDoc(t, `[Box (width: 10, area: ($this.width * $this.width))]`)
	reg, regErrs := BuildRegistry(doc)
	require.Empty(t, regErrs)
	rv := NewResolver(reg)
	require.Empty(t, rv.ResolveAll(doc))

	box, _ := reg.Lookup("Box")
	area, _ := box.Properties.Get("area")
	require.Equal(t, int64(100), litValue(t, area))
}

func TestResolveParentAtDocumentRootErrors(t *testing.T) {
	doc := parseDoc(t, `[Root (x: ($parent.width))]`)
	reg, regErrs := BuildRegistry(doc)
	require.Empty(t, regErrs)
	rv := NewResolver(reg)
	errs := rv.ResolveAll(doc)
	require.Len(t, errs, 1)
	require.Equal(t, oxerrors.UnresolvedReference, errs[0].Kind)
}

func TestResolveUnknownBlockIDErrors(t *testing.T) {
	doc := parseDoc(t, `[Root (x: ($Nope.width))]`)
	reg, regErrs := BuildRegistry(doc)
	require.Empty(t, regErrs)
	rv := NewResolver(reg)
	errs := rv.ResolveAll(doc)
	require.Len(t, errs, 1)
	require.Equal(t, oxerrors.UnresolvedReference, errs[0].Kind)
}

func TestResolveArrayLength(t *testing.T) {
	doc := parseDoc(t, `[Root (items: {1, 2, 3}, count: ($this.items.length))]`)
	reg, regErrs := BuildRegistry(doc)
	require.Empty(t, regErrs)
	rv := NewResolver(reg)
	require.Empty(t, rv.ResolveAll(doc))

	root, _ := reg.Lookup("Root")
	count, _ := root.Properties.Get("count")
	require.Equal(t, int64(3), litValue(t, count))
}

func TestBuildRegistryDuplicateSiblingIDErrors(t *testing.T) {
	doc := parseDoc(t, `
[Parent
	[Dup (x: 1)]
	[Dup (x: 2)]
]`)
	_, errs := BuildRegistry(doc)
	require.Len(t, errs, 1)
	require.Equal(t, oxerrors.DuplicateBlockID, errs[0].Kind)
}

func TestResolveCircularPropertyReferenceErrors(t *testing.T) {
	doc := parseDoc(t, `[Cycle (a: ($this.b), b: ($this.a))]`)
	reg, regErrs := BuildRegistry(doc)
	require.Empty(t, regErrs)
	rv := NewResolver(reg)
	errs := rv.ResolveAll(doc)
	require.NotEmpty(t, errs)
	require.Equal(t, oxerrors.CircularReferenceError, errs[0].Kind)
}
