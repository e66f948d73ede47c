package tagreg

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

func TestScanDefinitionsRegistersByKey(t *testing.T) {
	doc := parseDoc(t, `@widget [(color: "blue")]`)
	r := NewRegistry()
	errs := r.ScanDefinitions(doc)
	require.Empty(t, errs)
	def, ok := r.Definition("widget")
	require.True(t, ok)
	require.NotNil(t, def)
}

func TestScanDefinitionsDuplicateKeyErrors(t *testing.T) {
	doc := parseDoc(t, `
@widget [(color: "blue")]
@widget [(color: "red")]`)
	r := NewRegistry()
	errs := r.ScanDefinitions(doc)
	require.Len(t, errs, 1)
	require.Equal(t, oxerrors.DuplicateTagDefinition, errs[0].Kind)
}

func TestExpandInstancesMergesPropertiesInstanceWins(t *testing.T) {
	doc := parseDoc(t, `
@widget [(color: "blue", size: "small")]
#widget [(color: "red")]`)
	r := NewRegistry()
	require.Empty(t, r.ScanDefinitions(doc))
	r.SetCapability("widget", Capability{CanReuse: true})

	// Only expand the instance node (second top-level child).
	instances := []ast.Node{doc.Children[1]}
	out, errs := r.ExpandInstances(instances)
	require.Empty(t, errs)
	require.Len(t, out, 1)

	block := out[0].(*ast.Block)
	color, ok := block.Properties.Get("color")
	require.True(t, ok)
	require.Equal(t, "red", color.(*ast.Literal).Value)

	size, ok := block.Properties.Get("size")
	require.True(t, ok)
	require.Equal(t, "small", size.(*ast.Literal).Value)
}

func TestExpandInstancesSplicesChildrenWhenAcceptChildren(t *testing.T) {
	doc := parseDoc(t, `
@container [
	[(id: "base")]
]
#container [
	[(id: "extra")]
]`)
	r := NewRegistry()
	require.Empty(t, r.ScanDefinitions(doc))
	r.SetCapability("container", Capability{CanReuse: true, AcceptChildren: true})

	instances := []ast.Node{doc.Children[1]}
	out, errs := r.ExpandInstances(instances)
	require.Empty(t, errs)
	block := out[0].(*ast.Block)
	require.Len(t, block.Children, 2)
}

func TestExpandInstancesUnregisteredCapabilityErrors(t *testing.T) {
	doc := parseDoc(t, `
@widget [(color: "blue")]
#widget []`)
	r := NewRegistry()
	require.Empty(t, r.ScanDefinitions(doc))
	// No SetCapability call.
	instances := []ast.Node{doc.Children[1]}
	_, errs := r.ExpandInstances(instances)
	require.Len(t, errs, 1)
	require.Equal(t, oxerrors.UnresolvedTagInstance, errs[0].Kind)
}

func TestExpandInstancesMissingDefinitionErrors(t *testing.T) {
	doc := parseDoc(t, `#widget []`)
	r := NewRegistry()
	r.SetCapability("widget", Capability{CanReuse: true})
	_, errs := r.ExpandInstances(doc.Children)
	require.Len(t, errs, 1)
	require.Equal(t, oxerrors.UnresolvedTagInstance, errs[0].Kind)
}

func TestInjectModulePropertiesWrapsLiteralAndConflict(t *testing.T) {
	doc := parseDoc(t, `#page [(title: "hi")]`)
	r := NewRegistry()
	r.SetCapability("page", Capability{
		Module: map[string]Getter{
			"generated": func(b *ast.Block) (interface{}, error) { return int64(42), nil },
			"title":     func(b *ast.Block) (interface{}, error) { return "shadowed", nil },
		},
	})
	errs := r.InjectModuleProperties(doc)
	require.Len(t, errs, 1)
	require.Equal(t, oxerrors.ModulePropertyConflict, errs[0].Kind)

	block := doc.Children[0].(*ast.Block)
	gen, ok := block.Properties.Get("generated")
	require.True(t, ok)
	require.Equal(t, int64(42), gen.(*ast.Literal).Value)
}

func TestInjectModulePropertiesSerializesObjectAsJSON(t *testing.T) {
	doc := parseDoc(t, `#page []`)
	r := NewRegistry()
	r.SetCapability("page", Capability{
		Module: map[string]Getter{
			"meta": func(b *ast.Block) (interface{}, error) {
				return map[string]interface{}{"k": "v"}, nil
			},
		},
	})
	errs := r.InjectModuleProperties(doc)
	require.Empty(t, errs)
	block := doc.Children[0].(*ast.Block)
	meta, ok := block.Properties.Get("meta")
	require.True(t, ok)
	require.IsType(t, "", meta.(*ast.Literal).Value)
}
