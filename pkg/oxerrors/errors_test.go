package oxerrors

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

func TestErrorFormatting(t *testing.T) {
	e := New(UnresolvedReference, token.Location{File: "a.ox", Line: 3, Column: 5}, "no block with id %q", "Foo")
	require.Contains(t, e.Error(), "UnresolvedReference")
	require.Contains(t, e.Error(), "a.ox:3:5")
	require.Contains(t, e.Error(), `"Foo"`)
}

func TestErrorSuggestion(t *testing.T) {
	e := New(UnresolvedReference, token.Location{}, "no block with id %q", "Foo").WithSuggestion("FooBar")
	require.Contains(t, e.Error(), "did you mean FooBar")
}

func TestDiagnosticsCollectThenSurface(t *testing.T) {
	d := NewDiagnostics()
	require.False(t, d.HasErrors())
	d.AddWarning(New(DuplicateTagDefinition, token.Location{}, "warn"))
	require.False(t, d.HasErrors())
	d.AddError(New(EvaluationError, token.Location{}, "boom"))
	require.True(t, d.HasErrors())
	require.Len(t, d.Warnings(), 1)
	require.Error(t, d.Surface())
}

func TestStructuralClassification(t *testing.T) {
	require.True(t, New(PathTraversalError, token.Location{}, "x").Structural())
	require.False(t, New(EvaluationError, token.Location{}, "x").Structural())
}

func TestDiagnosticsMarshalJSON(t *testing.T) {
	d := NewDiagnostics()
	d.AddError(New(UnresolvedReference, token.Location{File: "a.ox", Line: 1, Column: 2}, "no block with id %q", "Foo").WithSuggestion("FooBar"))
	d.AddWarning(New(DuplicateTagDefinition, token.Location{File: "b.ox"}, "redefined"))

	raw, err := d.MarshalJSON()
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))

	errs := out["errors"].([]interface{})
	require.Len(t, errs, 1)
	first := errs[0].(map[string]interface{})
	require.Equal(t, "UnresolvedReference", first["kind"])
	require.Equal(t, "FooBar", first["suggestion"])
	require.Contains(t, first["location"], "a.ox")

	warns := out["warnings"].([]interface{})
	require.Len(t, warns, 1)
	require.Equal(t, "DuplicateTagDefinition", warns[0].(map[string]interface{})["kind"])
}

func TestDiagnosticsMarshalJSONOmitsEmptySuggestion(t *testing.T) {
	d := NewDiagnostics()
	d.AddError(New(EvaluationError, token.Location{}, "boom"))
	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	require.NotContains(t, string(raw), "suggestion")
}
