package printer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

func TestPanelRendersCleanWhenEmpty(t *testing.T) {
	out := Panel(oxerrors.NewDiagnostics())
	require.Contains(t, out, "no diagnostics")
}

func TestPanelRendersErrorsBeforeWarnings(t *testing.T) {
	d := oxerrors.NewDiagnostics()
	d.AddWarning(oxerrors.New(oxerrors.DuplicateTagDefinition, token.Location{File: "a.ox"}, "redefined"))
	d.AddError(oxerrors.New(oxerrors.UnresolvedReference, token.Location{File: "b.ox"}, "no block %q", "Foo"))

	out := Panel(d)
	errIdx := indexOf(out, "UnresolvedReference")
	warnIdx := indexOf(out, "DuplicateTagDefinition")
	require.GreaterOrEqual(t, errIdx, 0)
	require.GreaterOrEqual(t, warnIdx, 0)
	require.Less(t, errIdx, warnIdx)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
