// Package importgraph tracks the stack of files currently being
// resolved through imports and injects (spec.md §4.11), detecting
// circular dependencies and enforcing a maximum nesting depth.
package importgraph

import (
	"strings"

	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

// Kind distinguishes an import frame from an inject frame. Both share the
// same stack and cycle/depth rules; the kind is recorded on each frame
// but is not part of a rendered cycle path, which lists file paths only.
type Kind int

const (
	Import Kind = iota
	Inject
)

func (k Kind) String() string {
	if k == Inject {
		return "inject"
	}
	return "import"
}

// frame is one entry in the resolution stack: an absolute path and
// whether it got there via import or inject.
type frame struct {
	path string
	kind Kind
}

// Graph is the resolution stack for one project run. It is not safe for
// concurrent use; the project orchestrator (§4.15) creates one per Run and
// shares it between the import and inject processors of every file that
// run touches.
type Graph struct {
	stack    []frame
	maxDepth int
}

// New builds a Graph enforcing maxDepth (spec.md §4.11's MaxDepthExceeded,
// default 50 via config.Resources.MaxImportDepth).
func New(maxDepth int) *Graph {
	if maxDepth <= 0 {
		maxDepth = 50
	}
	return &Graph{maxDepth: maxDepth}
}

// Enter pushes path onto the resolution stack, failing with
// CircularDependencyError if path is already on the stack, or
// MaxDepthExceeded if the push would exceed the configured depth limit.
func (g *Graph) Enter(path string, kind Kind, loc token.Location) *oxerrors.Error {
	for _, f := range g.stack {
		if f.path == path {
			return oxerrors.New(oxerrors.CircularDependencyError, loc,
				"circular dependency: %s", g.renderCycle(path))
		}
	}
	if len(g.stack) >= g.maxDepth {
		return oxerrors.New(oxerrors.MaxDepthExceeded, loc,
			"import/inject nesting exceeds maximum depth of %d", g.maxDepth)
	}
	g.stack = append(g.stack, frame{path: path, kind: kind})
	return nil
}

// Leave pops the most recently entered frame. It panics if the stack is
// empty, since that indicates a caller bug (an unmatched Leave), not a
// recoverable OX-level error.
func (g *Graph) Leave() {
	if len(g.stack) == 0 {
		panic("importgraph: Leave called on an empty graph")
	}
	g.stack = g.stack[:len(g.stack)-1]
}

// Depth reports the current stack depth.
func (g *Graph) Depth() int { return len(g.stack) }

// renderCycle builds the Cycle from the point path first appears on the
// stack back around to path again, and renders it per spec.md §4.11's
// exact format.
func (g *Graph) renderCycle(path string) string {
	start := 0
	for i, f := range g.stack {
		if f.path == path {
			start = i
			break
		}
	}
	paths := make([]string, 0, len(g.stack)-start+1)
	for _, f := range g.stack[start:] {
		paths = append(paths, f.path)
	}
	paths = append(paths, path)
	return Cycle{Path: paths}.String()
}

// Cycle is a closed loop of file paths, outermost-first, with the
// origin repeated at the end. Both Enter's CircularDependencyError and
// the invariant tests in pkg/importgraph's own suite need the identical
// arrow-joined rendering, so it lives as one named helper rather than
// being built ad hoc in two places.
type Cycle struct {
	Path []string
}

// String renders the cycle exactly as spec.md §4.11 specifies:
// "a.ox → b.ox → c.ox → a.ox".
func (c Cycle) String() string {
	return strings.Join(c.Path, " → ")
}

// Stack returns a snapshot of the current path stack, outermost first,
// for diagnostic rendering by callers.
func (g *Graph) Stack() []string {
	paths := make([]string, len(g.stack))
	for i, f := range g.stack {
		paths[i] = f.path
	}
	return paths
}
