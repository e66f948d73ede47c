// Package macro implements the macro subsystem of spec.md §4.9: a small
// state container plus a Cursor the template expander (pkg/template)
// threads through its onWalk hook, giving an embedding program limited
// control over traversal order without owning the traversal itself.
package macro

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
)

// OnParseFunc is invoked once before any preprocessing, with the raw,
// unresolved AST. Returning finish=true aborts the rest of the pipeline
// (spec.md §4.7: "calling finish() from it aborts the rest of the pipeline").
type OnParseFunc func(doc *ast.Document) (finish bool, err error)

// OnWalkFunc is invoked per block after its own properties are resolved and
// module properties injected, but before its children are expanded. It may
// drive the cursor itself or let the expander continue automatically.
type OnWalkFunc func(block, parent *ast.Block, cursor *Cursor) error

// Handlers bundles the optional macro hooks (spec.md §6's MacroHandlers).
type Handlers struct {
	OnParse OnParseFunc
	OnWalk  OnWalkFunc
}

// Driver is implemented by the template expander: it exposes just enough of
// its own traversal to satisfy the Cursor contract, without the macro
// package needing to know anything about template expansion itself.
type Driver interface {
	// Peek returns the next block in document walk order and its parent,
	// without advancing or evaluating it. ok is false at end of traversal.
	Peek() (block, parent *ast.Block, ok bool)
	// Invoke forces immediate evaluation of block (as if the expander had
	// reached it on its own) and advances past it.
	Invoke(block, parent *ast.Block) error
	// Back rewinds the traversal by one step. Returns an error if already
	// at the start.
	Back() error
}

// Cursor is the handle passed to OnWalkFunc. It must not be retained past
// the hook invocation that received it (spec.md §9: "implementations must
// not retain it across hook invocations").
type Cursor struct {
	driver    Driver
	err       error
	sessionID string
}

func NewCursor(driver Driver) *Cursor {
	return &Cursor{driver: driver, sessionID: uuid.NewString()}
}

// SessionID identifies this one onWalk invocation for logging/tracing —
// each Cursor is freshly constructed per block visited, so the id changes
// every call even for the same block revisited after a Back().
func (c *Cursor) SessionID() string { return c.sessionID }

// NextBlock peeks the next block in walk order without advancing.
func (c *Cursor) NextBlock() (block, parent *ast.Block, ok bool) {
	return c.driver.Peek()
}

// InvokeWalk forces evaluation of block now and advances the cursor past it.
func (c *Cursor) InvokeWalk(block, parent *ast.Block) error {
	if err := c.driver.Invoke(block, parent); err != nil {
		c.err = err
		return err
	}
	return nil
}

// Back rewinds the cursor by one step.
func (c *Cursor) Back() error {
	if err := c.driver.Back(); err != nil {
		c.err = err
		return err
	}
	return nil
}

// ThrowError aborts preprocessing with a user-defined message, recorded as
// an oxerrors.MacroAbortError at the hook's current position.
func (c *Cursor) ThrowError(loc ast.Node, message string) error {
	err := oxerrors.New(oxerrors.MacroAbortError, loc.Loc(), "%s", message)
	c.err = err
	return err
}

// Err returns the last error recorded by InvokeWalk/Back/ThrowError, if any.
func (c *Cursor) Err() error { return c.err }

// State is the small container spec.md §4.9 describes: hook registration,
// a visited-block set, and a finished flag short-circuiting remaining
// passes once set (by onParse's finish() or by Finish). A thrown macro
// error does not set it.
type State struct {
	Handlers Handlers
	visited  map[*ast.Block]bool
	finished bool
}

func NewState(h Handlers) *State {
	return &State{Handlers: h, visited: make(map[*ast.Block]bool)}
}

func (s *State) Finished() bool { return s.finished }

// Finish marks the macro session as finished, short-circuiting the rest of
// the preprocessing pipeline for the current file.
func (s *State) Finish() { s.finished = true }

// RunOnParse invokes the onParse hook, if any, with the raw parsed
// document. A nil handler is a no-op.
func (s *State) RunOnParse(doc *ast.Document) error {
	if s.Handlers.OnParse == nil {
		return nil
	}
	finish, err := s.Handlers.OnParse(doc)
	if err != nil {
		return fmt.Errorf("onParse macro hook: %w", err)
	}
	if finish {
		s.finished = true
	}
	return nil
}

// HasOnWalk reports whether an onWalk hook is registered, so the template
// expander can skip Cursor/Driver construction entirely when there is none.
func (s *State) HasOnWalk() bool { return s.Handlers.OnWalk != nil }

// RunOnWalk invokes the onWalk hook for block, if registered.
func (s *State) RunOnWalk(block, parent *ast.Block, cursor *Cursor) error {
	if s.Handlers.OnWalk == nil {
		return nil
	}
	return s.Handlers.OnWalk(block, parent, cursor)
}

// Visited reports whether block has already passed through onWalk.
func (s *State) Visited(block *ast.Block) bool { return s.visited[block] }

// MarkVisited records block as having passed through onWalk, so a
// cursor.Back() followed by re-reaching the same block does not
// double-invoke the hook's side effects from the expander's own loop.
func (s *State) MarkVisited(block *ast.Block) { s.visited[block] = true }
