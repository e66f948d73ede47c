// Package oxerrors defines the OX preprocessor error kinds (spec.md §7)
// and a collect-then-surface Diagnostics accumulator. Parse-phase errors
// remain fail-fast local types in pkg/lexer/pkg/parser; everything from
// tag processing onward reports through this package so the orchestrator
// can decide, in one place, whether to short-circuit or continue. One
// parse-phase check is the exception: a duplicate property key within a
// single property list (spec.md §3) is raised as a fail-fast
// DuplicatePropertyKey *Error directly from pkg/parser, since it is
// already one of this package's named categories and gains nothing from
// a separate parser-local type.
package oxerrors

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

// Kind identifies one of the preprocess-phase error categories.
type Kind int

const (
	UnresolvedTagInstance Kind = iota
	DuplicateTagDefinition
	DuplicatePropertyKey
	InvalidTagArgument
	ModulePropertyConflict
	UnresolvedReference
	CircularReferenceError
	EvaluationError
	WhileLimitError
	DataSourceError
	CircularDependencyError
	MaxDepthExceeded
	PathTraversalError
	FileNotFound
	FileTooLarge
	InvalidImportAlias
	DuplicateBlockID
	MacroAbortError
)

var kindNames = map[Kind]string{
	UnresolvedTagInstance:   "UnresolvedTagInstance",
	DuplicateTagDefinition:  "DuplicateTagDefinition",
	DuplicatePropertyKey:    "DuplicatePropertyKey",
	InvalidTagArgument:      "InvalidTagArgument",
	ModulePropertyConflict:  "ModulePropertyConflict",
	UnresolvedReference:     "UnresolvedReference",
	CircularReferenceError:  "CircularReferenceError",
	EvaluationError:         "EvaluationError",
	WhileLimitError:         "WhileLimitError",
	DataSourceError:         "DataSourceError",
	CircularDependencyError: "CircularDependencyError",
	MaxDepthExceeded:        "MaxDepthExceeded",
	PathTraversalError:      "PathTraversalError",
	FileNotFound:            "FileNotFound",
	FileTooLarge:            "FileTooLarge",
	InvalidImportAlias:      "InvalidImportAlias",
	DuplicateBlockID:        "DuplicateBlockID",
	MacroAbortError:         "MacroAbortError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UnknownError"
}

// structural reports whether this kind short-circuits the current file
// per spec.md §7 ("structural errors... short-circuit the current file").
var structuralKinds = map[Kind]bool{
	PathTraversalError:      true,
	CircularDependencyError: true,
	MaxDepthExceeded:        true,
	FileNotFound:            true,
	FileTooLarge:            true,
	UnresolvedReference:     true,
	InvalidImportAlias:      true,
	MacroAbortError:         true,
	DuplicatePropertyKey:    true,
}

// Error is an OX preprocess-phase diagnostic: kind, message, location, and
// an optional "did you mean" suggestion.
type Error struct {
	Kind       Kind
	Message    string
	Loc        token.Location
	Suggestion string
}

// New builds an Error, formatting Message from format/args like fmt.Errorf.
func New(kind Kind, loc token.Location, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Loc: loc}
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s: %s", e.Loc, e.Kind, e.Message)
	if e.Suggestion != "" {
		fmt.Fprintf(&sb, " (did you mean %s?)", e.Suggestion)
	}
	return sb.String()
}

// WithSuggestion attaches a "did you mean" hint and returns e for chaining.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// Structural reports whether this error must short-circuit the current
// file's processing rather than being merely collected as a warning.
func (e *Error) Structural() bool {
	return structuralKinds[e.Kind]
}

// Diagnostics accumulates preprocess-phase errors and warnings across one
// project run, per spec.md §7's collect-then-surface policy.
type Diagnostics struct {
	errs  []*Error
	warns []*Error
}

func NewDiagnostics() *Diagnostics { return &Diagnostics{} }

func (d *Diagnostics) AddError(e *Error) {
	if e != nil {
		d.errs = append(d.errs, e)
	}
}

func (d *Diagnostics) AddWarning(e *Error) {
	if e != nil {
		d.warns = append(d.warns, e)
	}
}

func (d *Diagnostics) HasErrors() bool { return len(d.errs) > 0 }

func (d *Diagnostics) Errors() []*Error { return d.errs }

func (d *Diagnostics) Warnings() []*Error { return d.warns }

// Surface aggregates collected errors into a single error (nil if none).
// Warnings never surface as errors, regardless of strict.
func (d *Diagnostics) Surface() error {
	if len(d.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(d.errs))
	for i, e := range d.errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d preprocessing error(s):\n%s", len(d.errs), strings.Join(msgs, "\n"))
}

// jsonError is the wire shape one Error marshals to: string kind rather
// than the numeric Kind, so a consuming tool doesn't need this package's
// iota ordering to read a report.
type jsonError struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Location   string `json:"location"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (e *Error) toJSON() jsonError {
	return jsonError{
		Kind:       e.Kind.String(),
		Message:    e.Message,
		Location:   e.Loc.String(),
		Suggestion: e.Suggestion,
	}
}

// jsonDiagnostics is the wire shape of a whole Diagnostics report.
type jsonDiagnostics struct {
	Errors   []jsonError `json:"errors"`
	Warnings []jsonError `json:"warnings"`
}

// MarshalJSON renders the full diagnostics report (errors and warnings,
// each with a string kind, message, location, and optional suggestion) for
// hosts that want OX's findings as structured data instead of the terminal
// panel pkg/printer renders.
func (d *Diagnostics) MarshalJSON() ([]byte, error) {
	out := jsonDiagnostics{
		Errors:   make([]jsonError, len(d.errs)),
		Warnings: make([]jsonError, len(d.warns)),
	}
	for i, e := range d.errs {
		out.Errors[i] = e.toJSON()
	}
	for i, e := range d.warns {
		out.Warnings[i] = e.toJSON()
	}
	return json.Marshal(out)
}
