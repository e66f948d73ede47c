// Package ast defines the OX abstract syntax tree (spec.md §3).
//
// Unlike a transpiler targeting Go, OX has no host-language AST to piggy
// back on: it is its own block-structured data-interchange format, so the
// tree here is a small closed set of tagged-union node kinds (Document,
// Block, Tag, Value, Reference, FreeText, Template) rather than a wrapper
// around go/ast. Every node carries a Location for diagnostics.
package ast

import "github.com/the-ox-studio/oxdef-sub002/pkg/token"

// Node is implemented by every AST node.
type Node interface {
	Loc() token.Location
}

// Document is the parse result of a single OX source file.
type Document struct {
	File     string
	Imports  []*Import
	Injects  []*Inject // top-level injects only
	Children []Node    // Block | FreeText | TemplateNode, in source order
	Location token.Location
}

func (d *Document) Loc() token.Location { return d.Location }

// Tag is a sigil-prefixed label attached to a block or free-text node.
type TagKind int

const (
	TagDefinition TagKind = iota // @name
	TagInstance                  // #name
)

type Tag struct {
	Kind      TagKind
	Name      string
	Argument  string // optional, "" if absent
	Namespace string // set only on instances after a namespaced import
	Location  token.Location
}

func (t *Tag) Loc() token.Location { return t.Location }

// Key returns the tag-registry lookup key for a definition/instance tag:
// "name" or "name(argument)", optionally namespace-prefixed.
func (t *Tag) Key() string {
	k := t.Name
	if t.Argument != "" {
		k = t.Name + "(" + t.Argument + ")"
	}
	if t.Namespace != "" {
		k = t.Namespace + "." + k
	}
	return k
}

// Block is a bracket-delimited named record.
type Block struct {
	ID         string // optional; "" if absent
	Tags       []*Tag
	Properties *PropertyList
	Children   []Node // Block | FreeText | TemplateNode
	Injects    []*Inject // child-position injects inline among Children
	Location   token.Location
}

func (b *Block) Loc() token.Location { return b.Location }

// PropertyList preserves property insertion order end to end.
type PropertyList struct {
	keys   []string
	values map[string]Value
}

func NewPropertyList() *PropertyList {
	return &PropertyList{values: make(map[string]Value)}
}

// Set inserts or overwrites a property, preserving first-insertion order on
// overwrite. Returns false if key already existed before this call (callers
// use this to detect the duplicate-key-in-one-property-list error).
func (p *PropertyList) Set(key string, v Value) bool {
	if _, exists := p.values[key]; exists {
		p.values[key] = v
		return false
	}
	p.keys = append(p.keys, key)
	p.values[key] = v
	return true
}

func (p *PropertyList) Get(key string) (Value, bool) {
	v, ok := p.values[key]
	return v, ok
}

func (p *PropertyList) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

func (p *PropertyList) Keys() []string { return p.keys }

func (p *PropertyList) Len() int { return len(p.keys) }

// Clone performs a deep-enough copy for template expansion: same key
// order, independently mutable value slots.
func (p *PropertyList) Clone() *PropertyList {
	np := NewPropertyList()
	for _, k := range p.keys {
		np.Set(k, CloneValue(p.values[k]))
	}
	return np
}

// Value is the tagged union of property/array element values.
type Value interface {
	Node
	valueNode()
}

// Literal wraps a primitive: nil, bool, int64, float64, or string.
type Literal struct {
	Value    interface{}
	Location token.Location
}

func (l *Literal) Loc() token.Location { return l.Location }
func (*Literal) valueNode()            {}

// Array is an ordered list of Values.
type Array struct {
	Elements []Value
	Location token.Location
}

func (a *Array) Loc() token.Location { return a.Location }
func (*Array) valueNode()            {}

// Expression holds an unevaluated token list, resolved lazily by the
// expression evaluator (pkg/eval) during template expansion / reference
// resolution.
type Expression struct {
	Tokens   []token.Token
	Resolved bool
	Cached   Value
	Location token.Location
}

func (e *Expression) Loc() token.Location { return e.Location }
func (*Expression) valueNode()            {}

// ReferenceHead identifies the anchor of a $-reference.
type ReferenceHead int

const (
	RefThis ReferenceHead = iota
	RefParent
	RefBlockID
)

// Reference is a $-prefixed symbolic expression (spec.md §4.6).
type Reference struct {
	Head     ReferenceHead
	BlockID  string // set only when Head == RefBlockID
	Chain    []string
	Resolved bool
	Cached   Value
	Location token.Location
}

func (r *Reference) Loc() token.Location { return r.Location }
func (*Reference) valueNode()            {}

// FreeTextRef lets a property value point at a sibling free-text node's
// rendered value (spec.md's "FreeText child reference" Value variant).
type FreeTextRef struct {
	Target   *FreeText
	Location token.Location
}

func (f *FreeTextRef) Loc() token.Location { return f.Location }
func (*FreeTextRef) valueNode()            {}

// FreeText is a triple-backtick-delimited literal string child of a block.
type FreeText struct {
	Value    string
	Tags     []*Tag
	RawText  string // pre-dedent text, kept for merge-suppression decisions
	DelimLen int
	Location token.Location
}

func (f *FreeText) Loc() token.Location { return f.Location }

// SameTags reports whether two FreeText nodes carry identical tag lists
// (same name/argument/namespace, in order) — the adjacency-merge test.
func (f *FreeText) SameTags(other *FreeText) bool {
	if len(f.Tags) != len(other.Tags) {
		return false
	}
	for i, t := range f.Tags {
		o := other.Tags[i]
		if t.Kind != o.Kind || t.Name != o.Name || t.Argument != o.Argument || t.Namespace != o.Namespace {
			return false
		}
	}
	return true
}

// Import is a top-level directive making a file's tag definitions visible,
// optionally under a namespace alias.
type Import struct {
	Path     string
	Alias    string // "" if no "as" clause
	Location token.Location
}

func (i *Import) Loc() token.Location { return i.Location }

// Inject evaluates another file independently and splices its resulting
// block subtree at the inject site.
type Inject struct {
	Path     string
	Location token.Location
}

func (i *Inject) Loc() token.Location { return i.Location }

// TemplateNode is the tagged union of control-flow directives.
type TemplateNode interface {
	Node
	templateNode()
}

type SetTemplate struct {
	Name     string
	Value    Value // Expression
	Location token.Location
}

func (s *SetTemplate) Loc() token.Location { return s.Location }
func (*SetTemplate) templateNode()         {}

type ElseIfBranch struct {
	Cond     Value
	Children []Node
	Location token.Location
}

type IfTemplate struct {
	Cond     Value
	Children []Node
	ElseIfs  []*ElseIfBranch
	Else     []Node // nil if no else clause
	Location token.Location
}

func (i *IfTemplate) Loc() token.Location { return i.Location }
func (*IfTemplate) templateNode()         {}

type ForeachTemplate struct {
	LoopVar  string
	IndexVar string // "" if absent
	Iterable Value
	Children []Node
	Location token.Location
}

func (f *ForeachTemplate) Loc() token.Location { return f.Location }
func (*ForeachTemplate) templateNode()         {}

type WhileTemplate struct {
	Cond         Value
	Children     []Node
	MaxIterations int
	Location     token.Location
}

func (w *WhileTemplate) Loc() token.Location { return w.Location }
func (*WhileTemplate) templateNode()         {}

type OnDataTemplate struct {
	ID          string
	Properties  *PropertyList
	Children    []Node
	ErrorChildren []Node // nil if no on-error clause
	Location    token.Location
}

func (o *OnDataTemplate) Loc() token.Location { return o.Location }
func (*OnDataTemplate) templateNode()         {}

// CloneValue deep-clones a Value for template expansion (foreach bodies,
// reused tag definitions), producing fresh, unresolved state.
func CloneValue(v Value) Value {
	switch x := v.(type) {
	case nil:
		return nil
	case *Literal:
		cp := *x
		return &cp
	case *Array:
		elems := make([]Value, len(x.Elements))
		for i, e := range x.Elements {
			elems[i] = CloneValue(e)
		}
		return &Array{Elements: elems, Location: x.Location}
	case *Expression:
		toks := make([]token.Token, len(x.Tokens))
		copy(toks, x.Tokens)
		return &Expression{Tokens: toks, Location: x.Location}
	case *Reference:
		chain := make([]string, len(x.Chain))
		copy(chain, x.Chain)
		return &Reference{Head: x.Head, BlockID: x.BlockID, Chain: chain, Location: x.Location}
	case *FreeTextRef:
		cp := *x
		return &cp
	default:
		return v
	}
}

// CloneNode deep-clones a single child node (Block, FreeText, or
// TemplateNode) with fresh Location-bearing structure, per spec.md §3
// ("Clones are made when a template expands into multiple copies").
func CloneNode(n Node) Node {
	switch x := n.(type) {
	case *Block:
		return cloneBlock(x)
	case *FreeText:
		cp := *x
		tags := make([]*Tag, len(x.Tags))
		for i, t := range x.Tags {
			tc := *t
			tags[i] = &tc
		}
		cp.Tags = tags
		return &cp
	case *SetTemplate:
		cp := *x
		cp.Value = CloneValue(x.Value)
		return &cp
	case *IfTemplate:
		return cloneIf(x)
	case *ForeachTemplate:
		return cloneForeach(x)
	case *WhileTemplate:
		return cloneWhile(x)
	case *OnDataTemplate:
		return cloneOnData(x)
	case *Inject:
		cp := *x
		return &cp
	default:
		return n
	}
}

func cloneChildren(children []Node) []Node {
	out := make([]Node, len(children))
	for i, c := range children {
		out[i] = CloneNode(c)
	}
	return out
}

func cloneBlock(b *Block) *Block {
	tags := make([]*Tag, len(b.Tags))
	for i, t := range b.Tags {
		tc := *t
		tags[i] = &tc
	}
	var props *PropertyList
	if b.Properties != nil {
		props = b.Properties.Clone()
	}
	var injects []*Inject
	for _, inj := range b.Injects {
		ic := *inj
		injects = append(injects, &ic)
	}
	return &Block{
		ID:         b.ID,
		Tags:       tags,
		Properties: props,
		Children:   cloneChildren(b.Children),
		Injects:    injects,
		Location:   b.Location,
	}
}

func cloneIf(i *IfTemplate) *IfTemplate {
	var elseifs []*ElseIfBranch
	for _, e := range i.ElseIfs {
		elseifs = append(elseifs, &ElseIfBranch{
			Cond:     CloneValue(e.Cond),
			Children: cloneChildren(e.Children),
			Location: e.Location,
		})
	}
	var elseChildren []Node
	if i.Else != nil {
		elseChildren = cloneChildren(i.Else)
	}
	return &IfTemplate{
		Cond:     CloneValue(i.Cond),
		Children: cloneChildren(i.Children),
		ElseIfs:  elseifs,
		Else:     elseChildren,
		Location: i.Location,
	}
}

func cloneForeach(f *ForeachTemplate) *ForeachTemplate {
	return &ForeachTemplate{
		LoopVar:  f.LoopVar,
		IndexVar: f.IndexVar,
		Iterable: CloneValue(f.Iterable),
		Children: cloneChildren(f.Children),
		Location: f.Location,
	}
}

func cloneWhile(w *WhileTemplate) *WhileTemplate {
	return &WhileTemplate{
		Cond:          CloneValue(w.Cond),
		Children:      cloneChildren(w.Children),
		MaxIterations: w.MaxIterations,
		Location:      w.Location,
	}
}

func cloneOnData(o *OnDataTemplate) *OnDataTemplate {
	var props *PropertyList
	if o.Properties != nil {
		props = o.Properties.Clone()
	}
	var errChildren []Node
	if o.ErrorChildren != nil {
		errChildren = cloneChildren(o.ErrorChildren)
	}
	return &OnDataTemplate{
		ID:            o.ID,
		Properties:    props,
		Children:      cloneChildren(o.Children),
		ErrorChildren: errChildren,
		Location:      o.Location,
	}
}
