// Package parser implements the OX recursive-descent parser (spec.md §4.2).
//
// The parser shares one tag-lookahead routine between block-child position
// and document-root position, as mandated by the spec, and produces the
// pkg/ast tree directly rather than an intermediate parse tree.
package parser

import (
	"fmt"
	"strings"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/lexer"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

// DefaultMaxWhileIterations is the parser-level default recorded onto every
// WhileTemplate node; the template expander enforces it.
const DefaultMaxWhileIterations = 10000

// Error is a fatal parse error, fail-fast per spec.md §7.
type Error struct {
	Loc      token.Location
	Message  string
	Expected string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: parse error: %s", e.Loc, e.Message)
}

// Parser consumes a token stream and produces a Document.
type Parser struct {
	toks                []token.Token
	pos                 int
	mergeFreeText       bool
	maxWhileIterations  int
}

// Option configures a Parser.
type Option func(*Parser)

// WithMergeFreeText toggles adjacent free-text merging (default true).
func WithMergeFreeText(v bool) Option {
	return func(p *Parser) { p.mergeFreeText = v }
}

// WithMaxWhileIterations overrides the default while-loop iteration cap
// recorded onto parsed WhileTemplate nodes.
func WithMaxWhileIterations(n int) Option {
	return func(p *Parser) { p.maxWhileIterations = n }
}

// New builds a Parser over an already-lexed token stream.
func New(toks []token.Token, opts ...Option) *Parser {
	p := &Parser{toks: toks, mergeFreeText: true, maxWhileIterations: DefaultMaxWhileIterations}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse lexes and parses source text in one step.
func Parse(file string, src []byte, opts ...Option) (*ast.Document, error) {
	toks, err := lexer.New(file, src).Tokens()
	if err != nil {
		return nil, err
	}
	return New(toks, opts...).ParseDocument(file)
}

func (p *Parser) peek() token.Token { return p.toks[p.pos] }

func (p *Parser) peekAt(n int) token.Token {
	idx := p.pos + n
	if idx < 0 || idx >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF sentinel
	}
	return p.toks[idx]
}

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) eof() bool { return p.peek().Kind == token.EOF }

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	t := p.peek()
	if t.Kind != k {
		return token.Token{}, &Error{Loc: t.Loc, Message: fmt.Sprintf("expected %s, got %s", k, t.Kind), Expected: k.String()}
	}
	return p.advance(), nil
}

func (p *Parser) errorf(loc token.Location, format string, args ...interface{}) error {
	return &Error{Loc: loc, Message: fmt.Sprintf(format, args...)}
}

// peekAngleKeyword reports the keyword following an unconsumed '<', if any.
func (p *Parser) peekAngleKeyword() (token.Kind, bool) {
	if p.peek().Kind != token.LAngle {
		return 0, false
	}
	return p.peekAt(1).Kind, true
}

// ParseDocument parses a complete file into a Document.
func (p *Parser) ParseDocument(file string) (*ast.Document, error) {
	doc := &ast.Document{File: file, Location: token.Location{File: file, Line: 1, Column: 1}}
	for !p.eof() {
		t := p.peek()
		switch {
		case t.Kind == token.LAngle:
			kw := p.peekAt(1).Kind
			switch kw {
			case token.KwImport:
				n, err := p.parseAngleDirective(true)
				if err != nil {
					return nil, err
				}
				doc.Imports = append(doc.Imports, n.(*ast.Import))
			case token.KwInject:
				n, err := p.parseAngleDirective(true)
				if err != nil {
					return nil, err
				}
				// Mirrors parseBlock's Children+Injects pairing: the
				// inject keeps its place in document order while also
				// being indexed in Injects for quick top-level access.
				doc.Children = append(doc.Children, n)
				doc.Injects = append(doc.Injects, n.(*ast.Inject))
			default:
				n, err := p.parseAngleDirective(true)
				if err != nil {
					return nil, err
				}
				doc.Children = append(doc.Children, n)
			}
		case t.Kind == token.Hash || t.Kind == token.At:
			n, err := p.parseTaggedNode()
			if err != nil {
				return nil, err
			}
			doc.Children = append(doc.Children, n)
		case t.Kind == token.LBracket:
			n, err := p.parseBlock(nil)
			if err != nil {
				return nil, err
			}
			doc.Children = append(doc.Children, n)
		case t.Kind == token.FreeText:
			n, err := p.parseFreeTextNode(nil)
			if err != nil {
				return nil, err
			}
			doc.Children = append(doc.Children, n)
		default:
			return nil, p.errorf(t.Loc, "unexpected token %s at document top level", t.Kind)
		}
	}
	if p.mergeFreeText {
		doc.Children = mergeAdjacentFreeText(doc.Children)
	}
	return doc, nil
}

// collectTags implements the shared tag-lookahead routine: a run of
// consecutive sigil-prefixed tags, each optionally dotted (namespace
// prefixing applied later by the tag processor) and optionally carrying a
// parenthesized identifier argument.
func (p *Parser) collectTags() ([]*ast.Tag, error) {
	var tags []*ast.Tag
	for p.peek().Kind == token.Hash || p.peek().Kind == token.At {
		sigil := p.advance()
		kind := ast.TagInstance
		if sigil.Kind == token.At {
			kind = ast.TagDefinition
		}
		nameTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		name := nameTok.Raw
		for p.peek().Kind == token.Dot {
			p.advance()
			part, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			name += "." + part.Raw
		}
		arg := ""
		if p.peek().Kind == token.LParen {
			p.advance()
			argTok, err := p.expect(token.Ident)
			if err != nil {
				return nil, p.errorf(argTok.Loc, "tag argument must be an identifier")
			}
			arg = argTok.Raw
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
		}
		tags = append(tags, &ast.Tag{Kind: kind, Name: name, Argument: arg, Location: sigil.Loc})
	}
	return tags, nil
}

func (p *Parser) parseTaggedNode() (ast.Node, error) {
	tags, err := p.collectTags()
	if err != nil {
		return nil, err
	}
	switch p.peek().Kind {
	case token.LBracket:
		return p.parseBlock(tags)
	case token.FreeText:
		return p.parseFreeTextNode(tags)
	default:
		return nil, p.errorf(p.peek().Loc, "expected block or free-text after tag, got %s", p.peek().Kind)
	}
}

func (p *Parser) parseChildNode() (ast.Node, error) {
	t := p.peek()
	switch {
	case t.Kind == token.Hash || t.Kind == token.At:
		return p.parseTaggedNode()
	case t.Kind == token.LBracket:
		return p.parseBlock(nil)
	case t.Kind == token.FreeText:
		return p.parseFreeTextNode(nil)
	case t.Kind == token.LAngle:
		return p.parseAngleDirective(false)
	default:
		return nil, p.errorf(t.Loc, "unexpected token %s in block body", t.Kind)
	}
}

func (p *Parser) parseBlock(tags []*ast.Tag) (*ast.Block, error) {
	lb, err := p.expect(token.LBracket)
	if err != nil {
		return nil, err
	}
	id := ""
	if p.peek().Kind == token.Ident {
		id = p.advance().Raw
	}
	var props *ast.PropertyList
	if p.peek().Kind == token.LParen {
		props, err = p.parseProperties()
		if err != nil {
			return nil, err
		}
	}
	var children []ast.Node
	var injects []*ast.Inject
	for {
		if p.eof() {
			return nil, p.errorf(lb.Loc, "unterminated block, expected ]")
		}
		if p.peek().Kind == token.RBracket {
			break
		}
		n, err := p.parseChildNode()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
		if inj, ok := n.(*ast.Inject); ok {
			injects = append(injects, inj)
		}
	}
	p.advance() // RBracket
	if p.mergeFreeText {
		children = mergeAdjacentFreeText(children)
	}
	return &ast.Block{ID: id, Tags: tags, Properties: props, Children: children, Injects: injects, Location: lb.Loc}, nil
}

func (p *Parser) parseFreeTextNode(tags []*ast.Tag) (*ast.FreeText, error) {
	tok, err := p.expect(token.FreeText)
	if err != nil {
		return nil, err
	}
	return &ast.FreeText{
		Value:    dedent(tok.StrVal),
		Tags:     tags,
		RawText:  tok.StrVal,
		DelimLen: tok.DelimiterLen,
		Location: tok.Loc,
	}, nil
}

func (p *Parser) parseProperties() (*ast.PropertyList, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	props := ast.NewPropertyList()
	if p.peek().Kind != token.RParen {
		for {
			keyTok, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Colon); err != nil {
				return nil, err
			}
			val, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			if !props.Set(keyTok.Raw, val) {
				return nil, oxerrors.New(oxerrors.DuplicatePropertyKey, keyTok.Loc,
					"duplicate property key %q in property list", keyTok.Raw)
			}
			if p.peek().Kind == token.Comma {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return props, nil
}

// parseValue parses a single property or array-element value: a primitive
// literal, a parenthesized expression (kept as an unevaluated token list),
// an array literal, or a $-reference.
func (p *Parser) parseValue() (ast.Value, error) {
	t := p.peek()
	switch t.Kind {
	case token.LParen:
		start := p.advance().Loc
		toks := p.collectExprTokens(token.RParen)
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return &ast.Expression{Tokens: toks, Location: start}, nil
	case token.LBrace:
		start := p.advance().Loc
		var elems []ast.Value
		if p.peek().Kind != token.RBrace {
			for {
				v, err := p.parseValue()
				if err != nil {
					return nil, err
				}
				elems = append(elems, v)
				if p.peek().Kind == token.Comma {
					p.advance()
					continue
				}
				break
			}
		}
		if _, err := p.expect(token.RBrace); err != nil {
			return nil, err
		}
		return &ast.Array{Elements: elems, Location: start}, nil
	case token.Dollar:
		return p.parseReference()
	case token.Int:
		tok := p.advance()
		return &ast.Literal{Value: tok.IntVal, Location: tok.Loc}, nil
	case token.Float:
		tok := p.advance()
		return &ast.Literal{Value: tok.FloatVal, Location: tok.Loc}, nil
	case token.String:
		tok := p.advance()
		return &ast.Literal{Value: tok.StrVal, Location: tok.Loc}, nil
	case token.Bool:
		tok := p.advance()
		return &ast.Literal{Value: tok.BoolVal, Location: tok.Loc}, nil
	case token.Null:
		tok := p.advance()
		return &ast.Literal{Value: nil, Location: tok.Loc}, nil
	default:
		return nil, p.errorf(t.Loc, "expected a value, got %s", t.Kind)
	}
}

func (p *Parser) parseReference() (*ast.Reference, error) {
	start := p.advance().Loc // '$'
	idTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	var head ast.ReferenceHead
	var blockID string
	switch idTok.Raw {
	case "this":
		head = ast.RefThis
	case "parent":
		head = ast.RefParent
	default:
		head = ast.RefBlockID
		blockID = idTok.Raw
	}
	var chain []string
	for p.peek().Kind == token.Dot {
		p.advance()
		part, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		chain = append(chain, part.Raw)
	}
	return &ast.Reference{Head: head, BlockID: blockID, Chain: chain, Location: start}, nil
}

// collectExprTokens gathers a raw token list up to (not including) the
// first unnested occurrence of one of stopKinds. Nesting is tracked across
// parens/braces/brackets so array and parenthesized sub-expressions inside
// the expression don't trigger early stops.
func (p *Parser) collectExprTokens(stopKinds ...token.Kind) []token.Token {
	var toks []token.Token
	depth := 0
	for {
		t := p.peek()
		if depth == 0 {
			for _, sk := range stopKinds {
				if t.Kind == sk {
					return toks
				}
			}
		}
		if t.Kind == token.EOF {
			return toks
		}
		switch t.Kind {
		case token.LParen, token.LBrace, token.LBracket:
			depth++
		case token.RParen, token.RBrace, token.RBracket:
			depth--
		}
		toks = append(toks, p.advance())
	}
}

func (p *Parser) parseExpressionValue(stop token.Kind) ast.Value {
	loc := p.peek().Loc
	toks := p.collectExprTokens(stop)
	return &ast.Expression{Tokens: toks, Location: loc}
}

// parseAngleDirective parses one `<keyword ...>` construct. topLevel gates
// whether `<import>` is accepted here (spec.md §4.2: imports are rejected
// anywhere below document root).
func (p *Parser) parseAngleDirective(topLevel bool) (ast.Node, error) {
	lt, err := p.expect(token.LAngle)
	if err != nil {
		return nil, err
	}
	kw := p.peek()
	switch kw.Kind {
	case token.KwSet:
		return p.parseSet(lt.Loc)
	case token.KwIf:
		return p.parseIf(lt.Loc)
	case token.KwForeach:
		return p.parseForeach(lt.Loc)
	case token.KwWhile:
		return p.parseWhile(lt.Loc)
	case token.KwOnData:
		return p.parseOnData(lt.Loc)
	case token.KwInject:
		return p.parseInject(lt.Loc)
	case token.KwImport:
		if !topLevel {
			return nil, p.errorf(lt.Loc, "import directive not allowed below document root")
		}
		return p.parseImport(lt.Loc)
	default:
		return nil, p.errorf(kw.Loc, "unexpected template directive %q", kw.Raw)
	}
}

func (p *Parser) parseSet(ltLoc token.Location) (*ast.SetTemplate, error) {
	if _, err := p.expect(token.KwSet); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Equals); err != nil {
		return nil, err
	}
	val := p.parseExpressionValue(token.RAngle)
	if _, err := p.expect(token.RAngle); err != nil {
		return nil, err
	}
	return &ast.SetTemplate{Name: nameTok.Raw, Value: val, Location: ltLoc}, nil
}

// parseNodesUntilDirective parses sibling nodes until the next token begins
// a closing tag (`</...>`) or a continuation keyword (elseif/else/on-error)
// that belongs to the enclosing construct, not this one. Nested directives
// of the same kind consume their own closing tag recursively, so no
// explicit depth counter is needed here.
func (p *Parser) parseNodesUntilDirective() ([]ast.Node, error) {
	var nodes []ast.Node
	for {
		if p.eof() {
			return nil, p.errorf(p.peek().Loc, "unexpected end of input inside template body")
		}
		if p.peek().Kind == token.LAngle {
			next := p.peekAt(1).Kind
			if next == token.Slash {
				break
			}
			if next == token.KwElseIf || next == token.KwElse || next == token.KwOnError {
				break
			}
		}
		n, err := p.parseChildNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if p.mergeFreeText {
		nodes = mergeAdjacentFreeText(nodes)
	}
	return nodes, nil
}

func (p *Parser) expectClosing(kw token.Kind) error {
	if _, err := p.expect(token.LAngle); err != nil {
		return err
	}
	if _, err := p.expect(token.Slash); err != nil {
		return err
	}
	if _, err := p.expect(kw); err != nil {
		return err
	}
	if _, err := p.expect(token.RAngle); err != nil {
		return err
	}
	return nil
}

func (p *Parser) parseIf(ltLoc token.Location) (*ast.IfTemplate, error) {
	if _, err := p.expect(token.KwIf); err != nil {
		return nil, err
	}
	cond := p.parseExpressionValue(token.RAngle)
	if _, err := p.expect(token.RAngle); err != nil {
		return nil, err
	}
	children, err := p.parseNodesUntilDirective()
	if err != nil {
		return nil, err
	}
	node := &ast.IfTemplate{Cond: cond, Children: children, Location: ltLoc}
	for {
		kw, ok := p.peekAngleKeyword()
		if !ok || kw != token.KwElseIf {
			break
		}
		branchLoc := p.peek().Loc
		p.advance() // '<'
		p.advance() // 'elseif'
		econd := p.parseExpressionValue(token.RAngle)
		if _, err := p.expect(token.RAngle); err != nil {
			return nil, err
		}
		echildren, err := p.parseNodesUntilDirective()
		if err != nil {
			return nil, err
		}
		node.ElseIfs = append(node.ElseIfs, &ast.ElseIfBranch{Cond: econd, Children: echildren, Location: branchLoc})
	}
	if kw, ok := p.peekAngleKeyword(); ok && kw == token.KwElse {
		p.advance()
		p.advance()
		if _, err := p.expect(token.RAngle); err != nil {
			return nil, err
		}
		echildren, err := p.parseNodesUntilDirective()
		if err != nil {
			return nil, err
		}
		node.Else = echildren
	}
	if err := p.expectClosing(token.KwIf); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseForeach(ltLoc token.Location) (*ast.ForeachTemplate, error) {
	if _, err := p.expect(token.KwForeach); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	loopTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	indexVar := ""
	if p.peek().Kind == token.Comma {
		p.advance()
		idxTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		indexVar = idxTok.Raw
	}
	if _, err := p.expect(token.KwIn); err != nil {
		return nil, err
	}
	iterable := p.parseExpressionValue(token.RParen)
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RAngle); err != nil {
		return nil, err
	}
	children, err := p.parseNodesUntilDirective()
	if err != nil {
		return nil, err
	}
	if err := p.expectClosing(token.KwForeach); err != nil {
		return nil, err
	}
	return &ast.ForeachTemplate{LoopVar: loopTok.Raw, IndexVar: indexVar, Iterable: iterable, Children: children, Location: ltLoc}, nil
}

func (p *Parser) parseWhile(ltLoc token.Location) (*ast.WhileTemplate, error) {
	if _, err := p.expect(token.KwWhile); err != nil {
		return nil, err
	}
	cond := p.parseExpressionValue(token.RAngle)
	if _, err := p.expect(token.RAngle); err != nil {
		return nil, err
	}
	children, err := p.parseNodesUntilDirective()
	if err != nil {
		return nil, err
	}
	if err := p.expectClosing(token.KwWhile); err != nil {
		return nil, err
	}
	return &ast.WhileTemplate{Cond: cond, Children: children, MaxIterations: p.maxWhileIterations, Location: ltLoc}, nil
}

func (p *Parser) parseOnData(ltLoc token.Location) (*ast.OnDataTemplate, error) {
	if _, err := p.expect(token.KwOnData); err != nil {
		return nil, err
	}
	idTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	var props *ast.PropertyList
	if p.peek().Kind == token.LParen {
		props, err = p.parseProperties()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.RAngle); err != nil {
		return nil, err
	}
	children, err := p.parseNodesUntilDirective()
	if err != nil {
		return nil, err
	}
	var errChildren []ast.Node
	if kw, ok := p.peekAngleKeyword(); ok && kw == token.KwOnError {
		p.advance()
		p.advance()
		if _, err := p.expect(token.RAngle); err != nil {
			return nil, err
		}
		errChildren, err = p.parseNodesUntilDirective()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectClosing(token.KwOnData); err != nil {
		return nil, err
	}
	return &ast.OnDataTemplate{ID: idTok.Raw, Properties: props, Children: children, ErrorChildren: errChildren, Location: ltLoc}, nil
}

func (p *Parser) parseInject(ltLoc token.Location) (*ast.Inject, error) {
	if _, err := p.expect(token.KwInject); err != nil {
		return nil, err
	}
	pathTok, err := p.expect(token.String)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RAngle); err != nil {
		return nil, err
	}
	return &ast.Inject{Path: pathTok.StrVal, Location: ltLoc}, nil
}

func (p *Parser) parseImport(ltLoc token.Location) (*ast.Import, error) {
	if _, err := p.expect(token.KwImport); err != nil {
		return nil, err
	}
	pathTok, err := p.expect(token.String)
	if err != nil {
		return nil, err
	}
	alias := ""
	if p.peek().Kind == token.KwAs {
		p.advance()
		aliasTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		alias = aliasTok.Raw
	}
	if _, err := p.expect(token.RAngle); err != nil {
		return nil, err
	}
	return &ast.Import{Path: pathTok.StrVal, Alias: alias, Location: ltLoc}, nil
}

// mergeAdjacentFreeText joins sibling free-text nodes that carry identical
// tag lists, per spec.md §4.2.
func mergeAdjacentFreeText(nodes []ast.Node) []ast.Node {
	if len(nodes) == 0 {
		return nodes
	}
	out := make([]ast.Node, 0, len(nodes))
	i := 0
	for i < len(nodes) {
		ft, ok := nodes[i].(*ast.FreeText)
		if !ok {
			out = append(out, nodes[i])
			i++
			continue
		}
		merged := ft
		j := i + 1
		for j < len(nodes) {
			next, ok2 := nodes[j].(*ast.FreeText)
			if !ok2 || !merged.SameTags(next) {
				break
			}
			merged = &ast.FreeText{
				Value:    merged.Value + "\n\n" + next.Value,
				Tags:     merged.Tags,
				RawText:  merged.RawText + "\n\n" + next.RawText,
				DelimLen: merged.DelimLen,
				Location: merged.Location,
			}
			j++
		}
		out = append(out, merged)
		i = j
	}
	return out
}

// dedent implements the free-text indentation rule of spec.md §4.2: trim
// one leading and one trailing newline, measure leading whitespace with
// tabs expanded to four columns, then strip the minimum common width from
// every non-blank line.
func dedent(s string) string {
	s = trimOneLeadingNewline(s)
	s = trimOneTrailingNewline(s)
	if s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		w := leadingWidth(line)
		if minIndent == -1 || w < minIndent {
			minIndent = w
		}
	}
	if minIndent <= 0 {
		return s
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			out[i] = line
			continue
		}
		out[i] = stripWidth(line, minIndent)
	}
	return strings.Join(out, "\n")
}

func trimOneLeadingNewline(s string) string {
	if strings.HasPrefix(s, "\r\n") {
		return s[2:]
	}
	if strings.HasPrefix(s, "\n") {
		return s[1:]
	}
	return s
}

func trimOneTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	if strings.HasSuffix(s, "\n") {
		return s[:len(s)-1]
	}
	return s
}

func leadingWidth(line string) int {
	w := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

func stripWidth(line string, width int) string {
	w := 0
	i := 0
	for i < len(line) && w < width {
		switch line[i] {
		case ' ':
			w++
			i++
		case '\t':
			w += 4
			i++
		default:
			return line[i:]
		}
	}
	return line[i:]
}
