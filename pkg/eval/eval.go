// Package eval implements the OX expression evaluator (spec.md §4.5): an
// operator-precedence parser over a flat token list, evaluated lazily
// against a scope stack. $-reference resolution is not performed here —
// it is delegated to a caller-supplied hook, so the two-pass resolver
// (pkg/resolve) can own reference semantics without this package
// depending on it.
package eval

import (
	"fmt"
	"math"
	"strings"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

// Error is an evaluation-time failure (spec.md's EvaluationError).
type Error struct {
	Loc     token.Location
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: evaluation error: %s", e.Loc, e.Message)
}

// Number is OX's single numeric model: floating-point with integer
// preservation where possible, per spec.md §4.5.
type Number struct {
	F     float64
	IsInt bool
}

func IntNumber(i int64) Number   { return Number{F: float64(i), IsInt: true} }
func FloatNumber(f float64) Number { return Number{F: f} }

func (n Number) AsInterface() interface{} {
	if n.IsInt {
		return int64(n.F)
	}
	return n.F
}

func toNumber(v interface{}) (Number, bool) {
	switch x := v.(type) {
	case int64:
		return IntNumber(x), true
	case float64:
		return FloatNumber(x), true
	case Number:
		return x, true
	default:
		return Number{}, false
	}
}

// ReferenceFunc resolves a parsed $-reference to a value; installed by the
// two-pass resolver (pkg/resolve). A nil ReferenceFunc makes any reference
// evaluation fail with an Error.
type ReferenceFunc func(ref *ast.Reference) (interface{}, error)

// Scope is a stack of (name → value) frames (spec.md §4.5): `set` writes
// into the topmost frame, `foreach` pushes a fresh frame per iteration,
// `if`/`while` share the enclosing frame.
type Scope struct {
	frames []map[string]interface{}
}

func NewScope() *Scope {
	return &Scope{frames: []map[string]interface{}{{}}}
}

func (s *Scope) Push() { s.frames = append(s.frames, map[string]interface{}{}) }

func (s *Scope) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

func (s *Scope) Set(name string, v interface{}) {
	s.frames[len(s.frames)-1][name] = v
}

func (s *Scope) Get(name string) (interface{}, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Eval evaluates an ast.Value to a runtime value: nil, bool, int64,
// float64, string, or []interface{}.
func Eval(v ast.Value, scope *Scope, resolve ReferenceFunc) (interface{}, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *ast.Literal:
		return x.Value, nil
	case *ast.Array:
		out := make([]interface{}, len(x.Elements))
		for i, e := range x.Elements {
			val, err := Eval(e, scope, resolve)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case *ast.Expression:
		ep := &exprParser{toks: x.Tokens, scope: scope, resolve: resolve, loc: x.Location}
		val, err := ep.parseOr()
		if err != nil {
			return nil, err
		}
		if !ep.eof() {
			return nil, &Error{Loc: ep.peek().Loc, Message: fmt.Sprintf("unexpected trailing token %s in expression", ep.peek().Kind)}
		}
		return val, nil
	case *ast.Reference:
		if resolve == nil {
			return nil, &Error{Loc: x.Location, Message: "no reference resolver installed"}
		}
		return resolve(x)
	case *ast.FreeTextRef:
		if x.Target == nil {
			return nil, &Error{Loc: x.Location, Message: "free-text reference has no target"}
		}
		return x.Target.Value, nil
	default:
		return nil, &Error{Message: "unsupported value kind in evaluator"}
	}
}

type exprParser struct {
	toks    []token.Token
	pos     int
	scope   *Scope
	resolve ReferenceFunc
	loc     token.Location
}

func (p *exprParser) peek() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF, Loc: p.loc}
	}
	return p.toks[p.pos]
}

func (p *exprParser) advance() token.Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *exprParser) eof() bool { return p.pos >= len(p.toks) }

func (p *exprParser) errorf(format string, args ...interface{}) error {
	return &Error{Loc: p.peek().Loc, Message: fmt.Sprintf(format, args...)}
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

// parseOr: logical-or (lowest precedence).
func (p *exprParser) parseOr() (interface{}, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == token.OrOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = truthy(left) || truthy(right)
	}
	return left, nil
}

func (p *exprParser) parseAnd() (interface{}, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == token.AndAnd {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = truthy(left) && truthy(right)
	}
	return left, nil
}

func (p *exprParser) parseEquality() (interface{}, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case token.EqEq:
			p.advance()
			right, err := p.parseRelational()
			if err != nil {
				return nil, err
			}
			left = valuesEqual(left, right)
		case token.NotEq:
			p.advance()
			right, err := p.parseRelational()
			if err != nil {
				return nil, err
			}
			left = !valuesEqual(left, right)
		default:
			return left, nil
		}
	}
}

func valuesEqual(a, b interface{}) bool {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an.F == bn.F
	}
	return a == b
}

func (p *exprParser) parseRelational() (interface{}, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		kind := p.peek().Kind
		if kind != token.LAngle && kind != token.RAngle && kind != token.LtEq && kind != token.GtEq {
			return left, nil
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		cmp, err := compare(left, right, p.loc)
		if err != nil {
			return nil, err
		}
		switch kind {
		case token.LAngle:
			left = cmp < 0
		case token.RAngle:
			left = cmp > 0
		case token.LtEq:
			left = cmp <= 0
		case token.GtEq:
			left = cmp >= 0
		}
	}
}

func compare(a, b interface{}, loc token.Location) (int, error) {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(as, bs), nil
	}
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		switch {
		case an.F < bn.F:
			return -1, nil
		case an.F > bn.F:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, &Error{Loc: loc, Message: "cannot compare values of incompatible types"}
}

func (p *exprParser) parseAdditive() (interface{}, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		kind := p.peek().Kind
		if kind != token.Plus && kind != token.Minus {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		if kind == token.Plus {
			left, err = add(left, right, p.loc)
		} else {
			left, err = arith(left, right, p.loc, func(a, b float64) float64 { return a - b })
		}
		if err != nil {
			return nil, err
		}
	}
}

func add(a, b interface{}, loc token.Location) (interface{}, error) {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr || bIsStr {
		if !aIsStr || !bIsStr {
			return nil, &Error{Loc: loc, Message: "cannot add string and non-string value"}
		}
		return as + bs, nil
	}
	return arith(a, b, loc, func(x, y float64) float64 { return x + y })
}

func arith(a, b interface{}, loc token.Location, op func(float64, float64) float64) (interface{}, error) {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if !aok || !bok {
		return nil, &Error{Loc: loc, Message: "arithmetic on non-numeric value"}
	}
	result := op(an.F, bn.F)
	if an.IsInt && bn.IsInt && result == float64(int64(result)) {
		return int64(result), nil
	}
	return result, nil
}

func (p *exprParser) parseMultiplicative() (interface{}, error) {
	left, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	for {
		kind := p.peek().Kind
		if kind != token.Star && kind != token.Slash && kind != token.Percent {
			return left, nil
		}
		p.advance()
		right, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		switch kind {
		case token.Star:
			left, err = arith(left, right, p.loc, func(a, b float64) float64 { return a * b })
		case token.Slash:
			rn, ok := toNumber(right)
			if ok && rn.F == 0 {
				return nil, &Error{Loc: p.loc, Message: "division by zero"}
			}
			left, err = arith(left, right, p.loc, func(a, b float64) float64 { return a / b })
		case token.Percent:
			rn, ok := toNumber(right)
			if ok && rn.F == 0 {
				return nil, &Error{Loc: p.loc, Message: "modulo by zero"}
			}
			left, err = arith(left, right, p.loc, func(a, b float64) float64 {
				return float64(int64(a) % int64(b))
			})
		}
		if err != nil {
			return nil, err
		}
	}
}

// parseExponent: right-associative.
func (p *exprParser) parseExponent() (interface{}, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind == token.StarStar {
		p.advance()
		right, err := p.parseExponent() // right-assoc: recurse at same precedence
		if err != nil {
			return nil, err
		}
		ln, lok := toNumber(left)
		rn, rok := toNumber(right)
		if !lok || !rok {
			return nil, p.errorf("exponentiation on non-numeric value")
		}
		result := pow(ln.F, rn.F)
		if ln.IsInt && rn.IsInt && rn.F >= 0 && result == float64(int64(result)) {
			return int64(result), nil
		}
		return result, nil
	}
	return left, nil
}

func pow(base, exp float64) float64 {
	return math.Pow(base, exp)
}

func (p *exprParser) parseUnary() (interface{}, error) {
	switch p.peek().Kind {
	case token.Minus:
		p.advance()
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n, ok := toNumber(v)
		if !ok {
			return nil, p.errorf("unary minus on non-numeric value")
		}
		if n.IsInt {
			return -int64(n.F), nil
		}
		return -n.F, nil
	case token.Bang:
		p.advance()
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	default:
		return p.parsePrimary()
	}
}

func (p *exprParser) parsePrimary() (interface{}, error) {
	t := p.peek()
	switch t.Kind {
	case token.Int:
		p.advance()
		return t.IntVal, nil
	case token.Float:
		p.advance()
		return t.FloatVal, nil
	case token.String:
		p.advance()
		return t.StrVal, nil
	case token.Bool:
		p.advance()
		return t.BoolVal, nil
	case token.Null:
		p.advance()
		return nil, nil
	case token.LParen:
		p.advance()
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().Kind != token.RParen {
			return nil, p.errorf("expected ) in expression, got %s", p.peek().Kind)
		}
		p.advance()
		return v, nil
	case token.LBrace:
		p.advance()
		var elems []interface{}
		if p.peek().Kind != token.RBrace {
			for {
				v, err := p.parseOr()
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
		if p.peek().Kind != token.RBrace {
			return nil, p.errorf("expected } in array literal, got %s", p.peek().Kind)
		}
		p.advance()
		return elems, nil
	case token.Dollar:
		return p.parseReference()
	case token.Ident:
		p.advance()
		v, ok := p.scope.Get(t.Raw)
		if !ok {
			return nil, &Error{Loc: t.Loc, Message: fmt.Sprintf("undefined variable %q", t.Raw)}
		}
		return v, nil
	default:
		return nil, &Error{Loc: t.Loc, Message: fmt.Sprintf("unexpected token %s in expression", t.Kind)}
	}
}

func (p *exprParser) parseReference() (interface{}, error) {
	start := p.advance().Loc // '$'
	idTok := p.advance()
	if idTok.Kind != token.Ident {
		return nil, &Error{Loc: idTok.Loc, Message: fmt.Sprintf("expected identifier after $, got %s", idTok.Kind)}
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
		part := p.advance()
		if part.Kind != token.Ident {
			return nil, &Error{Loc: part.Loc, Message: fmt.Sprintf("expected identifier after '.', got %s", part.Kind)}
		}
		chain = append(chain, part.Raw)
	}
	ref := &ast.Reference{Head: head, BlockID: blockID, Chain: chain, Location: start}
	if p.resolve == nil {
		return nil, &Error{Loc: start, Message: "no reference resolver installed"}
	}
	return p.resolve(ref)
}
