package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/lexer"
	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

func exprOf(t *testing.T, src string) *ast.Expression {
	t.Helper()
	toks, err := lexer.New("t.ox", []byte(src)).Tokens()
	require.NoError(t, err)
	// Drop the trailing EOF token; Expression.Tokens holds a raw slice with
	// no sentinel, matching what the parser's collectExprTokens produces.
	require.Equal(t, token.EOF, toks[len(toks)-1].Kind)
	return &ast.Expression{Tokens: toks[:len(toks)-1]}
}

func evalSrc(t *testing.T, src string, scope *Scope) interface{} {
	t.Helper()
	if scope == nil {
		scope = NewScope()
	}
	v, err := Eval(exprOf(t, src), scope, nil)
	require.NoError(t, err)
	return v
}

func TestEvalArithmeticPrecedence(t *testing.T) {
	require.Equal(t, int64(14), evalSrc(t, "2 + 3 * 4", nil))
}

func TestEvalExponentRightAssociative(t *testing.T) {
	// 2 ** 3 ** 2 == 2 ** (3 ** 2) == 2 ** 9 == 512
	require.Equal(t, int64(512), evalSrc(t, "2 ** 3 ** 2", nil))
}

func TestEvalDivisionByZero(t *testing.T) {
	_, err := Eval(exprOf(t, "1 / 0"), NewScope(), nil)
	require.Error(t, err)
}

func TestEvalStringConcatenation(t *testing.T) {
	require.Equal(t, "ab", evalSrc(t, `"a" + "b"`, nil))
}

func TestEvalStringLexicographicComparison(t *testing.T) {
	require.Equal(t, true, evalSrc(t, `"a" < "b"`, nil))
}

func TestEvalLogicalShortCircuitValues(t *testing.T) {
	require.Equal(t, true, evalSrc(t, "true || false", nil))
	require.Equal(t, false, evalSrc(t, "true && false", nil))
}

func TestEvalUnaryMinusAndNot(t *testing.T) {
	require.Equal(t, int64(-5), evalSrc(t, "-5", nil))
	require.Equal(t, true, evalSrc(t, "!false", nil))
}

func TestEvalParenthesizedSubExpression(t *testing.T) {
	require.Equal(t, int64(20), evalSrc(t, "(2 + 3) * 4", nil))
}

func TestEvalArrayLiteral(t *testing.T) {
	v := evalSrc(t, "{1, 2, 3}", nil)
	arr, ok := v.([]interface{})
	require.True(t, ok)
	require.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, arr)
}

func TestEvalScopeVariableLookup(t *testing.T) {
	scope := NewScope()
	scope.Set("width", int64(400))
	require.Equal(t, int64(410), evalSrc(t, "width + 10", scope))
}

func TestEvalScopeFrameShadowing(t *testing.T) {
	scope := NewScope()
	scope.Set("x", int64(1))
	scope.Push()
	scope.Set("x", int64(2))
	v, ok := scope.Get("x")
	require.True(t, ok)
	require.Equal(t, int64(2), v)
	scope.Pop()
	v, ok = scope.Get("x")
	require.True(t, ok)
	require.Equal(t, int64(1), v)
}

func TestEvalReferenceDelegatesToResolver(t *testing.T) {
	called := false
	var gotRef *ast.Reference
	resolver := func(ref *ast.Reference) (interface{}, error) {
		called = true
		gotRef = ref
		return int64(42), nil
	}
	v, err := Eval(exprOf(t, "$parent.width"), NewScope(), resolver)
	require.NoError(t, err)
	require.Equal(t, int64(42), v)
	require.True(t, called)
	require.Equal(t, ast.RefParent, gotRef.Head)
	require.Equal(t, []string{"width"}, gotRef.Chain)
}

func TestEvalUndefinedVariableErrors(t *testing.T) {
	_, err := Eval(exprOf(t, "unknownVar"), NewScope(), nil)
	require.Error(t, err)
}
