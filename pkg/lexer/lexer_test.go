package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-ox-studio/oxdef-sub002/pkg/token"
)

func kinds(t *testing.T, toks []token.Token) []token.Kind {
	t.Helper()
	out := make([]token.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestLexBasicBlock(t *testing.T) {
	toks, err := New("t.ox", []byte(`[Player (name: "Hero", health: 100)]`)).Tokens()
	require.NoError(t, err)
	require.Equal(t, []token.Kind{
		token.LBracket, token.Ident, token.LParen,
		token.Ident, token.Colon, token.String, token.Comma,
		token.Ident, token.Colon, token.Int, token.RParen, token.RBracket, token.EOF,
	}, kinds(t, toks))
}

func TestLexFreeTextBasic(t *testing.T) {
	toks, err := New("t.ox", []byte("```hello```")).Tokens()
	require.NoError(t, err)
	require.Equal(t, token.FreeText, toks[0].Kind)
	require.Equal(t, "hello", toks[0].StrVal)
	require.Equal(t, 3, toks[0].DelimiterLen)
}

func TestLexFreeTextEmpty(t *testing.T) {
	// 2N backticks (N=3) with nothing following: empty block.
	toks, err := New("t.ox", []byte("``````")).Tokens()
	require.NoError(t, err)
	require.Equal(t, token.FreeText, toks[0].Kind)
	require.Equal(t, "", toks[0].StrVal)
}

func TestLexFreeTextMismatchedRunIsContent(t *testing.T) {
	// Opening with 3 backticks, a run of 4 backticks inside is content,
	// closed by the real run of 3.
	toks, err := New("t.ox", []byte("```a````b```")).Tokens()
	require.NoError(t, err)
	require.Equal(t, token.FreeText, toks[0].Kind)
	require.Equal(t, "a````b", toks[0].StrVal)
}

func TestLexFreeTextUnterminated(t *testing.T) {
	_, err := New("t.ox", []byte("```unterminated")).Tokens()
	require.Error(t, err)
}

func TestLexOnDataKeyword(t *testing.T) {
	toks, err := New("t.ox", []byte("<on-data id (x: 1)> </on-data>")).Tokens()
	require.NoError(t, err)
	require.Equal(t, token.KwOnData, toks[1].Kind)
}

func TestLexOperators(t *testing.T) {
	toks, err := New("t.ox", []byte("== != <= >= + - * / % ** && ||")).Tokens()
	require.NoError(t, err)
	require.Equal(t, []token.Kind{
		token.EqEq, token.NotEq, token.LtEq, token.GtEq,
		token.Plus, token.Minus, token.Star, token.Slash, token.Percent, token.StarStar,
		token.AndAnd, token.OrOr, token.EOF,
	}, kinds(t, toks))
}

func TestLexLineComment(t *testing.T) {
	toks, err := New("t.ox", []byte("[Foo] // a comment\n[Bar]")).Tokens()
	require.NoError(t, err)
	require.Equal(t, []token.Kind{token.LBracket, token.Ident, token.RBracket, token.LBracket, token.Ident, token.RBracket, token.EOF}, kinds(t, toks))
}

func TestLexLocationTracking(t *testing.T) {
	toks, err := New("t.ox", []byte("[A]\n[B]")).Tokens()
	require.NoError(t, err)
	require.Equal(t, 1, toks[0].Loc.Line)
	// '[' of [B] is on line 2
	require.Equal(t, 2, toks[3].Loc.Line)
}

func TestLexFreeTextByteLimit(t *testing.T) {
	l := New("t.ox", []byte("```"+string(make([]byte, 100))+"```"))
	l.SetFreeTextLimit(10)
	_, err := l.Tokens()
	require.Error(t, err)
}
