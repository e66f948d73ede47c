// Package token defines the lexical tokens and source locations shared by
// the OX lexer, parser, and diagnostics layers.
package token

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Int
	Float
	String
	Bool
	Null
	FreeText

	// Punctuation
	LBracket // [
	RBracket // ]
	LParen   // (
	RParen   // )
	LBrace   // {
	RBrace   // }
	LAngle   // <
	RAngle   // >
	Comma
	Colon
	Dot
	Equals
	At     // @
	Hash   // #
	Dollar // $
	Slash  // / (closing tag marker component, e.g. </if>)

	// Operators
	EqEq
	NotEq
	LtEq
	GtEq
	Plus
	Minus
	Star
	StarStar
	Percent
	AndAnd
	OrOr
	Bang

	// Keywords
	KwTrue
	KwFalse
	KwNull
	KwSet
	KwIf
	KwElseIf
	KwElse
	KwForeach
	KwWhile
	KwIn
	KwOnData
	KwOnError
	KwImport
	KwInject
	KwAs
)

var kindNames = map[Kind]string{
	EOF:      "EOF",
	Ident:    "identifier",
	Int:      "integer",
	Float:    "float",
	String:   "string",
	Bool:     "bool",
	Null:     "null",
	FreeText: "free-text",

	LBracket: "[", RBracket: "]",
	LParen: "(", RParen: ")",
	LBrace: "{", RBrace: "}",
	LAngle: "<", RAngle: ">",
	Comma: ",", Colon: ":", Dot: ".", Equals: "=",
	At: "@", Hash: "#", Dollar: "$", Slash: "/",

	EqEq: "==", NotEq: "!=", LtEq: "<=", GtEq: ">=",
	Plus: "+", Minus: "-", Star: "*", StarStar: "**", Percent: "%",
	AndAnd: "&&", OrOr: "||", Bang: "!",

	KwTrue: "true", KwFalse: "false", KwNull: "null",
	KwSet: "set", KwIf: "if", KwElseIf: "elseif", KwElse: "else",
	KwForeach: "foreach", KwWhile: "while", KwIn: "in",
	KwOnData: "on-data", KwOnError: "on-error",
	KwImport: "import", KwInject: "inject", KwAs: "as",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Keywords maps the literal source spelling to its Kind.
var Keywords = map[string]Kind{
	"true": KwTrue, "false": KwFalse, "null": KwNull,
	"set": KwSet, "if": KwIf, "elseif": KwElseIf, "else": KwElse,
	"foreach": KwForeach, "while": KwWhile, "in": KwIn,
	"on-data": KwOnData, "on-error": KwOnError,
	"import": KwImport, "inject": KwInject, "as": KwAs,
}

// Location identifies a point in a named source file.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Less reports whether l precedes other in the same file (used to order
// diagnostics deterministically).
func (l Location) Less(other Location) bool {
	if l.File != other.File {
		return l.File < other.File
	}
	if l.Line != other.Line {
		return l.Line < other.Line
	}
	return l.Column < other.Column
}

// Token is a single lexeme with its source location and raw text.
type Token struct {
	Kind Kind
	Raw  string
	Loc  Location

	// Decoded literal payloads, populated for the relevant Kinds.
	IntVal   int64
	FloatVal float64
	StrVal   string
	BoolVal  bool

	// FreeText-only metadata.
	DelimiterLen int // length of the backtick run that opened the block
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Raw, t.Loc)
}
