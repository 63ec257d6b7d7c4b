package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	INSTR // single-character instruction, e.g. "+"
	WORD  // long-form instruction or call, e.g. "INCR", "double(+)"

	// Declarations. The lexeme is the rest of the line after the sigil.
	MACRO_DECL // $name(a;b) = body
	PROC_DECL  // @name(a;b) = body
	FUNC_DECL  // §name(a;b) = body
)

// Declaration and comment sigils.
const (
	macroSigil     = '$'
	procedureSigil = '@'
	functionSigil  = '§'
	commentSigil   = '#'
)

var tokenNames = map[TokenType]string{
	EOF:        "EOF",
	INSTR:      "INSTR",
	WORD:       "WORD",
	MACRO_DECL: "MACRO_DECL",
	PROC_DECL:  "PROC_DECL",
	FUNC_DECL:  "FUNC_DECL",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a single lexical unit.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%s, %q, line %d)", t.Type, t.Lexeme, t.Line)
}
