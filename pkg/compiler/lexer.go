package compiler

import (
	"fmt"
	"strings"
	"unicode"

	"gobf/pkg/errs"
)

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// restOfLine consumes up to, but not including, the next newline.
func (l *Lexer) restOfLine() string {
	start := l.pos
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
	return string(l.src[start:l.pos])
}

// scanWord reads a long-form word: everything from the current letter to
// the end of the line, less a trailing comment and trailing blanks. The whole
// string is one token, so "INCR DECR" is a single (invalid) word.
func (l *Lexer) scanWord() (Token, error) {
	line := l.line
	word := l.restOfLine()
	if i := strings.IndexRune(word, commentSigil); i >= 0 {
		word = word[:i]
	}
	word = strings.TrimRightFunc(word, unicode.IsSpace)

	depth := 0
	for _, r := range word {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			break
		}
	}
	if depth != 0 {
		return Token{}, fmt.Errorf("%w: unterminated argument list in %q on line %d",
			errs.ErrInvalidInstruction, word, line)
	}
	return Token{Type: WORD, Lexeme: word, Line: line}, nil
}

// Lex converts source text into a slice of tokens terminated by EOF.
//
// Every non-blank character that does not start a word, a comment or a
// declaration becomes its own INSTR token; whether it is a real instruction
// is decided by the compiler.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token

	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			break
		}

		line := l.line
		r := l.peek()

		switch {
		case r == commentSigil:
			l.restOfLine()

		case r == macroSigil, r == procedureSigil, r == functionSigil:
			l.advance()
			tt := MACRO_DECL
			if r == procedureSigil {
				tt = PROC_DECL
			} else if r == functionSigil {
				tt = FUNC_DECL
			}
			body := l.restOfLine()
			if i := strings.IndexRune(body, commentSigil); i >= 0 {
				body = body[:i]
			}
			body = strings.TrimSpace(body)
			tokens = append(tokens, Token{Type: tt, Lexeme: body, Line: line})

		case unicode.IsLetter(r):
			tok, err := l.scanWord()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)

		default:
			l.advance()
			tokens = append(tokens, Token{Type: INSTR, Lexeme: string(r), Line: line})
		}
	}

	tokens = append(tokens, Token{Type: EOF, Line: l.line})
	return tokens, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
