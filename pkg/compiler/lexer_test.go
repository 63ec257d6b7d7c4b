package compiler

import (
	"errors"
	"reflect"
	"testing"

	"gobf/pkg/errs"
)

func TestLex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
		wantErr  bool
	}{
		{
			name:  "Empty",
			input: "",
			expected: []Token{
				{Type: EOF, Lexeme: "", Line: 1},
			},
		},
		{
			name:  "Short Forms",
			input: "+ -\n><.,[]",
			expected: []Token{
				{Type: INSTR, Lexeme: "+", Line: 1},
				{Type: INSTR, Lexeme: "-", Line: 1},
				{Type: INSTR, Lexeme: ">", Line: 2},
				{Type: INSTR, Lexeme: "<", Line: 2},
				{Type: INSTR, Lexeme: ".", Line: 2},
				{Type: INSTR, Lexeme: ",", Line: 2},
				{Type: INSTR, Lexeme: "[", Line: 2},
				{Type: INSTR, Lexeme: "]", Line: 2},
				{Type: EOF, Lexeme: "", Line: 2},
			},
		},
		{
			name:  "Comment",
			input: "+ # INCR this is ignored [\n-",
			expected: []Token{
				{Type: INSTR, Lexeme: "+", Line: 1},
				{Type: INSTR, Lexeme: "-", Line: 2},
				{Type: EOF, Lexeme: "", Line: 2},
			},
		},
		{
			name:  "Long Forms And Calls",
			input: "INCR\ndouble(+)\nf(g(+;-);>)",
			expected: []Token{
				{Type: WORD, Lexeme: "INCR", Line: 1},
				{Type: WORD, Lexeme: "double(+)", Line: 2},
				{Type: WORD, Lexeme: "f(g(+;-);>)", Line: 3},
				{Type: EOF, Lexeme: "", Line: 3},
			},
		},
		{
			name:  "Word Runs To End Of Line",
			input: "INCR DECR\nINCR+  # comment\nd(+) +\n-",
			expected: []Token{
				{Type: WORD, Lexeme: "INCR DECR", Line: 1},
				{Type: WORD, Lexeme: "INCR+", Line: 2},
				{Type: WORD, Lexeme: "d(+) +", Line: 3},
				{Type: INSTR, Lexeme: "-", Line: 4},
				{Type: EOF, Lexeme: "", Line: 4},
			},
		},
		{
			name:  "Declarations",
			input: "$m(x) = x+ # trailing\n@p=-\n§f(a;b)=a b\n",
			expected: []Token{
				{Type: MACRO_DECL, Lexeme: "m(x) = x+", Line: 1},
				{Type: PROC_DECL, Lexeme: "p=-", Line: 2},
				{Type: FUNC_DECL, Lexeme: "f(a;b)=a b", Line: 3},
				{Type: EOF, Lexeme: "", Line: 4},
			},
		},
		{
			name:  "Unknown Character Kept",
			input: "?",
			expected: []Token{
				{Type: INSTR, Lexeme: "?", Line: 1},
				{Type: EOF, Lexeme: "", Line: 1},
			},
		},
		{
			name:    "Unterminated Arguments",
			input:   "double(+\n)",
			wantErr: true,
		},
		{
			name:    "Unbalanced Close",
			input:   "double(+))",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lex(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, errs.ErrInvalidInstruction) {
					t.Errorf("Lex() error = %v; want ErrInvalidInstruction", err)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Lex() =\n%v\nwant\n%v", got, tt.expected)
			}
		})
	}
}
