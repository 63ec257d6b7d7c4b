package backend

import (
	"fmt"
	"io"
	"strings"

	"gobf/pkg/errs"
	"gobf/pkg/instr"
)

// COptions shape the emitted C program. Zero values select the defaults.
type COptions struct {
	TapeSize int
	CellMax  int
}

// CGen emits a flat program as a standalone C source file. Tape and value
// bounds are checked at run time and exit with the same codes as gobf.
type CGen struct {
	out    strings.Builder
	indent int
	opts   COptions
}

func newCGen(opts COptions) *CGen {
	if opts.TapeSize <= 0 {
		opts.TapeSize = 30000
	}
	if opts.CellMax <= 0 {
		opts.CellMax = 255
	}
	return &CGen{opts: opts}
}

func (g *CGen) line(format string, args ...any) {
	g.out.WriteString(strings.Repeat("\t", g.indent))
	fmt.Fprintf(&g.out, format+"\n", args...)
}

// WriteC translates p to C. p must not contain calls; flatten it first.
func WriteC(w io.Writer, p *instr.Program, opts COptions) error {
	if p.HasCalls() {
		return fmt.Errorf("%w: cannot translate a program with function calls, flatten it first", errs.ErrInvalidInstruction)
	}
	g := newCGen(opts)

	g.line("#include <stdio.h>")
	g.line("#include <stdlib.h>")
	g.line("")
	g.line("#define TAPE_SIZE %d", g.opts.TapeSize)
	g.line("#define CELL_MAX %d", g.opts.CellMax)
	g.line("")
	g.line("static unsigned char tape[TAPE_SIZE];")
	g.line("")
	g.line("static void fail(int code, const char *kind) {")
	g.indent++
	g.line(`fprintf(stderr, "%%s\n", kind);`)
	g.line("exit(code);")
	g.indent--
	g.line("}")
	g.line("")
	g.line("int main(void) {")
	g.indent++
	g.line("int ptr = 0;")
	g.line("int c;")

	// One checked statement per instruction, in program order.
	for _, in := range p.Code {
		switch in.Op {
		case instr.OpRight:
			g.line("if (ptr + 1 >= TAPE_SIZE) fail(%d, \"TapeBoundViolation\");", errs.ExitTapeBound)
			g.line("ptr += 1;")
		case instr.OpLeft:
			g.line("if (ptr < 1) fail(%d, \"TapeBoundViolation\");", errs.ExitTapeBound)
			g.line("ptr -= 1;")
		case instr.OpIncr:
			g.line("if (tape[ptr] > CELL_MAX - 1) fail(%d, \"ValueBoundViolation\");", errs.ExitValueBound)
			g.line("tape[ptr] += 1;")
		case instr.OpDecr:
			g.line("if (tape[ptr] < 1) fail(%d, \"ValueBoundViolation\");", errs.ExitValueBound)
			g.line("tape[ptr] -= 1;")
		case instr.OpIn:
			g.line("c = getchar();")
			g.line("if (c == EOF) c = 0;")
			g.line("if (c > CELL_MAX) fail(%d, \"ValueBoundViolation\");", errs.ExitValueBound)
			g.line("tape[ptr] = (unsigned char)c;")
		case instr.OpOut:
			g.line("putchar(tape[ptr]);")
		case instr.OpJump:
			g.line("while (tape[ptr]) {")
			g.indent++
		case instr.OpBack:
			g.indent--
			g.line("}")
		default:
			return fmt.Errorf("%w: %s", errs.ErrInvalidInstruction, in.Op)
		}
	}

	g.line("return 0;")
	g.indent--
	g.line("}")

	_, err := io.WriteString(w, g.out.String())
	return err
}
