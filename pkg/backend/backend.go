// Package backend renders resolved programs: back to short syntax, to C
// source, and as an execution trace.
package backend

import (
	"fmt"
	"io"
	"strings"

	"gobf/pkg/errs"
	"gobf/pkg/instr"
	"gobf/pkg/vm"
)

// Rewrite writes p in short syntax on a single line. p must not contain calls.
func Rewrite(w io.Writer, p *instr.Program) error {
	if p.HasCalls() {
		return fmt.Errorf("%w: cannot rewrite a program with function calls, flatten it first", errs.ErrInvalidInstruction)
	}
	_, err := io.WriteString(w, p.String()+"\n")
	return err
}

// RewriteLong writes p with one long-form word per line, indenting loop bodies.
func RewriteLong(w io.Writer, p *instr.Program) error {
	if p.HasCalls() {
		return fmt.Errorf("%w: cannot rewrite a program with function calls, flatten it first", errs.ErrInvalidInstruction)
	}
	var sb strings.Builder
	depth := 0
	for _, in := range p.Code {
		if in.Op == instr.OpBack {
			depth--
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(in.Op.String())
		sb.WriteByte('\n')
		if in.Op == instr.OpJump {
			depth++
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// NewTracer returns a vm.Tracer writing one line per executed instruction:
//
//	<step> <op> depth=<frames> ptr=<pointer> cell=<value>
//
// Write errors are ignored.
func NewTracer(w io.Writer) vm.Tracer {
	return func(ev vm.Event) {
		fmt.Fprintf(w, "%d %s depth=%d ptr=%d cell=%d\n", ev.Step, ev.Op, ev.Depth, ev.Pointer, ev.Value)
	}
}
