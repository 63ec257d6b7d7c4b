// Command bfdump prints every stage of the compile pipeline for one program:
// tokens, declarations and the resolved instructions with their loop
// bindings.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gobf/pkg/compiler"
	"gobf/pkg/errs"
	"gobf/pkg/instr"
)

const testSource = `$clear=[-]
§twice(x)=x x
++++[>
twice(+)
<-]>
clear
.
`

func main() {
	src := testSource
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(errs.ExitIO)
		}
		src = string(data)
	}
	if err := dump(os.Stdout, src); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", errs.Kind(err), err)
		os.Exit(errs.ExitCode(err))
	}
}

func dump(w io.Writer, src string) error {
	fmt.Fprintf(w, "Source:\n%s\n", src)

	tokens, err := compiler.Lex(src)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Fprintln(w, " ", tok)
	}
	fmt.Fprintln(w)

	c := compiler.NewCompiler(compiler.Options{}, nil)
	prog, err := c.CompileTokens(tokens)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Definitions (%d)\n", c.Defs.Len())
	for _, def := range c.Defs.All() {
		fmt.Fprintf(w, "  %-9s %s(%s) = %s   line %d\n",
			def.Kind, def.Name, strings.Join(def.Params, ";"), def.Body, def.Line)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Program (%d instructions)\n", prog.Len())
	writeProgram(w, prog, "  ")

	for _, cs := range prog.Calls {
		callee, err := c.CompileCall(cs)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\nFunction %s (%d instructions)\n", cs.Key(), callee.Len())
		writeProgram(w, callee, "  ")
	}
	fmt.Fprintf(w, "\nPROG_SIZE = %d\n", c.Counters.ProgSize)
	return nil
}

func writeProgram(w io.Writer, p *instr.Program, indent string) {
	for i, in := range p.Code {
		switch in.Op {
		case instr.OpJump, instr.OpBack:
			fmt.Fprintf(w, "%s%04d  %-5s -> %04d\n", indent, i, in.Op, in.Arg)
		case instr.OpCall:
			fmt.Fprintf(w, "%s%04d  %-5s %s\n", indent, i, in.Op, p.Calls[in.Arg].Key())
		default:
			fmt.Fprintf(w, "%s%04d  %s\n", indent, i, in.Op)
		}
	}
}
