package compiler

import (
	"fmt"
	"slices"

	"github.com/tliron/commonlog"

	"gobf/pkg/errs"
	"gobf/pkg/instr"
	"gobf/pkg/metrics"
)

// DefaultMaxExpansionDepth bounds nested macro and procedure expansion.
const DefaultMaxExpansionDepth = 64

var log = commonlog.GetLogger("gobf.compiler")

// Options tune a Compiler. Zero values select the defaults.
type Options struct {
	MaxExpansionDepth int
}

// Compiler expands source text into resolved programs. It owns the
// definition table of one run; declarations made by one Compile call are
// visible to later calls and to function expansions.
type Compiler struct {
	Defs     *Definitions
	Counters *metrics.Counters

	opts      Options
	functions map[string]*instr.Program
}

// NewCompiler returns a compiler with an empty definition table. counters
// may be nil.
func NewCompiler(opts Options, counters *metrics.Counters) *Compiler {
	if counters == nil {
		counters = &metrics.Counters{}
	}
	return &Compiler{
		Defs:      NewDefinitions(),
		Counters:  counters,
		opts:      opts,
		functions: make(map[string]*instr.Program),
	}
}

func (c *Compiler) maxDepth() int {
	if c.opts.MaxExpansionDepth > 0 {
		return c.opts.MaxExpansionDepth
	}
	return DefaultMaxExpansionDepth
}

// Compile lexes, expands and loop-resolves src.
func (c *Compiler) Compile(src string) (*instr.Program, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	return c.CompileTokens(tokens)
}

// CompileTokens expands an already lexed token stream.
func (c *Compiler) CompileTokens(tokens []Token) (*instr.Program, error) {
	r := newLoopResolver()
	if err := c.feed(tokens, r, 0, nil); err != nil {
		return nil, err
	}
	prog, err := r.finish()
	if err != nil {
		return nil, err
	}
	c.Counters.ProgSize += int64(prog.Size())
	return prog, nil
}

// CompileOps loop-resolves a stream of decoded instructions, as produced by
// the bitmap codec.
func (c *Compiler) CompileOps(ops []instr.Op) (*instr.Program, error) {
	r := newLoopResolver()
	for i, op := range ops {
		if !op.IsPrimitive() {
			return nil, fmt.Errorf("%w: %s at position %d", errs.ErrInvalidInstruction, op, i)
		}
		// Bitmap programs have no lines; report the block index instead.
		if err := r.emit(op, i+1); err != nil {
			return nil, err
		}
	}
	prog, err := r.finish()
	if err != nil {
		return nil, err
	}
	c.Counters.ProgSize += int64(prog.Size())
	return prog, nil
}

// CompileCall expands one function invocation into its own program. Results
// are cached per call site key, so a function calling itself with the same
// arguments is expanded once. The program size grows only on a cache miss.
func (c *Compiler) CompileCall(cs instr.CallSite) (*instr.Program, error) {
	key := cs.Key()
	if prog, ok := c.functions[key]; ok {
		return prog, nil
	}
	def, ok := c.Defs.Lookup(cs.Name)
	if !ok || def.Kind != KindFunction {
		return nil, fmt.Errorf("%w: %s is not a function", errs.ErrInvalidInstruction, cs.Name)
	}
	body, err := def.Expand(cs.Args)
	if err != nil {
		return nil, err
	}
	log.Debugf("expanding function call %s", key)

	prog, err := c.Compile(body)
	if err != nil {
		return nil, fmt.Errorf("in function %s: %w", key, err)
	}
	c.functions[key] = prog
	return prog, nil
}

// Flatten inlines every function call of p, producing a program without
// OpCall. Recursion deeper than the expansion limit fails with
// errs.ErrRecursiveExpansion, since such a program has no finite flat form.
func (c *Compiler) Flatten(p *instr.Program) (*instr.Program, error) {
	out := &instr.Program{}
	if err := c.inline(p, out, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Compiler) inline(p *instr.Program, out *instr.Program, depth int) error {
	base := len(out.Code)
	for _, in := range p.Code {
		switch in.Op {
		case instr.OpCall:
			cs := p.Calls[in.Arg]
			if depth >= c.maxDepth() {
				return fmt.Errorf("%w: function %s nests deeper than %d calls", errs.ErrRecursiveExpansion, cs.Name, c.maxDepth())
			}
			body, err := c.CompileCall(cs)
			if err != nil {
				return err
			}
			if err := c.inline(body, out, depth+1); err != nil {
				return err
			}
		case instr.OpJump, instr.OpBack:
			// Partners are recorded below once the final offsets are known.
			out.Code = append(out.Code, instr.Instruction{Op: in.Op, Arg: -1})
		default:
			out.Code = append(out.Code, in)
		}
	}
	return rebind(out.Code[base:], base)
}

// rebind recomputes bracket partners for a balanced slice of code that
// starts at offset base in the enclosing program.
func rebind(code []instr.Instruction, base int) error {
	var open []int
	for i := range code {
		switch code[i].Op {
		case instr.OpJump:
			open = append(open, i)
		case instr.OpBack:
			if len(open) == 0 {
				return fmt.Errorf("%w: unmatched close", errs.ErrUnbalancedLoop)
			}
			j := open[len(open)-1]
			open = open[:len(open)-1]
			code[j].Arg = base + i
			code[i].Arg = base + j
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("%w: unmatched open", errs.ErrUnbalancedLoop)
	}
	return nil
}

// Functions returns the function declarations, sorted by name.
func (c *Compiler) Functions() []*Definition {
	var out []*Definition
	for _, def := range c.Defs.All() {
		if def.Kind == KindFunction {
			out = append(out, def)
		}
	}
	return out
}

// feed runs the expander over tokens, sending instructions to out. depth
// and stack track nested macro/procedure expansion.
func (c *Compiler) feed(tokens []Token, out sink, depth int, stack []string) error {
	for _, tok := range tokens {
		switch tok.Type {
		case EOF:
			return nil

		case INSTR:
			op, ok := instr.FromShort([]rune(tok.Lexeme)[0])
			if !ok {
				return fmt.Errorf("%w: %q on line %d", errs.ErrInvalidInstruction, tok.Lexeme, tok.Line)
			}
			if err := out.emit(op, tok.Line); err != nil {
				return err
			}

		case MACRO_DECL, PROC_DECL, FUNC_DECL:
			kind := KindMacro
			if tok.Type == PROC_DECL {
				kind = KindProcedure
			} else if tok.Type == FUNC_DECL {
				kind = KindFunction
			}
			def, err := parseDeclaration(kind, tok.Lexeme, tok.Line)
			if err != nil {
				return err
			}
			if err := c.Defs.Declare(def); err != nil {
				return err
			}
			log.Debugf("declared %s %s(%d params) on line %d", def.Kind, def.Name, len(def.Params), def.Line)

		case WORD:
			if err := c.word(tok, out, depth, stack); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Compiler) word(tok Token, out sink, depth int, stack []string) error {
	name, args, hasParens, err := parseCall(tok.Lexeme)
	if err != nil {
		return fmt.Errorf("%w on line %d", err, tok.Line)
	}

	def, ok := c.Defs.Lookup(name)
	if !ok {
		if op, builtin := instr.FromWord(name); builtin && !hasParens {
			return out.emit(op, tok.Line)
		}
		return fmt.Errorf("%w: %q on line %d", errs.ErrInvalidInstruction, tok.Lexeme, tok.Line)
	}

	if def.Kind == KindFunction {
		if len(args) != len(def.Params) {
			return fmt.Errorf("%w: function %s expects %d arguments, got %d on line %d",
				errs.ErrInvalidInstruction, name, len(def.Params), len(args), tok.Line)
		}
		return out.call(instr.CallSite{Name: name, Args: args}, tok.Line)
	}

	if slices.Contains(stack, name) {
		return fmt.Errorf("%w: %s %s calls itself on line %d", errs.ErrRecursiveExpansion, def.Kind, name, tok.Line)
	}
	if depth >= c.maxDepth() {
		return fmt.Errorf("%w: %s on line %d nests deeper than %d", errs.ErrExpansionDepth, name, tok.Line, c.maxDepth())
	}

	body, err := def.Expand(args)
	if err != nil {
		return fmt.Errorf("%w on line %d", err, tok.Line)
	}
	expanded, err := Lex(body)
	if err != nil {
		return fmt.Errorf("in %s on line %d: %w", name, tok.Line, err)
	}
	// Expanded text reports the line of the call site.
	for i := range expanded {
		expanded[i].Line = tok.Line
	}
	return c.feed(expanded, out, depth+1, append(stack[:len(stack):len(stack)], name))
}

// Check validates src without building a program: it expands declarations
// and calls, and verifies that brackets balance. Every call uses a fresh
// definition table, so checking the same source twice gives the same result.
func Check(src string, opts Options) error {
	tokens, err := Lex(src)
	if err != nil {
		return err
	}
	c := NewCompiler(opts, nil)
	counter := &bracketCounter{c: c, seen: make(map[string]bool)}
	if err := c.feed(tokens, counter, 0, nil); err != nil {
		return err
	}
	return counter.finish()
}
