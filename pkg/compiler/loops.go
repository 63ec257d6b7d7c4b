package compiler

import (
	"fmt"

	"gobf/pkg/errs"
	"gobf/pkg/instr"
)

// sink receives the instruction stream produced by the expander.
type sink interface {
	emit(op instr.Op, line int) error
	call(cs instr.CallSite, line int) error
}

// loopResolver builds a Program, binding every '[' to its ']' as they are
// emitted. open holds the indices of the '[' still waiting for a partner.
type loopResolver struct {
	code      []instr.Instruction
	calls     []instr.CallSite
	callIndex map[string]int
	open      []int
	openLines []int
}

func newLoopResolver() *loopResolver {
	return &loopResolver{callIndex: make(map[string]int)}
}

func (r *loopResolver) emit(op instr.Op, line int) error {
	idx := len(r.code)
	switch op {
	case instr.OpJump:
		r.open = append(r.open, idx)
		r.openLines = append(r.openLines, line)
		r.code = append(r.code, instr.Instruction{Op: op})
	case instr.OpBack:
		if len(r.open) == 0 {
			return fmt.Errorf("%w: unmatched close on line %d", errs.ErrUnbalancedLoop, line)
		}
		top := len(r.open) - 1
		jump := r.open[top]
		r.open = r.open[:top]
		r.openLines = r.openLines[:top]
		r.code[jump].Arg = idx
		r.code = append(r.code, instr.Instruction{Op: op, Arg: jump})
	default:
		r.code = append(r.code, instr.Instruction{Op: op})
	}
	return nil
}

func (r *loopResolver) call(cs instr.CallSite, _ int) error {
	key := cs.Key()
	idx, ok := r.callIndex[key]
	if !ok {
		idx = len(r.calls)
		r.calls = append(r.calls, cs)
		r.callIndex[key] = idx
	}
	r.code = append(r.code, instr.Instruction{Op: instr.OpCall, Arg: idx})
	return nil
}

// finish fails if any '[' is still open and returns the resolved program.
func (r *loopResolver) finish() (*instr.Program, error) {
	if len(r.open) > 0 {
		return nil, fmt.Errorf("%w: unmatched open on line %d", errs.ErrUnbalancedLoop, r.openLines[len(r.openLines)-1])
	}
	return &instr.Program{Code: r.code, Calls: r.calls}, nil
}

// bracketCounter is the validation-only sink: it counts brackets and
// never builds instructions. Function bodies are counted separately, once
// per distinct call, up to the expansion depth limit.
type bracketCounter struct {
	c     *Compiler
	depth int // open brackets
	level int // function nesting
	seen  map[string]bool
}

func (b *bracketCounter) emit(op instr.Op, line int) error {
	switch op {
	case instr.OpJump:
		b.depth++
	case instr.OpBack:
		b.depth--
		if b.depth < 0 {
			return fmt.Errorf("%w: unmatched close on line %d", errs.ErrUnbalancedLoop, line)
		}
	}
	return nil
}

func (b *bracketCounter) call(cs instr.CallSite, line int) error {
	key := cs.Key()
	if b.seen[key] || b.level >= b.c.maxDepth() {
		return nil
	}
	b.seen[key] = true

	def, _ := b.c.Defs.Lookup(cs.Name)
	body, err := def.Expand(cs.Args)
	if err != nil {
		return fmt.Errorf("%w on line %d", err, line)
	}
	toks, err := Lex(body)
	if err != nil {
		return fmt.Errorf("in %s on line %d: %w", cs.Name, line, err)
	}
	inner := &bracketCounter{c: b.c, level: b.level + 1, seen: b.seen}
	if err := b.c.feed(toks, inner, 0, nil); err != nil {
		return fmt.Errorf("in %s on line %d: %w", cs.Name, line, err)
	}
	if err := inner.finish(); err != nil {
		return fmt.Errorf("in %s on line %d: %w", cs.Name, line, err)
	}
	return nil
}

func (b *bracketCounter) finish() error {
	if b.depth != 0 {
		return fmt.Errorf("%w: %d unmatched open at end of input", errs.ErrUnbalancedLoop, b.depth)
	}
	return nil
}
