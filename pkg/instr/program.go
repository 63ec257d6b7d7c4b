package instr

import (
	"fmt"
	"strings"
)

// Instruction is one resolved program step. For OpJump and OpBack, Arg is
// the index of the partner bracket. For OpCall, Arg indexes Program.Calls.
type Instruction struct {
	Op  Op  `cbor:"1,keyasint" json:"op"`
	Arg int `cbor:"2,keyasint" json:"arg,omitempty"`
}

// CallSite names a function invocation and its actual arguments.
type CallSite struct {
	Name string   `cbor:"1,keyasint" json:"name"`
	Args []string `cbor:"2,keyasint" json:"args,omitempty"`
}

// Key identifies the expansion of a call site; equal keys expand to equal code.
func (cs CallSite) Key() string {
	return cs.Name + "(" + strings.Join(cs.Args, ";") + ")"
}

// Program is a flat instruction sequence with every loop bound.
type Program struct {
	Code  []Instruction `cbor:"1,keyasint" json:"code"`
	Calls []CallSite    `cbor:"2,keyasint" json:"calls,omitempty"`
}

func (p *Program) Len() int { return len(p.Code) }

// Ops returns the instruction kinds in order.
func (p *Program) Ops() []Op {
	ops := make([]Op, len(p.Code))
	for i, in := range p.Code {
		ops[i] = in.Op
	}
	return ops
}

// Size counts the instructions that are not deferred calls.
func (p *Program) Size() int {
	n := 0
	for _, in := range p.Code {
		if in.Op != OpCall {
			n++
		}
	}
	return n
}

// HasCalls reports whether any instruction defers to a function.
func (p *Program) HasCalls() bool {
	for _, in := range p.Code {
		if in.Op == OpCall {
			return true
		}
	}
	return false
}

// Validate checks that every bracket's partner points back at it and that
// every call indexes a known call site.
func (p *Program) Validate() error {
	for i, in := range p.Code {
		switch in.Op {
		case OpJump, OpBack:
			if in.Arg < 0 || in.Arg >= len(p.Code) {
				return fmt.Errorf("instruction %d: partner %d out of range", i, in.Arg)
			}
			partner := p.Code[in.Arg]
			want := OpBack
			if in.Op == OpBack {
				want = OpJump
			}
			if partner.Op != want || partner.Arg != i {
				return fmt.Errorf("instruction %d: %s not bound to its partner at %d", i, in.Op, in.Arg)
			}
		case OpCall:
			if in.Arg < 0 || in.Arg >= len(p.Calls) {
				return fmt.Errorf("instruction %d: call site %d out of range", i, in.Arg)
			}
		default:
			if !in.Op.IsPrimitive() {
				return fmt.Errorf("instruction %d: unknown op %d", i, in.Op)
			}
		}
	}
	return nil
}

// String renders the program in short syntax; calls render as "name(args)".
func (p *Program) String() string {
	var sb strings.Builder
	for _, in := range p.Code {
		if sym, ok := in.Op.Symbol(); ok {
			sb.WriteByte(sym)
			continue
		}
		if in.Op == OpCall && in.Arg < len(p.Calls) {
			sb.WriteString(" " + p.Calls[in.Arg].Key() + " ")
		}
	}
	return sb.String()
}
