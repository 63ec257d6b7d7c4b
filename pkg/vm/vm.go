// Package vm executes resolved programs against a tape.
//
// The VM is a plain fetch/execute loop over instr.Instruction. Function calls
// push a frame holding the callee's program and cursor; when a frame runs off
// the end of its program it is popped and the caller continues after the call.
package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tliron/commonlog"

	"gobf/pkg/errs"
	"gobf/pkg/instr"
	"gobf/pkg/metrics"
	"gobf/pkg/tape"
)

const DefaultMaxCallDepth = 1024

var log = commonlog.GetLogger("gobf.vm")

// FunctionResolver expands a deferred call into the program it runs.
// *compiler.Compiler satisfies it.
type FunctionResolver interface {
	CompileCall(cs instr.CallSite) (*instr.Program, error)
}

// Event describes one executed instruction. Pointer and Value are read after
// the instruction took effect.
type Event struct {
	Step    int64
	Op      instr.Op
	Arg     int
	Depth   int
	Pointer int
	Value   uint8
}

// Tracer is called after every successful step.
type Tracer func(ev Event)

type frame struct {
	prog *instr.Program
	pc   int
	site instr.CallSite // zero for the main program
}

type VM struct {
	Tape     *tape.Tape
	Counters *metrics.Counters

	// Input is read by ',' one byte at a time. If nil, os.Stdin is used.
	Input io.Reader
	// Output receives the bytes written by '.'. If nil, os.Stdout is used.
	Output io.Writer

	Functions    FunctionResolver
	MaxCallDepth int
	Tracer       Tracer

	Halted bool

	frames []frame
	buf    [1]byte
}

// NewVM returns a halted VM over t. counters may be nil.
func NewVM(t *tape.Tape, counters *metrics.Counters) *VM {
	if t == nil {
		t = tape.New(0, 0)
	}
	if counters == nil {
		counters = &metrics.Counters{}
	}
	return &VM{
		Tape:         t,
		Counters:     counters,
		MaxCallDepth: DefaultMaxCallDepth,
		Halted:       true,
	}
}

// Load resets the call stack and starts prog from its first instruction.
// The tape is left as is.
func (v *VM) Load(prog *instr.Program) {
	v.frames = v.frames[:0]
	v.frames = append(v.frames, frame{prog: prog})
	v.Halted = false
	v.unwind()
}

// Depth is the number of active frames, 0 once halted.
func (v *VM) Depth() int { return len(v.frames) }

// PC returns the cursor of the innermost frame, or -1 when halted.
func (v *VM) PC() int {
	if len(v.frames) == 0 {
		return -1
	}
	return v.frames[len(v.frames)-1].pc
}

// Next returns the instruction the next Step will execute.
func (v *VM) Next() (instr.Instruction, bool) {
	if len(v.frames) == 0 {
		return instr.Instruction{}, false
	}
	top := v.frames[len(v.frames)-1]
	return top.prog.Code[top.pc], true
}

func (v *VM) outputSink() io.Writer {
	if v.Output != nil {
		return v.Output
	}
	return os.Stdout
}

func (v *VM) inputSource() io.Reader {
	if v.Input != nil {
		return v.Input
	}
	return os.Stdin
}

// unwind pops every frame whose cursor ran past its program.
func (v *VM) unwind() {
	for len(v.frames) > 0 {
		top := v.frames[len(v.frames)-1]
		if top.pc < len(top.prog.Code) {
			return
		}
		v.frames = v.frames[:len(v.frames)-1]
		if len(v.frames) > 0 {
			log.Debugf("return to depth %d", len(v.frames))
		}
	}
	v.Halted = true
}

// Step executes a single instruction. A failed step leaves the cursor on the
// failing instruction and the VM is not halted, so the state can be inspected.
func (v *VM) Step() error {
	if v.Halted {
		return nil
	}

	f := &v.frames[len(v.frames)-1]
	in := f.prog.Code[f.pc]
	next := f.pc + 1

	switch in.Op {
	case instr.OpRight:
		if err := v.Tape.Right(); err != nil {
			return err
		}
		v.Counters.DataMove++

	case instr.OpLeft:
		if err := v.Tape.Left(); err != nil {
			return err
		}
		v.Counters.DataMove++

	case instr.OpIncr:
		if err := v.Tape.Incr(); err != nil {
			return err
		}
		v.Counters.DataWrite++

	case instr.OpDecr:
		if err := v.Tape.Decr(); err != nil {
			return err
		}
		v.Counters.DataWrite++

	case instr.OpIn:
		b, err := v.readByte()
		if err != nil {
			return err
		}
		if err := v.Tape.Set(int(b)); err != nil {
			return err
		}
		v.Counters.DataWrite++

	case instr.OpOut:
		v.buf[0] = v.Tape.Current()
		if _, err := v.outputSink().Write(v.buf[:]); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		v.Counters.DataRead++

	case instr.OpJump:
		if v.Tape.Current() == 0 {
			next = in.Arg + 1
		}
		v.Counters.DataRead++

	case instr.OpBack:
		if v.Tape.Current() != 0 {
			next = in.Arg
		}
		v.Counters.DataRead++

	case instr.OpCall:
		if err := v.call(f.prog.Calls[in.Arg]); err != nil {
			return err
		}
		// call may have grown the stack; f is stale.
		v.frames[len(v.frames)-2].pc = next
		v.Counters.ExecMove++
		v.trace(in)
		v.unwind()
		return nil

	default:
		return fmt.Errorf("%w: op %d at %d", errs.ErrInvalidInstruction, in.Op, f.pc)
	}

	f.pc = next
	v.Counters.ExecMove++
	v.trace(in)
	v.unwind()
	return nil
}

func (v *VM) call(cs instr.CallSite) error {
	if v.Functions == nil {
		return fmt.Errorf("%w: no function resolver for %s", errs.ErrInvalidInstruction, cs.Key())
	}
	limit := v.MaxCallDepth
	if limit <= 0 {
		limit = DefaultMaxCallDepth
	}
	// The main program does not count as a call.
	if len(v.frames) > limit {
		return fmt.Errorf("%w: %s exceeds %d nested calls", errs.ErrCallDepth, cs.Key(), limit)
	}
	body, err := v.Functions.CompileCall(cs)
	if err != nil {
		return err
	}
	v.frames = append(v.frames, frame{prog: body, site: cs})
	log.Debugf("call %s at depth %d", cs.Key(), len(v.frames)-1)
	return nil
}

func (v *VM) readByte() (byte, error) {
	_, err := io.ReadFull(v.inputSource(), v.buf[:])
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read input: %w", err)
	}
	return v.buf[0], nil
}

func (v *VM) trace(in instr.Instruction) {
	if v.Tracer == nil {
		return
	}
	v.Tracer(Event{
		Step:    v.Counters.ExecMove,
		Op:      in.Op,
		Arg:     in.Arg,
		Depth:   len(v.frames),
		Pointer: v.Tape.Pointer(),
		Value:   v.Tape.Current(),
	})
}

// Run steps until the program halts or an instruction fails. The time spent
// is added to Counters.ExecTime either way.
func (v *VM) Run() error {
	start := time.Now()
	defer func() {
		v.Counters.ExecTime += time.Since(start)
	}()

	for !v.Halted {
		if err := v.Step(); err != nil {
			log.Debugf("run aborted after %d steps: %s", v.Counters.ExecMove, err)
			return err
		}
	}
	log.Infof("run finished after %d steps", v.Counters.ExecMove)
	return nil
}

// Execute loads prog and runs it to completion.
func (v *VM) Execute(prog *instr.Program) error {
	v.Load(prog)
	return v.Run()
}
