package main

import (
	"bytes"
	"io"

	"gobf/pkg/instr"
	"gobf/pkg/vm"
)

// keyQueue feeds typed keys to ','. It never blocks: the runner holds the VM
// on an input instruction until a key is queued.
type keyQueue struct {
	keys []byte
}

func (q *keyQueue) Push(b byte) { q.keys = append(q.keys, b) }

func (q *keyQueue) Len() int { return len(q.keys) }

func (q *keyQueue) Read(p []byte) (int, error) {
	if len(q.keys) == 0 {
		return 0, io.EOF
	}
	n := copy(p, q.keys)
	q.keys = q.keys[n:]
	return n, nil
}

// runner drives a VM a bounded number of steps per frame.
type runner struct {
	vm      *vm.VM
	keys    *keyQueue
	output  bytes.Buffer
	paused  bool
	waiting bool
	err     error
}

func newRunner(v *vm.VM) *runner {
	r := &runner{vm: v, keys: &keyQueue{}}
	v.Input = r.keys
	v.Output = &r.output
	return r
}

// tick executes up to budget steps and reports how many ran.
func (r *runner) tick(budget int) int {
	if r.paused {
		return 0
	}
	n := 0
	for ; n < budget; n++ {
		if r.err != nil || r.vm.Halted {
			break
		}
		next, _ := r.vm.Next()
		r.waiting = next.Op == instr.OpIn && r.keys.Len() == 0
		if r.waiting {
			break
		}
		if err := r.vm.Step(); err != nil {
			r.err = err
			log.Errorf("%s", err)
			break
		}
	}
	return n
}

// status is the one-line summary drawn under the tape.
func (r *runner) status() string {
	switch {
	case r.err != nil:
		return r.err.Error()
	case r.vm.Halted:
		return "halted"
	case r.paused:
		return "paused"
	case r.waiting:
		return "waiting for input"
	}
	return "running"
}
