package main

import (
	"errors"
	"testing"

	"gobf/pkg/errs"
	"gobf/pkg/session"
)

func newTestRunner(t *testing.T, src string) *runner {
	t.Helper()
	s := session.New(nil)
	if err := s.LoadSource(src); err != nil {
		t.Fatal(err)
	}
	return newRunner(s.NewVM(nil, nil))
}

func TestRunnerWaitsForInput(t *testing.T) {
	r := newTestRunner(t, "+,.")
	if n := r.tick(10); n != 1 || !r.waiting {
		t.Fatalf("tick = %d, waiting = %v; want 1, true", n, r.waiting)
	}
	if r.status() != "waiting for input" {
		t.Errorf("status = %q", r.status())
	}
	r.keys.Push('A')
	r.tick(10)
	if !r.vm.Halted || r.output.String() != "A" {
		t.Errorf("halted = %v, output = %q", r.vm.Halted, r.output.String())
	}
}

func TestRunnerPause(t *testing.T) {
	r := newTestRunner(t, "+++")
	r.paused = true
	if n := r.tick(10); n != 0 {
		t.Errorf("paused tick ran %d steps", n)
	}
	r.paused = false
	if n := r.tick(2); n != 2 {
		t.Errorf("tick(2) ran %d steps", n)
	}
	r.tick(10)
	if r.status() != "halted" || r.vm.Tape.Current() != 3 {
		t.Errorf("status = %q, cell = %d", r.status(), r.vm.Tape.Current())
	}
}

func TestRunnerStopsOnError(t *testing.T) {
	r := newTestRunner(t, "<+")
	r.tick(10)
	if !errors.Is(r.err, errs.ErrTapeBound) {
		t.Fatalf("err = %v", r.err)
	}
	if n := r.tick(10); n != 0 {
		t.Errorf("tick after error ran %d steps", n)
	}
}

func TestTail(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"a\nb\nc\nd", 3, "b\nc\nd"},
		{"a\nb", 3, "a\nb"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := tail(tt.in, tt.n); got != tt.want {
			t.Errorf("tail(%q, %d) = %q; want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
