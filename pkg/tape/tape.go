// Package tape implements the memory of the machine: a fixed-length row of
// byte cells and a single pointer.
//
// The tape never grows and never wraps. Moving the pointer off either end
// returns errs.ErrTapeBound; taking a cell outside 0..Max returns
// errs.ErrValueBound. Either way the tape is left unchanged.
package tape

import (
	"fmt"
	"strings"

	"gobf/pkg/errs"
)

const (
	DefaultSize = 30000
	DefaultMax  = 255
)

type Tape struct {
	cells   []uint8
	ptr     int
	max     uint8
	highest int // highest index the pointer has reached
}

// New returns a tape of size cells bounded by max. Zero values select the defaults.
func New(size int, max uint8) *Tape {
	if size <= 0 {
		size = DefaultSize
	}
	if max == 0 {
		max = DefaultMax
	}
	return &Tape{cells: make([]uint8, size), max: max}
}

func (t *Tape) Len() int       { return len(t.cells) }
func (t *Tape) Max() uint8     { return t.max }
func (t *Tape) Pointer() int   { return t.ptr }
func (t *Tape) Highest() int   { return t.highest }
func (t *Tape) Current() uint8 { return t.cells[t.ptr] }

// Cell returns the value at index i, or 0 outside the tape.
func (t *Tape) Cell(i int) uint8 {
	if i < 0 || i >= len(t.cells) {
		return 0
	}
	return t.cells[i]
}

func (t *Tape) Right() error {
	if t.ptr+1 >= len(t.cells) {
		return fmt.Errorf("%w: pointer cannot move right of cell %d", errs.ErrTapeBound, t.ptr)
	}
	t.ptr++
	if t.ptr > t.highest {
		t.highest = t.ptr
	}
	return nil
}

func (t *Tape) Left() error {
	if t.ptr == 0 {
		return fmt.Errorf("%w: pointer cannot move left of cell 0", errs.ErrTapeBound)
	}
	t.ptr--
	return nil
}

func (t *Tape) Incr() error {
	if t.cells[t.ptr] >= t.max {
		return fmt.Errorf("%w: cell %d already holds %d", errs.ErrValueBound, t.ptr, t.max)
	}
	t.cells[t.ptr]++
	return nil
}

func (t *Tape) Decr() error {
	if t.cells[t.ptr] == 0 {
		return fmt.Errorf("%w: cell %d already holds 0", errs.ErrValueBound, t.ptr)
	}
	t.cells[t.ptr]--
	return nil
}

// Set stores v in the current cell.
func (t *Tape) Set(v int) error {
	if v < 0 || v > int(t.max) {
		return fmt.Errorf("%w: %d does not fit cell %d (0..%d)", errs.ErrValueBound, v, t.ptr, t.max)
	}
	t.cells[t.ptr] = uint8(v)
	return nil
}

// Used returns a copy of the cells from 0 up to the highest visited index.
func (t *Tape) Used() []uint8 {
	out := make([]uint8, t.highest+1)
	copy(out, t.cells[:t.highest+1])
	return out
}

// Load replaces the tape contents. Cells past len(cells) are cleared.
func (t *Tape) Load(cells []uint8, ptr int) error {
	if len(cells) > len(t.cells) {
		return fmt.Errorf("%w: %d cells do not fit a tape of %d", errs.ErrTapeBound, len(cells), len(t.cells))
	}
	if ptr < 0 || ptr >= len(t.cells) {
		return fmt.Errorf("%w: pointer %d outside tape", errs.ErrTapeBound, ptr)
	}
	for i, v := range cells {
		if v > t.max {
			return fmt.Errorf("%w: cell %d holds %d", errs.ErrValueBound, i, v)
		}
	}
	clear(t.cells)
	copy(t.cells, cells)
	t.ptr = ptr
	t.highest = max(ptr, len(cells)-1, 0)
	return nil
}

// String dumps every visited cell as "C<i>: <v>", one per line.
func (t *Tape) String() string {
	var sb strings.Builder
	for i := 0; i <= t.highest; i++ {
		fmt.Fprintf(&sb, "C%d: %d\n", i, t.cells[i])
	}
	return sb.String()
}
