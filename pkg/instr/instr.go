// Package instr defines the closed instruction set of the language, its
// short and long spellings, the bitmap colour of every instruction, and the
// resolved Program produced by the compiler.
package instr

import (
	"fmt"
	"image/color"
)

// Op identifies an instruction kind.
type Op uint8

const (
	OpRight Op = iota // >  RIGHT
	OpLeft            // <  LEFT
	OpIncr            // +  INCR
	OpDecr            // -  DECR
	OpIn              // ,  IN
	OpOut             // .  OUT
	OpJump            // [  JUMP
	OpBack            // ]  BACK

	// OpCall invokes a declared function. It has no spelling and no colour:
	// the compiler emits it for function call sites only.
	OpCall
)

// Primitives lists the eight spellable instructions in colour-table order.
var Primitives = []Op{OpRight, OpLeft, OpIncr, OpDecr, OpIn, OpOut, OpJump, OpBack}

var shortForms = map[rune]Op{
	'>': OpRight,
	'<': OpLeft,
	'+': OpIncr,
	'-': OpDecr,
	',': OpIn,
	'.': OpOut,
	'[': OpJump,
	']': OpBack,
}

var longForms = map[string]Op{
	"RIGHT": OpRight,
	"LEFT":  OpLeft,
	"INCR":  OpIncr,
	"DECR":  OpDecr,
	"IN":    OpIn,
	"OUT":   OpOut,
	"JUMP":  OpJump,
	"BACK":  OpBack,
}

var symbols = [...]byte{
	OpRight: '>',
	OpLeft:  '<',
	OpIncr:  '+',
	OpDecr:  '-',
	OpIn:    ',',
	OpOut:   '.',
	OpJump:  '[',
	OpBack:  ']',
}

var words = [...]string{
	OpRight: "RIGHT",
	OpLeft:  "LEFT",
	OpIncr:  "INCR",
	OpDecr:  "DECR",
	OpIn:    "IN",
	OpOut:   "OUT",
	OpJump:  "JUMP",
	OpBack:  "BACK",
	OpCall:  "CALL",
}

// Sentinel is the colour of a padding block in a bitmap program.
var Sentinel = color.RGBA{0x00, 0x00, 0x00, 0xFF}

var colors = [...]color.RGBA{
	OpRight: {0x00, 0x00, 0xFF, 0xFF},
	OpLeft:  {0x94, 0x00, 0xD3, 0xFF},
	OpIncr:  {0xFF, 0xFF, 0xFF, 0xFF},
	OpDecr:  {0x4B, 0x00, 0x82, 0xFF},
	OpIn:    {0xFF, 0xFF, 0x00, 0xFF},
	OpOut:   {0x00, 0xFF, 0x00, 0xFF},
	OpJump:  {0xFF, 0x7F, 0x00, 0xFF},
	OpBack:  {0xFF, 0x00, 0x00, 0xFF},
}

var byColor = func() map[color.RGBA]Op {
	m := make(map[color.RGBA]Op, len(Primitives))
	for _, op := range Primitives {
		m[colors[op]] = op
	}
	return m
}()

func (op Op) String() string {
	if int(op) < len(words) {
		return words[op]
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// IsPrimitive reports whether op has a textual and a colour encoding.
func (op Op) IsPrimitive() bool { return op <= OpBack }

// Symbol returns the short spelling of op.
func (op Op) Symbol() (byte, bool) {
	if !op.IsPrimitive() {
		return 0, false
	}
	return symbols[op], true
}

// Color returns the bitmap colour of op.
func (op Op) Color() (color.RGBA, bool) {
	if !op.IsPrimitive() {
		return color.RGBA{}, false
	}
	return colors[op], true
}

// FromShort classifies a single-character instruction.
func FromShort(r rune) (Op, bool) {
	op, ok := shortForms[r]
	return op, ok
}

// FromWord classifies a long-form instruction word. Words are case sensitive.
func FromWord(w string) (Op, bool) {
	op, ok := longForms[w]
	return op, ok
}

// FromColor classifies an opaque pixel colour. The sentinel is not an instruction.
func FromColor(c color.Color) (Op, bool) {
	op, ok := byColor[ToRGBA(c)]
	return op, ok
}

// ToRGBA drops the alpha channel and converts c to 8-bit components.
func ToRGBA(c color.Color) color.RGBA {
	r, g, b, _ := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 0xFF}
}
