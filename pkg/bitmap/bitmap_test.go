package bitmap

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"reflect"
	"testing"

	"gobf/pkg/errs"
	"gobf/pkg/instr"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillBlock(img, img.Bounds(), c)
	return img
}

func TestEncodeGeometry(t *testing.T) {
	tests := []struct {
		n    int
		side int
		want int
	}{
		{0, 3, 3},
		{1, 3, 3},
		{2, 3, 6},
		{4, 3, 6},
		{5, 3, 9},
		{10, 2, 8},
	}
	for _, tc := range tests {
		ops := make([]instr.Op, tc.n)
		img, err := Encode(ops, tc.side)
		if err != nil {
			t.Fatal(err)
		}
		if b := img.Bounds(); b.Dx() != tc.want || b.Dy() != tc.want {
			t.Errorf("Encode(%d ops, side %d) = %v; want %dx%d", tc.n, tc.side, b, tc.want, tc.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	programs := [][]instr.Op{
		nil,
		{instr.OpIncr},
		instr.Primitives,
		{instr.OpIncr, instr.OpJump, instr.OpDecr, instr.OpBack, instr.OpRight, instr.OpOut},
	}
	for _, ops := range programs {
		img, err := Encode(ops, DefaultBlockSide)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Decode(img, DefaultBlockSide)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if len(got) == 0 && len(ops) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, ops) {
			t.Errorf("round trip = %v; want %v", got, ops)
		}
	}
}

func TestReadWrite(t *testing.T) {
	ops := []instr.Op{instr.OpIncr, instr.OpIncr, instr.OpJump, instr.OpDecr, instr.OpBack, instr.OpIn, instr.OpLeft}
	for _, f := range []Format{FormatBMP, FormatPNG} {
		t.Run(f.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, ops, DefaultBlockSide, f); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := Read(&buf, DefaultBlockSide)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if !reflect.DeepEqual(got, ops) {
				t.Errorf("Read = %v; want %v", got, ops)
			}
		})
	}
}

func TestDecodeAllSentinel(t *testing.T) {
	ops, err := Decode(solid(6, 6, instr.Sentinel), DefaultBlockSide)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("Decode = %v; want no instructions", ops)
	}
}

func TestDecodeNRGBA(t *testing.T) {
	c, _ := instr.OpOut.Color()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			img.Set(x, y, color.NRGBA{c.R, c.G, c.B, 0xFF})
		}
	}
	ops, err := Decode(img, 3)
	if err != nil || len(ops) != 1 || ops[0] != instr.OpOut {
		t.Errorf("Decode = %v, %v", ops, err)
	}
}

func TestDecodeErrors(t *testing.T) {
	white, _ := instr.OpIncr.Color()

	mixed := solid(6, 3, white)
	mixed.SetRGBA(4, 1, instr.Sentinel)

	unknown := solid(3, 3, color.RGBA{0x12, 0x34, 0x56, 0xFF})

	tests := []struct {
		name string
		img  image.Image
		want error
	}{
		{"Width Not Multiple", solid(4, 3, white), errs.ErrInvalidBitmap},
		{"Height Not Multiple", solid(3, 5, white), errs.ErrInvalidBitmap},
		{"Empty", image.NewRGBA(image.Rect(0, 0, 0, 0)), errs.ErrInvalidBitmap},
		{"Mixed Block", mixed, errs.ErrInvalidBitmap},
		{"Unknown Colour", unknown, errs.ErrInvalidInstruction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.img, DefaultBlockSide)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode error = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestEncodeCall(t *testing.T) {
	if _, err := Encode([]instr.Op{instr.OpIncr, instr.OpCall}, 3); !errors.Is(err, errs.ErrInvalidInstruction) {
		t.Errorf("Encode with OpCall: %v", err)
	}
}

func TestReadGarbage(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("not an image")), 3); !errors.Is(err, errs.ErrInvalidBitmap) {
		t.Errorf("Read garbage: %v", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"prog.bmp", FormatBMP, true},
		{"dir/PROG.PNG", FormatPNG, true},
		{"prog.bf", FormatBMP, false},
	}
	for _, tc := range tests {
		got, ok := FormatFromPath(tc.path)
		if got != tc.want || ok != tc.ok {
			t.Errorf("FormatFromPath(%q) = %v, %v; want %v, %v", tc.path, got, ok, tc.want, tc.ok)
		}
	}
}
