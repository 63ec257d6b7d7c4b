// Package bitmap stores programs as images. Every instruction is a square
// block of one colour, laid out left to right and top to bottom on a square
// canvas; blocks past the end of the program are painted with the sentinel.
package bitmap

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	"golang.org/x/image/bmp"

	"gobf/pkg/errs"
	"gobf/pkg/grid"
	"gobf/pkg/instr"
)

const DefaultBlockSide = 3

var log = commonlog.GetLogger("gobf.bitmap")

type Format int

const (
	FormatBMP Format = iota
	FormatPNG
)

func (f Format) String() string {
	if f == FormatPNG {
		return "png"
	}
	return "bmp"
}

// FormatFromPath picks the image format from the file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bmp":
		return FormatBMP, true
	case ".png":
		return FormatPNG, true
	}
	return FormatBMP, false
}

// IsImagePath reports whether path names a bitmap program.
func IsImagePath(path string) bool {
	_, ok := FormatFromPath(path)
	return ok
}

// Encode paints ops onto a square canvas of side*ceil(sqrt(len(ops))) pixels.
// An empty program still produces one sentinel block.
func Encode(ops []instr.Op, side int) (*image.RGBA, error) {
	if side <= 0 {
		side = DefaultBlockSide
	}
	cols := grid.SquareSide(len(ops))
	img := image.NewRGBA(image.Rect(0, 0, cols*side, cols*side))

	for i := 0; i < cols*cols; i++ {
		c := instr.Sentinel
		if i < len(ops) {
			var ok bool
			if c, ok = ops[i].Color(); !ok {
				return nil, fmt.Errorf("%w: %s at position %d has no colour", errs.ErrInvalidInstruction, ops[i], i)
			}
		}
		x, y := grid.GetGridCoords(i, cols)
		fillBlock(img, image.Rect(x*side, y*side, (x+1)*side, (y+1)*side), c)
	}
	return img, nil
}

func fillBlock(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// Decode reads the instruction of every block of img. Both dimensions must
// be multiples of side and every block must be a single colour. Sentinel
// blocks are skipped.
func Decode(img image.Image, side int) ([]instr.Op, error) {
	if side <= 0 {
		side = DefaultBlockSide
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || w%side != 0 || h%side != 0 {
		return nil, fmt.Errorf("%w: %dx%d image is not a whole number of %dx%d blocks", errs.ErrInvalidBitmap, w, h, side, side)
	}

	cols, rows := w/side, h/side
	var ops []instr.Op
	for i := 0; i < cols*rows; i++ {
		bx, by := grid.GetGridCoords(i, cols)
		x0, y0 := b.Min.X+bx*side, b.Min.Y+by*side

		c, err := blockColor(img, x0, y0, side)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d at (%d,%d)", err, i, bx, by)
		}
		if c == instr.Sentinel {
			continue
		}
		op, ok := instr.FromColor(c)
		if !ok {
			return nil, fmt.Errorf("%w: unknown colour #%02X%02X%02X in block %d at (%d,%d)",
				errs.ErrInvalidInstruction, c.R, c.G, c.B, i, bx, by)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// blockColor returns the colour of the side*side block at (x0,y0), failing
// if any pixel differs from the first.
func blockColor(img image.Image, x0, y0, side int) (color.RGBA, error) {
	first := instr.ToRGBA(img.At(x0, y0))
	for y := y0; y < y0+side; y++ {
		for x := x0; x < x0+side; x++ {
			if instr.ToRGBA(img.At(x, y)) != first {
				return color.RGBA{}, fmt.Errorf("%w: block is not a single colour", errs.ErrInvalidBitmap)
			}
		}
	}
	return first, nil
}

// Read decodes a BMP or PNG image from r and returns its instructions.
func Read(r io.Reader, side int) ([]instr.Op, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidBitmap, err)
	}
	log.Debugf("decoded %s image %v", format, img.Bounds().Size())
	return Decode(img, side)
}

// Write encodes ops and writes the image to w in format f.
func Write(w io.Writer, ops []instr.Op, side int, f Format) error {
	img, err := Encode(ops, side)
	if err != nil {
		return err
	}
	if f == FormatPNG {
		return png.Encode(w, img)
	}
	return bmp.Encode(w, img)
}
