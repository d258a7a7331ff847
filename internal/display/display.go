// Package display holds the monochrome framebuffer the interpreter draws into.
package display

import (
	"errors"
	"fmt"
	"strings"
)

// Logical grid size.
const (
	Width  = 64
	Height = 32
)

// ErrWindowSize is returned when the host window cannot be divided evenly into
// square cells of the logical grid.
var ErrWindowSize = errors.New("window size does not fit the display grid")

// Pixel is one logical cell. X and Y repeat the grid position so a renderer can
// map a cell to a physical rectangle without tracking indices.
type Pixel struct {
	X, Y int
	On   bool
}

// Framebuffer is a Width x Height grid of on/off cells plus the physical scale
// of each cell and a "changed since last render" flag.
type Framebuffer struct {
	cells [Height][Width]Pixel
	scale int
	dirty bool
}

// New builds a framebuffer for a host window of windowW x windowH physical pixels.
// Both dimensions must be exact multiples of the logical grid and yield the same scale.
func New(windowW, windowH int) (*Framebuffer, error) {
	if windowW <= 0 || windowH <= 0 {
		return nil, fmt.Errorf("%w: window %dx%d", ErrWindowSize, windowW, windowH)
	}
	if windowH%Height != 0 {
		return nil, fmt.Errorf("%w: window height %d is not a multiple of %d", ErrWindowSize, windowH, Height)
	}
	if windowW%Width != 0 {
		return nil, fmt.Errorf("%w: window width %d is not a multiple of %d", ErrWindowSize, windowW, Width)
	}
	hs, ws := windowH/Height, windowW/Width
	if hs != ws {
		return nil, fmt.Errorf("%w: width scale %d != height scale %d", ErrWindowSize, ws, hs)
	}

	f := &Framebuffer{scale: hs}
	for y := range f.cells {
		for x := range f.cells[y] {
			f.cells[y][x] = Pixel{X: x, Y: y}
		}
	}
	return f, nil
}

func (f *Framebuffer) Width() int  { return Width }
func (f *Framebuffer) Height() int { return Height }

// Scale is the number of physical pixels per logical cell on each axis.
func (f *Framebuffer) Scale() int { return f.scale }

// Clear turns every cell off and marks the framebuffer dirty.
func (f *Framebuffer) Clear() {
	for y := range f.cells {
		for x := range f.cells[y] {
			f.cells[y][x].On = false
		}
	}
	f.dirty = true
}

// Pixel returns the cell at (x, y). Out-of-grid coordinates return an off cell.
func (f *Framebuffer) Pixel(x, y int) Pixel {
	if !inGrid(x, y) {
		return Pixel{X: x, Y: y}
	}
	return f.cells[y][x]
}

func (f *Framebuffer) On(x, y int) bool {
	return inGrid(x, y) && f.cells[y][x].On
}

// Set changes one cell. It does not touch the dirty flag; callers that draw
// mark it once per operation.
func (f *Framebuffer) Set(x, y int, on bool) {
	if !inGrid(x, y) {
		return
	}
	f.cells[y][x].On = on
}

func (f *Framebuffer) Dirty() bool { return f.dirty }
func (f *Framebuffer) MarkDirty()  { f.dirty = true }

// ClearDirty is called by the renderer after it consumed the frame.
func (f *Framebuffer) ClearDirty() { f.dirty = false }

// Pixels calls fn for every cell in row-major order.
func (f *Framebuffer) Pixels(fn func(p Pixel)) {
	for y := range f.cells {
		for _, p := range f.cells[y] {
			fn(p)
		}
	}
}

// RGBA renders the grid at logical resolution into dst (Width*Height*4 bytes),
// allocating when dst is too small.
func (f *Framebuffer) RGBA(dst []byte, on, off [4]byte) []byte {
	if len(dst) < Width*Height*4 {
		dst = make([]byte, Width*Height*4)
	}
	i := 0
	f.Pixels(func(p Pixel) {
		c := off
		if p.On {
			c = on
		}
		copy(dst[i:i+4], c[:])
		i += 4
	})
	return dst
}

// Text renders the grid as lines of runes, one rune per cell.
func (f *Framebuffer) Text(on, off rune) string {
	var sb strings.Builder
	sb.Grow((Width + 1) * Height * 3)
	for y := range f.cells {
		for _, p := range f.cells[y] {
			if p.On {
				sb.WriteRune(on)
			} else {
				sb.WriteRune(off)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func inGrid(x, y int) bool {
	return x >= 0 && x < Width && y >= 0 && y < Height
}
