package emu

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
)

// SavePNG writes the framebuffer at logical resolution to path.
func (m *Machine) SavePNG(path string) error {
	pix := m.Pixels()
	img := &image.RGBA{
		Pix:    make([]byte, len(pix)),
		Stride: 4 * display.Width,
		Rect:   image.Rect(0, 0, display.Width, display.Height),
	}
	copy(img.Pix, pix)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
