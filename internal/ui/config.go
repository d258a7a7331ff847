package ui

import "github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"

// Config contains window/input/audio related settings.
type Config struct {
	Title  string  // window title
	Scale  int     // integer upscaling factor, equal on both axes
	Volume float64 // beep gain 0..1
	Muted  bool
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "c8emu"
	}
	if c.Scale <= 0 {
		c.Scale = 10
	}
	if c.Volume <= 0 {
		c.Volume = 0.25
	}
}

// WindowSize is the physical window size for the configured scale.
func (c Config) WindowSize() (int, int) {
	return display.Width * c.Scale, display.Height * c.Scale
}
