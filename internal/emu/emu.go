package emu

import (
	"fmt"
	"hash/crc32"
	"math/rand/v2"
	"time"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/keypad"
	"github.com/retroenv/retrogolib/log"
)

// Colors used when the framebuffer is exported as RGBA.
var (
	OnColor  = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}
	OffColor = [4]byte{0x00, 0x00, 0x00, 0xFF}
)

// FrameResult is what one StepFrame produced for the audio and video hosts.
type FrameResult struct {
	SoundOn bool // sound timer still running after the tick
	Redraw  bool // framebuffer changed since the renderer last cleared it
	Steps   int  // instructions executed
}

type Machine struct {
	cfg    Config
	logger *log.Logger

	fb   *display.Framebuffer
	keys *keypad.Keypad
	cpu  *cpu.CPU
	rom  *cart.ROM

	frames    uint64
	lastFrame time.Time
	pix       []byte
}

// New wires an interpreter drawing into fb. No program is loaded yet.
func New(cfg Config, fb *display.Framebuffer, logger *log.Logger) *Machine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))

	m := &Machine{
		cfg:    cfg,
		logger: logger,
		fb:     fb,
		keys:   keypad.New(),
	}
	m.cpu = cpu.New(fb, logger,
		cpu.WithRand(func() byte { return byte(rng.UintN(256)) }),
		cpu.WithTrace(cfg.Trace),
	)
	return m
}

// LoadROM resets the machine and copies r to the program start address.
func (m *Machine) LoadROM(r *cart.ROM) error {
	m.rom = r
	if err := m.reload(); err != nil {
		m.rom = nil
		return err
	}
	m.logger.Info("ROM loaded",
		log.String("path", r.Path),
		log.Int("size", r.Size()),
		log.Hex("crc32", r.CRC32))
	return nil
}

// Reset returns to power-on state and reloads the current ROM, if any.
func (m *Machine) Reset() {
	if err := m.reload(); err != nil {
		// the image was validated when it was first loaded
		m.logger.Error("reloading ROM failed", log.Err(err))
	}
}

func (m *Machine) reload() error {
	m.cpu.Reset()
	m.keys.Set([keypad.Size]bool{})
	m.keys.SetHaltKey(keypad.NoKey)
	m.frames = 0
	if m.rom == nil {
		return nil
	}
	if err := m.cpu.LoadProgram(m.rom.Data); err != nil {
		return fmt.Errorf("load ROM: %w", err)
	}
	return nil
}

// SetKeys replaces the pressed state of all 16 keys. The host calls it once
// per frame before StepFrame.
func (m *Machine) SetKeys(state [keypad.Size]bool) { m.keys.Set(state) }

// StepFrame runs StepsPerFrame instructions followed by one timer tick. A
// precondition violation stops the frame early and is returned; the machine
// stays halted until Reset.
func (m *Machine) StepFrame() (FrameResult, error) {
	var res FrameResult
	for res.Steps < StepsPerFrame {
		if err := m.cpu.Step(m.keys); err != nil {
			res.Redraw = m.fb.Dirty()
			return res, fmt.Errorf("frame %d step %d: %w", m.frames, res.Steps, err)
		}
		res.Steps++
	}
	m.cpu.TickTimers()
	m.frames++

	res.SoundOn = m.cpu.SoundActive()
	res.Redraw = m.fb.Dirty()

	if m.cfg.LimitFPS {
		m.throttle()
	}
	return res, nil
}

func (m *Machine) throttle() {
	const period = time.Second / FrameRate
	if !m.lastFrame.IsZero() {
		if d := period - time.Since(m.lastFrame); d > 0 {
			time.Sleep(d)
		}
	}
	m.lastFrame = time.Now()
}

func (m *Machine) Framebuffer() *display.Framebuffer { return m.fb }
func (m *Machine) CPU() *cpu.CPU                     { return m.cpu }
func (m *Machine) Keypad() *keypad.Keypad            { return m.keys }
func (m *Machine) ROM() *cart.ROM                    { return m.rom }

// Frames reports how many frames completed since the last reset.
func (m *Machine) Frames() uint64 { return m.frames }

// Pixels returns the framebuffer as RGBA at logical resolution. The slice is
// reused by the next call.
func (m *Machine) Pixels() []byte {
	m.pix = m.fb.RGBA(m.pix, OnColor, OffColor)
	return m.pix
}

// FramebufferCRC identifies the current screen contents.
func (m *Machine) FramebufferCRC() uint32 {
	return crc32.ChecksumIEEE(m.Pixels())
}
