package cpu

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/disasm"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/keypad"
	"github.com/retroenv/retrogolib/log"
)

// StackDepth is the maximum number of nested subroutine calls.
const StackDepth = 16

const vf = 0xF

// Precondition violations. Any of them halts the interpreter.
var (
	ErrStackUnderflow = errors.New("return with empty call stack")
	ErrStackOverflow  = errors.New("call stack depth exceeded")
	ErrPCOutOfRange   = errors.New("program counter outside memory")
	ErrHalted         = errors.New("interpreter halted")
)

// RandSource supplies the random byte for CXNN.
type RandSource func() byte

// Option configures a CPU at construction.
type Option func(*CPU)

// WithRand replaces the random source used by CXNN.
func WithRand(r RandSource) Option {
	return func(c *CPU) { c.rand = r }
}

// WithTrace logs every executed instruction at debug level.
func WithTrace(on bool) Option {
	return func(c *CPU) { c.trace = on }
}

// CPU is the CHIP-8 interpreter. It owns memory, registers, the call stack,
// both timers and the framebuffer it draws into.
type CPU struct {
	// V0-VF. VF doubles as the carry/borrow/collision flag.
	V  [16]byte
	I  uint16
	PC uint16

	stack []uint16
	delay byte
	sound byte
	wait  KeyWait

	// first precondition violation; once set every Step fails
	halted error

	mem    *bus.Bus
	fb     *display.Framebuffer
	rand   RandSource
	trace  bool
	logger *log.Logger
}

// New creates an interpreter drawing into fb. The font is loaded immediately.
func New(fb *display.Framebuffer, logger *log.Logger, opts ...Option) *CPU {
	c := &CPU{
		PC:     bus.ProgramStart,
		stack:  make([]uint16, 0, StackDepth),
		mem:    bus.New(),
		fb:     fb,
		rand:   func() byte { return byte(rand.UintN(256)) },
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset returns the interpreter to power-on state: registers, stack, timers
// and memory are cleared, the font is reloaded and the screen is blanked.
func (c *CPU) Reset() {
	c.V = [16]byte{}
	c.I = 0
	c.PC = bus.ProgramStart
	c.stack = c.stack[:0]
	c.delay, c.sound = 0, 0
	c.wait = WaitIdle
	c.halted = nil
	c.mem.Reset()
	c.fb.Clear()
}

// LoadProgram copies a program image to the program start address.
func (c *CPU) LoadProgram(data []byte) error {
	if err := c.mem.Load(bus.ProgramStart, data); err != nil {
		return fmt.Errorf("load program: %w", err)
	}
	return nil
}

// Bus exposes memory for tests/tools.
func (c *CPU) Bus() *bus.Bus { return c.mem }

// Framebuffer exposes the display the interpreter draws into.
func (c *CPU) Framebuffer() *display.Framebuffer { return c.fb }

// Stack returns a copy of the return addresses, oldest first.
func (c *CPU) Stack() []uint16 {
	s := make([]uint16, len(c.stack))
	copy(s, c.stack)
	return s
}

// WaitState reports the blocking key-wait progress.
func (c *CPU) WaitState() KeyWait { return c.wait }

// Halted returns the precondition violation that stopped the interpreter, if any.
func (c *CPU) Halted() error { return c.halted }

func (c *CPU) halt(err error) error {
	c.halted = err
	return err
}

// Step executes one instruction, reading the key state from keys.
func (c *CPU) Step(keys *keypad.Keypad) error {
	if c.halted != nil {
		return fmt.Errorf("%w: %w", ErrHalted, c.halted)
	}
	if !c.mem.InRange(c.PC, 2) {
		return c.halt(fmt.Errorf("%w: fetch at %#04x", ErrPCOutOfRange, c.PC))
	}

	pc := c.PC
	op := c.mem.Read16(pc)
	c.PC += 2
	if c.trace {
		c.logger.Debug("step", log.Hex("pc", pc), log.Hex("opcode", op), log.String("ins", disasm.Format(op)))
	}

	x := byte(op>>8) & 0xF
	y := byte(op>>4) & 0xF
	n := byte(op) & 0xF
	nn := byte(op)
	nnn := op & 0x0FFF

	switch op >> 12 {
	case 0x0:
		switch op {
		case 0x00E0: // CLS
			c.fb.Clear()
		case 0x00EE: // RET
			if len(c.stack) == 0 {
				c.PC = pc
				return c.halt(fmt.Errorf("%w at %#04x", ErrStackUnderflow, pc))
			}
			c.PC = c.stack[len(c.stack)-1]
			c.stack = c.stack[:len(c.stack)-1]
		default: // 0NNN machine routines are not supported
			c.unknown(pc, op)
		}

	case 0x1: // JP NNN
		c.PC = nnn

	case 0x2: // CALL NNN
		if len(c.stack) == StackDepth {
			c.PC = pc
			return c.halt(fmt.Errorf("%w at %#04x", ErrStackOverflow, pc))
		}
		c.stack = append(c.stack, c.PC)
		c.PC = nnn

	case 0x3: // SE VX, NN
		if c.V[x] == nn {
			c.PC += 2
		}

	case 0x4: // SNE VX, NN
		if c.V[x] != nn {
			c.PC += 2
		}

	case 0x5: // SE VX, VY
		if n != 0 {
			c.unknown(pc, op)
			break
		}
		if c.V[x] == c.V[y] {
			c.PC += 2
		}

	case 0x6: // LD VX, NN
		c.V[x] = nn

	case 0x7: // ADD VX, NN (VF untouched)
		c.V[x] += nn

	case 0x8:
		if !c.alu(x, y, n) {
			c.unknown(pc, op)
		}

	case 0x9: // SNE VX, VY
		if n != 0 {
			c.unknown(pc, op)
			break
		}
		if c.V[x] != c.V[y] {
			c.PC += 2
		}

	case 0xA: // LD I, NNN
		c.I = nnn

	case 0xB: // JP V0, NNN
		c.PC = uint16(c.V[0]) + nnn

	case 0xC: // RND VX, NN
		c.V[x] = c.rand() & nn

	case 0xD: // DRW VX, VY, N
		c.draw(x, y, n)

	case 0xE:
		key := int(c.V[x])
		switch nn {
		case 0x9E: // SKP VX
			if key < keypad.Size && keys.Pressed(key) {
				c.PC += 2
			}
		case 0xA1: // SKNP VX
			if !keys.Pressed(key) {
				c.PC += 2
			}
		default:
			c.unknown(pc, op)
		}

	case 0xF:
		if !c.misc(pc, x, nn, keys) {
			c.unknown(pc, op)
		}
	}
	return nil
}

// alu executes the 8XYN register group. It returns false for an undefined N.
// Results are stored before VF so that the flag wins when X is F.
func (c *CPU) alu(x, y, n byte) bool {
	vx, vy := c.V[x], c.V[y]
	switch n {
	case 0x0:
		c.V[x] = vy
	case 0x1:
		c.V[x] = vx | vy
	case 0x2:
		c.V[x] = vx & vy
	case 0x3:
		c.V[x] = vx ^ vy
	case 0x4:
		sum := uint16(vx) + uint16(vy)
		c.V[x] = byte(sum)
		c.V[vf] = boolByte(sum > 0xFF)
	case 0x5:
		c.V[x] = vx - vy
		c.V[vf] = boolByte(vx >= vy)
	case 0x6:
		c.V[x] = vx >> 1
		c.V[vf] = vx & 0x01
	case 0x7:
		c.V[x] = vy - vx
		c.V[vf] = boolByte(vy >= vx)
	case 0xE:
		c.V[x] = vx << 1
		c.V[vf] = vx >> 7
	default:
		return false
	}
	return true
}

// misc executes the FXNN group. It returns false for an undefined NN.
func (c *CPU) misc(pc uint16, x, nn byte, keys *keypad.Keypad) bool {
	switch nn {
	case 0x07:
		c.V[x] = c.delay
	case 0x0A:
		c.waitKey(x, keys)
	case 0x15:
		c.delay = c.V[x]
	case 0x18:
		c.sound = c.V[x]
	case 0x1E:
		c.I += uint16(c.V[x])
	case 0x29:
		addr := uint16(c.V[x]) * bus.GlyphSize
		if addr > 0xFF {
			c.logger.Debug("font address overflow", log.Hex("pc", pc), log.Hex("value", c.V[x]))
			break
		}
		c.I = addr
	case 0x33:
		digits, ok := c.mem.Slice(c.I, 3)
		if !ok {
			c.outOfRange(pc, "bcd", 3)
			break
		}
		v := c.V[x]
		digits[0] = v / 100
		digits[1] = (v / 10) % 10
		digits[2] = v % 10
	case 0x55:
		block, ok := c.mem.Slice(c.I, int(x)+1)
		if !ok {
			c.outOfRange(pc, "store registers", int(x)+1)
			break
		}
		copy(block, c.V[:x+1])
	case 0x65:
		block, ok := c.mem.Slice(c.I, int(x)+1)
		if !ok {
			c.outOfRange(pc, "load registers", int(x)+1)
			break
		}
		copy(c.V[:x+1], block)
	default:
		return false
	}
	return true
}

// draw XORs an 8xN sprite read from I onto the framebuffer at (VX, VY),
// wrapping on both axes. VF is set when a lit cell is turned off.
func (c *CPU) draw(x, y, n byte) {
	c.V[vf] = 0
	rows, ok := c.mem.Slice(c.I, int(n))
	if !ok {
		c.outOfRange(c.PC-2, "sprite", int(n))
		return
	}

	w, h := c.fb.Width(), c.fb.Height()
	ox, oy := int(c.V[x]), int(c.V[y])
	for row, bits := range rows {
		py := (oy + row) % h
		for col := 0; col < 8; col++ {
			if bits&(0x80>>col) == 0 {
				continue
			}
			px := (ox + col) % w
			if c.fb.On(px, py) {
				c.fb.Set(px, py, false)
				c.V[vf] = 1
			} else {
				c.fb.Set(px, py, true)
			}
		}
	}
	c.fb.MarkDirty()
}

func (c *CPU) unknown(pc, op uint16) {
	c.logger.Warn("unknown opcode", log.Hex("pc", pc), log.Hex("opcode", op), log.String("ins", disasm.Format(op)))
}

func (c *CPU) outOfRange(pc uint16, what string, n int) {
	c.logger.Debug("memory range out of bounds, instruction skipped",
		log.Hex("pc", pc), log.String("op", what), log.Hex("index", c.I), log.Int("length", n))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
