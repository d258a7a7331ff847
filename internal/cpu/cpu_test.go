package cpu

import (
	"errors"
	"testing"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/keypad"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func words(ws ...uint16) []byte {
	b := make([]byte, 0, len(ws)*2)
	for _, w := range ws {
		b = append(b, byte(w>>8), byte(w))
	}
	return b
}

func newCPUWithROM(t *testing.T, code []byte, opts ...Option) (*CPU, *keypad.Keypad) {
	t.Helper()
	fb, err := display.New(display.Width, display.Height)
	assert.NoError(t, err)
	c := New(fb, log.NewTestLogger(t), opts...)
	assert.NoError(t, c.LoadProgram(code))
	return c, keypad.New()
}

func step(t *testing.T, c *CPU, k *keypad.Keypad, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.Step(k); err != nil {
			t.Fatalf("step %d at PC=%#04x: %v", i, c.PC, err)
		}
	}
}

func TestCPU_PowerOnState(t *testing.T) {
	c, _ := newCPUWithROM(t, nil)
	if c.PC != 0x200 {
		t.Fatalf("PC got %#04x want 0x200", c.PC)
	}
	if got := c.Bus().Read(0x000); got != 0xF0 {
		t.Fatalf("font not loaded, mem[0] got %02x", got)
	}
	assert.Equal(t, WaitIdle, c.WaitState())
	assert.Len(t, c.Stack(), 0)
}

func TestCPU_LD_VX_NN(t *testing.T) {
	for x := uint16(0); x < 16; x++ {
		for _, nn := range []uint16{0x00, 0x01, 0x7F, 0xFF} {
			c, k := newCPUWithROM(t, words(0x6000|x<<8|nn))
			step(t, c, k, 1)
			if c.V[x] != byte(nn) {
				t.Fatalf("6%XNN: V%X got %02x want %02x", x, x, c.V[x], nn)
			}
			if c.PC != 0x202 {
				t.Fatalf("PC got %#04x want 0x202", c.PC)
			}
		}
	}
}

func TestCPU_ADD_VX_NN_WrapsWithoutFlag(t *testing.T) {
	c, k := newCPUWithROM(t, words(0x7105))
	c.V[1] = 0xFE
	c.V[0xF] = 0x42
	step(t, c, k, 1)
	assert.Equal(t, byte(0x03), c.V[1])
	assert.Equal(t, byte(0x42), c.V[0xF])
}

func TestCPU_ALU(t *testing.T) {
	tests := []struct {
		name   string
		op     uint16
		vx, vy byte
		want   byte
		wantVF byte
	}{
		{"or", 0x8121, 0xF0, 0x0F, 0xFF, 0x77},
		{"and", 0x8122, 0xF0, 0x3C, 0x30, 0x77},
		{"xor", 0x8123, 0xFF, 0x0F, 0xF0, 0x77},
		{"add overflow", 0x8124, 250, 10, 4, 1},
		{"add overflow swapped", 0x8124, 10, 250, 4, 1},
		{"add no overflow", 0x8124, 10, 20, 30, 0},
		{"sub borrow", 0x8125, 10, 250, 16, 0},
		{"sub no borrow", 0x8125, 250, 10, 240, 1},
		{"sub equal", 0x8125, 7, 7, 0, 1},
		{"shr", 0x8126, 0b00000011, 0, 1, 1},
		{"shr even", 0x8126, 0b00000100, 0, 2, 0},
		{"subn no borrow", 0x8127, 10, 250, 240, 1},
		{"subn borrow", 0x8127, 250, 10, 16, 0},
		{"shl", 0x812E, 0b10000001, 0, 2, 1},
		{"shl no carry", 0x812E, 0b01000001, 0, 0x82, 0},
		{"copy", 0x8120, 0x11, 0x22, 0x22, 0x77},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, k := newCPUWithROM(t, words(tt.op))
			c.V[1], c.V[2] = tt.vx, tt.vy
			c.V[0xF] = 0x77
			step(t, c, k, 1)
			if c.V[1] != tt.want {
				t.Fatalf("V1 got %d want %d", c.V[1], tt.want)
			}
			if c.V[0xF] != tt.wantVF {
				t.Fatalf("VF got %d want %d", c.V[0xF], tt.wantVF)
			}
		})
	}
}

func TestCPU_ALU_FlagWinsWhenTargetIsVF(t *testing.T) {
	c, k := newCPUWithROM(t, words(0x8F14)) // VF += V1
	c.V[0xF] = 200
	c.V[1] = 100
	step(t, c, k, 1)
	assert.Equal(t, byte(1), c.V[0xF])
}

func TestCPU_JP_CALL_RET(t *testing.T) {
	code := make([]byte, 0x20)
	copy(code, words(0x2210)) // 0x200: CALL 0x210
	copy(code[2:], words(0x1220))
	copy(code[0x10:], words(0x00EE)) // 0x210: RET
	c, k := newCPUWithROM(t, code)

	step(t, c, k, 1)
	assert.Equal(t, uint16(0x210), c.PC)
	assert.Equal(t, []uint16{0x202}, c.Stack())

	step(t, c, k, 1)
	assert.Equal(t, uint16(0x202), c.PC)
	assert.Len(t, c.Stack(), 0)

	step(t, c, k, 1) // JP 0x220
	assert.Equal(t, uint16(0x220), c.PC)
}

func TestCPU_RET_EmptyStackHalts(t *testing.T) {
	c, k := newCPUWithROM(t, words(0x00EE))
	err := c.Step(k)
	assert.True(t, errors.Is(err, ErrStackUnderflow))
	if c.PC != 0x200 {
		t.Fatalf("PC after failed RET got %#04x want 0x200 (never 0)", c.PC)
	}

	err = c.Step(k)
	assert.True(t, errors.Is(err, ErrHalted))
	assert.True(t, errors.Is(err, ErrStackUnderflow))
}

func TestCPU_CALL_DepthLimit(t *testing.T) {
	c, k := newCPUWithROM(t, words(0x2200)) // calls itself forever
	step(t, c, k, StackDepth)
	err := c.Step(k)
	assert.True(t, errors.Is(err, ErrStackOverflow))
	assert.Len(t, c.Stack(), StackDepth)
}

func TestCPU_Skips(t *testing.T) {
	tests := []struct {
		name   string
		op     uint16
		v1, v2 byte
		skip   bool
	}{
		{"SE byte equal", 0x3142, 0x42, 0, true},
		{"SE byte differ", 0x3142, 0x41, 0, false},
		{"SNE byte differ", 0x4142, 0x41, 0, true},
		{"SNE byte equal", 0x4142, 0x42, 0, false},
		{"SE reg equal", 0x5120, 9, 9, true},
		{"SE reg differ", 0x5120, 9, 8, false},
		{"SNE reg differ", 0x9120, 9, 8, true},
		{"SNE reg equal", 0x9120, 9, 9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, k := newCPUWithROM(t, words(tt.op))
			c.V[1], c.V[2] = tt.v1, tt.v2
			step(t, c, k, 1)
			want := uint16(0x202)
			if tt.skip {
				want = 0x204
			}
			assert.Equal(t, want, c.PC)
		})
	}
}

func TestCPU_JP_V0(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xB300))
	c.V[0] = 0x10
	step(t, c, k, 1)
	assert.Equal(t, uint16(0x310), c.PC)
}

func TestCPU_RND_MasksRandomByte(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xC30F), WithRand(func() byte { return 0xAB }))
	step(t, c, k, 1)
	assert.Equal(t, byte(0x0B), c.V[3])
}

func TestCPU_DRW_WrapsHorizontally(t *testing.T) {
	code := words(0xA300, 0xD011) // I=0x300; DRW V0,V1,1
	c, k := newCPUWithROM(t, code)
	c.Bus().Write(0x300, 0xFF)
	c.V[0], c.V[1] = 60, 0
	step(t, c, k, 2)

	fb := c.Framebuffer()
	for _, x := range []int{60, 61, 62, 63, 0, 1, 2, 3} {
		if !fb.On(x, 0) {
			t.Fatalf("pixel (%d,0) should be on", x)
		}
	}
	assert.False(t, fb.On(4, 0))
	assert.False(t, fb.On(59, 0))
	assert.Equal(t, byte(0), c.V[0xF])
	assert.True(t, fb.Dirty())
}

func TestCPU_DRW_WrapsVertically(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xA300, 0xD012))
	c.Bus().Write(0x300, 0x80)
	c.Bus().Write(0x301, 0x80)
	c.V[0], c.V[1] = 0, 31
	step(t, c, k, 2)
	assert.True(t, c.Framebuffer().On(0, 31))
	assert.True(t, c.Framebuffer().On(0, 0))
}

func TestCPU_DRW_TwiceClearsAndSetsCollision(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xA300, 0xD011, 0xD011))
	c.Bus().Write(0x300, 0xFF)
	c.V[0], c.V[1] = 8, 4
	step(t, c, k, 2)
	assert.Equal(t, byte(0), c.V[0xF])

	c.Framebuffer().ClearDirty()
	step(t, c, k, 1)
	assert.Equal(t, byte(1), c.V[0xF])
	for x := 8; x < 16; x++ {
		if c.Framebuffer().On(x, 4) {
			t.Fatalf("pixel (%d,4) should be off after second draw", x)
		}
	}
	assert.True(t, c.Framebuffer().Dirty())
}

func TestCPU_DRW_ZeroBitsAreTransparent(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xA300, 0xD011))
	c.Bus().Write(0x300, 0x0F)
	c.Framebuffer().Set(0, 0, true)
	step(t, c, k, 2)
	assert.True(t, c.Framebuffer().On(0, 0))
	assert.True(t, c.Framebuffer().On(4, 0))
	assert.Equal(t, byte(0), c.V[0xF])
}

func TestCPU_DRW_OutOfMemoryIsSkipped(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xAFFE, 0xD015))
	c.V[0xF] = 1
	c.Framebuffer().ClearDirty()
	step(t, c, k, 2)
	assert.Equal(t, uint16(0x204), c.PC)
	assert.Equal(t, byte(0), c.V[0xF])
	assert.False(t, c.Framebuffer().Dirty())
}

func TestCPU_CLS(t *testing.T) {
	c, k := newCPUWithROM(t, words(0x00E0))
	c.Framebuffer().Set(5, 5, true)
	step(t, c, k, 1)
	assert.False(t, c.Framebuffer().On(5, 5))
	assert.True(t, c.Framebuffer().Dirty())
}

func TestCPU_SKP_SKNP(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xE19E, 0x0000, 0xE1A1))
	c.V[1] = 0x7
	k.Press(0x7)
	step(t, c, k, 1)
	assert.Equal(t, uint16(0x204), c.PC)

	step(t, c, k, 1) // SKNP with key held: no skip
	assert.Equal(t, uint16(0x206), c.PC)

	// key codes above F are never pressed
	c2, k2 := newCPUWithROM(t, words(0xE19E, 0x0000, 0xE1A1))
	c2.V[1] = 0x20
	step(t, c2, k2, 1)
	assert.Equal(t, uint16(0x202), c2.PC)
	c2.PC = 0x204
	step(t, c2, k2, 1)
	assert.Equal(t, uint16(0x208), c2.PC)
}

func TestCPU_DRW_BlankSpriteStillMarksDirty(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xA300, 0xD011))
	c.Bus().Write(0x300, 0x00)
	c.Framebuffer().ClearDirty()
	step(t, c, k, 2)
	assert.True(t, c.Framebuffer().Dirty())
	assert.Equal(t, byte(0), c.V[0xF])
}

func TestCPU_LD_VX_K_PressThenRelease(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xF30A))
	c.V[3] = 0xFF

	step(t, c, k, 3) // nothing pressed: stays on the instruction
	assert.Equal(t, uint16(0x200), c.PC)
	assert.Equal(t, WaitPress, c.WaitState())

	k.Press(5)
	step(t, c, k, 2)
	assert.Equal(t, uint16(0x200), c.PC)
	assert.Equal(t, WaitRelease, c.WaitState())
	assert.Equal(t, 5, k.HaltKey())

	k.Release(5)
	step(t, c, k, 1)
	assert.Equal(t, byte(5), c.V[3])
	assert.Equal(t, uint16(0x202), c.PC)
	assert.Equal(t, WaitIdle, c.WaitState())
}

func TestCPU_LD_VX_K_LowestKeyWins(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xF00A))
	c.V[0] = 0xFF
	k.Press(0xC)
	k.Press(0x2)
	step(t, c, k, 1)
	k.Release(0x2)
	step(t, c, k, 1)
	assert.Equal(t, byte(0x2), c.V[0])
	assert.Equal(t, uint16(0x202), c.PC)
}

func TestCPU_LD_VX_K_PrelatchedValueEndsEarly(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xF10A))
	k.SetHaltKey(9)
	c.V[1] = 9
	step(t, c, k, 1)
	assert.Equal(t, uint16(0x202), c.PC)
	assert.Equal(t, WaitIdle, c.WaitState())
}

func TestCPU_Timers(t *testing.T) {
	c, k := newCPUWithROM(t, words(0x6103, 0xF115, 0xF118, 0xF207))
	step(t, c, k, 3)
	assert.True(t, c.SoundActive())

	c.TickTimers()
	step(t, c, k, 1)
	assert.Equal(t, byte(2), c.V[2])

	for i := 0; i < 300; i++ {
		c.TickTimers()
	}
	assert.Equal(t, byte(0), c.DelayTimer())
	assert.Equal(t, byte(0), c.SoundTimer())
	assert.False(t, c.SoundActive())
}

func TestCPU_IndexOps(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xA100, 0xF01E, 0xF129, 0xF229))
	c.V[0] = 0x22
	c.V[1] = 0xA
	c.V[2] = 52 // 52*5 overflows a byte: I unchanged

	step(t, c, k, 2)
	assert.Equal(t, uint16(0x122), c.I)

	step(t, c, k, 1)
	assert.Equal(t, bus.GlyphAddr(0xA), c.I)

	step(t, c, k, 1)
	assert.Equal(t, bus.GlyphAddr(0xA), c.I)
}

func TestCPU_BCD(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xA300, 0xF033))
	c.V[0] = 254
	step(t, c, k, 2)
	assert.Equal(t, byte(2), c.Bus().Read(0x300))
	assert.Equal(t, byte(5), c.Bus().Read(0x301))
	assert.Equal(t, byte(4), c.Bus().Read(0x302))

	// the last three bytes of memory are still addressable
	c2, k2 := newCPUWithROM(t, words(0xAFFD, 0xF033))
	c2.V[0] = 123
	step(t, c2, k2, 2)
	assert.Equal(t, byte(3), c2.Bus().Read(0xFFF))

	c3, k3 := newCPUWithROM(t, words(0xAFFE, 0xF033))
	c3.V[0] = 123
	step(t, c3, k3, 2)
	assert.Equal(t, uint16(0x204), c3.PC)
	assert.Equal(t, byte(0), c3.Bus().Read(0xFFE))
}

func TestCPU_StoreLoadRegistersRoundTrip(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xA400, 0xF355, 0x6000, 0x6100, 0x6200, 0x6300, 0xF365))
	c.V = [16]byte{0x11, 0x22, 0x33, 0x44, 0x55}
	step(t, c, k, 2)
	assert.Equal(t, uint16(0x400), c.I)
	assert.Equal(t, byte(0x44), c.Bus().Read(0x403))
	assert.Equal(t, byte(0x00), c.Bus().Read(0x404))

	step(t, c, k, 4)
	assert.Equal(t, byte(0), c.V[2])

	step(t, c, k, 1)
	assert.Equal(t, [16]byte{0x11, 0x22, 0x33, 0x44, 0x55}, c.V)
	assert.Equal(t, uint16(0x400), c.I)
}

func TestCPU_BlockTransferOutOfMemoryIsSkipped(t *testing.T) {
	c, k := newCPUWithROM(t, words(0xAFFE, 0xF565, 0xF555))
	c.V[0] = 0x99
	c.Bus().Write(0xFFE, 0x01)
	step(t, c, k, 3)
	assert.Equal(t, byte(0x99), c.V[0])
	assert.Equal(t, byte(0x01), c.Bus().Read(0xFFE))
	assert.Equal(t, uint16(0x206), c.PC)
}

func TestCPU_UnknownOpcodeAdvances(t *testing.T) {
	c, k := newCPUWithROM(t, words(0x0123, 0x8128, 0xE1FF, 0xF1FF, 0x5121))
	before := c.V
	step(t, c, k, 5)
	assert.Equal(t, uint16(0x20A), c.PC)
	assert.Equal(t, before, c.V)
}

func TestCPU_FetchOutsideMemoryHalts(t *testing.T) {
	c, k := newCPUWithROM(t, words(0x1FFF)) // jump to the last byte
	step(t, c, k, 1)
	err := c.Step(k)
	assert.True(t, errors.Is(err, ErrPCOutOfRange))
	assert.NotNil(t, c.Halted())
}

func TestCPU_Reset(t *testing.T) {
	c, k := newCPUWithROM(t, words(0x6105, 0xF118, 0x2300))
	step(t, c, k, 3)
	c.Reset()
	assert.Equal(t, uint16(0x200), c.PC)
	assert.Equal(t, byte(0), c.V[1])
	assert.False(t, c.SoundActive())
	assert.Len(t, c.Stack(), 0)
	assert.Equal(t, byte(0x00), c.Bus().Read(0x200))
	assert.Equal(t, byte(0xF0), c.Bus().Read(0x000))
}
