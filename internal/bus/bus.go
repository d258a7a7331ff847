package bus

import (
	"errors"
	"fmt"
)

// Memory map constants.
const (
	Size           = 4096
	FontStart      = 0x000
	ProgramStart   = 0x200
	MaxProgramSize = Size - ProgramStart
)

// ErrOutOfRange is returned when a block transfer would touch memory outside [0, Size).
var ErrOutOfRange = errors.New("address range outside memory")

// Bus is the interpreter's flat 4 KiB address space. The built-in font lives at
// FontStart; programs are copied to ProgramStart.
type Bus struct {
	mem [Size]byte
}

// New returns a Bus with the font table already loaded.
func New() *Bus {
	b := &Bus{}
	b.loadFont()
	return b
}

// Reset zeroes memory and reloads the font table.
func (b *Bus) Reset() {
	b.mem = [Size]byte{}
	b.loadFont()
}

func (b *Bus) loadFont() {
	copy(b.mem[FontStart:], font[:])
}

// InRange reports whether the n bytes starting at addr are all addressable.
func (b *Bus) InRange(addr uint16, n int) bool {
	return n >= 0 && int(addr)+n <= Size
}

func (b *Bus) Read(addr uint16) byte {
	if int(addr) >= Size {
		return 0xFF // unmapped
	}
	return b.mem[addr]
}

func (b *Bus) Write(addr uint16, value byte) {
	if int(addr) >= Size {
		return
	}
	b.mem[addr] = value
}

// Read16 returns the big-endian word at addr and addr+1.
func (b *Bus) Read16(addr uint16) uint16 {
	return uint16(b.Read(addr))<<8 | uint16(b.Read(addr+1))
}

// Slice returns the n bytes starting at addr. The slice aliases memory.
// ok is false when the range is not fully addressable.
func (b *Bus) Slice(addr uint16, n int) (data []byte, ok bool) {
	if !b.InRange(addr, n) {
		return nil, false
	}
	return b.mem[int(addr) : int(addr)+n], true
}

// Load copies data into memory starting at addr.
func (b *Bus) Load(addr uint16, data []byte) error {
	if !b.InRange(addr, len(data)) {
		return fmt.Errorf("load %d bytes at %#04x: %w", len(data), addr, ErrOutOfRange)
	}
	copy(b.mem[addr:], data)
	return nil
}
