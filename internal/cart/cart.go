package cart

import (
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/bus"
)

var (
	ErrROMEmpty    = errors.New("ROM is empty")
	ErrROMTooLarge = errors.New("ROM does not fit in program memory")
)

// ROM is a program image ready to be copied to the program start address.
type ROM struct {
	Data  []byte
	Path  string // empty when built from memory
	CRC32 uint32
}

// New validates an in-memory program image. The data is copied.
func New(data []byte) (*ROM, error) {
	switch {
	case len(data) == 0:
		return nil, ErrROMEmpty
	case len(data) > bus.MaxProgramSize:
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrROMTooLarge, len(data), bus.MaxProgramSize)
	}
	r := &ROM{Data: make([]byte, len(data))}
	copy(r.Data, data)
	r.CRC32 = crc32.ChecksumIEEE(r.Data)
	return r, nil
}

// Load reads and validates a program image from disk.
func Load(path string) (*ROM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ROM: %w", err)
	}
	r, err := New(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	r.Path = path
	return r, nil
}

// Size returns the image length in bytes.
func (r *ROM) Size() int { return len(r.Data) }

// Title derives a display name from the file name.
func (r *ROM) Title() string {
	if r.Path == "" {
		return ""
	}
	base := filepath.Base(r.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
