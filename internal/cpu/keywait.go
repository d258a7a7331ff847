package cpu

import "github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/keypad"

// KeyWait is the progress of the blocking key-wait instruction (FX0A).
type KeyWait int

const (
	WaitIdle KeyWait = iota
	WaitPress
	WaitRelease
)

func (w KeyWait) String() string {
	switch w {
	case WaitIdle:
		return "idle"
	case WaitPress:
		return "awaiting press"
	case WaitRelease:
		return "awaiting release"
	}
	return "unknown"
}

// waitKey runs one poll of FX0A. While the wait is unresolved the PC is
// rewound onto the instruction so the next Step executes it again.
//
// Completion is detected by comparing VX with the halt key. A program that
// enters FX0A with VX already holding the latched halt key therefore returns
// at once without waiting.
func (c *CPU) waitKey(x byte, keys *keypad.Keypad) {
	if c.wait == WaitIdle {
		c.wait = WaitPress
	}

	switch c.wait {
	case WaitPress:
		if key, ok := keys.FirstPressed(); ok {
			keys.SetHaltKey(key)
			c.wait = WaitRelease
		} else if int(c.V[x]) == keys.HaltKey() {
			c.wait = WaitIdle
		}
	case WaitRelease:
		if key := keys.HaltKey(); !keys.Pressed(key) {
			c.V[x] = byte(key)
			c.wait = WaitIdle
		}
	}

	if c.wait != WaitIdle {
		c.PC -= 2
	}
}
