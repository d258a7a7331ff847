// Package keypad is the input latch between the host input collaborator and
// the interpreter: sixteen pressed/released flags plus the halt-key slot used
// by the blocking key-wait instruction.
package keypad

// Size is the number of keys on the hex keypad (0x0-0xF).
const Size = 16

// NoKey marks an empty halt-key slot. It never equals a register value.
const NoKey = -1

type Keypad struct {
	state   [Size]bool
	haltKey int
}

func New() *Keypad {
	return &Keypad{haltKey: NoKey}
}

// Set replaces the whole pressed state, as polled once per host loop iteration.
func (k *Keypad) Set(state [Size]bool) { k.state = state }

func (k *Keypad) State() [Size]bool { return k.state }

func (k *Keypad) Press(key int) {
	if valid(key) {
		k.state[key] = true
	}
}

func (k *Keypad) Release(key int) {
	if valid(key) {
		k.state[key] = false
	}
}

// Pressed reports whether key is held. Keys outside 0x0-0xF are never pressed.
func (k *Keypad) Pressed(key int) bool {
	return valid(key) && k.state[key]
}

// FirstPressed returns the lowest-indexed key currently held.
func (k *Keypad) FirstPressed() (int, bool) {
	for i, down := range k.state {
		if down {
			return i, true
		}
	}
	return NoKey, false
}

// HaltKey is the key the interpreter is waiting on, or NoKey.
func (k *Keypad) HaltKey() int { return k.haltKey }

func (k *Keypad) SetHaltKey(key int) {
	if !valid(key) {
		key = NoKey
	}
	k.haltKey = key
}

func valid(key int) bool { return key >= 0 && key < Size }
