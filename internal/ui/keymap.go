package ui

import (
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/keypad"
	"github.com/hajimehoshi/ebiten/v2"
)

// keymap maps keypad keys 0-F to the host keys with the same label.
var keymap = [keypad.Size]ebiten.Key{
	ebiten.Key0, ebiten.Key1, ebiten.Key2, ebiten.Key3,
	ebiten.Key4, ebiten.Key5, ebiten.Key6, ebiten.Key7,
	ebiten.Key8, ebiten.Key9, ebiten.KeyA, ebiten.KeyB,
	ebiten.KeyC, ebiten.KeyD, ebiten.KeyE, ebiten.KeyF,
}

// pollKeys samples the host keyboard into a full keypad state.
func pollKeys(pressed func(ebiten.Key) bool) [keypad.Size]bool {
	var state [keypad.Size]bool
	for i, k := range keymap {
		state[i] = pressed(k)
	}
	return state
}
