// Package disasm names CHIP-8 instruction words for traces and diagnostics,
// using the retrogolib opcode table.
package disasm

import (
	"fmt"

	"github.com/retroenv/retrogolib/arch/cpu/chip8"
)

// Lookup returns the table entry matching the instruction word w.
func Lookup(w uint16) (chip8.Opcode, bool) {
	for _, op := range chip8.Opcodes[int(w>>12)] {
		if op.Info.Mask&w == op.Info.Value {
			return op, op.Instruction != nil
		}
	}
	return chip8.Opcode{}, false
}

// Mnemonic returns the instruction name for w, or "" for words outside the table.
func Mnemonic(w uint16) string {
	op, ok := Lookup(w)
	if !ok {
		return ""
	}
	return op.Instruction.Name
}

// Format renders w as "name operands". Unknown words render as a data directive.
func Format(w uint16) string {
	name := Mnemonic(w)
	if name == "" {
		return fmt.Sprintf(".word $%04X", w)
	}
	if ops := operands(w); ops != "" {
		return name + " " + ops
	}
	return name
}

func operands(w uint16) string {
	x := (w >> 8) & 0xF
	y := (w >> 4) & 0xF
	nn := w & 0xFF
	nnn := w & 0xFFF

	switch w >> 12 {
	case 0x0:
		return ""
	case 0x1, 0x2:
		return fmt.Sprintf("$%03X", nnn)
	case 0x3, 0x4, 0x6, 0x7, 0xC:
		return fmt.Sprintf("V%X, $%02X", x, nn)
	case 0x5, 0x9:
		return fmt.Sprintf("V%X, V%X", x, y)
	case 0x8:
		switch w & 0xF {
		case 0x6, 0xE:
			return fmt.Sprintf("V%X", x)
		}
		return fmt.Sprintf("V%X, V%X", x, y)
	case 0xA:
		return fmt.Sprintf("I, $%03X", nnn)
	case 0xB:
		return fmt.Sprintf("V0, $%03X", nnn)
	case 0xD:
		return fmt.Sprintf("V%X, V%X, $%X", x, y, w&0xF)
	case 0xE:
		return fmt.Sprintf("V%X", x)
	case 0xF:
		switch nn {
		case 0x07:
			return fmt.Sprintf("V%X, DT", x)
		case 0x0A:
			return fmt.Sprintf("V%X, K", x)
		case 0x15:
			return fmt.Sprintf("DT, V%X", x)
		case 0x18:
			return fmt.Sprintf("ST, V%X", x)
		case 0x1E:
			return fmt.Sprintf("I, V%X", x)
		case 0x29:
			return fmt.Sprintf("F, V%X", x)
		case 0x33:
			return fmt.Sprintf("B, V%X", x)
		case 0x55:
			return fmt.Sprintf("[I], V%X", x)
		case 0x65:
			return fmt.Sprintf("V%X, [I]", x)
		}
	}
	return ""
}
