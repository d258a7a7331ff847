package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/config"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/disasm"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/emu"
	"github.com/retroenv/retrogolib/log"
)

type traceEntry struct {
	pc uint16
	op uint16
	v  [16]byte
	i  uint16
	sp int
	dt byte
	st byte
}

func (te traceEntry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PC=%04X OP=%04X MN=%-16s", te.pc, te.op, disasm.Format(te.op))
	for x, v := range te.v {
		fmt.Fprintf(&sb, " V%X=%02X", x, v)
	}
	fmt.Fprintf(&sb, " I=%04X SP=%d DT=%02X ST=%02X", te.i, te.sp, te.dt, te.st)
	return sb.String()
}

func main() {
	romPath := flag.String("rom", "", "path to ROM (.ch8)")
	steps := flag.Int("steps", 1_000_000, "max instructions to run")
	trace := flag.Bool("trace", false, "print every instruction with registers")
	timeout := flag.Duration("timeout", 0, "optional wall-clock timeout (e.g. 30s, 2m); 0 disables")
	traceOnFail := flag.Bool("traceOnFail", false, "on a halt, print a recent trace window")
	traceWindow := flag.Int("traceWindow", 200, "number of recent instructions to include in 'traceOnFail' dump")
	dump := flag.Bool("dump", false, "print the framebuffer as text when done")
	seed := flag.Int64("seed", 1, "random seed for RND")
	debug := flag.Bool("debug", false, "enable debug logging")
	quiet := flag.Bool("quiet", false, "only log errors")
	flag.Parse()

	logger := config.CreateLogger(*debug, *quiet)
	if *romPath == "" {
		logger.Fatal("-rom is required")
	}
	rom, err := cart.Load(*romPath)
	if err != nil {
		logger.Fatal("loading ROM failed", log.Err(err))
	}

	fb, err := display.New(display.Width, display.Height)
	if err != nil {
		logger.Fatal("creating framebuffer failed", log.Err(err))
	}
	m := emu.New(emu.Config{Seed: *seed}, fb, logger)
	if err := m.LoadROM(rom); err != nil {
		logger.Fatal("loading ROM failed", log.Err(err))
	}
	c := m.CPU()
	keys := m.Keypad()

	start := time.Now()
	var deadline time.Time
	if *timeout > 0 {
		deadline = start.Add(*timeout)
	}

	// ring buffer for recent traces
	window := max(*traceWindow, 1)
	ring := make([]traceEntry, window)
	ringIdx := 0
	ringFill := 0

	done := func(n int, code int) {
		fmt.Printf("\nDone: steps=%d elapsed=%s\n", n, time.Since(start).Truncate(time.Millisecond))
		if *dump {
			fmt.Print(fb.Text('#', '.'))
		}
		os.Exit(code)
	}

	for i := 0; i < *steps; i++ {
		pc := c.PC
		op := c.Bus().Read16(pc)
		if op>>12 == 0x1 && op&0x0FFF == pc {
			fmt.Printf("\nDetected jump-to-self at %04X.\n", pc)
			done(i, 0)
		}

		err := c.Step(keys)
		if i%emu.StepsPerFrame == emu.StepsPerFrame-1 {
			c.TickTimers()
		}

		if *trace || *traceOnFail {
			te := traceEntry{
				pc: pc, op: op, v: c.V, i: c.I,
				sp: len(c.Stack()), dt: c.DelayTimer(), st: c.SoundTimer(),
			}
			if *trace {
				fmt.Println(te)
			}
			ring[ringIdx] = te
			ringIdx = (ringIdx + 1) % window
			if ringFill < window {
				ringFill++
			}
		}

		if err != nil {
			fmt.Printf("\nHalted: %v\n", err)
			if *traceOnFail && ringFill > 0 {
				fmt.Printf("\n--- recent trace (last %d instructions) ---\n", ringFill)
				// print in chronological order
				startIdx := (ringIdx - ringFill + window) % window
				for j := 0; j < ringFill; j++ {
					fmt.Println(ring[(startIdx+j)%window])
				}
				fmt.Printf("--- end trace ---\n")
			}
			done(i+1, 1)
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("\nTimeout after %s.\n", time.Since(start).Truncate(time.Millisecond))
			done(i+1, 2)
		}
	}
	done(*steps, 0)
}
