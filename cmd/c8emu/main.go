package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/beep"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/config"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/emu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/script"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/ui"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/term"
)

type CLIFlags struct {
	ROMPath string
	Scale   int
	Title   string
	Volume  float64
	Mute    bool
	Trace   bool
	Seed    int64
	Debug   bool
	Quiet   bool

	// headless
	Headless bool
	LimitFPS bool
	Frames   int
	PNGOut   string
	Expect   string // expected framebuffer CRC32 hex (e.g., "1a2b3c4d")
	WAVOut   string
	Dump     bool
	Script   string

	StatsAddr string
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.ch8)")
	flag.IntVar(&f.Scale, "scale", 10, "window scale")
	flag.StringVar(&f.Title, "title", "", "window title (default: ROM name)")
	flag.Float64Var(&f.Volume, "volume", 0.25, "beep volume 0..1")
	flag.BoolVar(&f.Mute, "mute", false, "start with sound muted")
	flag.BoolVar(&f.Trace, "trace", false, "log every instruction (needs -debug)")
	flag.Int64Var(&f.Seed, "seed", 0, "random seed for RND, 0 for time based")
	flag.BoolVar(&f.Debug, "debug", false, "enable debug logging")
	flag.BoolVar(&f.Quiet, "quiet", false, "only log errors")

	// headless options
	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.BoolVar(&f.LimitFPS, "limitfps", false, "pace headless frames to 60 Hz instead of running at full speed")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.StringVar(&f.WAVOut, "wav", "", "record the beeper to a WAV file")
	flag.BoolVar(&f.Dump, "dump", false, "print the last framebuffer as text")
	flag.StringVar(&f.Script, "script", "", "Lua input script with an on_frame(n) function")

	flag.StringVar(&f.StatsAddr, "stats", "", "serve runtime statistics on this address (e.g. localhost:12600)")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()
	logger := config.CreateLogger(f.Debug, f.Quiet)

	if f.ROMPath == "" {
		logger.Fatal("-rom is required")
	}
	rom, err := cart.Load(f.ROMPath)
	if err != nil {
		logger.Fatal("loading ROM failed", log.Err(err))
	}

	if f.StatsAddr != "" {
		launchStats(f.StatsAddr, logger)
	}

	uiCfg := ui.Config{Title: f.Title, Scale: f.Scale, Volume: f.Volume, Muted: f.Mute}
	if uiCfg.Title == "" {
		uiCfg.Title = "c8emu - " + rom.Title()
	}
	uiCfg.Defaults()
	fb, err := display.New(uiCfg.WindowSize())
	if err != nil {
		logger.Fatal("invalid window size", log.Err(err))
	}

	emuCfg := emu.Config{
		Trace:    f.Trace,
		Seed:     f.Seed,
		LimitFPS: f.Headless && f.LimitFPS, // the window paces itself through ebiten TPS
	}
	m := emu.New(emuCfg, fb, logger)
	if err := m.LoadROM(rom); err != nil {
		logger.Fatal("loading ROM failed", log.Err(err))
	}

	if f.Headless {
		if err := runHeadless(m, f, logger); err != nil {
			logger.Fatal("headless run failed", log.Err(err))
		}
		return
	}

	app := ui.NewApp(uiCfg, m, logger)
	if err := app.Run(); err != nil {
		logger.Fatal("window closed with error", log.Err(err))
	}
}

func runHeadless(m *emu.Machine, f CLIFlags, logger *log.Logger) error {
	frames := f.Frames
	if frames <= 0 {
		frames = 1
	}

	var rec *beep.Recorder
	if f.WAVOut != "" {
		out, err := os.Create(f.WAVOut)
		if err != nil {
			return fmt.Errorf("create WAV: %w", err)
		}
		defer out.Close()
		rec = beep.NewRecorder(out, beep.NewTone(beep.DefaultSampleRate, beep.DefaultFrequency), emu.FrameRate)
		// finalizes the header when the run stops early
		defer func() { _ = rec.Close() }()
	}

	var runner *script.Runner
	if f.Script != "" {
		runner = script.New(m.CPU(), logger)
		defer runner.Close()
		if err := runner.LoadFile(f.Script); err != nil {
			return err
		}
	}

	start := time.Now()
	ran := 0
	for ran < frames {
		if runner != nil {
			if err := runner.Frame(ran); err != nil {
				return err
			}
			m.SetKeys(runner.Keys())
		}
		res, err := m.StepFrame()
		if err != nil {
			return err
		}
		ran++
		if rec != nil {
			if err := rec.Frame(res.SoundOn); err != nil {
				return err
			}
		}
		if runner != nil && runner.Quit() {
			break
		}
	}
	dur := time.Since(start)

	crc := m.FramebufferCRC()
	fps := float64(ran) / dur.Seconds()
	logger.Info("headless run finished",
		log.Int("frames", ran),
		log.String("elapsed", dur.Truncate(time.Millisecond).String()),
		log.String("fps", fmt.Sprintf("%.2f", fps)),
		log.String("fb_crc32", fmt.Sprintf("%08x", crc)))

	if rec != nil {
		if err := rec.Close(); err != nil {
			return err
		}
		logger.Info("wrote WAV", log.String("path", f.WAVOut))
	}

	if f.PNGOut != "" {
		if err := m.SavePNG(f.PNGOut); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		logger.Info("wrote PNG", log.String("path", f.PNGOut))
	}

	if f.Dump {
		dumpFramebuffer(m.Framebuffer(), logger)
	}

	if f.Expect != "" {
		// normalize expected hex (allow with/without 0x, upper/lowercase)
		want := strings.TrimPrefix(strings.ToLower(f.Expect), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

// dumpFramebuffer prints the screen to stdout, using block glyphs on a
// terminal wide enough to hold a full row and plain ASCII otherwise.
func dumpFramebuffer(fb *display.Framebuffer, logger *log.Logger) {
	on, off := '#', '.'
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		w, _, err := term.GetSize(fd)
		switch {
		case err != nil:
			logger.Debug("terminal size unknown", log.Err(err))
		case w < display.Width:
			logger.Warn("terminal narrower than the framebuffer, rows will wrap",
				log.Int("columns", w), log.Int("needed", display.Width))
		default:
			on, off = '█', ' '
		}
	}
	fmt.Print(fb.Text(on, off))
}

func launchStats(addr string, logger *log.Logger) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
		mgr := statsview.New()
		mgr.Start()
	}()
	logger.Info("stats server started", log.String("url", "http://"+addr+"/debug/statsview"))
}
