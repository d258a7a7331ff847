package ui

import (
	"fmt"
	"image/color"
	"time"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/beep"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/image/font/basicfont"
)

type App struct {
	cfg    Config
	m      *emu.Machine
	logger *log.Logger

	tex    *ebiten.Image
	paused bool
	halted error

	tone        *beep.Tone
	audioCtx    *audio.Context
	audioPlayer *audio.Player
}

// NewApp prepares the window for m. The machine's framebuffer must have been
// created from cfg.WindowSize.
func NewApp(cfg Config, m *emu.Machine, logger *log.Logger) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(cfg.WindowSize())
	ebiten.SetTPS(emu.FrameRate)
	return &App{cfg: cfg, m: m, logger: logger}
}

// Run blocks until the window is closed or Escape is pressed.
func (a *App) Run() error {
	if err := a.startAudio(); err != nil {
		a.logger.Warn("audio disabled", log.Err(err))
	}
	defer a.stopAudio()
	return ebiten.RunGame(a)
}

func (a *App) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	// Pause toggle (P)
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}

	// Reset (F5)
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		a.m.Reset()
		a.halted = nil
	}

	// Screenshot (F12)
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		name := fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
		if err := a.m.SavePNG(name); err != nil {
			a.logger.Error("screenshot failed", log.Err(err))
		} else {
			a.logger.Info("screenshot saved", log.String("path", name))
		}
	}

	if a.paused || a.halted != nil {
		a.setSound(false)
		return nil
	}

	a.m.SetKeys(pollKeys(ebiten.IsKeyPressed))
	res, err := a.m.StepFrame()
	if err != nil {
		a.halted = err
		a.logger.Error("interpreter halted", log.Err(err))
	}
	a.setSound(res.SoundOn)
	return nil
}

func (a *App) setSound(on bool) {
	if a.tone != nil {
		a.tone.SetActive(on)
	}
}

func (a *App) Draw(screen *ebiten.Image) {
	fb := a.m.Framebuffer()
	if a.tex == nil {
		a.tex = ebiten.NewImage(display.Width, display.Height)
		fb.MarkDirty()
	}
	if fb.Dirty() {
		a.tex.WritePixels(a.m.Pixels())
		fb.ClearDirty()
	}

	op := &ebiten.DrawImageOptions{}
	s := float64(fb.Scale())
	op.GeoM.Scale(s, s)
	screen.DrawImage(a.tex, op)

	switch {
	case a.halted != nil:
		a.drawBanner(screen, "HALTED - F5 to reset")
	case a.paused:
		a.drawBanner(screen, "PAUSED")
	}
}

func (a *App) drawBanner(screen *ebiten.Image, msg string) {
	face := basicfont.Face7x13
	b := text.BoundString(face, msg)
	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
	x := (w - b.Dx()) / 2
	y := (h + b.Dy()) / 2
	text.Draw(screen, msg, face, x, y, color.RGBA{0xE0, 0x40, 0x40, 0xFF})
}

func (a *App) Layout(outW, outH int) (int, int) { return a.cfg.WindowSize() }
