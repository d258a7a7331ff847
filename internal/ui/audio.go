package ui

import (
	"fmt"
	"time"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/beep"
	"github.com/hajimehoshi/ebiten/v2/audio"
)

// playerBuffer keeps beep latency well below one 60 Hz frame pair.
const playerBuffer = 30 * time.Millisecond

// startAudio opens the audio device and starts streaming the tone. The tone
// stays silent until SetActive is called from Update.
func (a *App) startAudio() error {
	a.tone = beep.NewTone(beep.DefaultSampleRate, beep.DefaultFrequency)
	a.tone.SetVolume(a.cfg.Volume)
	a.tone.SetMuted(a.cfg.Muted)

	a.audioCtx = audio.NewContext(a.tone.SampleRate())
	p, err := a.audioCtx.NewPlayer(a.tone)
	if err != nil {
		return fmt.Errorf("create audio player: %w", err)
	}
	a.audioPlayer = p
	a.audioPlayer.SetBufferSize(playerBuffer)
	a.audioPlayer.Play()
	return nil
}

func (a *App) stopAudio() {
	if a.tone != nil {
		a.tone.SetActive(false)
	}
	if a.audioPlayer != nil {
		_ = a.audioPlayer.Close()
		a.audioPlayer = nil
	}
}
