// Package beep generates the single buzzer tone driven by the sound timer.
package beep

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
)

const (
	DefaultSampleRate = 48000
	DefaultFrequency  = 440

	// BytesPerFrame is one stereo frame of 16-bit little-endian samples.
	BytesPerFrame = 4
)

// 50% duty square wave, one period split into 8 steps.
var dutyPattern = [8]byte{0, 0, 0, 0, 1, 1, 1, 1}

// Tone is a square-wave source. SetActive gates it on and off from the
// emulation goroutine while the audio player pulls samples through Read.
type Tone struct {
	sampleRate int
	freq       int

	active atomic.Bool
	muted  atomic.Bool

	mu     sync.Mutex
	volume float64
	timer  float64 // samples left in the current duty step
	phase  int     // 0..7 index into dutyPattern
}

// NewTone creates a silent tone generator. Non-positive arguments pick the defaults.
func NewTone(sampleRate, freq int) *Tone {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if freq <= 0 {
		freq = DefaultFrequency
	}
	t := &Tone{sampleRate: sampleRate, freq: freq, volume: 0.25}
	t.timer = t.stepLen()
	return t
}

func (t *Tone) SampleRate() int { return t.sampleRate }

// SetActive starts or stops the tone.
func (t *Tone) SetActive(on bool) { t.active.Store(on) }
func (t *Tone) Active() bool      { return t.active.Load() }

func (t *Tone) SetMuted(m bool) { t.muted.Store(m) }
func (t *Tone) Muted() bool     { return t.muted.Load() }

// SetVolume sets the output gain, clamped to [0, 1].
func (t *Tone) SetVolume(v float64) {
	v = math.Max(0, math.Min(1, v))
	t.mu.Lock()
	t.volume = v
	t.mu.Unlock()
}

func (t *Tone) stepLen() float64 {
	return float64(t.sampleRate) / float64(t.freq) / float64(len(dutyPattern))
}

// Render produces n stereo frames as interleaved samples [L0,R0,L1,R1,...].
// Silence is rendered while inactive or muted; the wave phase keeps running
// only while the tone is audible so each beep starts on a fresh period.
func (t *Tone) Render(n int) []int {
	out := make([]int, n*2)
	if n <= 0 || !t.active.Load() || t.muted.Load() {
		return out
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	amp := int(t.volume * math.MaxInt16)
	step := t.stepLen()
	for i := 0; i < n; i++ {
		s := -amp
		if dutyPattern[t.phase] != 0 {
			s = amp
		}
		out[2*i], out[2*i+1] = s, s

		t.timer--
		for t.timer <= 0 {
			t.timer += step
			t.phase = (t.phase + 1) & (len(dutyPattern) - 1)
		}
	}
	return out
}

// Read implements io.Reader producing 16-bit little-endian stereo PCM. It
// never blocks and never returns an error, so it can feed a player forever.
func (t *Tone) Read(p []byte) (int, error) {
	if len(p) < BytesPerFrame {
		clear(p)
		return len(p), nil
	}
	frames := len(p) / BytesPerFrame
	samples := t.Render(frames)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(p[2*i:], uint16(int16(s)))
	}
	return frames * BytesPerFrame, nil
}
