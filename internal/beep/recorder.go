package beep

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth  = 16
	channels  = 2
	pcmFormat = 1
)

// Recorder captures the tone into a WAV stream, one emulated frame at a time.
type Recorder struct {
	tone     *Tone
	enc      *wav.Encoder
	perFrame int
	frames   int
	closed   bool
}

// NewRecorder writes 16-bit stereo PCM to w. frameRate is the emulation frame
// rate used to size each chunk.
func NewRecorder(w io.WriteSeeker, tone *Tone, frameRate int) *Recorder {
	if frameRate <= 0 {
		frameRate = 60
	}
	return &Recorder{
		tone:     tone,
		enc:      wav.NewEncoder(w, tone.SampleRate(), bitDepth, channels, pcmFormat),
		perFrame: tone.SampleRate() / frameRate,
	}
}

// Frame appends one frame worth of samples with the tone gated by soundOn.
func (r *Recorder) Frame(soundOn bool) error {
	r.tone.SetActive(soundOn)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  r.tone.SampleRate(),
		},
		Data:           r.tone.Render(r.perFrame),
		SourceBitDepth: bitDepth,
	}
	if err := r.enc.Write(buf); err != nil {
		return fmt.Errorf("write wav frame %d: %w", r.frames, err)
	}
	r.frames++
	return nil
}

// Frames reports how many frames were recorded.
func (r *Recorder) Frames() int { return r.frames }

// Close finalizes the WAV header. The underlying writer is not closed.
// Calls after the first are no-ops.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}
