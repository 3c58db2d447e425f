package buzzer

import (
	"fmt"
	"os"

	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/wav"
)

// DefaultSampleRate is used when rendering patterns to WAV.
const DefaultSampleRate = beep.SampleRate(44100)

// WAV renders the pattern to a .wav file instead of driving a piezo.
// Useful on development hosts; the file can be played with any audio tool.
type WAV struct {
	path       string
	pattern    Pattern
	sampleRate beep.SampleRate
}

func NewWAV(path string, pattern Pattern) *WAV {
	return &WAV{path: path, pattern: pattern, sampleRate: DefaultSampleRate}
}

// Streamer builds a mono-content streamer for the pattern.
func (w *WAV) Streamer() (beep.Streamer, error) {
	parts := make([]beep.Streamer, 0, len(w.pattern))
	for i, n := range w.pattern {
		samples := w.sampleRate.N(n.Duration)
		if n.Freq <= Rest {
			parts = append(parts, beep.Silence(samples))
			continue
		}
		tone, err := generators.SineTone(w.sampleRate, n.Freq)
		if err != nil {
			return nil, fmt.Errorf("note %d: %w", i, err)
		}
		parts = append(parts, beep.Take(samples, tone))
	}
	return beep.Seq(parts...), nil
}

// PlayPattern writes the rendered pattern to the configured path,
// replacing any previous rendering.
func (w *WAV) PlayPattern() error {
	streamer, err := w.Streamer()
	if err != nil {
		return err
	}

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}

	format := beep.Format{SampleRate: w.sampleRate, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, streamer, format); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close wav file: %w", err)
	}

	debug.Live("Buzzer: pattern rendered to %s (%v)", w.path, w.pattern.Duration())
	return nil
}
