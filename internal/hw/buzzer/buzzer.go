package buzzer

import (
	"time"
)

// Note frequencies in Hz (equal temperament, A4 = 440 Hz).
const (
	Rest = 0.0
	C5   = 523.25
	D5   = 587.33
	E5   = 659.25
	F5   = 698.46
	G5   = 783.99
	A5   = 880.00
	B5   = 987.77
	C6   = 1046.50
)

// Note is one tone of a pattern. A zero Freq is a rest.
type Note struct {
	Freq     float64
	Duration time.Duration
}

// Pattern is a sequence of notes played back to back.
type Pattern []Note

// Duration returns the total playing time of the pattern.
func (p Pattern) Duration() time.Duration {
	var total time.Duration
	for _, n := range p {
		total += n.Duration
	}
	return total
}

// NotePattern is the tune played by the PLAY NOTE PATTERN command:
// an ascending arpeggio, a short rest, then a closing phrase.
var NotePattern = Pattern{
	{C5, 200 * time.Millisecond},
	{E5, 200 * time.Millisecond},
	{G5, 200 * time.Millisecond},
	{C6, 400 * time.Millisecond},
	{Rest, 100 * time.Millisecond},
	{G5, 200 * time.Millisecond},
	{C6, 600 * time.Millisecond},
}

// Player plays the fixed note pattern.
type Player interface {
	PlayPattern() error
}

// None is a silent Player.
type None struct{}

func (None) PlayPattern() error { return nil }
