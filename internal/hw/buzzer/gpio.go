package buzzer

import (
	"fmt"
	"time"

	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/cjeanneret/ScanGo/internal/hw/gpio"
	"github.com/jonboulle/clockwork"
)

// toneCycle is the PWM period (in counts) used for square waves; the PWM
// clock is set to freq*toneCycle for each note.
const toneCycle = 100

// noteGap separates consecutive notes so repeated pitches stay distinct.
const noteGap = 20 * time.Millisecond

// GPIO plays a pattern on a piezo buzzer wired to a PWM pin.
type GPIO struct {
	gpio    gpio.Driver
	pin     int
	clock   clockwork.Clock
	pattern Pattern
}

// NewGPIO creates a piezo player. The pin is silenced immediately.
func NewGPIO(g gpio.Driver, pin int, clock clockwork.Clock, pattern Pattern) *GPIO {
	_ = g.SetupPWM(pin, C5*toneCycle)
	_ = g.WritePWM(pin, 0, toneCycle)

	return &GPIO{
		gpio:    g,
		pin:     pin,
		clock:   clock,
		pattern: pattern,
	}
}

// PlayPattern blocks until the whole pattern has been played.
func (b *GPIO) PlayPattern() error {
	debug.Live("Buzzer: playing %d notes (%v)", len(b.pattern), b.pattern.Duration())

	for i, n := range b.pattern {
		if n.Freq <= Rest {
			if err := b.gpio.WritePWM(b.pin, 0, toneCycle); err != nil {
				return fmt.Errorf("note %d: %w", i, err)
			}
			b.clock.Sleep(n.Duration)
			continue
		}

		debug.Verbose("Buzzer: note %d %.2f Hz for %v", i, n.Freq, n.Duration)
		if err := b.gpio.SetupPWM(b.pin, int(n.Freq*toneCycle)); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
		if err := b.gpio.WritePWM(b.pin, toneCycle/2, toneCycle); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
		b.clock.Sleep(n.Duration)
		if err := b.gpio.WritePWM(b.pin, 0, toneCycle); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
		b.clock.Sleep(noteGap)
	}
	return nil
}
