package indicator

import (
	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/cjeanneret/ScanGo/internal/hw/gpio"
)

// RGBGPIO is an Indicator for a common-cathode RGB LED with one GPIO
// line per channel (HIGH = channel lit).
type RGBGPIO struct {
	gpio     gpio.Driver
	redPin   int
	greenPin int
	bluePin  int
}

// NewRGBGPIO configures the three channel pins as outputs and turns the LED off.
func NewRGBGPIO(g gpio.Driver, redPin, greenPin, bluePin int) *RGBGPIO {
	for _, pin := range []int{redPin, greenPin, bluePin} {
		_ = g.SetupPin(pin, gpio.Output)
		_ = g.WritePin(pin, gpio.Low)
	}

	return &RGBGPIO{
		gpio:     g,
		redPin:   redPin,
		greenPin: greenPin,
		bluePin:  bluePin,
	}
}

// SetColor writes all three channels, red first.
func (l *RGBGPIO) SetColor(c Color) error {
	debug.Live("Indicator: %s", c)

	channels := []struct {
		pin int
		bit Color
	}{
		{l.redPin, Red},
		{l.greenPin, Green},
		{l.bluePin, Blue},
	}
	for _, ch := range channels {
		level := gpio.Low
		if c&ch.bit != 0 {
			level = gpio.High
		}
		if err := l.gpio.WritePin(ch.pin, level); err != nil {
			return err
		}
	}
	return nil
}
