package indicator

import "strings"

// Color is a bitmask over the three LED channels.
type Color uint8

const (
	Off   Color = 0x00
	Red   Color = 0x01
	Green Color = 0x02
	Blue  Color = 0x04

	Yellow  = Red | Green
	Magenta = Red | Blue
	Cyan    = Green | Blue
	White   = Red | Green | Blue
)

func (c Color) String() string {
	switch c {
	case Off:
		return "off"
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case Yellow:
		return "yellow"
	case Magenta:
		return "magenta"
	case Cyan:
		return "cyan"
	case White:
		return "white"
	}
	var parts []string
	for _, ch := range []Color{Red, Green, Blue} {
		if c&ch != 0 {
			parts = append(parts, ch.String())
		}
	}
	return strings.Join(parts, "+")
}

// Indicator is the high-level interface used by the rest of the application.
// It represents an abstract status light, regardless of how it's wired.
type Indicator interface {
	// SetColor switches the light to the given color (Off turns it off).
	SetColor(c Color) error
}
