// Package scanner turns the byte stream of a barcode/QR scanner into
// command lines.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cjeanneret/ScanGo/internal/debug"
)

// DefaultCapacity is the command buffer size used by the control loop.
const DefaultCapacity = 64

var ErrZeroCapacity = errors.New("scanner: zero-capacity buffer")

// Framing describes how the scanner ends a transmission.
type Framing struct {
	// Terminators is the set of bytes that end a line.
	Terminators []byte
	// Retain stores the terminating byte in the buffer instead of dropping it.
	Retain bool
}

// DefaultFraming strips CR and LF.
func DefaultFraming() Framing {
	return Framing{Terminators: []byte("\r\n")}
}

func (f Framing) isTerminator(b byte) bool {
	return bytes.IndexByte(f.Terminators, b) >= 0
}

// Reader accumulates scanner bytes into lines.
//
// The source is read one byte at a time. A Read returning (0, nil) is a
// receive timeout and is retried, so ReadLine blocks until a line arrives.
type Reader struct {
	src       io.Reader
	framing   Framing
	one       [1]byte
	truncated bool
}

func NewReader(src io.Reader, framing Framing) *Reader {
	if len(framing.Terminators) == 0 {
		framing = DefaultFraming()
	}
	return &Reader{src: src, framing: framing}
}

// ReadLine fills buf with the next line and returns the number of bytes
// captured. It returns when a terminator arrives or when buf is full; a full
// buffer is not an error. Lines holding only terminators are skipped.
//
// At end of input a partial line is returned first, then io.EOF.
func (r *Reader) ReadLine(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, ErrZeroCapacity
	}

	n := 0
	payload := 0
	r.truncated = false

	for {
		if n == len(buf) {
			r.truncated = true
			debug.Verbose("Scanner buffer full (%d bytes), line truncated", n)
			return n, nil
		}

		if err := ctx.Err(); err != nil {
			return 0, err
		}

		got, err := r.src.Read(r.one[:])
		if got == 1 {
			b := r.one[0]
			debug.Trace("RX 0x%02X", b)

			if r.framing.isTerminator(b) {
				if payload == 0 {
					// empty line
					n = 0
					continue
				}
				if r.framing.Retain {
					buf[n] = b
					n++
				}
				return n, nil
			}

			buf[n] = b
			n++
			payload++
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				if payload > 0 {
					return n, nil
				}
				return 0, io.EOF
			}
			return 0, fmt.Errorf("scanner receive: %w", err)
		}
	}
}

// Truncated reports whether the last line filled the buffer before a
// terminator was seen.
func (r *Reader) Truncated() bool {
	return r.truncated
}
