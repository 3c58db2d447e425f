// Package diag holds the serial diagnostics that replace the scanner loop
// when ScanGo runs in a test mode: a transmit ramp for probing the line
// with a scope or a second host, and a loopback check with TX wired to RX.
package diag

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/jonboulle/clockwork"
	"github.com/sigurn/crc16"
)

const (
	DefaultInterval       = 100 * time.Millisecond
	DefaultLoopbackLength = 256
	// readAttempts bounds the empty reads tolerated while waiting for one
	// looped-back byte.
	readAttempts = 10
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum returns the CRC16/MODBUS of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// TransmitRamp sends an incrementing byte (wrapping at 0xFF) once per
// interval. count 0 runs until ctx is done. It returns the number of bytes
// sent.
func TransmitRamp(ctx context.Context, port io.Writer, clock clockwork.Clock, interval time.Duration, count int) (int, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	debug.Section("UART transmit test")

	var data byte
	sent := 0
	for count == 0 || sent < count {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		if _, err := port.Write([]byte{data}); err != nil {
			return sent, fmt.Errorf("transmit 0x%02X: %w", data, err)
		}
		debug.Notice("TX Data: 0x%02X", data)
		sent++
		data++

		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-clock.After(interval):
		}
	}
	return sent, nil
}

// Mismatch is one byte that did not come back as sent.
type Mismatch struct {
	Index int
	TX    byte
	RX    byte
	// Missing is set when nothing was received for this byte.
	Missing bool
}

// Report is the result of a loopback run.
type Report struct {
	Length     int
	TX         []byte
	RX         []byte
	TXChecksum uint16
	RXChecksum uint16
	Mismatches []Mismatch
}

// Passed reports whether every byte came back unchanged.
func (r Report) Passed() bool {
	return len(r.Mismatches) == 0 && r.TXChecksum == r.RXChecksum
}

// Loopback fills a ramp buffer of length bytes, sends it one byte at a
// time and reads each byte back. TX must be wired to RX.
func Loopback(ctx context.Context, port io.ReadWriter, length int) (Report, error) {
	if length <= 0 {
		length = DefaultLoopbackLength
	}

	debug.Notice("Loopback Test Started")

	rep := Report{
		Length: length,
		TX:     make([]byte, length),
		RX:     make([]byte, length),
	}
	for i := range rep.TX {
		rep.TX[i] = byte(i)
	}

	one := make([]byte, 1)
	for i, b := range rep.TX {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if _, err := port.Write([]byte{b}); err != nil {
			return rep, fmt.Errorf("loopback transmit %d: %w", i, err)
		}

		got := false
		for attempt := 0; attempt < readAttempts && !got; attempt++ {
			n, err := port.Read(one)
			if err != nil {
				return rep, fmt.Errorf("loopback receive %d: %w", i, err)
			}
			got = n == 1
		}

		if !got {
			rep.Mismatches = append(rep.Mismatches, Mismatch{Index: i, TX: b, Missing: true})
			continue
		}
		rep.RX[i] = one[0]
		debug.Verbose("TX Data: 0x%02X | RX Data: 0x%02X", b, one[0])
		if one[0] != b {
			rep.Mismatches = append(rep.Mismatches, Mismatch{Index: i, TX: b, RX: one[0]})
		}
	}

	rep.TXChecksum = Checksum(rep.TX)
	rep.RXChecksum = Checksum(rep.RX)

	for _, m := range rep.Mismatches {
		if m.Missing {
			debug.Notice("Byte %d: sent 0x%02X, nothing received", m.Index, m.TX)
			continue
		}
		debug.Notice("Byte %d: sent 0x%02X, received 0x%02X", m.Index, m.TX, m.RX)
	}
	debug.Notice("Loopback: %d bytes, %d mismatches, CRC TX=0x%04X RX=0x%04X",
		rep.Length, len(rep.Mismatches), rep.TXChecksum, rep.RXChecksum)
	debug.Notice("Loopback Test Ended")

	return rep, nil
}
