// Package uart opens serial ports behind a small interface so the scanner
// and the diagnostics can run on either serial backend, or on a test double.
package uart

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cjeanneret/ScanGo/internal/debug"
	tarm "github.com/tarm/serial"
	"go.bug.st/serial"
)

// Driver names accepted by Open.
const (
	DriverBugst = "bugst"
	DriverTarm  = "tarm"
)

// DefaultReadTimeout bounds each Read so callers can poll for cancellation.
const DefaultReadTimeout = 100 * time.Millisecond

var ErrUnknownDriver = errors.New("unknown serial driver")

// Port is an open serial port. A Read that times out returns (0, nil).
type Port interface {
	io.ReadWriteCloser
}

// Config describes the port to open. Framing is always 8N1.
type Config struct {
	Driver      string
	Path        string
	BaudRate    int
	ReadTimeout time.Duration
}

// Opener opens a port; replaced in tests.
type Opener func(cfg Config) (Port, error)

// Open opens the port with the selected backend.
func Open(cfg Config) (Port, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	debug.Info("Opening serial port %s (%s, %d baud)", cfg.Path, cfg.Driver, cfg.BaudRate)

	switch cfg.Driver {
	case DriverBugst, "":
		return openBugst(cfg)
	case DriverTarm:
		return openTarm(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func openBugst(cfg Config) (Port, error) {
	port, err := serial.Open(cfg.Path, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Path, err)
	}

	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on serial port: %w", err)
	}
	return port, nil
}

func openTarm(cfg Config) (Port, error) {
	port, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Path,
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
		Size:        8,
		Parity:      tarm.ParityNone,
		StopBits:    tarm.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Path, err)
	}
	return &timeoutPort{ReadWriteCloser: port}, nil
}

// timeoutPort adapts tarm/serial, which reports an expired read timeout
// as io.EOF, to the (0, nil) convention of Port.
type timeoutPort struct {
	io.ReadWriteCloser
}

func (p *timeoutPort) Read(b []byte) (int, error) {
	n, err := p.ReadWriteCloser.Read(b)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}
