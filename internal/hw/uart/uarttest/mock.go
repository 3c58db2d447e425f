// Package uarttest provides a serial port double.
package uarttest

import (
	"errors"
	"time"

	"github.com/cjeanneret/ScanGo/internal/syncutil"
)

var ErrPortClosed = errors.New("port closed")

// MockPort is a scripted uart.Port. Reads come from ReadData (then ReadFunc,
// if set). In Loopback mode every written byte becomes readable, like a
// TX-RX jumper.
type MockPort struct {
	ReadError  error
	WriteError error
	CloseError error
	ReadFunc   func(p []byte) (n int, err error)
	ReadData   []byte
	ReadIndex  int
	Loopback   bool
	// Corrupt, if set, alters looped-back bytes (fault injection).
	Corrupt func(b byte) byte

	mu      syncutil.Mutex
	written []byte
	closed  bool
}

func NewMockPort() *MockPort {
	return &MockPort{}
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrPortClosed
	}
	if m.ReadIndex < len(m.ReadData) {
		n := copy(p, m.ReadData[m.ReadIndex:])
		m.ReadIndex += n
		return n, nil
	}
	if m.ReadFunc != nil {
		return m.ReadFunc(p)
	}
	if m.ReadError != nil {
		return 0, m.ReadError
	}

	// Simulate a read timeout
	m.mu.Unlock()
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	return 0, nil
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrPortClosed
	}
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.written = append(m.written, p...)
	if m.Loopback {
		for _, b := range p {
			if m.Corrupt != nil {
				b = m.Corrupt(b)
			}
			m.ReadData = append(m.ReadData, b)
		}
	}
	return len(p), nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.CloseError
}

// Written returns a copy of everything written so far.
func (m *MockPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

func (m *MockPort) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
