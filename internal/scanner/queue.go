package scanner

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/cjeanneret/ScanGo/internal/syncutil"
)

const (
	DefaultQueueDepth = 16
	defaultPoll       = 100 * time.Millisecond
)

var (
	ErrQueueFull   = errors.New("scanner queue full")
	ErrQueueClosed = errors.New("scanner queue closed")
)

// Queue is a virtual scanner. Injected commands are framed with CR LF, the
// way the hardware scanner sends them, and read back as a byte stream.
type Queue struct {
	mu      syncutil.Mutex
	pending []byte

	lines     chan []byte
	done      chan struct{}
	closeOnce sync.Once
	poll      time.Duration
}

// NewQueue returns a queue holding at most depth unread commands.
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Queue{
		lines: make(chan []byte, depth),
		done:  make(chan struct{}),
		poll:  defaultPoll,
	}
}

// Inject enqueues one scanned command.
func (q *Queue) Inject(text string) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.lines <- []byte(text + "\r\n"):
		debug.Verbose("Virtual scan queued: %q", text)
		return nil
	default:
		return ErrQueueFull
	}
}

// Read returns queued bytes. With nothing queued it waits up to the poll
// interval and returns (0, nil). After Close and once drained it returns
// io.EOF.
func (q *Queue) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		select {
		case line := <-q.lines:
			q.pending = line
		default:
			timer := time.NewTimer(q.poll)
			defer timer.Stop()

			select {
			case line := <-q.lines:
				q.pending = line
			case <-q.done:
				select {
				case line := <-q.lines:
					q.pending = line
				default:
					return 0, io.EOF
				}
			case <-timer.C:
				return 0, nil
			}
		}
	}

	n := copy(p, q.pending)
	q.pending = q.pending[n:]
	return n, nil
}

// Close stops accepting commands. Already queued commands can still be read.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
