package web

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cjeanneret/ScanGo/internal/logic/control"
	"github.com/cjeanneret/ScanGo/internal/syncutil"
)

// clientBuffer is the per-client backlog; slower clients lose messages.
const clientBuffer = 64

// StatusEvent is one SSE message. Loop events carry the full event.
type StatusEvent struct {
	Time  string         `json:"t"`
	Level string         `json:"l,omitempty"`
	Msg   string         `json:"msg"`
	Event *control.Event `json:"event,omitempty"`
}

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      syncutil.RWMutex
	clients map[chan string]struct{}
}

func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, clientBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Clients returns the number of connected subscribers.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends a message to all subscribed clients.
// Messages are sent as JSON: {"t":"...","l":"info","msg":"..."}
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{Level: level, Msg: msg})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

func (b *StatusBroadcaster) send(evt StatusEvent) {
	if evt.Time == "" {
		evt.Time = time.Now().Format(time.RFC3339)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Publish implements control.Sink: loop events go out as SSE messages.
func (b *StatusBroadcaster) Publish(e control.Event) {
	evt := StatusEvent{
		Time:  e.Time.Format(time.RFC3339),
		Level: levelFor(e.Kind),
		Msg:   eventMessage(e),
		Event: &e,
	}
	b.send(evt)
}

func levelFor(k control.Kind) string {
	switch k {
	case control.KindInvalid:
		return "warn"
	case control.KindError:
		return "error"
	default:
		return "info"
	}
}

func eventMessage(e control.Event) string {
	switch e.Kind {
	case control.KindCaptured:
		if e.Truncated {
			return fmt.Sprintf("Barcode Scanner Command: %s (truncated)", e.Text)
		}
		return "Barcode Scanner Command: " + e.Text
	case control.KindInvalid:
		return e.Message
	case control.KindDispatched:
		return "Done: " + e.Command
	case control.KindError:
		return fmt.Sprintf("%s failed: %s", e.Command, e.Error)
	default:
		return string(e.Kind)
	}
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter mirrors the debug log to SSE clients.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.Broadcast("log", msg)
	}
	return len(p), nil
}
