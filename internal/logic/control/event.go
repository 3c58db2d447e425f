package control

import (
	"time"

	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/cjeanneret/ScanGo/internal/logic/command"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Kind classifies loop events.
type Kind string

const (
	KindCaptured   Kind = "captured"
	KindInvalid    Kind = "invalid"
	KindDispatched Kind = "dispatched"
	KindError      Kind = "error"
)

// Event is one observable step of a loop iteration. All events of an
// iteration share the same ID.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Time      time.Time `json:"time"`
	Text      string    `json:"text"`
	Command   string    `json:"command,omitempty"`
	Truncated bool      `json:"truncated,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Sink receives events. Publish must not block the loop.
type Sink interface {
	Publish(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// LogSink writes events to the debug log.
type LogSink struct{}

func (LogSink) Publish(e Event) {
	if !debug.IsEnabled(debug.LevelVerbose) {
		return
	}
	l := debug.Logger().Debug().
		Str("id", e.ID.String()).
		Str("kind", string(e.Kind)).
		Str("text", e.Text)
	if e.Command != "" {
		l = l.Str("command", e.Command)
	}
	if e.Truncated {
		l = l.Bool("truncated", true)
	}
	if e.Error != "" {
		l = l.Str("error", e.Error)
	}
	l.Msg("event")
}

// Reporter emits the diagnostics of the loop and fans events out to sinks.
// It is used from the loop goroutine only.
type Reporter struct {
	sinks []Sink
	clock clockwork.Clock

	id   uuid.UUID
	text string
}

func NewReporter(clock clockwork.Clock, sinks ...Sink) *Reporter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reporter{sinks: sinks, clock: clock}
}

// AddSink registers another sink. Call before the loop starts.
func (r *Reporter) AddSink(s Sink) {
	r.sinks = append(r.sinks, s)
}

// Captured starts a new iteration and echoes the raw captured text.
func (r *Reporter) Captured(text string, truncated bool) {
	r.id = uuid.New()
	r.text = text

	debug.Notice("Barcode Scanner Command: %s", text)
	r.publish(Event{Kind: KindCaptured, Truncated: truncated})
}

// Notice reports an unmatched line.
func (r *Reporter) Notice(msg string) {
	debug.Notice("%s", msg)
	r.publish(Event{Kind: KindInvalid, Message: msg})
}

// Dispatched reports a completed action.
func (r *Reporter) Dispatched(id command.ID) {
	r.publish(Event{Kind: KindDispatched, Command: id.String()})
}

// Failed reports an actuator error. The loop carries on.
func (r *Reporter) Failed(id command.ID, err error) {
	debug.Error(err)
	r.publish(Event{Kind: KindError, Command: id.String(), Error: err.Error()})
}

func (r *Reporter) publish(e Event) {
	e.ID = r.id
	e.Time = r.clock.Now()
	e.Text = r.text
	for _, s := range r.sinks {
		s.Publish(e)
	}
}
