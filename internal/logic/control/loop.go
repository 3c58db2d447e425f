// Package control runs the scanner command loop:
// read a line, match it, dispatch it, forever.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/cjeanneret/ScanGo/internal/logic/command"
)

type LineReader interface {
	ReadLine(ctx context.Context, buf []byte) (int, error)
	Truncated() bool
}

type Matcher interface {
	Match(line []byte) (command.ID, bool)
}

type Dispatcher interface {
	Dispatch(id command.ID, ok bool) error
}

// Loop owns the command buffer and runs one command at a time.
type Loop struct {
	reader     LineReader
	table      Matcher
	dispatcher Dispatcher
	reporter   *Reporter
	buf        []byte
}

func NewLoop(reader LineReader, table Matcher, dispatcher Dispatcher, reporter *Reporter, capacity int) *Loop {
	if reporter == nil {
		reporter = NewReporter(nil)
	}
	return &Loop{
		reader:     reader,
		table:      table,
		dispatcher: dispatcher,
		reporter:   reporter,
		buf:        make([]byte, capacity),
	}
}

// Step reads one line and dispatches it. Unknown commands and actuator
// errors are reported, not returned; only receive errors end a Step with
// an error.
func (l *Loop) Step(ctx context.Context) error {
	clear(l.buf)

	n, err := l.reader.ReadLine(ctx, l.buf)
	if err != nil {
		return err
	}
	line := l.buf[:n]

	l.reporter.Captured(string(line), l.reader.Truncated())

	id, ok := l.table.Match(line)
	if err := l.dispatcher.Dispatch(id, ok); err != nil {
		l.reporter.Failed(id, err)
		return nil
	}
	if ok {
		l.reporter.Dispatched(id)
	}
	return nil
}

// Run steps until ctx is done or the scanner input ends. End of input is
// a clean stop.
func (l *Loop) Run(ctx context.Context) error {
	debug.Info("Listening for scanner commands (buffer %d bytes)", len(l.buf))

	for iteration := 1; ; iteration++ {
		debug.Step(iteration, "waiting for scanner")

		err := l.Step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			debug.Info("Scanner input closed")
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("scanner loop: %w", err)
		}
	}
}
