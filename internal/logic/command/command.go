// Package command holds the fixed scanner vocabulary and the matcher.
package command

import (
	"bytes"
	"errors"
	"fmt"
)

// ID identifies a recognised command.
type ID int

const (
	RGBLEDGreen ID = iota + 1
	RGBLEDBlue
	RGBLEDRed
	RGBLEDOff
	PlayNotePattern
	MoveForward
	MoveBackward
	SpinClockwise
	SpinCounterclockwise
)

var names = map[ID]string{
	RGBLEDGreen:          "RGB LED GREEN",
	RGBLEDBlue:           "RGB LED BLUE",
	RGBLEDRed:            "RGB LED RED",
	RGBLEDOff:            "RGB LED OFF",
	PlayNotePattern:      "PLAY NOTE PATTERN",
	MoveForward:          "MOVE FORWARD",
	MoveBackward:         "MOVE BACKWARD",
	SpinClockwise:        "SPIN CLOCKWISE",
	SpinCounterclockwise: "SPIN COUNTERCLOCKWISE",
}

// String returns the scanned text of the command.
func (id ID) String() string {
	if s, ok := names[id]; ok {
		return s
	}
	return fmt.Sprintf("ID(%d)", int(id))
}

// All lists the vocabulary in table order.
func All() []ID {
	return []ID{
		RGBLEDGreen,
		RGBLEDBlue,
		RGBLEDRed,
		RGBLEDOff,
		PlayNotePattern,
		MoveForward,
		MoveBackward,
		SpinClockwise,
		SpinCounterclockwise,
	}
}

var (
	ErrEmptyEntry     = errors.New("command: empty entry text")
	ErrDuplicateEntry = errors.New("command: duplicate entry text")
)

// Entry pairs the exact scanned text with its command.
type Entry struct {
	Text string
	ID   ID
}

// Table is the read-only command catalog.
type Table struct {
	entries []Entry
}

// NewTable builds a table. Entries are matched in the given order.
func NewTable(entries ...Entry) (*Table, error) {
	seen := make(map[string]struct{}, len(entries))
	t := &Table{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		if e.Text == "" {
			return nil, fmt.Errorf("%w (id %d)", ErrEmptyEntry, int(e.ID))
		}
		if _, dup := seen[e.Text]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntry, e.Text)
		}
		seen[e.Text] = struct{}{}
		t.entries = append(t.entries, e)
	}
	return t, nil
}

// DefaultTable returns the nine-command scanner vocabulary.
func DefaultTable() *Table {
	entries := make([]Entry, 0, len(names))
	for _, id := range All() {
		entries = append(entries, Entry{Text: id.String(), ID: id})
	}
	t, err := NewTable(entries...)
	if err != nil {
		panic(err)
	}
	return t
}

// Match returns the first entry whose text equals line exactly.
// Comparison is byte for byte and case-sensitive; a length difference
// never matches.
func (t *Table) Match(line []byte) (ID, bool) {
	for _, e := range t.entries {
		if len(e.Text) == len(line) && bytes.Equal([]byte(e.Text), line) {
			return e.ID, true
		}
	}
	return 0, false
}

// Entries returns a copy of the table in match order.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

func (t *Table) Len() int {
	return len(t.entries)
}
