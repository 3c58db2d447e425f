package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable_MatchesEveryCommand(t *testing.T) {
	table := DefaultTable()
	require.Equal(t, 9, table.Len())

	for _, id := range All() {
		t.Run(id.String(), func(t *testing.T) {
			got, ok := table.Match([]byte(id.String()))
			require.True(t, ok)
			assert.Equal(t, id, got)
		})
	}
}

func TestMatch_RejectsNonVocabulary(t *testing.T) {
	table := DefaultTable()
	cases := []string{
		"",
		"move forward",
		"RGB LED PURPLE",
		"RGB LED GREEN\r",
		"RGB LED GREEN ",
		" RGB LED GREEN",
		"RGB LED",
		"SPIN",
		"MOVE FORWARDS",
		"RGB LED GREEN\x00",
	}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			_, ok := table.Match([]byte(c))
			assert.False(t, ok, "%q must not match", c)
		})
	}
}

func TestMatch_FirstEntryWins(t *testing.T) {
	table, err := NewTable(
		Entry{Text: "GO", ID: MoveForward},
		Entry{Text: "STOP", ID: RGBLEDOff},
	)
	require.NoError(t, err)

	id, ok := table.Match([]byte("STOP"))
	require.True(t, ok)
	assert.Equal(t, RGBLEDOff, id)
}

func TestMatch_SharedPrefixes(t *testing.T) {
	// Both start with "SPIN C"; only the full string counts.
	table := DefaultTable()

	id, ok := table.Match([]byte("SPIN COUNTERCLOCKWISE"))
	require.True(t, ok)
	assert.Equal(t, SpinCounterclockwise, id)

	id, ok = table.Match([]byte("SPIN CLOCKWISE"))
	require.True(t, ok)
	assert.Equal(t, SpinClockwise, id)
}

func TestNewTable_Errors(t *testing.T) {
	_, err := NewTable(Entry{Text: "", ID: RGBLEDRed})
	assert.ErrorIs(t, err, ErrEmptyEntry)

	_, err = NewTable(Entry{Text: "X", ID: RGBLEDRed}, Entry{Text: "X", ID: RGBLEDBlue})
	assert.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestEntries_ReturnsCopy(t *testing.T) {
	table := DefaultTable()
	entries := table.Entries()
	entries[0].Text = "MUTATED"

	_, ok := table.Match([]byte("RGB LED GREEN"))
	assert.True(t, ok)
}

func TestID_String(t *testing.T) {
	assert.Equal(t, "PLAY NOTE PATTERN", PlayNotePattern.String())
	assert.Equal(t, "ID(42)", ID(42).String())
}
