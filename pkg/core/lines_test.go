package core

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLines(t *testing.T) {
	var got []string
	err := ReadLines(strings.NewReader("one\r\ntwo\n\nthree"), func(line string) {
		got = append(got, line)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "", "three"}, got)
}

func TestReadLinesLongLine(t *testing.T) {
	long := strings.Repeat("x", 256*1024)
	var got []string
	require.NoError(t, ReadLines(strings.NewReader(long+"\nshort\n"), func(line string) {
		got = append(got, line)
	}))
	require.Len(t, got, 2)
	assert.Len(t, got[0], len(long))
	assert.Equal(t, "short", got[1])
}

type failingReader struct{ err error }

func (r failingReader) Read(_ []byte) (int, error) { return 0, r.err }

func TestReadLinesError(t *testing.T) {
	boom := errors.New("boom")
	err := ReadLines(io.MultiReader(strings.NewReader("a\n"), failingReader{boom}), func(string) {})
	assert.ErrorIs(t, err, boom)
}
