package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthPrefixed_SplitStitchRoundTrip(t *testing.T) {
	s := LengthPrefixed{ColumnCount: 3}

	full, err := s.Stitch(map[int][]byte{
		0: []byte("alpha"),
		1: []byte(""),
		2: []byte("gamma"),
	}, 3)
	require.NoError(t, err)

	cols, err := s.Split(full)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "alpha", string(cols[0]))
	assert.Equal(t, "", string(cols[1]))
	assert.Equal(t, "gamma", string(cols[2]))
}

func TestLengthPrefixed_SplitEmptyValue(t *testing.T) {
	s := LengthPrefixed{ColumnCount: 2}

	cols, err := s.Split(nil)
	require.NoError(t, err)
	assert.Nil(t, cols)
}

func TestLengthPrefixed_PartialStitchTreatsAbsentAsEmpty(t *testing.T) {
	s := LengthPrefixed{ColumnCount: 3}

	// Only column 1 is known, as a column-projected read would supply.
	full, err := s.Stitch(map[int][]byte{1: []byte("middle")}, 3)
	require.NoError(t, err)

	cols, err := s.Split(full)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "", string(cols[0]))
	assert.Equal(t, "middle", string(cols[1]))
	assert.Equal(t, "", string(cols[2]))
}

func TestLengthPrefixed_SplitRejectsTruncatedPayload(t *testing.T) {
	s := LengthPrefixed{ColumnCount: 1}

	// A length prefix claiming more bytes than actually follow.
	_, err := s.Split([]byte{0x05, 'a', 'b'})
	require.Error(t, err)
}

func TestLengthPrefixed_SplitRejectsTrailingBytes(t *testing.T) {
	s := LengthPrefixed{ColumnCount: 1}

	full, err := s.Stitch(map[int][]byte{0: []byte("x")}, 1)
	require.NoError(t, err)

	_, err = s.Split(append(full, 0xff))
	require.Error(t, err)
}
