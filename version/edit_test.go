package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdit_EncodeDecodeRoundTrip(t *testing.T) {
	e := &Edit{}
	e.SetComparatorName("vidardb.BytewiseComparator")
	e.SetLogNumber(7)
	e.SetNextFileNumber(42)
	e.SetLastSequence(1000)
	e.DeleteFile(0, 3)
	e.DeleteFile(1, 9)
	e.AddFile(FileMetadata{
		Number:          42,
		Level:           1,
		FileSize:        2048,
		SmallestKey:     []byte("aaa"),
		LargestKey:      []byte("zzz"),
		ColumnFileSizes: []uint64{512, 512},
	})

	got, err := Decode(e.Encode())
	require.NoError(t, err)

	assert.Equal(t, e.ComparatorName, got.ComparatorName)
	assert.Equal(t, e.LogNumber, got.LogNumber)
	assert.Equal(t, e.NextFileNumber, got.NextFileNumber)
	assert.Equal(t, e.LastSequence, got.LastSequence)
	assert.Equal(t, e.DeletedFiles, got.DeletedFiles)
	require.Len(t, got.NewFiles, 1)
	assert.Equal(t, e.NewFiles[0], got.NewFiles[0])
}

func TestEdit_DecodePartial(t *testing.T) {
	// An edit that only sets a counter, as a flush-only edit would,
	// must round-trip without requiring every field to be present --
	// spec §4.3's "idempotent under replay" requirement.
	e := &Edit{}
	e.SetLastSequence(99)

	got, err := Decode(e.Encode())
	require.NoError(t, err)
	assert.False(t, got.HasComparator)
	assert.False(t, got.HasLogNumber)
	assert.True(t, got.HasLastSequence)
	assert.EqualValues(t, 99, got.LastSequence)
}

func TestEdit_DecodeUnknownTagFails(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff, 0xff, 0x0f})
	require.Error(t, err)
}
