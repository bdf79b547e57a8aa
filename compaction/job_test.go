package compaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidardb/vidardb-engine/internal/comparator"
	"github.com/vidardb/vidardb-engine/internal/keys"
)

// sliceSource is a fixed, pre-sorted in-memory Source, standing in for a
// table iterator in these tests.
type sliceSource struct {
	rows []Row
	pos  int
}

func newSliceSource(rows []Row) *sliceSource { return &sliceSource{rows: rows} }

func (s *sliceSource) Valid() bool   { return s.pos < len(s.rows) }
func (s *sliceSource) Key() []byte   { return s.rows[s.pos].Key }
func (s *sliceSource) Value() []byte { return s.rows[s.pos].Value }
func (s *sliceSource) Next()         { s.pos++ }
func (s *sliceSource) Err() error    { return nil }

func row(userKey string, seq uint64, vt keys.ValueType, value string) Row {
	return Row{Key: keys.Make([]byte(userKey), seq, vt), Value: []byte(value)}
}

func keyOf(userKey string, seq uint64, vt keys.ValueType) []byte {
	return keys.Make([]byte(userKey), seq, vt)
}

func newComparator() *comparator.InternalKeyComparator {
	return comparator.NewInternalKeyComparator(comparator.Bytewise{})
}

// Ported from original_source/test/db/compaction_job_test.cc's
// SimpleDeletion: a bottommost-level deletion with no snapshot below it
// is dropped together with the older Value it hides, while a duplicate
// older Value for a different key collapses into its newest version
// with sequence zeroed.
func TestJob_SimpleDeletion(t *testing.T) {
	file1 := newSliceSource([]Row{
		row("c", 4, keys.TypeDeletion, ""),
		row("c", 3, keys.TypeValue, "val"),
	})
	file2 := newSliceSource([]Row{
		row("b", 2, keys.TypeValue, "val"),
		row("b", 1, keys.TypeValue, "val"),
	})

	j := &Job{
		Comparator:       newComparator(),
		Sources:          []Source{file1, file2},
		Bottommost:       true,
		InputLargestSeq:  4,
	}
	rows, stats, err := j.Run()
	require.NoError(t, err)

	want := []Row{row("b", 0, keys.TypeValue, "val")}
	assert.Equal(t, want, rows)
	assert.EqualValues(t, 4, stats.NumInputRecords)
	assert.EqualValues(t, 1, stats.NumOutputRecords)
}

// Ported from SimpleOverwrite: two keys each with two versions collapse
// to their newest version; only the entry carrying the compaction's
// overall largest input sequence number keeps that sequence, every
// other survivor is zeroed.
func TestJob_SimpleOverwrite(t *testing.T) {
	file1 := newSliceSource([]Row{
		row("a", 3, keys.TypeValue, "val2"),
		row("b", 4, keys.TypeValue, "val3"),
	})
	file2 := newSliceSource([]Row{
		row("a", 1, keys.TypeValue, "val"),
		row("b", 2, keys.TypeValue, "val"),
	})

	j := &Job{
		Comparator:      newComparator(),
		Sources:         []Source{file1, file2},
		Bottommost:      true,
		InputLargestSeq: 4,
	}
	rows, _, err := j.Run()
	require.NoError(t, err)

	want := []Row{
		row("a", 0, keys.TypeValue, "val2"),
		row("b", 4, keys.TypeValue, "val3"),
	}
	assert.Equal(t, want, rows)
}

// Ported from SimpleNonLastLevel: compacting L0+L1 (not the bottommost
// level, since an L2 still exists) must keep every surviving version's
// original sequence number.
func TestJob_SimpleNonLastLevel(t *testing.T) {
	l0 := newSliceSource([]Row{
		row("a", 5, keys.TypeValue, "val2"),
		row("b", 6, keys.TypeValue, "val3"),
	})
	l1 := newSliceSource([]Row{
		row("a", 3, keys.TypeValue, "val"),
		row("b", 4, keys.TypeValue, "val"),
	})

	j := &Job{
		Comparator: newComparator(),
		Sources:    []Source{l0, l1},
		Bottommost: false,
	}
	rows, _, err := j.Run()
	require.NoError(t, err)

	want := []Row{
		row("a", 5, keys.TypeValue, "val2"),
		row("b", 6, keys.TypeValue, "val3"),
	}
	assert.Equal(t, want, rows)
}

// A SingleDeletion that successfully pairs with the next older Value in
// the same bucket drops both rows entirely, per spec §4.4's
// "both are dropped" rule -- neither the tombstone nor the Value it
// cancels may survive into the output.
func TestJob_SingleDeletionCancelsPairedValue(t *testing.T) {
	file1 := newSliceSource([]Row{
		row("k", 10, keys.TypeSingleDeletion, ""),
		row("k", 5, keys.TypeValue, "old"),
	})

	j := &Job{
		Comparator:      newComparator(),
		Sources:         []Source{file1},
		Bottommost:      false,
		InputLargestSeq: 10,
	}
	rows, stats, err := j.Run()
	require.NoError(t, err)

	assert.Empty(t, rows)
	assert.EqualValues(t, 1, stats.NumRecordsReplaced)
}

// A corrupt value-type byte passes through unchanged even though it
// sits directly behind a deletion for the same user key, while the
// bottommost deletion itself is dropped, matching the documented quirk
// in original_source's CorruptionAfterDeletion fixture.
func TestJob_CorruptKeyAfterDeletionPassesThrough(t *testing.T) {
	corruptKey := keyOf("a", 4, keys.TypeValue)
	corruptKey[len(corruptKey)-8] = 0xEE // stomp the value-type byte

	file1 := newSliceSource([]Row{
		{Key: keyOf("a", 5, keys.TypeDeletion), Value: nil},
		{Key: corruptKey, Value: []byte("val")},
	})

	j := &Job{
		Comparator:      newComparator(),
		Sources:         []Source{file1},
		Bottommost:      true,
		InputLargestSeq: 5,
	}
	rows, stats, err := j.Run()
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, stats.NumCorruptKeys)
}
