package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidardb/vidardb-engine/errs"
	"github.com/vidardb/vidardb-engine/internal/block"
	"github.com/vidardb/vidardb-engine/internal/comparator"
	"github.com/vidardb/vidardb-engine/internal/compress"
	"github.com/vidardb/vidardb-engine/internal/keys"
	"github.com/vidardb/vidardb-engine/internal/splitter"
)

// memFile is an in-memory WritableFile/ReadableFile, standing in for the
// *os.File the real writer/reader use, the same role the teacher's own
// tests give an in-memory buffer instead of touching disk.
type memFile struct {
	buf    []byte
	closed bool
}

func (m *memFile) Write(p []byte) (int, error) {
	m.buf = append(m.buf, p...)
	return len(p), nil
}
func (m *memFile) Sync() error  { return nil }
func (m *memFile) Close() error { m.closed = true; return nil }

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.buf[off:])
	return n, nil
}
func (m *memFile) Size() int64 { return int64(len(m.buf)) }

func newOpenedFiles(columnCount int) (main *memFile, subs []*memFile) {
	main = &memFile{}
	subs = make([]*memFile, columnCount)
	for i := range subs {
		subs[i] = &memFile{}
	}
	return main, subs
}

func testOptions(columnCount int) Options {
	return Options{
		Comparator:  comparator.NewInternalKeyComparator(comparator.Bytewise{}),
		Splitter:    splitter.LengthPrefixed{ColumnCount: columnCount},
		ColumnCount: columnCount,
		BlockSize:   64, // tiny, to force multiple blocks in these tests
		Compression: compress.TypeSnappy,
	}
}

type row struct {
	userKey string
	seq     uint64
	vt      keys.ValueType
	value   string
}

func buildTable(t *testing.T, columnCount int, rows []row) (*memFile, []*memFile) {
	main, subs := newOpenedFiles(columnCount)
	w, err := NewWriter(main, testOptions(columnCount), func(i int) (WritableFile, error) {
		return subs[i], nil
	})
	require.NoError(t, err)

	for _, r := range rows {
		ik := keys.Make([]byte(r.userKey), r.seq, r.vt)
		require.NoError(t, w.Add(ik, []byte(r.value)))
	}
	require.NoError(t, w.Finish())
	return main, subs
}

func openTable(t *testing.T, columnCount int, main *memFile, subs []*memFile) *Reader {
	r, err := OpenReader(main, 1, testOptions(columnCount), nil, func(i int) (ReadableFile, error) {
		return subs[i], nil
	})
	require.NoError(t, err)
	return r
}

func TestWriterReader_RoundTrip(t *testing.T) {
	rows := []row{
		{"apple", 5, keys.TypeValue, "red-fruit-column-data-that-is-reasonably-long"},
		{"banana", 4, keys.TypeValue, "yellow-fruit"},
		{"cherry", 3, keys.TypeValue, "small-red-fruit"},
		{"date", 2, keys.TypeValue, "brown-fruit"},
		{"elderberry", 1, keys.TypeValue, "purple-berry"},
	}
	main, subs := buildTable(t, 1, rows)
	r := openTable(t, 1, main, subs)
	defer r.Close()

	assert.EqualValues(t, len(rows), r.NumEntries())

	for _, want := range rows {
		v, state, err := r.Get([]byte(want.userKey), want.seq, nil)
		require.NoError(t, err)
		require.Equal(t, GetFound, state)
		assert.Equal(t, want.value, string(v))
	}

	_, state, err := r.Get([]byte("fig"), 99, nil)
	require.NoError(t, err)
	assert.Equal(t, GetNotFound, state)
}

func TestWriterReader_Deletion(t *testing.T) {
	rows := []row{
		{"k1", 20, keys.TypeDeletion, ""},
		{"k1", 10, keys.TypeValue, "v1"},
	}
	main, subs := buildTable(t, 1, rows)
	r := openTable(t, 1, main, subs)
	defer r.Close()

	_, state, err := r.Get([]byte("k1"), 25, nil)
	require.NoError(t, err)
	assert.Equal(t, GetDeleted, state)

	v, state, err := r.Get([]byte("k1"), 10, nil)
	require.NoError(t, err)
	assert.Equal(t, GetFound, state)
	assert.Equal(t, "v1", string(v))
}

func TestWriterReader_ColumnProjection(t *testing.T) {
	main, subs := newOpenedFiles(3)
	w, err := NewWriter(main, testOptions(3), func(i int) (WritableFile, error) { return subs[i], nil })
	require.NoError(t, err)

	sp := splitter.LengthPrefixed{ColumnCount: 3}
	full, err := sp.Stitch(map[int][]byte{0: []byte("c0"), 1: []byte("c1"), 2: []byte("c2")}, 3)
	require.NoError(t, err)

	require.NoError(t, w.Add(keys.Make([]byte("row0"), 1, keys.TypeValue), full))
	require.NoError(t, w.Finish())

	r, err := OpenReader(main, 2, testOptions(3), nil, func(i int) (ReadableFile, error) { return subs[i], nil })
	require.NoError(t, err)
	defer r.Close()

	v, state, err := r.Get([]byte("row0"), 1, []int{1})
	require.NoError(t, err)
	require.Equal(t, GetFound, state)

	cols, err := sp.Split(v)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "c1", string(cols[1]))
	assert.Equal(t, "", string(cols[0]))
	assert.Equal(t, "", string(cols[2]))
}

func TestIterator_AscendingOrder(t *testing.T) {
	rows := []row{
		{"a", 1, keys.TypeValue, "1"},
		{"b", 1, keys.TypeValue, "2"},
		{"c", 1, keys.TypeValue, "3"},
	}
	main, subs := buildTable(t, 1, rows)
	r := openTable(t, 1, main, subs)
	defer r.Close()

	it := r.NewIterator(nil)
	it.SeekToFirst()
	var seen []string
	for ; it.Valid(); it.Next() {
		uk, _ := keys.Split(it.Key())
		seen = append(seen, string(uk))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

// Seek must land on the first key >= target, per spec §4.2's "seek"
// operation, and a target past every key leaves the iterator invalid.
func TestIterator_Seek(t *testing.T) {
	rows := []row{
		{"a", 1, keys.TypeValue, "1"},
		{"b", 1, keys.TypeValue, "2"},
		{"c", 1, keys.TypeValue, "3"},
		{"d", 1, keys.TypeValue, "4"},
		{"e", 1, keys.TypeValue, "5"},
	}
	main, subs := buildTable(t, 1, rows)
	r := openTable(t, 1, main, subs)
	defer r.Close()

	it := r.NewIterator(nil)
	it.Seek(keys.Make([]byte("c"), 1, keys.TypeValue))
	require.True(t, it.Valid())
	uk, _ := keys.Split(it.Key())
	assert.Equal(t, "c", string(uk))

	it.Seek([]byte("zzz\xff\xff\xff\xff\xff\xff\xff\xff"))
	assert.False(t, it.Valid())
}

// RangeQuery must return exactly the rows whose internal key falls in
// [lo, hi] across the table's two data blocks -- spec §4.2's projected
// range query. Both blocks' min/max summaries overlap [lo, hi], so this
// case reads both; it does not observe whether a block is skipped.
func TestReader_RangeQuerySkipsBlocks(t *testing.T) {
	rows := []row{
		{"a", 1, keys.TypeValue, "1-long-value-to-force-block-splits"},
		{"b", 1, keys.TypeValue, "2-long-value-to-force-block-splits"},
		{"c", 1, keys.TypeValue, "3-long-value-to-force-block-splits"},
		{"d", 1, keys.TypeValue, "4-long-value-to-force-block-splits"},
		{"e", 1, keys.TypeValue, "5-long-value-to-force-block-splits"},
	}
	main, subs := buildTable(t, 1, rows)
	r := openTable(t, 1, main, subs)
	defer r.Close()

	lo := keys.Make([]byte("b"), 1, keys.TypeValue)
	hi := keys.Make([]byte("d"), 1, keys.TypeValue)

	rit := r.NewRangeIterator(lo, hi, nil)
	var seen []string
	for ; rit.Valid(); rit.Next() {
		uk, _ := keys.Split(rit.Key())
		seen = append(seen, string(uk))
	}
	require.NoError(t, rit.Err())
	assert.Equal(t, []string{"b", "c", "d"}, seen)
}

// The main file's footer persists a format_version alongside the two
// block handles and still round-trips through the 53-byte layout spec
// §6 mandates.
func TestFooter_RoundTripsFormatVersion(t *testing.T) {
	f := Footer{
		MetaIndexHandle: block.Handle{Offset: 10, Size: 20},
		IndexHandle:     block.Handle{Offset: 30, Size: 40},
		FormatVersion:   CurrentFormatVersion,
	}
	encoded := f.EncodeTo()
	require.Len(t, encoded, 53)

	decoded, err := DecodeFooter(encoded)
	require.NoError(t, err)
	assert.Equal(t, f.MetaIndexHandle, decoded.MetaIndexHandle)
	assert.Equal(t, f.IndexHandle, decoded.IndexHandle)
	assert.Equal(t, CurrentFormatVersion, decoded.FormatVersion)
}

// Once a write fails, the writer latches that error: further Add calls
// become no-ops and Finish returns the original error, per spec §4.1's
// error-latching rule.
func TestWriter_LatchesFirstError(t *testing.T) {
	main, subs := newOpenedFiles(1)
	w, err := NewWriter(main, testOptions(1), func(i int) (WritableFile, error) { return subs[i], nil })
	require.NoError(t, err)

	require.NoError(t, w.Add(keys.Make([]byte("a"), 1, keys.TypeValue), []byte("v")))

	// A splitter that fails deterministically on the next value, to
	// exercise the failure path without needing real file I/O errors.
	w.opts.Splitter = failingSplitter{}
	addErr := w.Add(keys.Make([]byte("b"), 1, keys.TypeValue), []byte("v"))
	require.Error(t, addErr)

	// A further Add is a no-op returning the same latched error.
	sameErr := w.Add(keys.Make([]byte("c"), 1, keys.TypeValue), []byte("v"))
	assert.Equal(t, addErr, sameErr)

	finishErr := w.Finish()
	assert.Equal(t, addErr, finishErr)
}

type failingSplitter struct{}

func (failingSplitter) Name() string { return "failing" }
func (failingSplitter) Split([]byte) ([][]byte, error) {
	return nil, errs.New(errs.KindCorruption, "forced split failure")
}
func (failingSplitter) Stitch(map[int][]byte, int) ([]byte, error) {
	return nil, errs.New(errs.KindCorruption, "forced stitch failure")
}
