package table

import (
	"encoding/binary"
	"sync"

	"github.com/vidardb/vidardb-engine/errs"
	"github.com/vidardb/vidardb-engine/internal/block"
	"github.com/vidardb/vidardb-engine/internal/cache"
	"github.com/vidardb/vidardb-engine/internal/comparator"
	"github.com/vidardb/vidardb-engine/internal/keys"
	"github.com/vidardb/vidardb-engine/internal/splitter"
)

// ReadableFile is the minimal random-access file capability the reader
// needs; *os.File and an in-memory byte slice reader both satisfy it.
type ReadableFile interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
	Close() error
}

// GetState mirrors original_source/table/get_context.h's GetContext
// state machine, which a point lookup walks through as it scans
// candidate internal keys in descending-sequence order.
type GetState int

const (
	GetNotFound GetState = iota
	GetFound
	GetDeleted
	GetCorrupt
)

type subColumnReader struct {
	file   ReadableFile
	footer SubFooter
	index  *block.Reader
	blocks *cache.Cache
	fileID uint64
}

func openSubColumnReader(file ReadableFile, fileID uint64, blocks *cache.Cache) (*subColumnReader, error) {
	size := file.Size()
	if size < int64(subFooterEncodedLength) {
		return nil, errs.New(errs.KindCorruption, "sub-column file too small")
	}
	footerBuf := make([]byte, subFooterEncodedLength)
	if _, err := file.ReadAt(footerBuf, size-int64(subFooterEncodedLength)); err != nil {
		return nil, errs.Wrap(errs.KindIOError, err, "read sub-column footer")
	}
	footer, err := DecodeSubFooter(footerBuf)
	if err != nil {
		return nil, err
	}
	indexRaw, err := readBlock(file, footer.IndexHandle)
	if err != nil {
		return nil, err
	}
	idx, err := block.NewReader(indexRaw)
	if err != nil {
		return nil, err
	}
	return &subColumnReader{file: file, footer: footer, index: idx, blocks: blocks, fileID: fileID}, nil
}

// valueAt returns the column value stored for rowOrdinal, or (nil, false)
// if the sub-column file has no entry for that row. The writer stores an
// empty value for every column the splitter did not produce (spec §4.1's
// empty-value rule), so such a column comes back empty with ok true.
func (r *subColumnReader) valueAt(rowOrdinal uint64) ([]byte, bool, error) {
	var rowKey [8]byte
	binary.BigEndian.PutUint64(rowKey[:], rowOrdinal)

	it := r.index.NewIterator(comparator.Bytewise{})
	it.Seek(rowKey[:])
	if !it.Valid() {
		return nil, false, nil
	}
	handle, _, err := block.DecodeHandle(it.Value())
	if err != nil {
		return nil, false, err
	}
	raw, err := r.blockFor(handle)
	if err != nil {
		return nil, false, err
	}
	br, err := block.NewReader(raw)
	if err != nil {
		return nil, false, err
	}
	bit := br.NewIterator(comparator.Bytewise{})
	bit.Seek(rowKey[:])
	if !bit.Valid() || !bytesEqual(bit.Key(), rowKey[:]) {
		return nil, false, nil
	}
	val := append([]byte{}, bit.Value()...)
	return val, true, nil
}

func (r *subColumnReader) blockFor(handle block.Handle) ([]byte, error) {
	if r.blocks != nil {
		if v, ok := r.blocks.Get(cache.BlockKey(r.fileID, handle.Offset)); ok {
			return v.([]byte), nil
		}
	}
	raw, err := readBlock(r.file, handle)
	if err != nil {
		return nil, err
	}
	if r.blocks != nil {
		r.blocks.Set(cache.BlockKey(r.fileID, handle.Offset), raw)
	}
	return raw, nil
}

func (r *subColumnReader) Close() error { return r.file.Close() }

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func readBlock(file ReadableFile, handle block.Handle) ([]byte, error) {
	framed := make([]byte, handle.Size)
	if _, err := file.ReadAt(framed, int64(handle.Offset)); err != nil {
		return nil, errs.Wrap(errs.KindIOError, err, "read block")
	}
	return block.ReadBlock(framed)
}

// Reader opens a main file plus its sub-column files for point lookups
// and full scans with column projection.
type Reader struct {
	opts       Options
	file       ReadableFile
	fileID     uint64
	footer     Footer
	index      *block.Reader
	props      Properties
	metaColumn MetaColumn
	subs       []*subColumnReader
	blockCache *cache.Cache
	blockSummaries map[uint64]BlockRange

	mu sync.Mutex
}

// OpenReader parses the main file's control blocks and opens every
// sub-column file via openSub(columnIndex).
func OpenReader(file ReadableFile, fileID uint64, opts Options, blockCache *cache.Cache, openSub func(columnIndex int) (ReadableFile, error)) (*Reader, error) {
	opts = opts.withDefaults()
	size := file.Size()
	if size < int64(footerEncodedLength) {
		return nil, errs.New(errs.KindCorruption, "main file too small for footer")
	}
	footerBuf := make([]byte, footerEncodedLength)
	if _, err := file.ReadAt(footerBuf, size-int64(footerEncodedLength)); err != nil {
		return nil, errs.Wrap(errs.KindIOError, err, "read footer")
	}
	footer, err := DecodeFooter(footerBuf)
	if err != nil {
		return nil, err
	}

	metaIndexRaw, err := readBlock(file, footer.MetaIndexHandle)
	if err != nil {
		return nil, err
	}
	metaIndex, err := block.NewReader(metaIndexRaw)
	if err != nil {
		return nil, err
	}
	handles := map[string]block.Handle{}
	mit := metaIndex.NewIterator(comparator.Bytewise{})
	for mit.SeekToFirst(); mit.Valid(); mit.Next() {
		h, _, err := block.DecodeHandle(mit.Value())
		if err != nil {
			return nil, err
		}
		handles[string(mit.Key())] = h
	}

	var props Properties
	if h, ok := handles["vidardb.properties"]; ok {
		raw, err := readBlock(file, h)
		if err != nil {
			return nil, err
		}
		props, err = DecodeProperties(raw)
		if err != nil {
			return nil, err
		}
	}
	var metaColumn MetaColumn
	if h, ok := handles["vidardb.metacolumn"]; ok {
		raw, err := readBlock(file, h)
		if err != nil {
			return nil, err
		}
		metaColumn, err = DecodeMetaColumn(raw)
		if err != nil {
			return nil, err
		}
	}
	blockSummaries := map[uint64]BlockRange{}
	if h, ok := handles["vidardb.blocksummary"]; ok {
		raw, err := readBlock(file, h)
		if err != nil {
			return nil, err
		}
		entries, err := decodeBlockSummary(raw)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			blockSummaries[e.Offset] = e
		}
	}

	indexRaw, err := readBlock(file, footer.IndexHandle)
	if err != nil {
		return nil, err
	}
	idx, err := block.NewReader(indexRaw)
	if err != nil {
		return nil, err
	}

	r := &Reader{opts: opts, file: file, fileID: fileID, footer: footer, index: idx, props: props, metaColumn: metaColumn, blockCache: blockCache, blockSummaries: blockSummaries}
	for i := 0; i < int(metaColumn.ColumnCount); i++ {
		sf, err := openSub(i)
		if err != nil {
			return nil, err
		}
		sr, err := openSubColumnReader(sf, fileID*1000+uint64(i)+1, blockCache)
		if err != nil {
			return nil, err
		}
		r.subs = append(r.subs, sr)
	}
	return r, nil
}

func (r *Reader) Properties() Properties   { return r.props }
func (r *Reader) NumEntries() uint64       { return r.props.NumEntries }

func (r *Reader) blockFor(handle block.Handle) ([]byte, error) {
	if r.blockCache != nil {
		if v, ok := r.blockCache.Get(cache.BlockKey(r.fileID, handle.Offset)); ok {
			return v.([]byte), nil
		}
	}
	raw, err := readBlock(r.file, handle)
	if err != nil {
		return nil, err
	}
	if r.blockCache != nil {
		r.blockCache.Set(cache.BlockKey(r.fileID, handle.Offset), raw)
	}
	return raw, nil
}

// Get performs a point lookup for userKey visible at or before seq,
// projecting the requested columns (nil means every column). It mirrors
// GetContext's NotFound/Found/Deleted/Corrupt state machine from
// original_source/table/get_context.h.
func (r *Reader) Get(userKey []byte, seq uint64, wantColumns []int) (value []byte, state GetState, err error) {
	// The seek target must carry the maximum value type so it sorts at or
	// before every real entry sharing (userKey, seq) -- §3's trailer order
	// breaks ties by descending value_type, so a target built with a
	// lower type (e.g. TypeValue) would sort after a TypeSingleDeletion
	// entry at the same sequence and skip right over it.
	target := keys.Make(userKey, seq, keys.TypeSingleDeletion)

	it := r.index.NewIterator(r.opts.Comparator)
	it.Seek(target)
	if !it.Valid() {
		return nil, GetNotFound, it.Err()
	}
	handle, _, err := block.DecodeHandle(it.Value())
	if err != nil {
		return nil, GetCorrupt, err
	}
	raw, err := r.blockFor(handle)
	if err != nil {
		return nil, GetCorrupt, err
	}
	br, err := block.NewReader(raw)
	if err != nil {
		return nil, GetCorrupt, err
	}

	bit := br.NewIterator(r.opts.Comparator)
	bit.Seek(target)
	for ; bit.Valid(); bit.Next() {
		ik := bit.Key()
		if !keys.Valid(ik) {
			state = GetCorrupt
			continue
		}
		uk, trailer := keys.Split(ik)
		if r.opts.Comparator.User.Compare(uk, userKey) != 0 {
			break
		}
		ikSeq, vt := keys.UnpackTrailer(trailer)
		if ikSeq > seq {
			continue
		}
		if !keys.ValidValueType(vt) {
			return nil, GetCorrupt, nil
		}
		switch vt {
		case keys.TypeDeletion, keys.TypeSingleDeletion:
			return nil, GetDeleted, nil
		case keys.TypeValue:
			rowOrdinal := binary.BigEndian.Uint64(bit.Value())
			v, err := r.stitch(rowOrdinal, wantColumns)
			if err != nil {
				return nil, GetCorrupt, err
			}
			return v, GetFound, nil
		}
	}
	if state == GetCorrupt {
		return nil, GetCorrupt, nil
	}
	return nil, GetNotFound, bit.Err()
}

func (r *Reader) stitch(rowOrdinal uint64, wantColumns []int) ([]byte, error) {
	want := make(map[int]bool)
	if wantColumns == nil {
		for i := range r.subs {
			want[i] = true
		}
	} else {
		for _, c := range wantColumns {
			want[c] = true
		}
	}
	cols := make(map[int][]byte)
	for i, sr := range r.subs {
		if !want[i] {
			continue
		}
		v, ok, err := sr.valueAt(rowOrdinal)
		if err != nil {
			return nil, err
		}
		if ok {
			cols[i] = v
		}
	}
	return r.opts.Splitter.Stitch(cols, len(r.subs))
}

// Iterator walks every row of the main file in key order, stitching
// projected column values back together.
type Iterator struct {
	r        *Reader
	it       *block.Iterator
	idx      *block.Iterator
	want     []int
	err      error
	curValue []byte
}

func (r *Reader) NewIterator(wantColumns []int) *Iterator {
	return &Iterator{r: r, idx: r.index.NewIterator(r.opts.Comparator), want: wantColumns}
}

func (it *Iterator) SeekToFirst() {
	it.idx.SeekToFirst()
	it.loadBlockAndSeekFirst()
}

func (it *Iterator) loadBlockAndSeekFirst() {
	if !it.idx.Valid() {
		it.it = nil
		return
	}
	handle, _, err := block.DecodeHandle(it.idx.Value())
	if err != nil {
		it.err = err
		return
	}
	raw, err := it.r.blockFor(handle)
	if err != nil {
		it.err = err
		return
	}
	br, err := block.NewReader(raw)
	if err != nil {
		it.err = err
		return
	}
	it.it = br.NewIterator(it.r.opts.Comparator)
	it.it.SeekToFirst()
}

// Seek positions the iterator at the first entry with key >= target,
// per spec §4.2's "seek" operation on ordered iteration: binary-search
// the primary index for the candidate block, then seek within it.
func (it *Iterator) Seek(target []byte) {
	it.idx.Seek(target)
	if !it.idx.Valid() {
		it.it = nil
		it.err = it.idx.Err()
		return
	}
	handle, _, err := block.DecodeHandle(it.idx.Value())
	if err != nil {
		it.err = err
		return
	}
	raw, err := it.r.blockFor(handle)
	if err != nil {
		it.err = err
		return
	}
	br, err := block.NewReader(raw)
	if err != nil {
		it.err = err
		return
	}
	it.it = br.NewIterator(it.r.opts.Comparator)
	it.it.Seek(target)
	for !it.it.Valid() {
		it.idx.Next()
		if !it.idx.Valid() {
			it.it = nil
			return
		}
		it.loadBlockAndSeekFirst()
		if it.err != nil {
			return
		}
	}
}

func (it *Iterator) Valid() bool { return it.err == nil && it.it != nil && it.it.Valid() }
func (it *Iterator) Err() error  { return it.err }
func (it *Iterator) Key() []byte { return it.it.Key() }

// Value stitches and returns the projected value for the current row;
// it is computed lazily since most compaction/scan paths only need the
// key to decide tombstone handling.
func (it *Iterator) Value() ([]byte, error) {
	rowOrdinal := binary.BigEndian.Uint64(it.it.Value())
	return it.r.stitch(rowOrdinal, it.want)
}

func (it *Iterator) Next() {
	it.it.Next()
	for !it.it.Valid() {
		it.idx.Next()
		if !it.idx.Valid() {
			it.it = nil
			return
		}
		it.loadBlockAndSeekFirst()
		if it.err != nil {
			return
		}
	}
}

// RangeIterator walks the internal-key interval [lo, hi] (either bound
// nil means unbounded on that side), implementing spec §4.2's projected
// range query: candidate blocks come from the primary index, but each
// candidate is additionally checked against its recorded (min_key,
// max_key) summary before it is ever decompressed, so a block the
// shortened index separator alone could not rule out still gets skipped
// when its true range misses the interval.
type RangeIterator struct {
	r      *Reader
	lo, hi []byte
	idx    *block.Iterator
	it     *block.Iterator
	want   []int
	err    error
}

func (r *Reader) NewRangeIterator(lo, hi []byte, wantColumns []int) *RangeIterator {
	rit := &RangeIterator{r: r, lo: lo, hi: hi, idx: r.index.NewIterator(r.opts.Comparator), want: wantColumns}
	if lo != nil {
		rit.idx.Seek(lo)
	} else {
		rit.idx.SeekToFirst()
	}
	rit.loadNextQualifyingBlock()
	return rit
}

func (rit *RangeIterator) loadNextQualifyingBlock() {
	for {
		if !rit.idx.Valid() {
			rit.it = nil
			rit.err = rit.idx.Err()
			return
		}
		handle, _, err := block.DecodeHandle(rit.idx.Value())
		if err != nil {
			rit.err = err
			rit.it = nil
			return
		}
		if summary, ok := rit.r.blockSummaries[handle.Offset]; ok {
			if rit.hi != nil && rit.r.opts.Comparator.Compare(summary.MinKey, rit.hi) > 0 {
				// Blocks are visited in ascending key order, so once a
				// block starts past hi, nothing further can qualify.
				rit.it = nil
				return
			}
			if rit.lo != nil && rit.r.opts.Comparator.Compare(summary.MaxKey, rit.lo) < 0 {
				rit.idx.Next()
				continue
			}
		}
		raw, err := rit.r.blockFor(handle)
		if err != nil {
			rit.err = err
			rit.it = nil
			return
		}
		br, err := block.NewReader(raw)
		if err != nil {
			rit.err = err
			rit.it = nil
			return
		}
		bi := br.NewIterator(rit.r.opts.Comparator)
		if rit.lo != nil {
			bi.Seek(rit.lo)
		} else {
			bi.SeekToFirst()
		}
		if bi.Valid() {
			rit.it = bi
			return
		}
		rit.idx.Next()
	}
}

func (rit *RangeIterator) Valid() bool {
	if rit.err != nil || rit.it == nil || !rit.it.Valid() {
		return false
	}
	return rit.hi == nil || rit.r.opts.Comparator.Compare(rit.it.Key(), rit.hi) <= 0
}

func (rit *RangeIterator) Err() error  { return rit.err }
func (rit *RangeIterator) Key() []byte { return rit.it.Key() }

// Value stitches and returns only the projected columns for the current
// row, per §4.2's "reading only the sub-files in C".
func (rit *RangeIterator) Value() ([]byte, error) {
	rowOrdinal := binary.BigEndian.Uint64(rit.it.Value())
	return rit.r.stitch(rowOrdinal, rit.want)
}

func (rit *RangeIterator) Next() {
	rit.it.Next()
	if rit.it.Valid() {
		return
	}
	rit.idx.Next()
	rit.loadNextQualifyingBlock()
}

func (r *Reader) Close() error {
	for _, s := range r.subs {
		if err := s.Close(); err != nil {
			return err
		}
	}
	return r.file.Close()
}

var _ = splitter.LengthPrefixed{}
