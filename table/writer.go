package table

import (
	"encoding/binary"
	"io"

	"github.com/vidardb/vidardb-engine/errs"
	"github.com/vidardb/vidardb-engine/internal/block"
	"github.com/vidardb/vidardb-engine/internal/comparator"
	"github.com/vidardb/vidardb-engine/internal/compress"
	"github.com/vidardb/vidardb-engine/internal/splitter"
)

// WritableFile is the minimal file capability the writer needs; real
// callers hand in an *os.File, tests hand in an in-memory buffer.
type WritableFile interface {
	io.Writer
	Sync() error
	Close() error
}

// Options configures a table Writer and must be reproduced identically
// (comparator, splitter, column count) to read the file back correctly.
// The comparator and splitter names are written to the properties block;
// OpenReader does not compare them with the Options it is given.
type Options struct {
	Comparator          *comparator.InternalKeyComparator
	Splitter            splitter.Splitter
	ColumnCount         int
	BlockSize           int
	BlockRestartInterval int
	Compression         compress.Type
	ColumnFamilyID      uint64
	ColumnFamilyName    string
}

func (o Options) withDefaults() Options {
	if o.BlockSize <= 0 {
		o.BlockSize = 4096
	}
	if o.BlockRestartInterval <= 0 {
		o.BlockRestartInterval = 16
	}
	if o.Comparator == nil {
		o.Comparator = comparator.NewInternalKeyComparator(comparator.Bytewise{})
	}
	if o.Splitter == nil {
		o.Splitter = splitter.LengthPrefixed{ColumnCount: o.ColumnCount}
	}
	if o.ColumnFamilyName == "" {
		o.ColumnFamilyName = "default"
	}
	return o
}

type subColumnWriter struct {
	file         WritableFile
	dataBlock    *block.Builder
	indexBuilder *block.IndexBuilder
	offset       uint64
	lastKey      []byte
	pendingFirst bool
	compression  compress.Type
}

func newSubColumnWriter(file WritableFile, opts Options) *subColumnWriter {
	return &subColumnWriter{
		file:         file,
		dataBlock:    block.NewBuilder(opts.BlockRestartInterval),
		indexBuilder: block.NewIndexBuilder(comparator.Bytewise{}),
		compression:  opts.Compression,
	}
}

func (w *subColumnWriter) add(rowKey, value []byte) error {
	if len(w.lastKey) > 0 {
		w.indexBuilder.OnKeyAdded(rowKey)
	}
	w.dataBlock.Add(rowKey, value)
	w.lastKey = append(w.lastKey[:0], rowKey...)
	if w.dataBlock.CurrentSizeEstimate() >= 4096 {
		return w.flush()
	}
	return nil
}

func (w *subColumnWriter) flush() error {
	if w.dataBlock.Empty() {
		return nil
	}
	raw := w.dataBlock.Finish()
	framed, _ := block.WriteBlock(raw, w.compression)
	handle := block.Handle{Offset: w.offset, Size: uint64(len(framed))}
	if _, err := w.file.Write(framed); err != nil {
		return errs.Wrap(errs.KindIOError, err, "write sub-column data block")
	}
	w.offset += uint64(len(framed))
	w.indexBuilder.AddEntry(w.lastKey, handle)
	w.dataBlock.Reset()
	return nil
}

func (w *subColumnWriter) finish() (fileSize uint64, err error) {
	if err = w.flush(); err != nil {
		return 0, err
	}
	indexRaw := w.indexBuilder.Finish()
	indexFramed, _ := block.WriteIndexBlock(indexRaw)
	indexHandle := block.Handle{Offset: w.offset, Size: uint64(len(indexFramed))}
	if _, err = w.file.Write(indexFramed); err != nil {
		return 0, errs.Wrap(errs.KindIOError, err, "write sub-column index block")
	}
	w.offset += uint64(len(indexFramed))

	footer := SubFooter{IndexHandle: indexHandle}.EncodeTo()
	if _, err = w.file.Write(footer); err != nil {
		return 0, errs.Wrap(errs.KindIOError, err, "write sub-column footer")
	}
	w.offset += uint64(len(footer))
	if err = w.file.Sync(); err != nil {
		return 0, errs.Wrap(errs.KindIOError, err, "sync sub-column file")
	}
	if err = w.file.Close(); err != nil {
		return 0, errs.Wrap(errs.KindIOError, err, "close sub-column file")
	}
	return w.offset, nil
}

// Writer builds one main file plus opts.ColumnCount sub-column files in
// lockstep, row-ordinal aligned, following
// original_source/table/column_table_builder.cc's Add/AddInSubcolumnBuilders/Finish.
type Writer struct {
	opts         Options
	mainFile     WritableFile
	dataBlock    *block.Builder
	indexBuilder *block.IndexBuilder
	subWriters   []*subColumnWriter

	offset         uint64
	lastKey        []byte
	hasLast        bool
	rowOrdinal     uint64
	numEntries     uint64
	rawKeySize     uint64
	rawValSize     uint64
	closed         bool
	firstErr       error
	blockFirstKey  []byte
	blockSummaries []BlockRange
	dataBlockCount uint64
}

// fail latches err as the writer's first error if one isn't already
// latched, per spec §4.1: any I/O failure latches the first error and
// every later call becomes a no-op that returns it.
func (w *Writer) fail(err error) error {
	if w.firstErr == nil {
		w.firstErr = err
	}
	return w.firstErr
}

// NewWriter opens mainFile plus one sub-column file per column (obtained
// via openSub, named with SubFileName) and returns a ready Writer.
func NewWriter(mainFile WritableFile, opts Options, openSub func(columnIndex int) (WritableFile, error)) (*Writer, error) {
	opts = opts.withDefaults()
	w := &Writer{
		opts:         opts,
		mainFile:     mainFile,
		dataBlock:    block.NewBuilder(opts.BlockRestartInterval),
		indexBuilder: block.NewIndexBuilder(opts.Comparator),
	}
	for i := 0; i < opts.ColumnCount; i++ {
		f, err := openSub(i)
		if err != nil {
			return nil, err
		}
		w.subWriters = append(w.subWriters, newSubColumnWriter(f, opts))
	}
	return w, nil
}

// Add appends one row. key must be a well-formed internal key (spec §3)
// and must sort after every previously added key under opts.Comparator.
func (w *Writer) Add(internalKey, value []byte) error {
	if w.firstErr != nil {
		return w.firstErr
	}
	if w.closed {
		return errs.New(errs.KindInvalidArgument, "Add after Finish")
	}
	if w.hasLast {
		w.indexBuilder.OnKeyAdded(internalKey)
	}

	if w.blockFirstKey == nil {
		w.blockFirstKey = append([]byte{}, internalKey...)
	}

	var rowKey [8]byte
	binary.BigEndian.PutUint64(rowKey[:], w.rowOrdinal)
	w.dataBlock.Add(internalKey, rowKey[:])
	w.rawKeySize += uint64(len(internalKey))
	w.rawValSize += 8

	cols, err := w.opts.Splitter.Split(value)
	if err != nil {
		return w.fail(errs.Wrap(errs.KindCorruption, err, "split value into columns"))
	}
	for i, sw := range w.subWriters {
		var col []byte
		if i < len(cols) {
			col = cols[i]
		}
		if err := sw.add(rowKey[:], col); err != nil {
			return w.fail(err)
		}
	}

	w.lastKey = append(w.lastKey[:0], internalKey...)
	w.hasLast = true
	w.rowOrdinal++
	w.numEntries++

	if w.dataBlock.CurrentSizeEstimate() >= w.opts.BlockSize {
		if err := w.flushDataBlock(); err != nil {
			return w.fail(err)
		}
	}
	return nil
}

func (w *Writer) flushDataBlock() error {
	if w.dataBlock.Empty() {
		return nil
	}
	raw := w.dataBlock.Finish()
	framed, _ := block.WriteBlock(raw, w.opts.Compression)
	handle := block.Handle{Offset: w.offset, Size: uint64(len(framed))}
	if _, err := w.mainFile.Write(framed); err != nil {
		return errs.Wrap(errs.KindIOError, err, "write data block")
	}
	w.offset += uint64(len(framed))
	w.indexBuilder.AddEntry(w.lastKey, handle)
	w.blockSummaries = append(w.blockSummaries, BlockRange{
		Offset: handle.Offset,
		MinKey: w.blockFirstKey,
		MaxKey: append([]byte{}, w.lastKey...),
	})
	w.blockFirstKey = nil
	w.dataBlockCount++
	w.dataBlock.Reset()
	return nil
}

func (w *Writer) writeRawBlock(raw []byte) (block.Handle, error) {
	framed, _ := block.WriteIndexBlock(raw)
	h := block.Handle{Offset: w.offset, Size: uint64(len(framed))}
	if _, err := w.mainFile.Write(framed); err != nil {
		return block.Handle{}, errs.Wrap(errs.KindIOError, err, "write block")
	}
	w.offset += uint64(len(framed))
	return h, nil
}

// Finish closes out every sub-column file, then writes the main file's
// meta-column, properties, block-summary, index and meta-index blocks and
// its footer,
// in that order -- matching the dependency order in
// original_source's Finish() (sub-builders finish first because the
// main file's meta-column block records their final sizes).
func (w *Writer) Finish() error {
	if w.firstErr != nil {
		return w.firstErr
	}
	if w.closed {
		return errs.New(errs.KindInvalidArgument, "Finish called twice")
	}
	w.closed = true

	if err := w.flushDataBlock(); err != nil {
		return w.fail(err)
	}

	columnFileSizes := make([]uint64, len(w.subWriters))
	for i, sw := range w.subWriters {
		sz, err := sw.finish()
		if err != nil {
			return w.fail(err)
		}
		columnFileSizes[i] = sz
	}

	metaColumn := MetaColumn{IsMain: true, ColumnCount: uint64(len(w.subWriters)), ColumnFileSizes: columnFileSizes}
	metaColumnHandle, err := w.writeRawBlock(metaColumn.Encode())
	if err != nil {
		return w.fail(err)
	}

	props := Properties{
		NumEntries:       w.numEntries,
		RawKeySize:       w.rawKeySize,
		RawValueSize:     w.rawValSize,
		DataSize:         w.offset,
		ColumnCount:      uint64(len(w.subWriters)),
		DataBlockCount:   w.dataBlockCount,
		ColumnFamilyID:   w.opts.ColumnFamilyID,
		ColumnFamilyName: w.opts.ColumnFamilyName,
		ComparatorName:   w.opts.Comparator.Name(),
		SplitterName:     w.opts.Splitter.Name(),
		CompressionName:  compressionName(w.opts.Compression),
	}
	propsHandle, err := w.writeRawBlock(props.Encode())
	if err != nil {
		return w.fail(err)
	}

	blockSummaryHandle, err := w.writeRawBlock(encodeBlockSummary(w.blockSummaries))
	if err != nil {
		return w.fail(err)
	}

	indexRaw := w.indexBuilder.Finish()
	indexFramed, _ := block.WriteIndexBlock(indexRaw)
	indexHandle := block.Handle{Offset: w.offset, Size: uint64(len(indexFramed))}
	if _, err := w.mainFile.Write(indexFramed); err != nil {
		return w.fail(errs.Wrap(errs.KindIOError, err, "write primary index block"))
	}
	w.offset += uint64(len(indexFramed))

	metaIndex := block.NewBuilder(1)
	metaIndex.Add([]byte("vidardb.blocksummary"), blockSummaryHandle.EncodeTo(nil))
	metaIndex.Add([]byte("vidardb.metacolumn"), metaColumnHandle.EncodeTo(nil))
	metaIndex.Add([]byte("vidardb.properties"), propsHandle.EncodeTo(nil))
	metaIndexHandle, err := w.writeRawBlock(metaIndex.Finish())
	if err != nil {
		return w.fail(err)
	}

	footer := Footer{MetaIndexHandle: metaIndexHandle, IndexHandle: indexHandle, FormatVersion: CurrentFormatVersion}.EncodeTo()
	if _, err := w.mainFile.Write(footer); err != nil {
		return w.fail(errs.Wrap(errs.KindIOError, err, "write footer"))
	}
	w.offset += uint64(len(footer))

	if err := w.mainFile.Sync(); err != nil {
		return w.fail(errs.Wrap(errs.KindIOError, err, "sync main file"))
	}
	if err := w.mainFile.Close(); err != nil {
		return w.fail(err)
	}
	return nil
}

// Abandon discards the writer without finishing; callers must still
// close/remove the underlying files themselves.
func (w *Writer) Abandon() { w.closed = true }

func (w *Writer) NumEntries() uint64 { return w.numEntries }
func (w *Writer) FileSize() uint64   { return w.offset }

func compressionName(t compress.Type) string {
	switch t {
	case compress.TypeNone:
		return "none"
	case compress.TypeSnappy:
		return "snappy"
	case compress.TypeZlib:
		return "zlib"
	case compress.TypeBZip2:
		return "bzip2"
	case compress.TypeLZ4:
		return "lz4"
	case compress.TypeLZ4HC:
		return "lz4hc"
	case compress.TypeXpress:
		return "xpress"
	case compress.TypeZSTDNotFinal:
		return "zstd"
	default:
		return "unknown"
	}
}
