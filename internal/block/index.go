package block

import "github.com/vidardb/vidardb-engine/internal/compress"

// ShorteningComparator is the comparator capability block.IndexBuilder
// needs for separator shortening; satisfied by *comparator.InternalKeyComparator.
type ShorteningComparator interface {
	FindShortestSeparator(start, limit []byte) []byte
	FindShortSuccessor(key []byte) []byte
}

// IndexBuilder accumulates one sparse-index entry per finished data
// block, keyed on the shortest separator between that block's last key
// and the next block's first key. Grounded directly in
// original_source/table/column_table_builder.cc's ShortenedIndexBuilder,
// which always uses a restart interval of 1 since index blocks are
// binary-searched entry-by-entry rather than scanned.
type IndexBuilder struct {
	cmp           ShorteningComparator
	builder       *Builder
	lastKey       []byte
	pendingHandle Handle
	pending       bool
}

func NewIndexBuilder(cmp ShorteningComparator) *IndexBuilder {
	return &IndexBuilder{cmp: cmp, builder: NewBuilder(1)}
}

// AddEntry is called once a data block has been flushed at handle; the
// index entry itself is deferred until the next block's first key is
// known, so the separator can be shortened against it.
func (ib *IndexBuilder) AddEntry(lastKeyOfFinishedBlock []byte, handle Handle) {
	ib.lastKey = append(ib.lastKey[:0], lastKeyOfFinishedBlock...)
	ib.pendingHandle = handle
	ib.pending = true
}

// OnKeyAdded is called for every key added to the current (not yet
// flushed) data block, so the builder can resolve a pending index entry
// against the first such key of the new block.
func (ib *IndexBuilder) OnKeyAdded(key []byte) {
	if !ib.pending {
		return
	}
	sep := ib.cmp.FindShortestSeparator(append([]byte{}, ib.lastKey...), key)
	var handleBuf []byte
	handleBuf = ib.pendingHandle.EncodeTo(handleBuf)
	ib.builder.Add(sep, handleBuf)
	ib.pending = false
}

// Finish flushes any still-pending entry (the last data block has no
// following key, so its separator is a short successor instead) and
// returns the raw index block.
func (ib *IndexBuilder) Finish() []byte {
	if ib.pending {
		sep := ib.cmp.FindShortSuccessor(append([]byte{}, ib.lastKey...))
		var handleBuf []byte
		handleBuf = ib.pendingHandle.EncodeTo(handleBuf)
		ib.builder.Add(sep, handleBuf)
		ib.pending = false
	}
	return ib.builder.Finish()
}

func (ib *IndexBuilder) Empty() bool { return ib.builder.Empty() && !ib.pending }

// WriteIndexBlock is a convenience wrapper mirroring WriteBlock, used by
// the table writer for the primary index and meta-index blocks, which
// are never compressed (spec §4.1 treats them as control structures read
// on every open, not bulk data).
func WriteIndexBlock(raw []byte) ([]byte, compress.Type) {
	return WriteBlock(raw, compress.TypeNone)
}
