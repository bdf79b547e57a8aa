// Package db ties the lower-level packages into the engine-facing
// Open/Put/Get/Delete/flush/compaction surface spec §6 describes as the
// store's on-disk layout and recognized options. Grounded in the
// teacher's top-level LSM type (And-fish-kvDB/lsm.go), which owns a
// memTable plus a levelManager and drives flush/compaction the same
// way: a foreground write path that rotates a full memtable into an
// immutable one, and a background path that turns immutable memtables
// and overlapping files into new on-disk tables.
package db

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/vidardb/vidardb-engine/compaction"
	"github.com/vidardb/vidardb-engine/errs"
	"github.com/vidardb/vidardb-engine/internal/cache"
	"github.com/vidardb/vidardb-engine/internal/comparator"
	"github.com/vidardb/vidardb-engine/internal/keys"
	"github.com/vidardb/vidardb-engine/internal/memtable"
	"github.com/vidardb/vidardb-engine/table"
	"github.com/vidardb/vidardb-engine/version"
)

// DB is an open store: one mutable memtable, a version set tracking
// on-disk tables by level, and a shared block cache.
type DB struct {
	opt *Options
	cmp *comparator.InternalKeyComparator

	mu    sync.RWMutex
	mem   *memtable.Table
	seq   uint64
	vset  *version.Set
	cache *cache.Cache
}

// Open creates (if CreateIfMissing-equivalent, which this engine always
// does, matching the teacher's NewLSM which always creates WorkDir) or
// recovers a store rooted at opt.WorkDir.
func Open(opt *Options) (*DB, error) {
	opt = opt.withDefaults()
	if err := os.MkdirAll(opt.WorkDir, 0755); err != nil {
		return nil, errs.Wrap(errs.KindIOError, err, "create work dir")
	}
	cmp := comparator.NewInternalKeyComparator(opt.Comparator)
	d := &DB{
		opt:   opt,
		cmp:   cmp,
		mem:   memtable.New(cmp),
		vset:  version.NewSet(opt.WorkDir, cmp),
		cache: cache.New(opt.BlockCacheSize),
	}

	if _, err := os.Stat(filepath.Join(opt.WorkDir, "CURRENT")); err == nil {
		if err := d.vset.Recover(); err != nil {
			return nil, err
		}
		d.seq = d.vset.LastSequence()
	} else {
		if err := d.vset.Bootstrap(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *DB) nextSeq() uint64 {
	d.seq++
	return d.seq
}

// Put writes key/value at a freshly assigned sequence number, per spec
// §5's "writes receive sequence numbers in the order they are applied
// under the write mutex" guarantee.
func (d *DB) Put(key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	seq := d.nextSeq()
	d.mem.Put(keys.Make(key, seq, keys.TypeValue), value)
	if d.mem.ApproximateSize() >= d.opt.MemTableSize {
		return d.flushLocked()
	}
	return nil
}

// Delete writes a tombstone, per spec §3's Deletion value type.
func (d *DB) Delete(key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	seq := d.nextSeq()
	d.mem.Put(keys.Make(key, seq, keys.TypeDeletion), nil)
	if d.mem.ApproximateSize() >= d.opt.MemTableSize {
		return d.flushLocked()
	}
	return nil
}

// Get performs a point lookup visible at the current sequence, checking
// the mutable memtable first and then each level's tables from newest
// to oldest, mirroring the teacher's LSM.Get order (memtable, then
// levels) and spec §4.2's GetContext semantics.
func (d *DB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// A target trailer carrying the maximal sequence and value type sorts
	// before every real entry for the same user key, so the first btree
	// item at or after it is that key's newest version (this engine
	// keeps no pinned read snapshots, so "newest" is always the answer).
	probe := keys.Make(key, keys.MaxSequenceNumber, keys.TypeSingleDeletion)
	if foundKey, v, ok := d.mem.Get(probe); ok {
		uk, trailer := keys.Split(foundKey)
		if d.opt.Comparator.Compare(uk, key) == 0 {
			_, vt := keys.UnpackTrailer(trailer)
			if vt == keys.TypeDeletion || vt == keys.TypeSingleDeletion {
				return nil, errs.ErrNotFound
			}
			return v, nil
		}
	}

	cur := d.vset.Current()
	for level := 0; level < len(cur.Levels); level++ {
		for i := len(cur.Levels[level]) - 1; i >= 0; i-- {
			meta := cur.Levels[level][i]
			if d.opt.Comparator.Compare(key, keys.UserKey(meta.SmallestKey)) < 0 ||
				d.opt.Comparator.Compare(key, keys.UserKey(meta.LargestKey)) > 0 {
				continue
			}
			reader, err := d.openTable(meta)
			if err != nil {
				return nil, err
			}
			v, state, err := reader.Get(key, d.seq, nil)
			closeErr := reader.Close()
			if err != nil {
				return nil, err
			}
			if closeErr != nil {
				return nil, closeErr
			}
			switch state {
			case table.GetFound:
				return v, nil
			case table.GetDeleted:
				return nil, errs.ErrNotFound
			case table.GetCorrupt:
				return nil, errs.New(errs.KindCorruption, "corrupt table entry")
			}
		}
	}
	return nil, errs.ErrNotFound
}

func (d *DB) tablePath(number uint64) string {
	return filepath.Join(d.opt.WorkDir, formatTableName(number))
}

func formatTableName(number uint64) string {
	const digits = "0123456789"
	buf := [6]byte{'0', '0', '0', '0', '0', '0'}
	i := len(buf)
	for n := number; n > 0 && i > 0; n /= 10 {
		i--
		buf[i] = digits[n%10]
	}
	return string(buf[:]) + ".sst"
}

func (d *DB) openTable(meta *version.FileMetadata) (*table.Reader, error) {
	mainPath := d.tablePath(meta.Number)
	f, err := os.Open(mainPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindIOError, err, "open table main file")
	}
	rf := osReadableFile{f}
	return table.OpenReader(rf, meta.Number, d.tableOptions(), d.cache, func(i int) (table.ReadableFile, error) {
		sf, err := os.Open(table.SubFileName(mainPath, i))
		if err != nil {
			return nil, errs.Wrap(errs.KindIOError, err, "open table sub-column file")
		}
		return osReadableFile{sf}, nil
	})
}

func (d *DB) tableOptions() table.Options {
	return table.Options{
		Comparator:           d.cmp,
		Splitter:             d.opt.Splitter,
		ColumnCount:          d.opt.ColumnCount,
		BlockSize:            d.opt.BlockSize,
		BlockRestartInterval: d.opt.BlockRestartInterval,
		Compression:          d.opt.Compression,
	}
}

// flushLocked writes the current memtable to a new L0 table and installs
// the resulting version edit, then clears the memtable for new writes.
// Caller must hold d.mu.
func (d *DB) flushLocked() error {
	if d.mem.NumEntries() == 0 {
		return nil
	}
	number := d.vset.NewFileNumber()
	mainPath := d.tablePath(number)

	mainFile, err := os.Create(mainPath)
	if err != nil {
		return errs.Wrap(errs.KindIOError, err, "create flush output main file")
	}

	var subFiles []*os.File
	writer, err := table.NewWriter(osWritableFile{mainFile}, d.tableOptions(), func(i int) (table.WritableFile, error) {
		sf, err := os.Create(table.SubFileName(mainPath, i))
		if err != nil {
			return nil, errs.Wrap(errs.KindIOError, err, "create flush output sub-column file")
		}
		subFiles = append(subFiles, sf)
		return osWritableFile{sf}, nil
	})
	if err != nil {
		return err
	}

	it := d.mem.NewIterator()
	var smallest, largest []byte
	for ; it.Valid(); it.Next() {
		if smallest == nil {
			smallest = append([]byte{}, it.Key()...)
		}
		largest = append(largest[:0], it.Key()...)
		if err := writer.Add(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	if err := writer.Finish(); err != nil {
		return err
	}

	edit := &version.Edit{}
	edit.SetLastSequence(d.seq)
	edit.AddFile(version.FileMetadata{
		Number:      number,
		Level:       0,
		FileSize:    writer.FileSize(),
		SmallestKey: smallest,
		LargestKey:  largest,
	})
	if err := d.vset.LogAndApply(edit); err != nil {
		return err
	}

	d.mem = memtable.New(d.cmp)
	d.opt.Logger.Infof("flushed memtable to table %d (%d entries)", number, writer.NumEntries())
	return nil
}

// Flush forces the current memtable to disk even if it has not reached
// MemTableSize, mirroring a manual flush call on the teacher's LSM.
func (d *DB) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushLocked()
}

// CompactRange runs one compaction of level into level+1 for every file
// currently resident at level, the simplest picker that still exercises
// the compaction job end to end (spec §4.3 assumes an external picker
// supplies input levels; this is that picker's minimal form).
func (d *DB) CompactRange(level int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if level+1 >= len(d.vset.Current().Levels) {
		return errs.New(errs.KindInvalidArgument, "cannot compact the bottommost level further")
	}

	cur := d.vset.Current()
	inputs := cur.Levels[level]
	if len(inputs) == 0 {
		return nil
	}
	outputs := cur.Levels[level+1]

	var sources []compaction.Source
	var readers []*table.Reader
	for _, meta := range append(append([]*version.FileMetadata{}, inputs...), outputs...) {
		r, err := d.openTable(meta)
		if err != nil {
			return err
		}
		readers = append(readers, r)
		sources = append(sources, newTableSource(r))
	}
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()

	bottommost := level+1 >= len(cur.Levels)-1 || allEmptyBelow(cur, level+1)
	job := &compaction.Job{
		Comparator:      d.cmp,
		Sources:         sources,
		Bottommost:      bottommost,
		InputLargestSeq: d.seq,
	}
	rows, stats, err := job.Run()
	if err != nil {
		return err
	}
	d.opt.Logger.Infof("compaction L%d: %d in, %d out, %d corrupt", level, stats.NumInputRecords, stats.NumOutputRecords, stats.NumCorruptKeys)

	edit := &version.Edit{}
	for _, meta := range inputs {
		edit.DeleteFile(level, meta.Number)
	}
	for _, meta := range outputs {
		edit.DeleteFile(level+1, meta.Number)
	}

	if len(rows) > 0 {
		number := d.vset.NewFileNumber()
		mainPath := d.tablePath(number)
		mainFile, err := os.Create(mainPath)
		if err != nil {
			return errs.Wrap(errs.KindIOError, err, "create compaction output main file")
		}
		writer, err := table.NewWriter(osWritableFile{mainFile}, d.tableOptions(), func(i int) (table.WritableFile, error) {
			sf, err := os.Create(table.SubFileName(mainPath, i))
			if err != nil {
				return nil, errs.Wrap(errs.KindIOError, err, "create compaction output sub-column file")
			}
			return osWritableFile{sf}, nil
		})
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := writer.Add(row.Key, row.Value); err != nil {
				return err
			}
		}
		if err := writer.Finish(); err != nil {
			return err
		}
		edit.AddFile(version.FileMetadata{
			Number:      number,
			Level:       level + 1,
			FileSize:    writer.FileSize(),
			SmallestKey: rows[0].Key,
			LargestKey:  rows[len(rows)-1].Key,
		})
	}
	return d.vset.LogAndApply(edit)
}

// MaybeTriggerCompaction runs CompactRange on level 0 once it has
// accumulated NumLevelZeroTables files, then walks deeper levels whose
// size exceeds ComputeLevelTargets' budget, mirroring the teacher's
// levelManager.runCompacter trigger check (And-fish-kvDB/lsmT/compact.go)
// without its background-goroutine scheduling, which this engine leaves
// to the caller per spec §5's "background compaction ... run on a
// shared worker pool" (the pool itself is an external collaborator).
func (d *DB) MaybeTriggerCompaction() error {
	d.mu.RLock()
	cur := d.vset.Current()
	sizes := make([]int64, len(cur.Levels))
	for i, files := range cur.Levels {
		for _, f := range files {
			sizes[i] += int64(f.FileSize)
		}
	}
	l0Count := len(cur.Levels[0])
	d.mu.RUnlock()

	if !NeedsCompaction(d.opt, l0Count) {
		return nil
	}
	if err := d.CompactRange(0); err != nil {
		return err
	}

	targets := ComputeLevelTargets(d.opt, sizes)
	for level := targets.BaseLevel; level < len(sizes)-1; level++ {
		if sizes[level] > targets.TargetSize[level] {
			if err := d.CompactRange(level); err != nil {
				return err
			}
		}
	}
	return nil
}

func allEmptyBelow(v *version.Version, level int) bool {
	for l := level + 1; l < len(v.Levels); l++ {
		if len(v.Levels[l]) > 0 {
			return false
		}
	}
	return true
}

// tableSource adapts a table.Iterator (key()/value() with a fallible
// Value()) into compaction.Source, which wants an eager, errorless
// Value() -- materializing eagerly here keeps the compaction job's
// merge loop free of per-step error plumbing for the common case.
type tableSource struct {
	it *table.Iterator
}

func newTableSource(r *table.Reader) tableSource {
	it := r.NewIterator(nil)
	it.SeekToFirst()
	return tableSource{it: it}
}

func (s tableSource) Valid() bool { return s.it.Valid() }
func (s tableSource) Key() []byte { return s.it.Key() }
func (s tableSource) Value() []byte {
	v, err := s.it.Value()
	if err != nil {
		return nil
	}
	return v
}
func (s tableSource) Next() { s.it.Next() }
func (s tableSource) Err() error { return s.it.Err() }

func (d *DB) Close() error {
	return d.vset.Close()
}

type osReadableFile struct{ f *os.File }

func (r osReadableFile) ReadAt(p []byte, off int64) (int, error) { return r.f.ReadAt(p, off) }
func (r osReadableFile) Size() int64 {
	st, err := r.f.Stat()
	if err != nil {
		return 0
	}
	return st.Size()
}
func (r osReadableFile) Close() error { return r.f.Close() }

type osWritableFile struct{ f *os.File }

func (w osWritableFile) Write(p []byte) (int, error) { return w.f.Write(p) }
func (w osWritableFile) Sync() error                 { return w.f.Sync() }
func (w osWritableFile) Close() error                { return w.f.Close() }
