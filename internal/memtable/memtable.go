// Package memtable provides the mutable, in-memory table a store writes
// into before it is flushed to an on-disk table. Grounded in the
// teacher's memTable (And-fish-kvDB/lsmT/memtable.go), which pairs a WAL
// with an in-memory sorted structure (there, a skiplist). This engine's
// retrieval pack carries no skiplist package, but cockroachdb-cockroach
// (also in the pack) keeps its in-memory ordered indexes on
// github.com/google/btree, so the sorted structure here is a btree
// keyed by internal-key ordering instead of a hand-rolled skiplist.
package memtable

import (
	"sync"

	"github.com/google/btree"

	"github.com/vidardb/vidardb-engine/internal/comparator"
)

const btreeDegree = 8

// entry is one btree item: an internal key plus its value, ordered by
// the store's InternalKeyComparator rather than btree's default Less.
type entry struct {
	key   []byte
	value []byte
	cmp   *comparator.InternalKeyComparator
}

func (e *entry) Less(other btree.Item) bool {
	o := other.(*entry)
	return e.cmp.Compare(e.key, o.key) < 0
}

// Table is a mutable, sorted, in-memory table of internal keys to
// values. Its Iterator implements both merge.Source and compaction.Source
// so a live memtable can be merged or flushed through the same code paths
// as an on-disk table, mirroring the teacher's memTable.Get/sl.Add shape.
type Table struct {
	mu         sync.RWMutex
	cmp        *comparator.InternalKeyComparator
	data       *btree.BTree
	size       int64
	numEntries int
}

func New(cmp *comparator.InternalKeyComparator) *Table {
	return &Table{cmp: cmp, data: btree.New(btreeDegree)}
}

// Put inserts or overwrites internalKey's value. Internal keys already
// carry a sequence number, so a Put for a previously-deleted or
// previously-written user key at a new sequence is simply a new,
// distinct btree item -- exactly how the teacher's skiplist.Add treats
// every versioned key.
func (t *Table) Put(internalKey, value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &entry{key: append([]byte{}, internalKey...), value: append([]byte{}, value...), cmp: t.cmp}
	if old := t.data.ReplaceOrInsert(e); old != nil {
		t.size -= int64(len(old.(*entry).key) + len(old.(*entry).value))
	} else {
		t.numEntries++
	}
	t.size += int64(len(e.key) + len(e.value))
}

// ApproximateSize returns the table's estimated memory footprint, used
// to decide when a memtable is full (spec §4.2's MemTableSize knob).
func (t *Table) ApproximateSize() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

func (t *Table) NumEntries() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.numEntries
}

// Iterator walks the table in internal-key order, the order both
// merge.Source and compaction.Source require of their inputs.
type Iterator struct {
	items []*entry
	pos   int
}

// NewIterator snapshots the table's current contents; later Puts do not
// affect an iterator already handed out, matching the teacher's
// convention of flushing an immutable memtable snapshot.
func (t *Table) NewIterator() *Iterator {
	t.mu.RLock()
	defer t.mu.RUnlock()
	items := make([]*entry, 0, t.numEntries)
	t.data.Ascend(func(i btree.Item) bool {
		items = append(items, i.(*entry))
		return true
	})
	return &Iterator{items: items}
}

func (it *Iterator) Valid() bool   { return it.pos < len(it.items) }
func (it *Iterator) Key() []byte   { return it.items[it.pos].key }
func (it *Iterator) Value() []byte { return it.items[it.pos].value }
func (it *Iterator) Next()         { it.pos++ }
func (it *Iterator) Err() error    { return nil }

// Get finds the newest version of userKey visible at or before the
// sequence encoded in target (an internal key built at the read
// snapshot's sequence with TypeSingleDeletion, the largest value type, so
// trailer ordering puts it at or before every real entry for that user
// key at or under that sequence).
// Because entries are ordered by internal key (user key ascending,
// sequence descending), the first entry at or past target is the newest
// visible version, the same search the teacher's memTable.Get delegates
// to its skiplist. The caller must inspect the returned key's value
// type, since a tombstone is a hit too.
func (t *Table) Get(target []byte) (foundKey, value []byte, found bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	probe := &entry{key: target, cmp: t.cmp}
	var result *entry
	t.data.AscendGreaterOrEqual(probe, func(i btree.Item) bool {
		result = i.(*entry)
		return false
	})
	if result == nil {
		return nil, nil, false
	}
	return result.key, result.value, true
}
