// Package merge implements the k-way merge iterator the compaction job
// runs over its input tables, grounded in the heap-merge shape every
// LSM engine in the pack uses internally (the teacher's utils.Iterator
// contract, And-fish-kvDB/utils/iterator.go) but built against this
// engine's own internal-key comparator instead of the teacher's skiplist
// iterator.
package merge

import (
	"container/heap"

	"github.com/vidardb/vidardb-engine/internal/comparator"
)

// Source is a single sorted input: a table iterator or a memtable
// iterator adapter, advanced by the merge heap.
type Source interface {
	Valid() bool
	Key() []byte
	Next()
	Err() error
}

type heapItem struct {
	src   Source
	index int
}

type sourceHeap struct {
	items []*heapItem
	cmp   *comparator.InternalKeyComparator
}

func (h *sourceHeap) Len() int { return len(h.items) }
func (h *sourceHeap) Less(i, j int) bool {
	return h.cmp.Compare(h.items[i].src.Key(), h.items[j].src.Key()) < 0
}
func (h *sourceHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *sourceHeap) Push(x interface{}) { h.items = append(h.items, x.(*heapItem)) }
func (h *sourceHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// Iterator produces the global sorted order across every input source,
// in internal-key order (user key ascending, sequence descending), so
// that for any user key, the newest version an input can offer always
// comes first -- the ordering the compaction job's tombstone and
// snapshot-visibility rules depend on.
type Iterator struct {
	cmp     *comparator.InternalKeyComparator
	h       *sourceHeap
	err     error
	started bool
}

func New(cmp *comparator.InternalKeyComparator, sources []Source) *Iterator {
	h := &sourceHeap{cmp: cmp}
	for _, s := range sources {
		if s.Valid() {
			h.items = append(h.items, &heapItem{src: s})
		}
	}
	heap.Init(h)
	return &Iterator{cmp: cmp, h: h}
}

func (it *Iterator) Valid() bool { return it.err == nil && it.h.Len() > 0 }
func (it *Iterator) Err() error  { return it.err }

// Key returns the current minimum internal key across all live sources.
func (it *Iterator) Key() []byte {
	return it.h.items[0].src.Key()
}

// Source returns the input Source that produced the current key, so
// callers needing the value (not every internal key needs the value
// materialized, e.g. skipped shadowed versions) can fetch it lazily.
func (it *Iterator) Source() Source {
	return it.h.items[0].src
}

// Next advances past the current minimum. Callers that want every
// source positioned on distinct keys (standard merge semantics) call
// this once per Key(); callers implementing multi-version collapsing
// call it once per physical entry instead.
func (it *Iterator) Next() {
	top := it.h.items[0]
	top.src.Next()
	if err := top.src.Err(); err != nil {
		it.err = err
		return
	}
	if top.src.Valid() {
		heap.Fix(it.h, 0)
	} else {
		heap.Pop(it.h)
	}
}
