// Package cache implements the block cache the table reader consults on
// every block fetch (spec §4.1/§4.2 treat the cache as an injectable
// collaborator; this package gives that collaborator a concrete, testable
// implementation). Adapted from the teacher's utils/cache package
// (And-fish-kvDB/utils/cache/{cache.go,slru.go}), a Window-TinyLFU design:
// a small windowed LRU catches recently-admitted one-hit blocks, a
// segmented LRU (probation + protected) holds the working set, a bloom
// filter gates admission, and a count-min sketch breaks ties on eviction.
package cache

import "container/list"

type lruItem struct {
	key   uint64
	value interface{}
}

// windowLRU is the small admission window ahead of the segmented LRU.
type windowLRU struct {
	data map[uint64]*list.Element
	cap  int
	ll   *list.List
}

func newWindowLRU(capacity int, data map[uint64]*list.Element) *windowLRU {
	return &windowLRU{data: data, cap: capacity, ll: list.New()}
}

// add inserts key/value into the window, evicting and returning the
// least-recently-used victim when the window is full.
func (w *windowLRU) add(item lruItem) (evicted lruItem, ok bool) {
	if w.ll.Len() < w.cap {
		w.data[item.key] = w.ll.PushFront(&item)
		return lruItem{}, false
	}
	back := w.ll.Back()
	evictedItem := back.Value.(*lruItem)
	delete(w.data, evictedItem.key)
	evicted = *evictedItem
	w.ll.Remove(back)

	*evictedItem = item
	w.data[item.key] = w.ll.PushFront(evictedItem)
	return evicted, true
}

func (w *windowLRU) get(el *list.Element) {
	w.ll.MoveToFront(el)
}
