package cache

import (
	"container/list"
	"sync"

	"github.com/cespare/xxhash/v2"
)

type storeItem struct {
	stage int
	key   uint64
	value interface{}
}

// Cache is a fixed-capacity Window-TinyLFU block cache: a 1% window
// ahead of an 80/20 protected/probation segmented LRU, with a bloom
// filter gating admission and a count-min sketch breaking eviction ties.
// Split ratios match the teacher's NewCache (And-fish-kvDB/utils/cache/cache.go).
type Cache struct {
	mu   sync.Mutex
	lru  *windowLRU
	slru *segmentedLRU
	door *door
	sketch *cmSketch
	data map[uint64]*list.Element

	additions int
	threshold int
}

// resetSampleFactor sets how many accesses the sketch ages over before
// its counters are halved and the admission filter cleared, matching the
// teacher's cs.Reset()/door.reset() aging cycle (And-fish-kvDB/utils/cache/cache.go).
const resetSampleFactor = 10

// New builds a cache sized to hold approximately capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	const lruPct = 1
	lruSize := (lruPct * capacity) / 100
	if lruSize < 1 {
		lruSize = 1
	}
	slruSize := capacity - lruSize
	if slruSize < 1 {
		slruSize = 1
	}
	slruStageOne := int(0.2 * float64(slruSize))
	if slruStageOne < 1 {
		slruStageOne = 1
	}

	data := make(map[uint64]*list.Element, capacity)
	return &Cache{
		lru:       newWindowLRU(lruSize, data),
		slru:      newSLRU(data, slruStageOne, slruSize-slruStageOne),
		door:      newDoor(capacity, 10),
		sketch:    newCmSketch(int64(capacity)),
		data:      data,
		threshold: capacity * resetSampleFactor,
	}
}

func keyHash(key interface{}) uint64 {
	switch k := key.(type) {
	case uint64:
		return k
	case string:
		return xxhash.Sum64String(k)
	case []byte:
		return xxhash.Sum64(k)
	default:
		return 0
	}
}

// BlockKey derives the cache key for a (file, offset) pair, the unit the
// table reader caches at.
func BlockKey(fileID, offset uint64) uint64 {
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(fileID >> (8 * i))
		buf[8+i] = byte(offset >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

func (c *Cache) Get(key interface{}) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(keyHash(key))
}

func (c *Cache) get(hashed uint64) (interface{}, bool) {
	c.additions++
	if c.additions >= c.threshold {
		c.sketch.Reset()
		c.door.reset()
		c.additions = 0
	}

	c.door.set(hashed)
	val, ok := c.data[hashed]
	if !ok {
		c.sketch.Increment(hashed)
		return nil, false
	}
	item := val.Value
	c.sketch.Increment(hashed)
	if it, ok := item.(*lruItem); ok {
		c.lru.get(val)
		return it.value, true
	}
	c.slru.get(val)
	return item.(*storeItem).value, true
}

func (c *Cache) Set(key, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(keyHash(key), value)
}

func (c *Cache) set(hashed uint64, value interface{}) {
	if _, ok := c.data[hashed]; ok {
		el := c.data[hashed]
		switch it := el.Value.(type) {
		case *lruItem:
			it.value = value
		case *storeItem:
			it.value = value
		}
		return
	}

	victim, evicted := c.lru.add(lruItem{key: hashed, value: value})
	if !evicted {
		return
	}
	c.admit(victim)
}

func (c *Cache) admit(candidate lruItem) {
	if c.slru.Len() < c.slru.stageOneCap+c.slru.stageTwoCap {
		c.slru.add(storeItem{key: candidate.key, value: candidate.value})
		return
	}
	victim := c.slru.victim()
	if victim == nil {
		c.slru.add(storeItem{key: candidate.key, value: candidate.value})
		return
	}
	if !c.door.allow(candidate.key) {
		return
	}
	candidateCount := c.sketch.Estimate(candidate.key)
	victimCount := c.sketch.Estimate(victim.key)
	if candidateCount > victimCount {
		c.slru.add(storeItem{key: candidate.key, value: candidate.value})
	}
}

func (c *Cache) Del(key interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hashed := keyHash(key)
	el, ok := c.data[hashed]
	if !ok {
		return
	}
	delete(c.data, hashed)
	switch it := el.Value.(type) {
	case *lruItem:
		c.lru.ll.Remove(el)
		_ = it
	case *storeItem:
		if it.stage == stageTwo {
			c.slru.stageTwo.Remove(el)
		} else {
			c.slru.stageOne.Remove(el)
		}
	}
}
