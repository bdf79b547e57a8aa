package cache

import "container/list"

// segmentedLRU holds two tiers: probation (newly admitted) and protected
// (survived a second access). A probation victim is what Cache.set hands
// to the frequency-sketch tie-break against the window's own victim.
// Ported from the teacher's utils/cache/slru.go, generalized from a
// hardcoded 80/20 split to an explicit protected capacity.
type segmentedLRU struct {
	data                     map[uint64]*list.Element
	stageOneCap, stageTwoCap int
	stageOne, stageTwo       *list.List
}

const (
	stageOne = iota + 1
	stageTwo
)

func newSLRU(data map[uint64]*list.Element, stageOneCap, stageTwoCap int) *segmentedLRU {
	return &segmentedLRU{
		data:        data,
		stageOneCap: stageOneCap,
		stageTwoCap: stageTwoCap,
		stageOne:    list.New(),
		stageTwo:    list.New(),
	}
}

func (s *segmentedLRU) add(newitem storeItem) {
	newitem.stage = stageOne
	if s.stageOne.Len() < s.stageOneCap || s.Len() < s.stageOneCap+s.stageTwoCap {
		s.data[newitem.key] = s.stageOne.PushFront(&newitem)
		return
	}
	back := s.stageOne.Back()
	item := back.Value.(*storeItem)
	delete(s.data, item.key)
	*item = newitem
	s.data[item.key] = s.stageOne.PushFront(item)
}

func (s *segmentedLRU) get(v *list.Element) {
	item := v.Value.(*storeItem)
	if item.stage == stageTwo {
		s.stageTwo.MoveToFront(v)
		return
	}
	if s.stageTwo.Len() < s.stageTwoCap {
		s.stageOne.Remove(v)
		item.stage = stageTwo
		s.data[item.key] = s.stageTwo.PushFront(item)
		return
	}
	back := s.stageTwo.Back()
	bItem := back.Value.(*storeItem)
	*item, *bItem = *bItem, *item
	item.stage = stageOne
	bItem.stage = stageTwo
	s.data[item.key] = v
	s.data[bItem.key] = back
	s.stageOne.MoveToFront(v)
	s.stageTwo.MoveToFront(back)
}

func (s *segmentedLRU) Len() int {
	return s.stageOne.Len() + s.stageTwo.Len()
}

// victim returns the least-valuable entry in stage one, the candidate
// considered for eviction against an incoming window victim.
func (s *segmentedLRU) victim() *storeItem {
	if s.Len() < s.stageOneCap+s.stageTwoCap {
		return nil
	}
	v := s.stageOne.Back()
	return v.Value.(*storeItem)
}
