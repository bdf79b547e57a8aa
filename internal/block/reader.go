package block

import (
	"encoding/binary"
	"sort"

	"github.com/vidardb/vidardb-engine/errs"
)

// Comparator is the subset of comparator.UserComparator a block reader
// needs; kept narrow here to avoid a package-layering cycle.
type Comparator interface {
	Compare(a, b []byte) int
}

// Reader decodes a raw (already decompressed, checksum-verified) block.
type Reader struct {
	data         []byte
	restarts     []uint32
	numRestarts  int
	restartsBase int
}

func NewReader(data []byte) (*Reader, error) {
	if len(data) < 4 {
		return nil, errs.New(errs.KindCorruption, "block shorter than restart count")
	}
	numRestarts := int(binary.LittleEndian.Uint32(data[len(data)-4:]))
	if numRestarts < 0 || len(data) < 4+4*numRestarts {
		return nil, errs.New(errs.KindCorruption, "block restart array out of range")
	}
	restartsBase := len(data) - 4 - 4*numRestarts
	restarts := make([]uint32, numRestarts)
	for i := 0; i < numRestarts; i++ {
		restarts[i] = binary.LittleEndian.Uint32(data[restartsBase+4*i:])
	}
	return &Reader{data: data, restarts: restarts, numRestarts: numRestarts, restartsBase: restartsBase}, nil
}

// entry decodes one shared-prefix entry at offset, returning its key,
// value and the offset immediately following it.
func (r *Reader) entry(offset int, prevKey []byte) (key, value []byte, next int, err error) {
	if offset >= r.restartsBase {
		return nil, nil, 0, errs.New(errs.KindCorruption, "block entry offset past data")
	}
	p := r.data[offset:r.restartsBase]
	shared, n1 := binary.Uvarint(p)
	if n1 <= 0 {
		return nil, nil, 0, errs.New(errs.KindCorruption, "bad shared length")
	}
	p = p[n1:]
	nonShared, n2 := binary.Uvarint(p)
	if n2 <= 0 {
		return nil, nil, 0, errs.New(errs.KindCorruption, "bad non-shared length")
	}
	p = p[n2:]
	valLen, n3 := binary.Uvarint(p)
	if n3 <= 0 {
		return nil, nil, 0, errs.New(errs.KindCorruption, "bad value length")
	}
	p = p[n3:]
	if uint64(len(p)) < nonShared+valLen {
		return nil, nil, 0, errs.New(errs.KindCorruption, "block entry truncated")
	}
	key = make([]byte, shared+nonShared)
	copy(key, prevKey[:shared])
	copy(key[shared:], p[:nonShared])
	value = p[nonShared : nonShared+valLen]
	consumed := n1 + n2 + n3 + int(nonShared) + int(valLen)
	return key, value, offset + consumed, nil
}

// Iterator walks a block's entries in order, seekable by restart point.
type Iterator struct {
	r       *Reader
	cmp     Comparator
	offset  int
	key     []byte
	value   []byte
	err     error
	valid   bool
}

func (r *Reader) NewIterator(cmp Comparator) *Iterator {
	return &Iterator{r: r, cmp: cmp}
}

func (it *Iterator) Valid() bool { return it.valid && it.err == nil }
func (it *Iterator) Err() error  { return it.err }
func (it *Iterator) Key() []byte { return it.key }
func (it *Iterator) Value() []byte { return it.value }

func (it *Iterator) SeekToFirst() {
	it.seekToRestart(0)
	it.Next()
}

func (it *Iterator) seekToRestart(index int) {
	it.offset = int(it.r.restarts[index])
	it.key = nil
	it.value = nil
	it.valid = false
}

// Seek positions the iterator at the first entry with key >= target,
// using the restart array to binary-search the candidate block region
// before linear-scanning within it (the sparse-index lookup pattern
// spec §4.1 calls for, and the teacher's table.block() + iterator
// combination relies on for its own index probing).
func (it *Iterator) Seek(target []byte) {
	index := sort.Search(it.r.numRestarts, func(i int) bool {
		k, _, _, err := it.r.entry(int(it.r.restarts[i]), nil)
		if err != nil {
			it.err = err
			return true
		}
		return it.cmp.Compare(k, target) > 0
	})
	if it.err != nil {
		it.valid = false
		return
	}
	if index == 0 {
		it.seekToRestart(0)
	} else {
		it.seekToRestart(index - 1)
	}
	for it.Next(); it.Valid(); it.Next() {
		if it.cmp.Compare(it.key, target) >= 0 {
			return
		}
	}
}

func (it *Iterator) Next() {
	if it.offset >= it.r.restartsBase {
		it.valid = false
		return
	}
	key, value, next, err := it.r.entry(it.offset, it.key)
	if err != nil {
		it.err = err
		it.valid = false
		return
	}
	it.key, it.value, it.offset = key, value, next
	it.valid = true
}
