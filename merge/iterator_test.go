package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidardb/vidardb-engine/internal/comparator"
	"github.com/vidardb/vidardb-engine/internal/keys"
)

// sliceSource is a Source backed by a pre-sorted slice of internal keys,
// standing in for a table or memtable iterator.
type sliceSource struct {
	items [][]byte
	pos   int
}

func newSliceSource(items [][]byte) *sliceSource {
	return &sliceSource{items: items, pos: 0}
}

func (s *sliceSource) Valid() bool { return s.pos < len(s.items) }
func (s *sliceSource) Key() []byte { return s.items[s.pos] }
func (s *sliceSource) Next()       { s.pos++ }
func (s *sliceSource) Err() error  { return nil }

func ik(userKey string, seq uint64) []byte {
	return keys.Make([]byte(userKey), seq, keys.TypeValue)
}

func TestIterator_MergesInInternalKeyOrder(t *testing.T) {
	cmp := comparator.NewInternalKeyComparator(comparator.Bytewise{})

	a := newSliceSource([][]byte{ik("apple", 3), ik("cherry", 1)})
	b := newSliceSource([][]byte{ik("banana", 2), ik("cherry", 5)})

	it := New(cmp, []Source{a, b})

	var userKeys []string
	for it.Valid() {
		uk, _ := keys.Split(it.Key())
		userKeys = append(userKeys, string(uk))
		it.Next()
	}
	require.NoError(t, it.Err())

	// "cherry" appears from both sources; newer sequence (5) sorts first.
	assert.Equal(t, []string{"apple", "banana", "cherry", "cherry"}, userKeys)
}

func TestIterator_NewerSequenceSortsFirstForSameUserKey(t *testing.T) {
	cmp := comparator.NewInternalKeyComparator(comparator.Bytewise{})

	older := newSliceSource([][]byte{ik("k", 1)})
	newer := newSliceSource([][]byte{ik("k", 99)})

	it := New(cmp, []Source{older, newer})
	require.True(t, it.Valid())
	assert.EqualValues(t, 99, keys.Sequence(it.Key()))

	it.Next()
	require.True(t, it.Valid())
	assert.EqualValues(t, 1, keys.Sequence(it.Key()))

	it.Next()
	assert.False(t, it.Valid())
}

func TestIterator_EmptySourcesAreSkipped(t *testing.T) {
	cmp := comparator.NewInternalKeyComparator(comparator.Bytewise{})

	empty := newSliceSource(nil)
	nonEmpty := newSliceSource([][]byte{ik("only", 1)})

	it := New(cmp, []Source{empty, nonEmpty})
	require.True(t, it.Valid())
	uk, _ := keys.Split(it.Key())
	assert.Equal(t, "only", string(uk))

	it.Next()
	assert.False(t, it.Valid())
}

func TestIterator_SourceReturnsOwningSource(t *testing.T) {
	cmp := comparator.NewInternalKeyComparator(comparator.Bytewise{})

	a := newSliceSource([][]byte{ik("apple", 1)})
	b := newSliceSource([][]byte{ik("banana", 1)})

	it := New(cmp, []Source{a, b})
	require.True(t, it.Valid())
	assert.Same(t, a, it.Source())

	it.Next()
	require.True(t, it.Valid())
	assert.Same(t, b, it.Source())
}
