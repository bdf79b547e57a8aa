package memtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidardb/vidardb-engine/internal/comparator"
	"github.com/vidardb/vidardb-engine/internal/keys"
)

func newTestTable() *Table {
	return New(comparator.NewInternalKeyComparator(comparator.Bytewise{}))
}

func probe(userKey string) []byte {
	return keys.Make([]byte(userKey), keys.MaxSequenceNumber, keys.TypeSingleDeletion)
}

func TestTable_PutGetNewestVersion(t *testing.T) {
	tbl := newTestTable()
	tbl.Put(keys.Make([]byte("k"), 1, keys.TypeValue), []byte("v1"))
	tbl.Put(keys.Make([]byte("k"), 2, keys.TypeValue), []byte("v2"))

	foundKey, value, found := tbl.Get(probe("k"))
	require.True(t, found)
	assert.Equal(t, "v2", string(value))
	assert.EqualValues(t, 2, keys.Sequence(foundKey))
}

func TestTable_GetMissingUserKey(t *testing.T) {
	tbl := newTestTable()
	tbl.Put(keys.Make([]byte("k"), 1, keys.TypeValue), []byte("v"))

	_, _, found := tbl.Get(probe("other"))
	assert.False(t, found)
}

func TestTable_GetSeesTombstone(t *testing.T) {
	tbl := newTestTable()
	tbl.Put(keys.Make([]byte("k"), 1, keys.TypeValue), []byte("v"))
	tbl.Put(keys.Make([]byte("k"), 2, keys.TypeDeletion), nil)

	foundKey, _, found := tbl.Get(probe("k"))
	require.True(t, found)
	assert.Equal(t, keys.TypeDeletion, keys.Type(foundKey))
}

func TestTable_ApproximateSizeGrows(t *testing.T) {
	tbl := newTestTable()
	assert.EqualValues(t, 0, tbl.ApproximateSize())

	tbl.Put(keys.Make([]byte("k"), 1, keys.TypeValue), []byte("value"))
	assert.True(t, tbl.ApproximateSize() > 0)
}

func TestTable_NumEntriesCountsDistinctVersionsOnce(t *testing.T) {
	tbl := newTestTable()
	tbl.Put(keys.Make([]byte("k"), 1, keys.TypeValue), []byte("v1"))
	tbl.Put(keys.Make([]byte("k"), 1, keys.TypeValue), []byte("v1-overwrite"))
	tbl.Put(keys.Make([]byte("k"), 2, keys.TypeValue), []byte("v2"))

	assert.Equal(t, 2, tbl.NumEntries())
}

func TestTable_IteratorWalksAscendingInternalKeyOrder(t *testing.T) {
	tbl := newTestTable()
	tbl.Put(keys.Make([]byte("b"), 1, keys.TypeValue), []byte("2"))
	tbl.Put(keys.Make([]byte("a"), 5, keys.TypeValue), []byte("1-new"))
	tbl.Put(keys.Make([]byte("a"), 1, keys.TypeValue), []byte("1-old"))

	it := tbl.NewIterator()
	var order []string
	for ; it.Valid(); it.Next() {
		uk, _ := keys.Split(it.Key())
		order = append(order, string(uk))
	}
	require.NoError(t, it.Err())
	// "a" at seq 5 sorts before "a" at seq 1 (descending within a user key).
	assert.Equal(t, []string{"a", "a", "b"}, order)
}

func TestTable_IteratorSnapshotsAtCreation(t *testing.T) {
	tbl := newTestTable()
	tbl.Put(keys.Make([]byte("a"), 1, keys.TypeValue), []byte("1"))

	it := tbl.NewIterator()
	tbl.Put(keys.Make([]byte("b"), 1, keys.TypeValue), []byte("2"))

	var count int
	for ; it.Valid(); it.Next() {
		count++
	}
	assert.Equal(t, 1, count)
}
