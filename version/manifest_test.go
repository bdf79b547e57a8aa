package version

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vidardb/vidardb-engine/internal/comparator"
)

// Ported from the teacher's TestBaseManifest (lsmT/manifest_test.go):
// a sequence of edits survives a close-and-reopen cycle, the manifest
// replay reconstructing the same version and counters.
func TestSet_RecoverAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cmp := comparator.NewInternalKeyComparator(comparator.Bytewise{})

	s := NewSet(dir, cmp)
	require.NoError(t, s.Bootstrap())

	edit := &Edit{}
	edit.AddFile(FileMetadata{Number: 2, Level: 0, FileSize: 1024, SmallestKey: []byte("a"), LargestKey: []byte("m")})
	edit.SetLastSequence(100)
	require.NoError(t, s.LogAndApply(edit))
	require.NoError(t, s.Close())

	reopened := NewSet(dir, cmp)
	require.NoError(t, reopened.Recover())
	defer reopened.Close()

	require.Len(t, reopened.Current().Levels[0], 1)
	require.EqualValues(t, 2, reopened.Current().Levels[0][0].Number)
	require.EqualValues(t, 100, reopened.LastSequence())
}

// A deleted file removed by a later edit should not reappear after replay.
func TestSet_DeleteFileSurvivesReplay(t *testing.T) {
	dir := t.TempDir()
	cmp := comparator.NewInternalKeyComparator(comparator.Bytewise{})

	s := NewSet(dir, cmp)
	require.NoError(t, s.Bootstrap())

	add := &Edit{}
	add.AddFile(FileMetadata{Number: 5, Level: 0, FileSize: 10, SmallestKey: []byte("a"), LargestKey: []byte("b")})
	require.NoError(t, s.LogAndApply(add))

	remove := &Edit{}
	remove.DeleteFile(0, 5)
	remove.AddFile(FileMetadata{Number: 6, Level: 1, FileSize: 20, SmallestKey: []byte("a"), LargestKey: []byte("b")})
	require.NoError(t, s.LogAndApply(remove))
	require.NoError(t, s.Close())

	reopened := NewSet(dir, cmp)
	require.NoError(t, reopened.Recover())
	defer reopened.Close()

	require.Empty(t, reopened.Current().Levels[0])
	require.Len(t, reopened.Current().Levels[1], 1)
}

// Mirrors the teacher's helpTestManifestFileCorruption: flipping a byte
// inside a committed record's length field must make replay fail.
func TestSet_CorruptManifestFailsReplay(t *testing.T) {
	dir := t.TempDir()
	cmp := comparator.NewInternalKeyComparator(comparator.Bytewise{})

	s := newTestSetAt(t, dir, cmp)
	require.NoError(t, s.Close())

	path, err := CurrentManifestPath(dir)
	require.NoError(t, err)
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xff}, 10) // stomp a byte inside the bootstrap record
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened := NewSet(dir, cmp)
	require.Error(t, reopened.Recover())
}

func newTestSetAt(t *testing.T, dir string, cmp *comparator.InternalKeyComparator) *Set {
	s := NewSet(dir, cmp)
	require.NoError(t, s.Bootstrap())
	return s
}
