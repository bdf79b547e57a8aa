// Package db wires the lower-level packages (table, compaction, version,
// internal/cache, internal/compress) into the engine-facing configuration
// surface, adapted from the teacher's own Options struct
// (And-fish-kvDB/options.go) and NewDefaultOptions constructor, with the
// field set generalized from a value-log-oriented KV engine's knobs to
// this column-striped LSM engine's own tunables (block size/restart
// interval, level target sizes, compression, splitter, cache size).
package db

import (
	"github.com/vidardb/vidardb-engine/internal/comparator"
	"github.com/vidardb/vidardb-engine/internal/compress"
	"github.com/vidardb/vidardb-engine/internal/logutil"
	"github.com/vidardb/vidardb-engine/internal/splitter"
	"github.com/vidardb/vidardb-engine/version"
)

// Options configures an open store and, like the teacher's Options, is
// read once at Open; it is not persisted. Each table records the
// splitter's name and the internal-key comparator's name in its
// properties block, but reopening a store does not compare those names
// with these Options: tables are read with the comparator, splitter and
// column count given here.
type Options struct {
	WorkDir string

	ColumnCount          int
	BlockSize            int
	BlockRestartInterval int
	Compression          compress.Type

	Comparator comparator.UserComparator
	Splitter   splitter.Splitter

	MemTableSize      int64
	BlockCacheSize    int
	NumLevelZeroTables int

	BaseLevelSize       int64
	LevelSizeMultiplier int
	MaxLevelNum         int

	Logger logutil.Logger
}

// NewDefaultOptions mirrors the teacher's NewDefaultOptions: a directly
// usable configuration for local development and tests, not tuned for
// production workloads.
func NewDefaultOptions() *Options {
	return &Options{
		WorkDir:              "./work_test",
		ColumnCount:          1,
		BlockSize:            4096,
		BlockRestartInterval: 16,
		Compression:          compress.TypeSnappy,
		Comparator:           comparator.Bytewise{},
		MemTableSize:         1 << 20,
		BlockCacheSize:       10000,
		NumLevelZeroTables:   4,
		BaseLevelSize:        10 << 20,
		LevelSizeMultiplier:  10,
		MaxLevelNum:          version.MaxLevelNum,
		Logger:               logutil.Default(),
	}
}

func (o *Options) withDefaults() *Options {
	if o.Splitter == nil {
		o.Splitter = splitter.LengthPrefixed{ColumnCount: o.ColumnCount}
	}
	if o.Logger == nil {
		o.Logger = logutil.Noop()
	}
	if o.MaxLevelNum <= 0 {
		o.MaxLevelNum = version.MaxLevelNum
	}
	return o
}
