package db

// LevelTargets holds the per-level size budget a compaction picker
// consults to choose which level to compact next. Adapted from the
// teacher's levelManager.levelTargets (And-fish-kvDB/lsmT/compact.go),
// generalized from its BaseTableSize/TableSizeMultiplier file-sizing
// fields (not part of this engine's column-striped file model, where
// file size instead falls out of BlockSize and row count) down to just
// the per-level byte budget and base-level selection the spec's leveled
// design needs.
type LevelTargets struct {
	BaseLevel int
	TargetSize []int64
}

// ComputeLevelTargets mirrors the teacher's decay-from-the-bottom
// computation: starting from the total size of the last level, each
// shallower level's target shrinks by LevelSizeMultiplier until it
// would fall below BaseLevelSize, at which point that level becomes the
// base level future compactions merge L0 into.
func ComputeLevelTargets(opt *Options, levelSizes []int64) LevelTargets {
	n := len(levelSizes)
	targets := LevelTargets{TargetSize: make([]int64, n)}

	adjust := func(size int64) int64 {
		if size < opt.BaseLevelSize {
			return opt.BaseLevelSize
		}
		return size
	}

	dbSize := levelSizes[n-1]
	for i := n - 1; i > 0; i-- {
		targetSize := adjust(dbSize)
		targets.TargetSize[i] = targetSize
		if targets.BaseLevel == 0 && targetSize <= opt.BaseLevelSize {
			targets.BaseLevel = i
		}
		dbSize /= int64(opt.LevelSizeMultiplier)
	}

	// Skip over empty intermediate levels so compaction targets the
	// deepest level that can still absorb L0 directly, cutting write
	// amplification the same way the teacher's loop does.
	for i := targets.BaseLevel + 1; i < n-1; i++ {
		if levelSizes[i] > 0 {
			break
		}
		targets.BaseLevel = i
	}

	base := targets.BaseLevel
	if base < n-1 && levelSizes[base] == 0 && levelSizes[base+1] < targets.TargetSize[base+1] {
		targets.BaseLevel++
	}
	return targets
}

// NeedsCompaction reports whether level 0 has accumulated enough files
// to trigger a compaction, mirroring the teacher's L0-table-count
// trigger (lm.levels[0].numTables() vs NumLevelZeroTables).
func NeedsCompaction(opt *Options, level0FileCount int) bool {
	return level0FileCount >= opt.NumLevelZeroTables
}
