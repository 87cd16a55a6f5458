// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"github.com/lsmkv/lsmkv/internal/base"
)

const (
	// targetFileSize bounds a compaction output file (spec §6
	// "max_file_size", default 2 MiB).
	targetFileSize = 2 * 1024 * 1024

	// expandedCompactionByteSizeLimit caps how far setupOtherInputs may grow
	// inputs[0] without growing the number of inputs[1] files (spec §4.11
	// "setup_other_inputs").
	expandedCompactionByteSizeLimit = 25 * targetFileSize

	// grandparentOverlapLimit is the should_stop_before threshold of spec
	// §4.11: "exceed 10 * target_file_size".
	grandparentOverlapLimit = 10 * targetFileSize
)

// compaction describes one level-L to level-(L+1) compaction (spec §4.11).
// inputs[0] is the level-L source files, inputs[1] is the overlapping
// level-(L+1) files, inputs[2] is the overlapping level-(L+2) grandparent
// files consulted by shouldStopBefore.
type compaction struct {
	version *version
	level   int
	inputs  [3][]fileMetadata

	// compactPointerKey is the new rolling pointer for c.level, the largest
	// key among inputs[0] and inputs[1] (spec §4.10 pick_compaction: "update
	// compact_pointer[L] to the union's largest key").
	compactPointerKey base.InternalKey

	grandparentIndex int
	seenKey          bool
	overlappedBytes  uint64
}

// isTrivialMove reports whether c can be satisfied by reassigning its
// single input file to level+1 without rewriting it (spec §4.11
// "is_trivial_move").
func (c *compaction) isTrivialMove() bool {
	return len(c.inputs[0]) == 1 && len(c.inputs[1]) == 0 &&
		totalFileSize(c.inputs[2]) <= grandparentOverlapLimit
}

// isBaseLevelForKey reports whether there is no file at c.level+2 or
// deeper whose user-key range contains ukey (spec §4.11
// "is_base_level_for_key"), making c.level+1 the oldest place userKey can
// still live once this compaction finishes.
func (c *compaction) isBaseLevelForKey(ucmp base.Compare, ukey []byte) bool {
	for level := c.level + 2; level < numLevels; level++ {
		for _, f := range c.version.files[level] {
			if ucmp(ukey, f.largest.UserKey) <= 0 {
				if ucmp(ukey, f.smallest.UserKey) >= 0 {
					return false
				}
				break
			}
		}
	}
	return true
}

// shouldStopBefore advances the grandparent cursor past files wholly
// before key, accumulating their size, and reports whether the
// accumulated overlap has crossed grandparentOverlapLimit -- signaling the
// compactor to seal the current output file (spec §4.11
// "should_stop_before").
func (c *compaction) shouldStopBefore(ucmp base.Compare, key base.InternalKey) bool {
	grandparents := c.inputs[2]
	for c.grandparentIndex < len(grandparents) &&
		base.InternalCompare(ucmp, key, grandparents[c.grandparentIndex].largest) > 0 {
		if c.seenKey {
			c.overlappedBytes += grandparents[c.grandparentIndex].size
		}
		c.grandparentIndex++
	}
	c.seenKey = true
	if c.overlappedBytes > grandparentOverlapLimit {
		c.overlappedBytes = 0
		return true
	}
	return false
}

// pickCompaction picks the highest-priority compaction for vs's current
// version, or nil if none is needed (spec §4.10 "pick_compaction": "prefer
// size-triggered compaction when any score >= 1").
func pickCompaction(vs *versionSet) *compaction {
	cur := vs.currentVersion()
	if cur == nil || cur.compactionScore < 1 {
		return nil
	}

	c := &compaction{version: cur, level: cur.compactionLevel}
	files := cur.files[c.level]
	if len(files) == 0 {
		return nil
	}

	// Pick the first file whose largest key exceeds the level's rolling
	// compact pointer, wrapping around to the first file if none does.
	idx := 0
	cp := vs.compactPointer[c.level]
	if cp.UserKey != nil {
		for i, f := range files {
			if base.InternalCompare(vs.ucmp, f.largest, cp) > 0 {
				idx = i
				break
			}
		}
	}
	c.inputs[0] = []fileMetadata{files[idx]}

	if c.level == 0 {
		smallest, largest := ikeyRange(vs.ucmp, c.inputs[0], nil)
		c.inputs[0] = cur.overlaps(0, vs.ucmp, smallest.UserKey, largest.UserKey)
		if len(c.inputs[0]) == 0 {
			panic("lsmkv: empty compaction")
		}
	}

	c.setupOtherInputs(vs)
	return c
}

// setupOtherInputs fills in inputs[1] (the overlapping level+1 files) and
// inputs[2] (the overlapping level+2 grandparents), growing inputs[0] when
// doing so does not also grow the number of inputs[1] files (spec §4.11
// "setup_other_inputs").
func (c *compaction) setupOtherInputs(vs *versionSet) {
	smallest0, largest0 := ikeyRange(vs.ucmp, c.inputs[0], nil)
	c.inputs[1] = c.version.overlaps(c.level+1, vs.ucmp, smallest0.UserKey, largest0.UserKey)
	smallest01, largest01 := ikeyRange(vs.ucmp, c.inputs[0], c.inputs[1])

	if c.grow(vs, smallest01, largest01) {
		smallest01, largest01 = ikeyRange(vs.ucmp, c.inputs[0], c.inputs[1])
	}

	if c.level+2 < numLevels {
		c.inputs[2] = c.version.overlaps(c.level+2, vs.ucmp, smallest01.UserKey, largest01.UserKey)
	}

	c.compactPointerKey = largest01
	vs.compactPointer[c.level] = largest01
}

// grow grows c.inputs[0] without changing the number of c.inputs[1] files,
// returning whether it did (spec §4.11 "setup_other_inputs": "grow the
// lower level input set when it does not also grow the set of overlapping
// level+1 files").
func (c *compaction) grow(vs *versionSet, smallest, largest base.InternalKey) bool {
	if len(c.inputs[1]) == 0 {
		return false
	}
	grow0 := c.version.overlaps(c.level, vs.ucmp, smallest.UserKey, largest.UserKey)
	if len(grow0) <= len(c.inputs[0]) {
		return false
	}
	if totalFileSize(grow0)+totalFileSize(c.inputs[1]) >= expandedCompactionByteSizeLimit {
		return false
	}
	sm1, la1 := ikeyRange(vs.ucmp, grow0, nil)
	grow1 := c.version.overlaps(c.level+1, vs.ucmp, sm1.UserKey, la1.UserKey)
	if len(grow1) != len(c.inputs[1]) {
		return false
	}
	c.inputs[0] = grow0
	c.inputs[1] = grow1
	return true
}
