// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"fmt"
	"sort"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/sstable"
)

// fileMetadata holds the metadata for an on-disk sorted file (spec §4.9
// "File metadata").
type fileMetadata struct {
	fileNum  base.FileNum
	size     uint64
	smallest base.InternalKey
	largest  base.InternalKey
}

// totalFileSize returns the total size, in bytes, of every file in files.
func totalFileSize(files []fileMetadata) (size uint64) {
	for _, f := range files {
		size += f.size
	}
	return size
}

// ikeyRange returns the minimum smallest and maximum largest internal key
// across f0 and f1 (spec §4.11 setup_other_inputs).
func ikeyRange(ucmp base.Compare, f0, f1 []fileMetadata) (smallest, largest base.InternalKey) {
	first := true
	for _, files := range [2][]fileMetadata{f0, f1} {
		for _, meta := range files {
			if first {
				first = false
				smallest, largest = meta.smallest, meta.largest
				continue
			}
			if base.InternalCompare(ucmp, meta.smallest, smallest) < 0 {
				smallest = meta.smallest
			}
			if base.InternalCompare(ucmp, meta.largest, largest) > 0 {
				largest = meta.largest
			}
		}
	}
	return smallest, largest
}

type byFileNum []fileMetadata

func (b byFileNum) Len() int           { return len(b) }
func (b byFileNum) Less(i, j int) bool { return b[i].fileNum < b[j].fileNum }
func (b byFileNum) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

type bySmallest struct {
	files []fileMetadata
	ucmp  base.Compare
}

func (b bySmallest) Len() int { return len(b.files) }
func (b bySmallest) Less(i, j int) bool {
	return base.InternalCompare(b.ucmp, b.files[i].smallest, b.files[j].smallest) < 0
}
func (b bySmallest) Swap(i, j int) { b.files[i], b.files[j] = b.files[j], b.files[i] }

// version is a collection of file metadata for on-disk tables at every
// level (spec §4.9 "Version"). Versions form a circular doubly-linked
// list; one node of that list is the versionSet's dummyVersion.
//
// The tables at level 0 are sorted by increasing fileNum; two level-0
// tables may have overlapping key ranges. The tables at any level > 0 are
// sorted by key range and pairwise non-overlapping.
type version struct {
	files [numLevels][]fileMetadata

	prev, next *version

	// compactionScore and compactionLevel record the level most in need of
	// compaction, computed by updateCompactionScore (spec §4.9).
	compactionScore float64
	compactionLevel int

	// refs counts the Iterators and Get calls holding this version, plus
	// the versionSet's own reference while it is current (spec §5
	// "versions (refcounted linked list)"). All access is under the owning
	// DB's mutex. A version whose refs drops to 0 is unlinked from the
	// circular list by unref.
	refs int
}

// ref pins v against replacement while an Iterator walks it.
func (v *version) ref() { v.refs++ }

// unref drops v's pin; if it reaches zero and v has already been
// superseded as current, v is unlinked from the version list.
func (v *version) unref() {
	v.refs--
	if v.refs == 0 && v.next != nil && v.next != v {
		v.prev.next = v.next
		v.next.prev = v.prev
		v.prev, v.next = nil, nil
	}
}

// updateCompactionScore recomputes v's compaction trigger (spec §4.9:
// "level 0 scored by file count divided by l0_compaction_trigger ... every
// other level scored by total byte size divided by 10MiB * 10^(level-1)").
func (v *version) updateCompactionScore() {
	v.compactionScore = float64(len(v.files[0])) / l0CompactionTrigger
	v.compactionLevel = 0

	maxBytes := float64(10 * 1024 * 1024)
	for level := 1; level < numLevels-1; level++ {
		score := float64(totalFileSize(v.files[level])) / maxBytes
		if score > v.compactionScore {
			v.compactionScore = score
			v.compactionLevel = level
		}
		maxBytes *= 10
	}
}

// levelScore reports the same per-level score updateCompactionScore uses
// to pick compactionLevel, for any single level (spec §6 "Metrics":
// per-level compaction score).
func (v *version) levelScore(level int) float64 {
	if level == 0 {
		return float64(len(v.files[0])) / l0CompactionTrigger
	}
	maxBytes := float64(10*1024*1024) * pow10(level-1)
	return float64(totalFileSize(v.files[level])) / maxBytes
}

func pow10(n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= 10
	}
	return r
}

// overlaps returns every file in v.files[level] whose user-key range
// intersects [ukey0, ukey1] (spec §4.11 "file selection"). Level 0's
// ranges may overlap each other, so the search range is expanded to the
// union of every matching file and repeated until it stabilizes; levels
// above 0 are pairwise non-overlapping, so one pass suffices.
func (v *version) overlaps(level int, ucmp base.Compare, ukey0, ukey1 []byte) (ret []fileMetadata) {
	for {
		ret = ret[:0]
		restart := false
		for _, meta := range v.files[level] {
			m0 := meta.smallest.UserKey
			m1 := meta.largest.UserKey
			if ucmp(m1, ukey0) < 0 {
				continue
			}
			if ucmp(m0, ukey1) > 0 {
				continue
			}
			ret = append(ret, meta)
			if level != 0 {
				continue
			}
			if ucmp(m0, ukey0) < 0 {
				ukey0 = m0
				restart = true
			}
			if ucmp(m1, ukey1) > 0 {
				ukey1 = m1
				restart = true
			}
		}
		if !restart {
			return ret
		}
	}
}

// checkOrdering verifies level-0 files are listed in increasing fileNum
// order and level>0 files are listed in increasing, non-overlapping
// internal-key order (spec §4.9 invariants).
func (v *version) checkOrdering(ucmp base.Compare) error {
	for level, files := range v.files {
		if level == 0 {
			var prevFileNum base.FileNum
			for i, f := range files {
				if i != 0 && prevFileNum >= f.fileNum {
					return fmt.Errorf("lsmkv: level 0 files out of order: %d, %d", prevFileNum, f.fileNum)
				}
				prevFileNum = f.fileNum
			}
			continue
		}
		var prevLargest base.InternalKey
		for i, f := range files {
			if i != 0 && base.InternalCompare(ucmp, prevLargest, f.smallest) >= 0 {
				return fmt.Errorf("lsmkv: level %d files out of order: %s, %s", level, prevLargest, f.smallest)
			}
			if base.InternalCompare(ucmp, f.smallest, f.largest) > 0 {
				return fmt.Errorf("lsmkv: level %d file has inconsistent bounds: %s, %s", level, f.smallest, f.largest)
			}
			prevLargest = f.largest
		}
	}
	return nil
}

// get looks up ikey's user key among v's tables, returning the value (or
// found=false for a tombstone/miss). It searches level 0 in decreasing
// fileNum order (equivalently decreasing recency) and every other level
// via binary search over each level's sorted, non-overlapping files,
// stopping at the first table that holds an entry (value or tombstone)
// for the key (spec §4.12 "get").
func (v *version) get(ikey base.InternalKey, tc *tableCache, ucmp base.Compare) (value []byte, found bool, err error) {
	ukey := ikey.UserKey

	for i := len(v.files[0]) - 1; i >= 0; i-- {
		f := v.files[0][i]
		if ucmp(ukey, f.smallest.UserKey) < 0 {
			continue
		}
		if base.InternalCompare(ucmp, ikey, f.largest) > 0 {
			continue
		}
		value, found, err = internalGetFromTable(tc, f.fileNum, ukey, ikey.SeqNum())
		if found || err != nil {
			return value, found, err
		}
	}

	for level := 1; level < len(v.files); level++ {
		files := v.files[level]
		n := len(files)
		if n == 0 {
			continue
		}
		index := sort.Search(n, func(i int) bool {
			return base.InternalCompare(ucmp, files[i].largest, ikey) >= 0
		})
		if index == n {
			continue
		}
		f := files[index]
		if ucmp(ukey, f.smallest.UserKey) < 0 {
			continue
		}
		value, found, err = internalGetFromTable(tc, f.fileNum, ukey, ikey.SeqNum())
		if found || err != nil {
			return value, found, err
		}
	}
	return nil, false, nil
}

// internalGetFromTable opens (or reuses) fileNum's reader via tc and
// returns the visible value for ukey as of seq, translating a tombstone
// hit into found=true, value=nil, matching memTable.get's convention so
// callers treat both memtable and sorted-file lookups uniformly.
func internalGetFromTable(tc *tableCache, fileNum base.FileNum, ukey []byte, seq base.SeqNum) (value []byte, found bool, err error) {
	err = tc.withReader(fileNum, func(r *sstable.Reader) error {
		var gotKey base.InternalKey
		var gotValue []byte
		ok, ierr := r.InternalGet(ukey, seq, func(ikey base.InternalKey, v []byte) {
			gotKey, gotValue = ikey, v
		})
		if ierr != nil {
			return ierr
		}
		if !ok {
			return nil
		}
		switch gotKey.Kind() {
		case base.InternalKeyKindSet:
			value, found = append([]byte(nil), gotValue...), true
		case base.InternalKeyKindDelete:
			found = true
		}
		return nil
	})
	return value, found, err
}
