// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"testing"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/stretchr/testify/require"
)

func ikey(s string, seq base.SeqNum) base.InternalKey {
	return base.MakeInternalKey([]byte(s), seq, base.InternalKeyKindSet)
}

func file(num base.FileNum, smallest, largest string, size uint64) fileMetadata {
	return fileMetadata{
		fileNum:  num,
		size:     size,
		smallest: ikey(smallest, 1),
		largest:  ikey(largest, 1),
	}
}

func TestPickCompactionNoneWhenScoreBelowOne(t *testing.T) {
	v := &version{}
	v.files[0] = []fileMetadata{file(1, "a", "b", 100)}
	v.updateCompactionScore()
	require.Nil(t, pickCompaction(&versionSet{dummyVersion: version{}, current: v}))
}

func TestPickCompactionL0TriggersOnFileCount(t *testing.T) {
	v := &version{}
	for i := 0; i < l0CompactionTrigger; i++ {
		v.files[0] = append(v.files[0], file(base.FileNum(i+1), "a", "b", 100))
	}
	v.updateCompactionScore()
	require.GreaterOrEqual(t, v.compactionScore, 1.0)
	require.Equal(t, 0, v.compactionLevel)

	vs := &versionSet{ucmp: base.DefaultComparer.Compare, current: v}
	c := pickCompaction(vs)
	require.NotNil(t, c)
	require.Equal(t, 0, c.level)
	require.NotEmpty(t, c.inputs[0])
}

func TestCompactionIsTrivialMove(t *testing.T) {
	c := &compaction{
		inputs: [3][]fileMetadata{
			{file(1, "a", "b", 100)},
			nil,
			nil,
		},
	}
	require.True(t, c.isTrivialMove())

	c.inputs[1] = []fileMetadata{file(2, "a", "b", 100)}
	require.False(t, c.isTrivialMove())
}

func TestCompactionShouldStopBeforeAccumulatesGrandparentOverlap(t *testing.T) {
	c := &compaction{
		inputs: [3][]fileMetadata{nil, nil, {
			file(1, "a", "m", grandparentOverlapLimit+1),
			file(2, "n", "z", grandparentOverlapLimit),
		}},
	}
	ucmp := base.DefaultComparer.Compare

	// First key is within the first grandparent's range; no stop yet since
	// no prior key has been seen to attribute overlap to.
	require.False(t, c.shouldStopBefore(ucmp, ikey("a", 1)))

	// A key past the first grandparent's range crosses the accumulated
	// overlap threshold and requests a new output file.
	require.True(t, c.shouldStopBefore(ucmp, ikey("z", 1)))
}

func TestCompactionIsBaseLevelForKey(t *testing.T) {
	v := &version{}
	v.files[3] = []fileMetadata{file(1, "m", "n", 100)}
	c := &compaction{version: v, level: 0}
	ucmp := base.DefaultComparer.Compare

	require.True(t, c.isBaseLevelForKey(ucmp, []byte("a")))
	require.False(t, c.isBaseLevelForKey(ucmp, []byte("m")))
}
