// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"testing"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/stretchr/testify/require"
)

func TestTotalFileSize(t *testing.T) {
	require.EqualValues(t, 0, totalFileSize(nil))
	require.EqualValues(t, 300, totalFileSize([]fileMetadata{
		file(1, "a", "b", 100),
		file(2, "c", "d", 200),
	}))
}

func TestIkeyRange(t *testing.T) {
	smallest, largest := ikeyRange(base.DefaultComparer.Compare,
		[]fileMetadata{file(1, "m", "p", 1)},
		[]fileMetadata{file(2, "a", "z", 1)},
	)
	require.Equal(t, []byte("a"), smallest.UserKey)
	require.Equal(t, []byte("z"), largest.UserKey)
}

func TestVersionOverlaps(t *testing.T) {
	v := &version{}
	v.files[1] = []fileMetadata{
		file(1, "a", "c", 1),
		file(2, "d", "f", 1),
		file(3, "g", "i", 1),
	}
	ucmp := base.DefaultComparer.Compare
	got := v.overlaps(1, ucmp, []byte("b"), []byte("e"))
	require.Len(t, got, 2)
	require.EqualValues(t, 1, got[0].fileNum)
	require.EqualValues(t, 2, got[1].fileNum)
}

func TestVersionOverlapsLevel0ExpandsAcrossFiles(t *testing.T) {
	v := &version{}
	v.files[0] = []fileMetadata{
		file(1, "a", "e", 1),
		file(2, "d", "h", 1),
	}
	ucmp := base.DefaultComparer.Compare
	got := v.overlaps(0, ucmp, []byte("c"), []byte("c"))
	require.Len(t, got, 2)
}

func TestVersionCheckOrdering(t *testing.T) {
	ucmp := base.DefaultComparer.Compare
	v := &version{}
	v.files[1] = []fileMetadata{
		file(1, "a", "c", 1),
		file(2, "d", "f", 1),
	}
	require.NoError(t, v.checkOrdering(ucmp))

	bad := &version{}
	bad.files[1] = []fileMetadata{
		file(1, "a", "e", 1),
		file(2, "d", "f", 1),
	}
	require.Error(t, bad.checkOrdering(ucmp))
}

func TestVersionUpdateCompactionScoreL0(t *testing.T) {
	v := &version{}
	for i := 0; i < l0CompactionTrigger*2; i++ {
		v.files[0] = append(v.files[0], file(base.FileNum(i+1), "a", "b", 1))
	}
	v.updateCompactionScore()
	require.Equal(t, 0, v.compactionLevel)
	require.Equal(t, float64(2), v.compactionScore)
	require.Equal(t, v.compactionScore, v.levelScore(0))
}

func TestPow10(t *testing.T) {
	require.Equal(t, 1.0, pow10(0))
	require.Equal(t, 10.0, pow10(1))
	require.Equal(t, 100.0, pow10(2))
}

func TestVersionRefUnrefUnlinksWhenSuperseded(t *testing.T) {
	dummy := &version{}
	dummy.prev, dummy.next = dummy, dummy

	v := &version{refs: 1}
	v.prev = dummy.prev
	v.next = dummy
	dummy.prev.next = v
	dummy.prev = v

	v.ref()
	require.Equal(t, 2, v.refs)

	// Superseded: unlink it from the list once refs drop to zero, leaving
	// the dummy pointing at itself again.
	v.next = dummy
	v.unref()
	require.Equal(t, 1, v.refs)
	v.unref()
	require.Equal(t, 0, v.refs)
	require.Same(t, dummy, dummy.next)
	require.Nil(t, v.next)
}
