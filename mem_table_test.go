// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsmkv

import (
	"testing"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/stretchr/testify/require"
)

func newTestMemTable() *memTable {
	return newMemTable(base.DefaultComparer.Compare, 4<<20, 0)
}

func TestMemTableAddAndGet(t *testing.T) {
	m := newTestMemTable()
	require.NoError(t, m.add(base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet), []byte("1")))
	require.NoError(t, m.add(base.MakeInternalKey([]byte("b"), 2, base.InternalKeyKindSet), []byte("2")))

	v, found := m.get([]byte("a"), 10)
	require.True(t, found)
	require.Equal(t, []byte("1"), v)

	_, found = m.get([]byte("missing"), 10)
	require.False(t, found)
}

func TestMemTableNewestWins(t *testing.T) {
	m := newTestMemTable()
	require.NoError(t, m.add(base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet), []byte("old")))
	require.NoError(t, m.add(base.MakeInternalKey([]byte("a"), 2, base.InternalKeyKindSet), []byte("new")))

	v, found := m.get([]byte("a"), 10)
	require.True(t, found)
	require.Equal(t, []byte("new"), v)

	// A snapshot taken before seq 2 must not observe it.
	v, found = m.get([]byte("a"), 1)
	require.True(t, found)
	require.Equal(t, []byte("old"), v)
}

func TestMemTableDeleteTombstone(t *testing.T) {
	m := newTestMemTable()
	require.NoError(t, m.add(base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet), []byte("1")))
	require.NoError(t, m.add(base.MakeInternalKey([]byte("a"), 2, base.InternalKeyKindDelete), nil))

	v, found := m.get([]byte("a"), 10)
	require.True(t, found, "a tombstone is a definitive answer, not a miss")
	require.Nil(t, v)
}

func TestMemTableIteratorOrder(t *testing.T) {
	m := newTestMemTable()
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, m.add(base.MakeInternalKey([]byte(k), 1, base.InternalKeyKindSet), []byte(k)))
	}

	it := m.newIter()
	it.First()
	var got []string
	for it.Valid() {
		got = append(got, string(it.Key().UserKey))
		it.Next()
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestMemTableApproximateMemoryUsage(t *testing.T) {
	m := newTestMemTable()
	require.Zero(t, m.approximateMemoryUsage())
	require.NoError(t, m.add(base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet), []byte("1")))
	require.Positive(t, m.approximateMemoryUsage())
}

func TestMemTableRefCounting(t *testing.T) {
	m := newTestMemTable()
	require.EqualValues(t, 1, m.refs)
	m.ref()
	require.EqualValues(t, 2, m.refs)
	m.unref()
	m.unref()
	require.EqualValues(t, 0, m.refs)
}
