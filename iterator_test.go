// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIteratorSeekGE(t *testing.T) {
	d := openTestDB(t, nil)
	for _, k := range []string{"a", "c", "e", "g"} {
		require.NoError(t, d.Put([]byte(k), []byte(k), nil))
	}
	it := d.NewIter()
	defer it.Close()

	it.SeekGE([]byte("d"))
	require.True(t, it.Valid())
	require.Equal(t, []byte("e"), it.Key())

	it.SeekGE([]byte("z"))
	require.False(t, it.Valid())
}

func TestIteratorSeekLT(t *testing.T) {
	d := openTestDB(t, nil)
	for _, k := range []string{"a", "c", "e", "g"} {
		require.NoError(t, d.Put([]byte(k), []byte(k), nil))
	}
	it := d.NewIter()
	defer it.Close()

	it.SeekLT([]byte("f"))
	require.True(t, it.Valid())
	require.Equal(t, []byte("e"), it.Key())

	it.SeekLT([]byte("a"))
	require.False(t, it.Valid())
}

func TestIteratorSkipsDeletedKeys(t *testing.T) {
	d := openTestDB(t, nil)
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))
	require.NoError(t, d.Put([]byte("b"), []byte("2"), nil))
	require.NoError(t, d.Delete([]byte("a"), nil))

	it := d.NewIter()
	defer it.Close()

	it.First()
	require.True(t, it.Valid())
	require.Equal(t, []byte("b"), it.Key())
	it.Next()
	require.False(t, it.Valid())
}
