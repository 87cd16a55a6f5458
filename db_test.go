// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"fmt"
	"testing"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/vfs"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, opts *Options) *DB {
	t.Helper()
	if opts == nil {
		opts = &Options{}
	}
	if opts.FS == nil {
		opts.FS = vfs.NewMem()
	}
	d, err := Open("db", opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, d.Close()) })
	return d
}

func TestDBPutGetDelete(t *testing.T) {
	d := openTestDB(t, nil)

	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))
	v, err := d.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, d.Delete([]byte("a"), nil))
	_, err = d.Get([]byte("a"))
	require.ErrorIs(t, err, base.ErrNotFound)
}

func TestDBGetMissingKey(t *testing.T) {
	d := openTestDB(t, nil)
	_, err := d.Get([]byte("missing"))
	require.ErrorIs(t, err, base.ErrNotFound)
}

func TestDBPutRejectsEmptyKey(t *testing.T) {
	d := openTestDB(t, nil)
	require.ErrorIs(t, d.Put(nil, []byte("v"), nil), base.ErrInvalidArgument)
}

func TestDBNewestValueWins(t *testing.T) {
	d := openTestDB(t, nil)
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))
	require.NoError(t, d.Put([]byte("a"), []byte("2"), nil))
	v, err := d.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}

func TestDBFlushesAcrossWriteBufferBoundary(t *testing.T) {
	d := openTestDB(t, &Options{WriteBufferSize: 4 << 10})

	for i := 0; i < 500; i++ {
		k := []byte(fmt.Sprintf("key-%04d", i))
		v := make([]byte, 64)
		require.NoError(t, d.Put(k, v, nil))
	}

	for i := 0; i < 500; i++ {
		k := []byte(fmt.Sprintf("key-%04d", i))
		_, err := d.Get(k)
		require.NoError(t, err)
	}

	m := d.Metrics()
	require.Greater(t, m.Flushes, int64(0))
}

func TestDBNewIterScansInOrder(t *testing.T) {
	d := openTestDB(t, nil)
	require.NoError(t, d.Put([]byte("c"), []byte("3"), nil))
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))
	require.NoError(t, d.Put([]byte("b"), []byte("2"), nil))

	it := d.NewIter()
	defer it.Close()

	var keys []string
	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	require.Equal(t, []string{"a", "b", "c"}, keys)
}
