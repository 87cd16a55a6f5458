// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"testing"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/vfs"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesMissingDirectory(t *testing.T) {
	fs := vfs.NewMem()
	d, err := Open("db", &Options{FS: fs})
	require.NoError(t, err)
	require.NoError(t, d.Close())
}

func TestOpenErrorIfExists(t *testing.T) {
	fs := vfs.NewMem()
	d, err := Open("db", &Options{FS: fs})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	_, err = Open("db", &Options{FS: fs, ErrorIfExists: true})
	require.ErrorIs(t, err, base.ErrInvalidArgument)
}

func TestOpenWithoutCreateIfMissingFails(t *testing.T) {
	fs := vfs.NewMem()
	_, err := Open("db", &Options{FS: fs, CreateIfMissing: false})
	require.Error(t, err)
}

func TestOpenReplaysLogOnReopen(t *testing.T) {
	fs := vfs.NewMem()
	d, err := Open("db", &Options{FS: fs})
	require.NoError(t, err)
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))
	require.NoError(t, d.Put([]byte("b"), []byte("2"), nil))
	require.NoError(t, d.Close())

	d2, err := Open("db", &Options{FS: fs})
	require.NoError(t, err)
	defer d2.Close()

	v, err := d2.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	v, err = d2.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}

func TestDestroyRemovesAllFiles(t *testing.T) {
	fs := vfs.NewMem()
	d, err := Open("db", &Options{FS: fs})
	require.NoError(t, err)
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))
	require.NoError(t, d.Close())

	require.NoError(t, Destroy("db", fs))
	names, err := fs.List("db")
	require.NoError(t, err)
	require.Empty(t, names)
}
