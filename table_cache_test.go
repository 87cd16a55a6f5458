// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"testing"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/internal/cache"
	"github.com/lsmkv/lsmkv/sstable"
	"github.com/lsmkv/lsmkv/vfs"
	"github.com/stretchr/testify/require"
)

func writeTestTable(t *testing.T, fs vfs.FS, dirname string, fileNum base.FileNum, n int) {
	f, err := fs.Create(base.MakeFilename(dirname, base.FileTypeTable, fileNum))
	require.NoError(t, err)
	b := sstable.NewBuilder(f, sstable.WriterOptions{})
	for i := 0; i < n; i++ {
		key := base.MakeInternalKey([]byte{byte('a' + i)}, base.SeqNum(i+1), base.InternalKeyKindSet)
		require.NoError(t, b.Add(key, []byte{byte(i)}))
	}
	require.NoError(t, b.Finish())
	require.NoError(t, f.Close())
}

func TestTableCacheOpenAndShare(t *testing.T) {
	dirname := t.TempDir()
	fs := vfs.Default
	writeTestTable(t, fs, dirname, 1, 4)

	tc := newTableCache(cache.New(1<<20), 1, fs, dirname, sstable.ReaderOptions{})

	h1, err := tc.findNode(1)
	require.NoError(t, err)
	h2, err := tc.findNode(1)
	require.NoError(t, err)
	require.Same(t, h1.Value(), h2.Value(), "concurrent lookups of the same file share one open reader")

	tc.evict(1)
	// Evicting while handles are held must not invalidate them.
	r := h1.Value().(*sstable.Reader)
	require.True(t, r.MayContain([]byte{'a'}))

	h1.Release()
	h2.Release()
}

func TestTableCacheWithReader(t *testing.T) {
	dirname := t.TempDir()
	fs := vfs.Default
	writeTestTable(t, fs, dirname, 2, 3)

	tc := newTableCache(cache.New(1<<20), 1, fs, dirname, sstable.ReaderOptions{})

	var found bool
	err := tc.withReader(2, func(r *sstable.Reader) error {
		var innerErr error
		found, innerErr = r.InternalGet([]byte{'a'}, base.SeqNumMax, func(base.InternalKey, []byte) {})
		return innerErr
	})
	require.NoError(t, err)
	require.True(t, found)
}
