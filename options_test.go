// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionsEnsureDefaults(t *testing.T) {
	o := (&Options{}).EnsureDefaults()
	require.NotNil(t, o.FS)
	require.NotNil(t, o.Comparer)
	require.NotNil(t, o.Logger)
	require.Equal(t, 4<<20, o.WriteBufferSize)
	require.Equal(t, 2<<20, o.MaxFileSize)
	require.Equal(t, 4<<10, o.BlockSize)
	require.Equal(t, 16, o.BlockRestartInterval)
	require.Equal(t, 10, o.BloomBitsPerKey)
	require.Equal(t, 8<<20, o.BlockCacheCapacity)
	require.Equal(t, 1000, o.MaxOpenFiles)
	require.True(t, o.CreateIfMissing)
}

func TestOptionsEnsureDefaultsPreservesExplicitValues(t *testing.T) {
	o := (&Options{WriteBufferSize: 1 << 10, ErrorIfExists: true}).EnsureDefaults()
	require.Equal(t, 1<<10, o.WriteBufferSize)
	require.True(t, o.ErrorIfExists)
	require.False(t, o.CreateIfMissing)
}
