// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"testing"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/stretchr/testify/require"
)

func TestBatchBuilderReaderRoundTrip(t *testing.T) {
	b := newBatchBuilder()
	require.True(t, b.empty())
	b.put(1, base.InternalKeyKindSet, []byte("a"), []byte("1"))
	b.put(2, base.InternalKeyKindDelete, []byte("b"), nil)
	require.False(t, b.empty())
	rec := b.finish()

	r, err := newBatchReader(rec)
	require.NoError(t, err)

	seq, kind, key, value, ok, err := r.next()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, seq)
	require.Equal(t, base.InternalKeyKindSet, kind)
	require.Equal(t, []byte("a"), key)
	require.Equal(t, []byte("1"), value)

	seq, kind, key, value, ok, err = r.next()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, seq)
	require.Equal(t, base.InternalKeyKindDelete, kind)
	require.Equal(t, []byte("b"), key)
	require.Empty(t, value)

	_, _, _, _, ok, err = r.next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBatchReaderRejectsTruncatedRecord(t *testing.T) {
	_, err := newBatchReader([]byte{0, 0})
	require.Error(t, err)
}
