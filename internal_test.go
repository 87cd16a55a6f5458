// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeInternalKeyRoundTrip(t *testing.T) {
	k := MakeInternalKey([]byte("hello"), 42, InternalKeyKindSet)
	require.Equal(t, SeqNum(42), k.SeqNum())
	require.Equal(t, InternalKeyKindSet, k.Kind())
	require.Equal(t, []byte("hello"), k.UserKey)
}

func TestIsCorruptionError(t *testing.T) {
	require.False(t, IsCorruptionError(ErrNotFound))
}
