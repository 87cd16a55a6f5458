// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilenameRoundTrip(t *testing.T) {
	testCases := []struct {
		fileType FileType
		fileNum  FileNum
	}{
		{FileTypeLog, 1},
		{FileTypeTable, 42},
		{FileTypeManifest, 7},
	}
	for _, tc := range testCases {
		name := MakeFilename("", tc.fileType, tc.fileNum)
		gotType, gotNum, ok := ParseFilename(name)
		require.True(t, ok)
		require.Equal(t, tc.fileType, gotType)
		require.Equal(t, tc.fileNum, gotNum)
	}
}

func TestParseFilenameRejectsGarbage(t *testing.T) {
	_, _, ok := ParseFilename("not-a-recognized-name")
	require.False(t, ok)
}

func TestCurrentAndLock(t *testing.T) {
	_, _, ok := ParseFilename("CURRENT")
	require.True(t, ok)
	_, _, ok = ParseFilename("LOCK")
	require.True(t, ok)
}
