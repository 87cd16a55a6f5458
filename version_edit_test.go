// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"bytes"
	"testing"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/stretchr/testify/require"
)

func TestVersionEditEncodeDecodeRoundTrip(t *testing.T) {
	ve := &versionEdit{
		comparatorName: "leveldb.BytewiseComparator",
		logNumber:      3,
		prevLogNumber:  2,
		nextFileNumber: 4,
		lastSequence:   42,
		deletedFiles: map[deletedFileEntry]bool{
			{level: 0, fileNum: 1}: true,
		},
		newFiles: []newFileEntry{
			{
				level: 1,
				meta: fileMetadata{
					fileNum:  5,
					size:     1024,
					smallest: base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet),
					largest:  base.MakeInternalKey([]byte("z"), 2, base.InternalKeyKindSet),
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ve.encode(&buf))

	got := &versionEdit{}
	require.NoError(t, got.decode(&buf))

	require.Equal(t, ve.comparatorName, got.comparatorName)
	require.Equal(t, ve.logNumber, got.logNumber)
	require.Equal(t, ve.prevLogNumber, got.prevLogNumber)
	require.Equal(t, ve.nextFileNumber, got.nextFileNumber)
	require.Equal(t, ve.lastSequence, got.lastSequence)
	require.Equal(t, ve.deletedFiles, got.deletedFiles)
	require.Len(t, got.newFiles, 1)
	require.Equal(t, ve.newFiles[0].level, got.newFiles[0].level)
	require.Equal(t, ve.newFiles[0].meta.fileNum, got.newFiles[0].meta.fileNum)
	require.Equal(t, ve.newFiles[0].meta.size, got.newFiles[0].meta.size)
	require.Equal(t, ve.newFiles[0].meta.smallest, got.newFiles[0].meta.smallest)
	require.Equal(t, ve.newFiles[0].meta.largest, got.newFiles[0].meta.largest)
}

func TestVersionEditDecodeRejectsCorruptLevel(t *testing.T) {
	e := versionEditEncoder{new(bytes.Buffer)}
	e.writeUvarint(tagDeletedFile)
	e.writeUvarint(numLevels) // out of range
	e.writeUvarint(1)

	got := &versionEdit{}
	err := got.decode(bytes.NewReader(e.Bytes()))
	require.ErrorIs(t, err, errCorruptManifest)
}
