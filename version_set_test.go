// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"testing"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/vfs"
	"github.com/stretchr/testify/require"
)

func TestVersionSetNextFileNum(t *testing.T) {
	vs := newVersionSet("", vfs.NewMem(), base.DefaultComparer.Compare)
	vs.nextFileNumber = 1
	require.EqualValues(t, 1, vs.nextFileNum())
	require.EqualValues(t, 2, vs.nextFileNum())
	vs.markFileNumUsed(10)
	require.EqualValues(t, 11, vs.nextFileNum())
	vs.markFileNumUsed(5) // already behind, must not move backwards
	require.EqualValues(t, 12, vs.nextFileNum())
}

func TestVersionSetLogAndApplyPersistsAcrossRecover(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("db", 0755))

	vs := newVersionSet("db", fs, base.DefaultComparer.Compare)
	ve := &versionEdit{
		comparatorName: base.DefaultComparer.Name,
		nextFileNumber: 2,
		newFiles: []newFileEntry{
			{level: 0, meta: fileMetadata{
				fileNum:  1,
				size:     100,
				smallest: base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet),
				largest:  base.MakeInternalKey([]byte("b"), 1, base.InternalKeyKindSet),
			}},
		},
	}
	require.NoError(t, vs.logAndApply(ve))
	require.NoError(t, vs.close())

	vs2 := newVersionSet("db", fs, base.DefaultComparer.Compare)
	require.NoError(t, vs2.recover(base.DefaultComparer.Name))
	require.Len(t, vs2.currentVersion().files[0], 1)
	require.EqualValues(t, 1, vs2.currentVersion().files[0][0].fileNum)
}

func TestVersionSetRecoverRejectsMismatchedComparer(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("db", 0755))
	vs := newVersionSet("db", fs, base.DefaultComparer.Compare)
	require.NoError(t, vs.logAndApply(&versionEdit{comparatorName: "custom"}))
	require.NoError(t, vs.close())

	vs2 := newVersionSet("db", fs, base.DefaultComparer.Compare)
	err := vs2.recover(base.DefaultComparer.Name)
	require.ErrorIs(t, err, base.ErrInvalidArgument)
}
