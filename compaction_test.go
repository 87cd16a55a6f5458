// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestCompactionDrivesDataIntoHigherLevels writes enough data through a
// small write buffer to force repeated flushes, which in turn accumulate
// enough level-0 files to trigger the background compactor (spec §4.10
// "pick_compaction": level 0 compacts once it holds l0CompactionTrigger
// files). All values must remain readable once compaction settles.
func TestCompactionDrivesDataIntoHigherLevels(t *testing.T) {
	d := openTestDB(t, &Options{WriteBufferSize: 4 << 10})

	const n = 2000
	for i := 0; i < n; i++ {
		k := []byte(fmt.Sprintf("key-%05d", i))
		v := make([]byte, 32)
		require.NoError(t, d.Put(k, v, nil))
	}

	// Give the single background worker goroutine a chance to drain its
	// flush/compaction backlog.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		m := d.Metrics()
		if m.Levels[0].NumFiles < l0CompactionTrigger {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for i := 0; i < n; i++ {
		k := []byte(fmt.Sprintf("key-%05d", i))
		_, err := d.Get(k)
		require.NoError(t, err)
	}

	m := d.Metrics()
	require.Greater(t, m.Compactions.Count+m.Flushes, int64(0))
}

func TestDeleteObsoleteFilesLockedKeepsLiveFiles(t *testing.T) {
	d := openTestDB(t, &Options{WriteBufferSize: 4 << 10})

	for i := 0; i < 200; i++ {
		k := []byte(fmt.Sprintf("key-%04d", i))
		require.NoError(t, d.Put(k, k, nil))
	}
	require.NoError(t, d.Put([]byte("zzz"), []byte("last"), nil))

	v, err := d.Get([]byte("zzz"))
	require.NoError(t, err)
	require.Equal(t, []byte("last"), v)

	for i := 0; i < 200; i++ {
		k := []byte(fmt.Sprintf("key-%04d", i))
		v, err := d.Get(k)
		require.NoError(t, err)
		require.Equal(t, k, v)
	}
}
