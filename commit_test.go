// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCommitConcurrentWritersGroupCommit exercises the writer queue's
// leader/follower protocol (spec §4.12 "group commit"): many goroutines
// calling Put concurrently must all observe their write committed, whether
// they led the batch or followed it.
func TestCommitConcurrentWritersGroupCommit(t *testing.T) {
	d := openTestDB(t, nil)

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			k := []byte(fmt.Sprintf("key-%03d", i))
			require.NoError(t, d.Put(k, k, nil))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		k := []byte(fmt.Sprintf("key-%03d", i))
		v, err := d.Get(k)
		require.NoError(t, err)
		require.Equal(t, k, v)
	}
}

func TestWriterQueuePushPopFIFO(t *testing.T) {
	var wq writerQueue
	require.True(t, wq.empty())

	w1, w2 := &writer{}, &writer{}
	wq.push(w1)
	wq.push(w2)
	require.False(t, wq.empty())
	require.Same(t, w1, wq.front())

	wq.pop()
	require.Same(t, w2, wq.front())

	wq.pop()
	require.True(t, wq.empty())
}
