// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsReflectsWrites(t *testing.T) {
	d := openTestDB(t, nil)
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))

	m := d.Metrics()
	require.Greater(t, m.MemTableSize, uint64(0))
}

func TestMetricsStringIncludesLevelHeader(t *testing.T) {
	d := openTestDB(t, nil)
	m := d.Metrics()
	require.Contains(t, m.String(), "level")
}

func TestPrometheusCollectorCollectsMemTableSize(t *testing.T) {
	d := openTestDB(t, nil)
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))

	c := NewPrometheusCollector(d)
	require.Equal(t, 1, testutil.CollectAndCount(c, "lsmkv_memtable_bytes"))
}
