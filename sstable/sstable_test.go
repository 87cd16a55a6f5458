// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	*bytes.Reader
}

func (m memSource) Size() (int64, error) { return int64(m.Reader.Len()), nil }

func newMemSource(b []byte) memSource { return memSource{bytes.NewReader(b)} }

func buildTestTable(t *testing.T, n int, opts WriterOptions) ([]byte, []string) {
	var buf bytes.Buffer
	b := NewBuilder(&buf, opts)
	var keys []string
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key%04d", i)
		keys = append(keys, k)
		ikey := base.MakeInternalKey([]byte(k), base.SeqNum(i+1), base.InternalKeyKindSet)
		require.NoError(t, b.Add(ikey, []byte(fmt.Sprintf("value%d", i))))
	}
	require.NoError(t, b.Finish())
	return buf.Bytes(), keys
}

func TestBuilderAndReaderRoundTrip(t *testing.T) {
	data, keys := buildTestTable(t, 500, WriterOptions{BlockSize: 512, BlockRestartInterval: 8})

	r, err := NewReader(newMemSource(data), ReaderOptions{VerifyChecksums: true})
	require.NoError(t, err)

	for i, k := range keys {
		var gotValue []byte
		found, err := r.InternalGet([]byte(k), base.SeqNumMax, func(ikey base.InternalKey, value []byte) {
			gotValue = append([]byte(nil), value...)
		})
		require.NoError(t, err)
		require.True(t, found, "key %s", k)
		require.Equal(t, fmt.Sprintf("value%d", i), string(gotValue))
	}

	_, err = r.InternalGet([]byte("nonexistent"), base.SeqNumMax, func(base.InternalKey, []byte) {})
	require.NoError(t, err)
}

func TestIteratorOrder(t *testing.T) {
	data, keys := buildTestTable(t, 200, WriterOptions{BlockSize: 256})

	r, err := NewReader(newMemSource(data), ReaderOptions{})
	require.NoError(t, err)

	it, err := r.NewIter()
	require.NoError(t, err)

	var got []string
	for it.First(); it.Valid(); it.Next() {
		got = append(got, string(it.Key().UserKey))
	}
	require.NoError(t, it.Error())
	require.Equal(t, keys, got)
}

func TestSeekGE(t *testing.T) {
	data, _ := buildTestTable(t, 100, WriterOptions{BlockSize: 256})
	r, err := NewReader(newMemSource(data), ReaderOptions{})
	require.NoError(t, err)

	it, err := r.NewIter()
	require.NoError(t, err)

	target := base.MakeInternalKey([]byte("key0042"), base.SeqNumMax, base.InternalKeyKindMax)
	it.SeekGE(target)
	require.True(t, it.Valid())
	require.Equal(t, "key0042", string(it.Key().UserKey))
}

func TestBloomFilterRejectsAbsentKey(t *testing.T) {
	data, _ := buildTestTable(t, 1000, WriterOptions{FilterBitsPerKey: 10})
	r, err := NewReader(newMemSource(data), ReaderOptions{})
	require.NoError(t, err)

	falsePositives := 0
	for i := 0; i < 1000; i++ {
		k := fmt.Sprintf("absent%04d", i)
		if r.MayContain([]byte(k)) {
			falsePositives++
		}
	}
	// With 10 bits/key the false-positive rate should be roughly 1%; allow
	// generous slack to avoid flaking on a small sample.
	require.Less(t, falsePositives, 100)
}

func TestAddOutOfOrderRejected(t *testing.T) {
	var buf bytes.Buffer
	b := NewBuilder(&buf, WriterOptions{})
	require.NoError(t, b.Add(base.MakeInternalKey([]byte("b"), 2, base.InternalKeyKindSet), []byte("1")))
	err := b.Add(base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet), []byte("2"))
	require.Error(t, err)
}

func TestCompressionRoundTrip(t *testing.T) {
	for _, c := range []Compression{NoCompression, SnappyCompression, ZstdCompression} {
		data, keys := buildTestTable(t, 300, WriterOptions{Compression: c, BlockSize: 512})
		r, err := NewReader(newMemSource(data), ReaderOptions{VerifyChecksums: true})
		require.NoError(t, err)
		for i, k := range keys {
			found, err := r.InternalGet([]byte(k), base.SeqNumMax, func(base.InternalKey, []byte) {})
			require.NoError(t, err)
			require.True(t, found, "compression=%v key=%s (index %d)", c, k, i)
		}
	}
}
