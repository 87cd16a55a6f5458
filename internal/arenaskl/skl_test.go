/*
 * Copyright 2017 Dgraph Labs, Inc. and Contributors
 * Modifications copyright (C) 2017 Andy Kimball and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package arenaskl

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSkiplist() *Skiplist {
	return NewSkiplist(NewArena(1<<20), bytes.Compare)
}

func TestBasicAddAndIterate(t *testing.T) {
	skl := newTestSkiplist()
	keys := []string{"b", "a", "d", "c"}
	for _, k := range keys {
		require.NoError(t, skl.Add([]byte(k)))
	}

	it := skl.NewIter()
	it.First()
	var got []string
	for it.Valid() {
		got = append(got, string(it.Key()))
		it.Next()
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestDuplicateRejected(t *testing.T) {
	skl := newTestSkiplist()
	require.NoError(t, skl.Add([]byte("k")))
	require.ErrorIs(t, skl.Add([]byte("k")), ErrRecordExists)
}

func TestSeekGEAndLE(t *testing.T) {
	skl := newTestSkiplist()
	for _, k := range []string{"a", "c", "e"} {
		require.NoError(t, skl.Add([]byte(k)))
	}

	it := skl.NewIter()
	it.SeekGE([]byte("b"))
	require.True(t, it.Valid())
	require.Equal(t, "c", string(it.Key()))

	it.SeekGE([]byte("c"))
	require.True(t, it.Valid())
	require.Equal(t, "c", string(it.Key()))

	it.SeekGE([]byte("f"))
	require.False(t, it.Valid())

	it.SeekLE([]byte("d"))
	require.True(t, it.Valid())
	require.Equal(t, "c", string(it.Key()))

	it.SeekLE([]byte("a"))
	require.True(t, it.Valid())
	require.Equal(t, "a", string(it.Key()))

	it.SeekLE([]byte("0"))
	require.False(t, it.Valid())
}

func TestPrev(t *testing.T) {
	skl := newTestSkiplist()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, skl.Add([]byte(k)))
	}

	it := skl.NewIter()
	it.Last()
	var got []string
	for it.Valid() {
		got = append(got, string(it.Key()))
		it.Prev()
	}
	require.Equal(t, []string{"c", "b", "a"}, got)
}

func TestArenaFull(t *testing.T) {
	skl := NewSkiplist(NewArena(256), bytes.Compare)
	var err error
	for i := 0; i < 10000 && err == nil; i++ {
		err = skl.Add([]byte(fmt.Sprintf("key-%08d", i)))
	}
	require.ErrorIs(t, err, ErrArenaFull)
}

func TestConcurrentAdd(t *testing.T) {
	skl := NewSkiplist(NewArena(8<<20), bytes.Compare)
	const n = 1000
	var wg sync.WaitGroup
	perm := rand.Perm(n)
	for _, i := range perm {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = skl.Add([]byte(fmt.Sprintf("key-%05d", i)))
		}(i)
	}
	wg.Wait()

	it := skl.NewIter()
	it.First()
	count := 0
	var prev []byte
	for it.Valid() {
		if prev != nil {
			require.Less(t, bytes.Compare(prev, it.Key()), 0)
		}
		prev = append([]byte(nil), it.Key()...)
		count++
		it.Next()
	}
	require.Equal(t, n, count)
}
