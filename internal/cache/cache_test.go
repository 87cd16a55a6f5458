// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"container/list"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertLookup(t *testing.T) {
	c := New(1 << 20)
	h := c.Insert("a", 1, 1, nil)
	require.NotNil(t, h)
	h.Release()

	h = c.Lookup("a")
	require.NotNil(t, h)
	require.Equal(t, 1, h.Value())
	h.Release()

	require.Nil(t, c.Lookup("missing"))
}

func TestDeleterFiresOnlyAfterLastReference(t *testing.T) {
	c := New(1 << 20)
	deleted := false
	deleter := func(key string, value interface{}) { deleted = true }

	h := c.Insert("a", "a-value", 16, deleter)
	require.False(t, deleted, "deleter must not fire while a handle is outstanding")

	c.Erase("a")
	require.False(t, deleted, "erase alone must not fire the deleter while a handle remains")

	h.Release()
	require.True(t, deleted, "releasing the last handle after eviction must fire the deleter")
}

func TestEvictionPrefersUnreferencedEntries(t *testing.T) {
	s := &shard{capacity: 2, ll: list.New(), table: make(map[string]*list.Element)}
	deleted := make(map[string]bool)
	deleter := func(key string, value interface{}) { deleted[key] = true }

	insert := func(key string, charge int, held bool) *entry {
		e := &entry{key: key, value: key, charge: charge, deleter: deleter, refs: 1}
		if held {
			e.refs = 2
		}
		e.elem = s.ll.PushFront(e)
		s.table[key] = e.elem
		s.totalCharge += charge
		s.evictLocked()
		return e
	}

	insert("pinned", 1, true)
	for i := 0; i < 3; i++ {
		insert(fmt.Sprintf("filler-%d", i), 1, false)
	}

	require.False(t, deleted["pinned"], "a held entry must survive eviction pressure")
}

func TestErase(t *testing.T) {
	c := New(1 << 20)
	deleted := false
	h := c.Insert("a", 1, 1, func(string, interface{}) { deleted = true })
	h.Release()

	c.Erase("a")
	require.True(t, deleted)
	require.Nil(t, c.Lookup("a"))
}

func TestTotalCharge(t *testing.T) {
	c := New(1 << 20)
	c.Insert("a", 1, 10, nil).Release()
	c.Insert("b", 2, 20, nil).Release()
	require.Equal(t, 30, c.TotalCharge())
}
