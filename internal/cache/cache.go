// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package cache implements the shard-locked LRU cache of spec §4.3: a
// bounded, reference-counted lookup structure used for the table cache
// (open sstable readers); sstable blocks are not cached.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const numShards = 16

// Deleter is invoked on an entry's value when the entry is evicted from the
// LRU and its last handle reference has been released.
type Deleter func(key string, value interface{})

// Handle is a reference to an entry Inserted into or found via Lookup. The
// holder must call Release exactly once when done with it.
type Handle struct {
	shard *shard
	entry *entry
}

// Value returns the handle's value. Valid until Release.
func (h *Handle) Value() interface{} {
	if h == nil || h.entry == nil {
		return nil
	}
	return h.entry.value
}

type entry struct {
	key     string
	value   interface{}
	charge  int
	deleter Deleter
	refs    int32 // LRU list membership counts as one ref
	elem    *list.Element
}

// Cache is a sharded, reference-counted LRU. Sharding by the key's hash
// spreads lock contention across numShards independent LRUs, each bounded to
// capacity/numShards (spec §4.3: "implementation detail left free but
// expected to shard by key hash to reduce contention").
type Cache struct {
	shards [numShards]shard

	hits   atomic.Int64
	misses atomic.Int64
}

type shard struct {
	mu          sync.Mutex
	capacity    int
	totalCharge int
	ll          *list.List // of *entry, front = most recently used
	table       map[string]*list.Element
}

// New returns a Cache with the given total capacity (sum of all Inserted
// entries' charge before eviction kicks in), spread evenly across shards.
func New(capacity int) *Cache {
	c := &Cache{}
	perShard := capacity / numShards
	if perShard < 1 {
		perShard = 1
	}
	for i := range c.shards {
		c.shards[i].capacity = perShard
		c.shards[i].ll = list.New()
		c.shards[i].table = make(map[string]*list.Element)
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	h := xxhash.Sum64String(key)
	return &c.shards[h%numShards]
}

// Lookup returns a Handle for key, or nil if the key is not present. The
// caller must Release the returned handle.
func (c *Cache) Lookup(key string) *Handle {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.table[key]
	if !ok {
		c.misses.Add(1)
		return nil
	}
	c.hits.Add(1)
	s.ll.MoveToFront(elem)
	e := elem.Value.(*entry)
	e.refs++
	return &Handle{shard: s, entry: e}
}

// Insert adds key/value with the given charge (spec §4.3: "TotalCharge
// monotone within a shard"), evicting least-recently-used entries with no
// external references until the shard's total charge fits within its
// capacity. Returns a Handle the caller must Release.
func (c *Cache) Insert(key string, value interface{}, charge int, deleter Deleter) *Handle {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.table[key]; ok {
		s.removeElement(old)
	}

	e := &entry{key: key, value: value, charge: charge, deleter: deleter, refs: 2}
	e.elem = s.ll.PushFront(e)
	s.table[key] = e.elem
	s.totalCharge += charge

	s.evictLocked()

	return &Handle{shard: s, entry: e}
}

// evictLocked drops entries from the back of the LRU, preferring entries
// with no external refs, until totalCharge fits capacity or no evictable
// entry remains (spec §4.3: "eviction happens on insert when sum(charge) >
// capacity, preferring entries with no external refs").
func (s *shard) evictLocked() {
	for s.totalCharge > s.capacity {
		victim := s.oldestEvictableLocked()
		if victim == nil {
			return
		}
		s.removeElement(victim)
	}
}

// oldestEvictableLocked scans from the tail for the first entry held only by
// the LRU itself (refs == 1).
func (s *shard) oldestEvictableLocked() *list.Element {
	for elem := s.ll.Back(); elem != nil; elem = elem.Prev() {
		if elem.Value.(*entry).refs == 1 {
			return elem
		}
	}
	return nil
}

// removeElement unlinks elem from the LRU and the lookup table, dropping the
// LRU's own reference. If no handle references remain, the deleter runs
// immediately; otherwise it runs when the last Handle is Released.
func (s *shard) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	s.ll.Remove(elem)
	delete(s.table, e.key)
	s.totalCharge -= e.charge
	e.refs--
	if e.refs == 0 && e.deleter != nil {
		e.deleter(e.key, e.value)
	}
}

// Erase removes key from the cache immediately, regardless of recency. The
// deleter runs once all outstanding handles are Released.
func (c *Cache) Erase(key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.table[key]; ok {
		s.removeElement(elem)
	}
}

// Release drops the caller's reference to h's entry. If the entry was
// already evicted from the LRU and this is the last reference, the deleter
// runs now.
func (h *Handle) Release() {
	if h == nil || h.entry == nil {
		return
	}
	s := h.shard
	s.mu.Lock()
	defer s.mu.Unlock()

	e := h.entry
	e.refs--
	if e.refs == 0 && e.deleter != nil {
		e.deleter(e.key, e.value)
	}
	h.entry = nil
}

// Hits returns the cumulative number of Lookup calls that found their key.
func (c *Cache) Hits() int64 { return c.hits.Load() }

// Misses returns the cumulative number of Lookup calls that did not find
// their key.
func (c *Cache) Misses() int64 { return c.misses.Load() }

// HitRate returns Hits / (Hits + Misses), or 0 if Lookup has never been
// called (spec §6 "cache hit rate").
func (c *Cache) HitRate() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// TotalCharge returns the sum of charges currently held across all shards.
func (c *Cache) TotalCharge() int {
	total := 0
	for i := range c.shards {
		c.shards[i].mu.Lock()
		total += c.shards[i].totalCharge
		c.shards[i].mu.Unlock()
	}
	return total
}
