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

/*
Adapted from RocksDB's inline skiplist by way of Badger's arenaskl. Key
differences from that lineage, driven by spec §4.4:
  - maxHeight is 12 and the level probability is 1/4 (branching factor 4),
    not Badger's maxHeight=20, p=1/e.
  - Nodes hold a single opaque key; there is no separate value slot. The
    memtable (spec §4.6) packs seq/type/value into the key bytes itself, so
    the skiplist's only job is ordering byte strings via a caller-supplied
    comparator.
  - Duplicate keys are rejected (spec §4.4: "duplicate keys disallowed");
    there is no overwrite-in-place support.
*/
package arenaskl

import (
	"math"
	"math/rand"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
)

const (
	maxHeight   = 12
	maxNodeSize = int(unsafe.Sizeof(node{}))
	linksSize   = uint32(unsafe.Sizeof(links{}))
	branching   = 4 // P(height >= h+1) = 1/branching
)

// ErrRecordExists is returned by Add when key is already present.
var ErrRecordExists = errors.New("lsmkv: record with this key already exists")

// Comparer orders two keys, like bytes.Compare.
type Comparer func(a, b []byte) int

// Skiplist is a concurrent, lock-free ordered set of byte-string keys (spec
// §4.4). Writers must provide external mutual exclusion; concurrent readers
// need only that the Skiplist is not reset while they're active.
type Skiplist struct {
	arena    *Arena
	comparer Comparer
	head     *node
	tail     *node
	height   uint32 // 1 <= height <= maxHeight, CAS'd
}

var probabilities [maxHeight]uint32

func init() {
	p := float64(1.0)
	for i := 0; i < maxHeight; i++ {
		probabilities[i] = uint32(float64(math.MaxUint32) * p)
		p /= branching
	}
}

// NewSkiplist constructs an empty Skiplist backed by arena, ordered by cmp.
func NewSkiplist(arena *Arena, cmp Comparer) *Skiplist {
	head, err := newNode(arena, maxHeight, nil)
	if err != nil {
		panic("lsmkv: arena too small for skiplist head node")
	}
	tail, err := newNode(arena, maxHeight, nil)
	if err != nil {
		panic("lsmkv: arena too small for skiplist tail node")
	}

	headOffset := arena.getPointerOffset(unsafe.Pointer(head))
	tailOffset := arena.getPointerOffset(unsafe.Pointer(tail))
	for i := 0; i < maxHeight; i++ {
		head.tower[i].nextOffset = tailOffset
		tail.tower[i].prevOffset = headOffset
	}

	return &Skiplist{arena: arena, comparer: cmp, head: head, tail: tail, height: 1}
}

// Height returns the tallest tower among all nodes ever inserted.
func (s *Skiplist) Height() uint32 { return atomic.LoadUint32(&s.height) }

// Arena returns the arena backing this skiplist.
func (s *Skiplist) Arena() *Arena { return s.arena }

// Size returns the number of bytes allocated from the arena so far.
func (s *Skiplist) Size() uint32 { return s.arena.Size() }

type splice struct {
	prev *node
	next *node
}

func (sp *splice) init(prev, next *node) {
	sp.prev = prev
	sp.next = next
}

// Add inserts key if it is not already present. Returns ErrRecordExists if
// it is, or ErrArenaFull if the arena has no room.
func (s *Skiplist) Add(key []byte) error {
	var spl [maxHeight]splice
	if s.findSplice(key, &spl) {
		return ErrRecordExists
	}

	height := s.randomHeight()
	nd, err := newNode(s.arena, height, key)
	if err != nil {
		return err
	}
	s.tryIncreaseHeight(height)

	ndOffset := s.arena.getPointerOffset(unsafe.Pointer(nd))

	var found bool
	for i := 0; i < int(height); i++ {
		prev := spl[i].prev
		next := spl[i].next

		if prev == nil {
			// The new node reaches a level no splice covered; that level has
			// not been populated yet.
			prev = s.head
			next = s.tail
		}

		for {
			prevOffset := s.arena.getPointerOffset(unsafe.Pointer(prev))
			nextOffset := s.arena.getPointerOffset(unsafe.Pointer(next))
			nd.tower[i].init(prevOffset, nextOffset)

			nextPrevOffset := next.prevOffset(i)
			if nextPrevOffset != prevOffset {
				prevNextOffset := prev.nextOffset(i)
				if prevNextOffset == nextOffset {
					next.casPrevOffset(i, nextPrevOffset, prevOffset)
				}
			}

			if prev.casNextOffset(i, nextOffset, ndOffset) {
				next.casPrevOffset(i, prevOffset, ndOffset)
				break
			}

			// Lost the race; recompute the splice at this level and retry.
			prev, next, found = s.findSpliceForLevel(key, i, prev)
			if found {
				if i != 0 {
					panic("lsmkv: duplicate key observed above the base level")
				}
				return ErrRecordExists
			}
		}
	}

	return nil
}

func (s *Skiplist) tryIncreaseHeight(height uint32) {
	listHeight := s.Height()
	for height > listHeight {
		if atomic.CompareAndSwapUint32(&s.height, listHeight, height) {
			return
		}
		listHeight = s.Height()
	}
}

func (s *Skiplist) randomHeight() uint32 {
	rnd := rand.Uint32()
	h := uint32(1)
	for h < maxHeight && rnd <= probabilities[h] {
		h++
	}
	return h
}

func (s *Skiplist) findSplice(key []byte, spl *[maxHeight]splice) (found bool) {
	var prev, next *node

	level := int(s.Height() - 1)
	prev = s.head

	for {
		prev, next, found = s.findSpliceForLevel(key, level, prev)
		if next == nil {
			next = s.tail
		}
		spl[level].init(prev, next)
		if level == 0 {
			break
		}
		level--
	}
	return found
}

func (s *Skiplist) findSpliceForLevel(key []byte, level int, start *node) (prev, next *node, found bool) {
	prev = start
	for {
		next = s.getNext(prev, level)
		if next == s.tail {
			break // reached the tail sentinel
		}
		nextKey := next.getKey(s.arena)

		cmp := s.comparer(key, nextKey)
		if cmp == 0 {
			found = true
			break
		}
		if cmp < 0 {
			break
		}
		prev = next
	}
	return prev, next, found
}

func (s *Skiplist) getNext(nd *node, h int) *node {
	offset := atomic.LoadUint32(&nd.tower[h].nextOffset)
	return (*node)(s.arena.getPointer(offset))
}

func (s *Skiplist) getPrev(nd *node, h int) *node {
	offset := atomic.LoadUint32(&nd.tower[h].prevOffset)
	return (*node)(s.arena.getPointer(offset))
}
