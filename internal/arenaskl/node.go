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
	"sync/atomic"
)

// links holds the forward and backward pointers for one tower level.
type links struct {
	nextOffset uint32
	prevOffset uint32
}

func (l *links) init(prevOffset, nextOffset uint32) {
	l.nextOffset = nextOffset
	l.prevOffset = prevOffset
}

// node stores a single opaque key (spec §4.4: insert(key), no separate
// value -- the memtable packs seq/type/value into the key bytes itself, per
// spec §4.6). Nodes are never deleted once linked into the list; all tower
// access is through atomic loads/CAS.
type node struct {
	keyOffset uint32
	keySize   uint32

	// Most nodes don't need the full height of the tower: the probability of
	// each successive level decreases exponentially, so a node's memory
	// footprint is truncated to the height actually chosen for it, and the
	// unused upper tower levels are never allocated.
	tower [maxHeight]links
}

func newNode(arena *Arena, height uint32, key []byte) (nd *node, err error) {
	if height < 1 || height > maxHeight {
		panic("lsmkv: height out of range")
	}
	keySize := uint32(len(key))

	nd, err = newRawNode(arena, height, keySize)
	if err != nil {
		return nil, err
	}
	copy(nd.getKeyBytes(arena), key)
	return nd, nil
}

func newRawNode(arena *Arena, height uint32, keySize uint32) (nd *node, err error) {
	unusedSize := uint32(maxHeight-int(height)) * linksSize
	nodeSize := uint32(maxNodeSize) - unusedSize

	nodeOffset, err := arena.alloc(nodeSize+keySize, align4)
	if err != nil {
		return nil, err
	}

	nd = (*node)(arena.getPointer(nodeOffset))
	nd.keyOffset = nodeOffset + nodeSize
	nd.keySize = keySize
	return nd, nil
}

func (n *node) getKey(arena *Arena) []byte {
	return arena.getBytes(n.keyOffset, n.keySize)
}

func (n *node) getKeyBytes(arena *Arena) []byte {
	return arena.getBytes(n.keyOffset, n.keySize)
}

func (n *node) nextOffset(h int) uint32 {
	return atomic.LoadUint32(&n.tower[h].nextOffset)
}

func (n *node) prevOffset(h int) uint32 {
	return atomic.LoadUint32(&n.tower[h].prevOffset)
}

func (n *node) casNextOffset(h int, old, val uint32) bool {
	return atomic.CompareAndSwapUint32(&n.tower[h].nextOffset, old, val)
}

func (n *node) casPrevOffset(h int, old, val uint32) bool {
	return atomic.CompareAndSwapUint32(&n.tower[h].prevOffset, old, val)
}
